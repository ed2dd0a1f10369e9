package server

import (
	"net/http"
)

// healthResponse is the /health payload.
type healthResponse struct {
	Status string `json:"status"`
}

// handle registers h for method+path both at the bare path and under
// /api, spec.md §6.2's "dual-mount at both / and /api/".
func handle(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(method+" "+path, h)
	mux.HandleFunc(method+" /api"+path, h)
}

// registerRoutes wires every spec.md §6.2 resource group plus health and
// the §6.3 WebSocket endpoints onto mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	handle(mux, "GET", "/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	handle(mux, "GET", "/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
	})

	s.registerProjectRoutes(mux)
	s.registerCardRoutes(mux)
	s.registerCanonRoutes(mux)
	s.registerDraftRoutes(mux)
	s.registerVolumeRoutes(mux)
	s.registerFactsTreeRoutes(mux)
	s.registerSessionRoutes(mux)
	s.registerRetrievalRoutes(mux)
	s.registerFanfictionRoutes(mux)
	s.registerWebSocketRoutes(mux)
}
