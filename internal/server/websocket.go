// WebSocket support is the one surface the teacher repo never needed
// (shelf is a synchronous job-queue HTTP API); this file is grounded on
// the gorilla/websocket upgrade pattern other repos in the examples pack
// use for a similar "subscribe to a live event stream" socket, adapted to
// wenshape's two spec.md §6.3 sockets.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackzampolin/wenshape/internal/trace"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The session/trace sockets are same-origin dashboards in practice;
	// spec.md doesn't define a CORS allowlist for the WS surface, so this
	// accepts any origin rather than silently rejecting local tooling.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerWebSocketRoutes implements spec.md §6.3: a per-project session
// event stream and a process-wide trace stream.
func (s *Server) registerWebSocketRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{project}/session", s.wsSession)
	mux.HandleFunc("GET /ws/trace", s.wsTrace)
}

type wsEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// wsSession upgrades to a per-project session socket: sends
// ConnectionEstablished, then relays every ProgressEvent the project's
// orchestrator/pipelines emit until the client disconnects. The client's
// one expected inbound message is a bare "ping", answered with "pong".
func (s *Server) wsSession(w http.ResponseWriter, r *http.Request) {
	project := pathValue(r, "project")
	if _, err := s.projects.Get(project); err != nil {
		writeError(w, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "project", project, "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.progress.Subscribe(project)
	defer unsubscribe()

	if err := conn.WriteJSON(wsEnvelope{Type: "ConnectionEstablished", Payload: map[string]string{"project": project}}); err != nil {
		return
	}

	go pumpPings(conn)

	for evt := range events {
		if err := conn.WriteJSON(wsEnvelope{Type: "ProgressEvent", Payload: evt}); err != nil {
			return
		}
	}
}

// contextStatsPayload is the context_stats_update shape spec.md §6.3
// names: a token_usage breakdown plus a coarse health label, derived
// from the collector's Rollup rather than sent raw.
type contextStatsPayload struct {
	TokenUsage tokenUsage `json:"token_usage"`
	Health     string     `json:"health"`
}

type tokenUsage struct {
	Total      int64 `json:"total"`
	Prompt     int64 `json:"prompt"`
	Completion int64 `json:"completion"`
	Input      int64 `json:"input"`
	Saved      int64 `json:"saved"`
}

// contextHealth buckets the rollup's saved/input ratio into the coarse
// label the dashboard renders: plenty of compression headroom is "ok",
// none left is "tight".
func contextHealth(r trace.Rollup) string {
	if r.InputTokens == 0 {
		return "ok"
	}
	ratio := float64(r.SavedTokens) / float64(r.InputTokens)
	switch {
	case ratio >= 0.2:
		return "ok"
	case ratio >= 0.05:
		return "watch"
	default:
		return "tight"
	}
}

// wsTrace upgrades to the process-wide Global Trace socket: a connected
// ack, an initial backlog burst, then a live relay of every newly
// recorded TraceEvent, interleaved with a periodic context_stats_update
// carrying the collector's rolled-up stats (spec.md §4.10/§6.3).
func (s *Server) wsTrace(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "socket", "trace", "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsEnvelope{Type: "connected"}); err != nil {
		return
	}

	for _, evt := range s.trace.Backlog() {
		if err := conn.WriteJSON(wsEnvelope{Type: "trace_event", Payload: evt}); err != nil {
			return
		}
	}

	events, unsubscribe := s.trace.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go pumpPings(conn)

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsEnvelope{Type: "trace_event", Payload: evt}); err != nil {
				return
			}
		case <-ticker.C:
			rollup := s.trace.Stats()
			payload := contextStatsPayload{
				TokenUsage: tokenUsage{
					Total:      rollup.TotalTokens,
					Prompt:     rollup.PromptTokens,
					Completion: rollup.CompletionTokens,
					Input:      rollup.InputTokens,
					Saved:      rollup.SavedTokens,
				},
				Health: contextHealth(rollup),
			}
			if err := conn.WriteJSON(wsEnvelope{Type: "context_stats_update", Payload: payload}); err != nil {
				return
			}
		}
	}
}

// pumpPings reads the client's side of the socket so gorilla/websocket's
// control-frame handling (pong/close) keeps running, and answers the
// client's own "ping" text frames with "pong" per spec.md §6.3.
func pumpPings(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "ping" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return
			}
		}
	}
}
