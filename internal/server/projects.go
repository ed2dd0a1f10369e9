package server

import (
	"net/http"
)

// registerProjectRoutes implements spec.md §6.2's Projects group: list,
// create, get, and delete, rooted at ProjectManager.
func (s *Server) registerProjectRoutes(mux *http.ServeMux) {
	handle(mux, "GET", "/projects", s.listProjects)
	handle(mux, "POST", "/projects", s.createProject)
	handle(mux, "GET", "/projects/{project}", s.getProject)
	handle(mux, "DELETE", "/projects/{project}", s.deleteProject)
}

type projectResponse struct {
	ID string `json:"id"`
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.projects.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]projectResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, projectResponse{ID: id})
	}
	writeJSON(w, http.StatusOK, out)
}

type createProjectRequest struct {
	ID string `json:"id"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := s.projects.Create(req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{ID: svc.ID})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{ID: svc.ID})
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.Delete(pathValue(r, "project")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
