package server

import (
	"net/http"

	"github.com/jackzampolin/wenshape/internal/model"
)

// registerCanonRoutes implements spec.md §6.2's Canon group: facts,
// timeline, and character-state read accessors, filtered by chapter or id
// where the storage layer only exposes a flat append-only log.
func (s *Server) registerCanonRoutes(mux *http.ServeMux) {
	handle(mux, "GET", "/projects/{project}/canon/facts", s.listFacts)
	handle(mux, "GET", "/projects/{project}/canon/facts/by-id/{id}", s.getFactByID)
	handle(mux, "GET", "/projects/{project}/canon/facts/{chapter}", s.listFactsByChapter)

	handle(mux, "GET", "/projects/{project}/canon/timeline", s.listTimeline)
	handle(mux, "GET", "/projects/{project}/canon/timeline/{chapter}", s.listTimelineByChapter)

	handle(mux, "GET", "/projects/{project}/canon/character-state", s.listCharacterStates)
	handle(mux, "GET", "/projects/{project}/canon/character-state/{name}", s.getCharacterState)
}

func (s *Server) listFacts(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	facts, err := svc.Store.LoadFacts()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facts)
}

func (s *Server) getFactByID(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	facts, err := svc.Store.LoadFacts()
	if err != nil {
		writeError(w, err)
		return
	}
	id := pathValue(r, "id")
	for _, f := range facts {
		if f.ID == id {
			writeJSON(w, http.StatusOK, f)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorResponse{Detail: "fact not found: " + id})
}

func (s *Server) listFactsByChapter(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	facts, err := svc.Store.LoadFacts()
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	var out []model.Fact
	for _, f := range facts {
		if f.IntroducedIn == chapter {
			out = append(out, f)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listTimeline(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := svc.Store.LoadTimeline()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) listTimelineByChapter(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := svc.Store.LoadTimeline()
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	var out []model.TimelineEvent
	for _, e := range events {
		if e.Source == chapter {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listCharacterStates(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	states, err := svc.Store.LoadCharacterStates()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) getCharacterState(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := svc.Store.CurrentCharacterState(pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
