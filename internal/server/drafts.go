package server

import (
	"net/http"

	"github.com/jackzampolin/wenshape/internal/memorypack"
	"github.com/jackzampolin/wenshape/internal/model"
)

// registerDraftRoutes implements spec.md §6.2's Drafts group. Versioned
// draft history beyond "latest" is read-only at the storage layer
// (internal/storage exposes LatestDraftPath/LoadLatestDraft, not a
// per-version reader), so this group's version accessor always resolves
// to the newest draft or the confirmed final, matching LatestDraftPath's
// own "final.md wins" rule (spec.md §4.5).
func (s *Server) registerDraftRoutes(mux *http.ServeMux) {
	handle(mux, "GET", "/projects/{project}/drafts/{chapter}", s.getLatestDraft)
	handle(mux, "PUT", "/projects/{project}/drafts/{chapter}", s.putDraftVersion)
	handle(mux, "PUT", "/projects/{project}/drafts/{chapter}/final", s.putFinalDraft)

	handle(mux, "GET", "/projects/{project}/drafts/{chapter}/scene-brief", s.getSceneBrief)
	handle(mux, "PUT", "/projects/{project}/drafts/{chapter}/scene-brief", s.putSceneBrief)

	handle(mux, "GET", "/projects/{project}/drafts/{chapter}/context", s.getContextForWriting)
}

type draftResponse struct {
	Chapter string `json:"chapter"`
	Content string `json:"content"`
}

func (s *Server) getLatestDraft(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	content, err := svc.Store.LoadLatestDraft(chapter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{Chapter: chapter, Content: content})
}

type saveDraftRequest struct {
	Version string `json:"version"`
	Content string `json:"content"`
}

func (s *Server) putDraftVersion(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	var req saveDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Version == "" {
		req.Version = "v1"
	}
	path, err := svc.Store.SaveDraft(r.Context(), chapter, req.Version, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// putFinalDraft persists the confirmed final and, when the project has an
// analysis pipeline wired (an LLM profile or mock archivist is
// configured), runs spec.md §4.11's post-finalize analysis. Analysis
// failures are logged, never fatal, matching session.Orchestrator's own
// "finalize" step contract.
func (s *Server) putFinalDraft(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	var req saveDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	path, err := svc.Store.SaveFinal(r.Context(), chapter, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	if svc.Analysis != nil {
		if err := svc.Analysis.AnalyzeChapter(r.Context(), chapter); err != nil {
			s.log.Warn("post-finalize analysis failed", "project", svc.ID, "chapter", chapter, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) getSceneBrief(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	brief, err := svc.Store.LoadSceneBrief(pathValue(r, "chapter"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

func (s *Server) putSceneBrief(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var brief model.SceneBrief
	if !decodeJSON(w, r, &brief) {
		return
	}
	brief.Chapter = pathValue(r, "chapter")
	if err := svc.Store.SaveSceneBrief(r.Context(), brief); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

// getContextForWriting implements spec.md §4.7's ensure_memory_pack
// accessor: build or reuse the chapter's memory pack against its saved
// scene brief.
func (s *Server) getContextForWriting(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	brief, err := svc.Store.LoadSceneBrief(chapter)
	if err != nil {
		writeError(w, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	pack, err := svc.MemoryPack.Ensure(r.Context(), memorypack.Request{
		Chapter:      chapter,
		SceneBrief:   &brief,
		ForceRefresh: force,
		Source:       "context_for_writing",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}
