package server

import (
	"net/http"

	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/memorypack"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/providers"
	"github.com/jackzampolin/wenshape/internal/textchunk"
)

// registerRetrievalRoutes implements spec.md §6.2's Evidence, Text-Chunk,
// Binding, and Memory-Pack groups: the rebuild/search surface over each
// project's retrieval indexes, plus the memory-pack builder's ensure
// accessor (duplicated here from drafts.go's scene-brief-rooted path for
// callers that already hold a built SceneBrief in hand).
func (s *Server) registerRetrievalRoutes(mux *http.ServeMux) {
	handle(mux, "POST", "/projects/{project}/evidence/rebuild", s.rebuildEvidence)
	handle(mux, "POST", "/projects/{project}/evidence/search", s.searchEvidence)

	handle(mux, "POST", "/projects/{project}/text-chunks/rebuild", s.rebuildTextChunks)
	handle(mux, "POST", "/projects/{project}/text-chunks/search", s.searchTextChunks)

	handle(mux, "POST", "/projects/{project}/bindings/rebuild", s.rebuildBindings)
	handle(mux, "GET", "/projects/{project}/bindings/{chapter}", s.getBinding)
	handle(mux, "GET", "/projects/{project}/bindings/{chapter}/seed-entities", s.getSeedEntities)

	handle(mux, "POST", "/projects/{project}/memory-pack/{chapter}", s.buildMemoryPack)
}

func (s *Server) rebuildEvidence(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	meta, err := svc.Evidence.BuildAll(r.Context(), force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type evidenceSearchRequest struct {
	Queries        []string             `json:"queries"`
	Types          []model.EvidenceType `json:"types"`
	Seeds          []string             `json:"seeds"`
	Limit          int                  `json:"limit"`
	SemanticRerank bool                 `json:"semantic_rerank"`
}

func (s *Server) searchEvidence(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req evidenceSearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	llm := s.llmForSearch(svc, req.SemanticRerank)
	result, err := svc.Evidence.Search(r.Context(), evidence.SearchRequest{
		Queries:        req.Queries,
		Types:          req.Types,
		Seeds:          req.Seeds,
		Limit:          limit,
		LLM:            llm,
		SemanticRerank: req.SemanticRerank,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) rebuildTextChunks(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	meta, err := svc.TextChunk.Build(r.Context(), force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type textChunkSearchRequest struct {
	Queries         []string `json:"queries"`
	Limit           int      `json:"limit"`
	Chapters        []string `json:"chapters"`
	ExcludeChapters []string `json:"exclude_chapters"`
	Rebuild         bool     `json:"rebuild"`
	SemanticRerank  bool     `json:"semantic_rerank"`
	RerankQuery     string   `json:"rerank_query"`
}

func (s *Server) searchTextChunks(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req textChunkSearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 12
	}
	llm := s.llmForSearch(svc, req.SemanticRerank)
	hits, err := svc.TextChunk.Search(r.Context(), llm, textchunk.SearchOptions{
		Queries:         req.Queries,
		Limit:           limit,
		Chapters:        req.Chapters,
		ExcludeChapters: req.ExcludeChapters,
		Rebuild:         req.Rebuild,
		SemanticRerank:  req.SemanticRerank,
		RerankQuery:     req.RerankQuery,
		RerankTopK:      limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) rebuildBindings(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Chapters []string `json:"chapters"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	bindings, errs := svc.Binding.RebuildAll(r.Context(), req.Chapters)
	out := struct {
		Bindings map[string]model.ChapterBinding `json:"bindings"`
		Errors   map[string]string               `json:"errors,omitempty"`
	}{Bindings: bindings}
	if len(errs) > 0 {
		out.Errors = make(map[string]string, len(errs))
		for chapter, err := range errs {
			out.Errors[chapter] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBinding(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	binding, err := svc.Store.LoadBinding(chapter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

func (s *Server) getSeedEntities(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	window := 3
	includeWorldRules := true
	seeds := svc.Binding.GetSeedEntities(pathValue(r, "chapter"), window, includeWorldRules)
	writeJSON(w, http.StatusOK, seeds)
}

type buildMemoryPackRequest struct {
	Goal         string            `json:"goal"`
	SceneBrief   *model.SceneBrief `json:"scene_brief"`
	UserFeedback string            `json:"user_feedback"`
	ForceRefresh bool              `json:"force_refresh"`
}

func (s *Server) buildMemoryPack(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	var req buildMemoryPackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pack, err := svc.MemoryPack.Ensure(r.Context(), memorypack.Request{
		Chapter:      chapter,
		Goal:         req.Goal,
		SceneBrief:   req.SceneBrief,
		UserFeedback: req.UserFeedback,
		ForceRefresh: req.ForceRefresh,
		Source:       "memory_pack_endpoint",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

// llmForSearch resolves the retrieval reranker client: nil unless the
// caller asked for semantic rerank and a gateway is configured, matching
// evidence.SearchRequest/textchunk.SearchOptions's "nil LLM disables
// rerank" contract.
func (s *Server) llmForSearch(svc *ProjectServices, semanticRerank bool) providers.LLMClient {
	if !semanticRerank || s.gw == nil {
		return nil
	}
	return s.gw.ClientForAgent("retrieval")
}
