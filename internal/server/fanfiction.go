package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jackzampolin/wenshape/internal/api"
	"github.com/jackzampolin/wenshape/internal/model"
)

// registerFanfictionRoutes implements spec.md §6.2's Fanfiction group: a
// collaborator workflow for pulling canon off an external wiki (search,
// preview, single extract, batch extract), returning CardProposal[] the
// same shape the Extractor/Archivist agents produce from a chapter's own
// prose. Grounded on internal/api.Client's JSON-over-HTTP request/response
// shape, pointed at a MediaWiki-style search/extract API rather than the
// teacher's own Shelf API.
func (s *Server) registerFanfictionRoutes(mux *http.ServeMux) {
	handle(mux, "POST", "/projects/{project}/fanfiction/search", s.searchWiki)
	handle(mux, "POST", "/projects/{project}/fanfiction/preview", s.previewWikiPage)
	handle(mux, "POST", "/projects/{project}/fanfiction/extract", s.extractWikiPage)
	handle(mux, "POST", "/projects/{project}/fanfiction/extract-batch", s.extractWikiBatch)
}

// wikiClient is a thin MediaWiki action-API client built on internal/api's
// JSON-over-HTTP Client: search and plaintext extraction, the two calls
// the Fanfiction group needs.
type wikiClient struct {
	client *api.Client
}

func newWikiClient(baseURL string) *wikiClient {
	return &wikiClient{client: api.NewClient(baseURL)}
}

type wikiSearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type wikiSearchEnvelope struct {
	Query struct {
		Search []wikiSearchHit `json:"search"`
	} `json:"query"`
}

func (c *wikiClient) search(ctx context.Context, query string, limit int) ([]wikiSearchHit, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("srlimit", fmt.Sprintf("%d", limit))
	q.Set("format", "json")

	var env wikiSearchEnvelope
	if err := c.client.Get(ctx, "?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	return env.Query.Search, nil
}

type wikiExtractEnvelope struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *wikiClient) extract(ctx context.Context, title string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("titles", title)
	q.Set("format", "json")

	var env wikiExtractEnvelope
	if err := c.client.Get(ctx, "?"+q.Encode(), &env); err != nil {
		return "", err
	}
	for _, page := range env.Query.Pages {
		if page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", nil
}

type searchWikiRequest struct {
	WikiURL string `json:"wiki_url"`
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
}

func (s *Server) searchWiki(w http.ResponseWriter, r *http.Request) {
	if _, err := s.projects.Get(pathValue(r, "project")); err != nil {
		writeError(w, err)
		return
	}
	var req searchWikiRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	hits, err := newWikiClient(req.WikiURL).search(r.Context(), req.Query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

type previewWikiRequest struct {
	WikiURL string `json:"wiki_url"`
	Title   string `json:"title"`
}

type previewWikiResponse struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

func (s *Server) previewWikiPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.projects.Get(pathValue(r, "project")); err != nil {
		writeError(w, err)
		return
	}
	var req previewWikiRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text, err := newWikiClient(req.WikiURL).extract(r.Context(), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewWikiResponse{Title: req.Title, Excerpt: truncateRunes(text, 500)})
}

type extractWikiRequest struct {
	WikiURL string `json:"wiki_url"`
	Title   string `json:"title"`
	Chapter string `json:"chapter"`
}

type extractWikiResponse struct {
	Title     string               `json:"title"`
	Proposals []model.CardProposal `json:"proposals"`
}

// extractWikiPage pulls one wiki page's plaintext and runs it through the
// Archivist's DetectProposals the same way a finalized chapter's draft
// prose is scanned, so a collaborator's wiki lore and the story's own
// canon end up as the same CardProposal shape for review.
func (s *Server) extractWikiPage(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req extractWikiRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.extractOne(r.Context(), svc, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) extractOne(ctx context.Context, svc *ProjectServices, req extractWikiRequest) (extractWikiResponse, error) {
	text, err := newWikiClient(req.WikiURL).extract(ctx, req.Title)
	if err != nil {
		return extractWikiResponse{}, err
	}
	if svc.Agents.Archivist == nil {
		return extractWikiResponse{Title: req.Title}, nil
	}
	proposals, err := svc.Agents.Archivist.DetectProposals(ctx, req.Chapter, text)
	if err != nil {
		return extractWikiResponse{}, err
	}
	return extractWikiResponse{Title: req.Title, Proposals: proposals}, nil
}

type extractWikiBatchRequest struct {
	WikiURL string   `json:"wiki_url"`
	Titles  []string `json:"titles"`
	Chapter string   `json:"chapter"`
}

func (s *Server) extractWikiBatch(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req extractWikiBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results := make([]extractWikiResponse, 0, len(req.Titles))
	for _, title := range req.Titles {
		resp, err := s.extractOne(r.Context(), svc, extractWikiRequest{WikiURL: req.WikiURL, Title: title, Chapter: req.Chapter})
		if err != nil {
			s.log.Warn("fanfiction batch extract failed", "title", title, "error", err)
			continue
		}
		results = append(results, resp)
	}
	writeJSON(w, http.StatusOK, results)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
