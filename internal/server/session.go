package server

import (
	"net/http"
)

// registerSessionRoutes implements spec.md §6.2's Session group: the
// orchestrator's state-machine entry points (start/answer-questions/
// feedback/suggest-edit/cancel/status), plus the Analysis Pipeline's
// single-chapter and batch-sync drivers, which share the session's
// per-project lifecycle rather than getting their own resource group.
func (s *Server) registerSessionRoutes(mux *http.ServeMux) {
	handle(mux, "POST", "/projects/{project}/session/start", s.startSession)
	handle(mux, "POST", "/projects/{project}/session/answer-questions", s.answerQuestions)
	handle(mux, "POST", "/projects/{project}/session/feedback", s.processFeedback)
	handle(mux, "POST", "/projects/{project}/session/edit-suggest", s.suggestEdit)
	handle(mux, "POST", "/projects/{project}/session/cancel", s.cancelSession)
	handle(mux, "GET", "/projects/{project}/session/status", s.sessionStatus)

	handle(mux, "POST", "/projects/{project}/session/analyze", s.analyzeChapter)
	handle(mux, "POST", "/projects/{project}/session/save-analysis", s.analyzeChapter)
	handle(mux, "POST", "/projects/{project}/session/analyze-sync", s.analyzeChapter)
	handle(mux, "POST", "/projects/{project}/session/analyze-batch", s.analyzeBatch)
	handle(mux, "POST", "/projects/{project}/session/save-analysis-batch", s.analyzeBatch)
}

// startSessionRequest mirrors spec.md §6.2's start body; chapter_title,
// target_word_count, and character_names have no home in
// session.Orchestrator.Start's (projectID, chapter, goal) signature, so
// they're accepted for wire compatibility and folded into the goal hint
// rather than silently rejected by decodeJSON's DisallowUnknownFields.
type startSessionRequest struct {
	Chapter         string   `json:"chapter"`
	ChapterTitle    string   `json:"chapter_title"`
	ChapterGoal     string   `json:"chapter_goal"`
	TargetWordCount int      `json:"target_word_count"`
	CharacterNames  []string `json:"character_names"`
}

func (req startSessionRequest) goalText() string {
	goal := req.ChapterGoal
	if req.ChapterTitle != "" {
		goal = req.ChapterTitle + ": " + goal
	}
	return goal
}

// startSession kicks off session.Orchestrator.Start, which runs its brief
// generation in the background and reports progress over the project's
// trace bus; the caller polls sessionStatus or subscribes to /ws for
// updates rather than blocking on this request.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req startSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc.Orchestrator.Start(svc.ID, req.Chapter, req.goalText())
	writeJSON(w, http.StatusAccepted, svc.Orchestrator.State())
}

// answerItem mirrors spec.md §6.2's {type,key?,question?,answer} shape;
// only Answer feeds session.Orchestrator.AnswerQuestions, which tracks
// question identity/order internally rather than taking it back from the
// client.
type answerItem struct {
	Type     string `json:"type"`
	Key      string `json:"key"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type answerQuestionsRequest struct {
	Chapter string       `json:"chapter"`
	Answers []answerItem `json:"answers"`
}

func (s *Server) answerQuestions(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req answerQuestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	answers := make([]string, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = a.Answer
	}
	if err := svc.Orchestrator.AnswerQuestions(answers); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, svc.Orchestrator.State())
}

// processFeedbackRequest mirrors spec.md §6.2's feedback body; Chapter is
// accepted for wire compatibility but unused — ProcessFeedback always
// acts on the orchestrator's current in-flight chapter.
type processFeedbackRequest struct {
	Chapter          string   `json:"chapter"`
	Feedback         string   `json:"feedback"`
	Action           string   `json:"action"`
	RejectedEntities []string `json:"rejected_entities"`
}

func (s *Server) processFeedback(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req processFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := svc.Orchestrator.ProcessFeedback(r.Context(), req.Action, req.Feedback, req.RejectedEntities); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, svc.Orchestrator.State())
}

// suggestEditRequest/Response mirror spec.md §6.2's edit-suggest contract:
// {content, instruction, rejected_entities?, context_mode} in,
// {revised_content, word_count} out. Chapter is accepted for wire
// compatibility but unused, the same as processFeedbackRequest's.
type suggestEditRequest struct {
	Chapter          string   `json:"chapter"`
	Content          string   `json:"content"`
	Instruction      string   `json:"instruction"`
	ContextMode      string   `json:"context_mode"`
	RejectedEntities []string `json:"rejected_entities"`
}

type suggestEditResponse struct {
	RevisedContent string `json:"revised_content"`
	WordCount      int    `json:"word_count"`
}

func (s *Server) suggestEdit(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req suggestEditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	revised, wordCount, err := svc.Orchestrator.SuggestEdit(r.Context(), req.Content, req.Instruction, req.ContextMode, req.RejectedEntities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestEditResponse{RevisedContent: revised, WordCount: wordCount})
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	svc.Orchestrator.Cancel()
	writeJSON(w, http.StatusOK, svc.Orchestrator.State())
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc.Orchestrator.State())
}

// analyzeChapterRequest carries the chapter identifier in the body rather
// than the path, since /session/analyze and friends sit under the
// session group rather than taking a {chapter} wildcard.
type analyzeChapterRequest struct {
	Chapter string `json:"chapter"`
}

// analyzeChapter runs the Analysis Pipeline for one chapter synchronously;
// unlike session, there's no long-running async contract here, so the
// handler just blocks for the pipeline's summary/canon/conflict pass.
func (s *Server) analyzeChapter(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	if svc.Analysis == nil {
		writeError(w, errAnalysisUnavailable)
		return
	}
	var req analyzeChapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := svc.Analysis.AnalyzeChapter(r.Context(), req.Chapter); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chapter": req.Chapter, "status": "analyzed"})
}

type analyzeBatchRequest struct {
	Chapters []string `json:"chapters"`
}

func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	if svc.Analysis == nil {
		writeError(w, errAnalysisUnavailable)
		return
	}
	var req analyzeBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := svc.Analysis.BatchSync(r.Context(), req.Chapters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

var errAnalysisUnavailable = analysisUnavailableError{}

type analysisUnavailableError struct{}

func (analysisUnavailableError) Error() string {
	return "analysis pipeline unavailable: no archivist configured"
}
