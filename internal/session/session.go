// Package session implements spec.md §4.9's Session Orchestrator: the
// archivist → writer → editor state machine that drives one chapter from
// a bare goal to a confirmed final.md, including question/answer
// interleaving, streaming draft emission, and cancellation.
//
// Grounded on the teacher's job-orchestration style in internal/jobs
// (a mutex-guarded struct tracking one active run, emitting progress
// through a callback rather than a return value) generalized from a
// single linear pipeline to spec.md's branching state machine.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/wenshape/internal/apperr"
	"github.com/jackzampolin/wenshape/internal/memorypack"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
)

// Defaults from spec.md §4.9.
const (
	DefaultMaxIterations     = 5
	DefaultMaxQuestionRounds = 2
	DefaultMaxResearchRounds = 5

	// rewriteThresholdChars is process_feedback's draft_len<=500 branch
	// point between the "rewrite" and "editor revise" paths.
	rewriteThresholdChars = 500

	maxPendingConfirmations = 12
)

// TokenFunc receives one streamed draft chunk.
type TokenFunc func(chunk string)

// BriefRequest is the archivist's brief-generation input.
type BriefRequest struct {
	Chapter       string
	GoalHint      string
	UserAnswers   []string
	QuestionRound int
}

// BriefResult is the archivist's brief-generation output.
type BriefResult struct {
	Brief          model.SceneBrief
	Questions      []string
	NeedsUserInput bool
}

// Archivist generates scene briefs and detects card proposals from prose.
// Satisfied by internal/agents' archivist agent.
type Archivist interface {
	GenerateBrief(ctx context.Context, req BriefRequest) (BriefResult, error)
	DetectProposals(ctx context.Context, chapter, content string) ([]model.CardProposal, error)
}

// DraftRequest is the writer's drafting input.
type DraftRequest struct {
	Chapter      string
	Brief        model.SceneBrief
	MemoryPack   model.MemoryPack
	UserFeedback string
}

// DraftResult is the writer's drafting output.
type DraftResult struct {
	Content       string
	Confirmations []string
}

// Writer produces chapter prose, streamed or not. Satisfied by
// internal/agents' writer agent.
type Writer interface {
	StreamDraft(ctx context.Context, req DraftRequest, onToken TokenFunc) (DraftResult, error)
	WriteDraft(ctx context.Context, req DraftRequest) (DraftResult, error)
}

// ReviseRequest is the editor's revision input, used by both the
// persistent revise path and the non-persistent suggest_edit path.
type ReviseRequest struct {
	Chapter          string
	Content          string
	UserFeedback     string
	RejectedEntities []string
	MemoryPack       model.MemoryPack
}

// Editor revises drafts in place or suggests a revision without
// persisting it. Satisfied by internal/agents' editor agent.
type Editor interface {
	Revise(ctx context.Context, req ReviseRequest) (string, error)
	SuggestRevision(ctx context.Context, req ReviseRequest) (string, error)
}

// Analyzer runs spec.md §4.11's post-finalize pipeline. Satisfied by
// internal/analysis. Failures are logged, never fatal (spec.md §4.9
// "Finalize").
type Analyzer interface {
	AnalyzeChapter(ctx context.Context, chapter string) error
}

// ProgressFunc emits a structured progress event; nil is a valid no-op.
type ProgressFunc func(event model.ProgressEvent)

// Orchestrator is the per-process session state machine. Only one session
// runs at a time (spec.md §4.9 "Concurrency"): starting a new one while
// another is active cancels the prior run's context and then overwrites
// the tracked state.
type Orchestrator struct {
	mu sync.Mutex

	store       *storage.Store
	memoryPacks *memorypack.Service
	archivist   Archivist
	writer      Writer
	editor      Editor
	analyzer    Analyzer
	progress    ProgressFunc
	log         *slog.Logger

	maxIterations     int
	maxQuestionRounds int

	state   model.SessionState
	cancel  context.CancelFunc
	goal    string
	brief   model.SceneBrief
	pack    model.MemoryPack
	version string

	wg sync.WaitGroup
}

// Config carries the tunable caps of spec.md §4.9; zero values fall back
// to the spec's defaults.
type Config struct {
	MaxIterations     int
	MaxQuestionRounds int
}

// New constructs an Orchestrator. store and memoryPacks are required;
// analyzer may be nil (analysis is skipped, never fatal).
func New(store *storage.Store, memoryPacks *memorypack.Service, archivist Archivist, writer Writer, editor Editor, analyzer Analyzer, progress ProgressFunc, log *slog.Logger, cfg Config) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxQuestionRounds <= 0 {
		cfg.MaxQuestionRounds = DefaultMaxQuestionRounds
	}
	return &Orchestrator{
		store:             store,
		memoryPacks:       memoryPacks,
		archivist:         archivist,
		writer:            writer,
		editor:            editor,
		analyzer:          analyzer,
		progress:          progress,
		log:               log,
		maxIterations:     cfg.MaxIterations,
		maxQuestionRounds: cfg.MaxQuestionRounds,
		state:             model.SessionState{Status: model.StatusIdle},
	}
}

// State returns a snapshot of the current session state.
func (o *Orchestrator) State() model.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Wait blocks until the currently running background phase (brief
// generation or draft streaming) has completed. Test-only convenience;
// production callers observe progress via the progress bus instead.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) emit(evt model.ProgressEvent) {
	if o.progress == nil {
		return
	}
	o.mu.Lock()
	evt.ProjectID = o.state.ProjectID
	evt.Chapter = o.state.Chapter
	o.mu.Unlock()
	evt.Timestamp = time.Now()
	o.progress(evt)
}

func (o *Orchestrator) setStatus(status model.SessionStatus) {
	o.mu.Lock()
	o.state.Status = status
	round := o.state.ResearchRound
	o.mu.Unlock()
	o.emit(model.ProgressEvent{Type: "status", Status: string(status), Round: round})
}

func (o *Orchestrator) fail(op string, err error) {
	o.mu.Lock()
	o.state.Status = model.StatusError
	projectID, chapter := o.state.ProjectID, o.state.Chapter
	o.mu.Unlock()
	o.log.Error("session: "+op+" failed", "error", err, "project", projectID, "chapter", chapter)
	o.emit(model.ProgressEvent{Type: "error", Status: string(model.StatusError), Payload: map[string]any{"op": op, "error": err.Error()}})
}

// Cancel cancels the active stream task (if any), sets status to idle,
// and broadcasts an idle progress event. It does not roll back any
// already-persisted state (spec.md §4.9 "Cancellation").
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state.Status = model.StatusIdle
	o.mu.Unlock()
	o.emit(model.ProgressEvent{Type: "status", Status: string(model.StatusIdle)})
}

func maxIterationsErr() error {
	return &apperr.AgentError{Agent: "session", Kind: apperr.AgentErrMaxIterations, Err: errMaxIterations}
}

var errMaxIterations = errors.New("maximum iterations reached")
