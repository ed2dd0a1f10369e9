// Package analysis implements spec.md §4.11's Analysis Pipeline: the
// post-finalize chapter summary → volume summary → canon extraction →
// conflict detection → card proposal sweep, plus its batch-sync driver.
//
// Grounded on no single teacher file (shelf has no canon/continuity
// layer); built in the same Store-backed, explicit-struct style as
// internal/binding (its closest sibling: both are "derive structured
// facts from a chapter's prose" services), reusing
// internal/chapterid.Sort/Distance for batch ordering and conflict
// distance checks.
package analysis

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/wenshape/internal/binding"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
)

// CanonExtraction is the archivist's structured output for one chapter's
// new canon (spec.md §4.11 step 3).
type CanonExtraction struct {
	Facts      []model.Fact
	Timeline   []model.TimelineEvent
	States     []model.CharacterState
	Proposals  []model.CardProposal
	FocusNames []string // characters the archivist judges central to this chapter
}

// Archivist is the narrow LLM-backed capability the Analysis Pipeline
// needs. Satisfied by internal/agents' archivist agent.
type Archivist interface {
	GenerateChapterSummary(ctx context.Context, chapter, draftContent string) (model.ChapterSummary, error)
	GenerateVolumeSummary(ctx context.Context, volumeID string, chapters []model.ChapterSummary) (model.VolumeSummary, error)
	ExtractCanon(ctx context.Context, chapter, draftContent string) (CanonExtraction, error)
}

// maxFactsPerChapter is spec.md §4.11 step 3's cap.
const maxFactsPerChapter = 5

// Pipeline runs the Analysis Pipeline against one project's storage.
type Pipeline struct {
	store     *storage.Store
	binding   *binding.Service
	archivist Archivist
	progress  func(model.ProgressEvent)
	log       *slog.Logger
}

// New constructs a Pipeline.
func New(store *storage.Store, bindingSvc *binding.Service, archivist Archivist, progress func(model.ProgressEvent), log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{store: store, binding: bindingSvc, archivist: archivist, progress: progress, log: log}
}

func (p *Pipeline) emit(stage, chapter string, payload map[string]any) {
	if p.progress == nil {
		return
	}
	p.progress(model.ProgressEvent{Type: "analysis", Chapter: chapter, Stage: stage, Payload: payload})
}

// AnalyzeChapter runs spec.md §4.11 steps 1-5 for a single chapter:
// summary, volume-summary refresh, canon extraction, conflict detection,
// and proposal detection. It satisfies internal/session.Analyzer.
func (p *Pipeline) AnalyzeChapter(ctx context.Context, chapter string) error {
	volumeID, _, err := p.analyzeOne(ctx, chapter, false)
	if err != nil {
		return err
	}
	return p.refreshVolumeSummaries(ctx, map[string]bool{volumeID: true})
}

// analyzeOne runs one chapter's analysis and reports which volume it
// touched and which characters the archivist judged central to it, for
// batch-sync's "refresh each touched volume once" and focus-character
// binding steps.
func (p *Pipeline) analyzeOne(ctx context.Context, chapter string, overwriteProposals bool) (string, []string, error) {
	content, err := p.store.LoadLatestDraft(chapter)
	if err != nil {
		return "", nil, err
	}

	summary := p.generateSummary(ctx, chapter, content)
	if err := p.store.SaveChapterSummary(ctx, summary); err != nil {
		return "", nil, err
	}
	p.emit("chapter_summary", chapter, map[string]any{"word_count": summary.WordCount})

	extraction := p.extractCanon(ctx, chapter, content)

	if err := p.persistCanon(ctx, chapter, extraction); err != nil {
		return "", nil, err
	}
	p.emit("canon_extracted", chapter, map[string]any{"facts": len(extraction.Facts), "timeline": len(extraction.Timeline), "states": len(extraction.States)})

	conflicts, err := p.detectConflicts(chapter, extraction)
	if err != nil {
		return "", nil, err
	}
	if err := p.store.SaveConflicts(ctx, chapter, conflicts); err != nil {
		return "", nil, err
	}
	if len(conflicts) > 0 {
		p.emit("conflicts_detected", chapter, map[string]any{"count": len(conflicts)})
	}

	if err := p.applyProposals(ctx, extraction.Proposals, overwriteProposals); err != nil {
		return "", nil, err
	}
	if len(extraction.Proposals) > 0 {
		p.emit("proposals", chapter, map[string]any{"count": len(extraction.Proposals)})
	}

	return summary.VolumeID, extraction.FocusNames, nil
}
