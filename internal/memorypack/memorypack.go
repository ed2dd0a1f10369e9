// Package memorypack implements spec.md §4.7's Memory-Pack Builder (C7):
// resolving the effective research goal, deciding whether a cached pack
// can be reused, building a fresh pack via the research loop on a cache
// miss, and deriving the card snapshot attached to every pack.
//
// Grounded on no single teacher file (shelf has no research-caching
// layer); built in the teacher's explicit-struct style, reusing
// internal/chapterid for canonicalization and internal/storage's rotation
// semantics (SaveMemoryPack already rotates prior content into history/).
package memorypack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/wenshape/internal/chapterid"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
)

const (
	defaultGoalText  = "未提供"
	maxSnapshotNames = 12
	maxPerKind       = 8
)

// Researcher runs the research loop (§4.8) and returns a fresh payload.
// internal/memorypack depends on this function type rather than importing
// internal/research directly; the caller binds the research loop in.
type Researcher func(ctx context.Context, chapter, goalText string, brief model.SceneBrief, force bool) (model.MemoryPackPayload, error)

// ProgressFunc emits a structured progress event; nil is a valid no-op.
type ProgressFunc func(event model.ProgressEvent)

// Service implements ensure_memory_pack.
type Service struct {
	store    *storage.Store
	research Researcher
	progress ProgressFunc
	log      *slog.Logger
}

// New constructs a memory-pack Service.
func New(store *storage.Store, research Researcher, progress ProgressFunc, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, research: research, progress: progress, log: log}
}

// Request bundles ensure_memory_pack's optional inputs (spec.md §4.7).
type Request struct {
	Chapter      string
	Goal         string
	SceneBrief   *model.SceneBrief
	UserFeedback string
	ForceRefresh bool
	Source       string
}

// Ensure implements ensure_memory_pack: resolve the chapter id and goal
// text, reuse a cached pack when possible, else rebuild via the research
// loop, falling back to a stale pack with a "fallback" note on failure.
func (s *Service) Ensure(ctx context.Context, req Request) (model.MemoryPack, error) {
	chapter, err := chapterid.Canonical(req.Chapter)
	if err != nil {
		return model.MemoryPack{}, fmt.Errorf("memorypack: canonicalize chapter %q: %w", req.Chapter, err)
	}

	goalText := effectiveGoalText(req)

	existing, loadErr := s.store.LoadMemoryPack(chapter)
	hasExisting := loadErr == nil && !isEmptyPayload(existing.Payload)

	if !req.ForceRefresh && hasExisting {
		if len(existing.CardSnapshot.Characters) == 0 && len(existing.CardSnapshot.World) == 0 {
			existing.CardSnapshot = s.buildCardSnapshot(existing.Payload)
			if err := s.store.SaveMemoryPack(ctx, existing); err != nil {
				s.log.Warn("failed to persist enriched card snapshot", "chapter", chapter, "error", err)
			}
		}
		s.emit(req.Source, chapter, "memory_pack", nil)
		return existing, nil
	}

	var brief model.SceneBrief
	if req.SceneBrief != nil {
		brief = *req.SceneBrief
	}

	payload, err := s.research(ctx, chapter, goalText, brief, req.ForceRefresh)
	if err != nil {
		if hasExisting {
			existing.Payload.ResearchStopReason = stringOr(existing.Payload.ResearchStopReason, "fallback")
			s.log.Warn("memory pack refresh failed, reusing prior pack", "chapter", chapter, "error", err)
			return existing, nil
		}
		return model.MemoryPack{}, fmt.Errorf("memorypack: research loop failed for %s: %w", chapter, err)
	}

	pack := model.MemoryPack{
		Chapter:     chapter,
		Source:      req.Source,
		ChapterGoal: goalText,
		Payload:     payload,
	}
	if req.SceneBrief != nil {
		pack.SceneBrief = model.MemoryPackSceneBrief{Title: req.SceneBrief.Title, Goal: req.SceneBrief.Goal}
	}
	pack.CardSnapshot = s.buildCardSnapshot(payload)

	if err := s.store.SaveMemoryPack(ctx, pack); err != nil {
		return model.MemoryPack{}, fmt.Errorf("memorypack: save pack for %s: %w", chapter, err)
	}
	s.emit(req.Source, chapter, "记忆包已更新", nil)
	return pack, nil
}

// effectiveGoalText resolves goal_text per spec.md §4.7 step 2:
// goal ?? scene_brief.goal ?? feedback, appending the feedback note when
// it is not already contained in the resolved goal, defaulting to 未提供.
func effectiveGoalText(req Request) string {
	goal := strings.TrimSpace(req.Goal)
	if goal == "" && req.SceneBrief != nil {
		goal = strings.TrimSpace(req.SceneBrief.Goal)
	}
	feedback := strings.TrimSpace(req.UserFeedback)
	if goal == "" {
		goal = feedback
	}
	if goal == "" {
		return defaultGoalText
	}
	if feedback != "" && !strings.Contains(goal, feedback) {
		goal = goal + "\n\n用户最新指令：" + feedback
	}
	return goal
}

func isEmptyPayload(p model.MemoryPackPayload) bool {
	return p.WorkingMemory == "" && len(p.EvidencePack) == 0
}

func stringOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (s *Service) emit(source, chapter, stage string, payload map[string]any) {
	if s.progress == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if source != "" {
		payload["source"] = source
	}
	s.progress(model.ProgressEvent{
		Type:    "memory_pack",
		Chapter: chapter,
		Stage:   stage,
		Payload: payload,
	})
}
