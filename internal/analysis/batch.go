package analysis

import (
	"context"

	"github.com/jackzampolin/wenshape/internal/chapterid"
)

// Report summarizes one BatchSync run.
type Report struct {
	ChaptersAnalyzed []string
	VolumesRefreshed []string
	Errors           map[string]error
}

// BatchSync re-runs analysis across a full set of chapters in chapter
// order (spec.md §4.11's batch-sync driver): summary/canon/conflict/
// proposal for each chapter (with overwrite=true, unlike the single-
// chapter AnalyzeChapter path), a forced focus-character rebuild of each
// chapter's binding, and a single refresh per touched volume at the end.
func (p *Pipeline) BatchSync(ctx context.Context, chapters []string) (Report, error) {
	ordered := chapterid.Sort(append([]string{}, chapters...))

	report := Report{Errors: make(map[string]error)}
	touchedVolumes := make(map[string]bool)
	focusByChapter := make(map[string][]string, len(ordered))

	for _, chapter := range ordered {
		volumeID, focusNames, err := p.analyzeOne(ctx, chapter, true)
		if err != nil {
			report.Errors[chapter] = err
			continue
		}
		report.ChaptersAnalyzed = append(report.ChaptersAnalyzed, chapter)
		touchedVolumes[volumeID] = true
		focusByChapter[chapter] = focusNames
	}

	if p.binding != nil {
		if err := p.rebuildBindings(ctx, report.ChaptersAnalyzed, focusByChapter); err != nil {
			return report, err
		}
	}

	if err := p.refreshVolumeSummaries(ctx, touchedVolumes); err != nil {
		return report, err
	}
	for volumeID := range touchedVolumes {
		if volumeID != "" {
			report.VolumesRefreshed = append(report.VolumesRefreshed, volumeID)
		}
	}

	return report, nil
}

// rebuildBindings rebuilds every analyzed chapter's binding, then merges
// in the chapter's focus characters: the archivist's judgment when
// available (extraction.FocusNames), falling back to the binding
// service's algorithmic name extraction over the chapter's own draft text.
func (p *Pipeline) rebuildBindings(ctx context.Context, chapters []string, focusByChapter map[string][]string) error {
	bindings, bindErrs := p.binding.RebuildAll(ctx, chapters)
	for chapter, err := range bindErrs {
		p.log.Warn("analysis: binding rebuild failed", "error", err, "chapter", chapter)
	}

	for chapter, b := range bindings {
		focus := focusByChapter[chapter]
		if len(focus) == 0 {
			content, err := p.store.LoadLatestDraft(chapter)
			if err == nil {
				focus = p.binding.ExtractEntitiesFromText(content).Characters
			}
		}
		if len(focus) == 0 {
			continue
		}
		merged := mergeNames(b.Characters, focus)
		if len(merged) == len(b.Characters) {
			continue
		}
		b.Characters = merged
		if err := p.store.SaveBinding(ctx, b); err != nil {
			return err
		}
		p.emit("binding_refreshed", chapter, map[string]any{"characters": len(b.Characters)})
	}
	return nil
}

func mergeNames(existing, additions []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string{}, existing...)
	for _, name := range existing {
		seen[name] = true
	}
	for _, name := range additions {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
