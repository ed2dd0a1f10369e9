package analysis

import (
	"context"
	"fmt"
)

// extractCanon runs the archivist's canon extraction, returning an empty
// extraction (never an error) when no archivist is configured or the call
// fails, since canon extraction has no reliable algorithmic fallback the
// way chapter summaries do.
func (p *Pipeline) extractCanon(ctx context.Context, chapter, content string) CanonExtraction {
	if p.archivist == nil {
		return CanonExtraction{}
	}
	extraction, err := p.archivist.ExtractCanon(ctx, chapter, content)
	if err != nil {
		p.log.Warn("analysis: archivist canon extraction failed", "error", err, "chapter", chapter)
		return CanonExtraction{}
	}
	if len(extraction.Facts) > maxFactsPerChapter {
		extraction.Facts = extraction.Facts[:maxFactsPerChapter]
	}
	return extraction
}

// persistCanon assigns fact ids by probing the existing fact count, then
// appends facts/timeline events/character states via C2's append-only
// semantics (spec.md §4.11 step 3).
func (p *Pipeline) persistCanon(ctx context.Context, chapter string, extraction CanonExtraction) error {
	if len(extraction.Facts) > 0 {
		existing, err := p.store.LoadFacts()
		if err != nil {
			return err
		}
		next := len(existing) + 1
		for _, fact := range extraction.Facts {
			if fact.ID == "" {
				fact.ID = fmt.Sprintf("F%04d", next)
				next++
			}
			if fact.Source == "" {
				fact.Source = chapter
			}
			if fact.IntroducedIn == "" {
				fact.IntroducedIn = chapter
			}
			if err := p.store.AppendFact(ctx, fact); err != nil {
				return err
			}
		}
	}

	for _, ev := range extraction.Timeline {
		if ev.Source == "" {
			ev.Source = chapter
		}
		if err := p.store.AppendTimelineEvent(ctx, ev); err != nil {
			return err
		}
	}

	for _, st := range extraction.States {
		if st.LastSeen == "" {
			st.LastSeen = chapter
		}
		if err := p.store.AppendCharacterState(ctx, st); err != nil {
			return err
		}
	}

	return nil
}
