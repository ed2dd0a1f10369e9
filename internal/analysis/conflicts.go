package analysis

import (
	"strings"
	"unicode"

	"github.com/jackzampolin/wenshape/internal/chapterid"
	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/model"
)

// detectConflicts implements spec.md §4.11 step 4's three conflict
// detectors: fact contradictions, timeline disagreements, and character
// state jumps that are too close together to be plausible.
func (p *Pipeline) detectConflicts(chapter string, extraction CanonExtraction) ([]model.Conflict, error) {
	var conflicts []model.Conflict

	existingFacts, err := p.store.LoadFacts()
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, detectFactConflicts(chapter, extraction.Facts, existingFacts)...)

	existingTimeline, err := p.store.LoadTimeline()
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, detectTimelineConflicts(chapter, extraction.Timeline, existingTimeline)...)

	stateConflicts, err := p.detectStateConflicts(chapter, extraction.States)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, stateConflicts...)

	return conflicts, nil
}

func detectFactConflicts(chapter string, newFacts, existingFacts []model.Fact) []model.Conflict {
	var out []model.Conflict
	for _, nf := range newFacts {
		newTokens := tokenize(nf.Statement)
		for _, ef := range existingFacts {
			if ef.Statement == nf.Statement {
				continue
			}
			existingTokens := tokenize(ef.Statement)
			overlap := overlapCount(newTokens, existingTokens)
			threshold := 6
			if m := minInt(len(newTokens), len(existingTokens)) / 3; m > threshold {
				threshold = m
			}
			if overlap < threshold {
				continue
			}
			if evidence.HasNegation(nf.Statement) == evidence.HasNegation(ef.Statement) {
				continue
			}
			out = append(out, model.Conflict{
				Kind:        model.ConflictFact,
				Chapter:     chapter,
				Description: "new fact disagrees with an existing fact: " + nf.Statement + " vs " + ef.Statement,
				ExistingRef: ef.ID,
				NewRef:      nf.ID,
			})
		}
	}
	return out
}

func detectTimelineConflicts(chapter string, newEvents, existingEvents []model.TimelineEvent) []model.Conflict {
	var out []model.Conflict
	for _, ne := range newEvents {
		for _, ee := range existingEvents {
			if normalizeField(ne.Time) == "" || normalizeField(ne.Time) != normalizeField(ee.Time) {
				continue
			}
			if !participantsOverlap(ne.Participants, ee.Participants) {
				continue
			}
			sameEvent := normalizeField(ne.Event) == normalizeField(ee.Event)
			sameLocation := normalizeField(ne.Location) == normalizeField(ee.Location)
			if sameEvent && sameLocation {
				continue
			}
			out = append(out, model.Conflict{
				Kind:        model.ConflictTimeline,
				Chapter:     chapter,
				Description: "timeline event at " + ne.Time + " disagrees with an existing event: " + ne.Event + " vs " + ee.Event,
				ExistingRef: ee.Source,
				NewRef:      chapter,
			})
		}
	}
	return out
}

func (p *Pipeline) detectStateConflicts(chapter string, newStates []model.CharacterState) ([]model.Conflict, error) {
	currentID, err := chapterid.Parse(chapter)
	if err != nil {
		return nil, nil
	}
	var out []model.Conflict
	for _, ns := range newStates {
		if ns.Location == "" {
			continue
		}
		prior, err := p.store.CurrentCharacterState(ns.Character)
		if err != nil {
			continue // no prior state: nothing to conflict with
		}
		if prior.Location == "" || prior.Location == ns.Location || prior.LastSeen == "" {
			continue
		}
		priorID, err := chapterid.Parse(prior.LastSeen)
		if err != nil {
			continue
		}
		if chapterid.Distance(priorID, currentID, 15) > 1 {
			continue
		}
		out = append(out, model.Conflict{
			Kind:        model.ConflictState,
			Chapter:     chapter,
			Description: ns.Character + " jumps from " + prior.Location + " to " + ns.Location + " too soon after " + prior.LastSeen,
			ExistingRef: prior.LastSeen,
			NewRef:      chapter,
		})
	}
	return out, nil
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func participantsOverlap(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, p := range a {
		set[normalizeField(p)] = true
	}
	for _, p := range b {
		if set[normalizeField(p)] {
			return true
		}
	}
	return false
}

// tokenize splits text into comparable tokens: each CJK ideograph is its
// own token; ASCII letters/digits are grouped into words.
func tokenize(s string) []string {
	var tokens []string
	var buf []rune
	flush := func() {
		if len(buf) > 0 {
			tokens = append(tokens, strings.ToLower(string(buf)))
			buf = buf[:0]
		}
	}
	for _, r := range s {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF:
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			buf = append(buf, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func overlapCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	n := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if set[t] && !seen[t] {
			n++
			seen[t] = true
		}
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
