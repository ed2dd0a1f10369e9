package analysis

import (
	"context"
	"strings"

	"github.com/jackzampolin/wenshape/internal/chapterid"
	"github.com/jackzampolin/wenshape/internal/model"
)

// fallbackSummaryChars is how much of the draft the heuristic fallback
// keeps when the archivist is unavailable or fails (spec.md §4.11 step 1
// "fallback to a brief = truncated draft content + heuristics").
const fallbackSummaryChars = 400

// generateSummary runs the archivist's chapter-summary call, falling back
// to a truncated-draft heuristic on any failure.
func (p *Pipeline) generateSummary(ctx context.Context, chapter, content string) model.ChapterSummary {
	if p.archivist != nil {
		summary, err := p.archivist.GenerateChapterSummary(ctx, chapter, content)
		if err == nil {
			if summary.VolumeID == "" {
				summary.VolumeID = chapterid.ExtractVolume(chapter)
			}
			summary.Chapter = chapter
			summary.WordCount = wordCount(content)
			return summary
		}
		p.log.Warn("analysis: archivist chapter summary failed, falling back to heuristic", "error", err, "chapter", chapter)
	}
	return heuristicSummary(chapter, content)
}

// heuristicSummary builds a ChapterSummary without any LLM call: the
// brief is the first fallbackSummaryChars characters of the draft, and
// key_events/open_loops are left empty since no extraction ran.
func heuristicSummary(chapter, content string) model.ChapterSummary {
	brief := strings.TrimSpace(content)
	runes := []rune(brief)
	if len(runes) > fallbackSummaryChars {
		brief = string(runes[:fallbackSummaryChars]) + "..."
	}
	return model.ChapterSummary{
		Chapter:      chapter,
		VolumeID:     chapterid.ExtractVolume(chapter),
		WordCount:    wordCount(content),
		BriefSummary: brief,
	}
}

// refreshVolumeSummaries regenerates the VolumeSummary for each volume in
// touched, once per volume regardless of how many of its chapters were
// analyzed in this batch (spec.md §4.11 step 2).
func (p *Pipeline) refreshVolumeSummaries(ctx context.Context, touched map[string]bool) error {
	for volumeID := range touched {
		if volumeID == "" {
			continue
		}
		if err := p.refreshOneVolume(ctx, volumeID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) refreshOneVolume(ctx context.Context, volumeID string) error {
	all, err := p.store.ListChapterSummaries()
	if err != nil {
		return err
	}
	var inVolume []model.ChapterSummary
	for _, s := range all {
		if s.VolumeID == volumeID {
			inVolume = append(inVolume, s)
		}
	}

	var vs model.VolumeSummary
	if p.archivist != nil {
		vs, err = p.archivist.GenerateVolumeSummary(ctx, volumeID, inVolume)
		if err != nil {
			p.log.Warn("analysis: archivist volume summary failed, falling back to heuristic", "error", err, "volume", volumeID)
			vs = heuristicVolumeSummary(volumeID, inVolume)
		}
	} else {
		vs = heuristicVolumeSummary(volumeID, inVolume)
	}
	vs.VolumeID = volumeID
	vs.ChapterCount = len(inVolume)

	if err := p.store.SaveVolumeSummary(ctx, vs); err != nil {
		return err
	}
	p.emit("volume_summary", "", map[string]any{"volume_id": volumeID, "chapter_count": len(inVolume)})
	return nil
}

func heuristicVolumeSummary(volumeID string, chapters []model.ChapterSummary) model.VolumeSummary {
	var events []string
	for _, c := range chapters {
		events = append(events, c.KeyEvents...)
		if len(events) >= 10 {
			break
		}
	}
	return model.VolumeSummary{VolumeID: volumeID, MajorEvents: events}
}

// wordCount approximates word_count for mixed CJK/ASCII prose: each CJK
// ideograph counts as one word; ASCII runs separated by whitespace count
// as one word each.
func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			n++
			inWord = false
			continue
		}
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '　' {
			inWord = false
			continue
		}
		if !inWord {
			n++
		}
		inWord = true
	}
	return n
}
