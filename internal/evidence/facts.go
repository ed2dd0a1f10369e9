package evidence

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/wenshape/internal/model"
)

// factItems builds one evidence item per fact, deduplicated on normalized
// text (spec.md §4.3: "one item per fact, dedup on normalized text").
func factItems(facts []model.Fact) []model.EvidenceItem {
	seen := make(map[string]bool, len(facts))
	var items []model.EvidenceItem
	for _, f := range facts {
		norm := normalizeText(f.Statement)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		items = append(items, model.EvidenceItem{
			ID:    fmt.Sprintf("fact:%s", f.ID),
			Type:  model.EvidenceFact,
			Text:  f.Statement,
			Scope: model.ScopeGlobal,
			Source: model.EvidenceSource{
				Chapter: f.Source,
				Field:   "statement",
			},
			Meta: map[string]any{
				"confidence":    f.Confidence,
				"introduced_in": f.IntroducedIn,
				"fact_id":       f.ID,
			},
		})
	}
	return items
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// summaryItems builds evidence items for one chapter summary's brief_summary,
// key_events, and open_loops, per spec.md §4.3.
func summaryItems(sum model.ChapterSummary) []model.EvidenceItem {
	var items []model.EvidenceItem
	if sum.BriefSummary != "" {
		items = append(items, model.EvidenceItem{
			ID:     fmt.Sprintf("summary:%s:brief", sum.Chapter),
			Type:   model.EvidenceSummary,
			Text:   sum.BriefSummary,
			Scope:  model.ScopeChapter,
			Source: model.EvidenceSource{Chapter: sum.Chapter, Field: "brief_summary"},
		})
	}
	for i, ev := range sum.KeyEvents {
		items = append(items, model.EvidenceItem{
			ID:     fmt.Sprintf("summary:%s:key_event:%d", sum.Chapter, i),
			Type:   model.EvidenceSummary,
			Text:   ev,
			Scope:  model.ScopeChapter,
			Source: model.EvidenceSource{Chapter: sum.Chapter, Field: "key_events", Index: i},
		})
	}
	for i, loop := range sum.OpenLoops {
		items = append(items, model.EvidenceItem{
			ID:     fmt.Sprintf("summary:%s:open_loop:%d", sum.Chapter, i),
			Type:   model.EvidenceSummary,
			Text:   loop,
			Scope:  model.ScopeChapter,
			Source: model.EvidenceSource{Chapter: sum.Chapter, Field: "open_loops", Index: i},
		})
	}
	return items
}

// volumeSummaryItem builds the volume-level brief_summary item, per
// spec.md §4.3 ("plus a volume brief_summary").
func volumeSummaryItem(v model.VolumeSummary) *model.EvidenceItem {
	if v.BriefSummary == "" {
		return nil
	}
	return &model.EvidenceItem{
		ID:     fmt.Sprintf("summary:volume:%s:brief", v.VolumeID),
		Type:   model.EvidenceSummary,
		Text:   v.BriefSummary,
		Scope:  model.ScopeVolume,
		Source: model.EvidenceSource{Chapter: v.VolumeID, Field: "brief_summary"},
	}
}
