package evidence

import (
	"sort"

	"github.com/jackzampolin/wenshape/internal/config"
	"github.com/jackzampolin/wenshape/internal/model"
)

// DefaultQuotas returns config.DefaultConfig's Quotas map, as a fallback
// so callers that don't have a *config.Config handy (tests,
// offline tools) still get spec.md §4.3's named defaults.
func DefaultQuotas() map[string]config.Quota {
	return config.DefaultConfig().Quotas
}

// scored pairs an evidence item with its computed score, used internally
// by applyTypeQuotas.
type scored struct {
	item  model.EvidenceItem
	score float64
}

// applyTypeQuotas implements spec.md §4.3's two-phase quota selection:
// Phase A takes up to quotas[t].Min highest-scored items of each type
// (subject to the global limit); Phase B fills remaining slots globally by
// score, rejecting a candidate once counts[t] >= quotas[t].Max.
func applyTypeQuotas(candidates []scored, quotas map[string]config.Quota, limit int) []scored {
	byType := make(map[model.EvidenceType][]scored)
	for _, c := range candidates {
		byType[c.item.Type] = append(byType[c.item.Type], c)
	}
	for t := range byType {
		sort.SliceStable(byType[t], func(i, j int) bool { return byType[t][i].score > byType[t][j].score })
	}

	taken := make(map[string]bool)
	counts := make(map[model.EvidenceType]int)
	var out []scored

	addItem := func(c scored) {
		out = append(out, c)
		taken[c.item.ID] = true
		counts[c.item.Type]++
	}

	// Phase A: per-type minimums.
	for t, items := range byType {
		q := quotas[string(t)]
		n := q.Min
		if n > len(items) {
			n = len(items)
		}
		for i := 0; i < n; i++ {
			if limit > 0 && len(out) >= limit {
				break
			}
			addItem(items[i])
		}
	}

	// Phase B: fill remaining slots globally by score, honoring max caps.
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	for _, c := range candidates {
		if limit > 0 && len(out) >= limit {
			break
		}
		if taken[c.item.ID] {
			continue
		}
		q, hasQuota := quotas[string(c.item.Type)]
		if hasQuota && counts[c.item.Type] >= q.Max {
			continue
		}
		addItem(c)
	}

	return out
}
