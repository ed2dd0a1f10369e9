package research

import (
	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/model"
)

// minSufficientHits is the heuristic floor below which a round's evidence
// pack is considered too thin to write from. Treated as tunable
// configuration rather than a load-bearing constant; spec.md leaves the
// exact sufficiency heuristic unspecified beyond "a sufficiency_report".
const minSufficientHits = 3

// evaluateSufficiency is the rule-based sufficiency_report fallback: a
// round with at least minSufficientHits evidence items spanning more than
// one source type is considered sufficient; otherwise it reports which
// evidence types are still thin.
func evaluateSufficiency(goal string, result evidence.SearchResult) model.SufficiencyReport {
	if len(result.Items) >= minSufficientHits && len(result.Stats.Types) > 1 {
		return model.SufficiencyReport{Sufficient: true, Reasoning: "retrieved enough evidence across multiple types"}
	}

	var missing []string
	for _, t := range []string{"fact", "summary", "world_rule", "world_entity"} {
		if result.Stats.Types[t] == 0 {
			missing = append(missing, t)
		}
	}

	return model.SufficiencyReport{
		Sufficient:      false,
		Reasoning:       "fewer than the minimum evidence hits were retrieved",
		MissingEntities: missing,
		NeedsUserInput:  len(result.Items) == 0 && goal == "",
	}
}
