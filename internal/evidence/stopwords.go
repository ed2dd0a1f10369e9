package evidence

import "strings"

// genericTerms is the stop set referenced by spec.md §4.3/§4.5 ("not in
// generic-term stop set") for filtering card-name/world-entity candidates
// that are too generic to be useful retrieval seeds or binding candidates.
// Grounded on original_source/utils/stopwords.py per SPEC_FULL.md's
// supplemented-features section; kept as plain configuration data rather
// than a loaded file since spec.md treats it as "configuration, not code".
var genericTerms = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"he": true, "she": true, "it": true, "they": true, "we": true, "you": true,
	"man": true, "woman": true, "person": true, "thing": true, "place": true,
	"world": true, "story": true, "chapter": true, "scene": true,
	"他": true, "她": true, "它": true, "他们": true, "她们": true, "我们": true,
	"这个": true, "那个": true, "这里": true, "那里": true, "这": true, "那": true,
	"人": true, "事情": true, "地方": true, "世界": true, "故事": true, "章节": true,
}

// IsGenericTerm reports whether name (case-folded, trimmed) is in the
// generic-term stop set.
func IsGenericTerm(name string) bool {
	return genericTerms[strings.ToLower(strings.TrimSpace(name))]
}

// ruleMarkers are the Chinese function words spec.md §4.3 names for
// detecting "rule sentences" within world-card fields: "必须/禁止/不得/
// 只能/会导致/…".
var ruleMarkers = []string{"必须", "禁止", "不得", "只能", "会导致", "不能", "不可", "一旦", "除非", "否则"}

// IsRuleSentence reports whether text matches a rule-sentence pattern.
func IsRuleSentence(text string) bool {
	for _, m := range ruleMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// negationMarkers is the degradation-guard poisoning heuristic's negation
// set, per spec.md §4.6.4: {不是,不,没有,无}.
var negationMarkers = []string{"不是", "不", "没有", "无"}

// HasNegation reports whether text contains any negation marker.
func HasNegation(text string) bool {
	for _, m := range negationMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
