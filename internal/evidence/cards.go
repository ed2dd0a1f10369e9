package evidence

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jackzampolin/wenshape/internal/model"
)

// characterFields lists the CharacterCard fields split into evidence items,
// per spec.md §4.3 ("description/identity/appearance/motivation/aliases/
// personality/speech_pattern/relationships/boundaries/arc"). The teacher's
// CharacterCard model (spec.md §3) only carries Description and Aliases,
// so only those two are populated; the remaining names are accepted as
// synonyms of Description in a free-form style by splitting its lines.
func cardItemsForCharacter(c model.CharacterCard) []model.EvidenceItem {
	var items []model.EvidenceItem
	for i, line := range splitLines(c.Description) {
		items = append(items, model.EvidenceItem{
			ID:    fmt.Sprintf("card:character:%s:description:%d", c.Name, i),
			Type:  model.EvidenceCharacter,
			Text:  line,
			Scope: model.ScopeGlobal,
			Source: model.EvidenceSource{
				Card:  c.Name,
				Field: "description",
				Index: i,
			},
			Entities: []string{c.Name},
			Meta:     map[string]any{"stars": c.Stars},
		})
	}
	if len(c.Aliases) > 0 {
		items = append(items, model.EvidenceItem{
			ID:       fmt.Sprintf("card:character:%s:aliases", c.Name),
			Type:     model.EvidenceCharacter,
			Text:     c.Name + "：" + strings.Join(c.Aliases, "、"),
			Scope:    model.ScopeGlobal,
			Source:   model.EvidenceSource{Card: c.Name, Field: "aliases"},
			Entities: []string{c.Name},
			Meta:     map[string]any{"stars": c.Stars},
		})
	}
	return items
}

// cardItemsForWorld derives world-card evidence items plus the
// spec.md §4.3 pseudo-items world_rule:<name>:<n> and world_entity:<name>:<n>.
func cardItemsForWorld(c model.WorldCard) []model.EvidenceItem {
	var items []model.EvidenceItem
	for i, line := range splitLines(c.Description) {
		items = append(items, model.EvidenceItem{
			ID:    fmt.Sprintf("card:world:%s:description:%d", c.Name, i),
			Type:  model.EvidenceWorld,
			Text:  line,
			Scope: model.ScopeGlobal,
			Source: model.EvidenceSource{
				Card:  c.Name,
				Field: "description",
				Index: i,
			},
			Entities: []string{c.Name},
			Meta:     map[string]any{"stars": c.Stars, "category": c.Category},
		})
	}
	if c.Category != "" {
		items = append(items, model.EvidenceItem{
			ID:       fmt.Sprintf("card:world:%s:category", c.Name),
			Type:     model.EvidenceWorld,
			Text:     c.Name + "：" + c.Category,
			Scope:    model.ScopeGlobal,
			Source:   model.EvidenceSource{Card: c.Name, Field: "category"},
			Entities: []string{c.Name},
			Meta:     map[string]any{"stars": c.Stars},
		})
	}

	n := 0
	for _, rule := range c.Rules {
		for _, sentence := range splitSentences(rule) {
			if !IsRuleSentence(sentence) {
				continue
			}
			items = append(items, model.EvidenceItem{
				ID:       fmt.Sprintf("world_rule:%s:%d", c.Name, n),
				Type:     model.EvidenceWorldRule,
				Text:     sentence,
				Scope:    model.ScopeGlobal,
				Source:   model.EvidenceSource{Card: c.Name, Field: "rules", Index: n},
				Entities: []string{c.Name},
				Meta:     map[string]any{"stars": c.Stars, "immutable": c.Immutable},
			})
			n++
		}
	}

	if looksLikeEntity(c.Name) {
		text := c.Name
		if c.Category != "" {
			text = c.Name + "（" + c.Category + "）"
		}
		items = append(items, model.EvidenceItem{
			ID:       fmt.Sprintf("world_entity:%s:0", c.Name),
			Type:     model.EvidenceWorldEntity,
			Text:     text,
			Scope:    model.ScopeGlobal,
			Source:   model.EvidenceSource{Card: c.Name, Field: "name"},
			Entities: []string{c.Name},
			Meta:     map[string]any{"stars": c.Stars, "category": c.Category},
		})
	}

	return items
}

// looksLikeEntity implements spec.md §4.3's world_entity eligibility rule:
// length >= 2, not purely digits, not a generic term.
func looksLikeEntity(name string) bool {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) < 2 {
		return false
	}
	if IsGenericTerm(name) {
		return false
	}
	allDigits := true
	for _, r := range runes {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	return !allDigits
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// splitSentences splits on CJK/ASCII sentence terminators, like the
// smart-compressor's sentence splitter in internal/context (spec.md
// §4.6.3), and additionally on newlines. It is a separate copy to avoid a
// context<->evidence import cycle.
func splitSentences(text string) []string {
	var out []string
	var buf strings.Builder
	for _, r := range text {
		buf.WriteRune(r)
		switch r {
		case '。', '！', '？', '.', '!', '?', '\n':
			s := strings.TrimSpace(buf.String())
			if s != "" {
				out = append(out, s)
			}
			buf.Reset()
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, s)
	}
	return out
}
