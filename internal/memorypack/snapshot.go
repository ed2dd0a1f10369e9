package memorypack

import (
	"github.com/jackzampolin/wenshape/internal/model"
)

// buildCardSnapshot implements spec.md §4.7's card-snapshot rule: for
// each evidence item with source.card set, plus any seed_entities, collect
// up to 12 unique names; for each, try character then world storage;
// also snapshot the style card; cap 8 names per kind.
func (s *Service) buildCardSnapshot(payload model.MemoryPackPayload) model.CardSnapshot {
	names := collectCardNames(payload)

	var characters, world []string
	for _, name := range names {
		if len(characters) >= maxPerKind && len(world) >= maxPerKind {
			break
		}
		if _, err := s.store.LoadCharacterCard(name); err == nil {
			if len(characters) < maxPerKind {
				characters = append(characters, name)
			}
			continue
		}
		if _, err := s.store.LoadWorldCard(name); err == nil {
			if len(world) < maxPerKind {
				world = append(world, name)
			}
		}
	}

	style := ""
	if card, err := s.store.LoadStyleCard(); err == nil {
		style = card.Style
	}

	return model.CardSnapshot{Characters: characters, World: world, Style: style}
}

// collectCardNames gathers evidence-item source.card names plus
// seed_entities, deduped and capped at maxSnapshotNames, preserving
// first-seen order.
func collectCardNames(payload model.MemoryPackPayload) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, item := range payload.EvidencePack {
		if item.Source.Card != "" {
			add(item.Source.Card)
		}
		if len(names) >= maxSnapshotNames {
			return names
		}
	}
	for _, name := range payload.SeedEntities {
		add(name)
		if len(names) >= maxSnapshotNames {
			return names
		}
	}
	return names
}
