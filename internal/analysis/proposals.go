package analysis

import (
	"context"
	"errors"

	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
)

// applyProposals turns archivist-detected CardProposals into persisted
// cards (spec.md §4.11 step 5). Unlike the session's live detection
// during drafting, analysis does not filter out Character-type proposals:
// §4.11's proposal sweep has no such carve-out. When overwrite is false
// (the AnalyzeChapter path), a proposal is skipped if a card with that
// name already exists; batch-sync passes overwrite=true.
func (p *Pipeline) applyProposals(ctx context.Context, proposals []model.CardProposal, overwrite bool) error {
	for _, prop := range proposals {
		if prop.Name == "" {
			continue
		}
		switch prop.Type {
		case "world", "World":
			if !overwrite {
				if _, err := p.store.LoadWorldCard(prop.Name); !errors.Is(err, storage.ErrNotFound) {
					continue
				}
			}
			card := model.WorldCard{
				Name:        prop.Name,
				Description: prop.Description,
				Aliases:     prop.Aliases,
				Category:    prop.Category,
				Rules:       prop.Rules,
			}
			if err := p.store.SaveWorldCard(ctx, card); err != nil {
				return err
			}
		default:
			if !overwrite {
				if _, err := p.store.LoadCharacterCard(prop.Name); !errors.Is(err, storage.ErrNotFound) {
					continue
				}
			}
			card := model.CharacterCard{
				Name:        prop.Name,
				Description: prop.Description,
				Aliases:     prop.Aliases,
			}
			if err := p.store.SaveCharacterCard(ctx, card); err != nil {
				return err
			}
		}
	}
	return nil
}
