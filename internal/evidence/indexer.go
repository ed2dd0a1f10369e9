// Package evidence implements spec.md's C3 Evidence Indexer: five
// incrementally-rebuilt BM25 indices (facts, summaries, cards, memory,
// text_chunks) and the multi-query, type-quota'd search that feeds the
// context engine and research loop.
//
// Grounded on no single teacher file (shelf has no retrieval subsystem);
// built in the teacher's plain-struct, explicit-error style, reusing
// internal/bm25 (this repo's sibling package) the way shelf's job
// packages reuse internal/jobs/common helpers.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/jackzampolin/wenshape/internal/textchunk"
)

// Indices are the five index names spec.md §4.3 owns directly (text_chunks
// is delegated to internal/textchunk but exposed through the same Search).
const (
	IndexFacts     = "facts"
	IndexSummaries = "summaries"
	IndexCards     = "cards"
	IndexMemory    = "memory"
)

// Indexer owns the four directly-managed BM25 indices plus a handle to the
// text-chunk indexer for the fifth.
type Indexer struct {
	store     *storage.Store
	textchunk *textchunk.Indexer
	log       *slog.Logger
}

// New constructs an Indexer over store, delegating text-chunk indexing to
// chunks (construct via textchunk.NewIndexer against the same store).
func New(store *storage.Store, chunks *textchunk.Indexer, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, textchunk: chunks, log: logger}
}

// needsRebuild implements spec.md §4.3's incremental check: "returns the
// existing meta iff every source file's newest mtime <= meta.source_mtime".
func (ix *Indexer) needsRebuild(name string, force bool) (meta model.IndexMeta, stale bool) {
	meta, err := ix.store.LoadIndexMeta(name)
	newest := ix.store.NewestSourceMtime(name)
	if force || err != nil {
		return meta, true
	}
	return meta, newest.After(meta.SourceMtime)
}

func (ix *Indexer) persist(ctx context.Context, name string, items []model.EvidenceItem) (model.IndexMeta, error) {
	raw := make([]any, len(items))
	for i, it := range items {
		raw[i] = it
	}
	if err := ix.store.WriteIndex(ctx, name, raw); err != nil {
		return model.IndexMeta{}, fmt.Errorf("evidence: write %s index: %w", name, err)
	}
	meta := model.IndexMeta{
		IndexName:   name,
		BuiltAt:     time.Now().UTC(),
		ItemCount:   len(items),
		SourceMtime: ix.store.NewestSourceMtime(name),
	}
	if err := ix.store.SaveIndexMeta(ctx, name, meta); err != nil {
		return model.IndexMeta{}, fmt.Errorf("evidence: save %s meta: %w", name, err)
	}
	return meta, nil
}

// BuildFacts rebuilds the facts index.
func (ix *Indexer) BuildFacts(ctx context.Context, force bool) (model.IndexMeta, error) {
	if meta, stale := ix.needsRebuild(IndexFacts, force); !stale {
		return meta, nil
	}
	facts, err := ix.store.LoadFacts()
	if err != nil {
		return model.IndexMeta{}, err
	}
	return ix.persist(ctx, IndexFacts, factItems(facts))
}

// BuildSummaries rebuilds the summaries index (chapter + volume briefs).
func (ix *Indexer) BuildSummaries(ctx context.Context, force bool) (model.IndexMeta, error) {
	if meta, stale := ix.needsRebuild(IndexSummaries, force); !stale {
		return meta, nil
	}
	sums, err := ix.store.ListChapterSummaries()
	if err != nil {
		return model.IndexMeta{}, err
	}
	var items []model.EvidenceItem
	for _, s := range sums {
		items = append(items, summaryItems(s)...)
	}
	volumes, err := ix.store.ListVolumes()
	if err == nil {
		for _, v := range volumes {
			if vs, err := ix.store.LoadVolumeSummary(v.ID); err == nil {
				if item := volumeSummaryItem(vs); item != nil {
					items = append(items, *item)
				}
			}
		}
	}
	return ix.persist(ctx, IndexSummaries, items)
}

// BuildCards rebuilds the cards index (character + world fields, plus the
// world_rule/world_entity pseudo-items).
func (ix *Indexer) BuildCards(ctx context.Context, force bool) (model.IndexMeta, error) {
	if meta, stale := ix.needsRebuild(IndexCards, force); !stale {
		return meta, nil
	}
	chars, err := ix.store.ListCharacterCards()
	if err != nil {
		return model.IndexMeta{}, err
	}
	worlds, err := ix.store.ListWorldCards()
	if err != nil {
		return model.IndexMeta{}, err
	}
	var items []model.EvidenceItem
	for _, c := range chars {
		items = append(items, cardItemsForCharacter(c)...)
	}
	for _, w := range worlds {
		items = append(items, cardItemsForWorld(w)...)
	}
	return ix.persist(ctx, IndexCards, items)
}

// AppendMemoryItems appends items to the memory index and refreshes its
// metadata, per spec.md §4.3's append_memory_items: memory is "never
// rebuilt from source, only appended".
func (ix *Indexer) AppendMemoryItems(ctx context.Context, items []model.EvidenceItem) error {
	for _, it := range items {
		if err := ix.store.AppendIndexItem(ctx, IndexMemory, it); err != nil {
			return fmt.Errorf("evidence: append memory item: %w", err)
		}
	}
	meta, err := ix.store.LoadIndexMeta(IndexMemory)
	if err != nil {
		meta = model.IndexMeta{IndexName: IndexMemory}
	}
	meta.ItemCount += len(items)
	meta.BuiltAt = time.Now().UTC()
	return ix.store.SaveIndexMeta(ctx, IndexMemory, meta)
}

// BuildAll ensures all five indices are current, rebuilding stale ones.
func (ix *Indexer) BuildAll(ctx context.Context, force bool) (map[string]model.IndexMeta, error) {
	out := make(map[string]model.IndexMeta, 5)
	var err error
	if out[IndexFacts], err = ix.BuildFacts(ctx, force); err != nil {
		return nil, err
	}
	if out[IndexSummaries], err = ix.BuildSummaries(ctx, force); err != nil {
		return nil, err
	}
	if out[IndexCards], err = ix.BuildCards(ctx, force); err != nil {
		return nil, err
	}
	if chunkMeta, err := ix.textchunk.Build(ctx, force); err == nil {
		out[textchunk.IndexName] = chunkMeta
	} else {
		return nil, err
	}
	memMeta, err := ix.store.LoadIndexMeta(IndexMemory)
	if err != nil {
		memMeta = model.IndexMeta{IndexName: IndexMemory, BuiltAt: time.Now().UTC()}
	}
	out[IndexMemory] = memMeta
	return out, nil
}

// items reads one index's raw records back into EvidenceItems, skipping
// individually corrupt records rather than failing the whole read (spec.md
// §7: a per-item format issue should not abort a batch).
func (ix *Indexer) items(name string) ([]model.EvidenceItem, error) {
	raws, err := ix.store.ReadIndexRaw(name)
	if err != nil {
		return nil, err
	}
	out := make([]model.EvidenceItem, 0, len(raws))
	for _, raw := range raws {
		var it model.EvidenceItem
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
