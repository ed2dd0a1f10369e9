package textchunk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
)

// IndexName is the index/<name>.jsonl name this package owns.
const IndexName = "text_chunks"

// Indexer builds and incrementally refreshes the text-chunk BM25 index
// over every chapter's latest draft (spec.md §4.4).
type Indexer struct {
	store *storage.Store
	cfg   Config
	log   *slog.Logger
}

// NewIndexer constructs an Indexer. A zero Config is replaced by
// DefaultConfig.
func NewIndexer(store *storage.Store, cfg Config, logger *slog.Logger) *Indexer {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, cfg: cfg, log: logger}
}

// item is the on-disk shape of one text_chunks.jsonl record.
type item struct {
	model.EvidenceItem
}

// Build rebuilds the text-chunk index iff the newest draft mtime exceeds
// the stored meta's source mtime, unless force is true.
func (ix *Indexer) Build(ctx context.Context, force bool) (model.IndexMeta, error) {
	meta, err := ix.store.LoadIndexMeta(IndexName)
	hasMeta := err == nil
	newest := ix.store.NewestSourceMtime(IndexName)
	if !force && hasMeta && !newest.After(meta.SourceMtime) {
		return meta, nil
	}

	chapters, err := ix.store.ListChapters()
	if err != nil {
		return model.IndexMeta{}, fmt.Errorf("textchunk: list chapters: %w", err)
	}

	var items []any
	for _, chapter := range chapters {
		content, label, err := ix.latestDraft(chapter)
		if err != nil {
			ix.log.Warn("textchunk: skip chapter", "chapter", chapter, "error", err)
			continue
		}
		for _, c := range Split(content, ix.cfg) {
			items = append(items, model.EvidenceItem{
				ID:   ChunkID(chapter, c),
				Type: model.EvidenceTextChunk,
				Text: c.Text,
				Source: model.EvidenceSource{
					Chapter: chapter,
					Field:   label,
					Index:   c.Paragraph,
				},
				Scope: model.ScopeChapter,
				Meta: map[string]any{
					"paragraph": c.Paragraph,
					"window":    c.Window,
					"start":     c.Start,
					"end":       c.End,
				},
			})
		}
	}

	if err := ix.store.WriteIndex(ctx, IndexName, items); err != nil {
		return model.IndexMeta{}, err
	}
	newMeta := model.IndexMeta{
		IndexName:   IndexName,
		BuiltAt:     time.Now().UTC(),
		ItemCount:   len(items),
		SourceMtime: newest,
	}
	if err := ix.store.SaveIndexMeta(ctx, IndexName, newMeta); err != nil {
		return model.IndexMeta{}, err
	}
	return newMeta, nil
}

func (ix *Indexer) latestDraft(chapter string) (content, label string, err error) {
	path, err := ix.store.LatestDraftPath(chapter)
	if err != nil {
		return "", "", err
	}
	content, err = ix.store.LoadLatestDraft(chapter)
	if err != nil {
		return "", "", err
	}
	base := filepath.Base(path)
	if base == "final.md" {
		label = "final"
	} else {
		label = strings.TrimSuffix(strings.TrimPrefix(base, "draft_"), ".md")
	}
	return content, label, nil
}

// Items loads the raw text_chunks.jsonl records as EvidenceItems.
func (ix *Indexer) Items() ([]model.EvidenceItem, error) {
	raws, err := ix.store.ReadIndexRaw(IndexName)
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
