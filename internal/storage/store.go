// Package storage implements spec.md's C2 File-Backed Storage: atomic
// YAML/JSON/JSONL/Markdown read/write against data/<project>/... with a
// per-path async lock and rotating history backups.
//
// Grounded on the teacher's dual sync/async persistence idiom
// (internal/jobs/common/state_persist_book.go) and its path-token
// validation (internal/config/store.go's ValidateKey), adapted from a
// DefraDB-backed store to a plain filesystem tree.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackzampolin/wenshape/internal/chapterid"
	"github.com/jackzampolin/wenshape/internal/model"
)

// Store is a typed, atomic accessor over one project's data tree rooted at
// <dataDir>/<projectID>. A Store is safe for concurrent use; all writes
// serialize through its FileLock.
type Store struct {
	root    string
	lock    *FileLock
	cache   *indexedCache
	log     *slog.Logger
	history int
}

// Config configures a Store.
type Config struct {
	// DataDir is the root data directory (spec.md's "data/").
	DataDir string
	// ProjectID is sanitized via SanitizeToken before use.
	ProjectID string
	// HistoryKeep overrides DefaultHistoryKeep when > 0.
	HistoryKeep int
	Logger      *slog.Logger
}

// New validates and resolves the project root and returns a ready Store.
// It does not create any directories; callers that need an empty project
// scaffold should call EnsureLayout.
func New(cfg Config) (*Store, error) {
	projectID, err := SanitizeToken("project_id", cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	root, err := resolveUnder(cfg.DataDir, projectID)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keep := cfg.HistoryKeep
	if keep <= 0 {
		keep = DefaultHistoryKeep
	}
	return &Store{root: root, lock: NewFileLock(), cache: newIndexedCache(), log: logger, history: keep}, nil
}

// Root returns the resolved, absolute project directory.
func (s *Store) Root() string { return s.root }

// EnsureLayout creates the top-level project directories if absent.
func (s *Store) EnsureLayout() error {
	dirs := []string{
		filepath.Join(s.root, "cards", "characters"),
		filepath.Join(s.root, "cards", "world"),
		filepath.Join(s.root, "canon"),
		filepath.Join(s.root, "drafts"),
		filepath.Join(s.root, "summaries"),
		filepath.Join(s.root, "volumes"),
		filepath.Join(s.root, "index", "chapters"),
		filepath.Join(s.root, "memory_packs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return newStorageError("mkdir", d, err)
		}
	}
	return nil
}

// withLock acquires the FileLock for path and runs fn while holding it.
func (s *Store) withLock(ctx context.Context, path string, fn func() error) error {
	unlock, err := s.lock.Acquire(ctx, path, DefaultLockTimeout)
	if err != nil {
		return fmt.Errorf("storage: acquire lock %s: %w", path, err)
	}
	defer unlock()
	return fn()
}

// --- chapter directory resolution -----------------------------------------

// chapterDir resolves the on-disk directory for a chapter id. If a
// directory already exists whose name is parse-equivalent (but not
// byte-equal) to the canonical id, it is adopted as-is — per spec.md
// §4.2's chapter-id coercion on read. Writers instead get ensureChapterDir,
// which migrates a non-canonical existing directory to the canonical name.
func (s *Store) chapterDir(chapter string) (string, error) {
	canonical, err := chapterid.Canonical(chapter)
	if err != nil {
		return "", newValidationError("chapter", chapter, err.Error())
	}
	draftsRoot := filepath.Join(s.root, "drafts")
	want := filepath.Join(draftsRoot, canonical)
	if fileExists(want) {
		return want, nil
	}

	entries, err := os.ReadDir(draftsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return want, nil
		}
		return "", newStorageError("readdir", draftsRoot, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if chapterid.Equal(e.Name(), canonical) {
			return filepath.Join(draftsRoot, e.Name()), nil
		}
	}
	return want, nil
}

// ensureChapterDir resolves the chapter directory like chapterDir, but if
// an existing non-canonical directory is found it is renamed to the
// canonical name first (spec.md: "on write, files are created under the
// canonical id (migrating by rename)").
func (s *Store) ensureChapterDir(chapter string) (string, error) {
	canonical, err := chapterid.Canonical(chapter)
	if err != nil {
		return "", newValidationError("chapter", chapter, err.Error())
	}
	draftsRoot := filepath.Join(s.root, "drafts")
	want := filepath.Join(draftsRoot, canonical)
	if fileExists(want) {
		return want, nil
	}

	existing, err := s.chapterDir(chapter)
	if err == nil && existing != want && fileExists(existing) {
		if err := os.MkdirAll(draftsRoot, 0o755); err != nil {
			return "", newStorageError("mkdir", draftsRoot, err)
		}
		if err := os.Rename(existing, want); err != nil {
			return "", newStorageError("migrate", existing, err)
		}
		return want, nil
	}

	if err := os.MkdirAll(want, 0o755); err != nil {
		return "", newStorageError("mkdir", want, err)
	}
	return want, nil
}

// --- cards ------------------------------------------------------------

func (s *Store) cardPath(kind, name string) (string, error) {
	safe, err := SanitizeToken("card_name", name)
	if err != nil {
		return "", err
	}
	return resolveUnder(s.root, "cards", kind, safe+".yaml")
}

// LoadCharacterCard reads cards/characters/<name>.yaml.
func (s *Store) LoadCharacterCard(name string) (model.CharacterCard, error) {
	path, err := s.cardPath("characters", name)
	if err != nil {
		return model.CharacterCard{}, err
	}
	v, err := s.cache.getOrLoad(path, func() (any, error) {
		var c model.CharacterCard
		if err := readYAML(path, &c); err != nil {
			return nil, err
		}
		c.Normalize()
		return c, nil
	})
	if err != nil {
		return model.CharacterCard{}, err
	}
	return v.(model.CharacterCard), nil
}

// SaveCharacterCard writes cards/characters/<name>.yaml atomically.
func (s *Store) SaveCharacterCard(ctx context.Context, card model.CharacterCard) error {
	path, err := s.cardPath("characters", card.Name)
	if err != nil {
		return err
	}
	card.Normalize()
	return s.withLock(ctx, path, func() error {
		defer s.cache.invalidate(path)
		return writeYAML(path, card)
	})
}

// ListCharacterCards enumerates every saved character card.
func (s *Store) ListCharacterCards() ([]model.CharacterCard, error) {
	return listCards[model.CharacterCard](s, "characters")
}

// LoadWorldCard reads cards/world/<name>.yaml.
func (s *Store) LoadWorldCard(name string) (model.WorldCard, error) {
	path, err := s.cardPath("world", name)
	if err != nil {
		return model.WorldCard{}, err
	}
	v, err := s.cache.getOrLoad(path, func() (any, error) {
		var c model.WorldCard
		if err := readYAML(path, &c); err != nil {
			return nil, err
		}
		c.Normalize()
		return c, nil
	})
	if err != nil {
		return model.WorldCard{}, err
	}
	return v.(model.WorldCard), nil
}

// SaveWorldCard writes cards/world/<name>.yaml atomically.
func (s *Store) SaveWorldCard(ctx context.Context, card model.WorldCard) error {
	path, err := s.cardPath("world", card.Name)
	if err != nil {
		return err
	}
	card.Normalize()
	return s.withLock(ctx, path, func() error {
		defer s.cache.invalidate(path)
		return writeYAML(path, card)
	})
}

// ListWorldCards enumerates every saved world card.
func (s *Store) ListWorldCards() ([]model.WorldCard, error) {
	return listCards[model.WorldCard](s, "world")
}

func listCards[T any](s *Store, kind string) ([]T, error) {
	dir := filepath.Join(s.root, "cards", kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newStorageError("readdir", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		var v T
		path := filepath.Join(dir, e.Name())
		if err := readYAML(path, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LoadStyleCard reads cards/style.yaml. A missing file returns the zero
// value and ErrNotFound.
func (s *Store) LoadStyleCard() (model.StyleCard, error) {
	path := filepath.Join(s.root, "cards", "style.yaml")
	var c model.StyleCard
	if err := readYAML(path, &c); err != nil {
		return model.StyleCard{}, err
	}
	return c, nil
}

// SaveStyleCard writes cards/style.yaml atomically.
func (s *Store) SaveStyleCard(ctx context.Context, card model.StyleCard) error {
	path := filepath.Join(s.root, "cards", "style.yaml")
	return s.withLock(ctx, path, func() error {
		return writeYAML(path, card)
	})
}

// --- canon (append-only JSONL) ------------------------------------------

func (s *Store) canonPath(name string) string {
	return filepath.Join(s.root, "canon", name)
}

// normalizeFactItem backfills a fact record read from disk to the current
// schema, per spec.md §4.2's normalize_fact_item(idx, row) contract: fields
// missing from older rows default predictably and id is assigned from its
// JSONL line index when absent.
func normalizeFactItem(idx int, f model.Fact) model.Fact {
	if f.ID == "" {
		f.ID = fmt.Sprintf("fact-%d", idx+1)
	}
	if f.IntroducedIn == "" {
		f.IntroducedIn = f.Source
	}
	if f.Confidence == 0 {
		f.Confidence = 1.0
	}
	if f.Content == "" {
		f.Content = f.Statement
	}
	return f
}

// AppendFact appends one fact to canon/facts.jsonl.
func (s *Store) AppendFact(ctx context.Context, fact model.Fact) error {
	path := s.canonPath("facts.jsonl")
	return s.withLock(ctx, path, func() error {
		defer s.cache.invalidate(path)
		return appendJSONL(path, fact)
	})
}

// LoadFacts reads every fact in canon/facts.jsonl, normalized.
func (s *Store) LoadFacts() ([]model.Fact, error) {
	path := s.canonPath("facts.jsonl")
	raws, err := readJSONLRaw(path)
	if err != nil {
		return nil, err
	}
	facts := make([]model.Fact, 0, len(raws))
	for i, raw := range raws {
		var f model.Fact
		if err := unmarshalJSON(raw, &f); err != nil {
			return nil, newStorageError("unmarshal_jsonl", path, err)
		}
		facts = append(facts, normalizeFactItem(i, f))
	}
	return facts, nil
}

// AppendTimelineEvent appends to canon/timeline.jsonl.
func (s *Store) AppendTimelineEvent(ctx context.Context, ev model.TimelineEvent) error {
	path := s.canonPath("timeline.jsonl")
	return s.withLock(ctx, path, func() error {
		defer s.cache.invalidate(path)
		return appendJSONL(path, ev)
	})
}

// LoadTimeline reads every event in canon/timeline.jsonl.
func (s *Store) LoadTimeline() ([]model.TimelineEvent, error) {
	path := s.canonPath("timeline.jsonl")
	raws, err := readJSONLRaw(path)
	if err != nil {
		return nil, err
	}
	events := make([]model.TimelineEvent, 0, len(raws))
	for _, raw := range raws {
		var ev model.TimelineEvent
		if err := unmarshalJSON(raw, &ev); err != nil {
			return nil, newStorageError("unmarshal_jsonl", path, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// AppendCharacterState appends to canon/character_state.jsonl.
func (s *Store) AppendCharacterState(ctx context.Context, st model.CharacterState) error {
	path := s.canonPath("character_state.jsonl")
	return s.withLock(ctx, path, func() error {
		defer s.cache.invalidate(path)
		return appendJSONL(path, st)
	})
}

// LoadCharacterStates reads every snapshot in canon/character_state.jsonl.
func (s *Store) LoadCharacterStates() ([]model.CharacterState, error) {
	path := s.canonPath("character_state.jsonl")
	raws, err := readJSONLRaw(path)
	if err != nil {
		return nil, err
	}
	states := make([]model.CharacterState, 0, len(raws))
	for _, raw := range raws {
		var st model.CharacterState
		if err := unmarshalJSON(raw, &st); err != nil {
			return nil, newStorageError("unmarshal_jsonl", path, err)
		}
		states = append(states, st)
	}
	return states, nil
}

// CurrentCharacterState returns the most recently appended state for name,
// or ErrNotFound if the character has no recorded state.
func (s *Store) CurrentCharacterState(name string) (model.CharacterState, error) {
	states, err := s.LoadCharacterStates()
	if err != nil {
		return model.CharacterState{}, err
	}
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].Character == name {
			return states[i], nil
		}
	}
	return model.CharacterState{}, ErrNotFound
}

// --- drafts / scene briefs / finals --------------------------------------

// LoadSceneBrief reads drafts/<chapter>/scene_brief.yaml.
func (s *Store) LoadSceneBrief(chapter string) (model.SceneBrief, error) {
	dir, err := s.chapterDir(chapter)
	if err != nil {
		return model.SceneBrief{}, err
	}
	var brief model.SceneBrief
	if err := readYAML(filepath.Join(dir, "scene_brief.yaml"), &brief); err != nil {
		return model.SceneBrief{}, err
	}
	return brief, nil
}

// SaveSceneBrief writes drafts/<chapter>/scene_brief.yaml atomically.
func (s *Store) SaveSceneBrief(ctx context.Context, brief model.SceneBrief) error {
	dir, err := s.ensureChapterDir(brief.Chapter)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "scene_brief.yaml")
	return s.withLock(ctx, path, func() error {
		return writeYAML(path, brief)
	})
}

// conflictsDoc wraps a chapter's conflict list for conflicts.yaml, which
// stores a list rather than a single record.
type conflictsDoc struct {
	Conflicts []model.Conflict `yaml:"conflicts"`
}

// LoadConflicts reads drafts/<chapter>/conflicts.yaml. A missing file
// yields an empty list, not ErrNotFound, since "no conflicts detected yet"
// is the common case.
func (s *Store) LoadConflicts(chapter string) ([]model.Conflict, error) {
	dir, err := s.chapterDir(chapter)
	if err != nil {
		return nil, err
	}
	var doc conflictsDoc
	if err := readYAML(filepath.Join(dir, "conflicts.yaml"), &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Conflicts, nil
}

// SaveConflicts writes drafts/<chapter>/conflicts.yaml atomically.
func (s *Store) SaveConflicts(ctx context.Context, chapter string, conflicts []model.Conflict) error {
	dir, err := s.ensureChapterDir(chapter)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "conflicts.yaml")
	return s.withLock(ctx, path, func() error {
		return writeYAML(path, conflictsDoc{Conflicts: conflicts})
	})
}

// SaveDraft writes drafts/<chapter>/draft_<version>.md (rotating any prior
// file of the same name into history/) and returns the path written.
func (s *Store) SaveDraft(ctx context.Context, chapter, version, content string) (string, error) {
	dir, err := s.ensureChapterDir(chapter)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("draft_%s.md", version))
	err = s.withLock(ctx, path, func() error {
		if err := rotateHistory(path, s.history, time.Now()); err != nil {
			return err
		}
		return writeAtomic(path, []byte(content), 0o644)
	})
	return path, err
}

// SaveFinal writes drafts/<chapter>/final.md, rotating the prior final into
// history/.
func (s *Store) SaveFinal(ctx context.Context, chapter, content string) (string, error) {
	dir, err := s.ensureChapterDir(chapter)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "final.md")
	err = s.withLock(ctx, path, func() error {
		if err := rotateHistory(path, s.history, time.Now()); err != nil {
			return err
		}
		return writeAtomic(path, []byte(content), 0o644)
	})
	return path, err
}

// LatestDraftPath returns final.md if present, else the highest-versioned
// draft_*.md, per spec.md §4.5's binding-service draft resolution rule.
func (s *Store) LatestDraftPath(chapter string) (string, error) {
	dir, err := s.chapterDir(chapter)
	if err != nil {
		return "", err
	}
	final := filepath.Join(dir, "final.md")
	if fileExists(final) {
		return final, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", newStorageError("readdir", dir, err)
	}
	var best string
	var bestVer int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "draft_") || !strings.HasSuffix(name, ".md") {
			continue
		}
		verStr := strings.TrimSuffix(strings.TrimPrefix(name, "draft_"), ".md")
		verStr = strings.TrimPrefix(verStr, "v")
		n := 0
		fmt.Sscanf(verStr, "%d", &n)
		if best == "" || n > bestVer {
			best, bestVer = name, n
		}
	}
	if best == "" {
		return "", ErrNotFound
	}
	return filepath.Join(dir, best), nil
}

// LoadLatestDraft returns the content of LatestDraftPath.
func (s *Store) LoadLatestDraft(chapter string) (string, error) {
	path, err := s.LatestDraftPath(chapter)
	if err != nil {
		return "", err
	}
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- summaries / volumes --------------------------------------------------

// LoadChapterSummary reads summaries/<chapter>_summary.yaml.
func (s *Store) LoadChapterSummary(chapter string) (model.ChapterSummary, error) {
	canonical, err := chapterid.Canonical(chapter)
	if err != nil {
		return model.ChapterSummary{}, newValidationError("chapter", chapter, err.Error())
	}
	path := filepath.Join(s.root, "summaries", canonical+"_summary.yaml")
	var sum model.ChapterSummary
	if err := readYAML(path, &sum); err != nil {
		return model.ChapterSummary{}, err
	}
	return sum, nil
}

// SaveChapterSummary writes summaries/<chapter>_summary.yaml atomically.
func (s *Store) SaveChapterSummary(ctx context.Context, sum model.ChapterSummary) error {
	canonical, err := chapterid.Canonical(sum.Chapter)
	if err != nil {
		return newValidationError("chapter", sum.Chapter, err.Error())
	}
	path := filepath.Join(s.root, "summaries", canonical+"_summary.yaml")
	return s.withLock(ctx, path, func() error {
		return writeYAML(path, sum)
	})
}

// ListChapterSummaries enumerates every persisted chapter summary, sorted
// by canonical chapter id.
func (s *Store) ListChapterSummaries() ([]model.ChapterSummary, error) {
	dir := filepath.Join(s.root, "summaries")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newStorageError("readdir", dir, err)
	}
	type row struct {
		chapter string
		sum     model.ChapterSummary
	}
	var rows []row
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "_summary.yaml") {
			continue
		}
		chapter := strings.TrimSuffix(name, "_summary.yaml")
		var sum model.ChapterSummary
		if err := readYAML(filepath.Join(dir, name), &sum); err != nil {
			return nil, err
		}
		rows = append(rows, row{chapter: chapter, sum: sum})
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.chapter
	}
	order := make(map[string]int, len(ids))
	for i, id := range chapterid.Sort(ids) {
		order[id] = i
	}
	sort.Slice(rows, func(i, j int) bool { return order[rows[i].chapter] < order[rows[j].chapter] })
	out := make([]model.ChapterSummary, len(rows))
	for i, r := range rows {
		out[i] = r.sum
	}
	return out, nil
}

// LoadVolume reads volumes/<id>.yaml.
func (s *Store) LoadVolume(id string) (model.Volume, error) {
	safe, err := SanitizeToken("volume_id", id)
	if err != nil {
		return model.Volume{}, err
	}
	var v model.Volume
	if err := readYAML(filepath.Join(s.root, "volumes", safe+".yaml"), &v); err != nil {
		return model.Volume{}, err
	}
	return v, nil
}

// SaveVolume writes volumes/<id>.yaml atomically.
func (s *Store) SaveVolume(ctx context.Context, v model.Volume) error {
	safe, err := SanitizeToken("volume_id", v.ID)
	if err != nil {
		return err
	}
	path := filepath.Join(s.root, "volumes", safe+".yaml")
	return s.withLock(ctx, path, func() error {
		return writeYAML(path, v)
	})
}

// ListVolumes returns every volume id with a volumes/<id>.yaml file,
// ordered by Volume.Order.
func (s *Store) ListVolumes() ([]model.Volume, error) {
	dir := filepath.Join(s.root, "volumes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newStorageError("readdir", dir, err)
	}
	var volumes []model.Volume
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, "_summary.yaml") {
			continue
		}
		var v model.Volume
		if err := readYAML(filepath.Join(dir, name), &v); err != nil {
			continue
		}
		volumes = append(volumes, v)
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Order < volumes[j].Order })
	return volumes, nil
}

// LoadVolumeSummary reads volumes/<id>_summary.yaml.
func (s *Store) LoadVolumeSummary(id string) (model.VolumeSummary, error) {
	safe, err := SanitizeToken("volume_id", id)
	if err != nil {
		return model.VolumeSummary{}, err
	}
	var v model.VolumeSummary
	if err := readYAML(filepath.Join(s.root, "volumes", safe+"_summary.yaml"), &v); err != nil {
		return model.VolumeSummary{}, err
	}
	return v, nil
}

// SaveVolumeSummary writes volumes/<id>_summary.yaml atomically.
func (s *Store) SaveVolumeSummary(ctx context.Context, v model.VolumeSummary) error {
	safe, err := SanitizeToken("volume_id", v.VolumeID)
	if err != nil {
		return err
	}
	path := filepath.Join(s.root, "volumes", safe+"_summary.yaml")
	return s.withLock(ctx, path, func() error {
		return writeYAML(path, v)
	})
}

// --- chapter bindings ------------------------------------------------------

// LoadBinding reads index/chapters/<chapter>/bindings.yaml.
func (s *Store) LoadBinding(chapter string) (model.ChapterBinding, error) {
	canonical, err := chapterid.Canonical(chapter)
	if err != nil {
		return model.ChapterBinding{}, newValidationError("chapter", chapter, err.Error())
	}
	path := filepath.Join(s.root, "index", "chapters", canonical, "bindings.yaml")
	var b model.ChapterBinding
	if err := readYAML(path, &b); err != nil {
		return model.ChapterBinding{}, err
	}
	return b, nil
}

// SaveBinding writes index/chapters/<chapter>/bindings.yaml atomically.
func (s *Store) SaveBinding(ctx context.Context, b model.ChapterBinding) error {
	canonical, err := chapterid.Canonical(b.Chapter)
	if err != nil {
		return newValidationError("chapter", b.Chapter, err.Error())
	}
	dir := filepath.Join(s.root, "index", "chapters", canonical)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newStorageError("mkdir", dir, err)
	}
	path := filepath.Join(dir, "bindings.yaml")
	return s.withLock(ctx, path, func() error {
		return writeYAML(path, b)
	})
}

// --- memory packs ----------------------------------------------------------

func (s *Store) memoryPackPath(chapter string) (string, error) {
	canonical, err := chapterid.Canonical(chapter)
	if err != nil {
		return "", newValidationError("chapter", chapter, err.Error())
	}
	return filepath.Join(s.root, "memory_packs", canonical+".json"), nil
}

// LoadMemoryPack reads memory_packs/<chapter>.json.
func (s *Store) LoadMemoryPack(chapter string) (model.MemoryPack, error) {
	path, err := s.memoryPackPath(chapter)
	if err != nil {
		return model.MemoryPack{}, err
	}
	data, err := readFile(path)
	if err != nil {
		return model.MemoryPack{}, err
	}
	var pack model.MemoryPack
	if err := unmarshalJSON(data, &pack); err != nil {
		return model.MemoryPack{}, newStorageError("unmarshal_json", path, err)
	}
	return pack, nil
}

// SaveMemoryPack writes memory_packs/<chapter>.json, rotating the prior
// pack into history/.
func (s *Store) SaveMemoryPack(ctx context.Context, pack model.MemoryPack) error {
	path, err := s.memoryPackPath(pack.Chapter)
	if err != nil {
		return err
	}
	data, err := marshalJSONIndent(pack)
	if err != nil {
		return newStorageError("marshal_json", path, err)
	}
	return s.withLock(ctx, path, func() error {
		if err := rotateHistory(path, s.history, time.Now()); err != nil {
			return err
		}
		return writeAtomic(path, data, 0o644)
	})
}

// --- generic index files ---------------------------------------------------

// IndexPath resolves index/<name>.jsonl for one of the five evidence
// indices (facts/summaries/cards/memory/text_chunks).
func (s *Store) IndexPath(name string) string {
	return filepath.Join(s.root, "index", name+".jsonl")
}

// IndexMetaPath resolves index/<name>.meta.json.
func (s *Store) IndexMetaPath(name string) string {
	return filepath.Join(s.root, "index", name+".meta.json")
}

// LoadIndexMeta reads an index's meta.json, returning the zero value and
// ErrNotFound if the index has never been built.
func (s *Store) LoadIndexMeta(name string) (model.IndexMeta, error) {
	path := s.IndexMetaPath(name)
	data, err := readFile(path)
	if err != nil {
		return model.IndexMeta{}, err
	}
	var meta model.IndexMeta
	if err := unmarshalJSON(data, &meta); err != nil {
		return model.IndexMeta{}, newStorageError("unmarshal_json", path, err)
	}
	return meta, nil
}

// SaveIndexMeta writes an index's meta.json atomically.
func (s *Store) SaveIndexMeta(ctx context.Context, name string, meta model.IndexMeta) error {
	path := s.IndexMetaPath(name)
	data, err := marshalJSONIndent(meta)
	if err != nil {
		return newStorageError("marshal_json", path, err)
	}
	return s.withLock(ctx, path, func() error {
		return writeAtomic(path, data, 0o644)
	})
}

// WriteIndex rewrites index/<name>.jsonl from scratch, used by index
// builders which always reconstruct the full set.
func (s *Store) WriteIndex(ctx context.Context, name string, items []any) error {
	path := s.IndexPath(name)
	return s.withLock(ctx, path, func() error {
		defer s.cache.invalidate(path)
		return writeJSONL(path, items)
	})
}

// AppendIndexItem appends one record to index/<name>.jsonl without
// rewriting prior entries, used by the memory index's append_memory_items.
func (s *Store) AppendIndexItem(ctx context.Context, name string, item any) error {
	path := s.IndexPath(name)
	return s.withLock(ctx, path, func() error {
		defer s.cache.invalidate(path)
		return appendJSONL(path, item)
	})
}

// ReadIndexRaw returns the raw JSONL records of index/<name>.jsonl.
func (s *Store) ReadIndexRaw(name string) ([][]byte, error) {
	raws, err := readJSONLRaw(s.IndexPath(name))
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(raws))
	for i, r := range raws {
		out[i] = []byte(r)
	}
	return out, nil
}

// ListChapters returns the canonical ids of every chapter with a drafts/
// directory, sorted by chapterid.Sort. Used by the text-chunk indexer and
// chapter binding service to enumerate chapters for a full rebuild.
func (s *Store) ListChapters() ([]string, error) {
	dir := filepath.Join(s.root, "drafts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newStorageError("readdir", dir, err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if canonical, err := chapterid.Canonical(e.Name()); err == nil {
			ids = append(ids, canonical)
		}
	}
	return chapterid.Sort(ids), nil
}

// DraftsDir returns the absolute path of the project's drafts/ directory.
func (s *Store) DraftsDir() string {
	return filepath.Join(s.root, "drafts")
}

// SourceFiles returns the files backing a given index, used to compute the
// incremental-rebuild high-water mark (spec.md §4.3).
func (s *Store) SourceFiles(indexName string) []string {
	switch indexName {
	case "facts":
		return []string{s.canonPath("facts.jsonl")}
	case "summaries":
		dir := filepath.Join(s.root, "summaries")
		return globOrEmpty(filepath.Join(dir, "*.yaml"))
	case "cards":
		chars := globOrEmpty(filepath.Join(s.root, "cards", "characters", "*.yaml"))
		world := globOrEmpty(filepath.Join(s.root, "cards", "world", "*.yaml"))
		return append(chars, world...)
	case "memory":
		return nil
	case "text_chunks":
		final := globOrEmpty(filepath.Join(s.root, "drafts", "*", "final.md"))
		drafts := globOrEmpty(filepath.Join(s.root, "drafts", "*", "draft_*.md"))
		return append(final, drafts...)
	default:
		return nil
	}
}

// NewestSourceMtime is a convenience wrapper combining SourceFiles and
// newestMtime for incremental rebuild checks.
func (s *Store) NewestSourceMtime(indexName string) time.Time {
	return newestMtime(s.SourceFiles(indexName)...)
}

func globOrEmpty(pattern string) []string {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	return matches
}
