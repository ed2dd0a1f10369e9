package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultHistoryKeep is the default number of rotated copies retained by
// rotateHistory, per spec.md §4.2 ("prune to the last N (configurable,
// default 3)").
const DefaultHistoryKeep = 3

// rotateHistory renames the existing file at livePath into
// <dir>/history/<stem>_<UTC-ts>.<ext> and prunes older rotations of the
// same stem beyond keep. A missing livePath is a no-op. now is injected so
// callers control the timestamp deterministically in tests.
func rotateHistory(livePath string, keep int, now time.Time) error {
	if keep <= 0 {
		keep = DefaultHistoryKeep
	}
	if !fileExists(livePath) {
		return nil
	}

	dir := filepath.Dir(livePath)
	base := filepath.Base(livePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	histDir := filepath.Join(dir, "history")
	if err := os.MkdirAll(histDir, 0o755); err != nil {
		return newStorageError("mkdir", histDir, err)
	}

	ts := now.UTC().Format("20060102T150405.000000Z")
	rotated := filepath.Join(histDir, fmt.Sprintf("%s_%s%s", stem, ts, ext))
	if err := os.Rename(livePath, rotated); err != nil {
		return newStorageError("rotate", livePath, err)
	}

	return pruneHistory(histDir, stem, ext, keep)
}

func pruneHistory(histDir, stem, ext string, keep int) error {
	entries, err := os.ReadDir(histDir)
	if err != nil {
		return newStorageError("readdir", histDir, err)
	}

	prefix := stem + "_"
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) {
			matches = append(matches, name)
		}
	}
	// Timestamp suffix sorts lexicographically in chronological order.
	sort.Strings(matches)

	if len(matches) <= keep {
		return nil
	}
	toRemove := matches[:len(matches)-keep]
	for _, name := range toRemove {
		if err := os.Remove(filepath.Join(histDir, name)); err != nil && !os.IsNotExist(err) {
			return newStorageError("remove", name, err)
		}
	}
	return nil
}
