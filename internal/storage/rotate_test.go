package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateHistoryNoOpWhenMissing(t *testing.T) {
	dir := t.TempDir()
	err := rotateHistory(filepath.Join(dir, "absent.md"), 3, time.Now())
	assert.NoError(t, err)
}

func TestRotateHistoryMovesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "draft_v1.md")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rev"), 0o644))
		require.NoError(t, rotateHistory(path, 2, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, os.WriteFile(path, []byte("rev"), 0o644))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
