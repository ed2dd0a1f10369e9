package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonlRecord struct {
	Name string `json:"name"`
}

func TestAppendJSONLAccumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	require.NoError(t, appendJSONL(path, jsonlRecord{Name: "a"}))
	require.NoError(t, appendJSONL(path, jsonlRecord{Name: "b"}))

	raws, err := readJSONLRaw(path)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	var first jsonlRecord
	require.NoError(t, unmarshalJSON(raws[0], &first))
	assert.Equal(t, "a", first.Name)
}

func TestReadJSONLRawMissingFileIsEmpty(t *testing.T) {
	raws, err := readJSONLRaw(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestReadJSONLRawSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	require.NoError(t, writeAtomic(path, []byte("{\"name\":\"a\"}\n\n{\"name\":\"b\"}\n"), 0o644))

	raws, err := readJSONLRaw(path)
	require.NoError(t, err)
	assert.Len(t, raws, 2)
}
