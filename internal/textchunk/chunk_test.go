package textchunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortParagraphKeptWhole(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinChunkChars = 10
	chunks := Split("Alice walked into the tavern.\n\nBob looked up.", cfg)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Window)
	assert.Equal(t, "Alice walked into the tavern.", chunks[0].Text)
	assert.Equal(t, 1, chunks[1].Paragraph)
}

func TestSplitLongParagraphWindows(t *testing.T) {
	cfg := Config{MaxParagraphChars: 100, WindowSize: 60, WindowOverlap: 20, MinChunkChars: 10}
	long := strings.Repeat("a", 250)
	chunks := Split(long, cfg)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Window)
		assert.Equal(t, 0, c.Paragraph)
	}
}

func TestSplitDropsShortChunks(t *testing.T) {
	cfg := DefaultConfig()
	chunks := Split("hi", cfg)
	assert.Empty(t, chunks)
}

func TestChunkID(t *testing.T) {
	id := ChunkID("V1C5", Chunk{Paragraph: 2, Window: 1})
	assert.Equal(t, "text:V1C5#p2-w1", id)
}
