// Package textchunk implements spec.md's C4 Text-Chunk Indexer: sliding
// window paragraph chunking over chapter drafts, a BM25 index, and an
// optional LLM-driven semantic re-rank pass.
//
// Grounded on internal/jobs/common/ocr_quality.go's paragraph-splitting
// idiom in the teacher (split on blank lines, re-window long runs) and
// internal/evidence (sibling package, same Store/BM25 plumbing).
package textchunk

import (
	"fmt"
	"strings"
)

// Config controls the chunker's sizing. Zero values are replaced by
// DefaultConfig's values in NewIndexer.
type Config struct {
	MaxParagraphChars int
	WindowSize        int
	WindowOverlap     int
	MinChunkChars     int
}

// DefaultConfig matches spec.md §4.4's named defaults.
func DefaultConfig() Config {
	return Config{
		MaxParagraphChars: 800,
		WindowSize:        520,
		WindowOverlap:     160,
		MinChunkChars:     40,
	}
}

// Chunk is one sliding-window slice of a chapter draft's text.
type Chunk struct {
	Text      string
	Paragraph int
	Window    int
	Start     int
	End       int
}

// Split normalizes newlines, splits on blank-line paragraph boundaries,
// and applies a sliding window to any paragraph longer than
// cfg.MaxParagraphChars, per spec.md §4.4. Chunks shorter than
// cfg.MinChunkChars are dropped.
func Split(text string, cfg Config) []Chunk {
	normalized := strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	paragraphs := splitParagraphs(normalized)

	var chunks []Chunk
	for pi, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= cfg.MaxParagraphChars {
			if len([]rune(para)) >= cfg.MinChunkChars {
				chunks = append(chunks, Chunk{Text: para, Paragraph: pi, Window: 0, Start: 0, End: len([]rune(para))})
			}
			continue
		}
		runes := []rune(para)
		window := 0
		for start := 0; start < len(runes); {
			end := start + cfg.WindowSize
			if end > len(runes) {
				end = len(runes)
			}
			piece := string(runes[start:end])
			if len([]rune(piece)) >= cfg.MinChunkChars {
				chunks = append(chunks, Chunk{Text: piece, Paragraph: pi, Window: window, Start: start, End: end})
			}
			window++
			if end == len(runes) {
				break
			}
			start = end - cfg.WindowOverlap
			if start <= 0 {
				start = end
			}
		}
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	var buf strings.Builder
	blankRun := 0
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankRun++
			if blankRun == 1 && buf.Len() > 0 {
				out = append(out, buf.String())
				buf.Reset()
			}
			continue
		}
		blankRun = 0
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

// ChunkID builds the stable id "text:<chapter>#p<paragraph>-w<window>"
// named in spec.md §4.4.
func ChunkID(chapter string, c Chunk) string {
	return fmt.Sprintf("text:%s#p%d-w%d", chapter, c.Paragraph, c.Window)
}
