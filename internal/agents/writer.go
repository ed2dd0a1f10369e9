package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/wenshape/internal/providers"
	"github.com/jackzampolin/wenshape/internal/session"
)

// Writer satisfies session.Writer: it turns a scene brief and memory pack
// into chapter prose, either in one blocking call or streamed token by
// token.
type Writer struct {
	base
	chunkRunes int // StreamDraft's simulated token size
}

var _ session.Writer = (*Writer)(nil)

// NewWriter builds a Writer from one LLM configuration.
func NewWriter(cfg Config) *Writer {
	return &Writer{base: newBase(KindWriter, cfg), chunkRunes: 24}
}

const writerSystemPrompt = `You are the prose writer for a long-form serialized novel. Write the next
chapter's draft in continuous prose matching the established style. Stay inside the scene brief's goal and
constraints, use only the facts and character states given in the memory pack, and do not introduce new named
characters or world rules not already present. Output prose only, no headings, no JSON, no commentary.`

// WriteDraft implements session.Writer's non-streaming path.
func (w *Writer) WriteDraft(ctx context.Context, req session.DraftRequest) (session.DraftResult, error) {
	if w.isMock() {
		return w.mockDraft(req), nil
	}

	result, err := w.llm.Chat(ctx, &providers.ChatRequest{
		Model: w.model,
		Messages: []providers.Message{
			{Role: "system", Content: writerSystemPrompt},
			{Role: "user", Content: w.draftPrompt(req)},
		},
	})
	if err != nil {
		return session.DraftResult{}, toolFailure(w.base, err)
	}
	return session.DraftResult{Content: strings.TrimSpace(result.Content)}, nil
}

// StreamDraft implements session.Writer's streaming path. internal/providers
// has no native token-streaming client (only blocking Chat/ChatWithTools),
// so this makes one blocking call and re-chunks the returned content,
// invoking onToken per chunk — a pragmatic simulation, not true streaming.
func (w *Writer) StreamDraft(ctx context.Context, req session.DraftRequest, onToken session.TokenFunc) (session.DraftResult, error) {
	result, err := w.WriteDraft(ctx, req)
	if err != nil {
		return session.DraftResult{}, err
	}
	if onToken != nil {
		for _, chunk := range chunkRunes(result.Content, w.chunkRunes) {
			select {
			case <-ctx.Done():
				return session.DraftResult{}, ctx.Err()
			default:
			}
			onToken(chunk)
		}
	}
	return result, nil
}

// mockDraft is the rule-based fallback used when no LLM profile is
// configured: it stitches the brief's goal and any prior feedback into a
// minimal placeholder draft so the orchestrator has something to persist
// and the pipeline downstream (summaries, canon extraction) has text to
// run against.
func (w *Writer) mockDraft(req session.DraftRequest) session.DraftResult {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", req.Brief.Title)
	fmt.Fprintf(&b, "%s", req.Brief.Goal)
	if req.UserFeedback != "" {
		fmt.Fprintf(&b, " %s", req.UserFeedback)
	}
	return session.DraftResult{Content: b.String()}
}

// draftPrompt renders the brief and memory pack into the writer's user
// message.
func (w *Writer) draftPrompt(req session.DraftRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chapter: %s\nTitle: %s\nGoal: %s\n", req.Chapter, req.Brief.Title, req.Brief.Goal)
	if len(req.Brief.Characters) > 0 {
		b.WriteString("Characters:\n")
		for _, c := range req.Brief.Characters {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, strings.Join(c.RelevantTraits, ", "))
		}
	}
	if len(req.Brief.WorldConstraints) > 0 {
		fmt.Fprintf(&b, "World constraints: %s\n", strings.Join(req.Brief.WorldConstraints, "; "))
	}
	if req.Brief.StyleReminder != "" {
		fmt.Fprintf(&b, "Style: %s\n", req.Brief.StyleReminder)
	}
	if len(req.Brief.Forbidden) > 0 {
		fmt.Fprintf(&b, "Forbidden: %s\n", strings.Join(req.Brief.Forbidden, "; "))
	}
	if req.MemoryPack.Payload.WorkingMemory != "" {
		fmt.Fprintf(&b, "\nWorking memory:\n%s\n", w.truncate(req.MemoryPack.Payload.WorkingMemory))
	}
	for _, item := range req.MemoryPack.Payload.EvidencePack {
		fmt.Fprintf(&b, "- [%s] %s\n", item.Type, item.Text)
	}
	if req.UserFeedback != "" {
		fmt.Fprintf(&b, "\nUser feedback to incorporate: %s\n", req.UserFeedback)
	}
	return b.String()
}

// chunkRunes splits s into rune groups of size n, the unit StreamDraft
// emits as one simulated token.
func chunkRunes(s string, n int) []string {
	if n <= 0 {
		n = 1
	}
	runes := []rune(s)
	var chunks []string
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
