package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/wenshape/internal/providers"
	"github.com/jackzampolin/wenshape/internal/session"
)

// Editor satisfies session.Editor: it revises drafts in place or produces
// a non-persisted suggested revision, honoring rejected entities (cards
// the user has asked to keep out of the chapter).
type Editor struct {
	base
}

var _ session.Editor = (*Editor)(nil)

// NewEditor builds an Editor from one LLM configuration.
func NewEditor(cfg Config) *Editor {
	return &Editor{base: newBase(KindEditor, cfg)}
}

const editorSystemPrompt = `You revise one chapter of a serialized novel based on feedback. Keep everything
that already works; change only what the feedback asks for, and remove or rewrite around any rejected entity
named below. Stay inside the established facts and character states. Output the full revised prose only, no
headings, no JSON, no commentary.`

// Revise implements session.Editor's persistent revision path.
func (e *Editor) Revise(ctx context.Context, req session.ReviseRequest) (string, error) {
	return e.revise(ctx, req)
}

// SuggestRevision implements session.Editor's non-persistent suggestion
// path. It runs the same revision call as Revise: the distinction between
// "persist" and "suggest only" is the caller's responsibility (the
// orchestrator decides whether to save the result), not a different
// prompt or model behavior.
func (e *Editor) SuggestRevision(ctx context.Context, req session.ReviseRequest) (string, error) {
	return e.revise(ctx, req)
}

func (e *Editor) revise(ctx context.Context, req session.ReviseRequest) (string, error) {
	if e.isMock() {
		return e.mockRevise(req), nil
	}

	result, err := e.llm.Chat(ctx, &providers.ChatRequest{
		Model: e.model,
		Messages: []providers.Message{
			{Role: "system", Content: editorSystemPrompt},
			{Role: "user", Content: e.revisePrompt(req)},
		},
	})
	if err != nil {
		return "", toolFailure(e.base, err)
	}
	return strings.TrimSpace(result.Content), nil
}

// mockRevise is the rule-based fallback used when no LLM profile is
// configured: append the feedback as a continuation rather than actually
// rewriting, so downstream steps always have some text to work with.
func (e *Editor) mockRevise(req session.ReviseRequest) string {
	if req.UserFeedback == "" {
		return req.Content
	}
	return strings.TrimRight(req.Content, "\n") + "\n\n" + req.UserFeedback
}

func (e *Editor) revisePrompt(req session.ReviseRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chapter: %s\n", req.Chapter)
	if req.UserFeedback != "" {
		fmt.Fprintf(&b, "Feedback: %s\n", req.UserFeedback)
	}
	if len(req.RejectedEntities) > 0 {
		fmt.Fprintf(&b, "Rejected entities (remove or avoid): %s\n", strings.Join(req.RejectedEntities, ", "))
	}
	if req.MemoryPack.Payload.WorkingMemory != "" {
		fmt.Fprintf(&b, "Working memory:\n%s\n", e.truncate(req.MemoryPack.Payload.WorkingMemory))
	}
	fmt.Fprintf(&b, "\nCurrent draft:\n%s\n", e.truncate(req.Content))
	return b.String()
}
