package session

import (
	"context"

	"github.com/jackzampolin/wenshape/internal/model"
)

// runDraft executes spec.md §4.9's streaming draft phase: emit
// stream_start, run the writer with token callbacks wired to the progress
// bus, persist draft v1, collect pending_confirmations, detect proposals,
// and land on WAITING_FEEDBACK.
func (o *Orchestrator) runDraft(ctx context.Context, userFeedback string) {
	o.setStatus(model.StatusWritingDraft)

	o.mu.Lock()
	chapter, brief, pack := o.state.Chapter, o.brief, o.pack
	o.mu.Unlock()

	o.emit(model.ProgressEvent{Type: "stream_start", Status: string(model.StatusWritingDraft)})

	result, err := o.writer.StreamDraft(ctx, DraftRequest{
		Chapter:      chapter,
		Brief:        brief,
		MemoryPack:   pack,
		UserFeedback: userFeedback,
	}, func(chunk string) {
		o.emit(model.ProgressEvent{Type: "token", Payload: map[string]any{"content": chunk}})
	})
	if err != nil {
		o.fail("stream_draft", err)
		return
	}

	confirmations := dedupCap(append(append([]string{}, result.Confirmations...), append(pack.Payload.UnresolvedGaps, pack.Payload.SufficiencyReport.MissingEntities...)...), maxPendingConfirmations)

	if _, err := o.store.SaveDraft(ctx, chapter, "v1", result.Content); err != nil {
		o.fail("save_draft", err)
		return
	}

	proposals := o.detectProposals(ctx, chapter, result.Content)

	o.mu.Lock()
	o.version = "v1"
	o.state.Status = model.StatusWaitingFeedback
	o.mu.Unlock()

	o.emit(model.ProgressEvent{
		Type:   "stream_end",
		Status: string(model.StatusWaitingFeedback),
		Payload: map[string]any{
			"content":               result.Content,
			"version":               "v1",
			"pending_confirmations": confirmations,
			"proposals":             proposals,
		},
	})
}

// detectProposals runs the archivist's heuristic-only extraction and
// filters out Character proposals, per spec.md §4.9 "product policy".
func (o *Orchestrator) detectProposals(ctx context.Context, chapter, content string) []model.CardProposal {
	if o.archivist == nil {
		return nil
	}
	proposals, err := o.archivist.DetectProposals(ctx, chapter, content)
	if err != nil {
		o.log.Warn("session: detect_proposals failed", "error", err, "chapter", chapter)
		return nil
	}
	out := make([]model.CardProposal, 0, len(proposals))
	for _, p := range proposals {
		if p.Type == "character" || p.Type == "Character" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dedupCap dedupes in order and caps the result at limit items.
func dedupCap(items []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, limit)
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) >= limit {
			break
		}
	}
	return out
}
