package session

import (
	"context"
	"regexp"
	"strconv"

	"github.com/jackzampolin/wenshape/internal/memorypack"
	"github.com/jackzampolin/wenshape/internal/model"
)

// ProcessFeedback implements spec.md §4.9's process_feedback: confirm
// finalizes the chapter; otherwise it either rewrites (short drafts) or
// runs the editor (longer drafts), subject to the max_iterations cap.
func (o *Orchestrator) ProcessFeedback(ctx context.Context, action, userFeedback string, rejectedEntities []string) error {
	if action == "confirm" {
		return o.finalize(ctx)
	}

	o.mu.Lock()
	atCap := o.state.Iteration >= o.maxIterations
	if !atCap {
		o.state.Iteration++
	}
	chapter := o.state.Chapter
	o.mu.Unlock()

	if atCap {
		o.mu.Lock()
		o.state.Status = model.StatusError
		o.mu.Unlock()
		err := maxIterationsErr()
		o.emit(model.ProgressEvent{Type: "error", Status: string(model.StatusError), Payload: map[string]any{"error": err.Error()}})
		return err
	}

	content, err := o.store.LoadLatestDraft(chapter)
	if err != nil {
		o.fail("load_latest_draft", err)
		return err
	}

	if len(content) <= rewriteThresholdChars {
		return o.rewrite(ctx, chapter, userFeedback)
	}
	return o.revise(ctx, chapter, content, userFeedback, rejectedEntities)
}

// rewrite reloads the brief, prepares writer context without forcing a
// memory refresh, and runs the writer non-streaming to produce a new v1
// draft (spec.md §4.9 "draft_len <= 500" branch).
func (o *Orchestrator) rewrite(ctx context.Context, chapter, userFeedback string) error {
	brief, err := o.store.LoadSceneBrief(chapter)
	if err != nil {
		o.fail("load_scene_brief", err)
		return err
	}

	pack, err := o.memoryPacks.Ensure(ctx, memorypack.Request{
		Chapter:      chapter,
		SceneBrief:   &brief,
		UserFeedback: userFeedback,
		Source:       "rewrite",
	})
	if err != nil {
		o.fail("ensure_memory_pack", err)
		return err
	}

	result, err := o.writer.WriteDraft(ctx, DraftRequest{
		Chapter:      chapter,
		Brief:        brief,
		MemoryPack:   pack,
		UserFeedback: userFeedback,
	})
	if err != nil {
		o.fail("write_draft", err)
		return err
	}

	if _, err := o.store.SaveDraft(ctx, chapter, "v1", result.Content); err != nil {
		o.fail("save_draft", err)
		return err
	}

	o.mu.Lock()
	o.brief = brief
	o.pack = pack
	o.version = "v1"
	o.state.Status = model.StatusWaitingFeedback
	o.mu.Unlock()

	o.emit(model.ProgressEvent{Type: "stream_end", Status: string(model.StatusWaitingFeedback), Payload: map[string]any{"content": result.Content, "version": "v1"}})
	return nil
}

// revise runs the editor against the current draft and persists the
// result under the next version (spec.md §4.9 "draft_len > 500" branch).
func (o *Orchestrator) revise(ctx context.Context, chapter, content, userFeedback string, rejectedEntities []string) error {
	o.setStatus(model.StatusEditing)

	o.mu.Lock()
	pack := o.pack
	currentVersion := o.version
	o.mu.Unlock()

	revised, err := o.editor.Revise(ctx, ReviseRequest{
		Chapter:          chapter,
		Content:          content,
		UserFeedback:     userFeedback,
		RejectedEntities: rejectedEntities,
		MemoryPack:       pack,
	})
	if err != nil {
		o.fail("editor_revise", err)
		return err
	}

	nextVersion := incrementVersion(currentVersion)
	if _, err := o.store.SaveDraft(ctx, chapter, nextVersion, revised); err != nil {
		o.fail("save_draft", err)
		return err
	}

	o.mu.Lock()
	o.version = nextVersion
	o.state.Status = model.StatusWaitingFeedback
	o.mu.Unlock()

	o.emit(model.ProgressEvent{Type: "stream_end", Status: string(model.StatusWaitingFeedback), Payload: map[string]any{"content": revised, "version": nextVersion}})
	return nil
}

// finalize copies the latest draft to final.md (rotating prior finals),
// then runs analysis best-effort (spec.md §4.9 "Finalize").
func (o *Orchestrator) finalize(ctx context.Context) error {
	o.mu.Lock()
	chapter := o.state.Chapter
	o.mu.Unlock()

	content, err := o.store.LoadLatestDraft(chapter)
	if err != nil {
		o.fail("load_latest_draft", err)
		return err
	}

	if _, err := o.store.SaveFinal(ctx, chapter, content); err != nil {
		o.fail("save_final", err)
		return err
	}

	o.mu.Lock()
	o.state.Status = model.StatusCompleted
	o.mu.Unlock()
	o.emit(model.ProgressEvent{Type: "status", Status: string(model.StatusCompleted)})

	if o.analyzer != nil {
		if err := o.analyzer.AnalyzeChapter(ctx, chapter); err != nil {
			o.log.Warn("session: post-finalize analysis failed", "error", err, "chapter", chapter)
		}
	}
	return nil
}

// SuggestEdit implements spec.md §4.9's suggest_edit: a non-persistent
// editor pass over caller-supplied content.
func (o *Orchestrator) SuggestEdit(ctx context.Context, content, instruction, contextMode string, rejectedEntities []string) (string, int, error) {
	o.mu.Lock()
	chapter := o.state.Chapter
	o.mu.Unlock()

	pack, err := o.memoryPacks.Ensure(ctx, memorypack.Request{
		Chapter:      chapter,
		ForceRefresh: contextMode == "full",
		Source:       "suggest_edit",
	})
	if err != nil {
		return "", 0, err
	}

	revised, err := o.editor.SuggestRevision(ctx, ReviseRequest{
		Chapter:          chapter,
		Content:          content,
		UserFeedback:     instruction,
		RejectedEntities: rejectedEntities,
		MemoryPack:       pack,
	})
	if err != nil {
		return "", 0, err
	}
	return revised, wordCount(revised), nil
}

var versionPattern = regexp.MustCompile(`^v(\d+)$`)

// incrementVersion turns "v1" into "v2", "v2" into "v3", and so on
// (spec.md §4.9 "increment_version"). Unrecognized input is treated as v1.
func incrementVersion(v string) string {
	m := versionPattern.FindStringSubmatch(v)
	if m == nil {
		return "v2"
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "v2"
	}
	return "v" + strconv.Itoa(n+1)
}

// wordCount approximates word_count for mixed CJK/ASCII prose: each CJK
// ideograph counts as one word; ASCII runs separated by whitespace count
// as one word each.
func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			n++
			inWord = false
			continue
		}
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '　' {
			inWord = false
			continue
		}
		if !inWord {
			n++
		}
		inWord = true
	}
	return n
}
