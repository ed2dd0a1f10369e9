package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/wenshape/internal/memorypack"
	"github.com/jackzampolin/wenshape/internal/model"
)

// Start launches spec.md §4.9's start_session: generate the scene brief,
// ensure a memory pack (which runs the research loop), and either land on
// WAITING_USER_INPUT (if the pack's research surfaced questions and the
// question-round cap has not been hit) or move straight into drafting.
//
// Start returns once the session state has been set to GENERATING_BRIEF
// and the background work has been launched; it does not block for the
// background phase to finish.
func (o *Orchestrator) Start(projectID, chapter, goal string) {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.goal = goal
	o.version = "v1"
	o.state = model.SessionState{ProjectID: projectID, Chapter: chapter, Status: model.StatusGeneratingBrief}
	o.mu.Unlock()

	o.emit(model.ProgressEvent{Type: "status", Status: string(model.StatusGeneratingBrief)})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runBrief(runCtx, chapter, goal, nil, 0)
	}()
}

func (o *Orchestrator) runBrief(ctx context.Context, chapter, goal string, userAnswers []string, questionRound int) {
	result, err := o.archivist.GenerateBrief(ctx, BriefRequest{
		Chapter:       chapter,
		GoalHint:      goal,
		UserAnswers:   userAnswers,
		QuestionRound: questionRound,
	})
	if err != nil {
		o.fail("generate_brief", err)
		return
	}
	if result.Brief.Chapter == "" {
		result.Brief.Chapter = chapter
	}

	if err := o.store.SaveSceneBrief(ctx, result.Brief); err != nil {
		o.fail("save_scene_brief", err)
		return
	}

	o.mu.Lock()
	o.brief = result.Brief
	o.mu.Unlock()

	pack, err := o.memoryPacks.Ensure(ctx, memorypack.Request{
		Chapter:    chapter,
		Goal:       goal,
		SceneBrief: &result.Brief,
		Source:     "session_start",
	})
	if err != nil {
		o.fail("ensure_memory_pack", err)
		return
	}

	o.mu.Lock()
	o.pack = pack
	o.mu.Unlock()

	if result.NeedsUserInput && len(pack.Payload.Questions) > 0 {
		o.mu.Lock()
		withinCap := o.state.QuestionRound < o.maxQuestionRounds
		if withinCap {
			o.state.QuestionRound++
			o.state.Status = model.StatusWaitingUserInput
		}
		o.mu.Unlock()
		if withinCap {
			o.emit(model.ProgressEvent{Type: "questions", Status: string(model.StatusWaitingUserInput), Payload: map[string]any{"questions": pack.Payload.Questions}})
			return
		}
	}

	o.runDraft(ctx, "")
}

// AnswerQuestions implements the answer_questions transition: it folds the
// user's answers into the chapter goal, re-ensures the memory pack (forced
// refresh, since new information is available), and proceeds to drafting.
func (o *Orchestrator) AnswerQuestions(answers []string) error {
	o.mu.Lock()
	if o.state.Status != model.StatusWaitingUserInput {
		o.mu.Unlock()
		return fmt.Errorf("session: answer_questions called outside waiting_user_input (status=%s)", o.state.Status)
	}
	chapter := o.state.Chapter
	goal := o.goal
	o.state.Status = model.StatusWritingDraft
	o.mu.Unlock()

	ctx := context.Background()
	mergedGoal := mergeGoalWithAnswers(goal, answers)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.resumeAfterAnswers(ctx, chapter, mergedGoal)
	}()
	return nil
}

func (o *Orchestrator) resumeAfterAnswers(ctx context.Context, chapter, mergedGoal string) {
	o.mu.Lock()
	brief := o.brief
	o.mu.Unlock()

	pack, err := o.memoryPacks.Ensure(ctx, memorypack.Request{
		Chapter:      chapter,
		Goal:         mergedGoal,
		SceneBrief:   &brief,
		ForceRefresh: true,
		Source:       "answer_questions",
	})
	if err != nil {
		o.fail("ensure_memory_pack_after_answers", err)
		return
	}
	o.mu.Lock()
	o.goal = mergedGoal
	o.pack = pack
	o.mu.Unlock()

	o.runDraft(ctx, "")
}

func mergeGoalWithAnswers(goal string, answers []string) string {
	nonEmpty := make([]string, 0, len(answers))
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(a))
		}
	}
	if len(nonEmpty) == 0 {
		return goal
	}
	if goal == "" {
		return strings.Join(nonEmpty, "; ")
	}
	return goal + "; " + strings.Join(nonEmpty, "; ")
}
