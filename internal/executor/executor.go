// Package executor runs a planner.Plan against a CorpusState, one action at
// a time, and reports per-action skip/success/fail outcomes. It never
// aborts the remainder of a plan because one action failed.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/logging"
	"github.com/dcruver/orgkeep/internal/planner"
)

// ActionRecord is one action's outcome within an executed plan.
type ActionRecord struct {
	ActionName string
	Success    bool
	Skipped    bool
	Message    string
}

// Options controls how Execute runs a plan.
type Options struct {
	// SafeOnly skips every Proposal-class action without attempting it.
	SafeOnly bool
	// EmitJournal, when true and env.Semantic is configured, sends one
	// daily-journal summary through AddDailyEntry after the plan completes.
	EmitJournal bool
}

// Result is the terminal outcome of running a Plan against a CorpusState.
type Result struct {
	Records   []ActionRecord
	State     *corpus.CorpusState
	Succeeded int
	Failed    int
	Skipped   int
}

// Execute iterates plan in order. For each action: if SafeOnly is set and
// the action is Proposal-class, it is skipped. Otherwise its preconditions
// are re-checked against the current state and the effects accumulated
// from earlier successful actions in this run; if unmet, it is skipped
// with reason "Preconditions no longer met". Otherwise it is executed; on
// success the returned state replaces the current one and its effects are
// recorded, on failure the record carries the error and the plan
// continues with the next action. Cancellation is honored between
// actions, never mid-execute: the action in flight always finishes.
func Execute(ctx context.Context, plan planner.Plan, state *corpus.CorpusState, env *planner.Environment, opts Options) Result {
	log := logging.Get(logging.CategoryExecutor)
	result := Result{State: state}
	effects := map[planner.EffectTag]bool{}

	for _, entry := range plan.Entries {
		action := entry.Action

		if ctx.Err() != nil {
			result.Records = append(result.Records, ActionRecord{
				ActionName: action.Name(),
				Skipped:    true,
				Message:    "skipped: " + ctx.Err().Error(),
			})
			result.Skipped++
			continue
		}

		if opts.SafeOnly && entry.Safety == planner.Proposal {
			result.Records = append(result.Records, ActionRecord{
				ActionName: action.Name(),
				Skipped:    true,
				Message:    "skipped: safe_only set and action is Proposal",
			})
			result.Skipped++
			log.Info("skip %s: safe_only", action.Name())
			continue
		}

		if !preconditionsMet(action, result.State, effects) {
			result.Records = append(result.Records, ActionRecord{
				ActionName: action.Name(),
				Skipped:    true,
				Message:    "Preconditions no longer met",
			})
			result.Skipped++
			log.Warn("skip %s: preconditions no longer met", action.Name())
			continue
		}

		execResult, err := action.Execute(ctx, env, result.State)
		if err != nil {
			result.Records = append(result.Records, ActionRecord{
				ActionName: action.Name(),
				Success:    false,
				Message:    err.Error(),
			})
			result.Failed++
			log.Error("%s failed: %v", action.Name(), err)
			continue
		}

		result.State = execResult.State
		for _, e := range action.Effects() {
			effects[e] = true
		}
		result.Records = append(result.Records, ActionRecord{
			ActionName: action.Name(),
			Success:    true,
			Message:    execResult.Message,
		})
		result.Succeeded++
		log.Info("%s: %s", action.Name(), execResult.Message)
	}

	if opts.EmitJournal && env != nil && env.Semantic != nil {
		if err := emitJournalSummary(ctx, env, result); err != nil {
			log.Warn("journal summary not recorded: %v", err)
		}
	}

	return result
}

func preconditionsMet(action planner.Action, state *corpus.CorpusState, effects map[planner.EffectTag]bool) bool {
	for _, pc := range action.Preconditions() {
		if !pc.Check(state, effects) {
			return false
		}
	}
	return true
}

// emitJournalSummary sends one daily-note entry through the semantic
// gateway summarizing this run. The core never writes journal notes
// directly — AddDailyEntry is the only path.
func emitJournalSummary(ctx context.Context, env *planner.Environment, result Result) error {
	points := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		status := "ok"
		switch {
		case r.Skipped:
			status = "skipped"
		case !r.Success:
			status = "failed"
		}
		points = append(points, fmt.Sprintf("%s: %s (%s)", r.ActionName, status, r.Message))
	}

	title := fmt.Sprintf("orgkeep maintenance: %d ok, %d failed, %d skipped", result.Succeeded, result.Failed, result.Skipped)
	return env.Semantic.AddDailyEntry(ctx, runNow(env), title, points, nil, []string{"orgkeep", "maintenance"})
}

func runNow(env *planner.Environment) time.Time {
	if env.Now != nil {
		return env.Now()
	}
	return time.Now()
}
