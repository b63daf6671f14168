package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/planner"
	"github.com/dcruver/orgkeep/internal/semantic"
)

// stubAction is a minimal planner.Action for exercising the executor loop
// without real file I/O or external services.
type stubAction struct {
	name     string
	safety   planner.Safety
	effects  []planner.EffectTag
	preconds []planner.Precondition
	execErr  error
	execMsg  string
	newState *corpus.CorpusState
	calls    *int
}

func (s stubAction) Name() string                      { return s.name }
func (s stubAction) Cost(*corpus.CorpusState) float64   { return 1 }
func (s stubAction) Safety() planner.Safety             { return s.safety }
func (s stubAction) Effects() []planner.EffectTag       { return s.effects }
func (s stubAction) RequiresServices() []string         { return nil }
func (s stubAction) Preconditions() []planner.Precondition { return s.preconds }
func (s stubAction) Execute(ctx context.Context, env *planner.Environment, state *corpus.CorpusState) (planner.ExecuteResult, error) {
	if s.calls != nil {
		*s.calls++
	}
	if s.execErr != nil {
		return planner.ExecuteResult{}, s.execErr
	}
	next := state
	if s.newState != nil {
		next = s.newState
	}
	return planner.ExecuteResult{State: next, Message: s.execMsg}, nil
}

func planEntry(a planner.Action) planner.PlanEntry {
	return planner.PlanEntry{Action: a, Cost: a.Cost(nil), Rationale: "test", Safety: a.Safety()}
}

func TestExecuteRunsSafeActionsAndAccumulatesEffects(t *testing.T) {
	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	a := stubAction{name: "a", safety: planner.Safe, effects: []planner.EffectTag{"E1"}, execMsg: "did a"}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(a)}}

	result := Execute(context.Background(), plan, state, &planner.Environment{}, Options{})

	if result.Succeeded != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want 1 succeeded", result)
	}
	if result.Records[0].Message != "did a" {
		t.Errorf("Message = %q, want %q", result.Records[0].Message, "did a")
	}
}

func TestExecuteSkipsProposalActionsWhenSafeOnly(t *testing.T) {
	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	calls := 0
	a := stubAction{name: "proposal-one", safety: planner.Proposal, calls: &calls}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(a)}}

	result := Execute(context.Background(), plan, state, &planner.Environment{}, Options{SafeOnly: true})

	if result.Skipped != 1 || result.Succeeded != 0 {
		t.Fatalf("result = %+v, want 1 skipped", result)
	}
	if calls != 0 {
		t.Errorf("Execute was called %d times, want 0 (skipped before execution)", calls)
	}
	if result.Records[0].Message == "" {
		t.Errorf("expected a skip reason message")
	}
}

func TestExecuteSkipsWhenPreconditionNoLongerMet(t *testing.T) {
	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	a := stubAction{
		name:   "needs-impossible",
		safety: planner.Safe,
		preconds: []planner.Precondition{{
			Name:  "impossible",
			Check: func(*corpus.CorpusState, map[planner.EffectTag]bool) bool { return false },
		}},
	}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(a)}}

	result := Execute(context.Background(), plan, state, &planner.Environment{}, Options{})

	if result.Skipped != 1 {
		t.Fatalf("result = %+v, want 1 skipped", result)
	}
	if result.Records[0].Message != "Preconditions no longer met" {
		t.Errorf("Message = %q, want exact reason string", result.Records[0].Message)
	}
}

func TestExecutePreconditionSeesAccumulatedEffects(t *testing.T) {
	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	producer := stubAction{name: "producer", safety: planner.Safe, effects: []planner.EffectTag{"Produced"}}
	consumer := stubAction{
		name:   "consumer",
		safety: planner.Safe,
		preconds: []planner.Precondition{{
			Name:           "needs_produced",
			RequiresEffect: "Produced",
			Check: func(_ *corpus.CorpusState, effects map[planner.EffectTag]bool) bool {
				return effects["Produced"]
			},
		}},
	}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(producer), planEntry(consumer)}}

	result := Execute(context.Background(), plan, state, &planner.Environment{}, Options{})

	if result.Succeeded != 2 {
		t.Fatalf("result = %+v, want both actions to succeed", result)
	}
}

func TestExecuteContinuesAfterFailure(t *testing.T) {
	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	failing := stubAction{name: "failing", safety: planner.Safe, execErr: errors.New("boom")}
	after := stubAction{name: "after", safety: planner.Safe, execMsg: "ran anyway"}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(failing), planEntry(after)}}

	result := Execute(context.Background(), plan, state, &planner.Environment{}, Options{})

	if result.Failed != 1 || result.Succeeded != 1 {
		t.Fatalf("result = %+v, want 1 failed and 1 succeeded", result)
	}
	if result.Records[0].Message != "boom" {
		t.Errorf("Message = %q, want the underlying error text", result.Records[0].Message)
	}
}

func TestExecuteReplacesStateOnSuccess(t *testing.T) {
	original := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	replaced := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{"x": {NoteID: "x"}}}
	a := stubAction{name: "a", safety: planner.Safe, newState: replaced}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(a)}}

	result := Execute(context.Background(), plan, original, &planner.Environment{}, Options{})

	if result.State != replaced {
		t.Errorf("State not replaced with the action's returned state")
	}
}

func TestExecuteStopsSchedulingAfterCancellation(t *testing.T) {
	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	calls := 0
	a := stubAction{name: "a", safety: planner.Safe, calls: &calls}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(a)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Execute(ctx, plan, state, &planner.Environment{}, Options{})

	if calls != 0 {
		t.Errorf("Execute called %d times, want 0 after cancellation", calls)
	}
	if result.Skipped != 1 {
		t.Errorf("result = %+v, want the action skipped", result)
	}
}

func TestExecuteEmitsJournalSummaryWhenRequested(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotMethod = req.Method
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": "ok"})
	}))
	defer srv.Close()

	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	a := stubAction{name: "a", safety: planner.Safe, execMsg: "done"}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(a)}}

	env := &planner.Environment{
		Semantic: semantic.NewClient(srv.URL, time.Second),
		Now:      func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}

	Execute(context.Background(), plan, state, env, Options{EmitJournal: true})

	if gotMethod != "add_daily_entry" {
		t.Errorf("RPC method = %q, want add_daily_entry", gotMethod)
	}
}

func TestExecuteSkipsJournalWhenSemanticUnconfigured(t *testing.T) {
	state := &corpus.CorpusState{Notes: map[string]*corpus.NoteMetadata{}}
	a := stubAction{name: "a", safety: planner.Safe}
	plan := planner.Plan{Entries: []planner.PlanEntry{planEntry(a)}}

	// Should not panic with a nil Semantic client.
	result := Execute(context.Background(), plan, state, &planner.Environment{}, Options{EmitJournal: true})
	if result.Succeeded != 1 {
		t.Fatalf("result = %+v, want 1 succeeded", result)
	}
}
