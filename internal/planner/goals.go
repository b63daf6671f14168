package planner

import "github.com/dcruver/orgkeep/internal/corpus"

// DefaultGoals returns the fixed goal set from spec.md §4.5, in an order
// that is also a valid evaluation order: EstablishHierarchy's Evaluate
// inspects ReduceOrphans's already-computed status, so ReduceOrphans must
// precede it in the slice EvaluateAll walks.
func DefaultGoals() []Goal {
	return []Goal{
		{
			Name:            "MaintainHealthyCorpus",
			Priority:        100,
			RequiredEffects: []EffectTag{EffectFormatOk, EffectEmbeddingsFresh, EffectCoherenceImproved, EffectRedundancyReduced},
			Evaluate: func(state *corpus.CorpusState, cfg Config, _ map[string]GoalStatus) GoalStatus {
				if state.TotalNotes == 0 {
					return NotApplicable
				}
				if state.MeanHealthScore >= cfg.TargetHealth {
					return Satisfied
				}
				return Unsatisfied
			},
		},
		{
			Name:            "EnsureEmbeddingsFresh",
			Priority:        90,
			RequiredEffects: []EffectTag{EffectEmbeddingsFresh},
			Evaluate: func(state *corpus.CorpusState, cfg Config, _ map[string]GoalStatus) GoalStatus {
				if state.TotalNotes == 0 {
					return NotApplicable
				}
				if state.NotesWithStaleEmbeddings == 0 && state.NotesWithEmbeddings == len(state.EligibleNotes()) {
					return Satisfied
				}
				return Unsatisfied
			},
		},
		{
			Name:            "EnforceFormattingPolicy",
			Priority:        70,
			RequiredEffects: []EffectTag{EffectFormatOk},
			Evaluate: func(state *corpus.CorpusState, cfg Config, _ map[string]GoalStatus) GoalStatus {
				if state.TotalNotes == 0 {
					return NotApplicable
				}
				if state.NotesWithFormatIssues == 0 {
					return Satisfied
				}
				return Unsatisfied
			},
		},
		{
			Name:            "ReduceOrphans",
			Priority:        60,
			RequiredEffects: []EffectTag{EffectCoherenceImproved, EffectRedundancyReduced},
			Evaluate: func(state *corpus.CorpusState, cfg Config, _ map[string]GoalStatus) GoalStatus {
				if state.TotalNotes == 0 {
					return NotApplicable
				}
				pct := 100 * float64(state.OrphanNotes) / float64(state.TotalNotes)
				if pct <= cfg.AcceptableOrphanPercentage {
					return Satisfied
				}
				return Unsatisfied
			},
		},
		{
			Name:            "EstablishHierarchy",
			Priority:        70,
			RequiredEffects: []EffectTag{EffectHierarchyEstablished},
			Evaluate: func(state *corpus.CorpusState, cfg Config, statuses map[string]GoalStatus) GoalStatus {
				if state.TotalNotes == 0 {
					return NotApplicable
				}
				if statuses["ReduceOrphans"] != Satisfied {
					return Blocked
				}
				if len(state.ImplicitCategories) == 0 {
					return NotApplicable
				}
				for _, cat := range state.ImplicitCategories {
					if len(cat.NoteIDs) < cfg.MinCategorySize {
						continue
					}
					if !hasHubFor(state, cat) {
						return Unsatisfied
					}
				}
				return Satisfied
			},
		},
	}
}

func hasHubFor(state *corpus.CorpusState, cat corpus.ImplicitCategory) bool {
	for _, hub := range state.HubCandidates {
		for _, id := range cat.NoteIDs {
			if hub.NoteID == id {
				return true
			}
		}
	}
	return false
}

// EvaluateAll evaluates goals in slice order, giving each Evaluate function
// the statuses already computed for goals earlier in the slice.
func EvaluateAll(goals []Goal, state *corpus.CorpusState, cfg Config) map[string]GoalStatus {
	statuses := make(map[string]GoalStatus, len(goals))
	for _, g := range goals {
		statuses[g.Name] = g.Evaluate(state, cfg, statuses)
	}
	return statuses
}
