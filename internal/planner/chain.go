package planner

import (
	"fmt"
	"sort"

	"github.com/dcruver/orgkeep/internal/corpus"
)

// ServiceProbe checks reachability of the external services actions may
// require. The planner probes once per plan, per spec.md §4.6, and filters
// candidate actions rather than failing when a service is down.
type ServiceProbe func(service string) bool

// Plan resolves goals into an ordered Plan of actions against state, using
// catalog as the candidate action pool. probe is called at most once per
// distinct service name named by RequiresServices.
func Plan(state *corpus.CorpusState, goals []Goal, catalog []Action, cfg Config, probe ServiceProbe) *Plan {
	plan := &Plan{}

	available := map[string]bool{}
	usable := make([]Action, 0, len(catalog))
	for _, a := range catalog {
		reachable := true
		for _, svc := range a.RequiresServices() {
			ok, probed := available[svc]
			if !probed {
				ok = probe == nil || probe(svc)
				available[svc] = ok
			}
			if !ok {
				reachable = false
				break
			}
		}
		if reachable {
			usable = append(usable, a)
		} else {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("action %s filtered: required service unavailable", a.Name()))
		}
	}

	statuses := EvaluateAll(goals, state, cfg)

	var unsatisfied []Goal
	for _, g := range goals {
		if statuses[g.Name] == Unsatisfied {
			unsatisfied = append(unsatisfied, g)
		}
	}
	sort.SliceStable(unsatisfied, func(i, j int) bool {
		if unsatisfied[i].Priority != unsatisfied[j].Priority {
			return unsatisfied[i].Priority > unsatisfied[j].Priority
		}
		return unsatisfied[i].Name < unsatisfied[j].Name
	})

	effectsSoFar := map[EffectTag]bool{}
	added := map[string]bool{}
	var entries []PlanEntry

	for _, g := range unsatisfied {
		if resolveGoal(g, state, usable, cfg, effectsSoFar, added, &entries) {
			continue
		}
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("no plan for goal %s", g.Name))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Safety < entries[j].Safety
	})

	plan.Entries = entries
	return plan
}

// resolveGoal finds the lowest-cost action whose effects intersect the
// goal's required effects and whose precondition chain can be satisfied
// within cfg.MaxChainDepth, appending it (and any precondition-producing
// actions beneath it) to entries.
func resolveGoal(g Goal, state *corpus.CorpusState, catalog []Action, cfg Config, effectsSoFar map[EffectTag]bool, added map[string]bool, entries *[]PlanEntry) bool {
	candidates := actionsWithAnyEffect(catalog, g.RequiredEffects)
	sortByCostAsc(candidates, state)

	for _, a := range candidates {
		if a.Cost(state) <= 0 {
			continue // cost 0 is forbidden: would admit infinite loops
		}
		if resolveAction(a, g.Name, state, catalog, cfg, effectsSoFar, added, entries, 0, map[string]bool{}) {
			return true
		}
	}
	return false
}

func resolveAction(a Action, goalName string, state *corpus.CorpusState, catalog []Action, cfg Config, effectsSoFar map[EffectTag]bool, added map[string]bool, entries *[]PlanEntry, depth int, visiting map[string]bool) bool {
	if added[a.Name()] {
		return true // already scheduled this cycle; its effects are already accumulated
	}
	maxDepth := cfg.MaxChainDepth
	if maxDepth <= 0 {
		maxDepth = 8
	}
	if depth > maxDepth {
		return false // PlanDepthExhausted: downgrade to "no plan", never panic
	}
	if visiting[a.Name()] {
		return false // cycle on the current chain
	}
	visiting[a.Name()] = true
	defer delete(visiting, a.Name())

	// Snapshot everything a chained producer call might commit, so a later
	// precondition failing on this same action rolls back producers that
	// were only legitimate on the assumption a itself would end up usable.
	entriesLen := len(*entries)
	addedSnapshot := cloneBoolMap(added)
	effectsSnapshot := cloneEffectMap(effectsSoFar)

	for _, pc := range a.Preconditions() {
		if pc.Check(state, effectsSoFar) {
			continue
		}
		satisfied := false
		if pc.RequiresEffect != "" {
			for _, producer := range actionsWithEffect(catalog, pc.RequiresEffect) {
				if producer.Name() == a.Name() || producer.Cost(state) <= 0 {
					continue
				}
				if resolveAction(producer, goalName, state, catalog, cfg, effectsSoFar, added, entries, depth+1, visiting) {
					if pc.Check(state, effectsSoFar) {
						satisfied = true
						break
					}
				}
			}
		}
		if !satisfied {
			*entries = (*entries)[:entriesLen]
			restoreBoolMap(added, addedSnapshot)
			restoreEffectMap(effectsSoFar, effectsSnapshot)
			return false
		}
	}

	*entries = append(*entries, PlanEntry{
		Action:    a,
		Cost:      a.Cost(state),
		Rationale: fmt.Sprintf("introduced by goal %s", goalName),
		Safety:    a.Safety(),
	})
	added[a.Name()] = true
	for _, eff := range a.Effects() {
		effectsSoFar[eff] = true
	}
	return true
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneEffectMap(m map[EffectTag]bool) map[EffectTag]bool {
	out := make(map[EffectTag]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// restoreBoolMap resets m to snapshot in place: m is shared with callers
// higher up the chain, so it must be mutated, not replaced.
func restoreBoolMap(m map[string]bool, snapshot map[string]bool) {
	for k := range m {
		if _, ok := snapshot[k]; !ok {
			delete(m, k)
		}
	}
	for k, v := range snapshot {
		m[k] = v
	}
}

func restoreEffectMap(m map[EffectTag]bool, snapshot map[EffectTag]bool) {
	for k := range m {
		if _, ok := snapshot[k]; !ok {
			delete(m, k)
		}
	}
	for k, v := range snapshot {
		m[k] = v
	}
}

func actionsWithAnyEffect(catalog []Action, wanted []EffectTag) []Action {
	var out []Action
	for _, a := range catalog {
		if hasAnyEffect(a, wanted) {
			out = append(out, a)
		}
	}
	return out
}

func actionsWithEffect(catalog []Action, tag EffectTag) []Action {
	return actionsWithAnyEffect(catalog, []EffectTag{tag})
}

func hasAnyEffect(a Action, wanted []EffectTag) bool {
	for _, e := range a.Effects() {
		for _, w := range wanted {
			if e == w {
				return true
			}
		}
	}
	return false
}

func sortByCostAsc(actions []Action, state *corpus.CorpusState) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Cost(state) < actions[j].Cost(state)
	})
}
