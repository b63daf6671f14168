package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/planner"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Scan the corpus and print the maintenance plan without running it",
	Long: `Scans the corpus, evaluates every maintenance goal against the
resulting CorpusState, and backward-chains a plan toward whichever goals
are unsatisfied. Prints the ordered action list and any planning
warnings; never touches a note or the proposal store.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	scanner := corpus.NewScanner(corpus.Config{
		Root:                rt.cfg.NotesRoot,
		EmbeddingMaxAgeDays: rt.cfg.EmbeddingsMaxAgeDays,
		HealthConfig:        rt.cfg.HealthConfig(),
	})
	state, _ := scanner.Scan(ctx)

	plan := computePlan(ctx, rt, state)
	printPlan(cmd, plan)
	return nil
}

// computePlan evaluates the default goal set against state and backward
// chains the default action catalog toward every unsatisfied one.
func computePlan(ctx context.Context, rt *runtime, state *corpus.CorpusState) *planner.Plan {
	pc := rt.env.Config
	goals := planner.DefaultGoals()
	catalog := planner.NewCatalog(pc)
	probe := serviceProbe(ctx, rt.env)
	return planner.Plan(state, goals, catalog, pc, probe)
}

func printPlan(cmd *cobra.Command, plan *planner.Plan) {
	out := cmd.OutOrStdout()
	if len(plan.Entries) == 0 {
		fmt.Fprintln(out, "no actions planned")
	}
	for i, entry := range plan.Entries {
		fmt.Fprintf(out, "%d. [%s] %s (cost=%.1f) — %s\n", i+1, entry.Safety, entry.Action.Name(), entry.Cost, entry.Rationale)
	}
	for _, w := range plan.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
}
