package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/executor"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Scan, plan, and run the maintenance plan",
	Long: `Scans the corpus, computes a plan exactly as 'orgkeep plan' does, then
executes it action by action. Safe actions write directly to notes (always
backed up first); Proposal actions are written to the patch store for
later review, unless --safe-only is set, in which case they are skipped
outright. A single action's failure never aborts the remainder of the
plan.`,
	RunE: runExecute,
}

func runExecute(cmd *cobra.Command, args []string) error {
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
	result := executor.Execute(ctx, *plan, state, rt.env, executor.Options{
		SafeOnly:    safeOnly,
		EmitJournal: rt.env.Semantic != nil,
	})

	for _, rec := range result.Records {
		status := "ok"
		switch {
		case rec.Skipped:
			status = "skipped"
		case !rec.Success:
			status = "failed"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", status, rec.ActionName, rec.Message)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nsucceeded=%d failed=%d skipped=%d\n", result.Succeeded, result.Failed, result.Skipped)
	return nil
}
