package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcruver/orgkeep/internal/corpus"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the notes corpus and report a health summary",
	Long: `Walks the notes root, parses every note, and folds the results into
a CorpusState: per-note health scores, the corpus mean, orphan count, and
any malformed-file warnings. Scan never writes to the corpus.`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
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

	state, warnings := scanner.Scan(ctx)
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "notes:          %d\n", state.TotalNotes)
	fmt.Fprintf(cmd.OutOrStdout(), "mean health:    %.1f\n", state.MeanHealthScore)
	fmt.Fprintf(cmd.OutOrStdout(), "orphan notes:   %d\n", state.OrphanNotes)
	fmt.Fprintf(cmd.OutOrStdout(), "implicit cats:  %d\n", len(state.ImplicitCategories))
	return nil
}
