// Package main implements the orgkeep CLI: the shell collaborator around
// the scan/plan/execute/proposal core described in the programmatic
// surface. It owns process lifecycle and flag parsing only — every
// maintenance decision lives in internal/planner and internal/executor.
//
// # File Index
//
//   - main.go            - entry point, rootCmd, global flags, init()
//   - cmd_scan.go         - scanCmd, runScan()
//   - cmd_plan.go         - planCmd, runPlan()
//   - cmd_execute.go      - executeCmd, runExecute()
//   - cmd_proposals.go    - listProposalsCmd, showProposalCmd, approveProposalCmd, applyProposalCmd, rejectProposalCmd
//   - cmd_watch.go        - watchCmd, runWatch()
//   - environment.go      - buildRuntime(), shared wiring for every command
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dcruver/orgkeep/internal/config"
	"github.com/dcruver/orgkeep/internal/logging"
)

var (
	workspace  string
	configPath string
	verbose    bool
	safeOnly   bool
	timeout    time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orgkeep",
	Short: "orgkeep maintains a corpus of plain-text structured notes",
	Long: `orgkeep scans a notes corpus, scores its health, plans a sequence of
maintenance actions toward that health target, and executes the safe ones
directly while leaving riskier changes as reviewable proposals.

It never edits notes interactively and never owns the semantic-search
index, chat model, or note-authoring environment — those are external
collaborators it talks to over the network.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		debug := false
		if cfg, err := config.Load(resolveConfigPath(ws)); err == nil {
			debug = cfg.DebugMode
		}
		if err := logging.Initialize(ws, debug); err != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging not initialized: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "notes root (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to orgkeep.yaml (default: <workspace>/.orgkeep/orgkeep.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "operation timeout")

	executeCmd.Flags().BoolVar(&safeOnly, "safe-only", false, "skip every Proposal-class action")

	rootCmd.AddCommand(
		scanCmd,
		planCmd,
		executeCmd,
		listProposalsCmd,
		showProposalCmd,
		approveProposalCmd,
		applyProposalCmd,
		rejectProposalCmd,
		watchCmd,
	)
}

func resolveWorkspace() string {
	if workspace != "" {
		abs, err := filepath.Abs(workspace)
		if err == nil {
			return abs
		}
		return workspace
	}
	cwd, _ := os.Getwd()
	return cwd
}

func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(ws, ".orgkeep", "orgkeep.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
