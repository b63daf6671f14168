package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/executor"
	"github.com/dcruver/orgkeep/internal/logging"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-scan and re-execute safe actions whenever a note changes",
	Long: `A foreground convenience loop, not a daemon: watches the notes root
for .org file changes, debounces rapid saves, and re-runs scan → plan →
execute --safe-only on settle. Proposal-class actions are never run from
watch mode; review them with list-proposals/show-proposal/apply-proposal.
Stop with Ctrl+C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := addWatchDirs(fsw, rt.cfg.NotesRoot); err != nil {
		return fmt.Errorf("watch notes root: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.OutOrStdout(), "\nstopping watch")
		cancel()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", rt.cfg.NotesRoot)
	cycle(ctx, cmd, rt)

	const debounce = 750 * time.Millisecond
	var mu sync.Mutex
	pending := map[string]time.Time{}
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".org") {
				continue
			}
			logging.Get(logging.CategoryCLI).Debug("watch event %s %s", event.Op, event.Name)
			mu.Lock()
			pending[event.Name] = time.Now()
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)

		case <-ticker.C:
			mu.Lock()
			settled := false
			now := time.Now()
			for path, at := range pending {
				if now.Sub(at) >= debounce {
					settled = true
					delete(pending, path)
				}
			}
			mu.Unlock()
			if settled {
				cycle(ctx, cmd, rt)
			}
		}
	}
}

// cycle runs one scan → plan → execute(safe-only) pass and prints a
// one-line summary. It never runs Proposal actions.
func cycle(ctx context.Context, cmd *cobra.Command, rt *runtime) {
	scanner := corpus.NewScanner(corpus.Config{
		Root:                rt.cfg.NotesRoot,
		EmbeddingMaxAgeDays: rt.cfg.EmbeddingsMaxAgeDays,
		HealthConfig:        rt.cfg.HealthConfig(),
	})
	state, _ := scanner.Scan(ctx)
	plan := computePlan(ctx, rt, state)
	result := executor.Execute(ctx, *plan, state, rt.env, executor.Options{SafeOnly: true})
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] mean health %.1f — %d ok, %d failed, %d skipped\n",
		time.Now().Format("15:04:05"), state.MeanHealthScore, result.Succeeded, result.Failed, result.Skipped)
}

// addWatchDirs registers root and every subdirectory with fsw, since
// fsnotify does not watch recursively on its own.
func addWatchDirs(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
