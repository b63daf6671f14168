package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dcruver/orgkeep/internal/chat"
	"github.com/dcruver/orgkeep/internal/config"
	"github.com/dcruver/orgkeep/internal/embedcache"
	"github.com/dcruver/orgkeep/internal/patch"
	"github.com/dcruver/orgkeep/internal/planner"
	"github.com/dcruver/orgkeep/internal/semantic"
)

// runtime bundles everything a command needs beyond the loaded config:
// the patch store and embedding cache are both on-disk resources that
// must be closed/flushed by the caller.
type runtime struct {
	cfg *config.Config
	env *planner.Environment
}

// closeRuntime releases the on-disk resources a runtime opened.
func closeRuntime(rt *runtime) {
	if rt == nil || rt.env == nil {
		return
	}
	if rt.env.Cache != nil {
		_ = rt.env.Cache.Close()
	}
}

// buildRuntime loads config and wires every external collaborator a
// command might need. Collaborators without a configured base URL are
// left nil; actions must treat that as "service unreachable", never panic.
func buildRuntime() (*runtime, error) {
	ws := resolveWorkspace()
	cfgPath := resolveConfigPath(ws)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.NotesRoot == "." || cfg.NotesRoot == "" {
		cfg.NotesRoot = ws
	}

	storeBase := filepath.Join(ws, ".orgkeep")
	store, err := patch.NewStore(storeBase)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.EmbeddingsDB
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(ws, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	cache, err := embedcache.Open(dbPath)
	if err != nil {
		return nil, err
	}

	var semanticClient *semantic.Client
	if cfg.SemanticServiceBaseURL != "" {
		semanticClient = semantic.NewClient(cfg.SemanticServiceBaseURL, cfg.RequestTimeout())
	}

	var chatClient *chat.Client
	if cfg.ChatServiceBaseURL != "" {
		chatClient = chat.NewClient(cfg.ChatServiceBaseURL, cfg.RequestTimeout())
	}

	env := &planner.Environment{
		Semantic: semanticClient,
		Chat:     chatClient,
		Cache:    cache,
		Store:    store,
		Root:     ws,
		IDGen:    uuid.NewString,
		Config:   cfg.PlannerConfig(),
	}

	return &runtime{cfg: cfg, env: env}, nil
}

// serviceProbe probes a named external service lazily, once per distinct
// name per planning cycle, so the planner can filter out actions whose
// service is currently unreachable rather than fail mid-plan.
func serviceProbe(ctx context.Context, env *planner.Environment) func(service string) bool {
	return func(service string) bool {
		switch service {
		case "semantic":
			return env.Semantic != nil && env.Semantic.Probe(ctx) == nil
		case "chat":
			return env.Chat != nil && env.Chat.Probe(ctx) == nil
		default:
			return false
		}
	}
}
