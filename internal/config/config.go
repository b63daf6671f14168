// Package config loads and saves orgkeep's configuration bag: the named
// options spec.md §6 lists for the notes root, embedding cache, health
// targets, planner tuning, and the external service endpoints. Loading is
// deliberately forgiving — a missing file falls back to defaults rather
// than failing, since a first run has nothing to load yet.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dcruver/orgkeep/internal/errs"
	"github.com/dcruver/orgkeep/internal/health"
	"github.com/dcruver/orgkeep/internal/planner"
)

// HealthWeights mirrors health.Config's weight fields as a YAML-friendly
// mapping, per spec.md §6's `health_weights` option. internal/health owns
// the canonical Config type; this is the on-disk shape it's built from.
type HealthWeights struct {
	Embedding      float64 `yaml:"embedding"`
	EmbeddingFresh float64 `yaml:"embedding_fresh"`
	FormatOk       float64 `yaml:"format_ok"`
	Properties     float64 `yaml:"properties"`
	Title          float64 `yaml:"title"`
	Provenance     float64 `yaml:"provenance"`
	TagsCanonical  float64 `yaml:"tags_canonical"`
	Staleness      float64 `yaml:"staleness"`
	Links          float64 `yaml:"links"`
}

// Config is the configuration bag spec.md §6 names. Every field maps
// directly to one of the named options; unexported runtime state never
// lives here.
type Config struct {
	NotesRoot                 string        `yaml:"notes_root"`
	EmbeddingsDB              string        `yaml:"embeddings_db"`
	TargetHealth              int           `yaml:"target_health"`
	EmbeddingsMaxAgeDays      int           `yaml:"embeddings_max_age_days"`
	StaleThresholdDays        int           `yaml:"stale_threshold_days"`
	AcceptableOrphanPercentage float64      `yaml:"acceptable_orphan_percentage"`
	HealthWeights             HealthWeights `yaml:"health_weights"`
	SemanticServiceBaseURL    string        `yaml:"semantic_service_base_url"`
	ChatServiceBaseURL        string        `yaml:"chat_service_base_url"`
	RequestTimeoutMs          int           `yaml:"request_timeout_ms"`
	MaxChainDepth             int           `yaml:"max_chain_depth"`
	MaxConcurrentExternalCalls int          `yaml:"max_concurrent_external_calls"`
	DebugMode                 bool          `yaml:"debug_mode"`
}

// DefaultConfig returns the defaults named across spec.md §4.4-§4.6/§6.
func DefaultConfig() *Config {
	return &Config{
		NotesRoot:            ".",
		EmbeddingsDB:         ".orgkeep/embeddings.db",
		TargetHealth:         80,
		EmbeddingsMaxAgeDays: 30,
		StaleThresholdDays:   90,
		AcceptableOrphanPercentage: 10,
		HealthWeights: HealthWeights{
			Embedding:      15,
			EmbeddingFresh: 10,
			FormatOk:       15,
			Properties:     10,
			Title:          10,
			Provenance:     10,
			TagsCanonical:  5,
			Staleness:      15,
			Links:          10,
		},
		RequestTimeoutMs:           30000,
		MaxChainDepth:              8,
		MaxConcurrentExternalCalls: 4,
		DebugMode:                  false,
	}
}

// Load reads path and YAML-unmarshals it over the defaults. A missing file
// is not an error: Load returns the defaults silently, since a fresh corpus
// has nothing to load yet. Env overrides are applied last regardless of
// whether the file existed.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, &errs.IoError{Path: path, Detail: "read config", Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &errs.MalformedFileError{Path: path, Detail: err.Error()}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save YAML-marshals c to path, creating any missing parent directory.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &errs.IoError{Path: dir, Detail: "create config dir", Err: err}
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return &errs.MalformedFileError{Path: path, Detail: err.Error()}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &errs.IoError{Path: path, Detail: "write config", Err: err}
	}
	return nil
}

// applyEnvOverrides lets deployment environments override individual
// fields without editing the YAML file, e.g. pointing a container at a
// different notes root or service URL.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ORGKEEP_NOTES_ROOT"); v != "" {
		c.NotesRoot = v
	}
	if v := os.Getenv("ORGKEEP_EMBEDDINGS_DB"); v != "" {
		c.EmbeddingsDB = v
	}
	if v := os.Getenv("ORGKEEP_SEMANTIC_URL"); v != "" {
		c.SemanticServiceBaseURL = v
	}
	if v := os.Getenv("ORGKEEP_CHAT_URL"); v != "" {
		c.ChatServiceBaseURL = v
	}
	if v := os.Getenv("ORGKEEP_TARGET_HEALTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TargetHealth = n
		}
	}
	if v := os.Getenv("ORGKEEP_REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RequestTimeoutMs = n
		}
	}
	if v := os.Getenv("ORGKEEP_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DebugMode = b
		}
	}
}

// RequestTimeout converts RequestTimeoutMs to a time.Duration, falling
// back to 30s if the configured value is non-positive.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// HealthConfig builds a health.Config from the loaded weights.
func (c *Config) HealthConfig() health.Config {
	hc := health.DefaultConfig()
	hc.WeightEmbedding = c.HealthWeights.Embedding
	hc.WeightEmbeddingFresh = c.HealthWeights.EmbeddingFresh
	hc.WeightFormatOk = c.HealthWeights.FormatOk
	hc.WeightProperties = c.HealthWeights.Properties
	hc.WeightTitle = c.HealthWeights.Title
	hc.WeightProvenance = c.HealthWeights.Provenance
	hc.WeightTagsCanonical = c.HealthWeights.TagsCanonical
	hc.WeightStaleness = c.HealthWeights.Staleness
	hc.WeightLinks = c.HealthWeights.Links
	hc.StaleThresholdDays = c.StaleThresholdDays
	return hc
}

// PlannerConfig builds a planner.Config from the loaded bag, pulling in
// the derived health.Config so planner and health stay consistent.
func (c *Config) PlannerConfig() planner.Config {
	pc := planner.DefaultConfig()
	pc.TargetHealth = float64(c.TargetHealth)
	pc.AcceptableOrphanPercentage = c.AcceptableOrphanPercentage
	pc.MaxChainDepth = c.MaxChainDepth
	pc.ExternalConcurrency = int64(c.MaxConcurrentExternalCalls)
	pc.RequestTimeout = c.RequestTimeout()
	pc.HealthConfig = c.HealthConfig()
	pc.EmbeddingMaxAgeDays = c.EmbeddingsMaxAgeDays
	return pc
}

// Validate checks the fields the rest of the core assumes are sane.
func (c *Config) Validate() error {
	if c.NotesRoot == "" {
		return fmt.Errorf("config: notes_root is required")
	}
	if c.TargetHealth < 0 || c.TargetHealth > 100 {
		return fmt.Errorf("config: target_health must be between 0 and 100, got %d", c.TargetHealth)
	}
	if c.AcceptableOrphanPercentage < 0 || c.AcceptableOrphanPercentage > 100 {
		return fmt.Errorf("config: acceptable_orphan_percentage must be between 0 and 100, got %v", c.AcceptableOrphanPercentage)
	}
	if c.MaxChainDepth <= 0 {
		return fmt.Errorf("config: max_chain_depth must be positive, got %d", c.MaxChainDepth)
	}
	if c.MaxConcurrentExternalCalls <= 0 {
		return fmt.Errorf("config: max_concurrent_external_calls must be positive, got %d", c.MaxConcurrentExternalCalls)
	}
	return nil
}
