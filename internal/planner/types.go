// Package planner implements goal-oriented backward-chaining over a typed
// action catalog: given a CorpusState, resolve unsatisfied goals into an
// ordered Plan of actions.
package planner

import (
	"context"
	"time"

	"github.com/dcruver/orgkeep/internal/chat"
	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/embedcache"
	"github.com/dcruver/orgkeep/internal/health"
	"github.com/dcruver/orgkeep/internal/notes"
	"github.com/dcruver/orgkeep/internal/patch"
	"github.com/dcruver/orgkeep/internal/semantic"
)

// EffectTag names what an action accomplishes. The planner matches these
// between an action's declared effects and a goal's required effects, or
// between an action's effects and another action's unmet preconditions.
type EffectTag string

const (
	EffectFormatOk              EffectTag = "FormatOk"
	EffectEmbeddingsFresh       EffectTag = "EmbeddingsFresh"
	EffectStructureAnalyzed     EffectTag = "StructureAnalyzed"
	EffectCoherenceImproved     EffectTag = "CoherenceImproved"
	EffectInvalidatesEmbeddings EffectTag = "InvalidatesEmbeddings"
	EffectRedundancyReduced     EffectTag = "RedundancyReduced"
	EffectHierarchyEstablished  EffectTag = "HierarchyEstablished"
)

// Safety distinguishes actions the system may apply without review from
// ones that must be surfaced as a Proposal.
type Safety int

const (
	Safe Safety = iota
	Proposal
)

func (s Safety) String() string {
	if s == Safe {
		return "Safe"
	}
	return "Proposal"
}

// GoalStatus is the four-valued evaluation result spec.md §9 requires in
// place of a boolean, so a goal can be Blocked by another unsatisfied goal
// without being conflated with NotApplicable (e.g. an empty corpus).
type GoalStatus int

const (
	Satisfied GoalStatus = iota
	Unsatisfied
	Blocked
	NotApplicable
)

func (s GoalStatus) String() string {
	switch s {
	case Satisfied:
		return "Satisfied"
	case Unsatisfied:
		return "Unsatisfied"
	case Blocked:
		return "Blocked"
	default:
		return "NotApplicable"
	}
}

// Config carries the planner's tunable thresholds. It is distinct from any
// file-loaded configuration bag: the planner takes only the options it
// needs, never a path or an env var.
type Config struct {
	TargetHealth               float64
	AcceptableOrphanPercentage float64
	MinCategorySize            int
	MaxChainDepth              int
	SimilarityThreshold        float64
	TopKLinks                  int
	SplitConfidenceThreshold   float64
	MergeMinSimilarity         float64
	TagOverlapThreshold        float64
	ExternalConcurrency        int64
	RequestTimeout             time.Duration
	HealthConfig               health.Config
	EmbeddingMaxAgeDays        int
}

// DefaultConfig returns the defaults named across spec.md §4.5/§4.6/§6.
func DefaultConfig() Config {
	return Config{
		TargetHealth:               80,
		AcceptableOrphanPercentage: 10,
		MinCategorySize:            3,
		MaxChainDepth:              8,
		SimilarityThreshold:        0.75,
		TopKLinks:                  3,
		SplitConfidenceThreshold:   0.7,
		MergeMinSimilarity:         0.85,
		TagOverlapThreshold:        0.5,
		ExternalConcurrency:        4,
		RequestTimeout:             30 * time.Second,
		HealthConfig:               health.DefaultConfig(),
		EmbeddingMaxAgeDays:        30,
	}
}

// Environment carries the external collaborators and local services an
// action's execute body may call. Any client may be nil, meaning the
// corresponding service is unconfigured; actions must treat that as
// unreachable rather than panic.
type Environment struct {
	Semantic *semantic.Client
	Chat     *chat.Client
	Cache    *embedcache.Cache
	Store    *patch.Store
	Root     string
	Now      func() time.Time
	IDGen    notes.IDGenerator
	Config   Config
}

func (e *Environment) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ExecuteResult is what an action's execute body returns on success.
type ExecuteResult struct {
	State   *corpus.CorpusState
	Message string
}

// Precondition is one named predicate an action requires before it may run.
// Check is evaluated against the current state and the set of effect tags
// accumulated so far in the partial plan being built. RequiresEffect names
// the effect tag that, if produced by some other action, would make Check
// pass; it is empty for preconditions that are pure facts about the corpus
// and can never be satisfied by chaining (e.g. "at least one orphan
// exists").
type Precondition struct {
	Name           string
	Check          func(state *corpus.CorpusState, effects map[EffectTag]bool) bool
	RequiresEffect EffectTag
}

// Action is the closed-registry contract every catalog entry implements.
// Lookup is always by explicit registration (see Registry), never by
// reflection over a name string.
type Action interface {
	Name() string
	Cost(state *corpus.CorpusState) float64
	Safety() Safety
	Preconditions() []Precondition
	Effects() []EffectTag
	RequiresServices() []string
	Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error)
}

// Goal is one maintenance objective the planner tries to satisfy.
type Goal struct {
	Name            string
	Priority        int
	RequiredEffects []EffectTag
	Evaluate        func(state *corpus.CorpusState, cfg Config, statuses map[string]GoalStatus) GoalStatus
}

// PlanEntry is one scheduled action plus the bookkeeping the executor and
// any reporting surface need.
type PlanEntry struct {
	Action    Action
	Cost      float64
	Rationale string
	Safety    Safety
}

// Plan is an ordered list of actions plus any non-fatal planning warnings
// (unplanned goals, filtered-out actions whose service is unreachable).
type Plan struct {
	Entries  []PlanEntry
	Warnings []string
}
