package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/embedcache"
	"github.com/dcruver/orgkeep/internal/errs"
	"github.com/dcruver/orgkeep/internal/logging"
	"github.com/dcruver/orgkeep/internal/notes"
	"github.com/dcruver/orgkeep/internal/patch"
)

const (
	nameNormalizeFormatting  = "NormalizeFormatting"
	nameComputeEmbeddings    = "ComputeEmbeddings"
	nameSuggestLinks         = "SuggestLinks"
	nameAnalyzeNoteStructure = "AnalyzeNoteStructure"
	nameSplitNote            = "SplitNote"
	nameMergeNotes           = "MergeNotes"
	nameProposeHubNotes      = "ProposeHubNotes"
)

// splitLengthThreshold is AnalyzeNoteStructure's split-candidate cutoff, in
// bytes of the note's whole file on disk.
const splitLengthThreshold = 6000

// NewCatalog builds the fixed action catalog from spec.md §4.5, each action
// carrying the planner config it needs for its own thresholds.
func NewCatalog(cfg Config) []Action {
	return []Action{
		normalizeFormattingAction{cfg: cfg},
		computeEmbeddingsAction{cfg: cfg},
		suggestLinksAction{cfg: cfg},
		analyzeNoteStructureAction{cfg: cfg},
		splitNoteAction{cfg: cfg},
		mergeNotesAction{cfg: cfg},
		proposeHubNotesAction{cfg: cfg},
	}
}

// DefaultCatalog uses DefaultConfig for every action's thresholds.
func DefaultCatalog() []Action {
	return NewCatalog(DefaultConfig())
}

// --- NormalizeFormatting ---------------------------------------------------

type normalizeFormattingAction struct{ cfg Config }

func (normalizeFormattingAction) Name() string              { return nameNormalizeFormatting }
func (normalizeFormattingAction) Safety() Safety             { return Safe }
func (normalizeFormattingAction) Effects() []EffectTag       { return []EffectTag{EffectFormatOk} }
func (normalizeFormattingAction) RequiresServices() []string { return nil }
func (a normalizeFormattingAction) Cost(state *corpus.CorpusState) float64 {
	return float64(len(formatCandidates(state))) + 1
}

func (normalizeFormattingAction) Preconditions() []Precondition {
	return []Precondition{{
		Name: "has_format_issue_note",
		Check: func(state *corpus.CorpusState, _ map[EffectTag]bool) bool {
			return len(formatCandidates(state)) > 0
		},
	}}
}

func (a normalizeFormattingAction) Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error) {
	candidates := formatCandidates(state)
	if len(candidates) == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}

	now := env.now()
	next := state.Clone()
	fixed := 0
	for _, cand := range candidates {
		n, err := notes.ReadFile(cand.Path)
		if err != nil {
			logging.Get(logging.CategoryExecutor).Warn("NormalizeFormatting: re-read %s: %v", cand.Path, err)
			continue
		}
		normalized := notes.Normalize(n, now, env.IDGen)
		if _, err := notes.WriteFile(cand.Path, normalized, env.Store); err != nil {
			return ExecuteResult{}, fmt.Errorf("planner: NormalizeFormatting write %s: %w", cand.Path, err)
		}

		oldKey := noteKey(cand)
		m := next.Notes[oldKey]
		if m == nil {
			continue
		}
		delete(next.Notes, oldKey)
		m.NoteID = normalized.ID
		m.HasProperties = true
		m.HasTitle = true
		m.ProvenanceOk = true
		m.FormatOk = true
		m.CreatedAt = normalized.Created
		m.UpdatedAt = normalized.Updated
		next.Notes[noteKey(m)] = m
		recomputeNoteHealth(m, a.cfg, now)
		fixed++
	}
	recomputeAggregates(next, a.cfg, now)
	return ExecuteResult{State: next, Message: fmt.Sprintf("normalized %d note(s)", fixed)}, nil
}

// --- ComputeEmbeddings ------------------------------------------------------

type computeEmbeddingsAction struct{ cfg Config }

func (computeEmbeddingsAction) Name() string              { return nameComputeEmbeddings }
func (computeEmbeddingsAction) Safety() Safety             { return Safe }
func (computeEmbeddingsAction) Effects() []EffectTag       { return []EffectTag{EffectEmbeddingsFresh} }
func (computeEmbeddingsAction) RequiresServices() []string { return []string{"semantic"} }
func (computeEmbeddingsAction) Cost(*corpus.CorpusState) float64 { return 3 }

func (a computeEmbeddingsAction) Preconditions() []Precondition {
	return []Precondition{{
		Name: "has_missing_or_stale_embedding",
		Check: func(state *corpus.CorpusState, _ map[EffectTag]bool) bool {
			return len(embeddingCandidates(state, a.cfg.EmbeddingMaxAgeDays, time.Now())) > 0
		},
	}}
}

func (a computeEmbeddingsAction) Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error) {
	now := env.now()
	candidates := embeddingCandidates(state, a.cfg.EmbeddingMaxAgeDays, now)
	if len(candidates) == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	if env.Semantic == nil {
		return ExecuteResult{}, fmt.Errorf("planner: ComputeEmbeddings requires the semantic service")
	}

	_, ack, err := env.Semantic.GenerateEmbeddings(ctx, false)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("planner: ComputeEmbeddings: %w", err)
	}

	next := state.Clone()
	for _, cand := range candidates {
		m := next.Notes[noteKey(cand)]
		if m == nil {
			continue
		}
		m.HasEmbedding = true
		m.EmbedAtKnown = true
		m.EmbedAt = now
		recomputeNoteHealth(m, a.cfg, now)

		if env.Cache != nil {
			if err := env.Cache.Upsert(embedcache.Entry{
				NoteID:         m.NoteID,
				ChunkHash:      contentHash(cand.Path),
				Model:          "semantic-gateway",
				CreatedAt:      now,
				ContentPreview: m.NoteID,
			}); err != nil {
				logging.Get(logging.CategoryExecutor).Warn("ComputeEmbeddings: cache upsert %s: %v", m.NoteID, err)
			}
		}
	}
	recomputeAggregates(next, a.cfg, now)
	return ExecuteResult{State: next, Message: fmt.Sprintf("computed embeddings: %s", ack)}, nil
}

func contentHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// --- SuggestLinks ------------------------------------------------------------

type suggestLinksAction struct{ cfg Config }

func (suggestLinksAction) Name() string              { return nameSuggestLinks }
func (suggestLinksAction) Safety() Safety             { return Proposal }
func (suggestLinksAction) RequiresServices() []string { return []string{"semantic"} }

// Effects declares CoherenceImproved: integrating an orphan into the link
// graph is, for goal-matching purposes, the same kind of progress SplitNote
// makes, and it is what lets ReduceOrphans select this action.
func (suggestLinksAction) Effects() []EffectTag { return []EffectTag{EffectCoherenceImproved} }
func (suggestLinksAction) Cost(state *corpus.CorpusState) float64 {
	return float64(len(orphanCandidates(state))) + 2
}

func (suggestLinksAction) Preconditions() []Precondition {
	return []Precondition{
		{
			Name: "has_orphan",
			Check: func(state *corpus.CorpusState, _ map[EffectTag]bool) bool {
				return len(orphanCandidates(state)) > 0
			},
		},
		{
			Name: "embeddings_fresh",
			Check: func(state *corpus.CorpusState, effects map[EffectTag]bool) bool {
				if effects[EffectEmbeddingsFresh] {
					return true
				}
				return state.NotesWithStaleEmbeddings == 0 && state.NotesWithEmbeddings == len(state.EligibleNotes())
			},
			RequiresEffect: EffectEmbeddingsFresh,
		},
	}
}

// Execute issues one semantic_search per orphan and (optionally) one chat
// call per proposed link, bounded by cfg.ExternalConcurrency. Each orphan above threshold
// gets a single Proposal carrying a diff that appends a links section;
// existing Pending proposals for (note, SuggestLinks) are skipped.
func (a suggestLinksAction) Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error) {
	orphans := orphanCandidates(state)
	if len(orphans) == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	if env.Semantic == nil || env.Store == nil {
		return ExecuteResult{}, fmt.Errorf("planner: SuggestLinks requires the semantic service and the patch store")
	}

	limit := a.cfg.ExternalConcurrency
	if limit <= 0 {
		limit = 4
	}
	sem := semaphore.NewWeighted(limit)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	created := 0

	for _, orphan := range orphans {
		orphan := orphan
		if env.Store.HasExistingProposal(orphan.NoteID, nameSuggestLinks) {
			continue
		}
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return a.proposeLinksFor(gctx, env, orphan, &mu, &created)
		})
	}

	if err := g.Wait(); err != nil {
		return ExecuteResult{}, fmt.Errorf("planner: SuggestLinks: %w", err)
	}
	if created == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	return ExecuteResult{State: state, Message: fmt.Sprintf("proposed links for %d orphan note(s)", created)}, nil
}

func (a suggestLinksAction) proposeLinksFor(ctx context.Context, env *Environment, orphan *corpus.NoteMetadata, mu *sync.Mutex, created *int) error {
	n, err := notes.ReadFile(orphan.Path)
	if err != nil {
		logging.Get(logging.CategoryExecutor).Warn("SuggestLinks: read %s: %v", orphan.Path, err)
		return nil
	}

	query := n.Title
	if query == "" {
		query = n.Body
	}
	results, err := env.Semantic.SemanticSearch(ctx, query, a.cfg.TopKLinks, a.cfg.SimilarityThreshold)
	if err != nil {
		logging.Get(logging.CategoryExecutor).Warn("SuggestLinks: semantic_search %s: %v", orphan.NoteID, err)
		return nil
	}

	existing := make(map[string]bool, len(n.OutboundLinks))
	for _, l := range n.OutboundLinks {
		existing[l] = true
	}

	revisedBody := n.Body
	added := 0
	for _, r := range results {
		if r.NodeID == "" || r.NodeID == orphan.NoteID || existing[r.NodeID] {
			continue
		}
		rationale := fmt.Sprintf("related to %q", r.Title)
		if env.Chat != nil {
			if text, err := env.Chat.Complete(ctx,
				"Explain in one short sentence why two notes are related.",
				fmt.Sprintf("Note A: %s\nNote B: %s", n.Title, r.Title)); err == nil && strings.TrimSpace(text) != "" {
				rationale = strings.TrimSpace(text)
			}
		}
		revisedBody += fmt.Sprintf("\n- [[id:%s][%s]] %s\n", r.NodeID, r.Title, rationale)
		added++
		existing[r.NodeID] = true
	}
	if added == 0 {
		return nil
	}

	revised := *n
	revised.Body = revisedBody

	before := patch.Stats{"link_count": float64(orphan.LinkCount)}
	after := patch.Stats{"link_count": float64(orphan.LinkCount + added)}

	_, err = env.Store.CreateProposal(orphan.NoteID, orphan.Path, nameSuggestLinks,
		"adds suggested links to an orphan note", string(notes.Render(n)), string(notes.Render(&revised)), before, after)
	if err != nil {
		var dup *errs.DuplicateProposalError
		if errors.As(err, &dup) {
			return nil
		}
		return err
	}
	mu.Lock()
	*created++
	mu.Unlock()
	return nil
}

// --- AnalyzeNoteStructure ----------------------------------------------------

type analyzeNoteStructureAction struct{ cfg Config }

func (analyzeNoteStructureAction) Name() string              { return nameAnalyzeNoteStructure }
func (analyzeNoteStructureAction) Safety() Safety             { return Safe }
func (analyzeNoteStructureAction) RequiresServices() []string { return nil }
func (analyzeNoteStructureAction) Effects() []EffectTag {
	return []EffectTag{EffectStructureAnalyzed}
}
func (analyzeNoteStructureAction) Cost(state *corpus.CorpusState) float64 {
	return float64(len(state.EligibleNotes())) + 1
}

func (analyzeNoteStructureAction) Preconditions() []Precondition {
	return []Precondition{{
		Name: "embeddings_fresh",
		Check: func(state *corpus.CorpusState, effects map[EffectTag]bool) bool {
			if effects[EffectEmbeddingsFresh] {
				return true
			}
			return state.NotesWithStaleEmbeddings == 0 && state.NotesWithEmbeddings == len(state.EligibleNotes())
		},
		RequiresEffect: EffectEmbeddingsFresh,
	}}
}

func (a analyzeNoteStructureAction) Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error) {
	next := state.Clone()
	next.StructureAnalyses = nil
	next.MergeGroups = nil

	tagGroups := map[string][]string{}
	for _, m := range next.EligibleNotes() {
		if len(m.Tags) > 0 {
			key := canonicalTagKey(m.Tags)
			tagGroups[key] = append(tagGroups[key], m.NoteID)
		}

		if size := fileSize(m.Path); size > splitLengthThreshold {
			confidence := float64(size) / float64(splitLengthThreshold*2)
			if confidence > 1 {
				confidence = 1
			}
			next.StructureAnalyses = append(next.StructureAnalyses, corpus.StructureAnalysis{
				NoteID:         m.NoteID,
				SplitCandidate: true,
				Confidence:     confidence,
				Reason:         "file exceeds length threshold",
			})
		}
	}

	keys := make([]string, 0, len(tagGroups))
	for k := range tagGroups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	id := 0
	for _, key := range keys {
		ids := tagGroups[key]
		if len(ids) < 2 {
			continue
		}
		id++
		next.MergeGroups = append(next.MergeGroups, corpus.MergeGroup{
			ID:         fmt.Sprintf("merge-%d", id),
			NoteIDs:    ids,
			Similarity: a.cfg.MergeMinSimilarity,
		})
	}

	return ExecuteResult{State: next, Message: fmt.Sprintf("analyzed structure: %d split candidate(s), %d merge group(s)", len(next.StructureAnalyses), len(next.MergeGroups))}, nil
}

func canonicalTagKey(tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// --- SplitNote ---------------------------------------------------------------

type splitNoteAction struct{ cfg Config }

func (splitNoteAction) Name() string              { return nameSplitNote }
func (splitNoteAction) Safety() Safety             { return Proposal }
func (splitNoteAction) RequiresServices() []string { return nil }
func (splitNoteAction) Effects() []EffectTag {
	return []EffectTag{EffectCoherenceImproved, EffectInvalidatesEmbeddings}
}
func (a splitNoteAction) Cost(state *corpus.CorpusState) float64 {
	return float64(len(splitCandidates(state, a.cfg))) + 2
}

func (a splitNoteAction) Preconditions() []Precondition {
	return []Precondition{
		{
			Name: "structure_analyzed",
			Check: func(state *corpus.CorpusState, effects map[EffectTag]bool) bool {
				if effects[EffectStructureAnalyzed] {
					return true
				}
				return len(state.StructureAnalyses) > 0
			},
			RequiresEffect: EffectStructureAnalyzed,
		},
		{
			Name: "has_split_candidate_above_threshold",
			Check: func(state *corpus.CorpusState, _ map[EffectTag]bool) bool {
				return len(splitCandidates(state, a.cfg)) > 0
			},
		},
	}
}

func splitCandidates(state *corpus.CorpusState, cfg Config) []corpus.StructureAnalysis {
	var out []corpus.StructureAnalysis
	for _, sa := range state.StructureAnalyses {
		if sa.SplitCandidate && sa.Confidence >= cfg.SplitConfidenceThreshold {
			out = append(out, sa)
		}
	}
	return out
}

func (a splitNoteAction) Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error) {
	candidates := splitCandidates(state, a.cfg)
	if len(candidates) == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	if env.Store == nil {
		return ExecuteResult{}, fmt.Errorf("planner: SplitNote requires the patch store")
	}

	created := 0
	for _, sa := range candidates {
		m := state.Notes[sa.NoteID]
		if m == nil || env.Store.HasExistingProposal(sa.NoteID, nameSplitNote) {
			continue
		}
		n, err := notes.ReadFile(m.Path)
		if err != nil {
			logging.Get(logging.CategoryExecutor).Warn("SplitNote: read %s: %v", m.Path, err)
			continue
		}

		mid := len(n.Body) / 2
		if idx := strings.Index(n.Body[mid:], "\n\n"); idx >= 0 {
			mid += idx
		}
		firstHalf := n.Body[:mid]
		secondHalf := strings.TrimLeft(n.Body[mid:], "\n")
		if secondHalf == "" {
			continue
		}

		fragmentID := env.IDGen()
		revised := *n
		revised.Body = firstHalf + fmt.Sprintf("\n\n[[id:%s][continued]]\n", fragmentID)

		before := patch.Stats{"body_bytes": float64(len(n.Body))}
		after := patch.Stats{"body_bytes": float64(len(firstHalf))}

		if _, err := env.Store.CreateProposal(sa.NoteID, m.Path, nameSplitNote,
			fmt.Sprintf("splits an overlong note; continuation fragment id %s", fragmentID),
			string(notes.Render(n)), string(notes.Render(&revised)), before, after); err != nil {
			var dup *errs.DuplicateProposalError
			if errors.As(err, &dup) {
				continue
			}
			return ExecuteResult{}, fmt.Errorf("planner: SplitNote: %w", err)
		}
		created++
	}
	if created == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	return ExecuteResult{State: state, Message: fmt.Sprintf("proposed %d split(s)", created)}, nil
}

// --- MergeNotes ---------------------------------------------------------------

type mergeNotesAction struct{ cfg Config }

func (mergeNotesAction) Name() string              { return nameMergeNotes }
func (mergeNotesAction) Safety() Safety             { return Proposal }
func (mergeNotesAction) RequiresServices() []string { return nil }
func (mergeNotesAction) Effects() []EffectTag {
	return []EffectTag{EffectRedundancyReduced, EffectInvalidatesEmbeddings}
}
func (a mergeNotesAction) Cost(state *corpus.CorpusState) float64 {
	return float64(len(mergeCandidates(state, a.cfg))) + 2
}

func (a mergeNotesAction) Preconditions() []Precondition {
	return []Precondition{
		{
			Name: "structure_analyzed",
			Check: func(state *corpus.CorpusState, effects map[EffectTag]bool) bool {
				if effects[EffectStructureAnalyzed] {
					return true
				}
				return len(state.MergeGroups) > 0
			},
			RequiresEffect: EffectStructureAnalyzed,
		},
		{
			Name: "has_merge_group_above_similarity",
			Check: func(state *corpus.CorpusState, _ map[EffectTag]bool) bool {
				return len(mergeCandidates(state, a.cfg)) > 0
			},
		},
	}
}

func mergeCandidates(state *corpus.CorpusState, cfg Config) []corpus.MergeGroup {
	var out []corpus.MergeGroup
	for _, g := range state.MergeGroups {
		if g.Similarity >= cfg.MergeMinSimilarity && len(g.NoteIDs) >= 2 {
			out = append(out, g)
		}
	}
	return out
}

func (a mergeNotesAction) Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error) {
	groups := mergeCandidates(state, a.cfg)
	if len(groups) == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	if env.Store == nil {
		return ExecuteResult{}, fmt.Errorf("planner: MergeNotes requires the patch store")
	}

	created := 0
	for _, group := range groups {
		primaryID := group.NoteIDs[0]
		primary := state.Notes[primaryID]
		if primary == nil || env.Store.HasExistingProposal(primaryID, nameMergeNotes) {
			continue
		}
		n, err := notes.ReadFile(primary.Path)
		if err != nil {
			logging.Get(logging.CategoryExecutor).Warn("MergeNotes: read %s: %v", primary.Path, err)
			continue
		}

		revised := *n
		revised.Body = n.Body + "\n\n* Merged from\n"
		for _, id := range group.NoteIDs[1:] {
			revised.Body += fmt.Sprintf("- [[id:%s]]\n", id)
		}

		before := patch.Stats{"merge_group_size": float64(len(group.NoteIDs))}
		after := patch.Stats{"merge_group_size": 1}

		if _, err := env.Store.CreateProposal(primaryID, primary.Path, nameMergeNotes,
			fmt.Sprintf("merges %d redundant note(s) into this one", len(group.NoteIDs)-1),
			string(notes.Render(n)), string(notes.Render(&revised)), before, after); err != nil {
			var dup *errs.DuplicateProposalError
			if errors.As(err, &dup) {
				continue
			}
			return ExecuteResult{}, fmt.Errorf("planner: MergeNotes: %w", err)
		}
		created++
	}
	if created == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	return ExecuteResult{State: state, Message: fmt.Sprintf("proposed %d merge(s)", created)}, nil
}

// --- ProposeHubNotes -----------------------------------------------------------

type proposeHubNotesAction struct{ cfg Config }

func (proposeHubNotesAction) Name() string              { return nameProposeHubNotes }
func (proposeHubNotesAction) Safety() Safety             { return Proposal }
func (proposeHubNotesAction) RequiresServices() []string { return nil }
func (proposeHubNotesAction) Effects() []EffectTag {
	return []EffectTag{EffectHierarchyEstablished}
}
func (a proposeHubNotesAction) Cost(state *corpus.CorpusState) float64 {
	return float64(len(orphanCandidates(state))) + 3
}

func (a proposeHubNotesAction) Preconditions() []Precondition {
	return []Precondition{{
		Name: "has_orphan_cluster",
		Check: func(state *corpus.CorpusState, _ map[EffectTag]bool) bool {
			return len(clusterOrphans(orphanCandidates(state), a.cfg.TagOverlapThreshold)) > 0
		},
	}}
}

func (a proposeHubNotesAction) Execute(ctx context.Context, env *Environment, state *corpus.CorpusState) (ExecuteResult, error) {
	orphans := orphanCandidates(state)
	clusters := clusterOrphans(orphans, a.cfg.TagOverlapThreshold)
	if len(clusters) == 0 {
		return ExecuteResult{State: state, Message: "no-op"}, nil
	}
	if env.Store == nil {
		return ExecuteResult{}, fmt.Errorf("planner: ProposeHubNotes requires the patch store")
	}

	byID := make(map[string]*corpus.NoteMetadata, len(orphans))
	for _, m := range orphans {
		byID[m.NoteID] = m
	}

	next := state.Clone()
	next.OrphanClusters = clusters

	var hubs []corpus.HubCandidate
	created := 0
	for _, cluster := range clusters {
		hub := selectHub(cluster, byID)
		hubs = append(hubs, hub)

		hubMeta := byID[hub.NoteID]
		if hubMeta == nil || env.Store.HasExistingProposal(hub.NoteID, nameProposeHubNotes) {
			continue
		}
		n, err := notes.ReadFile(hubMeta.Path)
		if err != nil {
			logging.Get(logging.CategoryExecutor).Warn("ProposeHubNotes: read %s: %v", hubMeta.Path, err)
			continue
		}

		revised := *n
		revised.Body = n.Body + "\n\n* Related Notes\n"
		for _, id := range cluster.NoteIDs {
			if id == hub.NoteID {
				continue
			}
			revised.Body += fmt.Sprintf("- [[id:%s]]\n", id)
		}

		before := patch.Stats{"cluster_size": float64(len(cluster.NoteIDs))}
		after := patch.Stats{"cluster_size": float64(len(cluster.NoteIDs))}

		if _, err := env.Store.CreateProposal(hub.NoteID, hubMeta.Path, nameProposeHubNotes,
			fmt.Sprintf("designates this note as hub for a %d-note orphan cluster", len(cluster.NoteIDs)),
			string(notes.Render(n)), string(notes.Render(&revised)), before, after); err != nil {
			var dup *errs.DuplicateProposalError
			if errors.As(err, &dup) {
				continue
			}
			return ExecuteResult{}, fmt.Errorf("planner: ProposeHubNotes: %w", err)
		}
		created++
	}
	next.HubCandidates = hubs

	if created == 0 {
		return ExecuteResult{State: next, Message: "no-op"}, nil
	}
	return ExecuteResult{State: next, Message: fmt.Sprintf("proposed %d hub note(s)", created)}, nil
}

// clusterOrphans groups orphans into connected components of the subgraph
// formed by shared tag overlap at or above threshold (union-find over all
// pairs), per SPEC_FULL.md §C's definition of orphan_clusters.
func clusterOrphans(orphans []*corpus.NoteMetadata, threshold float64) []corpus.OrphanCluster {
	n := len(orphans)
	if n == 0 {
		return nil
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(x, y int) {
		rx, ry := find(x), find(y)
		if rx != ry {
			parent[rx] = ry
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if tagOverlap(orphans[i].Tags, orphans[j].Tags) >= threshold {
				union(i, j)
			}
		}
	}

	groups := map[int][]string{}
	for i, m := range orphans {
		root := find(i)
		groups[root] = append(groups[root], m.NoteID)
	}

	ids := make([]int, 0, len(groups))
	for root := range groups {
		ids = append(ids, root)
	}
	sort.Ints(ids)

	var clusters []corpus.OrphanCluster
	id := 0
	for _, root := range ids {
		members := groups[root]
		if len(members) < 2 {
			continue
		}
		id++
		clusters = append(clusters, corpus.OrphanCluster{
			ID:      fmt.Sprintf("cluster-%d", id),
			NoteIDs: members,
		})
	}
	return clusters
}

// tagOverlap is a Jaccard similarity over lower-cased tag sets.
func tagOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[strings.ToLower(t)] = true
	}
	common := 0
	union := len(set)
	for _, t := range b {
		lower := strings.ToLower(t)
		if set[lower] {
			common++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

// selectHub picks the cluster member with the highest tag-overlap
// centrality: the sum of its overlap with every other member.
func selectHub(cluster corpus.OrphanCluster, byID map[string]*corpus.NoteMetadata) corpus.HubCandidate {
	best := corpus.HubCandidate{ClusterID: cluster.ID}
	bestScore := -1.0
	for _, id := range cluster.NoteIDs {
		score := 0.0
		for _, other := range cluster.NoteIDs {
			if other == id {
				continue
			}
			score += tagOverlap(byID[id].Tags, byID[other].Tags)
		}
		if score > bestScore {
			bestScore = score
			best.NoteID = id
			best.Centrality = score
		}
	}
	return best
}
