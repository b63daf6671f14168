// Package corpus derives an immutable world state from note files on disk:
// per-note metadata, the inverted link graph, and corpus-wide aggregates.
package corpus

import (
	"time"

	"github.com/dcruver/orgkeep/internal/health"
)

// NoteType classifies a note for planning and scoring purposes.
type NoteType string

const (
	NoteTypeSource     NoteType = "Source"
	NoteTypeLiterature NoteType = "Literature"
	NoteTypePermanent  NoteType = "Permanent"
)

// DisableTag suppresses all modification of, and excludes from health
// aggregation, any note carrying it.
const DisableTag = "agents_disabled"

// NoteMetadata is the derived projection of one note used by planning. It
// is built once per scan and is immutable within a planning cycle.
type NoteMetadata struct {
	NoteID         string
	Path           string
	NoteType       NoteType
	HasEmbedding   bool
	EmbedModel     string
	EmbedAt        time.Time
	EmbedAtKnown   bool
	FormatOk       bool
	HasProperties  bool
	HasTitle       bool
	OutboundLinks  []string
	InboundLinks   []string
	LinkCount      int
	IsOrphan       bool
	Tags           []string
	TagsCanonical  bool
	ProvenanceOk   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StaleDays      int
	AgentsDisabled bool
	HealthScore    float64
	HealthDetail   health.Breakdown
}

// StructureAnalysis records AnalyzeNoteStructure's per-note finding.
type StructureAnalysis struct {
	NoteID         string
	SplitCandidate bool
	Confidence     float64
	Reason         string
}

// MergeGroup records a set of notes MergeNotes proposes combining.
type MergeGroup struct {
	ID         string
	NoteIDs    []string
	Similarity float64
}

// OrphanCluster is a connected component of the orphan subgraph formed by
// shared tag overlap above a threshold.
type OrphanCluster struct {
	ID      string
	NoteIDs []string
}

// HubCandidate is, per cluster, the note with the highest in-cluster
// tag-overlap centrality — ProposeHubNotes's target.
type HubCandidate struct {
	ClusterID  string
	NoteID     string
	Centrality float64
}

// ImplicitCategory is a group of notes that share a theme, independent of
// explicit tagging. Neither the scanner nor any catalog action fills
// CorpusState.ImplicitCategories; it stays empty unless a caller sets it.
type ImplicitCategory struct {
	Name    string
	NoteIDs []string
}

// CorpusState is the aggregate, immutable world state. Every action that
// changes files produces a new CorpusState rather than mutating this one.
type CorpusState struct {
	Notes map[string]*NoteMetadata

	TotalNotes               int
	NotesWithEmbeddings      int
	NotesWithStaleEmbeddings int
	NotesWithFormatIssues    int
	OrphanNotes              int
	StaleNotes               int
	MeanHealthScore          float64

	StructureAnalyses  []StructureAnalysis
	MergeGroups        []MergeGroup
	OrphanClusters     []OrphanCluster
	ImplicitCategories []ImplicitCategory
	HubCandidates      []HubCandidate
}

// Clone returns a deep-enough copy for an action to attach new discovery
// fields or mutated metadata without affecting the snapshot it was built
// from.
func (s *CorpusState) Clone() *CorpusState {
	out := *s
	out.Notes = make(map[string]*NoteMetadata, len(s.Notes))
	for id, m := range s.Notes {
		copyM := *m
		out.Notes[id] = &copyM
	}
	out.StructureAnalyses = append([]StructureAnalysis(nil), s.StructureAnalyses...)
	out.MergeGroups = append([]MergeGroup(nil), s.MergeGroups...)
	out.OrphanClusters = append([]OrphanCluster(nil), s.OrphanClusters...)
	out.ImplicitCategories = append([]ImplicitCategory(nil), s.ImplicitCategories...)
	out.HubCandidates = append([]HubCandidate(nil), s.HubCandidates...)
	return &out
}

// EligibleNotes returns metadata for notes that participate in aggregation
// and planning: those without the disable tag.
func (s *CorpusState) EligibleNotes() []*NoteMetadata {
	out := make([]*NoteMetadata, 0, len(s.Notes))
	for _, m := range s.Notes {
		if !m.AgentsDisabled {
			out = append(out, m)
		}
	}
	return out
}
