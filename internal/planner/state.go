package planner

import (
	"time"

	"github.com/dcruver/orgkeep/internal/corpus"
	"github.com/dcruver/orgkeep/internal/health"
)

// noteKey mirrors corpus's unexported metaKey: a note's map key in
// CorpusState.Notes is its id, or a path-fallback key for notes that don't
// have one yet. The planner needs its own copy since corpus doesn't export
// the helper.
func noteKey(m *corpus.NoteMetadata) string {
	if m.NoteID != "" {
		return m.NoteID
	}
	return "@path:" + m.Path
}

// formatCandidates returns notes NormalizeFormatting may touch: format
// issues, not disabled, and not SOURCE (SOURCE notes are read-only).
func formatCandidates(state *corpus.CorpusState) []*corpus.NoteMetadata {
	var out []*corpus.NoteMetadata
	for _, m := range state.Notes {
		if m.FormatOk || m.AgentsDisabled || m.NoteType == corpus.NoteTypeSource {
			continue
		}
		out = append(out, m)
	}
	return out
}

// embeddingFreshFor mirrors the scanner's freshness rule: an absent
// EMBED_AT is unknown-but-fresh, never stale, for health scoring purposes.
func embeddingFreshFor(m *corpus.NoteMetadata, maxAgeDays int, now time.Time) bool {
	if !m.HasEmbedding {
		return false
	}
	if !m.EmbedAtKnown {
		return true
	}
	if maxAgeDays <= 0 {
		return true
	}
	return int(now.Sub(m.EmbedAt).Hours()/24) <= maxAgeDays
}

// embeddingCandidates returns notes ComputeEmbeddings should process:
// missing or stale embeddings, excluding disabled notes.
func embeddingCandidates(state *corpus.CorpusState, maxAgeDays int, now time.Time) []*corpus.NoteMetadata {
	var out []*corpus.NoteMetadata
	for _, m := range state.Notes {
		if m.AgentsDisabled {
			continue
		}
		if !m.HasEmbedding || !embeddingFreshFor(m, maxAgeDays, now) {
			out = append(out, m)
		}
	}
	return out
}

// orphanCandidates returns every orphan note, excluding disabled ones.
func orphanCandidates(state *corpus.CorpusState) []*corpus.NoteMetadata {
	var out []*corpus.NoteMetadata
	for _, m := range state.Notes {
		if m.IsOrphan && !m.AgentsDisabled {
			out = append(out, m)
		}
	}
	return out
}

// recomputeNoteHealth refreshes one note's score after a mutation flips one
// of its boolean inputs, without re-running a full scan.
func recomputeNoteHealth(m *corpus.NoteMetadata, cfg Config, now time.Time) {
	breakdown := health.Score(health.Input{
		HasEmbedding:   m.HasEmbedding,
		EmbeddingFresh: embeddingFreshFor(m, cfg.EmbeddingMaxAgeDays, now),
		FormatOk:       m.FormatOk,
		HasProperties:  m.HasProperties,
		HasTitle:       m.HasTitle,
		ProvenanceOk:   m.ProvenanceOk,
		TagsCanonical:  m.TagsCanonical,
		StaleDays:      m.StaleDays,
		LinkCount:      m.LinkCount,
		NoteType:       health.NoteType(m.NoteType),
	}, cfg.HealthConfig)
	m.HealthDetail = breakdown
	m.HealthScore = breakdown.Total
}

// recomputeAggregates rebuilds CorpusState's corpus-wide counters from its
// current Notes map, used after an action mutates one or more notes
// in-place on a cloned state.
func recomputeAggregates(state *corpus.CorpusState, cfg Config, now time.Time) {
	state.TotalNotes = 0
	state.NotesWithEmbeddings = 0
	state.NotesWithStaleEmbeddings = 0
	state.NotesWithFormatIssues = 0
	state.OrphanNotes = 0
	state.StaleNotes = 0

	var scores []float64
	for _, m := range state.Notes {
		state.TotalNotes++
		if m.HasEmbedding {
			state.NotesWithEmbeddings++
		}
		if !m.FormatOk {
			state.NotesWithFormatIssues++
		}
		if m.IsOrphan {
			state.OrphanNotes++
		}
		if m.HasEmbedding && !embeddingFreshFor(m, cfg.EmbeddingMaxAgeDays, now) {
			state.NotesWithStaleEmbeddings++
		}
		if m.StaleDays > cfg.HealthConfig.StaleThresholdDays {
			state.StaleNotes++
		}
		if !m.AgentsDisabled {
			scores = append(scores, m.HealthScore)
		}
	}
	state.MeanHealthScore = health.Mean(scores)
}
