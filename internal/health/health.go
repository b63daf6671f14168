// Package health computes the per-note and corpus-wide health score.
package health

import "math"

// Config carries the weights and thresholds the scoring formula uses. The
// default weights sum to 100, the nominal maximum score.
type Config struct {
	WeightEmbedding      float64
	WeightEmbeddingFresh float64
	WeightFormatOk       float64
	WeightProperties     float64
	WeightTitle          float64
	WeightProvenance     float64
	WeightTagsCanonical  float64
	WeightStaleness      float64
	WeightLinks          float64

	StaleThresholdDays int
	TargetLinks        int

	// SourcePenaltyCap is the maximum score a Source note may reach: source
	// notes cannot be restructured, so they are never allowed to look as
	// healthy as a fully maintained Permanent note.
	SourcePenaltyCap float64
}

// DefaultConfig returns weights that sum to 100.
func DefaultConfig() Config {
	return Config{
		WeightEmbedding:      15,
		WeightEmbeddingFresh: 10,
		WeightFormatOk:       15,
		WeightProperties:     10,
		WeightTitle:          10,
		WeightProvenance:     10,
		WeightTagsCanonical:  5,
		WeightStaleness:      15,
		WeightLinks:          10,
		StaleThresholdDays:   90,
		TargetLinks:          3,
		SourcePenaltyCap:     70,
	}
}

// NoteType mirrors corpus.NoteType without importing the corpus package, so
// health has no dependency on the scanner.
type NoteType string

const (
	NoteTypeSource     NoteType = "Source"
	NoteTypeLiterature NoteType = "Literature"
	NoteTypePermanent  NoteType = "Permanent"
)

// Input is the narrow set of per-note facts the formula needs.
type Input struct {
	HasEmbedding   bool
	EmbeddingFresh bool
	FormatOk       bool
	HasProperties  bool
	HasTitle       bool
	ProvenanceOk   bool
	TagsCanonical  bool
	StaleDays      int
	LinkCount      int
	NoteType       NoteType
}

// Breakdown is the weighted per-component contribution plus the total, so
// callers can report which component is dragging a note down.
type Breakdown struct {
	Embedding      float64
	EmbeddingFresh float64
	FormatOk       float64
	Properties     float64
	Title          float64
	Provenance     float64
	TagsCanonical  float64
	Staleness      float64
	Links          float64
	Total          float64
}

func boolTerm(v bool, weight float64) float64 {
	if v {
		return weight
	}
	return 0
}

// Score computes the weighted breakdown for one note.
func Score(in Input, cfg Config) Breakdown {
	b := Breakdown{
		Embedding:      boolTerm(in.HasEmbedding, cfg.WeightEmbedding),
		EmbeddingFresh: boolTerm(in.EmbeddingFresh, cfg.WeightEmbeddingFresh),
		FormatOk:       boolTerm(in.FormatOk, cfg.WeightFormatOk),
		Properties:     boolTerm(in.HasProperties, cfg.WeightProperties),
		Title:          boolTerm(in.HasTitle, cfg.WeightTitle),
		Provenance:     boolTerm(in.ProvenanceOk, cfg.WeightProvenance),
		TagsCanonical:  boolTerm(in.TagsCanonical, cfg.WeightTagsCanonical),
	}

	staleThreshold := cfg.StaleThresholdDays
	if staleThreshold <= 0 {
		staleThreshold = 1
	}
	staleFraction := math.Min(1, float64(in.StaleDays)/float64(staleThreshold))
	b.Staleness = (1 - staleFraction) * cfg.WeightStaleness

	targetLinks := cfg.TargetLinks
	if targetLinks <= 0 {
		targetLinks = 1
	}
	linkFraction := math.Min(1, float64(in.LinkCount)/float64(targetLinks))
	b.Links = linkFraction * cfg.WeightLinks

	b.Total = b.Embedding + b.EmbeddingFresh + b.FormatOk + b.Properties + b.Title +
		b.Provenance + b.TagsCanonical + b.Staleness + b.Links

	if in.NoteType == NoteTypeSource && b.Total > cfg.SourcePenaltyCap {
		b.Total = cfg.SourcePenaltyCap
	}

	return b
}

// Mean returns the arithmetic mean of scores, or 0 for an empty corpus.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
