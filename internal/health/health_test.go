package health

import "testing"

func TestScoreFullyHealthyPermanentNote(t *testing.T) {
	cfg := DefaultConfig()
	in := Input{
		HasEmbedding:   true,
		EmbeddingFresh: true,
		FormatOk:       true,
		HasProperties:  true,
		HasTitle:       true,
		ProvenanceOk:   true,
		TagsCanonical:  true,
		StaleDays:      0,
		LinkCount:      cfg.TargetLinks,
		NoteType:       NoteTypePermanent,
	}
	got := Score(in, cfg)
	if got.Total < 99.9 {
		t.Fatalf("Total = %v, want ~100", got.Total)
	}
}

func TestScoreEmptyNoteIsZero(t *testing.T) {
	cfg := DefaultConfig()
	got := Score(Input{NoteType: NoteTypePermanent, StaleDays: cfg.StaleThresholdDays * 10}, cfg)
	if got.Total != 0 {
		t.Fatalf("Total = %v, want 0", got.Total)
	}
}

func TestScoreSourceCapApplies(t *testing.T) {
	cfg := DefaultConfig()
	in := Input{
		HasEmbedding:   true,
		EmbeddingFresh: true,
		FormatOk:       true,
		HasProperties:  true,
		HasTitle:       true,
		ProvenanceOk:   true,
		TagsCanonical:  true,
		LinkCount:      cfg.TargetLinks,
		NoteType:       NoteTypeSource,
	}
	got := Score(in, cfg)
	if got.Total > cfg.SourcePenaltyCap {
		t.Fatalf("Total = %v, exceeds SourcePenaltyCap %v", got.Total, cfg.SourcePenaltyCap)
	}
}

func TestMeanBounds(t *testing.T) {
	cfg := DefaultConfig()
	if m := Mean(nil); m != 0 {
		t.Fatalf("Mean(nil) = %v, want 0", m)
	}
	scores := []float64{0, 50, 100}
	m := Mean(scores)
	if m < 0 || m > maxPossible(cfg) {
		t.Fatalf("Mean = %v out of bounds", m)
	}
	if m != 50 {
		t.Fatalf("Mean = %v, want 50", m)
	}
}

func maxPossible(cfg Config) float64 {
	return cfg.WeightEmbedding + cfg.WeightEmbeddingFresh + cfg.WeightFormatOk + cfg.WeightProperties +
		cfg.WeightTitle + cfg.WeightProvenance + cfg.WeightTagsCanonical + cfg.WeightStaleness + cfg.WeightLinks
}
