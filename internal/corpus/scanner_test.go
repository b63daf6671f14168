package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dcruver/orgkeep/internal/health"
)

func writeNote(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig(root string) Config {
	return Config{
		Root:                root,
		EmbeddingMaxAgeDays: 30,
		HealthConfig:        health.DefaultConfig(),
	}
}

func TestScanEmptyCorpus(t *testing.T) {
	dir := t.TempDir()
	s := NewScanner(testConfig(dir))
	state, warnings := s.Scan(context.Background())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if state.TotalNotes != 0 {
		t.Fatalf("TotalNotes = %d, want 0", state.TotalNotes)
	}
	if state.MeanHealthScore != 0 {
		t.Fatalf("MeanHealthScore = %v, want 0", state.MeanHealthScore)
	}
}

func TestScanSingleMalformedNote(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.org", ":PROPERTIES:\n:ID: a-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:END:\n* A\n\nbody\n")
	writeNote(t, dir, "b.org", string([]byte{0xff, 0xfe}))

	s := NewScanner(testConfig(dir))
	state, warnings := s.Scan(context.Background())
	if state.TotalNotes != 1 {
		t.Fatalf("TotalNotes = %d, want 1", state.TotalNotes)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly 1", warnings)
	}
}

func TestInboundOutboundConsistency(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.org", ":PROPERTIES:\n:ID: a-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:END:\n* A\n\nlinks to [[id:b-1]]\n")
	writeNote(t, dir, "b.org", ":PROPERTIES:\n:ID: b-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:END:\n* B\n\nno links here\n")

	s := NewScanner(testConfig(dir))
	state, warnings := s.Scan(context.Background())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	a := state.Notes["a-1"]
	b := state.Notes["b-1"]
	if a.IsOrphan {
		t.Errorf("a-1 should not be an orphan (has outbound link)")
	}
	if b.IsOrphan {
		t.Errorf("b-1 should not be an orphan (has inbound link)")
	}
	if len(b.InboundLinks) != 1 || b.InboundLinks[0] != "a-1" {
		t.Errorf("b-1 InboundLinks = %v, want [a-1]", b.InboundLinks)
	}
}

func TestOrphanPredicate(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.org", ":PROPERTIES:\n:ID: a-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:END:\n* A\n\nno links\n")

	s := NewScanner(testConfig(dir))
	state, _ := s.Scan(context.Background())
	a := state.Notes["a-1"]
	if !a.IsOrphan {
		t.Errorf("expected orphan with no links")
	}
	if state.OrphanNotes != 1 {
		t.Errorf("OrphanNotes = %d, want 1", state.OrphanNotes)
	}
}

func TestSelfLinksExcluded(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.org", ":PROPERTIES:\n:ID: a-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:END:\n* A\n\nself-reference [[id:a-1]]\n")

	s := NewScanner(testConfig(dir))
	state, _ := s.Scan(context.Background())
	a := state.Notes["a-1"]
	if !a.IsOrphan {
		t.Errorf("self-link should not count toward link_count, expected orphan")
	}
	if a.LinkCount != 0 {
		t.Errorf("LinkCount = %d, want 0", a.LinkCount)
	}
}

func TestAgentsDisabledExcludedFromMean(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.org", ":PROPERTIES:\n:ID: a-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:TAGS: agents_disabled\n:END:\n* A\n\nbody\n")

	s := NewScanner(testConfig(dir))
	state, _ := s.Scan(context.Background())
	a := state.Notes["a-1"]
	if !a.AgentsDisabled {
		t.Fatalf("expected AgentsDisabled true")
	}
	if state.MeanHealthScore != 0 {
		t.Fatalf("MeanHealthScore = %v, want 0 (sole note excluded)", state.MeanHealthScore)
	}
}

func TestScannerPurity(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.org", ":PROPERTIES:\n:ID: a-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:END:\n* A\n\nbody [[id:b-1]]\n")
	writeNote(t, dir, "b.org", ":PROPERTIES:\n:ID: b-1\n:CREATED: 2024-01-01T00:00:00Z\n:UPDATED: 2024-01-01T00:00:00Z\n:END:\n* B\n\nbody\n")

	s := NewScanner(testConfig(dir))
	first, _ := s.Scan(context.Background())
	second, _ := s.Scan(context.Background())

	diff := cmp.Diff(first, second)
	if diff != "" {
		t.Fatalf("repeated scans differ (-first +second):\n%s", diff)
	}
}
