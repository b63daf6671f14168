package notes

import (
	"bytes"
	"testing"
	"time"
)

const wellFormed = `:PROPERTIES:
:ID: a-1
:CREATED: 2024-01-02T03:04:05Z
:UPDATED: 2024-01-03T03:04:05Z
:TAGS: permanent:project
:CUSTOM: keep-me
:END:
* Example Note

Some body text referencing [[id:b-2][a friend]] and a bare [[id:c-3]].
`

func TestRoundTrip(t *testing.T) {
	n, err := Parse([]byte(wellFormed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := Render(n)
	if !bytes.Equal(got, []byte(wellFormed)) {
		t.Fatalf("round trip mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, wellFormed)
	}
}

func TestParseFields(t *testing.T) {
	n, err := Parse([]byte(wellFormed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n.ID != "a-1" {
		t.Errorf("ID = %q, want a-1", n.ID)
	}
	if n.Title != "Example Note" {
		t.Errorf("Title = %q", n.Title)
	}
	if v, ok := n.Properties.Get("CUSTOM"); !ok || v != "keep-me" {
		t.Errorf("CUSTOM property = %q, %v", v, ok)
	}
	if len(n.Tags) != 2 || n.Tags[0] != "permanent" || n.Tags[1] != "project" {
		t.Errorf("Tags = %v", n.Tags)
	}
	wantLinks := []string{"b-2", "c-3"}
	if len(n.OutboundLinks) != len(wantLinks) {
		t.Fatalf("OutboundLinks = %v", n.OutboundLinks)
	}
	for i, l := range wantLinks {
		if n.OutboundLinks[i] != l {
			t.Errorf("OutboundLinks[%d] = %q, want %q", i, n.OutboundLinks[i], l)
		}
	}
}

func TestRoundTripBlankLineAfterProperties(t *testing.T) {
	raw := ":PROPERTIES:\n:ID: a-1\n:END:\n\n* Title\n\nbody\n"
	n, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n.BlankLinesAfterProperties != 1 {
		t.Fatalf("BlankLinesAfterProperties = %d, want 1", n.BlankLinesAfterProperties)
	}
	got := Render(n)
	if !bytes.Equal(got, []byte(raw)) {
		t.Fatalf("round trip mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, raw)
	}
}

func TestParseMissingProperties(t *testing.T) {
	raw := "* No Drawer\n\nJust body text.\n"
	n, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n.HasProperties {
		t.Errorf("expected HasProperties=false")
	}
	if n.HasID() || n.HasCreated() {
		t.Errorf("expected no promoted fields")
	}
	if n.Title != "No Drawer" {
		t.Errorf("Title = %q", n.Title)
	}
}

func TestParseRejectsNonUTF8(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0x00}
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected MalformedFileError")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	genID := func() string { return "generated-id" }

	n, err := Parse([]byte("* Bare\n\nbody\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	once := Normalize(n, now, genID)
	twice := Normalize(once, now, genID)

	if !bytes.Equal(Render(once), Render(twice)) {
		t.Fatalf("normalize not idempotent:\n--- once ---\n%s\n--- twice ---\n%s", Render(once), Render(twice))
	}
	if once.ID != "generated-id" {
		t.Errorf("ID = %q", once.ID)
	}
	if once.Created != now || once.Updated != now {
		t.Errorf("Created/Updated = %v/%v, want %v", once.Created, once.Updated, now)
	}
}

func TestNormalizePreservesExistingID(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	n, err := Parse([]byte(wellFormed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := Normalize(n, now, func() string { return "should-not-be-used" })
	if out.ID != "a-1" {
		t.Errorf("ID = %q, want preserved a-1", out.ID)
	}
	if out.Created.IsZero() || !out.Created.Equal(n.Created) {
		t.Errorf("Created should be preserved, got %v", out.Created)
	}
}

func TestExtractLinksIgnoresMalformedBrackets(t *testing.T) {
	links := ExtractLinks("no links here, just [brackets] and [[not-an-id-link]]")
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}
