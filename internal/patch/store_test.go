package patch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dcruver/orgkeep/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestDiffRoundTripsThroughApply(t *testing.T) {
	original := "line one\nline two\nline three\n"
	revised := "line one\nline TWO\nline three\n"

	s := newTestStore(t)
	patch := s.Diff(original, revised, "note-1")

	hunks, err := ParseUnified(patch)
	if err != nil {
		t.Fatalf("ParseUnified: %v", err)
	}
	applied, err := ApplyHunks(original, hunks)
	if err != nil {
		t.Fatalf("ApplyHunks: %v", err)
	}
	if applied != strings.TrimSuffix(revised, "\n") {
		t.Fatalf("applied = %q, want %q", applied, revised)
	}
}

func TestDuplicateProposalGuard(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateProposal("note-1", "/tmp/note-1.org", "SuggestLinks", "rationale", "a\n", "b\n", nil, nil)
	if err != nil {
		t.Fatalf("first CreateProposal: %v", err)
	}
	_, err = s.CreateProposal("note-1", "/tmp/note-1.org", "SuggestLinks", "rationale", "a\n", "c\n", nil, nil)
	var dup *errs.DuplicateProposalError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateProposalError, got %v", err)
	}
}

func TestHasExistingProposal(t *testing.T) {
	s := newTestStore(t)
	if s.HasExistingProposal("note-1", "SuggestLinks") {
		t.Fatalf("expected no existing proposal yet")
	}
	if _, err := s.CreateProposal("note-1", "/tmp/note-1.org", "SuggestLinks", "r", "a\n", "b\n", nil, nil); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if !s.HasExistingProposal("note-1", "SuggestLinks") {
		t.Fatalf("expected existing proposal after create")
	}
}

func TestApplyProposalStaleWhenContextMissing(t *testing.T) {
	s := newTestStore(t)
	p, err := s.CreateProposal("note-1", "/tmp/note-1.org", "NormalizeFormatting", "r", "a\nb\nc\n", "a\nB\nc\n", nil, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if err := s.Approve(p.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	_, err = s.ApplyProposal(p.ID, "totally different content\n")
	if err == nil {
		t.Fatalf("expected stale proposal error")
	}
	var stale *errs.StaleProposalError
	if !errors.As(err, &stale) {
		t.Fatalf("expected StaleProposalError, got %v", err)
	}
}

func TestApplyProposalSucceedsWhenContextPresent(t *testing.T) {
	s := newTestStore(t)
	original := "a\nb\nc\n"
	revised := "a\nB\nc\n"
	p, err := s.CreateProposal("note-1", "/tmp/note-1.org", "NormalizeFormatting", "r", original, revised, nil, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if err := s.Approve(p.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	result, err := s.ApplyProposal(p.ID, original)
	if err != nil {
		t.Fatalf("ApplyProposal: %v", err)
	}
	if result != "a\nB\nc" {
		t.Fatalf("result = %q", result)
	}

	got, _ := s.GetProposal(p.ID)
	if got.Status != StatusApplied {
		t.Fatalf("status = %s, want Applied", got.Status)
	}
}

func TestBackupWritesCopy(t *testing.T) {
	dir := t.TempDir()
	notePath := filepath.Join(dir, "note.org")
	if err := os.WriteFile(notePath, []byte("content\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := NewStore(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	backupPath, err := s.Backup(notePath)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(data) != "content\n" {
		t.Fatalf("backup content = %q", data)
	}
}

func TestNewStoreReloadsExistingProposals(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	p, err := s1.CreateProposal("note-1", "/tmp/note-1.org", "SuggestLinks", "r", "a\n", "b\n", nil, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	s2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("second NewStore: %v", err)
	}
	if !s2.HasExistingProposal("note-1", "SuggestLinks") {
		t.Fatalf("expected reloaded store to see pending proposal")
	}
	got, ok := s2.GetProposal(p.ID)
	if !ok || got.Rationale != "r" {
		t.Fatalf("GetProposal after reload = %+v, %v", got, ok)
	}
}
