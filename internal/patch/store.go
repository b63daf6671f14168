// Package patch implements the backup, unified-diff, and proposal-lifecycle
// store: the only shared writable resource beyond the note files themselves.
package patch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dcruver/orgkeep/internal/errs"
	"github.com/dcruver/orgkeep/internal/logging"
)

// ProposalStatus is the proposal lifecycle state.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "Pending"
	StatusApproved ProposalStatus = "Approved"
	StatusRejected ProposalStatus = "Rejected"
	StatusApplied  ProposalStatus = "Applied"
)

// Stats is a small snapshot of named numeric metrics taken before or after
// a proposal's underlying action ran, used for reporting.
type Stats map[string]float64

// Proposal is an advisory change awaiting human review.
type Proposal struct {
	ID          string         `json:"id"`
	NoteID      string         `json:"note_id"`
	Path        string         `json:"path"`
	ActionName  string         `json:"action_name"`
	Rationale   string         `json:"rationale"`
	ProposedAt  time.Time      `json:"proposed_at"`
	Status      ProposalStatus `json:"status"`
	BeforeStats Stats          `json:"before_stats"`
	AfterStats  Stats          `json:"after_stats"`
	Patch       string         `json:"patch"`
}

func pendingKey(noteID, action string) string { return noteID + "\x00" + action }

// Store is rooted at baseDir with backups/ and proposals/ subdirectories.
// All writes go through a single serialized path per the concurrency model:
// one planning cycle touches the store at a time.
type Store struct {
	baseDir      string
	backupsDir   string
	proposalsDir string
	engine       *Engine

	mu        sync.Mutex
	proposals map[string]*Proposal // id -> proposal
	pending   map[string]string    // pendingKey -> id, Pending only
}

// NewStore opens (creating if absent) the backup/proposal directories under
// baseDir and loads any proposals already persisted there.
func NewStore(baseDir string) (*Store, error) {
	s := &Store{
		baseDir:      baseDir,
		backupsDir:   filepath.Join(baseDir, "backups"),
		proposalsDir: filepath.Join(baseDir, "proposals"),
		engine:       NewEngine(),
		proposals:    make(map[string]*Proposal),
		pending:      make(map[string]string),
	}
	if err := os.MkdirAll(s.backupsDir, 0o755); err != nil {
		return nil, fmt.Errorf("patch: create backups dir: %w", err)
	}
	if err := os.MkdirAll(s.proposalsDir, 0o755); err != nil {
		return nil, fmt.Errorf("patch: create proposals dir: %w", err)
	}
	if err := s.loadExisting(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadExisting() error {
	entries, err := os.ReadDir(s.proposalsDir)
	if err != nil {
		return fmt.Errorf("patch: read proposals dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.proposalsDir, e.Name()))
		if err != nil {
			logging.Get(logging.CategoryPatch).Warn("skipping unreadable proposal %s: %v", e.Name(), err)
			continue
		}
		var p Proposal
		if err := json.Unmarshal(data, &p); err != nil {
			logging.Get(logging.CategoryPatch).Warn("skipping malformed proposal %s: %v", e.Name(), err)
			continue
		}
		s.proposals[p.ID] = &p
		if p.Status == StatusPending {
			s.pending[pendingKey(p.NoteID, p.ActionName)] = p.ID
		}
	}
	return nil
}

// Backup copies path to backups/<basename>.<timestamp>.bak and returns the
// backup's path. Implements notes.Backuper.
func (s *Store) Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &errs.IoError{Path: path, Detail: "read for backup", Err: err}
	}
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(path), time.Now().Format("20060102-150405"))
	dest := filepath.Join(s.backupsDir, name)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", &errs.IoError{Path: dest, Detail: "write backup", Err: err}
	}
	return dest, nil
}

// Diff computes a unified diff between original and revised content, headed
// original/<id> and revised/<id>.
func (s *Store) Diff(original, revised, noteID string) string {
	return RenderUnified(noteID, s.engine.Diff(original, revised))
}

// HasExistingProposal reports whether a Pending proposal already exists for
// (noteID, action). Proposal-class actions must consult this before
// creating a new one.
func (s *Store) HasExistingProposal(noteID, action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[pendingKey(noteID, action)]
	return ok
}

// CreateProposal persists a new Pending proposal and its diff, enforcing the
// at-most-one-Pending-per-(note,action) invariant.
func (s *Store) CreateProposal(noteID, path, action, rationale, original, revised string, before, after Stats) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey(noteID, action)
	if _, exists := s.pending[key]; exists {
		return nil, &errs.DuplicateProposalError{NoteID: noteID, Action: action}
	}

	p := &Proposal{
		ID:          uuid.NewString(),
		NoteID:      noteID,
		Path:        path,
		ActionName:  action,
		Rationale:   rationale,
		ProposedAt:  time.Now(),
		Status:      StatusPending,
		BeforeStats: before,
		AfterStats:  after,
		Patch:       s.Diff(original, revised, noteID),
	}

	if err := s.persist(p); err != nil {
		return nil, err
	}

	s.proposals[p.ID] = p
	s.pending[key] = p.ID
	logging.Get(logging.CategoryPatch).Info("created proposal %s for note %s action %s", p.ID, noteID, action)
	return p, nil
}

func (s *Store) persist(p *Proposal) error {
	base := fmt.Sprintf("%s-%s", p.NoteID, p.ID)
	jsonPath := filepath.Join(s.proposalsDir, base+".json")
	patchPath := filepath.Join(s.proposalsDir, base+".patch")

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("patch: marshal proposal: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return &errs.IoError{Path: jsonPath, Detail: "write proposal", Err: err}
	}
	if err := os.WriteFile(patchPath, []byte(p.Patch), 0o644); err != nil {
		return &errs.IoError{Path: patchPath, Detail: "write patch", Err: err}
	}
	return nil
}

// ListProposals returns every known proposal, in no particular order.
func (s *Store) ListProposals() []*Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p)
	}
	return out
}

// GetProposal looks up a proposal by id.
func (s *Store) GetProposal(id string) (*Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	return p, ok
}

// Approve transitions a Pending proposal to Approved.
func (s *Store) Approve(id string) error {
	return s.transition(id, StatusPending, StatusApproved)
}

// Reject transitions a Pending proposal to Rejected.
func (s *Store) Reject(id string) error {
	return s.transition(id, StatusPending, StatusRejected)
}

func (s *Store) transition(id string, from, to ProposalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return fmt.Errorf("patch: no such proposal %s", id)
	}
	if p.Status != from {
		return fmt.Errorf("patch: proposal %s is %s, not %s", id, p.Status, from)
	}
	p.Status = to
	if to != StatusPending {
		delete(s.pending, pendingKey(p.NoteID, p.ActionName))
	}
	return s.persist(p)
}

// ApplyProposal applies an Approved proposal's stored patch against current
// file content using three-way-style matching: the pre-image (context plus
// removed lines) of every hunk must be found verbatim and exactly once in
// current. On zero or multiple matches, nothing is written and
// StaleProposalError is returned; the proposal's status is left unchanged.
func (s *Store) ApplyProposal(id, current string) (string, error) {
	s.mu.Lock()
	p, ok := s.proposals[id]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("patch: no such proposal %s", id)
	}
	if p.Status != StatusApproved {
		return "", fmt.Errorf("patch: proposal %s is %s, not Approved", id, p.Status)
	}

	hunks, err := ParseUnified(p.Patch)
	if err != nil {
		return "", fmt.Errorf("patch: parse stored patch: %w", err)
	}

	result, err := ApplyHunks(current, hunks)
	if err != nil {
		logging.Get(logging.CategoryPatch).Warn("proposal %s stale: %v", id, err)
		return "", &errs.StaleProposalError{ProposalID: id}
	}

	s.mu.Lock()
	p.Status = StatusApplied
	persistErr := s.persist(p)
	s.mu.Unlock()
	if persistErr != nil {
		return "", persistErr
	}
	return result, nil
}
