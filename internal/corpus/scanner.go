package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dcruver/orgkeep/internal/errs"
	"github.com/dcruver/orgkeep/internal/health"
	"github.com/dcruver/orgkeep/internal/logging"
	"github.com/dcruver/orgkeep/internal/notes"
)

// Config configures one Scanner.
type Config struct {
	Root                string
	NoteExtension       string // default ".org"
	InternalDirName     string // default ".orgkeep"; excluded from scans
	EmbeddingMaxAgeDays int
	HealthConfig        health.Config
	MaxConcurrency      int64 // default runtime.NumCPU()
}

func (c Config) withDefaults() Config {
	if c.NoteExtension == "" {
		c.NoteExtension = ".org"
	}
	if c.InternalDirName == "" {
		c.InternalDirName = ".orgkeep"
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = int64(runtime.NumCPU())
	}
	return c
}

// Scanner walks a note root and builds a CorpusState.
type Scanner struct {
	cfg Config
}

func NewScanner(cfg Config) *Scanner {
	return &Scanner{cfg: cfg.withDefaults()}
}

// Scan walks the root, reads and parses each note under a bounded worker
// pool, then folds the results into one immutable CorpusState. Per-note
// parse failures are absorbed into warnings, never fail the scan.
func (s *Scanner) Scan(ctx context.Context) (*CorpusState, []error) {
	timer := logging.StartTimer(logging.CategoryCorpus, "Scan")
	defer timer.Stop()

	paths, err := s.listNoteFiles()
	if err != nil {
		return nil, []error{err}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		warnings []error
		metas    = make(map[string]*NoteMetadata, len(paths))
	)
	sem := semaphore.NewWeighted(s.cfg.MaxConcurrency)

	for _, path := range paths {
		path := path
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			warnings = append(warnings, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			meta, warn := s.scanOne(path)
			mu.Lock()
			defer mu.Unlock()
			if warn != nil {
				warnings = append(warnings, warn)
			}
			if meta != nil {
				metas[metaKey(meta)] = meta
			}
		}()
	}
	wg.Wait()

	invertLinks(metas)

	state := s.aggregate(metas)
	logging.Get(logging.CategoryCorpus).Info("scan complete: %d notes, %d warnings", state.TotalNotes, len(warnings))
	return state, warnings
}

func (s *Scanner) listNoteFiles() ([]string, error) {
	var paths []string
	err := filepath.Walk(s.cfg.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == s.cfg.InternalDirName || (strings.HasPrefix(info.Name(), ".") && path != s.cfg.Root) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == s.cfg.NoteExtension {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus: walk %s: %w", s.cfg.Root, err)
	}
	return paths, nil
}

// scanOne reads one note and derives its metadata. A malformed file yields
// (nil, warning) rather than aborting the scan.
func (s *Scanner) scanOne(path string) (*NoteMetadata, error) {
	n, err := notes.ReadFile(path)
	if err != nil {
		var mf *errs.MalformedFileError
		if errors.As(err, &mf) {
			logging.Get(logging.CategoryCorpus).Warn("malformed file %s: %s", mf.Path, mf.Detail)
			return nil, mf
		}
		return nil, err
	}

	info, statErr := os.Stat(path)
	var fileModTime time.Time
	if statErr == nil {
		fileModTime = info.ModTime()
	}

	meta := &NoteMetadata{
		NoteID:        n.ID,
		Path:          path,
		OutboundLinks: n.OutboundLinks,
		Tags:          n.Tags,
		CreatedAt:     n.Created,
		UpdatedAt:     n.Updated,
	}

	meta.NoteType = classifyType(n.Tags)
	meta.AgentsDisabled = hasTag(n.Tags, DisableTag)
	meta.TagsCanonical = tagsCanonical(n.Tags)

	meta.HasProperties = n.HasProperties
	meta.HasTitle = n.HasTitle()
	meta.ProvenanceOk = n.HasID() && n.HasCreated() && n.HasUpdated()
	meta.FormatOk = meta.HasProperties && n.HasID() && n.HasCreated() && meta.HasTitle && endsWithNewline(n.RawBytes)

	if embedding, ok := n.Properties.Get("EMBEDDING"); ok && strings.TrimSpace(embedding) != "" {
		meta.HasEmbedding = true
	}
	meta.EmbedModel, _ = n.Properties.Get("EMBED_MODEL")
	if at, ok := n.Properties.Get("EMBED_AT"); ok {
		if t, parsed := parseEmbedAt(at); parsed {
			meta.EmbedAt = t
			meta.EmbedAtKnown = true
		}
	}

	meta.StaleDays = staleDays(n.Updated, n.Created, fileModTime)

	return meta, nil
}

// metaKey is the CorpusState.Notes map key for one note. A note without an
// id (format issues not yet normalized) would otherwise collide with every
// other id-less note under the empty string; keying those by path keeps
// them distinct until NormalizeFormatting assigns a real id.
func metaKey(m *NoteMetadata) string {
	if m.NoteID != "" {
		return m.NoteID
	}
	return "@path:" + m.Path
}

func endsWithNewline(raw []byte) bool {
	return len(raw) > 0 && raw[len(raw)-1] == '\n'
}

func classifyType(tags []string) NoteType {
	for _, t := range tags {
		switch strings.ToLower(t) {
		case "source":
			return NoteTypeSource
		case "literature":
			return NoteTypeLiterature
		}
	}
	return NoteTypePermanent
}

func hasTag(tags []string, name string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

var canonicalTagRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

func tagsCanonical(tags []string) bool {
	for _, t := range tags {
		if !canonicalTagRe.MatchString(t) {
			return false
		}
	}
	return true
}

func parseEmbedAt(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// staleDays computes whole days between now and the first known instant in
// preference order: updated, created, file modification time. An
// unparseable/absent chain yields 0, matching the "unknown, not stale"
// edge-case policy applied elsewhere in the scanner.
func staleDays(updated, created, fileModTime time.Time) int {
	var ref time.Time
	switch {
	case !updated.IsZero():
		ref = updated
	case !created.IsZero():
		ref = created
	case !fileModTime.IsZero():
		ref = fileModTime
	default:
		return 0
	}
	d := time.Since(ref)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// invertLinks builds the inbound-link map by inverting every note's
// outbound links, then recomputes link_count and is_orphan. Self-links do
// not count toward inbound or outbound totals.
func invertLinks(metas map[string]*NoteMetadata) {
	inbound := make(map[string][]string)
	for _, m := range metas {
		for _, target := range m.OutboundLinks {
			if target == m.NoteID {
				continue
			}
			inbound[target] = append(inbound[target], m.NoteID)
		}
	}

	for _, m := range metas {
		m.InboundLinks = inbound[m.NoteID]
		outboundCount := 0
		for _, target := range m.OutboundLinks {
			if target != m.NoteID {
				outboundCount++
			}
		}
		m.LinkCount = outboundCount + len(m.InboundLinks)
		m.IsOrphan = m.LinkCount == 0
	}
}

func (s *Scanner) aggregate(metas map[string]*NoteMetadata) *CorpusState {
	state := &CorpusState{Notes: metas}

	var scores []float64
	for _, m := range metas {
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

		embeddingFresh := embeddingIsFresh(m, s.cfg.EmbeddingMaxAgeDays)
		if m.HasEmbedding && !embeddingFresh {
			state.NotesWithStaleEmbeddings++
		}

		if m.StaleDays > s.cfg.HealthConfig.StaleThresholdDays {
			state.StaleNotes++
		}

		breakdown := health.Score(health.Input{
			HasEmbedding:   m.HasEmbedding,
			EmbeddingFresh: embeddingFresh,
			FormatOk:       m.FormatOk,
			HasProperties:  m.HasProperties,
			HasTitle:       m.HasTitle,
			ProvenanceOk:   m.ProvenanceOk,
			TagsCanonical:  m.TagsCanonical,
			StaleDays:      m.StaleDays,
			LinkCount:      m.LinkCount,
			NoteType:       health.NoteType(m.NoteType),
		}, s.cfg.HealthConfig)
		m.HealthDetail = breakdown
		m.HealthScore = breakdown.Total

		if !m.AgentsDisabled {
			scores = append(scores, breakdown.Total)
		}
	}

	state.MeanHealthScore = health.Mean(scores)
	return state
}

// embeddingIsFresh treats an absent EMBED_AT as fresh-but-unknown-age per
// the embedding-cache freshness open question: codify absence as
// "unknown, not stale" for health scoring.
func embeddingIsFresh(m *NoteMetadata, maxAgeDays int) bool {
	if !m.HasEmbedding {
		return false
	}
	if !m.EmbedAtKnown {
		return true
	}
	if maxAgeDays <= 0 {
		return true
	}
	age := int(time.Since(m.EmbedAt).Hours() / 24)
	return age <= maxAgeDays
}
