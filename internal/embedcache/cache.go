// Package embedcache persists note embedding vectors in a local SQLite
// database, keyed by note and model. ComputeEmbeddings writes one entry per
// note it asks the semantic-search service to embed; the planner does not
// read the cache back when choosing which notes to embed. The core never
// interprets vector contents; it only stores, retrieves, and ages them out.
package embedcache

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dcruver/orgkeep/internal/errs"
	"github.com/dcruver/orgkeep/internal/logging"
)

// Entry is one cached embedding.
type Entry struct {
	NoteID         string
	ChunkHash      string
	Model          string
	Vector         []float32
	CreatedAt      time.Time
	ContentPreview string
}

// Cache wraps a SQLite-backed embedding table.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	note_id                  TEXT NOT NULL,
	chunk_hash               TEXT NOT NULL,
	model                    TEXT NOT NULL,
	vector                   BLOB NOT NULL,
	created_at_epoch_seconds INTEGER NOT NULL,
	content_preview          TEXT,
	PRIMARY KEY (note_id, model)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_model_note ON embeddings(model, note_id);
`

// Open creates or opens the SQLite database at path and ensures its schema
// exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &errs.IoError{Path: path, Detail: "open embedding cache", Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &errs.IoError{Path: path, Detail: "create embedding cache schema", Err: err}
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Upsert stores entry, replacing any existing row for (NoteID, Model).
func (c *Cache) Upsert(entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryEmbedCache, "Upsert")
	defer timer.Stop()

	blob := encodeVector(entry.Vector)
	_, err := c.db.Exec(
		`INSERT INTO embeddings (note_id, chunk_hash, model, vector, created_at_epoch_seconds, content_preview)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(note_id, model) DO UPDATE SET
			chunk_hash = excluded.chunk_hash,
			vector = excluded.vector,
			created_at_epoch_seconds = excluded.created_at_epoch_seconds,
			content_preview = excluded.content_preview`,
		entry.NoteID, entry.ChunkHash, entry.Model, blob, entry.CreatedAt.Unix(), entry.ContentPreview,
	)
	if err != nil {
		logging.Get(logging.CategoryEmbedCache).Error("upsert %s/%s: %v", entry.NoteID, entry.Model, err)
		return fmt.Errorf("embedcache: upsert %s/%s: %w", entry.NoteID, entry.Model, err)
	}
	return nil
}

// Get returns the cached entry for (noteID, model), or ok=false if absent.
func (c *Cache) Get(noteID, model string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := c.db.QueryRow(
		`SELECT note_id, chunk_hash, model, vector, created_at_epoch_seconds, content_preview
		 FROM embeddings WHERE note_id = ? AND model = ?`,
		noteID, model,
	)

	var (
		entry     Entry
		blob      []byte
		createdAt int64
	)
	if err := row.Scan(&entry.NoteID, &entry.ChunkHash, &entry.Model, &blob, &createdAt, &entry.ContentPreview); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("embedcache: get %s/%s: %w", noteID, model, err)
	}
	entry.CreatedAt = time.Unix(createdAt, 0)
	vector, err := decodeVector(blob)
	if err != nil {
		return Entry{}, false, fmt.Errorf("embedcache: decode vector %s/%s: %w", noteID, model, err)
	}
	entry.Vector = vector
	return entry, true, nil
}

// Delete removes every cached entry for noteID, across all models.
func (c *Cache) Delete(noteID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(`DELETE FROM embeddings WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("embedcache: delete %s: %w", noteID, err)
	}
	return nil
}

// IsFresh reports whether noteID has a cached entry for model matching
// chunkHash, created within maxAge of now. A chunk hash mismatch means the
// note's content changed since the cached embedding was computed.
func (c *Cache) IsFresh(noteID, model, chunkHash string, maxAge time.Duration, now time.Time) (bool, error) {
	entry, ok, err := c.Get(noteID, model)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if entry.ChunkHash != chunkHash {
		return false, nil
	}
	if maxAge <= 0 {
		return true, nil
	}
	return now.Sub(entry.CreatedAt) <= maxAge, nil
}

func encodeVector(vec []float32) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedcache: vector blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
