package embedcache

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "embeddings.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUpsertAndGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	now := time.Unix(1700000000, 0)

	entry := Entry{
		NoteID:         "a-1",
		ChunkHash:      "hash1",
		Model:          "text-embedding-3-small",
		Vector:         []float32{0.1, 0.2, 0.3},
		CreatedAt:      now,
		ContentPreview: "preview text",
	}
	if err := c.Upsert(entry); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := c.Get("a-1", "text-embedding-3-small")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	if got.ChunkHash != "hash1" || got.ContentPreview != "preview text" {
		t.Fatalf("got = %+v", got)
	}
	if len(got.Vector) != 3 || got.Vector[1] != 0.2 {
		t.Fatalf("Vector = %v", got.Vector)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	c := newTestCache(t)
	now := time.Unix(1700000000, 0)

	if err := c.Upsert(Entry{NoteID: "a-1", ChunkHash: "old", Model: "m", Vector: []float32{1}, CreatedAt: now}); err != nil {
		t.Fatalf("Upsert 1: %v", err)
	}
	later := now.Add(time.Hour)
	if err := c.Upsert(Entry{NoteID: "a-1", ChunkHash: "new", Model: "m", Vector: []float32{2}, CreatedAt: later}); err != nil {
		t.Fatalf("Upsert 2: %v", err)
	}

	got, ok, err := c.Get("a-1", "m")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.ChunkHash != "new" {
		t.Fatalf("ChunkHash = %q, want %q", got.ChunkHash, "new")
	}
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Get("missing", "m")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing entry")
	}
}

func TestIsFreshDetectsChunkHashMismatch(t *testing.T) {
	c := newTestCache(t)
	now := time.Unix(1700000000, 0)
	if err := c.Upsert(Entry{NoteID: "a-1", ChunkHash: "hash1", Model: "m", Vector: []float32{1}, CreatedAt: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	fresh, err := c.IsFresh("a-1", "m", "hash1", time.Hour, now)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if !fresh {
		t.Fatalf("expected fresh for matching hash within age")
	}

	stale, err := c.IsFresh("a-1", "m", "hash2", time.Hour, now)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if stale {
		t.Fatalf("expected not fresh for mismatched chunk hash")
	}
}

func TestIsFreshDetectsAge(t *testing.T) {
	c := newTestCache(t)
	now := time.Unix(1700000000, 0)
	if err := c.Upsert(Entry{NoteID: "a-1", ChunkHash: "hash1", Model: "m", Vector: []float32{1}, CreatedAt: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	later := now.Add(48 * time.Hour)
	fresh, err := c.IsFresh("a-1", "m", "hash1", 24*time.Hour, later)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if fresh {
		t.Fatalf("expected stale entry past max age")
	}
}

func TestDeleteRemovesAllModelsForNote(t *testing.T) {
	c := newTestCache(t)
	now := time.Unix(1700000000, 0)
	if err := c.Upsert(Entry{NoteID: "a-1", ChunkHash: "h", Model: "m1", Vector: []float32{1}, CreatedAt: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := c.Upsert(Entry{NoteID: "a-1", ChunkHash: "h", Model: "m2", Vector: []float32{1}, CreatedAt: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := c.Delete("a-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get("a-1", "m1"); ok {
		t.Fatalf("expected m1 entry gone")
	}
	if _, ok, _ := c.Get("a-1", "m2"); ok {
		t.Fatalf("expected m2 entry gone")
	}
}
