package notes

import "time"

// IDGenerator produces a fresh opaque note id. Callers pass uuid.NewString
// in production and a deterministic stub in tests.
type IDGenerator func() string

// Normalize applies the formatting-normalization contract to a copy of n:
// ensure a properties block, ensure id, ensure created, set updated to now,
// and generate a title if absent. It is a pure function — n is not mutated.
//
// Normalize is idempotent for a fixed now: calling it twice with the same
// now produces byte-identical output, since every field it touches is only
// set when absent except Updated, which it always pins to now.
func Normalize(n *Note, now time.Time, genID IDGenerator) *Note {
	out := *n
	out.Properties = NewPropertyList()
	for _, p := range n.Properties.Items() {
		out.Properties.Set(p.Key, p.Value)
	}

	out.HasProperties = true

	if !out.HasID() {
		out.ID = genID()
	}
	if !out.HasCreated() {
		out.Created = now
		out.CreatedRaw = ""
	}
	out.Updated = now
	out.UpdatedRaw = ""

	if !out.HasTitle() {
		out.Title = defaultTitle(&out)
	}

	return &out
}

func defaultTitle(n *Note) string {
	if n.ID != "" {
		return "Untitled " + n.ID
	}
	return "Untitled"
}
