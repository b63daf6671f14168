package notes

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dcruver/orgkeep/internal/errs"
)

// Backuper is implemented by the patch store; Writer calls it before
// replacing any file on disk. A nil Backuper skips the backup step, used
// only for writing brand-new files that have never existed.
type Backuper interface {
	Backup(path string) (string, error)
}

// Render serializes a Note back into note-file bytes: properties block
// (ID, CREATED, UPDATED, TAGS, then remaining properties in original
// order), title, body, with a guaranteed trailing newline.
func Render(n *Note) []byte {
	var b strings.Builder

	if n.HasProperties || n.HasID() || n.HasCreated() || n.HasUpdated() || len(n.Tags) > 0 || n.Properties.Len() > 0 {
		b.WriteString(propertiesOpen + "\n")
		if n.HasID() {
			fmt.Fprintf(&b, ":ID: %s\n", n.ID)
		}
		if n.HasCreated() {
			fmt.Fprintf(&b, ":CREATED: %s\n", createdValue(n))
		}
		if n.HasUpdated() {
			fmt.Fprintf(&b, ":UPDATED: %s\n", updatedValue(n))
		}
		if len(n.Tags) > 0 {
			fmt.Fprintf(&b, ":TAGS: %s\n", tagsValue(n))
		}
		for _, p := range n.Properties.Items() {
			fmt.Fprintf(&b, ":%s: %s\n", p.Key, p.Value)
		}
		b.WriteString(propertiesClose + "\n")
		for i := 0; i < n.BlankLinesAfterProperties; i++ {
			b.WriteString("\n")
		}
	}

	if n.HasTitle() {
		fmt.Fprintf(&b, "%s%s\n", titlePrefix, n.Title)
	}

	body := n.Body
	b.WriteString(body)

	out := b.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out)
}

func createdValue(n *Note) string {
	if n.CreatedRaw != "" {
		return n.CreatedRaw
	}
	return n.Created.UTC().Format(time.RFC3339)
}

func updatedValue(n *Note) string {
	if n.UpdatedRaw != "" {
		return n.UpdatedRaw
	}
	return n.Updated.UTC().Format(time.RFC3339)
}

func tagsValue(n *Note) string {
	if n.TagsRaw != "" {
		return n.TagsRaw
	}
	return strings.Join(n.Tags, ":")
}

// WriteFile backs up the existing file (via backup, when non-nil) then
// writes n's rendered form to path using the scoped temp-write-then-rename
// pattern, so a crash never leaves a half-written file in place.
func WriteFile(path string, n *Note, backup Backuper) (backupPath string, err error) {
	if backup != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			backupPath, err = backup.Backup(path)
			if err != nil {
				return "", fmt.Errorf("notes: backup before write: %w", err)
			}
		}
	}

	data := Render(n)
	tmp := path + ".orgkeep-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return backupPath, &errs.IoError{Path: path, Detail: "write temp file", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return backupPath, &errs.IoError{Path: path, Detail: "rename into place", Err: err}
	}
	return backupPath, nil
}
