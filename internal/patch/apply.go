package patch

import (
	"fmt"
	"strings"
)

// ApplyHunks applies hunks to current content using three-way-style
// matching: each hunk's pre-image (context and removed lines, in order)
// must occur verbatim and exactly once within current. Ambiguous or
// missing pre-images fail the whole application — nothing is partially
// applied.
func ApplyHunks(current string, hunks []Hunk) (string, error) {
	lines := splitLines(current)

	for _, h := range hunks {
		pre := preImage(h)
		post := postImage(h)

		start, err := locateUnique(lines, pre)
		if err != nil {
			return "", err
		}

		out := make([]string, 0, len(lines)-len(pre)+len(post))
		out = append(out, lines[:start]...)
		out = append(out, post...)
		out = append(out, lines[start+len(pre):]...)
		lines = out
	}

	return strings.Join(lines, "\n"), nil
}

func preImage(h Hunk) []string {
	var out []string
	for _, l := range h.Lines {
		if l.Type == LineContext || l.Type == LineRemoved {
			out = append(out, l.Content)
		}
	}
	return out
}

func postImage(h Hunk) []string {
	var out []string
	for _, l := range h.Lines {
		if l.Type == LineContext || l.Type == LineAdded {
			out = append(out, l.Content)
		}
	}
	return out
}

// locateUnique returns the index of the single occurrence of pattern as a
// contiguous subsequence of lines. Zero or multiple occurrences is an error.
func locateUnique(lines, pattern []string) (int, error) {
	if len(pattern) == 0 {
		return 0, fmt.Errorf("patch: empty hunk pre-image")
	}
	var found []int
	for i := 0; i+len(pattern) <= len(lines); i++ {
		if matchesAt(lines, pattern, i) {
			found = append(found, i)
		}
	}
	if len(found) != 1 {
		return 0, fmt.Errorf("patch: hunk pre-image matched %d times, want exactly 1", len(found))
	}
	return found[0], nil
}

func matchesAt(lines, pattern []string, at int) bool {
	for i, p := range pattern {
		if lines[at+i] != p {
			return false
		}
	}
	return true
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}
