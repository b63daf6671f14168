package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType tags one line of a Hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is a single rendered line within a Hunk.
type Line struct {
	Content string
	Type    LineType
}

// Hunk is one contiguous block of change, with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

const contextLines = 3

// Engine computes line-level diffs via diffmatchpatch.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

// Diff computes the hunks turning original into revised, with three lines
// of context around each change.
func (e *Engine) Diff(original, revised string) []Hunk {
	a, b, lineArray := e.dmp.DiffLinesToChars(original, revised)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)
	return groupIntoHunks(toOperations(diffs), contextLines)
}

type operation struct {
	typ     LineType
	oldLine int
	newLine int
	content string
}

func toOperations(diffs []diffmatchpatch.Diff) []operation {
	var ops []operation
	oldLine, newLine := 0, 0

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{typ: LineContext, oldLine: oldLine, newLine: newLine, content: line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{typ: LineRemoved, oldLine: oldLine, newLine: -1, content: line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{typ: LineAdded, oldLine: -1, newLine: newLine, content: line})
				newLine++
			}
		}
	}
	return ops
}

func groupIntoHunks(ops []operation, context int) []Hunk {
	if len(ops) == 0 {
		return nil
	}

	var hunks []Hunk
	var current *Hunk
	lastChange := -1

	for i, op := range ops {
		isChange := op.typ != LineContext
		if isChange {
			if current == nil {
				current = &Hunk{}
				start := i - context
				if start < 0 {
					start = 0
				}
				for j := start; j < i; j++ {
					current.Lines = append(current.Lines, Line{Content: ops[j].content, Type: LineContext})
				}
				current.OldStart = ops[start].oldLine + 1
				current.NewStart = ops[start].newLine + 1
			}
			lastChange = i
		}
		if current != nil {
			current.Lines = append(current.Lines, Line{Content: op.content, Type: op.typ})
			if op.typ == LineContext && i-lastChange > context {
				trimTo := len(current.Lines) - (i - lastChange - context)
				if trimTo > 0 && trimTo < len(current.Lines) {
					current.Lines = current.Lines[:trimTo]
				}
				computeCounts(current)
				hunks = append(hunks, *current)
				current = nil
			}
		}
	}
	if current != nil && len(current.Lines) > 0 {
		computeCounts(current)
		hunks = append(hunks, *current)
	}
	return hunks
}

func computeCounts(h *Hunk) {
	for _, l := range h.Lines {
		if l.Type == LineRemoved || l.Type == LineContext {
			h.OldCount++
		}
		if l.Type == LineAdded || l.Type == LineContext {
			h.NewCount++
		}
	}
}

// RenderUnified renders hunks as a unified diff with header paths
// original/<id> and revised/<id>.
func RenderUnified(id string, hunks []Hunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- original/%s\n", id)
	fmt.Fprintf(&b, "+++ revised/%s\n", id)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineContext:
				b.WriteString(" " + l.Content + "\n")
			case LineRemoved:
				b.WriteString("-" + l.Content + "\n")
			case LineAdded:
				b.WriteString("+" + l.Content + "\n")
			}
		}
	}
	return b.String()
}

// ParseUnified parses a unified diff produced by RenderUnified back into
// hunks, used when applying a stored proposal's patch to the current file.
func ParseUnified(text string) ([]Hunk, error) {
	lines := strings.Split(text, "\n")
	var hunks []Hunk
	var current *Hunk

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "):
			continue
		case strings.HasPrefix(line, "@@ "):
			if current != nil {
				hunks = append(hunks, *current)
			}
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			current = h
		case line == "":
			continue
		default:
			if current == nil {
				continue
			}
			if len(line) == 0 {
				continue
			}
			switch line[0] {
			case ' ':
				current.Lines = append(current.Lines, Line{Content: line[1:], Type: LineContext})
			case '-':
				current.Lines = append(current.Lines, Line{Content: line[1:], Type: LineRemoved})
			case '+':
				current.Lines = append(current.Lines, Line{Content: line[1:], Type: LineAdded})
			}
		}
	}
	if current != nil {
		hunks = append(hunks, *current)
	}
	return hunks, nil
}

func parseHunkHeader(line string) (*Hunk, error) {
	// @@ -oldStart,oldCount +newStart,newCount @@
	inner := strings.TrimPrefix(line, "@@ ")
	inner = strings.TrimSuffix(inner, " @@")
	parts := strings.Fields(inner)
	if len(parts) != 2 {
		return nil, fmt.Errorf("patch: malformed hunk header %q", line)
	}
	oldStart, oldCount, err := parseRange(parts[0], "-")
	if err != nil {
		return nil, err
	}
	newStart, newCount, err := parseRange(parts[1], "+")
	if err != nil {
		return nil, err
	}
	return &Hunk{OldStart: oldStart, OldCount: oldCount, NewStart: newStart, NewCount: newCount}, nil
}

func parseRange(field, prefix string) (start, count int, err error) {
	field = strings.TrimPrefix(field, prefix)
	parts := strings.SplitN(field, ",", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("patch: malformed range %q: %w", field, err)
	}
	count = 1
	if len(parts) == 2 {
		count, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("patch: malformed range %q: %w", field, err)
		}
	}
	return start, count, nil
}
