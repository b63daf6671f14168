package notes

import (
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dcruver/orgkeep/internal/errs"
)

var propertyLineRe = regexp.MustCompile(`^:([A-Za-z0-9_]+):\s*(.*)$`)

const (
	propertiesOpen  = ":PROPERTIES:"
	propertiesClose = ":END:"
	titlePrefix     = "* "
)

// ReadFile reads and parses a note from path.
func ReadFile(path string) (*Note, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IoError{Path: path, Detail: "read", Err: err}
	}
	n, err := Parse(raw)
	if err != nil {
		if mf, ok := err.(*errs.MalformedFileError); ok {
			mf.Path = path
			return nil, mf
		}
		return nil, err
	}
	n.Path = path
	return n, nil
}

// Parse parses raw note content into a Note. Missing properties, title, or
// tags are not parse failures — they become absences in the projection.
// Parse only fails with MalformedFileError when the content is not valid
// UTF-8 text.
func Parse(raw []byte) (*Note, error) {
	if !utf8.Valid(raw) {
		return nil, &errs.MalformedFileError{Detail: "not valid UTF-8 text"}
	}

	n := &Note{
		Properties: NewPropertyList(),
		RawBytes:   raw,
	}

	lines := strings.Split(string(raw), "\n")
	cursor := 0

	cursor = skipBlank(lines, cursor)
	if cursor < len(lines) && strings.TrimSpace(lines[cursor]) == propertiesOpen {
		n.HasProperties = true
		cursor++
		for cursor < len(lines) && strings.TrimSpace(lines[cursor]) != propertiesClose {
			m := propertyLineRe.FindStringSubmatch(lines[cursor])
			if m != nil {
				applyProperty(n, strings.ToUpper(m[1]), strings.TrimSpace(m[2]))
			}
			cursor++
		}
		if cursor < len(lines) {
			cursor++ // consume :END:
		}
	}

	blankStart := cursor
	cursor = skipBlank(lines, cursor)
	if n.HasProperties {
		n.BlankLinesAfterProperties = cursor - blankStart
	}
	for cursor < len(lines) {
		if strings.HasPrefix(lines[cursor], titlePrefix) {
			n.Title = strings.TrimSpace(strings.TrimPrefix(lines[cursor], titlePrefix))
			cursor++
			break
		}
		if strings.TrimSpace(lines[cursor]) == "" {
			cursor++
			continue
		}
		break
	}

	n.Body = strings.Join(lines[min(cursor, len(lines)):], "\n")
	n.OutboundLinks = ExtractLinks(string(raw))

	return n, nil
}

func skipBlank(lines []string, i int) int {
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	return i
}

func applyProperty(n *Note, key, value string) {
	switch key {
	case "ID":
		n.ID = value
	case "CREATED":
		n.CreatedRaw = value
		if t, ok := parseTime(value); ok {
			n.Created = t
		}
	case "UPDATED":
		n.UpdatedRaw = value
		if t, ok := parseTime(value); ok {
			n.Updated = t
		}
	case "TAGS":
		n.TagsRaw = value
		n.Tags = splitTags(value)
	default:
		n.Properties.Set(key, value)
	}
}

// parseTime accepts RFC3339 and the bare date form org-mode commonly uses.
// An unparseable value is not a parse failure: the caller treats it as
// absent per the scanner's edge-case policy.
func parseTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func splitTags(value string) []string {
	value = strings.Trim(value, ":")
	if value == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ':' || r == ',' || r == ' '
	}) {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

var linkRe = regexp.MustCompile(`\[\[id:([^\]\[]+?)(?:\]\[[^\]]*)?\]\]`)

// ExtractLinks returns every id: token referenced by an [[id:...]] or
// [[id:...][label]] link in content, in order of appearance.
func ExtractLinks(content string) []string {
	matches := linkRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, strings.TrimSpace(m[1]))
	}
	return links
}
