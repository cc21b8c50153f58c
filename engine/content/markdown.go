package content

import (
	"regexp"
	"strings"
)

var headingRe = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*$`)

// HeadingText extracts the text of an ATX heading line, or "" when the line
// is not a heading.
func HeadingText(line string) string {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

func normalizeHeading(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func splitLines(markdown string) []string {
	return regexp.MustCompile(`\r?\n`).Split(markdown, -1)
}

// ExtractHeadings keeps only the subtrees under the named headings. Heading
// matching is case and surrounding-whitespace insensitive. Content before
// the first matched heading is dropped; a non-matching heading ends the
// current subtree.
func ExtractHeadings(markdown string, headings []string) string {
	targets := make(map[string]struct{}, len(headings))
	for _, h := range headings {
		targets[normalizeHeading(h)] = struct{}{}
	}
	var out []string
	include := false
	for _, line := range splitLines(markdown) {
		if text := HeadingText(line); text != "" {
			_, include = targets[normalizeHeading(text)]
		}
		if include {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// ExtractExcerpt returns the slice between two named headings. An empty
// startHeading means start of document; an empty endHeading means end of
// document. The start heading line is included, the end heading line is not.
func ExtractExcerpt(markdown, startHeading, endHeading string) string {
	start := normalizeHeading(startHeading)
	end := normalizeHeading(endHeading)
	collecting := start == ""
	var out []string
	for _, line := range splitLines(markdown) {
		if text := HeadingText(line); text != "" {
			normalized := normalizeHeading(text)
			if !collecting && start != "" && normalized == start {
				collecting = true
			} else if collecting && end != "" && normalized == end {
				break
			}
		}
		if collecting {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
