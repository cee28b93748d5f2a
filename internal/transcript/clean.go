// Package transcript normalizes raw captured text and splits it into
// speaker-attributed statements.
package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinValidLength is the minimum trimmed length, in characters, of text worth extracting from
const MinValidLength = 10

var (
	timestampPattern  = regexp.MustCompile(`\[\d{1,2}:\d{2}(?::\d{2})?\]`)
	horizontalSpacing = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
)

// Clean strips bracketed timestamps, collapses whitespace runs, trims each
// line and drops blank lines.
func Clean(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = timestampPattern.ReplaceAllString(raw, "")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpacing.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// IsValid reports whether text is long enough to be worth extracting from
func IsValid(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinValidLength
}
