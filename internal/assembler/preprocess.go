package assembler

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Extraction cleanup. PDF text comes out with form feeds, NULs, words
// hyphenated across line breaks, and uneven spacing; the enhancement
// API behaves much better on normalized input.
var (
	artifactPattern     = regexp.MustCompile("[\f\r\x00]")
	hyphenBreakPattern  = regexp.MustCompile(`([\p{L}])-\s*\n\s*([\p{L}])`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]+`)
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted text: strips PDF artifacts, applies
// Unicode NFC, rejoins hyphen-broken words, and collapses whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = artifactPattern.ReplaceAllString(text, "")
	text = norm.NFC.String(text)
	text = hyphenBreakPattern.ReplaceAllString(text, "$1$2")
	text = multiSpacePattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CleanTable normalizes every cell of a table in place-safe copy form.
func CleanTable(rows [][]string) [][]string {
	cleaned := make([][]string, len(rows))
	for i, row := range rows {
		cleaned[i] = make([]string, len(row))
		for j, cell := range row {
			cleaned[i][j] = CleanText(cell)
		}
	}
	return cleaned
}
