// Package text prepares raw story text for speech synthesis: markup removal,
// whitespace normalization and sentence-respecting chunking.
package text

import (
	"regexp"
	"strings"
)

var (
	// [label](target), both halves dropped so URLs are never read aloud
	markdownLink = regexp.MustCompile(`\[.*?\]\(.*?\)`)
	emphasis     = regexp.MustCompile(`\*\*?`)

	// Heading markers at a line start. Horizontal whitespace and the characters
	// removed by stripChars are transparent around the marker, so stripping them
	// afterwards cannot expose a marker that a second pass would remove.
	headingMarker = regexp.MustCompile(`(?m)^(?:[\t\v\f\r \x{85}\p{Z}'"()\[\]]*#{1,6}['"()\[\]]*[\t\v\f\r \x{85}\p{Z}])+`)

	blankRuns       = regexp.MustCompile(`\n{2,}`)
	horizontalSpace = regexp.MustCompile(`[\t\v\f\r \x{85}\p{Z}]+`)
)

var stripChars = strings.NewReplacer(`"`, "", `'`, "", "(", "", ")", "", "[", "", "]", "")

// Normalize strips markup noise that makes TTS engines pause or read symbols
// aloud and collapses whitespace. It never fails and is idempotent.
func Normalize(raw string) string {
	s := markdownLink.ReplaceAllString(raw, "")
	s = emphasis.ReplaceAllString(s, "")
	s = headingMarker.ReplaceAllString(s, "")
	s = stripChars.Replace(s)
	s = headingMarker.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
