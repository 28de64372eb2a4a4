package orchestrator

import (
	"regexp"
	"strings"
	"time"

	"story-video-pipeline/types"
)

const maxStemRunes = 50

var (
	unsafeTitleChars = regexp.MustCompile(`[^A-Za-z0-9_\s-]`)
	separatorRuns    = regexp.MustCompile(`[-\s]+`)
)

// NewIdentity derives the file stem shared by a run's artifacts:
// sanitized title, at most 50 characters, then _YYYYMMDD_HHMMSS
func NewIdentity(title string, now time.Time) types.OutputIdentity {
	safe := unsafeTitleChars.ReplaceAllString(title, "")
	if r := []rune(safe); len(r) > maxStemRunes {
		safe = string(r[:maxStemRunes])
	}
	safe = separatorRuns.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		safe = "untitled"
	}
	return types.OutputIdentity{
		Stem:      safe + "_" + now.Format("20060102_150405"),
		CreatedAt: now,
	}
}
