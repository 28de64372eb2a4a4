package video

import (
	"fmt"
	"math"
	"strings"

	"story-video-pipeline/types"
)

// Plan is how the background gets stretched to the narration: play it Loops
// times back to back, then cut at Duration.
type Plan struct {
	Loops    int
	Duration float64
}

// PlanTimeline reconciles the background against the narration. A shorter
// background is looped ceil(audio/video) times; anything else is only trimmed.
func PlanTimeline(videoDur, audioDur float64) (Plan, error) {
	if !finitePositive(videoDur) {
		return Plan{}, fmt.Errorf("%w: background duration %.3f", types.ErrMediaIO, videoDur)
	}
	if !finitePositive(audioDur) {
		return Plan{}, fmt.Errorf("%w: narration duration %.3f", types.ErrMediaIO, audioDur)
	}
	if videoDur >= audioDur {
		return Plan{Loops: 1, Duration: audioDur}, nil
	}
	return Plan{Loops: int(math.Ceil(audioDur / videoDur)), Duration: audioDur}, nil
}

func finitePositive(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}

// WrapTitle cuts the title every width runes, ignoring word boundaries
func WrapTitle(title string, width int) string {
	runes := []rune(strings.TrimSpace(title))
	if width <= 0 || len(runes) <= width {
		return string(runes)
	}
	var lines []string
	for i := 0; i < len(runes); i += width {
		end := i + width
		if end > len(runes) {
			end = len(runes)
		}
		lines = append(lines, string(runes[i:end]))
	}
	return strings.Join(lines, "\n")
}
