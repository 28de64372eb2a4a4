package text

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"story-video-pipeline/types"
)

// sentenceEnd matches the last terminal mark of a sentence and the whitespace after it
var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Sentences splits text after every run of '.', '!' or '?' that is followed by
// whitespace. The separating whitespace is dropped; whitespace inside a
// sentence (including newlines) is kept.
func Sentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := text[start : loc[0]+1]; strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := text[start:]; strings.TrimSpace(s) != "" {
		out = append(out, s)
	}
	return out
}

// Chunk greedily packs sentences into chunks of fewer than maxChars runes.
// A chunk is closed as soon as the next sentence would make it reach maxChars.
// A single sentence longer than maxChars is emitted whole as its own chunk;
// sentences are never cut, so such a chunk can exceed a synthesis engine's
// input ceiling.
func Chunk(text string, maxChars int) ([]types.Chunk, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max chars must be positive, got %d", types.ErrInput, maxChars)
	}

	var chunks []types.Chunk
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, types.Chunk{Index: len(chunks) + 1, Text: s})
		}
		buf.Reset()
		bufLen = 0
	}

	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if bufLen > 0 && bufLen+n >= maxChars {
			flush()
		}
		buf.WriteString(sentence)
		buf.WriteByte(' ')
		bufLen += n + 1
	}
	flush()

	return chunks, nil
}

// Oversized reports the chunks whose length exceeds maxChars
func Oversized(chunks []types.Chunk, maxChars int) []types.Chunk {
	var out []types.Chunk
	for _, c := range chunks {
		if utf8.RuneCountInString(c.Text) > maxChars {
			out = append(out, c)
		}
	}
	return out
}
