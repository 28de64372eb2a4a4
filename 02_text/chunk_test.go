package text_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	text "story-video-pipeline/02_text"
	"story-video-pipeline/types"
)

// sentence returns a sentence of exactly n runes ending in a period
func sentence(n int, fill rune) string {
	return strings.Repeat(string(fill), n-1) + "."
}

func joinChunks(chunks []types.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestSentences(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "no terminal mark", input: "just words", expected: []string{"just words"}},
		{
			name:     "mixed marks",
			input:    "One. Two?! Three!\nFour",
			expected: []string{"One.", "Two?!", "Three!", "Four"},
		},
		{
			name:     "mark without whitespace is not a boundary",
			input:    "Version 1.2 shipped. Done.",
			expected: []string{"Version 1.2 shipped.", "Done."},
		},
		{
			name:     "title line joins the first sentence",
			input:    "My Title\nIt began. It ended.",
			expected: []string{"My Title\nIt began.", "It ended."},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, text.Sentences(testCase.input))
		})
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	t.Parallel()

	chunks, err := text.Chunk("", 4000)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = text.Chunk(" \n\t ", 4000)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_RejectsNonPositiveMax(t *testing.T) {
	t.Parallel()

	_, err := text.Chunk("Hello.", 0)
	require.ErrorIs(t, err, types.ErrInput)
}

func TestChunk_NineThousandCharsMakesThreeChunks(t *testing.T) {
	t.Parallel()

	// 111 sentences of 79 runes plus one of 120, single-space separated
	sentences := make([]string, 0, 112)
	for i := 0; i < 111; i++ {
		sentences = append(sentences, sentence(79, 'a'+rune(i%26)))
	}
	sentences = append(sentences, sentence(120, 'z'))
	input := strings.Join(sentences, " ")
	require.Equal(t, 9000, utf8.RuneCountInString(input))

	chunks, err := text.Chunk(input, 4000)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i+1, c.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 4000)
		assert.True(t, strings.HasSuffix(c.Text, "."))
	}
	assert.Equal(t, input, joinChunks(chunks))
}

func TestChunk_NeverReachesMax(t *testing.T) {
	t.Parallel()

	// each sentence takes 6 runes of buffer with its separator: two fit under
	// 12, but under 11 the second one would make the buffer reach the limit
	chunks, err := text.Chunk("aaaa. bbbb. cccc.", 12)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa. bbbb.", chunks[0].Text)
	assert.Equal(t, "cccc.", chunks[1].Text)

	chunks, err = text.Chunk("aaaa. bbbb. cccc.", 11)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
}

func TestChunk_OversizedSentenceStaysWhole(t *testing.T) {
	t.Parallel()

	long := sentence(50, 'x')
	input := "Short one. " + long + " Tail."

	chunks, err := text.Chunk(input, 20)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one.", chunks[0].Text)
	assert.Equal(t, long, chunks[1].Text)
	assert.Equal(t, "Tail.", chunks[2].Text)

	over := text.Oversized(chunks, 20)
	require.Len(t, over, 1)
	assert.Equal(t, 2, over[0].Index)
}

func TestChunk_Properties(t *testing.T) {
	t.Parallel()

	raw := `# The Night Shift

I started working nights at the gas station in **October**. The first week was quiet!
Then the calls started. Who would call a gas station at 3am? Nobody, I thought.

[screenshot](https://imgur.com/x) The voice on the line knew my name... It knew my address.
I quit the next day.`
	normalized := text.Normalize(raw)

	for _, maxChars := range []int{1, 10, 25, 40, 80, 200, 4000} {
		chunks, err := text.Chunk(normalized, maxChars)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		sentences := text.Sentences(normalized)
		for i, c := range chunks {
			assert.Equal(t, i+1, c.Index)
			assert.NotEmpty(t, strings.TrimSpace(c.Text))
			if utf8.RuneCountInString(c.Text) > maxChars {
				// only a lone sentence may exceed the limit
				assert.Contains(t, sentences, c.Text, "max %d", maxChars)
			}
		}
		assert.Equal(t, collapse(normalized), collapse(joinChunks(chunks)), "max %d", maxChars)
	}
}

func TestChunk_Unicode(t *testing.T) {
	t.Parallel()

	// rune counts, not bytes: each sentence is 5 runes but 10+ bytes
	chunks, err := text.Chunk("éééé. üüüü. öööö.", 12)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "éééé. üüüü.", chunks[0].Text)
}
