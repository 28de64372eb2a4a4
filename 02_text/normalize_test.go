package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	text "story-video-pipeline/02_text"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "markdown noise and blank lines",
			input:    "**Hello** [link](http://x) world.  \n\n\n\nBye!",
			expected: "Hello world.\nBye!",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text unchanged",
			input:    "Nothing to clean here.",
			expected: "Nothing to clean here.",
		},
		{
			name:     "emphasis keeps enclosed text",
			input:    "I was *really* **very** tired.",
			expected: "I was really very tired.",
		},
		{
			name:     "heading markers at line start",
			input:    "# Title\n### Part one\nText with a #hashtag stays.",
			expected: "Title\nPart one\nText with a #hashtag stays.",
		},
		{
			name:     "seven hashes is not a heading",
			input:    "####### x",
			expected: "####### x",
		},
		{
			name:     "quotes parentheses and brackets",
			input:    `He said "don't" (twice) [sic].`,
			expected: "He said dont twice sic.",
		},
		{
			name:     "lines are trimmed and empty lines dropped",
			input:    "  first line  \n \t \n\tsecond\tline \r\n",
			expected: "first line\nsecond line",
		},
		{
			name:     "link spanning the whole line disappears",
			input:    "Intro\n[source](https://example.com/a?b=c)\nOutro",
			expected: "Intro\nOutro",
		},
		{
			name:     "quote in front of a heading",
			input:    "\"# Quoted heading",
			expected: "Quoted heading",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, testCase.expected, text.Normalize(testCase.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"**Hello** [link](http://x) world.  \n\n\n\nBye!",
		"#\"# x",
		"# # ## nested headings",
		"[# x",
		"(#) y",
		" # nbsp heading",
		"\v# vertical tab heading",
		"*# emphasis then heading",
		"a  b　c\t\td",
		"[a]([b](c))",
		"'''\n\n\n\"\"\"",
		"##\n# \n#",
		"Line one.\r\n\r\n\r\nLine two?!  Yes.",
	}

	for _, input := range inputs {
		once := text.Normalize(input)
		assert.Equal(t, once, text.Normalize(once), "input %q", input)
	}
}
