package source

import (
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"story-video-pipeline/types"
)

// ManualInput is a story typed, pasted or pointed at on the command line
type ManualInput struct {
	Title     string
	Body      string
	BodyFile  string
	Link      string
	Clipboard bool
}

// readClipboard is swapped in tests
var readClipboard = clipboard.ReadAll

// Manual builds a one-off story. It has no backlog, so SourceRef stays empty
// and nothing is marked when the run completes.
func Manual(in ManualInput) (types.Story, error) {
	body := in.Body
	switch {
	case in.BodyFile != "":
		data, err := os.ReadFile(in.BodyFile)
		if err != nil {
			return types.Story{}, fmt.Errorf("%w: read story body: %v", types.ErrInput, err)
		}
		body = string(data)
	case in.Clipboard:
		text, err := readClipboard()
		if err != nil {
			return types.Story{}, fmt.Errorf("%w: read clipboard: %v", types.ErrInput, err)
		}
		body = text
	}

	title := strings.TrimSpace(in.Title)
	body = strings.TrimSpace(body)
	if title == "" && body == "" {
		return types.Story{}, fmt.Errorf("%w: story needs a title or a body", types.ErrInput)
	}
	return types.Story{Title: title, Body: body, Link: strings.TrimSpace(in.Link)}, nil
}
