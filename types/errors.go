package types

import "errors"

// Error kinds surfaced by the pipeline. Stages wrap them with context, callers
// match with errors.Is.
var (
	// ErrInput covers missing story text and empty chunk sequences.
	ErrInput = errors.New("invalid input")
	// ErrSynthesis means a chunk could not be synthesized. No partial track is kept.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrMediaIO covers empty background pools and probe/concat/render/export failures.
	ErrMediaIO = errors.New("media I/O failed")
	// ErrOverlay is recoverable: the video is exported without the title caption.
	ErrOverlay = errors.New("title overlay failed")
)
