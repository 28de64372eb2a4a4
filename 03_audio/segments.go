package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SegmentSet owns the per-chunk audio files of one run. Everything lives in a
// private temp directory that Close removes; Close is safe to call twice.
type SegmentSet struct {
	dir   string
	paths []string
	once  sync.Once
}

// NewSegmentSet creates a segment directory under parent for n chunks
func NewSegmentSet(parent string, n int) (*SegmentSet, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return nil, fmt.Errorf("create segment parent %s: %w", parent, err)
		}
	}
	dir, err := os.MkdirTemp(parent, "segments-*")
	if err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("chunk_%04d.mp3", i+1))
	}
	return &SegmentSet{dir: dir, paths: paths}, nil
}

// Dir returns the directory backing the set
func (s *SegmentSet) Dir() string { return s.dir }

// Write stores the audio for the chunk at position i (0-based)
func (s *SegmentSet) Write(i int, data []byte) error {
	if i < 0 || i >= len(s.paths) {
		return fmt.Errorf("segment %d out of range [0,%d)", i, len(s.paths))
	}
	if len(data) == 0 {
		return fmt.Errorf("segment %d: empty audio", i+1)
	}
	return os.WriteFile(s.paths[i], data, 0644)
}

// Paths returns the segment files in chunk order
func (s *SegmentSet) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Close removes every segment
func (s *SegmentSet) Close() error {
	var err error
	s.once.Do(func() {
		err = os.RemoveAll(s.dir)
	})
	return err
}
