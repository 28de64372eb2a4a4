// Package source provides the stories the pipeline narrates and records which
// ones are done.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

// Reporter is told when a story made it all the way to a video
type Reporter interface {
	MarkProcessed(ctx context.Context, ref string) error
}

// Source lists candidate stories and records completion
type Source interface {
	Reporter
	// ListUnprocessed returns stories not yet marked, in presentation order
	ListUnprocessed(ctx context.Context) ([]types.Story, error)
	// Get resolves a selector (1-based position in ListUnprocessed, or a SourceRef)
	Get(ctx context.Context, selector string) (types.Story, error)
}

// ErrNoStories is returned by Next when the source is exhausted
var ErrNoStories = fmt.Errorf("%w: no unprocessed stories", types.ErrInput)

// New builds the source named by source.kind. Manual sources are built by the
// caller from flags, so "manual" is rejected here.
func New(cfg *config.Config) (Source, error) {
	switch cfg.Source.Kind {
	case "csv":
		return NewBacklog(cfg.Source.CSVPath), nil
	case "reddit":
		return NewReddit(cfg.Source.Reddit)
	default:
		return nil, fmt.Errorf("source %q has no backlog", cfg.Source.Kind)
	}
}

// Next returns the first unprocessed story
func Next(ctx context.Context, src Source) (types.Story, error) {
	stories, err := src.ListUnprocessed(ctx)
	if err != nil {
		return types.Story{}, err
	}
	if len(stories) == 0 {
		return types.Story{}, ErrNoStories
	}
	return stories[0], nil
}

// pick resolves a selector against a listing
func pick(stories []types.Story, selector string) (types.Story, error) {
	selector = strings.TrimSpace(selector)
	if n, err := strconv.Atoi(selector); err == nil {
		if n < 1 || n > len(stories) {
			return types.Story{}, fmt.Errorf("%w: selection %d out of range 1-%d", types.ErrInput, n, len(stories))
		}
		return stories[n-1], nil
	}
	for _, s := range stories {
		if s.SourceRef == selector {
			return s, nil
		}
	}
	return types.Story{}, fmt.Errorf("%w: no unprocessed story matches %q", types.ErrInput, selector)
}

// writeFileAtomic writes data next to path and renames it into place
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
