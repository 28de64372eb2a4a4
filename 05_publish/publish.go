// Package publish ships a finished video somewhere else: YouTube, an S3
// bucket, or a NATS subject. Every publisher is optional and none of them can
// fail a run.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

// Publisher delivers the artifacts of a completed run
type Publisher interface {
	Name() string
	Publish(ctx context.Context, state *types.PipelineState) error
}

// VideoRenderedEvent is the message announced after a successful render
type VideoRenderedEvent struct {
	RunID       string   `json:"run_id"`
	Stem        string   `json:"stem"`
	Title       string   `json:"title"`
	Link        string   `json:"link,omitempty"`
	SourceRef   string   `json:"source_ref,omitempty"`
	VideoPath   string   `json:"video_path"`
	AudioPath   string   `json:"audio_path"`
	DurationSec float64  `json:"duration_sec"`
	Captioned   bool     `json:"captioned"`
	Published   []string `json:"published,omitempty"`
	RenderedAt  string   `json:"rendered_at"`
}

// NewEvent builds the event for a completed state
func NewEvent(state *types.PipelineState) (VideoRenderedEvent, error) {
	if err := requireArtifacts(state); err != nil {
		return VideoRenderedEvent{}, err
	}
	return VideoRenderedEvent{
		RunID:       state.RunID,
		Stem:        state.Identity.Stem,
		Title:       state.Story.Title,
		Link:        state.Story.Link,
		SourceRef:   state.Story.SourceRef,
		VideoPath:   state.Video.Path,
		AudioPath:   state.Audio.Path,
		DurationSec: state.Video.Duration,
		Captioned:   state.Video.Captioned,
		Published:   state.Published,
		RenderedAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func requireArtifacts(state *types.PipelineState) error {
	switch {
	case state == nil:
		return errors.New("no pipeline state")
	case state.Story == nil:
		return errors.New("state has no story")
	case state.Identity == nil:
		return errors.New("state has no output identity")
	case state.Video == nil || state.Audio == nil:
		return errors.New("state has no rendered artifacts")
	}
	return nil
}

// FromConfig builds every enabled publisher. NATS goes last so its event can
// list where the video ended up. The returned close func releases connections.
func FromConfig(ctx context.Context, cfg *config.Config) ([]Publisher, func(), error) {
	var (
		pubs    []Publisher
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Publish.YouTube.Enabled {
		yt, err := NewYouTube(ctx, cfg.Publish.YouTube)
		if err != nil {
			return nil, func() {}, fmt.Errorf("youtube publisher: %w", err)
		}
		pubs = append(pubs, yt)
	}
	if cfg.Publish.S3.Enabled {
		s3p, err := NewS3(cfg.Publish.S3)
		if err != nil {
			return nil, func() {}, fmt.Errorf("s3 publisher: %w", err)
		}
		pubs = append(pubs, s3p)
	}
	if cfg.Publish.NATS.Enabled {
		np, err := NewNATS(cfg.Publish.NATS)
		if err != nil {
			return nil, func() {}, fmt.Errorf("nats publisher: %w", err)
		}
		closers = append(closers, np.Close)
		pubs = append(pubs, np)
	}
	return pubs, closeAll, nil
}
