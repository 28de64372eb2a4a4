// Package orchestrator runs one story through the pipeline: normalize, chunk,
// narrate, compose, publish, and report back to the story source.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	source "story-video-pipeline/01_source"
	text "story-video-pipeline/02_text"
	publish "story-video-pipeline/05_publish"
	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

// AudioStage turns chunks into the narration track
type AudioStage interface {
	Run(ctx context.Context, chunks []types.Chunk, outPath string) (*types.AudioTrack, error)
}

// VideoStage lays the narration over a background
type VideoStage interface {
	Run(ctx context.Context, audio *types.AudioTrack, title, outPath string) (*types.ComposedVideo, error)
}

type warningSource interface {
	OnWarning(func(error))
}

// Orchestrator sequences the stages for one story at a time
type Orchestrator struct {
	cfg        *config.Config
	audio      AudioStage
	video      VideoStage
	publishers []publish.Publisher
	reporter   source.Reporter
	now        func() time.Time
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithPublishers adds post-render publishers
func WithPublishers(pubs ...publish.Publisher) Option {
	return func(o *Orchestrator) { o.publishers = append(o.publishers, pubs...) }
}

// WithReporter sets who is told about completed backlog stories
func WithReporter(r source.Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates a new Orchestrator
func New(cfg *config.Config, audio AudioStage, video VideoStage, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, audio: audio, video: video, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes one story. The returned state is never nil and is also saved
// under paths.logs whatever the outcome. On failure nothing is left at the
// canonical artifact paths and the story is not marked processed.
func (o *Orchestrator) Run(ctx context.Context, story types.Story) (state *types.PipelineState, err error) {
	started := o.now()
	state = &types.PipelineState{
		RunID:     uuid.NewString()[:8],
		StartedAt: started.UTC().Format(time.RFC3339),
		Story:     &story,
	}
	logger := log.With().Str("run_id", state.RunID).Logger()

	var audioPath string
	defer func() {
		if err != nil {
			state.Error = err.Error()
			if audioPath != "" {
				if rmErr := os.Remove(audioPath); rmErr != nil && !os.IsNotExist(rmErr) {
					logger.Warn().Err(rmErr).Str("file", audioPath).Msg("could not remove audio after failed run")
				}
				state.Audio = nil
			}
		}
		state.CompletedAt = o.now().UTC().Format(time.RFC3339)
		o.saveState(state)
		if err != nil {
			logger.Error().Str("stage", "orchestrator").Err(err).Msg("pipeline failed")
		}
	}()

	title := strings.TrimSpace(story.Title)
	if title == "" && strings.TrimSpace(story.Body) == "" {
		return state, fmt.Errorf("%w: story has neither title nor body", types.ErrInput)
	}

	// ── Text ──
	normalized := text.Normalize(story.Title + "\n\n" + story.Body)
	chunks, err := text.Chunk(normalized, o.cfg.Text.MaxChars)
	if err != nil {
		return state, fmt.Errorf("chunk story: %w", err)
	}
	if len(chunks) == 0 {
		return state, fmt.Errorf("%w: story is empty after normalization", types.ErrInput)
	}
	state.ChunkCount = len(chunks)
	for _, c := range text.Oversized(chunks, o.cfg.Text.MaxChars) {
		state.Warnings = append(state.Warnings, fmt.Sprintf("chunk %d is %d chars, above max_chars %d", c.Index, len([]rune(c.Text)), o.cfg.Text.MaxChars))
	}
	logger.Info().Str("stage", "text").Int("chars", len([]rune(normalized))).Int("chunks", len(chunks)).Msg("story prepared")

	id := NewIdentity(title, started)
	state.Identity = &id

	// ── Audio ──
	track, err := o.audio.Run(ctx, chunks, id.AudioPath(o.cfg.Paths.AudioOutput))
	if err != nil {
		return state, fmt.Errorf("audio: %w", err)
	}
	audioPath = track.Path
	state.Audio = track

	// ── Video ──
	if ws, ok := o.video.(warningSource); ok {
		ws.OnWarning(func(w error) { state.Warnings = append(state.Warnings, w.Error()) })
	}
	video, err := o.video.Run(ctx, track, title, id.VideoPath(o.cfg.Paths.VideoOutput))
	if err != nil {
		return state, fmt.Errorf("video: %w", err)
	}
	state.Video = video
	audioPath = ""

	// ── Publish ──
	for _, p := range o.publishers {
		if err := p.Publish(ctx, state); err != nil {
			logger.Warn().Str("stage", "publish").Str("publisher", p.Name()).Err(err).Msg("publish failed, continuing")
			state.Warnings = append(state.Warnings, fmt.Sprintf("%s: %v", p.Name(), err))
		}
	}

	// ── Report ──
	if story.SourceRef != "" && o.reporter != nil {
		if err := o.reporter.MarkProcessed(ctx, story.SourceRef); err != nil {
			logger.Warn().Str("stage", "source").Err(err).Msg("could not mark story processed")
			state.Warnings = append(state.Warnings, fmt.Sprintf("mark processed: %v", err))
		} else {
			state.Marked = true
		}
	}

	logger.Info().Str("stage", "orchestrator").Str("video", video.Path).Float64("duration_sec", video.Duration).
		Dur("took", o.now().Sub(started)).Msg("pipeline complete")
	return state, nil
}

// StatePath is where the snapshot for a run lands
func (o *Orchestrator) StatePath(state *types.PipelineState) string {
	if state.Identity != nil {
		return state.Identity.StatePath(o.cfg.Paths.Logs)
	}
	return filepath.Join(o.cfg.Paths.Logs, "run_"+state.RunID+".json")
}

func (o *Orchestrator) saveState(state *types.PipelineState) {
	path := o.StatePath(state)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("could not marshal pipeline state")
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("could not create state dir")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("could not save pipeline state")
	}
}
