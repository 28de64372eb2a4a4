package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"story-video-pipeline/config"
	"story-video-pipeline/ffmpeg"
	"story-video-pipeline/types"
)

// Media is what the compositor needs from the media layer
type Media interface {
	ProbeVideo(ctx context.Context, path string) (types.VideoAsset, error)
	Render(ctx context.Context, job ffmpeg.RenderJob) error
	HasFilter(ctx context.Context, name string) bool
}

// Compositor lays the narration over a looped/trimmed background and burns
// the title in for the first few seconds
type Compositor struct {
	cfg         *config.Config
	backgrounds *Backgrounds
	media       Media
	warn        func(error)
}

// New creates a new Compositor
func New(cfg *config.Config, backgrounds *Backgrounds, media Media) *Compositor {
	return &Compositor{cfg: cfg, backgrounds: backgrounds, media: media}
}

// OnWarning registers a callback for recoverable problems (ErrOverlay)
func (c *Compositor) OnWarning(fn func(error)) {
	c.warn = fn
}

// Run renders the final video to outPath. A caption that cannot be drawn is
// dropped with a warning; every other failure is fatal and leaves nothing at
// outPath.
func (c *Compositor) Run(ctx context.Context, audio *types.AudioTrack, title, outPath string) (*types.ComposedVideo, error) {
	if audio == nil {
		return nil, fmt.Errorf("%w: no narration track", types.ErrInput)
	}
	clip, err := c.backgrounds.Pick()
	if err != nil {
		return nil, err
	}
	bg, err := c.media.ProbeVideo(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("probe background: %w", err)
	}
	plan, err := PlanTimeline(bg.Duration, audio.Duration)
	if err != nil {
		return nil, err
	}
	log.Info().Str("stage", "video").Float64("background_sec", bg.Duration).Float64("audio_sec", audio.Duration).
		Int("loops", plan.Loops).Msg("timeline planned")

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create video dir: %v", types.ErrMediaIO, err)
	}
	partial := partialPath(outPath)
	defer os.Remove(partial)

	job := ffmpeg.RenderJob{
		Background:   clip,
		Audio:        audio.Path,
		Output:       partial,
		Loops:        plan.Loops,
		Duration:     plan.Duration,
		FPS:          c.cfg.Video.FPS,
		Preset:       c.cfg.Video.Preset,
		CRF:          c.cfg.Video.CRF,
		AudioBitrate: c.cfg.Video.AudioBitrate,
	}

	captioned := false
	caption, cleanup, err := c.caption(ctx, title, filepath.Dir(outPath))
	if err != nil {
		c.warnOverlay(err)
	} else if caption != nil {
		defer cleanup()
		job.Caption = caption
		if err := c.media.Render(ctx, job); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("render: %w", err)
			}
			c.warnOverlay(fmt.Errorf("%w: %v", types.ErrOverlay, err))
			job.Caption = nil
		} else {
			captioned = true
		}
	}

	if !captioned {
		if err := c.media.Render(ctx, job); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
	}

	if err := os.Rename(partial, outPath); err != nil {
		return nil, fmt.Errorf("%w: move video into place: %v", types.ErrMediaIO, err)
	}
	c.backgrounds.RecordUse(clip)
	log.Info().Str("stage", "video").Str("file", outPath).Bool("captioned", captioned).Msg("final video exported")

	return &types.ComposedVideo{
		Path:       outPath,
		Background: clip,
		Duration:   plan.Duration,
		Loops:      plan.Loops,
		Captioned:  captioned,
	}, nil
}

// caption prepares the title card. A nil caption with a nil error means there
// is nothing to draw.
func (c *Compositor) caption(ctx context.Context, title, dir string) (*ffmpeg.Caption, func(), error) {
	text := WrapTitle(title, c.cfg.Video.TitleCharsPerLine)
	if text == "" || c.cfg.Video.TitleDurationSec <= 0 {
		return nil, func() {}, nil
	}
	if !c.media.HasFilter(ctx, "drawtext") {
		return nil, nil, fmt.Errorf("%w: ffmpeg build has no drawtext filter", types.ErrOverlay)
	}
	if font := c.cfg.Video.FontFile; font != "" {
		if _, err := os.Stat(font); err != nil {
			return nil, nil, fmt.Errorf("%w: font %s: %v", types.ErrOverlay, font, err)
		}
	}

	f, err := os.CreateTemp(dir, ".title-*.txt")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: write title file: %v", types.ErrOverlay, err)
	}
	_, werr := f.WriteString(text)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return nil, nil, fmt.Errorf("%w: write title file: %v", types.ErrOverlay, err)
	}

	return &ffmpeg.Caption{
		TextFile: f.Name(),
		FontFile: c.cfg.Video.FontFile,
		FontSize: c.cfg.Video.FontSize,
		Color:    c.cfg.Video.FontColor,
		Duration: c.cfg.Video.TitleDurationSec,
	}, func() { os.Remove(f.Name()) }, nil
}

func (c *Compositor) warnOverlay(err error) {
	log.Warn().Str("stage", "video").Err(err).Msg("title overlay failed, exporting without caption")
	if c.warn != nil {
		c.warn(err)
	}
}

func partialPath(final string) string {
	dir, base := filepath.Split(final)
	return filepath.Join(dir, ".partial-"+uuid.NewString()[:8]+"-"+base)
}
