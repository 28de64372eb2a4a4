package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Caption is a centered text card shown from t=0 for Duration seconds
type Caption struct {
	TextFile string
	FontFile string
	FontSize int
	Color    string
	Duration float64
}

// RenderJob describes one final export: Background looped Loops times,
// trimmed to Duration, with Audio as the only audio track.
type RenderJob struct {
	Background   string
	Audio        string
	Output       string
	Loops        int
	Duration     float64
	FPS          int
	Preset       string
	CRF          int
	AudioBitrate string
	Caption      *Caption
}

// Render runs the export
func (e *Executor) Render(ctx context.Context, job RenderJob) error {
	args, err := RenderArgs(job)
	if err != nil {
		return err
	}
	return e.run(ctx, "render", args)
}

// RenderArgs builds the ffmpeg argument list for a RenderJob
func RenderArgs(job RenderJob) ([]string, error) {
	if job.Loops < 1 {
		return nil, fmt.Errorf("render: loops must be at least 1, got %d", job.Loops)
	}
	if job.Duration < 0 {
		return nil, fmt.Errorf("render: negative duration %.3f", job.Duration)
	}

	args := []string{"-y"}
	if job.Loops > 1 {
		// -stream_loop counts extra plays on top of the first
		args = append(args, "-stream_loop", strconv.Itoa(job.Loops-1))
	}
	args = append(args,
		"-i", job.Background,
		"-i", job.Audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
	)
	if job.Caption != nil {
		args = append(args, "-vf", DrawText(*job.Caption))
	}

	preset := job.Preset
	if preset == "" {
		preset = "fast"
	}
	bitrate := job.AudioBitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	fps := job.FPS
	if fps <= 0 {
		fps = 30
	}

	args = append(args,
		"-t", fmt.Sprintf("%.3f", job.Duration),
		"-r", strconv.Itoa(fps),
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(job.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", bitrate,
		"-movflags", "+faststart",
		job.Output,
	)
	return args, nil
}

// DrawText builds the drawtext filter for a caption. The text comes from a
// file so titles never need filter-graph escaping.
func DrawText(c Caption) string {
	parts := []string{
		"textfile=" + escapeFilterValue(c.TextFile),
	}
	if c.FontFile != "" {
		parts = append(parts, "fontfile="+escapeFilterValue(c.FontFile))
	}
	size := c.FontSize
	if size <= 0 {
		size = 50
	}
	color := c.Color
	if color == "" {
		color = "white"
	}
	parts = append(parts,
		"fontsize="+strconv.Itoa(size),
		"fontcolor="+color,
		"line_spacing=10",
		"x=(w-text_w)/2",
		"y=(h-text_h)/2",
		fmt.Sprintf("enable='between(t,0,%.3f)'", c.Duration),
	)
	return "drawtext=" + strings.Join(parts, ":")
}

// escapeFilterValue escapes a path for use as a filter option value
func escapeFilterValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.ReplaceAll(s, ":", "\\:")
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
