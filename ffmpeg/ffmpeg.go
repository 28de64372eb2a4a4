// Package ffmpeg drives the ffmpeg and ffprobe binaries for every media
// operation the pipeline needs: probing, ordered audio concatenation and the
// final loop/trim/mux/caption render.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"story-video-pipeline/types"
)

// Executor runs ffmpeg/ffprobe. Zero value uses the binaries on PATH.
type Executor struct {
	FFmpeg  string
	FFprobe string
}

// New creates an Executor for the binaries on PATH
func New() *Executor {
	return &Executor{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

func (e *Executor) ffmpeg() string {
	if e.FFmpeg == "" {
		return "ffmpeg"
	}
	return e.FFmpeg
}

func (e *Executor) ffprobe() string {
	if e.FFprobe == "" {
		return "ffprobe"
	}
	return e.FFprobe
}

// CheckBinaries verifies ffmpeg and ffprobe can be found
func (e *Executor) CheckBinaries() error {
	for _, bin := range []string{e.ffmpeg(), e.ffprobe()} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s not found in PATH", types.ErrMediaIO, bin)
		}
	}
	return nil
}

// ProbeDuration uses ffprobe to get a media file's duration in seconds
func (e *Executor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, e.ffprobe(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe %s: %v", types.ErrMediaIO, path, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration of %s: %v", types.ErrMediaIO, path, err)
	}
	return dur, nil
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo reads duration and frame size of the first video stream
func (e *Executor) ProbeVideo(ctx context.Context, path string) (types.VideoAsset, error) {
	out, err := exec.CommandContext(ctx, e.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return types.VideoAsset{}, fmt.Errorf("%w: ffprobe %s: %v", types.ErrMediaIO, path, err)
	}
	return parseProbe(path, out)
}

func parseProbe(path string, out []byte) (types.VideoAsset, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return types.VideoAsset{}, fmt.Errorf("%w: decode ffprobe output for %s: %v", types.ErrMediaIO, path, err)
	}
	if len(probe.Streams) == 0 {
		return types.VideoAsset{}, fmt.Errorf("%w: %s has no video stream", types.ErrMediaIO, path)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return types.VideoAsset{}, fmt.Errorf("%w: parse duration of %s: %v", types.ErrMediaIO, path, err)
	}
	return types.VideoAsset{
		Path:     path,
		Duration: dur,
		Width:    probe.Streams[0].Width,
		Height:   probe.Streams[0].Height,
	}, nil
}

// ConcatAudio joins the segments in the given order into output with a
// straight stream copy (no gaps, no crossfades)
func (e *Executor) ConcatAudio(ctx context.Context, segments []string, output string) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no audio segments to concatenate", types.ErrMediaIO)
	}

	listFile := output + ".concat.txt"
	list, err := ConcatList(segments)
	if err != nil {
		return err
	}
	if err := os.WriteFile(listFile, []byte(list), 0644); err != nil {
		return fmt.Errorf("%w: write concat list: %v", types.ErrMediaIO, err)
	}
	defer os.Remove(listFile)

	return e.run(ctx, "concat audio", []string{"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	})
}

// ConcatList renders the concat demuxer input for the segments, one absolute
// path per line with single quotes escaped
func ConcatList(segments []string) (string, error) {
	var b strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			return "", fmt.Errorf("%w: resolve %s: %v", types.ErrMediaIO, seg, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return b.String(), nil
}

// HasFilter reports whether the ffmpeg build ships the named filter
func (e *Executor) HasFilter(ctx context.Context, name string) bool {
	out, err := exec.CommandContext(ctx, e.ffmpeg(), "-hide_banner", "-filters").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

func (e *Executor) run(ctx context.Context, what string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffmpeg(), args...)
	cmd.Stderr = &stderr

	log.Debug().Str("stage", "ffmpeg").Strs("args", args).Msg(what)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg %s: %v: %s", types.ErrMediaIO, what, err, tail(stderr.String(), 600))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
