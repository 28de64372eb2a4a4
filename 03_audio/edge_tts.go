package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

// EdgeTTS shells out to the edge-tts CLI (pip install edge-tts)
type EdgeTTS struct {
	Command  string
	Attempts int
	Backoff  time.Duration
}

// NewEdgeTTS builds the CLI backend from the audio config
func NewEdgeTTS(cfg config.AudioConfig) *EdgeTTS {
	return &EdgeTTS{Command: cfg.TTSCommand, Attempts: cfg.TTSAttempts, Backoff: 2 * time.Second}
}

// Synthesize runs the CLI, retrying with a linearly growing pause
func (e *EdgeTTS) Synthesize(ctx context.Context, text string, voice types.VoiceConfig) ([]byte, error) {
	out, err := os.CreateTemp("", "edge-tts-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("create tts output: %w", err)
	}
	outFile := out.Name()
	out.Close()
	defer os.Remove(outFile)

	attempts := e.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		// exec.Cmd is single-use, so the command is rebuilt per attempt
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, e.command(), EdgeTTSArgs(text, voice, outFile)...)
		cmd.Stderr = &stderr

		lastErr = cmd.Run()
		if lastErr == nil {
			data, err := os.ReadFile(outFile)
			if err != nil {
				return nil, fmt.Errorf("read tts output: %w", err)
			}
			if len(data) == 0 {
				lastErr = fmt.Errorf("edge-tts produced no audio")
			} else {
				return data, nil
			}
		} else if msg := strings.TrimSpace(stderr.String()); msg != "" {
			lastErr = fmt.Errorf("%w: %s", lastErr, msg)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == attempts {
			break
		}
		log.Warn().Str("stage", "audio").Err(lastErr).Int("attempt", attempt).Msg("TTS attempt failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * e.Backoff):
		}
	}
	return nil, fmt.Errorf("edge-tts failed after %d attempts: %w", attempts, lastErr)
}

func (e *EdgeTTS) command() string {
	if e.Command == "" {
		return "edge-tts"
	}
	return e.Command
}

// EdgeTTSArgs builds the CLI arguments. The rate goes in --rate=X form because
// a leading '-' would otherwise be read as a flag.
func EdgeTTSArgs(text string, voice types.VoiceConfig, outFile string) []string {
	args := []string{"--voice", voice.Voice}
	if voice.Rate != "" {
		args = append(args, "--rate="+voice.Rate)
	}
	// --text=... keeps a chunk starting with "-" from parsing as a flag
	return append(args, "--text="+text, "--write-media", outFile)
}
