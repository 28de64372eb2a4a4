package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

// Synthesizer turns one chunk of text into encoded audio (mp3)
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice types.VoiceConfig) ([]byte, error)
}

// Media is the slice of the media I/O capability the assembler needs
type Media interface {
	ConcatAudio(ctx context.Context, segments []string, output string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Assembler synthesizes every chunk and splices the segments into one track
type Assembler struct {
	synth       Synthesizer
	media       Media
	voice       types.VoiceConfig
	maxChars    int
	concurrency int
	scratchDir  string
}

// New creates a new Assembler
func New(cfg *config.Config, synth Synthesizer, media Media) *Assembler {
	return &Assembler{
		synth:       synth,
		media:       media,
		voice:       cfg.VoiceConfig(),
		maxChars:    cfg.Text.MaxChars,
		concurrency: cfg.Audio.Concurrency,
		scratchDir:  cfg.Paths.AudioOutput,
	}
}

// Run synthesizes the chunks and writes the merged narration to outPath.
// Segments are merged in chunk order whatever order the calls finish in; no
// file is left at outPath when any step fails.
func (a *Assembler) Run(ctx context.Context, chunks []types.Chunk, outPath string) (*types.AudioTrack, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to synthesize", types.ErrInput)
	}
	for _, c := range chunks {
		if n := len([]rune(c.Text)); a.maxChars > 0 && n > a.maxChars {
			log.Warn().Str("stage", "audio").Int("chunk", c.Index).Int("chars", n).Int("max_chars", a.maxChars).
				Msg("chunk is a single sentence longer than max_chars; the TTS engine may reject it")
		}
	}

	segments, err := NewSegmentSet(a.scratchDir, len(chunks))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMediaIO, err)
	}
	defer segments.Close()

	if err := a.synthesizeAll(ctx, chunks, segments); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create audio dir: %v", types.ErrMediaIO, err)
	}
	partial := partialPath(outPath)
	if err := a.media.ConcatAudio(ctx, segments.Paths(), partial); err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("concatenate audio: %w", err)
	}
	if err := segments.Close(); err != nil {
		log.Warn().Str("stage", "audio").Err(err).Msg("could not remove segment dir")
	}

	dur, err := a.media.ProbeDuration(ctx, partial)
	if err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("measure audio: %w", err)
	}
	if err := os.Rename(partial, outPath); err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("%w: move audio into place: %v", types.ErrMediaIO, err)
	}

	log.Info().Str("stage", "audio").Str("file", outPath).Float64("duration_sec", dur).Int("chunks", len(chunks)).
		Msg("final audio ready")
	return &types.AudioTrack{Path: outPath, Duration: dur}, nil
}

// synthesizeAll fans the chunks out over a bounded pool. The first failure
// cancels the calls still in flight.
func (a *Assembler) synthesizeAll(parent context.Context, chunks []types.Chunk, segments *SegmentSet) error {
	workers := a.concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("%w: create synthesis pool: %v", types.ErrSynthesis, err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		i, chunk := i, chunk
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			log.Info().Str("stage", "audio").Msgf("chunk %d/%d: synthesizing %d chars", chunk.Index, len(chunks), len([]rune(chunk.Text)))
			data, err := a.synth.Synthesize(ctx, chunk.Text, a.voice)
			if err != nil {
				fail(fmt.Errorf("%w: chunk %d: %v", types.ErrSynthesis, chunk.Index, err))
				return
			}
			if err := segments.Write(i, data); err != nil {
				fail(fmt.Errorf("%w: chunk %d: %v", types.ErrSynthesis, chunk.Index, err))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("%w: submit chunk %d: %v", types.ErrSynthesis, chunk.Index, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := parent.Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSynthesis, err)
	}
	return nil
}

// partialPath returns a sibling temp name with the same extension so ffmpeg
// still picks the right muxer
func partialPath(final string) string {
	dir, base := filepath.Split(final)
	return filepath.Join(dir, ".partial-"+uuid.NewString()[:8]+"-"+base)
}
