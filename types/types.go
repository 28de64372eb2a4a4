package types

import (
	"path/filepath"
	"time"
)

// Story is one narration candidate. SourceRef is only set when the story came
// from a backlog and is handed back to it on completion.
type Story struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Link      string `json:"link,omitempty"`
	SourceRef string `json:"source_ref,omitempty"`
}

// VoiceConfig selects the synthesis voice and its relative speech rate ("+35%").
type VoiceConfig struct {
	Voice string `json:"voice"`
	Rate  string `json:"rate"`
}

// Chunk is one synthesis unit. Index is 1-based.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// AudioTrack is the merged narration on disk
type AudioTrack struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration_sec"`
}

// VideoAsset is a probed background clip
type VideoAsset struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration_sec"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// ComposedVideo is the exported final artifact
type ComposedVideo struct {
	Path       string  `json:"path"`
	Background string  `json:"background"`
	Duration   float64 `json:"duration_sec"`
	Loops      int     `json:"loops"`
	Captioned  bool    `json:"captioned"`
}

// OutputIdentity is the filename stem shared by the audio and video artifacts of a run
type OutputIdentity struct {
	Stem      string    `json:"stem"`
	CreatedAt time.Time `json:"created_at"`
}

// AudioPath returns <dir>/<stem>.mp3
func (o OutputIdentity) AudioPath(dir string) string {
	return filepath.Join(dir, o.Stem+".mp3")
}

// VideoPath returns <dir>/<stem>.mp4
func (o OutputIdentity) VideoPath(dir string) string {
	return filepath.Join(dir, o.Stem+".mp4")
}

// StatePath returns <dir>/<stem>.json
func (o OutputIdentity) StatePath(dir string) string {
	return filepath.Join(dir, o.Stem+".json")
}

// PipelineState tracks the full state of one pipeline run
type PipelineState struct {
	RunID       string          `json:"run_id"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at"`
	Story       *Story          `json:"story"`
	Identity    *OutputIdentity `json:"identity,omitempty"`
	ChunkCount  int             `json:"chunk_count"`
	Audio       *AudioTrack     `json:"audio,omitempty"`
	Video       *ComposedVideo  `json:"video,omitempty"`
	Published   []string        `json:"published,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	Marked      bool            `json:"marked_processed"`
	Error       string          `json:"error,omitempty"`
}
