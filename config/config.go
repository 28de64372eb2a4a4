package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"story-video-pipeline/types"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Source   SourceConfig   `yaml:"source" toml:"source"`
	Text     TextConfig     `yaml:"text" toml:"text"`
	Audio    AudioConfig    `yaml:"audio" toml:"audio"`
	Video    VideoConfig    `yaml:"video" toml:"video"`
	Publish  PublishConfig  `yaml:"publish" toml:"publish"`
	Schedule ScheduleConfig `yaml:"schedule" toml:"schedule"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Paths    PathsConfig    `yaml:"paths" toml:"paths"`
}

type SourceConfig struct {
	Kind    string       `yaml:"kind" toml:"kind"` // csv | reddit | manual
	CSVPath string       `yaml:"csv_path" toml:"csv_path"`
	Reddit  RedditConfig `yaml:"reddit" toml:"reddit"`
}

type RedditConfig struct {
	Subreddits     []string `yaml:"subreddits" toml:"subreddits"`
	TimeFilter     string   `yaml:"time_filter" toml:"time_filter"`
	Limit          int      `yaml:"limit" toml:"limit"`
	MinScore       int      `yaml:"min_score" toml:"min_score"`
	MinBodyChars   int      `yaml:"min_body_chars" toml:"min_body_chars"`
	AllowNSFW      bool     `yaml:"allow_nsfw" toml:"allow_nsfw"`
	UserAgent      string   `yaml:"user_agent" toml:"user_agent"`
	UsedStoriesLog string   `yaml:"used_stories_log" toml:"used_stories_log"`
}

type TextConfig struct {
	MaxChars int `yaml:"max_chars" toml:"max_chars"`
}

type AudioConfig struct {
	Engine      string           `yaml:"engine" toml:"engine"` // edge-tts | elevenlabs
	Voice       string           `yaml:"voice" toml:"voice"`
	Rate        string           `yaml:"rate" toml:"rate"`
	Concurrency int              `yaml:"concurrency" toml:"concurrency"`
	TTSAttempts int              `yaml:"tts_attempts" toml:"tts_attempts"`
	TTSCommand  string           `yaml:"tts_command" toml:"tts_command"`
	ElevenLabs  ElevenLabsConfig `yaml:"elevenlabs" toml:"elevenlabs"`
}

type ElevenLabsConfig struct {
	APIURL          string  `yaml:"api_url" toml:"api_url"`
	APIKeyEnv       string  `yaml:"api_key_env" toml:"api_key_env"`
	ModelID         string  `yaml:"model_id" toml:"model_id"`
	Stability       float64 `yaml:"stability" toml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost" toml:"similarity_boost"`
	TimeoutSec      int     `yaml:"timeout_sec" toml:"timeout_sec"`
}

type VideoConfig struct {
	FPS               int      `yaml:"fps" toml:"fps"`
	Extensions        []string `yaml:"extensions" toml:"extensions"`
	TitleCharsPerLine int      `yaml:"title_chars_per_line" toml:"title_chars_per_line"`
	TitleDurationSec  float64  `yaml:"title_duration_sec" toml:"title_duration_sec"`
	FontFile          string   `yaml:"font_file" toml:"font_file"`
	FontSize          int      `yaml:"font_size" toml:"font_size"`
	FontColor         string   `yaml:"font_color" toml:"font_color"`
	Preset            string   `yaml:"preset" toml:"preset"`
	CRF               int      `yaml:"crf" toml:"crf"`
	AudioBitrate      string   `yaml:"audio_bitrate" toml:"audio_bitrate"`
}

type PublishConfig struct {
	YouTube YouTubeConfig `yaml:"youtube" toml:"youtube"`
	S3      S3Config      `yaml:"s3" toml:"s3"`
	NATS    NATSConfig    `yaml:"nats" toml:"nats"`
}

type YouTubeConfig struct {
	Enabled           bool     `yaml:"enabled" toml:"enabled"`
	Visibility        string   `yaml:"visibility" toml:"visibility"`
	CategoryID        string   `yaml:"category_id" toml:"category_id"`
	Tags              []string `yaml:"tags" toml:"tags"`
	NotifySubscribers bool     `yaml:"notify_subscribers" toml:"notify_subscribers"`
	MadeForKids       bool     `yaml:"made_for_kids" toml:"made_for_kids"`
	DefaultLanguage   string   `yaml:"default_language" toml:"default_language"`
}

type S3Config struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Bucket  string `yaml:"bucket" toml:"bucket"`
	Region  string `yaml:"region" toml:"region"`
	Prefix  string `yaml:"prefix" toml:"prefix"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
}

// ScheduleConfig holds cron expressions for unattended runs. Empty means run once.
type ScheduleConfig struct {
	Cron string `yaml:"cron" toml:"cron"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

type PathsConfig struct {
	Backgrounds string `yaml:"backgrounds" toml:"backgrounds"`
	AudioOutput string `yaml:"audio_output" toml:"audio_output"`
	VideoOutput string `yaml:"video_output" toml:"video_output"`
	Logs        string `yaml:"logs" toml:"logs"`
}

// Load reads a YAML or TOML config (chosen by extension), applies defaults and validates it
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode YAML config: %w", err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default filled in
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values with the renderer defaults
func (c *Config) ApplyDefaults() {
	setString(&c.Source.Kind, "csv")
	setString(&c.Source.CSVPath, "stories.csv")
	setString(&c.Source.Reddit.TimeFilter, "week")
	setInt(&c.Source.Reddit.Limit, 25)
	setInt(&c.Source.Reddit.MinBodyChars, 200)
	setString(&c.Source.Reddit.UserAgent, "story-video-pipeline/1.0")
	setString(&c.Source.Reddit.UsedStoriesLog, "logs/used_stories.json")

	setInt(&c.Text.MaxChars, 4000)

	setString(&c.Audio.Engine, "edge-tts")
	// ElevenLabs voice ids are account specific, so only edge-tts gets a default voice
	if c.Audio.Engine == "edge-tts" {
		setString(&c.Audio.Voice, "en-US-ChristopherNeural")
	}
	setString(&c.Audio.Rate, "+35%")
	setInt(&c.Audio.Concurrency, 1)
	setInt(&c.Audio.TTSAttempts, 3)
	setString(&c.Audio.TTSCommand, "edge-tts")
	setString(&c.Audio.ElevenLabs.APIURL, "https://api.elevenlabs.io/v1/text-to-speech")
	setString(&c.Audio.ElevenLabs.APIKeyEnv, "ELEVEN_LABS_API_KEY")
	setString(&c.Audio.ElevenLabs.ModelID, "eleven_multilingual_v2")
	setInt(&c.Audio.ElevenLabs.TimeoutSec, 120)

	setInt(&c.Video.FPS, 30)
	if len(c.Video.Extensions) == 0 {
		c.Video.Extensions = []string{".mp4"}
	}
	setInt(&c.Video.TitleCharsPerLine, 40)
	if c.Video.TitleDurationSec == 0 {
		c.Video.TitleDurationSec = 5
	}
	setInt(&c.Video.FontSize, 50)
	setString(&c.Video.FontColor, "white")
	setString(&c.Video.Preset, "fast")
	setInt(&c.Video.CRF, 22)
	setString(&c.Video.AudioBitrate, "192k")

	setString(&c.Publish.YouTube.Visibility, "private")
	setString(&c.Publish.YouTube.CategoryID, "24")
	setString(&c.Publish.YouTube.DefaultLanguage, "en")
	setString(&c.Publish.S3.Prefix, "stories")
	setString(&c.Publish.NATS.URL, "nats://127.0.0.1:4222")
	setString(&c.Publish.NATS.Subject, "stories.video.rendered")

	setString(&c.Log.Level, "info")

	setString(&c.Paths.Backgrounds, "vbin")
	setString(&c.Paths.AudioOutput, "audio output")
	setString(&c.Paths.VideoOutput, "video output")
	setString(&c.Paths.Logs, "logs")
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "csv", "reddit", "manual":
	default:
		return fmt.Errorf("source.kind %q: want csv, reddit or manual", c.Source.Kind)
	}
	if c.Source.Kind == "reddit" && len(c.Source.Reddit.Subreddits) == 0 {
		return fmt.Errorf("source.reddit.subreddits must not be empty")
	}
	if c.Text.MaxChars <= 0 {
		return fmt.Errorf("text.max_chars must be positive, got %d", c.Text.MaxChars)
	}
	switch c.Audio.Engine {
	case "edge-tts", "elevenlabs":
	default:
		return fmt.Errorf("audio.engine %q: want edge-tts or elevenlabs", c.Audio.Engine)
	}
	if c.Audio.Engine == "elevenlabs" && c.Audio.Voice == "" {
		return fmt.Errorf("audio.voice must be an ElevenLabs voice id when audio.engine is elevenlabs")
	}
	if c.Audio.Concurrency <= 0 {
		return fmt.Errorf("audio.concurrency must be positive, got %d", c.Audio.Concurrency)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("video.fps must be positive, got %d", c.Video.FPS)
	}
	if c.Video.TitleCharsPerLine <= 0 {
		return fmt.Errorf("video.title_chars_per_line must be positive, got %d", c.Video.TitleCharsPerLine)
	}
	if c.Video.TitleDurationSec < 0 {
		return fmt.Errorf("video.title_duration_sec must not be negative")
	}
	if c.Publish.S3.Enabled && (c.Publish.S3.Bucket == "" || c.Publish.S3.Region == "") {
		return fmt.Errorf("publish.s3 needs bucket and region when enabled")
	}
	return nil
}

// VoiceConfig returns the configured synthesis voice
func (c *Config) VoiceConfig() types.VoiceConfig {
	return types.VoiceConfig{Voice: c.Audio.Voice, Rate: c.Audio.Rate}
}

// EnsureDirs creates every output directory the pipeline writes to
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.AudioOutput, c.Paths.VideoOutput, c.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
