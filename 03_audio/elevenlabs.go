package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// ElevenLabs synthesizes through the ElevenLabs text-to-speech HTTP API.
// VoiceConfig.Voice is the ElevenLabs voice ID.
type ElevenLabs struct {
	apiURL          string
	apiKey          string
	modelID         string
	stability       float64
	similarityBoost float64
	client          *http.Client
}

// NewElevenLabs builds the HTTP backend. The API key is read from the
// environment variable named in the config.
func NewElevenLabs(cfg config.ElevenLabsConfig) (*ElevenLabs, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s is not set", cfg.APIKeyEnv)
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ElevenLabs{
		apiURL:          strings.TrimRight(cfg.APIURL, "/"),
		apiKey:          key,
		modelID:         cfg.ModelID,
		stability:       cfg.Stability,
		similarityBoost: cfg.SimilarityBoost,
		client:          &http.Client{Timeout: timeout},
	}, nil
}

// Synthesize posts one chunk and returns the mp3 body
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, voice types.VoiceConfig) ([]byte, error) {
	if voice.Voice == "" {
		return nil, fmt.Errorf("elevenlabs: voice id is empty")
	}
	speed := 0.0
	if voice.Rate != "" {
		r, err := ParseRate(voice.Rate)
		if err != nil {
			return nil, err
		}
		speed = ElevenLabsSpeed(r)
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.similarityBoost,
			Speed:           speed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal elevenlabs request: %w", err)
	}

	url := e.apiURL + "/" + voice.Voice
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create elevenlabs request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read elevenlabs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Str("stage", "audio").Int("status", resp.StatusCode).Str("url", url).Msg("elevenlabs rejected request")
		return nil, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, tail(string(body), 300))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}
	return body, nil
}

// ParseRate turns a relative rate such as "+35%" or "-10%" into a fraction (0.35, -0.10)
func ParseRate(rate string) (float64, error) {
	s := strings.TrimSpace(rate)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("rate %q: want a signed percentage like +35%%", rate)
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("rate %q: %w", rate, err)
	}
	return pct / 100, nil
}

// ElevenLabsSpeed maps a relative rate onto the API's speed multiplier,
// which only accepts 0.7 to 1.2
func ElevenLabsSpeed(rate float64) float64 {
	speed := 1 + rate
	if speed < 0.7 {
		return 0.7
	}
	if speed > 1.2 {
		return 1.2
	}
	return speed
}

// NewSynthesizer picks the backend named by audio.engine
func NewSynthesizer(cfg config.AudioConfig) (Synthesizer, error) {
	switch cfg.Engine {
	case "", "edge-tts":
		return NewEdgeTTS(cfg), nil
	case "elevenlabs":
		return NewElevenLabs(cfg.ElevenLabs)
	default:
		return nil, fmt.Errorf("unknown tts engine %q", cfg.Engine)
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
