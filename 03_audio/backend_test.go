package audio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

func TestParseRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"+35%", 0.35, false},
		{"-10%", -0.10, false},
		{"0%", 0, false},
		{" +5% ", 0.05, false},
		{"35", 0, true},
		{"fast%", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRate(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestElevenLabsSpeed(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.2, ElevenLabsSpeed(0.35), 1e-9)
	assert.InDelta(t, 0.9, ElevenLabsSpeed(-0.1), 1e-9)
	assert.InDelta(t, 0.7, ElevenLabsSpeed(-0.5), 1e-9)
}

func TestEdgeTTSArgs(t *testing.T) {
	t.Parallel()

	args := EdgeTTSArgs("hello", types.VoiceConfig{Voice: "en-US-ChristopherNeural", Rate: "-10%"}, "/tmp/o.mp3")
	assert.Equal(t, []string{
		"--voice", "en-US-ChristopherNeural",
		"--rate=-10%",
		"--text=hello",
		"--write-media", "/tmp/o.mp3",
	}, args)

	args = EdgeTTSArgs("-5 degrees", types.VoiceConfig{Voice: "v"}, "/tmp/o.mp3")
	assert.Equal(t, []string{"--voice", "v", "--text=-5 degrees", "--write-media", "/tmp/o.mp3"}, args)
}

func TestElevenLabs_Synthesize(t *testing.T) {
	var got elevenLabsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice123", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	t.Setenv("TEST_ELEVEN_KEY", "secret")
	el, err := NewElevenLabs(config.ElevenLabsConfig{
		APIURL:    srv.URL + "/v1/text-to-speech/",
		APIKeyEnv: "TEST_ELEVEN_KEY",
		ModelID:   "eleven_multilingual_v2",
		Stability: 0.5,
	})
	require.NoError(t, err)

	data, err := el.Synthesize(context.Background(), "Once upon a time.", types.VoiceConfig{Voice: "voice123", Rate: "+10%"})
	require.NoError(t, err)
	assert.Equal(t, "ID3audio", string(data))
	assert.Equal(t, "Once upon a time.", got.Text)
	assert.Equal(t, "eleven_multilingual_v2", got.ModelID)
	assert.InDelta(t, 1.1, got.VoiceSettings.Speed, 1e-9)
}

func TestElevenLabs_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Setenv("TEST_ELEVEN_KEY", "secret")
	el, err := NewElevenLabs(config.ElevenLabsConfig{APIURL: srv.URL, APIKeyEnv: "TEST_ELEVEN_KEY"})
	require.NoError(t, err)

	_, err = el.Synthesize(context.Background(), "text", types.VoiceConfig{Voice: "v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewSynthesizer(t *testing.T) {
	s, err := NewSynthesizer(config.AudioConfig{Engine: "edge-tts"})
	require.NoError(t, err)
	assert.IsType(t, &EdgeTTS{}, s)

	t.Setenv("UNSET_ELEVEN_KEY", "")
	_, err = NewSynthesizer(config.AudioConfig{Engine: "elevenlabs", ElevenLabs: config.ElevenLabsConfig{APIKeyEnv: "UNSET_ELEVEN_KEY"}})
	require.Error(t, err)

	_, err = NewSynthesizer(config.AudioConfig{Engine: "festival"})
	require.Error(t, err)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-tts")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestEdgeTTS_WritesMedia(t *testing.T) {
	script := writeScript(t, `while [ $# -gt 0 ]; do
  if [ "$1" = "--write-media" ]; then printf 'ID3fake' > "$2"; fi
  shift
done
`)
	e := &EdgeTTS{Command: script, Attempts: 1}
	data, err := e.Synthesize(context.Background(), "hi", types.VoiceConfig{Voice: "v", Rate: "+35%"})
	require.NoError(t, err)
	assert.Equal(t, "ID3fake", string(data))
}

func TestEdgeTTS_DashLeadingTextStaysText(t *testing.T) {
	script := writeScript(t, `text=""
while [ $# -gt 0 ]; do
  case "$1" in
    --text=*) text="${1#--text=}" ;;
    --write-media) printf '%s' "$text" > "$2"; shift ;;
  esac
  shift
done
`)
	e := &EdgeTTS{Command: script, Attempts: 1}
	data, err := e.Synthesize(context.Background(), "-42", types.VoiceConfig{Voice: "v"})
	require.NoError(t, err)
	assert.Equal(t, "-42", string(data))
}

func TestEdgeTTS_RetriesThenFails(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "calls")
	script := writeScript(t, `echo x >> "`+counter+`"
echo "boom" >&2
exit 1
`)
	e := &EdgeTTS{Command: script, Attempts: 3, Backoff: time.Millisecond}
	_, err := e.Synthesize(context.Background(), "hi", types.VoiceConfig{Voice: "v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "boom")

	calls, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, "x\nx\nx\n", string(calls))
}
