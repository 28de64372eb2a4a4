package video

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"story-video-pipeline/types"
)

// Picker chooses one clip out of a non-empty candidate list
type Picker func(candidates []string) string

// RandomPicker picks uniformly at random
func RandomPicker(candidates []string) string {
	return candidates[rand.Intn(len(candidates))]
}

// Backgrounds is the pool of looping background clips. Every clip in the
// pool is equally likely on each pick.
type Backgrounds struct {
	dir      string
	exts     []string
	pick     Picker
	usageLog string
}

// NewBackgrounds creates a pool over dir. usageLog may be empty to disable
// the per-clip usage counts.
func NewBackgrounds(dir string, exts []string, usageLog string, pick Picker) *Backgrounds {
	if pick == nil {
		pick = RandomPicker
	}
	norm := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		norm = append(norm, e)
	}
	return &Backgrounds{dir: dir, exts: norm, pick: pick, usageLog: usageLog}
}

// List returns every eligible clip in the pool, sorted by name
func (b *Backgrounds) List() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read background dir %s: %v", types.ErrMediaIO, b.dir, err)
	}
	var clips []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if b.matches(e.Name()) {
			clips = append(clips, filepath.Join(b.dir, e.Name()))
		}
	}
	sort.Strings(clips)
	return clips, nil
}

func (b *Backgrounds) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range b.exts {
		if ext == want {
			return true
		}
	}
	return false
}

// Pick selects a background clip. An empty pool is a media error.
func (b *Backgrounds) Pick() (string, error) {
	clips, err := b.List()
	if err != nil {
		return "", err
	}
	if len(clips) == 0 {
		return "", fmt.Errorf("%w: no %s files found in %s", types.ErrMediaIO, strings.Join(b.exts, "/"), b.dir)
	}

	clip := b.pick(clips)
	log.Info().Str("stage", "video").Str("clip", clip).Int("pool", len(clips)).Msg("picked background")
	return clip, nil
}

type usageRecord struct {
	Last  string         `json:"last"`
	Count map[string]int `json:"count"`
}

func (b *Backgrounds) loadUsage() usageRecord {
	rec := usageRecord{Count: map[string]int{}}
	if b.usageLog == "" {
		return rec
	}
	data, err := os.ReadFile(b.usageLog)
	if err != nil {
		return rec
	}
	_ = json.Unmarshal(data, &rec)
	if rec.Count == nil {
		rec.Count = map[string]int{}
	}
	return rec
}

// RecordUse notes a clip that ended up in a finished video
func (b *Backgrounds) RecordUse(clip string) {
	name := filepath.Base(clip)
	if b.usageLog == "" {
		return
	}
	rec := b.loadUsage()
	rec.Last = name
	rec.Count[name]++
	data, _ := json.MarshalIndent(rec, "", "  ")
	if err := os.MkdirAll(filepath.Dir(b.usageLog), 0755); err == nil {
		err = os.WriteFile(b.usageLog, data, 0644)
		if err != nil {
			log.Warn().Str("stage", "video").Err(err).Msg("could not save background usage log")
		}
	}
}
