package publish

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 4900
	excerptRunes        = 280
)

// YouTube uploads the video through the Data API v3
type YouTube struct {
	cfg config.YouTubeConfig
	svc *youtube.Service
}

// NewYouTube authenticates with the refresh token from the environment
func NewYouTube(ctx context.Context, cfg config.YouTubeConfig) (*YouTube, error) {
	ts, err := tokenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("youtube auth: %w", err)
	}
	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &YouTube{cfg: cfg, svc: svc}, nil
}

// Name implements Publisher
func (y *YouTube) Name() string { return "youtube" }

// Publish uploads the rendered video and records its watch URL
func (y *YouTube) Publish(ctx context.Context, state *types.PipelineState) error {
	if err := requireArtifacts(state); err != nil {
		return err
	}
	video := VideoResource(y.cfg, state.Story)

	f, err := os.Open(state.Video.Path)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		log.Info().Str("stage", "publish").Str("title", video.Snippet.Title).
			Float64("size_mb", float64(fi.Size())/1024/1024).Msg("uploading to youtube")
	}

	uploaded, err := y.svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("youtube upload: %w", err)
	}

	url := "https://www.youtube.com/watch?v=" + uploaded.Id
	state.Published = append(state.Published, url)
	log.Info().Str("stage", "publish").Str("video_id", uploaded.Id).Str("url", url).Msg("uploaded to youtube")
	return nil
}

// VideoResource builds the upload metadata for a story
func VideoResource(cfg config.YouTubeConfig, story *types.Story) *youtube.Video {
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                VideoTitle(story.Title),
			Description:          VideoDescription(story),
			Tags:                 cfg.Tags,
			CategoryId:           cfg.CategoryID,
			DefaultLanguage:      cfg.DefaultLanguage,
			DefaultAudioLanguage: cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           cfg.Visibility,
			SelfDeclaredMadeForKids: cfg.MadeForKids,
			NotifySubscribers:       cfg.NotifySubscribers,
			// the API drops false booleans unless forced
			ForceSendFields: []string{"SelfDeclaredMadeForKids", "NotifySubscribers"},
		},
	}
}

// VideoTitle fits a story title into YouTube's limits. Angle brackets are
// rejected by the API.
func VideoTitle(title string) string {
	title = strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(title))
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return "Untitled story"
	}
	return truncateRunes(title, maxTitleRunes)
}

// VideoDescription is a short body excerpt followed by the story link
func VideoDescription(story *types.Story) string {
	excerpt := strings.Join(strings.Fields(story.Body), " ")
	if r := []rune(excerpt); len(r) > excerptRunes {
		excerpt = strings.TrimSpace(string(r[:excerptRunes])) + "..."
	}
	parts := []string{}
	if excerpt != "" {
		parts = append(parts, excerpt)
	}
	if story.Link != "" {
		parts = append(parts, "Source: "+story.Link)
	}
	desc := strings.NewReplacer("<", "", ">", "").Replace(strings.Join(parts, "\n\n"))
	return truncateRunes(desc, maxDescriptionRunes)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// tokenSource builds an auto-refreshing token source from env credentials
func tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.TokenSource(ctx, token), nil
}
