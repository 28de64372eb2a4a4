package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

// postLister is the slice of the Reddit subreddit service we use
type postLister interface {
	TopPosts(ctx context.Context, subreddit string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error)
}

// Reddit pulls text posts from subreddits. Processed posts are remembered in
// a JSON list of full ids.
type Reddit struct {
	cfg     config.RedditConfig
	posts   postLister
	mu      sync.Mutex
	used    map[string]bool
	logPath string
}

// NewReddit creates a read-only Reddit source
func NewReddit(cfg config.RedditConfig) (*Reddit, error) {
	client, err := reddit.NewReadonlyClient(reddit.WithUserAgent(cfg.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("create reddit client: %w", err)
	}
	return newReddit(cfg, client.Subreddit), nil
}

func newReddit(cfg config.RedditConfig, posts postLister) *Reddit {
	return &Reddit{
		cfg:     cfg,
		posts:   posts,
		used:    loadUsedStories(cfg.UsedStoriesLog),
		logPath: cfg.UsedStoriesLog,
	}
}

// ListUnprocessed fetches the top posts of every configured subreddit,
// drops unusable or already narrated ones, and sorts by score
func (r *Reddit) ListUnprocessed(ctx context.Context) ([]types.Story, error) {
	type candidate struct {
		story types.Story
		score int
	}
	var (
		candidates []candidate
		seen       = map[string]bool{}
		lastErr    error
		okSubs     int
	)

	for _, sub := range r.cfg.Subreddits {
		posts, _, err := r.posts.TopPosts(ctx, sub, &reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: r.cfg.Limit},
			Time:        r.cfg.TimeFilter,
		})
		if err != nil {
			log.Warn().Str("stage", "source").Str("subreddit", sub).Err(err).Msg("reddit fetch failed")
			lastErr = err
			continue
		}
		okSubs++

		kept := 0
		for _, p := range posts {
			if !r.usable(p) || seen[p.FullID] || r.isUsed(p.FullID) {
				continue
			}
			seen[p.FullID] = true
			kept++
			candidates = append(candidates, candidate{
				story: types.Story{
					Title:     strings.TrimSpace(p.Title),
					Body:      p.Body,
					Link:      "https://www.reddit.com" + p.Permalink,
					SourceRef: p.FullID,
				},
				score: p.Score,
			})
		}
		log.Info().Str("stage", "source").Str("subreddit", sub).Int("posts", len(posts)).Int("kept", kept).Msg("reddit listing")
	}

	if okSubs == 0 && lastErr != nil {
		return nil, fmt.Errorf("reddit: every subreddit failed: %w", lastErr)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	stories := make([]types.Story, len(candidates))
	for i, c := range candidates {
		stories[i] = c.story
	}
	return stories, nil
}

func (r *Reddit) usable(p *reddit.Post) bool {
	if p == nil || p.Stickied || !p.IsSelfPost {
		return false
	}
	if p.NSFW && !r.cfg.AllowNSFW {
		return false
	}
	if p.Score < r.cfg.MinScore {
		return false
	}
	body := strings.TrimSpace(p.Body)
	if body == "" || body == "[removed]" || body == "[deleted]" {
		return false
	}
	return len([]rune(body)) >= r.cfg.MinBodyChars
}

// Get resolves a 1-based position in the current listing or a post full id
func (r *Reddit) Get(ctx context.Context, selector string) (types.Story, error) {
	stories, err := r.ListUnprocessed(ctx)
	if err != nil {
		return types.Story{}, err
	}
	return pick(stories, selector)
}

// MarkProcessed records the post id in the used-stories log
func (r *Reddit) MarkProcessed(ctx context.Context, ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: empty reddit ref", types.ErrInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.used[ref] {
		return nil
	}
	r.used[ref] = true

	ids := make([]string, 0, len(r.used))
	for id := range r.used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.MarshalIndent(usedLog{IDs: ids, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode used stories: %w", err)
	}
	if err := writeFileAtomic(r.logPath, data, 0644); err != nil {
		delete(r.used, ref)
		return fmt.Errorf("save used stories: %w", err)
	}
	log.Info().Str("stage", "source").Str("post", ref).Msg("story marked as processed")
	return nil
}

func (r *Reddit) isUsed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used[id]
}

type usedLog struct {
	IDs       []string `json:"ids"`
	UpdatedAt string   `json:"updated_at"`
}

// loadUsedStories reads the log; a missing or unreadable file means nothing is used yet
func loadUsedStories(path string) map[string]bool {
	used := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return used
	}
	var entry usedLog
	if err := json.Unmarshal(data, &entry); err != nil {
		// older logs were a bare id list
		var ids []string
		if json.Unmarshal(data, &ids) != nil {
			log.Warn().Str("stage", "source").Str("file", path).Msg("used stories log unreadable, starting fresh")
			return used
		}
		entry.IDs = ids
	}
	for _, id := range entry.IDs {
		used[id] = true
	}
	return used
}
