package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stories.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBacklog_DetectsColumnsAndFilters(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id,Post_Title,selftext,processed\n"+
		"a,First,\"Body one,\nwith a newline\",0\n"+
		"b,Second,Body two,1\n"+
		"c,Third,Body three,\n")
	b := NewBacklog(path)

	stories, err := b.ListUnprocessed(context.Background())
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, types.Story{Title: "First", Body: "Body one,\nwith a newline", SourceRef: "1"}, stories[0])
	assert.Equal(t, "Third", stories[1].Title)
	assert.Equal(t, "3", stories[1].SourceRef)

	got, err := b.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "Third", got.Title)

	_, err = b.Get(context.Background(), "3")
	require.ErrorIs(t, err, types.ErrInput)
}

func TestBacklog_MissingColumns(t *testing.T) {
	t.Parallel()

	b := NewBacklog(writeCSV(t, "name,summary\nx,y\n"))
	_, err := b.ListUnprocessed(context.Background())
	require.ErrorIs(t, err, types.ErrInput)

	_, err = NewBacklog(filepath.Join(t.TempDir(), "nope.csv")).ListUnprocessed(context.Background())
	require.ErrorIs(t, err, types.ErrInput)
}

func TestBacklog_MarkProcessedAddsColumn(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "title,body\nOne,first\nTwo,second\n")
	b := NewBacklog(path)
	ctx := context.Background()

	require.NoError(t, b.MarkProcessed(ctx, "2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "title,body,processed\nOne,first,0\nTwo,second,1\n", string(data))

	stories, err := b.ListUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "One", stories[0].Title)

	// second mark is a no-op and leaves the file byte-identical
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, b.MarkProcessed(ctx, "2"))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime())

	// no temp files left next to the backlog
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBacklog_MarkProcessedBadRef(t *testing.T) {
	t.Parallel()

	b := NewBacklog(writeCSV(t, "title,body\nOne,first\n"))
	require.ErrorIs(t, b.MarkProcessed(context.Background(), "9"), types.ErrInput)
	require.ErrorIs(t, b.MarkProcessed(context.Background(), "x"), types.ErrInput)
}

func TestNext(t *testing.T) {
	t.Parallel()

	b := NewBacklog(writeCSV(t, "title,story,processed\nA,a,1\nB,b,0\n"))
	s, err := Next(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "B", s.Title)

	require.NoError(t, b.MarkProcessed(context.Background(), s.SourceRef))
	_, err = Next(context.Background(), b)
	require.ErrorIs(t, err, ErrNoStories)
}

type fakeLister struct {
	posts map[string][]*reddit.Post
	fail  map[string]bool
	opts  []*reddit.ListPostOptions
}

func (f *fakeLister) TopPosts(_ context.Context, sub string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error) {
	f.opts = append(f.opts, opts)
	if f.fail[sub] {
		return nil, nil, errors.New("429 too many requests")
	}
	return f.posts[sub], nil, nil
}

func post(id string, score int, body string) *reddit.Post {
	return &reddit.Post{
		ID: id, FullID: "t3_" + id, Title: "Post " + id, Body: body,
		Score: score, IsSelfPost: true, Permalink: "/r/x/comments/" + id,
	}
}

func redditConfig(t *testing.T) config.RedditConfig {
	return config.RedditConfig{
		Subreddits:     []string{"nosleep", "tifu"},
		TimeFilter:     "week",
		Limit:          10,
		MinScore:       5,
		MinBodyChars:   10,
		UsedStoriesLog: filepath.Join(t.TempDir(), "used.json"),
	}
}

func TestReddit_ListFiltersAndSorts(t *testing.T) {
	t.Parallel()

	long := "a long enough story body"
	sticky := post("s", 999, long)
	sticky.Stickied = true
	nsfw := post("n", 500, long)
	nsfw.NSFW = true
	link := post("l", 400, long)
	link.IsSelfPost = false

	lister := &fakeLister{posts: map[string][]*reddit.Post{
		"nosleep": {post("a", 10, long), sticky, nsfw, post("low", 1, long), post("short", 50, "tiny")},
		"tifu":    {post("b", 30, long), link, post("gone", 80, "[removed]"), post("a", 10, long)},
	}}
	r := newReddit(redditConfig(t), lister)

	stories, err := r.ListUnprocessed(context.Background())
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "t3_b", stories[0].SourceRef)
	assert.Equal(t, "t3_a", stories[1].SourceRef)
	assert.Equal(t, "https://www.reddit.com/r/x/comments/b", stories[0].Link)

	require.Len(t, lister.opts, 2)
	assert.Equal(t, 10, lister.opts[0].Limit)
	assert.Equal(t, "week", lister.opts[0].Time)
}

func TestReddit_MarkProcessedPersists(t *testing.T) {
	t.Parallel()

	cfg := redditConfig(t)
	lister := &fakeLister{posts: map[string][]*reddit.Post{
		"nosleep": {post("a", 10, "a long enough story body"), post("b", 20, "another long story body")},
	}}
	r := newReddit(cfg, lister)
	ctx := context.Background()

	got, err := r.Get(ctx, "t3_a")
	require.NoError(t, err)
	require.NoError(t, r.MarkProcessed(ctx, got.SourceRef))
	require.NoError(t, r.MarkProcessed(ctx, got.SourceRef))

	var saved usedLog
	data, err := os.ReadFile(cfg.UsedStoriesLog)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, []string{"t3_a"}, saved.IDs)

	// a fresh source sees the log
	stories, err := newReddit(cfg, lister).ListUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "t3_b", stories[0].SourceRef)
}

func TestReddit_AllSubredditsFail(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{fail: map[string]bool{"nosleep": true, "tifu": true}}
	_, err := newReddit(redditConfig(t), lister).ListUnprocessed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestLoadUsedStories_LegacyList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "used.json")
	require.NoError(t, os.WriteFile(path, []byte(`["t3_x","t3_y"]`), 0644))
	used := loadUsedStories(path)
	assert.True(t, used["t3_x"])
	assert.True(t, used["t3_y"])
	assert.Empty(t, loadUsedStories(filepath.Join(t.TempDir(), "missing.json")))
}

func TestManual(t *testing.T) {
	s, err := Manual(ManualInput{Title: " Title ", Body: " body ", Link: "https://x"})
	require.NoError(t, err)
	assert.Equal(t, types.Story{Title: "Title", Body: "body", Link: "https://x"}, s)

	file := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file\n"), 0644))
	s, err = Manual(ManualInput{Title: "T", Body: "ignored", BodyFile: file})
	require.NoError(t, err)
	assert.Equal(t, "from file", s.Body)

	orig := readClipboard
	t.Cleanup(func() { readClipboard = orig })
	readClipboard = func() (string, error) { return "pasted story", nil }
	s, err = Manual(ManualInput{Title: "T", Clipboard: true})
	require.NoError(t, err)
	assert.Equal(t, "pasted story", s.Body)
	assert.Empty(t, s.SourceRef)

	_, err = Manual(ManualInput{Title: "  ", Body: "\n"})
	require.ErrorIs(t, err, types.ErrInput)
}
