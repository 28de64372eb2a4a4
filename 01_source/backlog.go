package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"story-video-pipeline/types"
)

var (
	titleColumns   = []string{"title", "post_title", "heading"}
	contentColumns = []string{"text", "content", "body", "selftext", "post_content", "story"}
)

const processedColumn = "processed"

// Backlog is a CSV file of stories with a processed flag per row
type Backlog struct {
	path string
	mu   sync.Mutex
}

// NewBacklog creates a Backlog over the CSV at path
func NewBacklog(path string) *Backlog {
	return &Backlog{path: path}
}

type table struct {
	header    []string
	rows      [][]string
	title     int
	content   int
	processed int // -1 until the column is added
}

func (b *Backlog) load() (*table, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open backlog: %v", types.ErrInput, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse backlog %s: %v", types.ErrInput, b.path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: backlog %s is empty", types.ErrInput, b.path)
	}

	t := &table{header: records[0], rows: records[1:], processed: -1}
	t.title = findColumn(t.header, titleColumns)
	t.content = findColumn(t.header, contentColumns)
	if t.title < 0 || t.content < 0 {
		return nil, fmt.Errorf("%w: could not detect title/content columns in %v", types.ErrInput, t.header)
	}
	t.processed = findColumn(t.header, []string{processedColumn})
	return t, nil
}

// findColumn returns the first header cell matching any of names, case-insensitively
func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isProcessed(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f == 1
	}
	return strings.EqualFold(v, "true")
}

// ListUnprocessed returns rows whose processed flag is not 1, in file order.
// SourceRef is the 1-based data row number.
func (b *Backlog) ListUnprocessed(ctx context.Context) ([]types.Story, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.load()
	if err != nil {
		return nil, err
	}
	var stories []types.Story
	for i, row := range t.rows {
		if isProcessed(cell(row, t.processed)) {
			continue
		}
		stories = append(stories, types.Story{
			Title:     strings.TrimSpace(cell(row, t.title)),
			Body:      cell(row, t.content),
			SourceRef: strconv.Itoa(i + 1),
		})
	}
	return stories, nil
}

// Get resolves a 1-based position in the unprocessed list
func (b *Backlog) Get(ctx context.Context, selector string) (types.Story, error) {
	stories, err := b.ListUnprocessed(ctx)
	if err != nil {
		return types.Story{}, err
	}
	return pick(stories, selector)
}

// MarkProcessed flags the row and rewrites the file atomically. Marking a row
// that is already processed leaves the file untouched.
func (b *Backlog) MarkProcessed(ctx context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := strconv.Atoi(ref)
	if err != nil {
		return fmt.Errorf("%w: backlog ref %q is not a row number", types.ErrInput, ref)
	}
	t, err := b.load()
	if err != nil {
		return err
	}
	if n < 1 || n > len(t.rows) {
		return fmt.Errorf("%w: backlog row %d out of range 1-%d", types.ErrInput, n, len(t.rows))
	}
	if isProcessed(cell(t.rows[n-1], t.processed)) {
		log.Debug().Str("stage", "source").Int("row", n).Msg("row already processed")
		return nil
	}

	if t.processed < 0 {
		t.header = append(t.header, processedColumn)
		t.processed = len(t.header) - 1
	}
	for i := range t.rows {
		for len(t.rows[i]) < len(t.header) {
			t.rows[i] = append(t.rows[i], "")
		}
		if strings.TrimSpace(t.rows[i][t.processed]) == "" {
			t.rows[i][t.processed] = "0"
		}
	}
	t.rows[n-1][t.processed] = "1"

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return fmt.Errorf("encode backlog: %w", err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		return fmt.Errorf("encode backlog: %w", err)
	}
	if err := writeFileAtomic(b.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save backlog: %w", err)
	}
	log.Info().Str("stage", "source").Int("row", n).Str("file", b.path).Msg("story marked as processed")
	return nil
}
