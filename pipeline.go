package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	source "story-video-pipeline/01_source"
	audio "story-video-pipeline/03_audio"
	video "story-video-pipeline/04_video"
	publish "story-video-pipeline/05_publish"
	"story-video-pipeline/config"
	"story-video-pipeline/ffmpeg"
	"story-video-pipeline/orchestrator"
	"story-video-pipeline/types"
)

type options struct {
	configPath string
	sourceKind string
	selector   string
	manual     source.ManualInput
	list       bool
	schedule   string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("story-video-pipeline", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", config.DefaultPath, "path to config.yaml or config.toml")
	fs.StringVar(&o.sourceKind, "source", "", "story source: csv, reddit or manual (overrides source.kind)")
	fs.StringVar(&o.selector, "select", "", "story to render: position in the unprocessed list or its source ref")
	fs.StringVar(&o.manual.Title, "title", "", "manual story title")
	fs.StringVar(&o.manual.Body, "body", "", "manual story body")
	fs.StringVar(&o.manual.BodyFile, "body-file", "", "read the manual story body from a file")
	fs.StringVar(&o.manual.Link, "link", "", "manual story link (used in publish metadata)")
	fs.BoolVar(&o.manual.Clipboard, "clipboard", false, "read the manual story body from the clipboard")
	fs.BoolVar(&o.list, "list", false, "list unprocessed stories and exit")
	fs.StringVar(&o.schedule, "schedule", "", "cron expression; render the next unprocessed story on every tick")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.isManual() && o.sourceKind == "" {
		o.sourceKind = "manual"
	}
	return o, nil
}

func (o options) isManual() bool {
	m := o.manual
	return m.Title != "" || m.Body != "" || m.BodyFile != "" || m.Clipboard
}

func main() {
	// Load .env (local dev only)
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if opts.sourceKind != "" {
		cfg.Source.Kind = opts.sourceKind
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("invalid source")
		}
	}
	if opts.schedule != "" {
		cfg.Schedule.Cron = opts.schedule
	}
	setupLogging(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	var src source.Source
	if cfg.Source.Kind != "manual" {
		s, err := source.New(cfg)
		if err != nil {
			return err
		}
		src = s
	}

	if opts.list {
		if src == nil {
			return fmt.Errorf("-list needs a csv or reddit source")
		}
		stories, err := src.ListUnprocessed(ctx)
		if err != nil {
			return err
		}
		printStories(os.Stdout, stories)
		return nil
	}

	media := ffmpeg.New()
	if err := media.CheckBinaries(); err != nil {
		return err
	}
	synth, err := audio.NewSynthesizer(cfg.Audio)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSynthesis, err)
	}
	pubs, closePubs, err := publish.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePubs()

	backgrounds := video.NewBackgrounds(cfg.Paths.Backgrounds, cfg.Video.Extensions, backgroundLog(cfg), nil)
	pipeline := orchestrator.New(cfg,
		audio.New(cfg, synth, media),
		video.New(cfg, backgrounds, media),
		orchestrator.WithPublishers(pubs...),
		orchestrator.WithReporter(src),
	)

	switch {
	case cfg.Source.Kind == "manual":
		story, err := source.Manual(opts.manual)
		if err != nil {
			return err
		}
		return renderOne(ctx, pipeline, story)

	case cfg.Schedule.Cron != "":
		return runScheduled(ctx, cfg.Schedule.Cron, src, pipeline)

	default:
		story, err := selectStory(ctx, src, opts.selector, os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		return renderOne(ctx, pipeline, story)
	}
}

func renderOne(ctx context.Context, pipeline *orchestrator.Orchestrator, story types.Story) error {
	log.Info().Str("title", truncate(story.Title, 50)).Int("chars", len([]rune(story.Body))).Msg("processing story")
	state, err := pipeline.Run(ctx, story)
	if err != nil {
		return err
	}
	for _, w := range state.Warnings {
		log.Warn().Str("run_id", state.RunID).Msg(w)
	}
	log.Info().Str("audio", state.Audio.Path).Str("video", state.Video.Path).Bool("marked", state.Marked).Msg("video saved")
	return nil
}

// runScheduled renders the next unprocessed story on every cron tick until ctx ends
func runScheduled(ctx context.Context, expr string, src source.Source, pipeline *orchestrator.Orchestrator) error {
	if src == nil {
		return fmt.Errorf("scheduled runs need a csv or reddit source")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(expr, func() {
		story, err := source.Next(ctx, src)
		if errors.Is(err, source.ErrNoStories) {
			log.Info().Str("stage", "schedule").Msg("no new stories to process")
			return
		}
		if err != nil {
			log.Error().Str("stage", "schedule").Err(err).Msg("could not fetch next story")
			return
		}
		if err := renderOne(ctx, pipeline, story); err != nil {
			log.Error().Str("stage", "schedule").Err(err).Msg("scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}

	c.Start()
	log.Info().Str("stage", "schedule").Str("cron", expr).Msg("scheduler started, waiting for ticks")
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Str("stage", "schedule").Msg("scheduler stopped")
	return nil
}

// selectStory resolves -select, or asks on the terminal when it is empty
func selectStory(ctx context.Context, src source.Source, selector string, in io.Reader, out io.Writer) (types.Story, error) {
	if selector != "" {
		return src.Get(ctx, selector)
	}
	stories, err := src.ListUnprocessed(ctx)
	if err != nil {
		return types.Story{}, err
	}
	if len(stories) == 0 {
		return types.Story{}, source.ErrNoStories
	}

	printStories(out, stories)
	fmt.Fprintf(out, "\nSelect a story (1-%d): ", len(stories))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return types.Story{}, fmt.Errorf("read selection: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return types.Story{}, fmt.Errorf("%w: no story selected", types.ErrInput)
	}
	return src.Get(ctx, line)
}

func printStories(out io.Writer, stories []types.Story) {
	fmt.Fprintln(out, "=== Available Stories ===")
	for i, s := range stories {
		fmt.Fprintf(out, "%d. %s\n", i+1, truncate(s.Title, 60))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func backgroundLog(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.Logs, "background_usage.json")
}

// setupLogging configures the global zerolog logger
func setupLogging(cfg config.LogConfig, w io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
