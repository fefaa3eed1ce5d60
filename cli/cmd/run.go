package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/gristmill-io/gristmill/adapter"
	adapterredis "github.com/gristmill-io/gristmill/adapter/redis"
	"github.com/gristmill-io/gristmill/adapter/webhook"
	"github.com/gristmill-io/gristmill/batch"
	"github.com/gristmill-io/gristmill/cli/config"
	"github.com/gristmill-io/gristmill/cli/reader"
	"github.com/gristmill-io/gristmill/cli/render"
	"github.com/gristmill-io/gristmill/cli/tui"
	"github.com/gristmill-io/gristmill/pool"
	"github.com/gristmill-io/gristmill/progress"
	"github.com/gristmill-io/gristmill/source"
	"github.com/gristmill-io/gristmill/types"
)

// Exit codes for gristmill run.
const (
	exitSuccess    = 0
	exitBatchError = 1
	exitSetupError = 2
)

// defaultConfigFile is loaded when present and --config is not given.
const defaultConfigFile = "gristmill.yaml"

// RunCommand returns the run command, the only command that executes
// work.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a batch function over chunked input",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to gristmill.yaml (default: ./gristmill.yaml if present)",
			},
			&cli.StringFlag{
				Name:  "fn",
				Usage: "Registered batch function to run",
			},
			// Input flags
			&cli.StringFlag{
				Name:  "input",
				Usage: "Input file (.csv/.tsv parsed with a header row, otherwise one item per line)",
			},
			&cli.StringFlag{
				Name:  "delimiter",
				Usage: "CSV delimiter (default: sniffed from the header line)",
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for list-backed input",
				EnvVars: []string{"GRISTMILL_REDIS_URL"},
			},
			&cli.StringFlag{
				Name:  "redis-key",
				Usage: "Redis list key to read items from (instead of --input)",
			},
			// Execution flags
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Worker process count (default: CPU count)",
				EnvVars: []string{"GRISTMILL_WORKERS"},
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Items per chunk",
			},
			&cli.StringFlag{
				Name:  "worker",
				Usage: "Path to the worker binary",
			},
			// Output flags
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable the progress bar",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Interactive live view while the batch runs",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the completion summary",
			},
			&cli.BoolFlag{
				Name:  "print-results",
				Usage: "Write results to stdout as JSON lines while they arrive",
			},
			&cli.BoolFlag{
				Name:  "show-reports",
				Usage: "Print merged report entries after the batch",
			},
			FormatFlag,
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion adapter: redis or webhook",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Adapter endpoint (redis:// URL or webhook URL)",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel for the completion event",
			},
		},
		Action: runAction,
	}
}

// runSettings holds the resolved run configuration (flags over config
// file values).
type runSettings struct {
	fn         string
	workers    int
	chunkSize  int
	workerPath string

	inputPath string
	delimiter string
	skipBlank bool
	redisURL  string
	redisKey  string

	noProgress   bool
	useTUI       bool
	quiet        bool
	printResults bool
	showReports  bool

	adapter config.AdapterConfig

	// factory overrides worker creation; tests inject in-process
	// workers here.
	factory pool.WorkerFactory
}

// RunSummary is the completion summary printed after a batch.
type RunSummary struct {
	BatchID    string `json:"batch_id"`
	Fn         string `json:"fn"`
	State      string `json:"state"`
	Workers    int    `json:"workers"`
	ChunkSize  int    `json:"chunk_size"`
	Items      int    `json:"items"`
	Reports    int    `json:"reports"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func runAction(c *cli.Context) error {
	settings, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("gristmill: %v", err), exitSetupError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	summary, reports, runErr := executeBatch(ctx, cancel, settings)
	if summary == nil {
		return cli.Exit(fmt.Sprintf("gristmill: %v", runErr), exitSetupError)
	}

	if !settings.quiet {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(fmt.Sprintf("gristmill: %v", err), exitSetupError)
		}
		_ = r.Render(summary)
		if settings.showReports && len(reports) > 0 {
			_ = r.Render(reports)
		}
	}

	publishEvent(settings, summary)

	if runErr != nil {
		code := exitBatchError
		if pool.IsPoolExhaustionError(runErr) || source.IsChunkSizeError(runErr) {
			code = exitSetupError
		}
		return cli.Exit(fmt.Sprintf("gristmill: batch aborted: %v", runErr), code)
	}
	return nil
}

// resolveSettings merges flags over the config file. Flags win.
func resolveSettings(c *cli.Context) (*runSettings, error) {
	cfg := &config.Config{}
	switch path := c.String("config"); {
	case path != "":
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		if _, err := os.Stat(defaultConfigFile); err == nil {
			loaded, err := config.Load(defaultConfigFile)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	s := &runSettings{
		fn:           firstString(c.String("fn"), cfg.Fn),
		workers:      firstInt(c.Int("workers"), cfg.Workers),
		chunkSize:    firstInt(c.Int("chunk-size"), cfg.ChunkSize),
		workerPath:   firstString(c.String("worker"), cfg.Worker),
		inputPath:    firstString(c.String("input"), cfg.Input.Path),
		delimiter:    firstString(c.String("delimiter"), cfg.Input.Delimiter),
		skipBlank:    cfg.SkipBlankLines(),
		redisURL:     firstString(c.String("redis-url"), cfg.Redis.URL),
		redisKey:     firstString(c.String("redis-key"), cfg.Redis.Key),
		noProgress:   c.Bool("no-progress") || cfg.Progress == "none",
		useTUI:       c.Bool("tui"),
		quiet:        c.Bool("quiet"),
		printResults: c.Bool("print-results"),
		showReports:  c.Bool("show-reports"),
		adapter:      cfg.Adapter,
	}
	if t := c.String("adapter"); t != "" {
		s.adapter.Type = t
	}
	if u := c.String("adapter-url"); u != "" {
		s.adapter.URL = u
	}
	if ch := c.String("adapter-channel"); ch != "" {
		s.adapter.Channel = ch
	}

	if s.chunkSize == 0 {
		s.chunkSize = batch.DefaultChunkSize
	}
	if s.fn == "" {
		return nil, errors.New("a batch function is required (--fn or fn in gristmill.yaml)")
	}
	if s.inputPath == "" && s.redisKey == "" {
		return nil, errors.New("an input is required (--input or --redis-key)")
	}
	return s, nil
}

// executeBatch runs the batch and returns its summary, merged reports,
// and the batch error if it aborted. A nil summary means the batch
// never started.
func executeBatch(ctx context.Context, cancel context.CancelFunc, s *runSettings) (*RunSummary, []types.ReportEntry, error) {
	src, closeSrc, total, err := buildSource(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	defer closeSrc()

	o, err := batch.New(s.fn, batch.Config{
		Workers:    s.workers,
		ChunkSize:  s.chunkSize,
		TotalHint:  total,
		WorkerPath: s.workerPath,
		Factory:    s.factory,
	})
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	var items int
	var runErr error

	if s.useTUI {
		items, runErr = runWithTUI(ctx, cancel, o, src, total)
	} else {
		o.SetProgress(buildProgressSink(s, total))
		items, runErr = consumeStream(ctx, o, src, s.printResults)
	}

	reports := o.Reporter().Snapshot()
	meta := o.Meta()
	summary := &RunSummary{
		BatchID:    meta.BatchID,
		Fn:         meta.Fn,
		State:      o.State().String(),
		Workers:    meta.Workers,
		ChunkSize:  meta.ChunkSize,
		Items:      items,
		Reports:    len(reports),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	return summary, reports, runErr
}

// consumeStream drives the plain (non-TUI) run: pull results as they
// arrive, optionally echoing them to stdout.
func consumeStream(ctx context.Context, o *batch.Orchestrator, src source.Source, printResults bool) (int, error) {
	stream, err := o.Run(ctx, src)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(os.Stdout)
	items := 0
	for {
		item, err := stream.Next(ctx)
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items++
		if printResults {
			_ = enc.Encode(item)
		}
	}
}

// runWithTUI drives the batch under the Bubble Tea live view. The
// model's quit key cancels ctx; the batch aborts and the final DoneMsg
// closes the program.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, o *batch.Orchestrator, src source.Source, total int) (int, error) {
	model := tui.NewModel(o.Meta().Fn, o.Meta().BatchID, total, cancel)
	program := tea.NewProgram(model)

	sink := &tui.Sink{Program: program, Total: total}
	o.SetProgress(sink)

	done := make(chan struct{})
	var items int
	var runErr error
	go func() {
		defer close(done)
		stream, err := o.Run(ctx, src)
		if err != nil {
			runErr = err
			program.Send(tui.DoneMsg{Err: err})
			return
		}
		results, err := stream.Collect(ctx)
		items = len(results)
		runErr = err
		sink.ReportsMerged(o.Reporter().Len())
		program.Send(tui.DoneMsg{Err: err})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return items, fmt.Errorf("tui: %w", err)
	}
	<-done
	return items, runErr
}

// buildSource constructs the chunk source from the resolved settings.
// The returned func releases source resources after the run.
func buildSource(ctx context.Context, s *runSettings) (source.Source, func(), int, error) {
	if s.redisKey != "" {
		if s.redisURL == "" {
			return nil, nil, 0, errors.New("--redis-key requires --redis-url")
		}
		list, err := source.NewRedisList(s.redisURL, s.redisKey)
		if err != nil {
			return nil, nil, 0, err
		}
		src, err := source.FromPaginated(list, s.chunkSize)
		if err != nil {
			_ = list.Close()
			return nil, nil, 0, err
		}
		total, err := src.Prime(ctx)
		if err != nil {
			_ = list.Close()
			return nil, nil, 0, err
		}
		return src, func() { _ = list.Close() }, total, nil
	}

	items, err := reader.Load(s.inputPath, reader.Options{
		Delimiter: s.delimiter,
		SkipBlank: s.skipBlank,
	})
	if err != nil {
		return nil, nil, 0, err
	}
	src, err := source.FromSlice(items, s.chunkSize)
	if err != nil {
		return nil, nil, 0, err
	}
	return src, func() {}, len(items), nil
}

func buildProgressSink(s *runSettings, total int) progress.Sink {
	if s.noProgress || s.quiet {
		return progress.Noop{}
	}
	return progress.NewBar(os.Stderr, total)
}

// publishEvent sends the completion event through the configured
// adapter. Delivery is best effort: a failed publish warns on stderr
// and leaves the exit code untouched.
func publishEvent(s *runSettings, summary *RunSummary) {
	if s.adapter.Type == "" {
		return
	}

	a, err := buildAdapter(s.adapter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: completion adapter disabled: %v\n", err)
		return
	}
	defer func() { _ = a.Close() }()

	event := &adapter.BatchCompletedEvent{
		EventType:  adapter.EventType,
		BatchID:    summary.BatchID,
		Fn:         summary.Fn,
		State:      summary.State,
		Workers:    summary.Workers,
		ChunkSize:  summary.ChunkSize,
		Items:      summary.Items,
		Reports:    summary.Reports,
		Error:      summary.Error,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		DurationMs: summary.DurationMs,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Publish(ctx, event); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: completion event not delivered: %v\n", err)
	}
}

func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "redis":
		retries := adapterredis.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return adapterredis.New(adapterredis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "webhook":
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be redis or webhook)", cfg.Type)
	}
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
