package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/bootstrap"
	"github.com/target/jobrelay/internal/domain/model"
	"github.com/target/jobrelay/internal/migrate"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"migrate-status": {
			name:        "migrate-status",
			description: "List embedded migrations and whether each has been applied",
			run:         runMigrationStatus,
		},
		"queue-stats": {
			name:        "queue-stats",
			description: "Show job counts per state for the completion and task queues",
			run:         runQueueStats,
		},
		"job": {
			name:        "job",
			description: "Resolve a job's status from the result cache and queue",
			run:         runJob,
		},
		"completions": {
			name:        "completions",
			description: "List completion records, newest first",
			run:         runCompletions,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: jobrelay-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, _, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config, WantDB: true})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

type formatOptions struct {
	Format outputFormat
}

func parseFormatFlags(name string, args []string) (formatOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	format := fs.String("format", "table", "Output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return formatOptions{}, err
	}
	f, err := parseOutputFormat(*format)
	if err != nil {
		return formatOptions{}, err
	}
	return formatOptions{Format: f}, nil
}

func runMigrationStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseFormatFlags("migrate-status", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, _, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config, WantDB: true})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	status, err := bootstrap.MigrationStatus(ctx, db)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return printMigrationStatus(cmdCtx.Out, opts.Format, status)
}

func printMigrationStatus(w io.Writer, format outputFormat, status []migrate.Migration) error {
	if format != formatTable {
		return render(w, format, status)
	}
	rows := make([][]string, 0, len(status))
	for _, m := range status {
		state := "pending"
		if m.Applied {
			state = "applied"
		}
		rows = append(rows, []string{m.Version, state})
	}
	return table(w, []string{"VERSION", "STATE"}, rows)
}

type queueStatsOptions struct {
	Queues []string
	Format outputFormat
}

func parseQueueStatsFlags(args []string, cfg config.QueueConfig) (queueStatsOptions, error) {
	fs := flag.NewFlagSet("queue-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var queues stringList
	fs.Var(&queues, "queue", "Queue to inspect (repeatable); defaults to the completion and task queues")
	format := fs.String("format", "table", "Output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return queueStatsOptions{}, err
	}
	f, err := parseOutputFormat(*format)
	if err != nil {
		return queueStatsOptions{}, err
	}
	if len(queues) == 0 {
		queues = stringList{cfg.CompletionQueue, cfg.TaskQueue}
	}
	return queueStatsOptions{Queues: queues, Format: f}, nil
}

type queueStat struct {
	Queue string `json:"queue"`
	model.QueueCounts
}

func runQueueStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseQueueStatsFlags(args, cmdCtx.Config.Queue)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withServices(cmdCtx, connectInfraOptions{WantRedis: true}, func(svcs bootstrap.ServiceContainer) error {
		stats := make([]queueStat, 0, len(opts.Queues))
		for _, q := range opts.Queues {
			counts, countErr := svcs.Queues.Counts(ctx, q)
			if countErr != nil {
				return fmt.Errorf("count queue %s: %w", q, countErr)
			}
			stats = append(stats, queueStat{Queue: q, QueueCounts: counts})
		}
		return printQueueStats(cmdCtx.Out, opts.Format, stats)
	})
}

func printQueueStats(w io.Writer, format outputFormat, stats []queueStat) error {
	if format != formatTable {
		return render(w, format, stats)
	}
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.Queue,
			strconv.FormatInt(s.Waiting, 10),
			strconv.FormatInt(s.Active, 10),
			strconv.FormatInt(s.Delayed, 10),
			strconv.FormatInt(s.Completed, 10),
			strconv.FormatInt(s.Failed, 10),
		})
	}
	return table(w, []string{"QUEUE", "WAITING", "ACTIVE", "DELAYED", "COMPLETED", "FAILED"}, rows)
}

type jobOptions struct {
	Queue     string
	JobID     string
	QueueOnly bool
	Format    outputFormat
}

func parseJobFlags(args []string, cfg config.QueueConfig) (jobOptions, error) {
	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts := jobOptions{}
	fs.StringVar(&opts.Queue, "queue", cfg.TaskQueue, "Queue holding the job")
	fs.StringVar(&opts.JobID, "id", "", "Job id (required)")
	fs.BoolVar(&opts.QueueOnly, "queue-only", false, "Skip the result cache and show the queue record with attempt history")
	format := fs.String("format", "json", "Output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return jobOptions{}, err
	}
	if opts.JobID == "" {
		return jobOptions{}, errors.New("--id is required")
	}
	f, err := parseOutputFormat(*format)
	if err != nil {
		return jobOptions{}, err
	}
	if f == formatTable {
		return jobOptions{}, errors.New("job output supports json or yaml only")
	}
	opts.Format = f
	return opts, nil
}

func runJob(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobFlags(args, cmdCtx.Config.Queue)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	if !opts.QueueOnly && cmdCtx.Config.ResultCache.Backend == config.ResultCacheMemory {
		cmdCtx.Logger.Warn("result cache backend is memory; callback results held by the server are not visible here")
	}

	return withServices(cmdCtx, connectInfraOptions{WantRedis: true}, func(svcs bootstrap.ServiceContainer) error {
		var (
			view    any
			viewErr error
		)
		if opts.QueueOnly {
			view, viewErr = svcs.Resolver.ResolveQueueJob(ctx, opts.Queue, opts.JobID)
		} else {
			view, viewErr = svcs.Resolver.Resolve(ctx, opts.Queue, opts.JobID)
		}
		if viewErr != nil {
			return fmt.Errorf("resolve job %s: %w", opts.JobID, viewErr)
		}
		return render(cmdCtx.Out, opts.Format, view)
	})
}

type completionsOptions struct {
	List   model.CompletionListOptions
	Format outputFormat
}

func parseCompletionsFlags(args []string) (completionsOptions, error) {
	fs := flag.NewFlagSet("completions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	status := fs.String("status", "", "Filter by status: pending, processing, completed or failed")
	limit := fs.Int("limit", 0, "Page size (defaults to COMPLETIONS_DEFAULT_PAGE_SIZE)")
	offset := fs.Int("offset", 0, "Rows to skip")
	format := fs.String("format", "table", "Output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return completionsOptions{}, err
	}
	f, err := parseOutputFormat(*format)
	if err != nil {
		return completionsOptions{}, err
	}
	if *limit < 0 || *offset < 0 {
		return completionsOptions{}, errors.New("--limit and --offset must not be negative")
	}

	opts := completionsOptions{
		List:   model.CompletionListOptions{Limit: *limit, Offset: *offset},
		Format: f,
	}
	if *status != "" {
		var s model.CompletionStatus
		if err = s.UnmarshalText([]byte(*status)); err != nil {
			return completionsOptions{}, err
		}
		opts.List.Status = &s
	}
	return opts, nil
}

func runCompletions(cmdCtx *commandContext, args []string) error {
	opts, err := parseCompletionsFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withServices(cmdCtx, connectInfraOptions{WantDB: true}, func(svcs bootstrap.ServiceContainer) error {
		page, listErr := svcs.Completions.List(ctx, opts.List)
		if listErr != nil {
			return fmt.Errorf("list completions: %w", listErr)
		}
		return printCompletions(cmdCtx.Out, opts.Format, page)
	})
}

func printCompletions(w io.Writer, format outputFormat, page *model.CompletionListResponse) error {
	if format != formatTable {
		return render(w, format, page)
	}
	rows := make([][]string, 0, len(page.Completions))
	for _, c := range page.Completions {
		rows = append(rows, []string{
			c.CompletionID,
			deref(c.JobID, "-"),
			c.Model,
			string(c.Status),
			deref(c.TotalTokens, "-"),
			c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := table(w, []string{"COMPLETION", "JOB", "MODEL", "STATUS", "TOKENS", "CREATED"}, rows); err != nil {
		return err
	}
	return writef(w, "\n%d of %d (offset %d)\n", page.Count, page.Total, page.Offset)
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
