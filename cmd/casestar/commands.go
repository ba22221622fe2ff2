package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/casestar/casestar-client/internal/adapters/cli"
	mcpadapter "github.com/casestar/casestar-client/internal/adapters/mcp"
	"github.com/casestar/casestar-client/internal/bootstrap"
	"github.com/casestar/casestar-client/internal/config"
	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
	"github.com/casestar/casestar-client/internal/observability/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `usage: casestar <command> [flags] [args]

commands:
  analyze <file>            upload and analyze a document
  search <query>            semantic search over analyzed documents
  health                    backend health
  cases                     list cases
  settings show|set|timeline|reset
  watch                     follow stage events from other clients
  mcp                       serve the MCP tool surface on stdio
  version
`

type command struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	newApp func(context.Context, config.Config, bootstrap.Options) (*bootstrap.App, error)
	// subscriber overrides the NATS connection for watch.
	subscriber cli.StageSubscriber
}

type commonFlags struct {
	output   string
	noColor  bool
	logLevel string
}

func (c *command) flagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	common := &commonFlags{}
	fs.StringVar(&common.output, "o", cli.FormatText, "output format: text, json or yaml")
	fs.BoolVar(&common.noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	fs.StringVar(&common.logLevel, "log-level", "error", "log level written to stderr")
	return fs, common
}

func (c *command) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usage)
		return exitUsage
	}

	name, rest := args[0], args[1:]
	var err error
	switch name {
	case "analyze":
		err = c.analyze(ctx, rest)
	case "search":
		err = c.search(ctx, rest)
	case "health":
		err = c.health(ctx, rest)
	case "cases":
		err = c.cases(ctx, rest)
	case "settings":
		err = c.settings(ctx, rest)
	case "watch":
		err = c.watch(ctx, rest)
	case "mcp":
		err = c.mcp(ctx, rest)
	case "version":
		fmt.Fprintln(c.stdout, version)
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n\n%s", name, usage)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(c.stderr, "%v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(c.stderr, "error: %s\n", domain.DisplayMessage(err))
		return exitFailure
	}
}

var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func (c *command) open(ctx context.Context, common *commonFlags, opts bootstrap.Options) (*bootstrap.App, *cli.Printer, error) {
	printer, err := cli.NewPrinter(c.stdout, common.output)
	if err != nil {
		return nil, nil, usageError("%s", domain.DisplayMessage(err))
	}
	slog.SetDefault(logging.New(c.stderr, "casestar-cli", common.logLevel, "text"))
	if opts.Service == "" {
		opts.Service = "casestar-cli"
	}
	app, err := c.newApp(ctx, c.cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return app, printer, nil
}

func (c *command) analyze(ctx context.Context, args []string) error {
	fs, common := c.flagSet("analyze")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("analyze expects exactly one file")
	}
	path := fs.Arg(0)
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	renderer := cli.NewRenderer(c.stderr, common.noColor, false)
	app, printer, err := c.open(ctx, common, bootstrap.Options{
		Observers: []ports.StageObserver{renderer},
		Notifiers: []ports.Notifier{renderer},
	})
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.ProcessUC.ProcessDocument(ctx, domain.DocumentFile{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Content:     content,
	})
	if err != nil {
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			fmt.Fprintf(c.stderr, "Run `casestar analyze %s` again to retry.\n", path)
		}
		return err
	}
	return printer.Print(result)
}

func (c *command) search(ctx context.Context, args []string) error {
	fs, common := c.flagSet("search")
	limit := fs.Int("limit", 0, "maximum number of results (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return usageError("search expects a query")
	}

	app, printer, err := c.open(ctx, common, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.QueryUC.Search(ctx, query, *limit)
	if err != nil {
		return err
	}
	return printer.Print(results)
}

func (c *command) health(ctx context.Context, args []string) error {
	fs, common := c.flagSet("health")
	if err := fs.Parse(args); err != nil {
		return err
	}
	app, printer, err := c.open(ctx, common, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	status, err := app.QueryUC.Health(ctx)
	if err != nil {
		return err
	}
	if err := printer.Print(status); err != nil {
		return err
	}
	if !status.Healthy() {
		return errors.New("one or more backend services are down")
	}
	return nil
}

func (c *command) cases(ctx context.Context, args []string) error {
	fs, common := c.flagSet("cases")
	filter := fs.String("q", "", "filter by title or id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	app, printer, err := c.open(ctx, common, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	list, err := app.QueryUC.Cases(ctx, *filter)
	if err != nil {
		return err
	}
	return printer.Print(list)
}

func (c *command) watch(ctx context.Context, args []string) error {
	fs, common := c.flagSet("watch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(logging.New(c.stderr, "casestar-cli", common.logLevel, "text"))

	sub := c.subscriber
	if sub == nil {
		queue, err := bootstrap.NewEventQueue(c.cfg)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", c.cfg.NATSURL, err)
		}
		defer queue.Close()
		sub = queue
	}
	fmt.Fprintf(c.stderr, "watching %s (ctrl-c to stop)\n", c.cfg.NATSSubject)
	return cli.Follow(ctx, sub, cli.NewRenderer(c.stdout, common.noColor, true))
}

func (c *command) mcp(ctx context.Context, args []string) error {
	fs, common := c.flagSet("mcp")
	if err := fs.Parse(args); err != nil {
		return err
	}
	// stdout carries the protocol; only stderr may be written to.
	slog.SetDefault(logging.New(c.stderr, "casestar-mcp", common.logLevel, "json"))
	app, err := c.newApp(ctx, c.cfg, bootstrap.Options{Service: "casestar-mcp"})
	if err != nil {
		return err
	}
	defer app.Close()

	tools := mcpadapter.NewTools(app.ProcessUC, app.QueryUC, app.SettingsUC, app.Stages)
	return mcpadapter.Serve(version, tools)
}
