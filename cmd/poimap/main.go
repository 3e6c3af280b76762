// Command poimap fetches OpenStreetMap points of interest from Overpass,
// saves them as snapshot files and renders or analyzes those snapshots.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/NERVsystems/poimap/pkg/config"
	"github.com/NERVsystems/poimap/pkg/monitoring"
	"github.com/NERVsystems/poimap/pkg/report"
	"github.com/NERVsystems/poimap/pkg/store"
	"github.com/NERVsystems/poimap/pkg/tracing"
	ver "github.com/NERVsystems/poimap/pkg/version"
)

// command is one subcommand. args excludes the command name.
type command struct {
	summary string
	usage   string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"fetch": {
			summary: "retrieve points of interest and save a snapshot",
			usage:   "fetch [-o path] [south,west,north,east | area expression]",
			run:     runFetch,
		},
		"render": {
			summary: "write an interactive HTML map of a snapshot",
			usage:   "render [-o path] [snapshot]",
			run:     runRender,
		},
		"tags": {
			summary: "list every attribute and its distinct values",
			usage:   "tags [-o path] [snapshot]",
			run:     runTags,
		},
		"extents": {
			summary: "find the largest area and areas without bounds",
			usage:   "extents [-o path] [snapshot]",
			run:     runExtents,
		},
		"compare": {
			summary: "compare the attribute inventories of two snapshots",
			usage:   "compare <snapshot-a> <snapshot-b>",
			run:     runCompare,
		},
		"version": {
			summary: "print version information",
			usage:   "version",
			run:     runVersion,
		},
	}
}

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	loader *store.Loader
	stdout io.Writer
	debug  bool
	now    func() time.Time
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("poimap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a YAML config file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Usage = func() { usage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() == 0 {
		usage(fs, stderr)
		return 1
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", name)
		usage(fs, stderr)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, report.Describe(err))
		return 1
	}

	logger := cfg.Log.NewLogger(*debug)
	slog.SetDefault(logger)

	// Initialize OpenTelemetry tracing
	ctx := context.Background()
	shutdownTracing, err := tracing.InitTracing(ctx, tracing.Options{Version: ver.BuildVersion})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing - it's not critical
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		loader: store.NewLoader(0, logger),
		stdout: stdout,
		debug:  *debug,
		now:    time.Now,
	}

	logger.Debug("running command",
		"command", name,
		"version", ver.BuildVersion,
		"overpass_url", cfg.Overpass.URL,
		"tag", cfg.Query.TagKey+"="+cfg.Query.TagValue)

	ctx, span := tracing.StartSpan(ctx, "command."+name)
	start := time.Now()
	err = cmd.run(ctx, a, fs.Args()[1:])
	monitoring.RecordCommand(name, time.Since(start), err == nil)

	status := tracing.StatusSuccess
	if err != nil {
		status = tracing.StatusError
		tracing.Fail(ctx, err, "command failed")
	}
	span.SetAttributes(tracing.CommandAttributes(name, status)...)
	span.End()

	if mErr := monitoring.WriteTextfile(cfg.Metrics.Textfile); mErr != nil {
		logger.Warn("failed to write metrics", "path", cfg.Metrics.Textfile, "error", mErr)
	}

	if err != nil {
		logger.Debug("command failed", "command", name, "error", err)
		fmt.Fprintln(stderr, report.Describe(err))
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "Usage: poimap [-config path] [-debug] <command> [arguments]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nFlags:\n")
	fs.PrintDefaults()
}

// commandFlags parses the common -o flag and returns the positional
// arguments, of which at most max are allowed.
func commandFlags(name string, args []string, max int) (out string, rest []string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&out, "o", "", "Output file path")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return "", nil, fmt.Errorf("usage: poimap %s", commands[name].usage)
		}
		return "", nil, fmt.Errorf("%s: %w", name, err)
	}
	if fs.NArg() > max {
		return "", nil, fmt.Errorf("usage: poimap %s (unexpected %s)", commands[name].usage,
			strings.Join(fs.Args()[max:], " "))
	}
	return out, fs.Args(), nil
}
