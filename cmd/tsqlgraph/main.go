package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/tsqlgraph/internal/output"
	"github.com/panbanda/tsqlgraph/internal/service/analysis"
	"github.com/panbanda/tsqlgraph/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// runtimeKey is the App.Metadata key holding the per-run state built in
// Before.
const runtimeKey = "runtime"

// appRuntime is shared by every command of one run.
type appRuntime struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *analysis.Service
}

// configLoader loads and validates the configuration for a run.
type configLoader func(path string) (*config.Config, error)

func main() {
	app := newApp(config.Init)
	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(load configLoader) *cli.App {
	return &cli.App{
		Name:     "tsqlgraph",
		Usage:    "T-SQL signal extraction and call-graph analysis",
		Version:  version,
		Metadata: make(map[string]any),
		Description: `tsqlgraph reads T-SQL stored procedures, functions and triggers and
reports structural signals (references, transactions, data changes,
error handling, control flow) and call graphs across a batch of objects.

Output never contains source text: string literals and comments are
masked before analysis and units are identified by length and hash.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"TSQLGRAPH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, yaml, toon (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Args().First() == "init" {
				return nil
			}
			cfg, err := load(c.String("config"))
			if err != nil {
				return err
			}
			logger, err := newLogger(c.App.ErrWriter, cfg, c.Bool("verbose"))
			if err != nil {
				return err
			}
			c.App.Metadata[runtimeKey] = &appRuntime{
				cfg:    cfg,
				logger: logger,
				svc:    analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(logger)),
			}
			return nil
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			callGraphCmd(),
			callersCmd(),
			termsCmd(),
			mcpCmd(),
			serveCmd(),
			initCmd(),
		},
	}
}

// newLogger builds the slog handler the config asks for. Logs go to w so
// they never mix with command output.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func runtimeOf(c *cli.Context) (*appRuntime, error) {
	rt, ok := c.App.Metadata[runtimeKey].(*appRuntime)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return rt, nil
}

// newFormatter applies --format, --output and --no-color over the config.
func newFormatter(c *cli.Context, rt *appRuntime) (*output.Formatter, error) {
	format := c.String("format")
	if format == "" {
		format = rt.cfg.Output.Format
	}
	f := output.ParseFormat(format)
	if path := c.String("output"); path != "" {
		return output.NewFormatter(f, path, false)
	}
	colored := rt.cfg.Output.Color && !c.Bool("no-color") && !color.NoColor
	return output.NewWriterFormatter(f, c.App.Writer, colored), nil
}

// render writes view with the run's formatter.
func render(c *cli.Context, rt *appRuntime, view output.Renderable) error {
	f, err := newFormatter(c, rt)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(view)
}
