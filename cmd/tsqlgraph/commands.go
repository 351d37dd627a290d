package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/tsqlgraph/internal/fileproc"
	"github.com/panbanda/tsqlgraph/internal/progress"
	"github.com/panbanda/tsqlgraph/internal/report"
	"github.com/panbanda/tsqlgraph/internal/scanner"
	"github.com/panbanda/tsqlgraph/internal/service/analysis"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

var errNoFiles = errors.New("no T-SQL files found")

// getPaths returns paths from positional args, defaulting to stdin.
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"-"}
}

var quietFlag = &cli.BoolFlag{
	Name:    "quiet",
	Aliases: []string{"q"},
	Usage:   "Hide the progress bar",
}

var graphFlags = []cli.Flag{
	&cli.BoolFlag{Name: "case-sensitive", Usage: "Match object names case-sensitively"},
	&cli.BoolFlag{Name: "schema-sensitive", Usage: "Require schema-qualified names to match exactly"},
}

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Extract signals from each T-SQL file",
		ArgsUsage: "[file|dir|-...]",
		Flags:     []cli.Flag{quietFlag},
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			files, err := expand(c, rt)
			if err != nil {
				return err
			}

			tracker := newTracker(c, "analyze", len(files))
			reports, errs := rt.svc.AnalyzeFiles(c.Context, files, analysis.FileOptions{
				Stdin:      c.App.Reader,
				OnProgress: tracker.tick,
			})
			tracker.finish(errs)
			if err := failed(c, errs, len(reports)); err != nil {
				return err
			}
			return render(c, rt, report.Batch(reports))
		},
	}
}

func callGraphCmd() *cli.Command {
	return &cli.Command{
		Name:      "callgraph",
		Aliases:   []string{"cg"},
		Usage:     "Build the call graph across T-SQL files",
		ArgsUsage: "[file|dir...]",
		Flags: append([]cli.Flag{
			quietFlag,
			&cli.IntFlag{Name: "max-nodes", Usage: "Node cap (default from config)"},
			&cli.IntFlag{Name: "max-edges", Usage: "Edge cap (default from config)"},
			&cli.BoolFlag{Name: "no-functions", Usage: "Omit function call edges"},
			&cli.BoolFlag{Name: "no-procedures", Usage: "Omit EXEC edges"},
			&cli.BoolFlag{Name: "dynamic-exec", Usage: "Keep sp_executesql calls"},
		}, graphFlags...),
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			units, err := loadUnits(c, rt)
			if err != nil {
				return err
			}
			rep, err := rt.svc.CallGraph(c.Context, analysis.CallGraphRequest{
				Objects: units,
				Options: graphOptions(c),
			})
			if err != nil {
				return err
			}
			return render(c, rt, report.CallGraph(rep))
		},
	}
}

func callersCmd() *cli.Command {
	return &cli.Command{
		Name:      "callers",
		Usage:     "List the objects that call a target",
		ArgsUsage: "[file|dir...]",
		Flags: append([]cli.Flag{
			quietFlag,
			&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "Object whose callers to find", Required: true},
			&cli.StringFlag{Name: "target-type", Value: parser.TypeProcedure, Usage: "procedure or function"},
			&cli.BoolFlag{Name: "include-self", Usage: "Count recursive calls of the target"},
		}, graphFlags...),
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			units, err := loadUnits(c, rt)
			if err != nil {
				return err
			}
			rep, err := rt.svc.Callers(c.Context, analysis.CallersRequest{
				Target:     c.String("target"),
				TargetType: c.String("target-type"),
				Objects:    units,
				Options:    graphOptions(c),
			})
			if err != nil {
				return err
			}
			return render(c, rt, report.Callers(rep))
		},
	}
}

func termsCmd() *cli.Command {
	return &cli.Command{
		Name:      "terms",
		Usage:     "Print lexical search terms for a T-SQL unit",
		ArgsUsage: "[file|-]",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.Args().Len() > 1 {
				return fmt.Errorf("terms takes one file, got %d", c.Args().Len())
			}
			u, err := scanner.LoadUnit(getPaths(c)[0], c.App.Reader)
			if err != nil {
				return err
			}
			rep, err := rt.svc.Terms(c.Context, analysis.Request{Name: u.Name, SQL: u.SQL, Dialect: u.Dialect})
			if err != nil {
				return err
			}
			return render(c, rt, report.Terms(rep))
		},
	}
}

func expand(c *cli.Context, rt *appRuntime) ([]string, error) {
	files, err := scanner.NewScanner(rt.cfg).Expand(getPaths(c))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errNoFiles
	}
	return files, nil
}

// loadUnits reads every file argument as one unit. Unreadable files are
// reported and skipped.
func loadUnits(c *cli.Context, rt *appRuntime) ([]parser.Unit, error) {
	files, err := expand(c, rt)
	if err != nil {
		return nil, err
	}
	tracker := newTracker(c, "load", len(files))
	units, errs := rt.svc.LoadUnits(c.Context, files, analysis.FileOptions{
		Stdin:      c.App.Reader,
		OnProgress: tracker.tick,
	})
	tracker.finish(errs)
	if err := failed(c, errs, len(units)); err != nil {
		return nil, err
	}
	return units, nil
}

// failed reports per-file errors and fails only when nothing succeeded.
func failed(c *cli.Context, errs *fileproc.ProcessingErrors, ok int) error {
	if errs == nil {
		return nil
	}
	if ok == 0 {
		return errs
	}
	for _, e := range errs.Errors {
		fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", e)
	}
	return nil
}

func graphOptions(c *cli.Context) analysis.GraphOptions {
	var o analysis.GraphOptions
	flag := func(name string, negate bool) *bool {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Bool(name) != negate
		return &v
	}
	o.CaseInsensitive = flag("case-sensitive", true)
	o.SchemaSensitive = flag("schema-sensitive", false)
	o.IncludeFunctions = flag("no-functions", true)
	o.IncludeProcedures = flag("no-procedures", true)
	o.IgnoreDynamicExec = flag("dynamic-exec", true)
	o.IncludeSelf = flag("include-self", false)
	if c.IsSet("max-nodes") {
		v := c.Int("max-nodes")
		o.MaxNodes = &v
	}
	if c.IsSet("max-edges") {
		v := c.Int("max-edges")
		o.MaxEdges = &v
	}
	return o
}

// batchTracker is a progress bar that is a no-op for single files and
// --quiet runs.
type batchTracker struct {
	t *progress.Tracker
}

func newTracker(c *cli.Context, label string, total int) batchTracker {
	if total < 2 || c.Bool("quiet") {
		return batchTracker{}
	}
	return batchTracker{t: progress.NewTrackerTo(c.App.ErrWriter, label, total)}
}

func (b batchTracker) tick() {
	if b.t != nil {
		b.t.Tick()
	}
}

func (b batchTracker) finish(errs *fileproc.ProcessingErrors) {
	if b.t == nil {
		return
	}
	if errs != nil {
		b.t.Finish(fmt.Errorf("%d files failed", len(errs.Errors)))
		return
	}
	b.t.Finish(nil)
}
