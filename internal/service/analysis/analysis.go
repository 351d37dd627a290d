// Package analysis runs the tsqlgraph pipeline behind every surface: the
// CLI, the MCP tools and the HTTP API.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/panbanda/tsqlgraph/internal/metrics"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/callgraph"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/controlflow"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/signals"
	"github.com/panbanda/tsqlgraph/pkg/collate"
	"github.com/panbanda/tsqlgraph/pkg/config"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

var tracer = otel.Tracer("tsqlgraph.service.analysis")

// Service orchestrates analysis operations. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	config *config.Config
	logger *slog.Logger
	parser *parser.Parser
	// calls extracts call sites for graph queries, without the relation
	// pass.
	calls *parser.Parser
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.LoadOrDefault(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = parser.New(
		parser.WithRelations(s.config.Parser.Relations),
		parser.WithLogger(s.logger),
	)
	s.calls = parser.New(parser.WithRelations(false), parser.WithLogger(s.logger))
	return s
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config { return s.config }

// Analyze runs the single-unit pipeline: parse once, then extract signals
// and build the control-flow graph from the same IR. Problems in the SQL
// are reported in Report.Errors; the returned error is only ever ctx's.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		metrics.Observe(metrics.OpAnalyze, start, err)
		return nil, fmt.Errorf("analyze: %w", err)
	}

	ctx, span := tracer.Start(ctx, "analysis.Analyze")
	defer span.End()

	res := s.parse(ctx, unitOf(req))
	rep := s.report(ctx, req.Name, res)

	span.SetAttributes(
		attribute.Bool("degraded", res.Degraded),
		attribute.Int("cyclomatic_complexity", rep.ControlFlow.Summary.CyclomaticComplexity),
		attribute.Int("truncations", len(rep.Truncations)),
	)
	s.logger.DebugContext(ctx, "analyzed unit",
		"unit", res.Digest,
		"degraded", res.Degraded,
		"errors", len(rep.Errors),
		"duration", time.Since(start),
	)
	metrics.Observe(metrics.OpAnalyze, start, nil)
	return rep, nil
}

// Terms returns the lexical retrieval terms of one unit.
func (s *Service) Terms(ctx context.Context, req Request) (*TermsReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		metrics.Observe(metrics.OpTerms, start, err)
		return nil, fmt.Errorf("terms: %w", err)
	}

	ctx, span := tracer.Start(ctx, "analysis.Terms")
	defer span.End()

	res := s.parse(ctx, unitOf(req))
	bundle := signals.Extract(res.IR, s.config.SignalOptions())
	out := &TermsReport{
		Terms:  slices.Collect(signals.QueryTerms(bundle)),
		Errors: []string{},
	}
	if out.Terms == nil {
		out.Terms = []string{}
	}
	if res.Degraded {
		out.Errors = append(out.Errors, parser.ParseErrorSignal)
	}
	span.SetAttributes(attribute.Int("terms", len(out.Terms)))
	metrics.Observe(metrics.OpTerms, start, nil)
	return out, nil
}

// CallGraph builds the call graph of a batch. A batch over the character
// limit fails with a *callgraph.BatchLimitError.
func (s *Service) CallGraph(ctx context.Context, req CallGraphRequest) (*CallGraphReport, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "analysis.CallGraph",
		trace.WithAttributes(attribute.Int("objects", len(req.Objects))))
	defer span.End()

	opts := s.graphOptions(req.Options)
	g, err := callgraph.Build(ctx, req.Objects, opts)
	metrics.Observe(metrics.OpCallGraph, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call graph failed")
		s.logger.WarnContext(ctx, "call graph rejected", "objects", len(req.Objects), "error", err)
		return nil, fmt.Errorf("call graph: %w", err)
	}

	for _, issue := range g.Errors {
		if issue.ID == callgraph.IssueNodeLimit || issue.ID == callgraph.IssueEdgeLimit {
			metrics.RecordTruncation(issue.ID)
		}
	}
	span.SetAttributes(
		attribute.Int("nodes", g.Summary.NodeCount),
		attribute.Int("edges", g.Summary.EdgeCount),
		attribute.Bool("truncated", g.Summary.Truncated),
		attribute.Bool("has_cycles", g.Summary.HasCycles),
	)
	s.logger.DebugContext(ctx, "built call graph",
		"objects", len(req.Objects),
		"nodes", g.Summary.NodeCount,
		"edges", g.Summary.EdgeCount,
		"issues", len(g.Errors),
	)
	return &CallGraphReport{
		Version:  CallGraphVersion,
		Summary:  g.Summary,
		Graph:    g.Graph,
		Topology: g.Topology,
		Errors:   g.Errors,
	}, nil
}

// Callers finds the objects in a batch that call req.Target. A batch over
// the object or character limit fails with a *callgraph.BatchLimitError.
func (s *Service) Callers(ctx context.Context, req CallersRequest) (*CallersReport, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "analysis.Callers",
		trace.WithAttributes(attribute.Int("objects", len(req.Objects))))
	defer span.End()

	opts := s.callersOptions(req.Options)
	res, err := callgraph.FindCallers(ctx, req.Target, req.TargetType, req.Objects, opts)
	metrics.Observe(metrics.OpCallers, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "callers failed")
		s.logger.WarnContext(ctx, "callers query rejected", "objects", len(req.Objects), "error", err)
		return nil, fmt.Errorf("callers: %w", err)
	}

	span.SetAttributes(attribute.Int("callers", res.Summary.CallerCount))
	return &CallersReport{
		Version: CallersVersion,
		Target:  res.Target,
		Summary: res.Summary,
		Callers: res.Callers,
		Errors:  res.Errors,
	}, nil
}

func (s *Service) parse(ctx context.Context, u parser.Unit) parser.Result {
	ctx, span := tracer.Start(ctx, "analysis.parse")
	defer span.End()

	res := s.parser.Parse(ctx, u)
	metrics.RecordParse(res.Degraded)
	span.SetAttributes(
		attribute.Int("unit.len", res.Digest.Length),
		attribute.String("unit.hash8", res.Digest.Hash8),
		attribute.Bool("degraded", res.Degraded),
	)
	if res.Degraded {
		s.logger.InfoContext(ctx, "unit parsed by fallback scanner",
			"unit", res.Digest,
			"dialect", u.Dialect,
			"reason", res.Reason,
		)
	}
	return res
}

func (s *Service) report(ctx context.Context, name string, res parser.Result) *Report {
	_, span := tracer.Start(ctx, "analysis.extract")
	defer span.End()

	bundle := signals.Extract(res.IR, s.config.SignalOptions())
	cf := controlflow.Build(res.IR, s.config.ControlFlowOptions())

	truncs := slices.Concat(bundle.Truncations, cf.Truncations)

	errs := slices.Clone(cf.Errors)
	if res.Degraded {
		errs = append(errs, parser.ParseErrorSignal)
	}
	for _, t := range truncs {
		if t.Code != controlflow.CodeTruncated {
			errs = append(errs, t.String())
		}
	}
	for _, t := range truncs {
		metrics.RecordTruncation(t.Code)
	}

	return &Report{
		Version:          ReportVersion,
		References:       bundle.References,
		Transactions:     bundle.Transactions,
		MigrationImpacts: bundle.MigrationImpacts,
		ControlFlow:      ControlFlow{Summary: cf.Summary, Graph: cf.Graph, Signals: cf.Signals},
		DataChanges:      bundle.DataChanges,
		ErrorHandling:    bundle.ErrorHandling,
		Errors:           collate.Strings(errs, collate.Identity, 0).Items,
		Name:             name,
		Digest:           res.Digest,
		Truncations:      truncs,
	}
}

func (s *Service) graphOptions(o GraphOptions) callgraph.Options {
	opts := s.config.CallGraphOptions()
	opts.Parser = s.calls
	setBool(&opts.CaseInsensitive, o.CaseInsensitive)
	setBool(&opts.SchemaSensitive, o.SchemaSensitive)
	setBool(&opts.IncludeFunctions, o.IncludeFunctions)
	setBool(&opts.IncludeProcedures, o.IncludeProcedures)
	setBool(&opts.IgnoreDynamicExec, o.IgnoreDynamicExec)
	if o.MaxNodes != nil && *o.MaxNodes > 0 {
		opts.MaxNodes = *o.MaxNodes
	}
	if o.MaxEdges != nil && *o.MaxEdges > 0 {
		opts.MaxEdges = *o.MaxEdges
	}
	return opts
}

func (s *Service) callersOptions(o GraphOptions) callgraph.CallersOptions {
	opts := s.config.CallersOptions()
	opts.Parser = s.calls
	setBool(&opts.CaseInsensitive, o.CaseInsensitive)
	setBool(&opts.SchemaSensitive, o.SchemaSensitive)
	setBool(&opts.IncludeSelf, o.IncludeSelf)
	return opts
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func unitOf(req Request) parser.Unit {
	dialect := strings.ToLower(strings.TrimSpace(req.Dialect))
	if dialect == "" {
		dialect = parser.DialectTSQL
	}
	return parser.Unit{Name: req.Name, Type: parser.TypeProcedure, SQL: req.SQL, Dialect: dialect}
}
