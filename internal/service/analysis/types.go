package analysis

import (
	"github.com/panbanda/tsqlgraph/pkg/analyzer/callgraph"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/controlflow"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/signals"
	"github.com/panbanda/tsqlgraph/pkg/collate"
	"github.com/panbanda/tsqlgraph/pkg/parser"
	"github.com/panbanda/tsqlgraph/pkg/redact"
)

// Response versions.
const (
	ReportVersion    = "0.6"
	CallGraphVersion = "2.4.0"
	CallersVersion   = "2.1.0"
)

// Request is a single-unit analysis request.
type Request struct {
	Name    string `json:"name,omitempty"`
	SQL     string `json:"sql"`
	Dialect string `json:"dialect,omitempty"`
}

// ControlFlow pairs the bounded flow graph with metrics from the full IR.
type ControlFlow struct {
	Summary controlflow.Summary `json:"summary" toon:"summary"`
	Graph   controlflow.Graph   `json:"graph" toon:"graph"`
	Signals []string            `json:"signals" toon:"signals"`
}

// Report is the analysis of one unit.
type Report struct {
	Version          string                   `json:"version" toon:"version"`
	References       signals.References       `json:"references" toon:"references"`
	Transactions     signals.Transactions     `json:"transactions" toon:"transactions"`
	MigrationImpacts signals.MigrationImpacts `json:"migration_impacts" toon:"migration_impacts"`
	ControlFlow      ControlFlow              `json:"control_flow" toon:"control_flow"`
	DataChanges      signals.DataChanges      `json:"data_changes" toon:"data_changes"`
	ErrorHandling    signals.ErrorHandling    `json:"error_handling" toon:"error_handling"`
	Errors           []string                 `json:"errors" toon:"errors"`

	// Name and Digest identify the unit in batch output and logs.
	Name   string        `json:"-" toon:"-"`
	Digest redact.Digest `json:"-" toon:"-"`
	// Truncations lists every capped list and graph.
	Truncations []collate.Truncation `json:"-" toon:"-"`
}

// TermsReport holds the query terms of one unit.
type TermsReport struct {
	Terms  []string `json:"terms" toon:"terms"`
	Errors []string `json:"errors" toon:"errors"`
}

// GraphOptions overrides the configured resolution defaults for one
// request. Nil fields keep the configured value.
type GraphOptions struct {
	CaseInsensitive   *bool `json:"case_insensitive,omitempty"`
	SchemaSensitive   *bool `json:"schema_sensitive,omitempty"`
	IncludeFunctions  *bool `json:"include_functions,omitempty"`
	IncludeProcedures *bool `json:"include_procedures,omitempty"`
	IgnoreDynamicExec *bool `json:"ignore_dynamic_exec,omitempty"`
	IncludeSelf       *bool `json:"include_self,omitempty"`
	MaxNodes          *int  `json:"max_nodes,omitempty"`
	MaxEdges          *int  `json:"max_edges,omitempty"`
}

// CallGraphRequest asks for the call graph of a batch.
type CallGraphRequest struct {
	Objects []parser.Unit `json:"objects"`
	Options GraphOptions  `json:"options"`
}

// CallersRequest asks which objects in a batch call Target.
type CallersRequest struct {
	Target     string        `json:"target"`
	TargetType string        `json:"target_type,omitempty"`
	Objects    []parser.Unit `json:"objects"`
	Options    GraphOptions  `json:"options"`
}

// CallGraphReport is the versioned call graph of a batch.
type CallGraphReport struct {
	Version  string             `json:"version" toon:"version"`
	Summary  callgraph.Summary  `json:"summary" toon:"summary"`
	Graph    callgraph.Elements `json:"graph" toon:"graph"`
	Topology callgraph.Topology `json:"topology" toon:"topology"`
	Errors   []callgraph.Issue  `json:"errors" toon:"errors"`
}

// CallersReport is the versioned answer to a callers query.
type CallersReport struct {
	Version string                   `json:"version" toon:"version"`
	Target  callgraph.Target         `json:"target" toon:"target"`
	Summary callgraph.CallersSummary `json:"summary" toon:"summary"`
	Callers []callgraph.Caller       `json:"callers" toon:"callers"`
	Errors  []callgraph.Issue        `json:"errors" toon:"errors"`
}
