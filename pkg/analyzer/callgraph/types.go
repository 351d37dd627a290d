package callgraph

import "github.com/panbanda/tsqlgraph/pkg/parser"

// Issue ids reported alongside a graph.
const (
	IssueAmbiguousTarget = "AMBIGUOUS_TARGET"
	IssueNodeLimit       = "NODE_LIMIT_EXCEEDED"
	IssueEdgeLimit       = "EDGE_LIMIT_EXCEEDED"
	IssueParseError      = "PARSE_ERROR"
	IssueMaxItems        = "MAX_ITEMS_EXCEEDED"
)

// Edge kinds.
const (
	KindExec     = "exec"
	KindExecute  = "execute"
	KindFunction = "function_call"
)

// Node is one input unit.
type Node struct {
	ID   string `json:"id" toon:"id"`
	Name string `json:"name" toon:"name"`
	Type string `json:"type" toon:"type"`
}

// Edge aggregates every call of one kind from one unit to another.
type Edge struct {
	From    string   `json:"from" toon:"from"`
	To      string   `json:"to" toon:"to"`
	Kind    string   `json:"kind" toon:"kind"`
	Count   int      `json:"count" toon:"count"`
	Signals []string `json:"signals" toon:"signals"`
}

// Issue is a non-fatal problem found while building a graph.
type Issue struct {
	ID      string `json:"id" toon:"id"`
	Message string `json:"message" toon:"message"`
	Object  string `json:"object,omitempty" toon:"object,omitempty"`
}

// Summary describes the graph as built.
type Summary struct {
	ObjectCount int  `json:"object_count" toon:"object_count"`
	NodeCount   int  `json:"node_count" toon:"node_count"`
	EdgeCount   int  `json:"edge_count" toon:"edge_count"`
	HasCycles   bool `json:"has_cycles" toon:"has_cycles"`
	Truncated   bool `json:"truncated" toon:"truncated"`
}

// Elements holds the node and edge lists, sorted by id and by
// (from, to, kind).
type Elements struct {
	Nodes []Node `json:"nodes" toon:"nodes"`
	Edges []Edge `json:"edges" toon:"edges"`
}

// Topology is derived from the kept nodes and edges.
type Topology struct {
	Roots     []string       `json:"roots" toon:"roots"`
	Leaves    []string       `json:"leaves" toon:"leaves"`
	InDegree  map[string]int `json:"in_degree" toon:"in_degree"`
	OutDegree map[string]int `json:"out_degree" toon:"out_degree"`
	HasCycles bool           `json:"has_cycles" toon:"has_cycles"`
}

// Graph is the call graph of a batch of units.
type Graph struct {
	Summary  Summary  `json:"summary" toon:"summary"`
	Graph    Elements `json:"graph" toon:"graph"`
	Topology Topology `json:"topology" toon:"topology"`
	Errors   []Issue  `json:"errors" toon:"errors"`
}

// Options configures Build.
type Options struct {
	CaseInsensitive   bool `json:"case_insensitive"`
	SchemaSensitive   bool `json:"schema_sensitive"`
	IncludeFunctions  bool `json:"include_functions"`
	IncludeProcedures bool `json:"include_procedures"`
	IgnoreDynamicExec bool `json:"ignore_dynamic_exec"`
	MaxNodes          int  `json:"max_nodes"`
	MaxEdges          int  `json:"max_edges"`
	MaxTotalChars     int  `json:"-"`
	// MaxSignals caps the signal list of each edge.
	MaxSignals int `json:"-"`

	// Parser extracts call sites; nil uses a parser without the relation
	// pass.
	Parser *parser.Parser `json:"-"`
}

// DefaultOptions returns the standard build options.
func DefaultOptions() Options {
	return Options{
		CaseInsensitive:   true,
		IncludeFunctions:  true,
		IncludeProcedures: true,
		IgnoreDynamicExec: true,
		MaxNodes:          500,
		MaxEdges:          2000,
		MaxTotalChars:     1_000_000,
		MaxSignals:        signalLimit,
	}
}

// CallersOptions configures FindCallers.
type CallersOptions struct {
	CaseInsensitive bool `json:"case_insensitive"`
	SchemaSensitive bool `json:"schema_sensitive"`
	IncludeSelf     bool `json:"include_self"`
	MaxObjects      int  `json:"-"`
	MaxTotalChars   int  `json:"-"`
	MaxSignals      int  `json:"-"`

	Parser *parser.Parser `json:"-"`
}

// DefaultCallersOptions returns the standard callers options.
func DefaultCallersOptions() CallersOptions {
	return CallersOptions{
		CaseInsensitive: true,
		MaxObjects:      500,
		MaxTotalChars:   1_000_000,
		MaxSignals:      signalLimit,
	}
}

// Target identifies the object whose callers were searched.
type Target struct {
	Name       string `json:"name" toon:"name"`
	Type       string `json:"type" toon:"type"`
	Normalized string `json:"normalized" toon:"normalized"`
}

// Caller is one unit that calls the target.
type Caller struct {
	Name      string   `json:"name" toon:"name"`
	Type      string   `json:"type" toon:"type"`
	CallCount int      `json:"call_count" toon:"call_count"`
	CallKinds []string `json:"call_kinds" toon:"call_kinds"`
	Signals   []string `json:"signals" toon:"signals"`
}

// CallersSummary aggregates the callers list.
type CallersSummary struct {
	HasCallers  bool `json:"has_callers" toon:"has_callers"`
	CallerCount int  `json:"caller_count" toon:"caller_count"`
	TotalCalls  int  `json:"total_calls" toon:"total_calls"`
}

// CallersResult is the answer to a callers query.
type CallersResult struct {
	Target  Target         `json:"target" toon:"target"`
	Summary CallersSummary `json:"summary" toon:"summary"`
	Callers []Caller       `json:"callers" toon:"callers"`
	Errors  []Issue        `json:"errors" toon:"errors"`
}
