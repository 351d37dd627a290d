package controlflow

import "github.com/panbanda/tsqlgraph/pkg/collate"

// Node types.
const (
	TypeStart  = "start"
	TypeEnd    = "end"
	TypeIf     = "if"
	TypeWhile  = "while"
	TypeTry    = "try"
	TypeCatch  = "catch"
	TypeReturn = "return"
	TypeGoto   = "goto"
)

// Edge labels.
const (
	EdgeNext   = "next"
	EdgeTrue   = "true"
	EdgeFalse  = "false"
	EdgeBody   = "body"
	EdgeExit   = "exit"
	EdgeLoop   = "loop"
	EdgeError  = "error"
	EdgeReturn = "return"
)

// Node is a control construct, or the synthetic start and end nodes.
type Node struct {
	ID    string `json:"id" toon:"id"`
	Type  string `json:"type" toon:"type"`
	Label string `json:"label" toon:"label"`
}

// Edge is a labeled transfer of control.
type Edge struct {
	From  string `json:"from" toon:"from"`
	To    string `json:"to" toon:"to"`
	Label string `json:"label" toon:"label"`
}

// Graph holds the possibly truncated node and edge lists.
type Graph struct {
	Nodes []Node `json:"nodes" toon:"nodes"`
	Edges []Edge `json:"edges" toon:"edges"`
}

// Summary holds metrics computed over the whole unit, regardless of
// truncation.
type Summary struct {
	HasBranching         bool `json:"has_branching" toon:"has_branching"`
	HasLoops             bool `json:"has_loops" toon:"has_loops"`
	HasTryCatch          bool `json:"has_try_catch" toon:"has_try_catch"`
	HasGoto              bool `json:"has_goto" toon:"has_goto"`
	HasReturn            bool `json:"has_return" toon:"has_return"`
	BranchCount          int  `json:"branch_count" toon:"branch_count"`
	LoopCount            int  `json:"loop_count" toon:"loop_count"`
	ReturnCount          int  `json:"return_count" toon:"return_count"`
	GotoCount            int  `json:"goto_count" toon:"goto_count"`
	MaxNestingDepth      int  `json:"max_nesting_depth" toon:"max_nesting_depth"`
	CyclomaticComplexity int  `json:"cyclomatic_complexity" toon:"cyclomatic_complexity"`
}

// Result is the control-flow analysis of one unit.
type Result struct {
	Graph   Graph   `json:"graph" toon:"graph"`
	Summary Summary `json:"summary" toon:"summary"`
	// Signals names the control keywords the unit uses.
	Signals []string `json:"signals" toon:"signals"`

	// Errors lists non-fatal conditions such as truncation. It is merged
	// into the analysis error list by the caller.
	Errors []string `json:"-" toon:"-"`
	// NodeTotal and EdgeTotal count the graph before caps were applied.
	NodeTotal int `json:"-" toon:"-"`
	EdgeTotal int `json:"-" toon:"-"`
	// Truncations details every cut list, in the order the cuts happened.
	Truncations []collate.Truncation `json:"-" toon:"-"`
}

// Options bounds the rendered graph and the signal list.
type Options struct {
	MaxNodes   int
	MaxEdges   int
	MaxSignals int
}

// DefaultOptions returns the standard caps.
func DefaultOptions() Options {
	return Options{
		MaxNodes:   200,
		MaxEdges:   400,
		MaxSignals: 15,
	}
}
