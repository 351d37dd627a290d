// Package controlflow derives a bounded control-flow graph and complexity
// metrics from a parsed unit.
package controlflow

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/collate"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

// CodeTruncated is reported when the graph exceeds its node or edge cap.
const CodeTruncated = "control_flow_graph_truncated"

var constructTypes = map[parser.Kind]string{
	parser.KindBranch: TypeIf,
	parser.KindLoop:   TypeWhile,
	parser.KindTry:    TypeTry,
	parser.KindCatch:  TypeCatch,
	parser.KindReturn: TypeReturn,
	parser.KindGoto:   TypeGoto,
}

var signalNames = map[parser.Kind]string{
	parser.KindBranch:   "IF",
	parser.KindLoop:     "WHILE",
	parser.KindBreak:    "BREAK",
	parser.KindContinue: "CONTINUE",
	parser.KindTry:      "BEGIN TRY",
	parser.KindCatch:    "BEGIN CATCH",
	parser.KindGoto:     "GOTO",
	parser.KindReturn:   "RETURN",
}

type construct struct {
	typ   string
	line  int
	depth int
	// ord is the IR ordinal; elseStart and elseEnd bound a branch's ELSE
	// part in the same ordinals.
	ord                int
	elseStart, elseEnd int
}

// arc connects arena indices: 0 is start, 1..k the constructs, k+1 end.
type arc struct {
	from, to int
	label    string
}

// Build derives the control-flow graph of ir. Metrics always describe the
// full IR; only the rendered graph is capped.
func Build(ir *parser.IR, opts Options) *Result {
	def := DefaultOptions()
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = def.MaxNodes
	}
	if opts.MaxEdges <= 0 {
		opts.MaxEdges = def.MaxEdges
	}
	if opts.MaxSignals <= 0 {
		opts.MaxSignals = def.MaxSignals
	}
	// start and end are always rendered.
	opts.MaxNodes = max(opts.MaxNodes, 2)

	var cs []construct
	if ir != nil {
		for _, n := range ir.Nodes {
			if typ, ok := constructTypes[n.Kind]; ok {
				cs = append(cs, construct{
					typ:       typ,
					line:      n.Line,
					depth:     n.Depth,
					ord:       n.Ordinal,
					elseStart: n.ElseStart,
					elseEnd:   n.ElseEnd,
				})
			}
		}
	}
	arcs := wire(cs)

	var report collate.Report
	res := &Result{
		Summary:   summarize(ir),
		Errors:    []string{},
		NodeTotal: len(cs) + 2,
		EdgeTotal: len(arcs),
	}
	res.Graph = render(cs, arcs, opts, &report)
	if !report.Empty() {
		res.Errors = append(res.Errors, CodeTruncated)
	}
	res.Signals = collate.Note(&report, collate.CodeMaxItems, "control_flow.signals", opts.MaxSignals,
		collate.Strings(signals(ir), collate.Upper, opts.MaxSignals))
	res.Truncations = report.Entries()
	return res
}

func summarize(ir *parser.IR) Summary {
	if ir == nil {
		return Summary{CyclomaticComplexity: 1}
	}
	s := Summary{
		BranchCount:     ir.Count(parser.KindBranch),
		LoopCount:       ir.Count(parser.KindLoop),
		ReturnCount:     ir.Count(parser.KindReturn),
		GotoCount:       ir.Count(parser.KindGoto),
		MaxNestingDepth: ir.MaxDepth,
	}
	s.HasBranching = s.BranchCount > 0
	s.HasLoops = s.LoopCount > 0
	s.HasTryCatch = ir.Count(parser.KindTry) > 0
	s.HasGoto = s.GotoCount > 0
	s.HasReturn = s.ReturnCount > 0
	s.CyclomaticComplexity = 1 + s.BranchCount + s.LoopCount
	return s
}

// signals names the control keywords present in ir.
func signals(ir *parser.IR) []string {
	if ir == nil {
		return nil
	}
	var out []string
	for _, n := range ir.Nodes {
		if name, ok := signalNames[n.Kind]; ok {
			out = append(out, name)
		}
		if n.Kind == parser.KindBranch && n.HasElse {
			out = append(out, "ELSE")
		}
	}
	return out
}

func wire(cs []construct) []arc {
	k := len(cs)
	end := k + 1
	seen := make(map[arc]bool)
	var arcs []arc
	add := func(from, to int, label string) {
		a := arc{from, to, label}
		if !seen[a] {
			seen[a] = true
			arcs = append(arcs, a)
		}
	}

	first := end
	if k > 0 {
		first = 1
	}
	add(0, first, EdgeNext)

	for i, c := range cs {
		id := i + 1
		if c.typ == TypeReturn {
			add(id, end, EdgeReturn)
			continue
		}
		closed := closeOf(cs, i)
		nested := i+1 < closed

		switch c.typ {
		case TypeIf:
			if j := thenFirst(cs, i, closed); j >= 0 {
				add(id, j+1, EdgeTrue)
			} else {
				add(id, afterOf(cs, i), EdgeNext)
			}
			if j := elseFirst(cs, i, closed); j >= 0 {
				add(id, j+1, EdgeFalse)
			} else {
				add(id, afterOf(cs, i), EdgeFalse)
			}
		case TypeWhile:
			if nested {
				add(id, id+1, EdgeBody)
			} else {
				add(id, afterOf(cs, i), EdgeNext)
			}
			add(id, afterOf(cs, i), EdgeExit)
			if from, ok := loopBack(cs, i, closed); ok {
				add(from+1, id, EdgeLoop)
			}
		case TypeTry, TypeCatch:
			if nested {
				add(id, id+1, EdgeBody)
			} else {
				add(id, afterOf(cs, i), EdgeNext)
			}
			if c.typ == TypeTry {
				if catch := catchOf(cs, i); catch > 0 {
					add(id, catch, EdgeError)
				}
			}
		default:
			add(id, afterOf(cs, i), EdgeNext)
		}
	}
	return arcs
}

// closeOf returns the index of the first construct after the body of cs[i],
// or len(cs). A branch with a delimited ELSE part closes after it.
func closeOf(cs []construct, i int) int {
	c := cs[i]
	for j := i + 1; j < len(cs); j++ {
		if c.typ == TypeIf && c.elseEnd > 0 {
			if cs[j].ord >= c.elseEnd {
				return j
			}
			continue
		}
		if cs[j].depth <= c.depth {
			return j
		}
	}
	return len(cs)
}

func inElse(c construct, ord int) bool {
	return c.elseEnd > 0 && ord >= c.elseStart && ord < c.elseEnd
}

// thenFirst returns the first construct of a branch's THEN part, or -1.
func thenFirst(cs []construct, i, closed int) int {
	if j := i + 1; j < closed && !inElse(cs[i], cs[j].ord) {
		return j
	}
	return -1
}

// elseFirst returns the first construct of a branch's ELSE part, or -1.
func elseFirst(cs []construct, i, closed int) int {
	for j := i + 1; j < closed; j++ {
		if inElse(cs[i], cs[j].ord) {
			return j
		}
	}
	return -1
}

// afterOf returns the arena index control reaches once cs[i] and its body
// complete. Leaving a THEN part skips the matching ELSE part.
func afterOf(cs []construct, i int) int {
	j := closeOf(cs, i)
	if j < len(cs) {
		for p := i - 1; p >= 0; p-- {
			b := cs[p]
			if b.typ == TypeIf && b.ord < cs[i].ord && cs[i].ord < b.elseStart && inElse(b, cs[j].ord) {
				return afterOf(cs, p)
			}
		}
	}
	return j + 1
}

// loopBack returns the last top-level construct of the loop body at cs[i],
// or the loop itself when the body holds none. A body ending in RETURN has
// no back edge.
func loopBack(cs []construct, i, closed int) (int, bool) {
	if closed == i+1 {
		return i, true
	}
	top := cs[i+1].depth
	for j := closed - 1; j > i; j-- {
		if cs[j].depth <= top {
			return j, cs[j].typ != TypeReturn
		}
	}
	return i, true
}

// catchOf returns the arena index of the catch paired with the try at
// cs[i], or 0.
func catchOf(cs []construct, i int) int {
	for j := i + 1; j < len(cs); j++ {
		switch {
		case cs[j].depth < cs[i].depth:
			return 0
		case cs[j].depth == cs[i].depth:
			if cs[j].typ == TypeCatch {
				return j + 1
			}
			return 0
		}
	}
	return 0
}

// render keeps start, the earliest constructs that fit and end, then the
// earliest edges among kept nodes. Cuts are noted in report.
func render(cs []construct, arcs []arc, opts Options, report *collate.Report) Graph {
	k := len(cs)
	end := k + 1

	order := make([]int, k)
	for i := range order {
		order[i] = i + 1
	}
	nodes := collate.Apply(order, collate.Spec[int]{
		Key:     func(idx int) string { return nodeID(idx, end) },
		Compare: cmp.Compare[int],
		Limit:   opts.MaxNodes - 2,
	})
	kept := len(nodes.Items)
	if nodes.Truncated {
		report.Add(collate.Truncation{Code: CodeTruncated, Context: "control_flow.nodes", Limit: opts.MaxNodes, Total: k + 2})
	}

	g := Graph{Nodes: make([]Node, 0, kept+2)}
	g.Nodes = append(g.Nodes, Node{ID: TypeStart, Type: TypeStart, Label: "START"})
	for _, idx := range nodes.Items {
		g.Nodes = append(g.Nodes, Node{ID: nodeID(idx, end), Type: cs[idx-1].typ, Label: label(cs[idx-1])})
	}
	g.Nodes = append(g.Nodes, Node{ID: TypeEnd, Type: TypeEnd, Label: "END"})

	type ranked struct {
		rank int
		edge Edge
	}
	var shown []ranked
	for i, a := range arcs {
		if visible(a.from, kept, end) && visible(a.to, kept, end) {
			shown = append(shown, ranked{i, Edge{From: nodeID(a.from, end), To: nodeID(a.to, end), Label: a.label}})
		}
	}
	edges := collate.Apply(shown, collate.Spec[ranked]{
		Key:     func(r ranked) string { return r.edge.From + ">" + r.edge.To + ":" + r.edge.Label },
		Compare: func(a, b ranked) int { return cmp.Compare(a.rank, b.rank) },
		Limit:   opts.MaxEdges,
	})
	if edges.Truncated {
		report.Add(collate.Truncation{Code: CodeTruncated, Context: "control_flow.edges", Limit: opts.MaxEdges, Total: len(arcs)})
	}
	g.Edges = make([]Edge, len(edges.Items))
	for i, r := range edges.Items {
		g.Edges[i] = r.edge
	}
	return g
}

func visible(idx, kept, end int) bool {
	return idx == 0 || idx == end || idx <= kept
}

func nodeID(idx, end int) string {
	switch idx {
	case 0:
		return TypeStart
	case end:
		return TypeEnd
	}
	return "n" + strconv.Itoa(idx)
}

func label(c construct) string {
	return fmt.Sprintf("%s (line %d)", strings.ToUpper(c.typ), c.line)
}
