// Package callgraph builds cross-object call graphs and answers callers
// queries over a batch of T-SQL units.
package callgraph

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/panbanda/tsqlgraph/pkg/analyzer/signals"
	"github.com/panbanda/tsqlgraph/pkg/collate"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

const signalLimit = 10

type edgeKey struct {
	from, to, kind string
}

func (k edgeKey) String() string { return k.from + "\x00" + k.to + "\x00" + k.kind }

type edgeStat struct {
	key     edgeKey
	rank    int
	count   int
	signals []string
}

type builder struct {
	opts Options

	nodes     []Node
	units     []parser.Unit
	byID      map[string]int
	baseIndex map[string][]string

	edges     []*edgeStat
	edgeIndex map[edgeKey]*edgeStat
	ambiguous map[[2]string]bool
	issues    []Issue
}

// Build parses every unit and links their call sites. Only the first
// MaxNodes distinct units in input order become nodes and only the first
// MaxEdges distinct edges are kept; both overflows are reported in
// Graph.Errors. A batch larger than MaxTotalChars characters fails with a
// *BatchLimitError.
func Build(ctx context.Context, units []parser.Unit, opts Options) (*Graph, error) {
	def := DefaultOptions()
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = def.MaxNodes
	}
	if opts.MaxEdges <= 0 {
		opts.MaxEdges = def.MaxEdges
	}
	if opts.MaxTotalChars <= 0 {
		opts.MaxTotalChars = def.MaxTotalChars
	}
	if opts.MaxSignals <= 0 {
		opts.MaxSignals = def.MaxSignals
	}
	if err := checkChars(units, opts.MaxTotalChars); err != nil {
		return nil, err
	}

	b := &builder{
		opts:      opts,
		byID:      make(map[string]int),
		baseIndex: make(map[string][]string),
		edgeIndex: make(map[edgeKey]*edgeStat),
		ambiguous: make(map[[2]string]bool),
	}
	truncated := b.collectNodes(units)

	p := opts.Parser
	if p == nil {
		p = parser.New(parser.WithRelations(false))
	}
	for i, u := range b.units {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("building call graph: %w", err)
		}
		sites, res := callSites(ctx, p, u)
		if res.Degraded {
			b.issues = append(b.issues, Issue{ID: IssueParseError, Message: res.Reason, Object: u.Name})
		}
		b.link(b.nodes[i], u.Name, sites)
	}

	kept := collate.Apply(b.edges, collate.Spec[*edgeStat]{
		Key:     func(e *edgeStat) string { return e.key.String() },
		Compare: func(x, y *edgeStat) int { return cmp.Compare(x.rank, y.rank) },
		Limit:   opts.MaxEdges,
	})
	if kept.Truncated {
		truncated = true
		b.issues = append(b.issues, Issue{
			ID:      IssueEdgeLimit,
			Message: fmt.Sprintf("Edge limit exceeded. max_edges=%d.", opts.MaxEdges),
		})
	}

	edges := make([]Edge, 0, len(kept.Items))
	for _, e := range kept.Items {
		sigs := collate.Strings(e.signals, collate.Upper, opts.MaxSignals)
		if sigs.Truncated {
			b.issues = append(b.issues, maxItemsIssue(e.key.from, "edges.signals", opts.MaxSignals, sigs.Total))
		}
		edges = append(edges, Edge{
			From:    e.key.from,
			To:      e.key.to,
			Kind:    e.key.kind,
			Count:   e.count,
			Signals: sigs.Items,
		})
	}

	g := &Graph{
		Graph: Elements{
			Nodes: collate.Apply(b.nodes, collate.Spec[Node]{Key: func(n Node) string { return n.ID }}).Items,
			Edges: collate.Apply(edges, collate.Spec[Edge]{
				Key: func(e Edge) string { return edgeKey{e.From, e.To, e.Kind}.String() },
				Compare: func(x, y Edge) int {
					return cmp.Or(cmp.Compare(x.From, y.From), cmp.Compare(x.To, y.To), cmp.Compare(x.Kind, y.Kind))
				},
			}).Items,
		},
		Errors: sortIssues(b.issues),
	}

	g.Topology = newArena(g.Graph.Nodes, g.Graph.Edges).topology()
	g.Summary = Summary{
		ObjectCount: len(units),
		NodeCount:   len(g.Graph.Nodes),
		EdgeCount:   len(g.Graph.Edges),
		HasCycles:   g.Topology.HasCycles,
		Truncated:   truncated,
	}
	return g, nil
}

// collectNodes registers the first MaxNodes distinct included units in
// input order. It reports whether the node cap was hit.
func (b *builder) collectNodes(units []parser.Unit) bool {
	type candidate struct {
		rank int
		node Node
		unit parser.Unit
	}
	var cands []candidate
	for i, u := range units {
		typ := unitType(u.Type)
		if !b.included(typ) {
			continue
		}
		id := normalizeName(u.Name, b.opts.CaseInsensitive)
		if id == "" {
			continue
		}
		cands = append(cands, candidate{rank: i, node: Node{ID: id, Name: u.Name, Type: typ}, unit: u})
	}
	res := collate.Apply(cands, collate.Spec[candidate]{
		Key:     func(c candidate) string { return c.node.ID },
		Compare: func(x, y candidate) int { return cmp.Compare(x.rank, y.rank) },
		Limit:   b.opts.MaxNodes,
	})
	for _, c := range res.Items {
		b.byID[c.node.ID] = len(b.nodes)
		b.nodes = append(b.nodes, c.node)
		b.units = append(b.units, c.unit)
		_, base := splitName(c.node.ID, false)
		b.baseIndex[base] = append(b.baseIndex[base], c.node.ID)
	}
	if !res.Truncated {
		return false
	}
	for _, c := range cands {
		if _, ok := b.byID[c.node.ID]; !ok {
			b.issues = append(b.issues, Issue{
				ID:      IssueNodeLimit,
				Message: fmt.Sprintf("Node limit exceeded. max_nodes=%d.", b.opts.MaxNodes),
				Object:  c.unit.Name,
			})
			break
		}
	}
	return true
}

func (b *builder) included(typ string) bool {
	if typ == parser.TypeFunction {
		return b.opts.IncludeFunctions
	}
	return b.opts.IncludeProcedures
}

func (b *builder) link(caller Node, callerName string, sites []signals.CallSite) {
	for _, s := range sites {
		if s.Name == "" || (s.Dynamic && b.opts.IgnoreDynamicExec) {
			continue
		}
		target, ok := b.resolve(s.Name, calleeType(s.Kind), callerName)
		if !ok {
			continue
		}
		b.record(edgeKey{caller.ID, target, s.Kind}, signalFor(s.Kind))
	}
}

// resolve maps a call name to a node id of the given type.
func (b *builder) resolve(name, typ, caller string) (string, bool) {
	norm := normalizeName(name, b.opts.CaseInsensitive)
	schema, base := splitName(norm, false)
	isType := func(id string) bool {
		i, ok := b.byID[id]
		return ok && b.nodes[i].Type == typ
	}

	if b.opts.SchemaSensitive {
		if schema != "" && isType(norm) {
			return norm, true
		}
		return "", false
	}
	if schema != "" && isType(norm) {
		return norm, true
	}

	var candidates []string
	for _, id := range b.baseIndex[base] {
		if isType(id) {
			candidates = append(candidates, id)
		}
	}
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], true
	}
	key := [2]string{caller, base}
	if !b.ambiguous[key] {
		b.ambiguous[key] = true
		b.issues = append(b.issues, Issue{
			ID:      IssueAmbiguousTarget,
			Message: fmt.Sprintf("Call to %s is ambiguous across schemas.", base),
			Object:  caller,
		})
	}
	return "", false
}

func (b *builder) record(key edgeKey, signal string) {
	e, ok := b.edgeIndex[key]
	if !ok {
		e = &edgeStat{key: key, rank: len(b.edges)}
		b.edgeIndex[key] = e
		b.edges = append(b.edges, e)
	}
	e.count++
	e.signals = append(e.signals, signal)
}

// sortIssues orders issues by id then object, dropping exact duplicates.
func sortIssues(issues []Issue) []Issue {
	return collate.Apply(issues, collate.Spec[Issue]{
		Key: func(i Issue) string { return i.ID + "\x00" + i.Object + "\x00" + i.Message },
		Compare: func(x, y Issue) int {
			return cmp.Or(cmp.Compare(x.ID, y.ID), cmp.Compare(x.Object, y.Object))
		},
	}).Items
}

func maxItemsIssue(object, list string, limit, total int) Issue {
	return Issue{
		ID:      IssueMaxItems,
		Message: collate.Truncation{Code: collate.CodeMaxItems, Context: list, Limit: limit, Total: total}.String(),
		Object:  object,
	}
}

// callSites parses u and returns its call sites in source order.
func callSites(ctx context.Context, p *parser.Parser, u parser.Unit) ([]signals.CallSite, parser.Result) {
	res := p.Parse(ctx, u)
	return signals.Extract(res.IR, signals.DefaultOptions()).Calls, res
}

func checkChars(units []parser.Unit, limit int) error {
	total := 0
	for _, u := range units {
		total += utf8.RuneCountInString(u.SQL)
	}
	if total > limit {
		return &BatchLimitError{Limit: "chars", Max: limit, Actual: total}
	}
	return nil
}

// unitType maps a declared unit type to procedure or function.
func unitType(t string) string {
	if strings.EqualFold(strings.TrimSpace(t), parser.TypeFunction) {
		return parser.TypeFunction
	}
	return parser.TypeProcedure
}

func calleeType(kind string) string {
	if kind == KindFunction {
		return parser.TypeFunction
	}
	return parser.TypeProcedure
}

func signalFor(kind string) string {
	switch kind {
	case KindExecute:
		return "EXECUTE"
	case KindFunction:
		return "FUNCTION"
	}
	return "EXEC"
}

// normalizeName strips brackets, quotes and whitespace from each part of
// name and lowercases it when ci is set.
func normalizeName(name string, ci bool) string {
	n := collate.QualifiedName(name)
	if ci {
		n = strings.ToLower(n)
	}
	return n
}

// splitName returns the schema (the part before the last) and base name.
func splitName(name string, ci bool) (schema, base string) {
	parts := collate.SplitQualified(name)
	if ci {
		for i := range parts {
			parts[i] = strings.ToLower(parts[i])
		}
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
