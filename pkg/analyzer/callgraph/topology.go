package callgraph

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// arena is an index-addressed view of a graph: node i is ids[i] and out[i]
// holds one successor entry per edge leaving i.
type arena struct {
	ids   []string
	index map[string]int
	out   [][]int
	in    []int
}

func newArena(nodes []Node, edges []Edge) *arena {
	a := &arena{
		ids:   make([]string, len(nodes)),
		index: make(map[string]int, len(nodes)),
		out:   make([][]int, len(nodes)),
		in:    make([]int, len(nodes)),
	}
	for i, n := range nodes {
		a.ids[i] = n.ID
		a.index[n.ID] = i
	}
	for _, e := range edges {
		from, ok := a.index[e.From]
		if !ok {
			continue
		}
		to, ok := a.index[e.To]
		if !ok {
			continue
		}
		a.out[from] = append(a.out[from], to)
		a.in[to]++
	}
	return a
}

// topology computes roots, leaves, degrees and cycle presence. Roots and
// leaves follow the arena order, which is sorted by id.
func (a *arena) topology() Topology {
	t := Topology{
		Roots:     []string{},
		Leaves:    []string{},
		InDegree:  make(map[string]int, len(a.ids)),
		OutDegree: make(map[string]int, len(a.ids)),
		HasCycles: a.hasCycles(),
	}
	for i, id := range a.ids {
		t.InDegree[id] = a.in[i]
		t.OutDegree[id] = len(a.out[i])
		if a.in[i] == 0 {
			t.Roots = append(t.Roots, id)
		}
		if len(a.out[i]) == 0 {
			t.Leaves = append(t.Leaves, id)
		}
	}
	return t
}

// hasCycles reports a self-call or any strongly connected component with
// more than one node.
func (a *arena) hasCycles() bool {
	g := simple.NewDirectedGraph()
	for i := range a.ids {
		g.AddNode(simple.Node(i))
	}
	for from, succ := range a.out {
		for _, to := range succ {
			// simple graphs reject self-loops.
			if from == to {
				return true
			}
			g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) > 1 {
			return true
		}
	}
	return false
}
