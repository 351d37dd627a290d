package parser

import (
	"cmp"
	"context"
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/sql"

	"github.com/panbanda/tsqlgraph/pkg/collate"
)

// relationParents are grammar nodes whose object references name a rowset.
var relationParents = map[string]bool{
	"relation": true,
	"from":     true,
	"join":     true,
}

// supplementRelations adds table references that the tree-sitter SQL grammar
// finds in FROM and JOIN clauses and the token scan missed. It is
// best-effort: any parser failure leaves ir unchanged.
func supplementRelations(ctx context.Context, ir *IR, masked string, toks []token) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(sql.GetLanguage())

	src := []byte(masked)
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return
	}
	defer tree.Close()

	seen := make(map[int]bool, len(ir.Refs))
	for _, r := range ir.Refs {
		seen[r.Offset] = true
	}
	ctes := cteNames(toks)
	at := make(map[int]int, len(toks))
	for i, t := range toks {
		at[t.off] = i
	}

	added := false
	walk(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != "object_reference" && n.Type() != "table_reference" {
			return
		}
		parent := n.Parent()
		if parent == nil || !relationParents[parent.Type()] {
			return
		}
		start, end := int(n.StartByte()), int(n.EndByte())
		if seen[start] || end > len(src) {
			return
		}
		i, ok := at[start]
		if !ok {
			return
		}
		name, next, ok := readName(toks, i, false)
		if !ok || tokAt(toks, next).isPunct("(") {
			return
		}
		last := toks[next-1]
		if last.off+len(last.text) != end {
			return
		}
		switch canon := collate.Identifier(name); {
		case ctes[canon], canon == "INSERTED", canon == "DELETED":
			return
		}
		ir.Refs = append(ir.Refs, Ref{Kind: RefTable, Name: name, Offset: start})
		seen[start] = true
		added = true
	})
	if added {
		slices.SortStableFunc(ir.Refs, func(a, b Ref) int { return cmp.Compare(a.Offset, b.Offset) })
	}
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := range int(n.ChildCount()) {
		walk(n.Child(i), visit)
	}
}
