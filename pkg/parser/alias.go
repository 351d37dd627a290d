package parser

import (
	"slices"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/collate"
)

// resolveAliases rewrites UPDATE and DELETE targets written as a FROM or JOIN
// alias ("UPDATE o SET ... FROM dbo.Orders o") to the aliased table and drops
// the alias from the table references.
func resolveAliases(ir *IR, toks []token) {
	at := make(map[int]int, len(toks))
	for i, t := range toks {
		at[t.off] = i
	}

	drop := make(map[int]bool)
	for k, n := range ir.Nodes {
		if n.Kind != KindDML || (n.Verb != VerbUpdate && n.Verb != VerbDelete) {
			continue
		}
		if n.Target == "" || strings.HasPrefix(n.Target, "#") || len(collate.SplitQualified(n.Target)) != 1 {
			continue
		}
		stmt, ok := at[n.Offset]
		if !ok {
			continue
		}
		target, ok := targetToken(toks, stmt, n.Target)
		if !ok {
			continue
		}
		if table, ok := aliasedTable(toks, target, n.Target); ok {
			ir.Nodes[k].Target = table
			drop[toks[target].off] = true
		}
	}
	if len(drop) > 0 {
		ir.Refs = slices.DeleteFunc(ir.Refs, func(r Ref) bool {
			return r.Kind == RefTable && drop[r.Offset]
		})
	}
}

// targetToken finds the token holding target shortly after the statement
// keyword at stmt, past TOP and FROM.
func targetToken(toks []token, stmt int, target string) (int, bool) {
	for j := stmt + 1; j < len(toks) && j <= stmt+8; j++ {
		if toks[j].isName() && toks[j].text == target {
			return j, true
		}
	}
	return 0, false
}

// aliasedTable scans the rest of the statement after the target token for a
// top-level FROM or JOIN source whose alias is alias.
func aliasedTable(toks []token, target int, alias string) (string, bool) {
	want := collate.Identifier(alias)
	depth := 0
	sets := 0
	for j := target + 1; j < len(toks); j++ {
		t := toks[j]
		switch {
		case t.kind == tEOF:
			return "", false
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
			if depth < 0 {
				return "", false
			}
		case depth > 0:
		case t.isPunct(";"):
			return "", false
		case t.isWord("FROM"), t.isWord("JOIN"):
			name, next, ok := readName(toks, j+1, false)
			if !ok || tokAt(toks, next).isPunct("(") {
				continue
			}
			if tokAt(toks, next).isWord("AS") {
				next++
			}
			a := tokAt(toks, next)
			if !a.isName() || (a.kind == tWord && reserved[a.upper]) {
				continue
			}
			if collate.Identifier(a.text) == want {
				return name, true
			}
		case t.kind == tWord && isStatementStart(toks, j):
			// UPDATE's own SET clause looks like a statement start.
			if t.upper == "SET" && sets == 0 {
				sets++
				continue
			}
			return "", false
		}
	}
	return "", false
}
