package parser

import (
	"cmp"
	"slices"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/collate"
)

// tokAt returns toks[i], or the trailing EOF token when i is out of range.
func tokAt(toks []token, i int) token {
	if i >= len(toks) {
		return toks[len(toks)-1]
	}
	return toks[i]
}

// readName reads a dotted name starting at i. Reserved words are rejected as
// a first part unless allowReserved is set.
func readName(toks []token, i int, allowReserved bool) (string, int, bool) {
	first := tokAt(toks, i)
	if !first.isName() {
		return "", i, false
	}
	if first.kind == tWord && reserved[first.upper] && !allowReserved {
		return "", i, false
	}
	var b strings.Builder
	b.WriteString(first.text)
	j := i + 1
	for tokAt(toks, j).isPunct(".") {
		b.WriteByte('.')
		j++
		if tokAt(toks, j).isPunct(".") {
			continue
		}
		if !tokAt(toks, j).isName() {
			return "", i, false
		}
		b.WriteString(toks[j].text)
		j++
	}
	return b.String(), j, true
}

// matchParen returns the index of the parenthesis closing the one at open,
// or the EOF index when it is never closed.
func matchParen(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].isPunct("("):
			depth++
		case toks[i].isPunct(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks) - 1
}

func baseName(name string) string {
	parts := collate.SplitQualified(name)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func isDynamicExec(name string) bool {
	return strings.EqualFold(baseName(name), "sp_executesql")
}

func isRowsetFunction(name string) bool {
	switch strings.ToUpper(baseName(name)) {
	case "OPENQUERY", "OPENROWSET", "OPENDATASOURCE", "OPENXML", "OPENJSON":
		return true
	}
	return false
}

// isStatementStart reports whether the token at i begins a new statement.
func isStatementStart(toks []token, i int) bool {
	t := toks[i]
	if t.kind != tWord || !statementStarts[t.upper] {
		return false
	}
	var prev token
	if i > 0 {
		prev = toks[i-1]
	}
	next := tokAt(toks, i+1)

	switch t.upper {
	case "WITH":
		// Only a common table expression starts a statement; hints and
		// options (WITH (NOLOCK), WITH NOWAIT) continue the current one.
		if !next.isName() || (next.kind == tWord && reserved[next.upper]) {
			return false
		}
		after := tokAt(toks, i+2)
		return after.isWord("AS") || after.isPunct("(")
	case "SELECT":
		if prev.kind == tWord {
			switch prev.upper {
			case "UNION", "ALL", "EXCEPT", "INTERSECT", "FOR":
				return false
			}
		}
	case "IF":
		return !(prev.kind == tWord && dropTargets[prev.upper])
	case "ALTER":
		return !prev.isWord("OR")
	case "UPDATE", "DELETE", "INSERT":
		if t.upper == "UPDATE" && next.isPunct("(") {
			return false
		}
		if prev.isPunct(",") {
			return false
		}
		if prev.kind == tWord {
			switch prev.upper {
			case "ON", "FOR", "AFTER", "OF", "THEN":
				return false
			}
		}
	case "SET":
		return !(prev.isWord("DELETE") || prev.isWord("UPDATE"))
	case "EXEC", "EXECUTE":
		return !prev.isWord("WITH")
	case "FETCH":
		return !(prev.isWord("ROWS") || prev.isWord("ROW"))
	case "GO":
		return i == 0 || prev.line != t.line
	}
	return true
}

// isLabel reports whether the word at i is a GOTO label definition.
func isLabel(toks []token, i int) bool {
	t := toks[i]
	if t.kind != tWord || statementStarts[t.upper] || reserved[t.upper] {
		return false
	}
	return tokAt(toks, i+1).isPunct(":")
}

type routineHeader struct {
	routine   Routine
	start     int
	nameStart int
	nameEnd   int
	body      int
	outputs   []Ref
}

// readRoutineHeader recognizes CREATE/ALTER PROCEDURE, FUNCTION, TRIGGER and
// VIEW headers up to and including the AS that opens the body.
func readRoutineHeader(toks []token, i int) (routineHeader, bool) {
	h := routineHeader{start: i}
	j := i
	if !toks[j].isWord("CREATE") && !toks[j].isWord("ALTER") {
		return h, false
	}
	j++
	if toks[j].isWord("OR") && tokAt(toks, j+1).isWord("ALTER") {
		j += 2
	}
	kind, ok := routineKinds[tokAt(toks, j).upper]
	if !ok || toks[j].kind != tWord {
		return h, false
	}
	j++
	name, next, ok := readName(toks, j, false)
	if !ok {
		return h, false
	}
	h.routine = Routine{Kind: kind, Name: name}
	h.nameStart, h.nameEnd = j, next

	depth := 0
	param := ""
	for k := next; toks[k].kind != tEOF; k++ {
		t := toks[k]
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		case t.isPunct(",") && depth <= 1:
			param = ""
		case t.kind == tVar && param == "" && depth <= 1:
			param = t.text
		case (t.isWord("OUTPUT") || t.isWord("OUT")) && param != "" && depth <= 1:
			h.outputs = append(h.outputs, Ref{Kind: RefOutputParam, Name: param, Offset: t.off})
			param = ""
		case t.isWord("AS") && depth == 0:
			prev := toks[k-1]
			if prev.kind == tVar || prev.isWord("EXECUTE") || prev.isWord("EXEC") {
				continue
			}
			h.body = k + 1
			return h, true
		}
	}
	return h, false
}

func findHeaders(toks []token) []routineHeader {
	var out []routineHeader
	for i := range toks {
		if h, ok := readRoutineHeader(toks, i); ok {
			out = append(out, h)
		}
	}
	return out
}

// annotate fills the parser-independent parts of ir: routines and
// token-level references.
func annotate(ir *IR, toks []token) []routineHeader {
	headers := findHeaders(toks)
	skip := make(map[int]bool)
	for _, h := range headers {
		ir.Routines = append(ir.Routines, h.routine)
		for i := h.nameStart; i < h.nameEnd; i++ {
			skip[i] = true
		}
	}
	refs := scanRefs(toks, skip)
	for _, h := range headers {
		refs = append(refs, h.outputs...)
	}
	slices.SortStableFunc(refs, func(a, b Ref) int { return cmp.Compare(a.Offset, b.Offset) })
	ir.Refs = refs
	return headers
}

func scanRefs(toks []token, skip map[int]bool) []Ref {
	ctes := cteNames(toks)
	var refs []Ref
	for i := 0; i < len(toks); i++ {
		if skip[i] {
			continue
		}
		t := toks[i]
		switch t.kind {
		case tSysVar:
			refs = append(refs, Ref{Kind: RefSystem, Name: t.upper, Offset: t.off})
			continue
		case tWord, tQuoted:
		default:
			continue
		}

		if t.kind == tWord {
			if t.upper == "INSERTED" || t.upper == "DELETED" {
				refs = append(refs, Ref{Kind: RefPseudo, Name: t.upper, Offset: t.off})
				continue
			}
			if at, ok := tableAfter(toks, i); ok && !skip[at] {
				name, next, _ := readName(toks, at, false)
				canon := collate.Identifier(name)
				tvf := tokAt(toks, next).isPunct("(") && (isRowsetFunction(name) || !columnListAllowed(t.upper))
				if !ctes[canon] && canon != "INSERTED" && canon != "DELETED" && !tvf {
					refs = append(refs, Ref{Kind: RefTable, Name: name, Offset: toks[at].off})
				}
			}
		}

		if i > 0 && toks[i-1].isPunct(".") {
			continue
		}
		name, next, ok := readName(toks, i, true)
		if !ok || !tokAt(toks, next).isPunct("(") {
			continue
		}
		if isFunctionCall(toks, i, next, name) {
			refs = append(refs, Ref{Kind: RefFunction, Name: name, Offset: t.off})
		}
		i = next - 1
	}
	return refs
}

func columnListAllowed(keyword string) bool {
	switch keyword {
	case "INTO", "INSERT", "MERGE", "TRUNCATE":
		return true
	}
	return false
}

// tableAfter returns the index of the table name introduced by the keyword
// at i, if any.
func tableAfter(toks []token, i int) (int, bool) {
	t := toks[i]
	var prev token
	if i > 0 {
		prev = toks[i-1]
	}
	j := i + 1
	switch t.upper {
	case "FROM":
		if fetchFrom(toks, i) {
			return 0, false
		}
	case "JOIN", "USING", "INTO":
	case "UPDATE", "DELETE", "INSERT":
		switch prev.upper {
		case "ON", "FOR", "AFTER", "OF", ",":
			return 0, false
		}
		j = skipTopTokens(toks, j)
		if t.upper == "DELETE" && tokAt(toks, j).isWord("FROM") {
			return 0, false
		}
		if t.upper == "INSERT" && tokAt(toks, j).isWord("INTO") {
			return 0, false
		}
	case "MERGE":
		j = skipTopTokens(toks, j)
		if tokAt(toks, j).isWord("INTO") {
			return 0, false
		}
	case "TRUNCATE":
		if !tokAt(toks, j).isWord("TABLE") {
			return 0, false
		}
		j++
	default:
		return 0, false
	}
	if tokAt(toks, j).isWord("STATISTICS") {
		return 0, false
	}
	if _, _, ok := readName(toks, j, false); !ok {
		return 0, false
	}
	return j, true
}

func skipTopTokens(toks []token, j int) int {
	if !tokAt(toks, j).isWord("TOP") {
		return j
	}
	j++
	if tokAt(toks, j).isPunct("(") {
		j = matchParen(toks, j) + 1
	} else if tokAt(toks, j).kind == tNumber {
		j++
	}
	if tokAt(toks, j).isWord("PERCENT") {
		j++
	}
	return j
}

// fetchFrom reports whether the FROM at i belongs to a FETCH statement.
func fetchFrom(toks []token, i int) bool {
	if i > 0 {
		switch toks[i-1].upper {
		case "NEXT", "PRIOR", "FIRST", "LAST", "FETCH":
			return true
		}
	}
	if i > 1 {
		switch toks[i-2].upper {
		case "ABSOLUTE", "RELATIVE":
			return true
		}
	}
	return false
}

func isFunctionCall(toks []token, i, open int, name string) bool {
	if i > 0 {
		prev := toks[i-1]
		if prev.kind == tWord && nameHeads[prev.upper] {
			return false
		}
	}
	base := strings.ToUpper(baseName(name))
	if base == "" || notFunctions[base] || statementStarts[base] {
		return false
	}
	if reserved[base] && base != "LEFT" && base != "RIGHT" {
		return false
	}
	if i > 0 && toks[i-1].isPunct(",") {
		closing := matchParen(toks, open)
		if tokAt(toks, closing+1).isWord("AS") && tokAt(toks, closing+2).isPunct("(") {
			return false
		}
	}
	return true
}

// cteNames collects the canonical names of common table expressions.
func cteNames(toks []token) map[string]bool {
	names := make(map[string]bool)
	for i := 1; i < len(toks); i++ {
		if !toks[i].isName() {
			continue
		}
		prev := toks[i-1]
		if !prev.isWord("WITH") && !prev.isPunct(",") {
			continue
		}
		j := i + 1
		if tokAt(toks, j).isPunct("(") {
			j = matchParen(toks, j) + 1
		}
		if tokAt(toks, j).isWord("AS") && tokAt(toks, j+1).isPunct("(") {
			names[collate.Identifier(toks[i].text)] = true
		}
	}
	return names
}
