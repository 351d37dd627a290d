package parser

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/collate"
)

const (
	namePart = `(?:\[[^\]\n]*\]|"[^"\n]*"|[A-Za-z_#][\w#$@]*)`
	namePat  = namePart + `(?:\.\.?` + namePart + `)*`
	topPat   = `(?:\s+TOP\s*(?:\([^)]*\)|\d+)(?:\s+PERCENT)?)?`
	dmlName  = `(@\w+|` + namePat + `)`
)

// match is one regex hit handed to a rule's build function.
type match struct {
	src  string
	loc  []int
	prev token
}

func (m match) has(i int) bool { return m.loc[2*i] >= 0 }

func (m match) group(i int) string {
	if !m.has(i) {
		return ""
	}
	return m.src[m.loc[2*i]:m.loc[2*i+1]]
}

// after returns the first non-space byte following the match, or 0.
func (m match) after() byte {
	for i := m.loc[1]; i < len(m.src); i++ {
		if c := m.src[i]; c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return c
		}
	}
	return 0
}

type fallbackRule struct {
	kind  Kind
	verb  string
	re    *regexp.Regexp
	build func(m match, n *Node) bool
}

func kw(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + pattern)
}

var fallbackRules = []fallbackRule{
	{kind: KindBranch, re: kw(`IF\b`), build: func(m match, _ *Node) bool {
		return !(m.prev.kind == tWord && dropTargets[m.prev.upper])
	}},
	{kind: KindLoop, re: kw(`WHILE\b`)},
	{kind: KindTry, re: kw(`BEGIN\s+TRY\b`)},
	{kind: KindCatch, re: kw(`BEGIN\s+CATCH\b`)},
	{kind: KindReturn, re: kw(`RETURN\b(?:[ \t]+([+-]?\d+)\b)?`), build: returnValue},
	{kind: KindGoto, re: kw(`GOTO\s+(\w+)`), build: targetGroup},
	{kind: KindLabel, re: kw(`([A-Za-z_]\w*)[ \t]*:`), build: label},
	{kind: KindBreak, re: kw(`BREAK\b`)},
	{kind: KindContinue, re: kw(`CONTINUE\b`)},

	{kind: KindCall, re: kw(`EXEC(?:UTE)?\b\s*(?:(\()|(@\w+)\s*=\s*(` + namePat + `)|(@\w+)|(` + namePat + `))`), build: execCall},

	{kind: KindDML, verb: VerbInsert, re: kw(`INSERT\b` + topPat + `(?:\s+INTO\b)?\s+` + dmlName), build: dmlTargetGroup},
	{kind: KindDML, verb: VerbUpdate, re: kw(`UPDATE\b` + topPat + `\s+` + dmlName), build: dmlTargetGroup},
	{kind: KindDML, verb: VerbDelete, re: kw(`DELETE\b` + topPat + `(?:\s+FROM\b)?\s+` + dmlName), build: dmlTargetGroup},
	{kind: KindDML, verb: VerbMerge, re: kw(`MERGE\b` + topPat + `(?:\s+INTO\b)?\s+` + dmlName), build: dmlTargetGroup},
	{kind: KindDML, verb: VerbTruncate, re: kw(`TRUNCATE\s+TABLE\s+(` + namePat + `)`), build: targetGroup},

	{kind: KindTransaction, verb: VerbBegin, re: kw(`BEGIN\s+(?:DISTRIBUTED\s+)?TRAN(?:SACTION)?\b`)},
	{kind: KindTransaction, verb: VerbCommit, re: kw(`COMMIT\b`)},
	{kind: KindTransaction, verb: VerbRollback, re: kw(`ROLLBACK\b`), build: func(m match, _ *Node) bool {
		return !m.prev.isWord("WITH")
	}},
	{kind: KindTransaction, verb: VerbSave, re: kw(`SAVE\s+TRAN(?:SACTION)?\s+(@?\w+)`), build: targetGroup},

	{kind: KindOption, verb: VerbXactAbort, re: kw(`SET\s+XACT_ABORT\s+(ON|OFF)\b`), build: valueGroup},
	{kind: KindOption, verb: VerbIsolation, re: kw(`SET\s+TRANSACTION\s+ISOLATION\s+LEVEL\s+(READ\s+UNCOMMITTED|READ\s+COMMITTED|REPEATABLE\s+READ|SNAPSHOT|SERIALIZABLE)\b`), build: valueGroup},

	{kind: KindRaise, verb: VerbThrow, re: kw(`THROW\b`)},
	{kind: KindRaise, verb: VerbRaiserror, re: kw(`RAISERROR\s*\(`)},
	{kind: KindPrint, re: kw(`PRINT\b`)},

	{kind: KindCursor, verb: VerbDeclare, re: kw(`DECLARE\s+(` + namePat + `)\s+(?:(?:INSENSITIVE|SCROLL)\s+)*CURSOR\b`), build: targetGroup},
	{kind: KindCursor, verb: VerbDeclare, re: kw(`SET\s+(@\w+)\s*=\s*CURSOR\b`), build: targetGroup},
	{kind: KindCursor, verb: VerbOpen, re: kw(`OPEN\b`)},
	{kind: KindCursor, verb: VerbFetch, re: kw(`FETCH\b`), build: func(m match, _ *Node) bool {
		return !(m.prev.isWord("ROWS") || m.prev.isWord("ROW"))
	}},
	{kind: KindCursor, verb: VerbClose, re: kw(`CLOSE\b`)},
	{kind: KindCursor, verb: VerbDeallocate, re: kw(`DEALLOCATE\b`)},
}

func targetGroup(m match, n *Node) bool {
	n.Target = m.group(1)
	return true
}

func valueGroup(m match, n *Node) bool {
	n.Value = strings.Join(strings.Fields(strings.ToUpper(m.group(1))), " ")
	return true
}

func returnValue(m match, n *Node) bool {
	if !m.has(1) || m.after() == '.' {
		return true
	}
	if v, err := strconv.ParseInt(m.group(1), 10, 64); err == nil {
		n.Value = strconv.FormatInt(v, 10)
	}
	return true
}

func label(m match, n *Node) bool {
	if m.loc[1] < len(m.src) && m.src[m.loc[1]] == ':' {
		return false
	}
	word := strings.ToUpper(m.group(1))
	if reserved[word] || statementStarts[word] {
		return false
	}
	n.Target = m.group(1)
	return true
}

func firstPartReserved(name string) bool {
	parts := collate.SplitQualified(name)
	return len(parts) > 0 && !strings.HasPrefix(name, "[") && !strings.HasPrefix(name, `"`) &&
		reserved[strings.ToUpper(parts[0])]
}

func execCall(m match, n *Node) bool {
	if m.prev.isWord("WITH") {
		return false
	}
	n.Verb = VerbExec
	if strings.HasPrefix(strings.ToUpper(m.group(0)), "EXECUTE") {
		n.Verb = VerbExecute
	}
	switch {
	case m.has(1), m.has(4):
		n.Dynamic = true
	case m.has(3):
		n.Target = m.group(3)
	default:
		name := m.group(5)
		if firstPartReserved(name) {
			return false
		}
		n.Target = name
	}
	if n.Target != "" && isDynamicExec(n.Target) {
		n.Dynamic = true
	}
	return true
}

func dmlTargetGroup(m match, n *Node) bool {
	if m.prev.isPunct(",") {
		return false
	}
	if m.prev.kind == tWord {
		switch m.prev.upper {
		case "ON", "FOR", "AFTER", "OF", "THEN":
			return false
		}
	}
	name := m.group(1)
	switch {
	case strings.HasPrefix(name, "@"):
		return true
	case firstPartReserved(name), strings.EqualFold(name, "STATISTICS"):
		return false
	case m.after() == '(' && isRowsetFunction(name):
		return true
	}
	n.Target = name
	return true
}

// scanFallback recovers IR nodes from leniently masked text with regular
// expressions. Nesting depth is approximated from unmatched BEGIN, CASE and
// END tokens preceding each node.
func scanFallback(masked string, toks []token) *IR {
	ir := &IR{}
	headers := annotate(ir, toks)

	at := make(map[int]int, len(toks))
	for i, t := range toks {
		if t.kind == tWord {
			at[t.off] = i
		}
	}
	inHeader := func(off int) bool {
		for _, h := range headers {
			if off >= toks[h.start].off && off < toks[h.body].off {
				return true
			}
		}
		return false
	}

	var nodes []Node
	for _, r := range fallbackRules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(masked, -1) {
			i, ok := at[loc[0]]
			if !ok || inHeader(loc[0]) {
				continue
			}
			m := match{src: masked, loc: loc}
			if i > 0 {
				m.prev = toks[i-1]
			}
			if r.kind == KindLabel && !labelPosition(toks, i) {
				continue
			}
			n := Node{Kind: r.kind, Verb: r.verb, Offset: toks[i].off, Line: toks[i].line}
			if r.build != nil && !r.build(m, &n) {
				continue
			}
			nodes = append(nodes, n)
		}
	}
	nodes = append(nodes, selectInto(toks, inHeader)...)
	slices.SortStableFunc(nodes, func(a, b Node) int { return cmp.Compare(a.Offset, b.Offset) })

	markOutput(nodes, toks)
	ir.MaxDepth = assignDepths(nodes, toks, headers)
	for _, n := range nodes {
		ir.emit(n)
	}
	resolveAliases(ir, toks)
	return ir
}

// labelPosition reports whether the word at i begins its statement.
func labelPosition(toks []token, i int) bool {
	if i == 0 {
		return true
	}
	prev := toks[i-1]
	return prev.isPunct(";") || prev.line < toks[i].line
}

// selectInto finds SELECT ... INTO: an INTO whose nearest preceding
// statement verb is SELECT.
func selectInto(toks []token, inHeader func(int) bool) []Node {
	var out []Node
	last := -1
	used := -1
	for i, t := range toks {
		if t.kind != tWord {
			continue
		}
		switch t.upper {
		case "SELECT", "INSERT", "MERGE", "OUTPUT", "FETCH":
			last = i
		case "INTO":
			if last < 0 || last == used || !toks[last].isWord("SELECT") || inHeader(t.off) {
				continue
			}
			sel := toks[last]
			n := Node{Kind: KindDML, Verb: VerbSelectInto, Offset: sel.off, Line: sel.line}
			if name, _, ok := readName(toks, i+1, false); ok {
				n.Target = name
			}
			out = append(out, n)
			used = last
		}
	}
	return out
}

// markOutput flags DML nodes followed by an OUTPUT keyword before the next
// node.
func markOutput(nodes []Node, toks []token) {
	var outputs []int
	for _, t := range toks {
		if t.isWord("OUTPUT") {
			outputs = append(outputs, t.off)
		}
	}
	for i := range nodes {
		if nodes[i].Kind != KindDML {
			continue
		}
		end := toks[len(toks)-1].off
		if i+1 < len(nodes) {
			end = nodes[i+1].Offset
		}
		j, _ := slices.BinarySearch(outputs, nodes[i].Offset+1)
		if j < len(outputs) && outputs[j] < end {
			nodes[i].Output = true
		}
	}
}

type frame int

const (
	frameUncounted frame = iota
	frameBlock
	frameCase
)

// assignDepths sets each node's depth to the number of open BEGIN blocks
// before it and returns the deepest nesting seen. A BEGIN that opens a
// routine body does not count.
func assignDepths(nodes []Node, toks []token, headers []routineHeader) int {
	bodies := make(map[int]bool, len(headers))
	for _, h := range headers {
		bodies[h.body] = true
	}

	var stack []frame
	depth, maxDepth := 0, 0
	apply := func(i int) {
		t := toks[i]
		if t.kind != tWord {
			return
		}
		switch t.upper {
		case "BEGIN":
			switch tokAt(toks, i+1).upper {
			case "TRAN", "TRANSACTION", "DISTRIBUTED", "CONVERSATION", "DIALOG":
				return
			}
			if bodies[i] {
				stack = append(stack, frameUncounted)
				return
			}
			stack = append(stack, frameBlock)
			depth++
			maxDepth = max(maxDepth, depth)
		case "CASE":
			stack = append(stack, frameCase)
		case "END":
			if len(stack) == 0 {
				return
			}
			if stack[len(stack)-1] == frameBlock {
				depth--
			}
			stack = stack[:len(stack)-1]
		}
	}

	ti := 0
	for k := range nodes {
		for ti < len(toks) && toks[ti].off < nodes[k].Offset {
			apply(ti)
			ti++
		}
		nodes[k].Depth = depth
	}
	for ; ti < len(toks); ti++ {
		apply(ti)
	}
	return maxDepth
}
