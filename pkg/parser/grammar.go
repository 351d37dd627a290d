package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError is returned by the primary grammar. Messages name keywords
// and line numbers only, never source text.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// grammar is a statement-level recursive-descent parser over masked tokens.
// It is strict: anything it cannot account for is a SyntaxError, which
// sends the unit to the fallback scanner.
type grammar struct {
	toks   []token
	pos    int
	ir     *IR
	depth  int
	blocks int
}

func parsePrimary(toks []token) (*IR, error) {
	g := &grammar{toks: toks, ir: &IR{}}
	if err := g.script(); err != nil {
		return nil, err
	}
	return g.ir, nil
}

func (g *grammar) peek() token { return g.toks[g.pos] }

func (g *grammar) peekAt(k int) token { return tokAt(g.toks, g.pos+k) }

func (g *grammar) next() token {
	t := g.toks[g.pos]
	if t.kind != tEOF {
		g.pos++
	}
	return t
}

func (g *grammar) eof() bool { return g.peek().kind == tEOF }

func (g *grammar) accept(kw string) bool {
	if g.peek().isWord(kw) {
		g.pos++
		return true
	}
	return false
}

func (g *grammar) expect(kw string) error {
	if !g.accept(kw) {
		return g.errorf(g.peek(), "expected %s", kw)
	}
	return nil
}

func (g *grammar) errorf(at token, format string, args ...any) error {
	return &SyntaxError{Line: at.line, Msg: fmt.Sprintf(format, args...)}
}

func (g *grammar) node(kind Kind, verb string, at token) Node {
	return Node{Kind: kind, Verb: verb, Offset: at.off, Line: at.line, Depth: g.depth}
}

func (g *grammar) enter() {
	g.depth++
	if g.depth > g.ir.MaxDepth {
		g.ir.MaxDepth = g.depth
	}
}

func (g *grammar) leave() { g.depth-- }

func (g *grammar) atBoundary() bool {
	t := g.peek()
	return t.kind == tEOF || t.isPunct(";") || g.statementAhead()
}

// statementAhead reports whether the current token opens a new statement
// or a label.
func (g *grammar) statementAhead() bool {
	return isStatementStart(g.toks, g.pos) || isLabel(g.toks, g.pos)
}

func (g *grammar) script() error {
	for !g.eof() {
		t := g.peek()
		if t.isWord("CREATE") || t.isWord("ALTER") {
			if h, ok := readRoutineHeader(g.toks, g.pos); ok {
				g.pos = h.body
				continue
			}
			if _, isRoutine := routineKinds[g.routineKeyword()]; isRoutine {
				return g.errorf(t, "%s %s header without AS", t.upper, g.routineKeyword())
			}
		}
		if err := g.statement(); err != nil {
			return err
		}
	}
	return nil
}

func (g *grammar) routineKeyword() string {
	k := 1
	if g.peekAt(1).isWord("OR") {
		k = 3
	}
	return g.peekAt(k).upper
}

// clause consumes the remainder of the current statement and returns the
// number of tokens taken. Statement keywords inside parentheses or CASE
// expressions do not end it.
func (g *grammar) clause() (int, error) {
	start := g.pos
	parens, cases := 0, 0
	for !g.eof() {
		t := g.peek()
		if parens == 0 && cases == 0 {
			if t.isPunct(";") || g.statementAhead() {
				break
			}
		}
		switch {
		case t.isPunct("("):
			parens++
		case t.isPunct(")"):
			if parens == 0 {
				return 0, g.errorf(t, "unbalanced parenthesis")
			}
			parens--
		case t.isWord("CASE"):
			cases++
		case t.isWord("END") && cases > 0:
			cases--
		}
		g.pos++
	}
	if parens > 0 {
		return 0, g.errorf(g.peek(), "unclosed parenthesis")
	}
	if cases > 0 {
		return 0, g.errorf(g.peek(), "CASE without END")
	}
	return g.pos - start, nil
}

func (g *grammar) nonEmptyClause(kw string, at token) error {
	n, err := g.clause()
	if err != nil {
		return err
	}
	if n == 0 {
		return g.errorf(at, "%s requires an expression", kw)
	}
	return nil
}

func (g *grammar) skipParens() error {
	if !g.peek().isPunct("(") {
		return g.errorf(g.peek(), "expected parenthesis")
	}
	closing := matchParen(g.toks, g.pos)
	if !g.toks[closing].isPunct(")") {
		return g.errorf(g.peek(), "unclosed parenthesis")
	}
	g.pos = closing + 1
	return nil
}

func (g *grammar) skipTop() error {
	if !g.accept("TOP") {
		return nil
	}
	switch {
	case g.peek().isPunct("("):
		if err := g.skipParens(); err != nil {
			return err
		}
	case g.peek().kind == tNumber:
		g.pos++
	default:
		return g.errorf(g.peek(), "TOP requires a row count")
	}
	g.accept("PERCENT")
	return nil
}

func (g *grammar) skipHints() error {
	if g.peek().isWord("WITH") && g.peekAt(1).isPunct("(") {
		g.pos++
		return g.skipParens()
	}
	return nil
}

func (g *grammar) statement() error {
	t := g.peek()
	switch t.kind {
	case tEOF:
		return g.errorf(t, "unexpected end of input")
	case tPunct:
		if t.isPunct(";") {
			g.pos++
			return nil
		}
		if t.isPunct("(") {
			_, err := g.clause()
			return err
		}
		return g.errorf(t, "unexpected symbol")
	case tWord:
	default:
		return g.errorf(t, "statement cannot start with a variable or literal")
	}

	if isLabel(g.toks, g.pos) {
		n := g.node(KindLabel, "", t)
		n.Target = t.text
		g.ir.emit(n)
		g.pos += 2
		return nil
	}

	switch t.upper {
	case "BEGIN":
		return g.begin()
	case "END":
		return g.errorf(t, "END without BEGIN")
	case "ELSE":
		return g.errorf(t, "ELSE without IF")
	case "IF":
		return g.ifStatement()
	case "WHILE":
		return g.whileStatement()
	case "RETURN":
		return g.returnStatement()
	case "GOTO":
		g.pos++
		label := g.peek()
		if label.kind != tWord {
			return g.errorf(t, "GOTO requires a label")
		}
		n := g.node(KindGoto, "", t)
		n.Target = label.text
		g.ir.emit(n)
		g.pos++
		return nil
	case "BREAK":
		g.pos++
		g.ir.emit(g.node(KindBreak, "", t))
		return nil
	case "CONTINUE":
		g.pos++
		g.ir.emit(g.node(KindContinue, "", t))
		return nil
	case "COMMIT", "ROLLBACK":
		return g.commitOrRollback()
	case "SAVE":
		return g.save()
	case "SET":
		return g.set()
	case "EXEC", "EXECUTE":
		return g.exec()
	case "INSERT":
		return g.insert()
	case "UPDATE":
		return g.update()
	case "DELETE":
		return g.delete()
	case "MERGE":
		return g.merge()
	case "TRUNCATE":
		return g.truncate()
	case "SELECT":
		return g.selectStatement()
	case "WITH":
		return g.with()
	case "THROW":
		g.pos++
		g.ir.emit(g.node(KindRaise, VerbThrow, t))
		_, err := g.clause()
		return err
	case "RAISERROR":
		g.pos++
		g.ir.emit(g.node(KindRaise, VerbRaiserror, t))
		if !g.peek().isPunct("(") {
			return g.errorf(t, "RAISERROR requires an argument list")
		}
		if err := g.skipParens(); err != nil {
			return err
		}
		_, err := g.clause()
		return err
	case "PRINT":
		g.pos++
		g.ir.emit(g.node(KindPrint, "", t))
		return g.nonEmptyClause("PRINT", t)
	case "DECLARE":
		return g.declare()
	case "OPEN", "FETCH", "CLOSE", "DEALLOCATE":
		g.pos++
		g.ir.emit(g.node(KindCursor, strings.ToLower(t.upper), t))
		_, err := g.clause()
		return err
	case "GO":
		if g.blocks > 0 || g.depth > 0 {
			return g.errorf(t, "GO inside a block")
		}
		g.pos++
		if g.peek().kind == tNumber && g.peek().line == t.line {
			g.pos++
		}
		return nil
	}

	g.pos++
	_, err := g.clause()
	return err
}

func (g *grammar) begin() error {
	t := g.next()
	nx := g.peek()
	switch {
	case nx.isWord("TRAN") || nx.isWord("TRANSACTION"):
		g.pos++
		g.ir.emit(g.node(KindTransaction, VerbBegin, t))
		g.transactionName(t)
		return nil
	case nx.isWord("DISTRIBUTED"):
		g.pos++
		if !g.accept("TRAN") && !g.accept("TRANSACTION") {
			return g.errorf(nx, "DISTRIBUTED requires TRANSACTION")
		}
		g.ir.emit(g.node(KindTransaction, VerbBegin, t))
		g.transactionName(t)
		return nil
	case nx.isWord("TRY"):
		g.pos++
		return g.tryCatch(t)
	case nx.isWord("CATCH"):
		return g.errorf(nx, "BEGIN CATCH without BEGIN TRY")
	case nx.isWord("CONVERSATION") || nx.isWord("DIALOG"):
		_, err := g.clause()
		return err
	}

	g.blocks++
	err := g.statementsUntil("")
	g.blocks--
	return err
}

// transactionName consumes an optional transaction or savepoint name on the
// same line as the statement keyword.
func (g *grammar) transactionName(stmt token) string {
	t := g.peek()
	name := ""
	if t.line == stmt.line && (t.kind == tVar || (t.kind == tWord && !statementStarts[t.upper] && !reserved[t.upper])) {
		name = t.text
		g.pos++
	}
	if g.peek().isWord("WITH") && g.peekAt(1).isWord("MARK") {
		g.pos += 2
		if g.peek().kind == tString {
			g.pos++
		}
	}
	return name
}

func (g *grammar) statementsUntil(closer string) error {
	for {
		t := g.peek()
		if t.kind == tEOF {
			if closer == "" {
				return g.errorf(t, "BEGIN without matching END")
			}
			return g.errorf(t, "BEGIN %s without matching END %s", closer, closer)
		}
		if t.isWord("END") {
			nx := g.peekAt(1)
			if closer == "" {
				if nx.isWord("TRY") || nx.isWord("CATCH") {
					return g.errorf(t, "END %s closes a plain BEGIN block", nx.upper)
				}
				g.pos++
				return nil
			}
			if !nx.isWord(closer) {
				return g.errorf(t, "expected END %s", closer)
			}
			g.pos += 2
			return nil
		}
		if err := g.statement(); err != nil {
			return err
		}
	}
}

func (g *grammar) tryCatch(begin token) error {
	g.ir.emit(g.node(KindTry, "", begin))
	g.enter()
	if err := g.statementsUntil("TRY"); err != nil {
		return err
	}
	g.leave()

	for g.peek().isPunct(";") {
		g.pos++
	}
	if !g.peek().isWord("BEGIN") || !g.peekAt(1).isWord("CATCH") {
		return g.errorf(g.peek(), "END TRY must be followed by BEGIN CATCH")
	}
	catch := g.next()
	g.pos++
	g.ir.emit(g.node(KindCatch, "", catch))
	g.enter()
	if err := g.statementsUntil("CATCH"); err != nil {
		return err
	}
	g.leave()
	return nil
}

func (g *grammar) body(owner token) error {
	t := g.peek()
	if t.kind == tEOF || t.isWord("ELSE") || t.isWord("END") {
		return g.errorf(owner, "%s requires a statement", owner.upper)
	}
	return g.statement()
}

func (g *grammar) ifStatement() error {
	t := g.next()
	if err := g.nonEmptyClause("IF", t); err != nil {
		return err
	}
	idx := len(g.ir.Nodes)
	g.ir.emit(g.node(KindBranch, "", t))
	g.enter()
	if err := g.body(t); err != nil {
		return err
	}

	save := g.pos
	for g.peek().isPunct(";") {
		g.pos++
	}
	if !g.peek().isWord("ELSE") {
		g.pos = save
		g.leave()
		return nil
	}
	elseTok := g.next()
	g.ir.Nodes[idx].HasElse = true
	start := len(g.ir.Nodes)
	var err error
	if g.peek().isWord("IF") {
		g.leave()
		err = g.ifStatement()
	} else {
		err = g.body(elseTok)
		g.leave()
	}
	if end := len(g.ir.Nodes); err == nil && end > start {
		g.ir.Nodes[idx].ElseStart, g.ir.Nodes[idx].ElseEnd = start, end
	}
	return err
}

func (g *grammar) whileStatement() error {
	t := g.next()
	if err := g.nonEmptyClause("WHILE", t); err != nil {
		return err
	}
	g.ir.emit(g.node(KindLoop, "", t))
	g.enter()
	err := g.body(t)
	g.leave()
	return err
}

func (g *grammar) returnStatement() error {
	t := g.next()
	n := g.node(KindReturn, "", t)
	if !g.atBoundary() {
		start := g.pos
		cnt, err := g.clause()
		if err != nil {
			return err
		}
		n.Value = intLiteral(g.toks[start : start+cnt])
	}
	g.ir.emit(n)
	return nil
}

// intLiteral returns the canonical form of a (signed) integer literal
// expression, or "" for anything else.
func intLiteral(toks []token) string {
	sign := ""
	if len(toks) == 2 && (toks[0].isPunct("-") || toks[0].isPunct("+")) {
		sign = toks[0].text
		toks = toks[1:]
	}
	if len(toks) != 1 || toks[0].kind != tNumber {
		return ""
	}
	v, err := strconv.ParseInt(sign+toks[0].text, 10, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func (g *grammar) commitOrRollback() error {
	t := g.next()
	verb := VerbCommit
	if t.upper == "ROLLBACK" {
		verb = VerbRollback
	}
	n := g.node(KindTransaction, verb, t)
	if g.accept("TRAN") || g.accept("TRANSACTION") || g.accept("WORK") {
		n.Target = g.transactionName(t)
	}
	g.ir.emit(n)
	_, err := g.clause()
	return err
}

func (g *grammar) save() error {
	t := g.next()
	if !g.accept("TRAN") && !g.accept("TRANSACTION") {
		return g.errorf(t, "SAVE requires TRANSACTION")
	}
	n := g.node(KindTransaction, VerbSave, t)
	n.Target = g.transactionName(t)
	if n.Target == "" {
		return g.errorf(t, "SAVE TRANSACTION requires a savepoint name")
	}
	g.ir.emit(n)
	return nil
}

func (g *grammar) set() error {
	t := g.next()
	nx := g.peek()
	switch {
	case nx.isWord("XACT_ABORT"):
		g.pos++
		v := g.peek()
		if !v.isWord("ON") && !v.isWord("OFF") {
			return g.errorf(v, "XACT_ABORT requires ON or OFF")
		}
		g.pos++
		n := g.node(KindOption, VerbXactAbort, t)
		n.Value = v.upper
		g.ir.emit(n)
		return nil
	case nx.isWord("TRANSACTION") && g.peekAt(1).isWord("ISOLATION"):
		g.pos += 2
		if err := g.expect("LEVEL"); err != nil {
			return err
		}
		level := g.next().upper
		if level == "READ" || level == "REPEATABLE" {
			level += " " + g.next().upper
		}
		if !isolationLevels[level] {
			return g.errorf(nx, "unknown isolation level")
		}
		n := g.node(KindOption, VerbIsolation, t)
		n.Value = level
		g.ir.emit(n)
		return nil
	case nx.kind == tVar && g.peekAt(1).isPunct("=") && g.peekAt(2).isWord("CURSOR"):
		n := g.node(KindCursor, VerbDeclare, t)
		n.Target = nx.text
		g.ir.emit(n)
	}
	_, err := g.clause()
	return err
}

func (g *grammar) exec() error {
	t := g.next()
	verb := VerbExec
	if t.upper == "EXECUTE" {
		verb = VerbExecute
	}
	n := g.node(KindCall, verb, t)
	nx := g.peek()
	switch {
	case nx.isPunct("("):
		n.Dynamic = true
		if err := g.skipParens(); err != nil {
			return err
		}
	case nx.isWord("AS"):
		// EXECUTE AS switches security context; it calls nothing.
		_, err := g.clause()
		return err
	case nx.kind == tVar && g.peekAt(1).isPunct("="):
		g.pos += 2
		if name, next, ok := readName(g.toks, g.pos, false); ok {
			n.Target = name
			g.pos = next
		} else if g.peek().kind == tVar {
			n.Dynamic = true
			g.pos++
		} else {
			return g.errorf(t, "%s requires a procedure name", t.upper)
		}
	case nx.kind == tVar:
		n.Dynamic = true
		g.pos++
	default:
		name, next, ok := readName(g.toks, g.pos, false)
		if !ok {
			return g.errorf(t, "%s requires a procedure name", t.upper)
		}
		n.Target = name
		g.pos = next
	}
	if n.Target != "" && isDynamicExec(n.Target) {
		n.Dynamic = true
	}
	g.ir.emit(n)
	_, err := g.clause()
	return err
}

// dmlTarget reads the target of a DML statement into n. Table variables and
// rowset functions leave the target unresolved.
func (g *grammar) dmlTarget(n *Node, stmt token) error {
	t := g.peek()
	if t.kind == tVar {
		g.pos++
		return nil
	}
	name, next, ok := readName(g.toks, g.pos, false)
	if !ok {
		return g.errorf(stmt, "%s requires a target", stmt.upper)
	}
	g.pos = next
	if g.peek().isPunct("(") && isRowsetFunction(name) {
		return g.skipParens()
	}
	n.Target = name
	return nil
}

var outputEnds = set("VALUES", "SELECT", "EXEC", "EXECUTE", "DEFAULT", "FROM", "WHERE")

func (g *grammar) outputClause() error {
	g.pos++
	parens := 0
	for !g.eof() {
		t := g.peek()
		if parens == 0 {
			if t.isPunct(";") || (t.kind == tWord && outputEnds[t.upper]) || g.statementAhead() {
				return nil
			}
		}
		switch {
		case t.isPunct("("):
			parens++
		case t.isPunct(")"):
			if parens == 0 {
				return g.errorf(t, "unbalanced parenthesis")
			}
			parens--
		}
		g.pos++
	}
	return nil
}

func hasWord(toks []token, kw string) bool {
	for _, t := range toks {
		if t.isWord(kw) {
			return true
		}
	}
	return false
}

func (g *grammar) insert() error {
	t := g.next()
	n := g.node(KindDML, VerbInsert, t)
	if err := g.skipTop(); err != nil {
		return err
	}
	g.accept("INTO")
	if err := g.dmlTarget(&n, t); err != nil {
		return err
	}
	if err := g.skipHints(); err != nil {
		return err
	}
	if g.peek().isPunct("(") {
		if err := g.skipParens(); err != nil {
			return err
		}
	}
	if g.peek().isWord("OUTPUT") {
		n.Output = true
		if err := g.outputClause(); err != nil {
			return err
		}
	}

	src := g.peek()
	switch {
	case src.isWord("VALUES"), src.isPunct("("):
		g.ir.emit(n)
		_, err := g.clause()
		return err
	case src.isWord("DEFAULT") && g.peekAt(1).isWord("VALUES"):
		g.pos += 2
		g.ir.emit(n)
		return nil
	case src.isWord("SELECT"):
		g.ir.emit(n)
		return g.selectStatement()
	case src.isWord("EXEC") || src.isWord("EXECUTE"):
		g.ir.emit(n)
		return g.exec()
	case src.isWord("WITH"):
		g.ir.emit(n)
		return g.with()
	}
	return g.errorf(t, "INSERT requires VALUES, SELECT or EXEC")
}

func (g *grammar) update() error {
	t := g.next()
	if g.peek().isWord("STATISTICS") {
		_, err := g.clause()
		return err
	}
	n := g.node(KindDML, VerbUpdate, t)
	if err := g.skipTop(); err != nil {
		return err
	}
	if err := g.dmlTarget(&n, t); err != nil {
		return err
	}
	if err := g.skipHints(); err != nil {
		return err
	}
	if !g.accept("SET") {
		return g.errorf(t, "UPDATE requires SET")
	}
	return g.dmlTail(n, t)
}

func (g *grammar) delete() error {
	t := g.next()
	n := g.node(KindDML, VerbDelete, t)
	if err := g.skipTop(); err != nil {
		return err
	}
	g.accept("FROM")
	if err := g.dmlTarget(&n, t); err != nil {
		return err
	}
	if err := g.skipHints(); err != nil {
		return err
	}
	return g.dmlTail(n, t)
}

// dmlTail emits n and consumes the rest of an UPDATE or DELETE.
func (g *grammar) dmlTail(n Node, stmt token) error {
	idx := len(g.ir.Nodes)
	g.ir.emit(n)
	start := g.pos
	cnt, err := g.clause()
	if err != nil {
		return err
	}
	if cnt == 0 && n.Verb == VerbUpdate {
		return g.errorf(stmt, "UPDATE requires assignments")
	}
	if hasWord(g.toks[start:start+cnt], "OUTPUT") {
		g.ir.Nodes[idx].Output = true
	}
	return nil
}

func (g *grammar) merge() error {
	t := g.next()
	n := g.node(KindDML, VerbMerge, t)
	if err := g.skipTop(); err != nil {
		return err
	}
	g.accept("INTO")
	if err := g.dmlTarget(&n, t); err != nil {
		return err
	}
	if err := g.skipHints(); err != nil {
		return err
	}

	parens := 0
	using := false
	for {
		tk := g.peek()
		if tk.kind == tEOF {
			return g.errorf(t, "MERGE must be terminated by a semicolon")
		}
		if parens == 0 && tk.isPunct(";") {
			g.pos++
			break
		}
		switch {
		case tk.isPunct("("):
			parens++
		case tk.isPunct(")"):
			if parens == 0 {
				return g.errorf(tk, "unbalanced parenthesis")
			}
			parens--
		case parens == 0 && tk.isWord("USING"):
			using = true
		case parens == 0 && tk.isWord("OUTPUT"):
			n.Output = true
		}
		g.pos++
	}
	if !using {
		return g.errorf(t, "MERGE requires USING")
	}
	g.ir.emit(n)
	return nil
}

func (g *grammar) truncate() error {
	t := g.next()
	if err := g.expect("TABLE"); err != nil {
		return err
	}
	n := g.node(KindDML, VerbTruncate, t)
	name, next, ok := readName(g.toks, g.pos, false)
	if !ok {
		return g.errorf(t, "TRUNCATE TABLE requires a table name")
	}
	n.Target = name
	g.pos = next
	g.ir.emit(n)
	_, err := g.clause()
	return err
}

func (g *grammar) selectStatement() error {
	t := g.next()
	start := g.pos
	cnt, err := g.clause()
	if err != nil {
		return err
	}
	depth := 0
	for i := start; i < start+cnt; i++ {
		tk := g.toks[i]
		switch {
		case tk.isPunct("("):
			depth++
		case tk.isPunct(")"):
			depth--
		case depth == 0 && tk.isWord("INTO"):
			n := g.node(KindDML, VerbSelectInto, t)
			if name, _, ok := readName(g.toks, i+1, false); ok {
				n.Target = name
			}
			g.ir.emit(n)
			return nil
		}
	}
	return nil
}

func (g *grammar) with() error {
	t := g.next()
	for {
		name, next, ok := readName(g.toks, g.pos, false)
		if !ok {
			return g.errorf(t, "WITH requires a common table expression name")
		}
		g.pos = next
		xmlns := strings.EqualFold(name, "XMLNAMESPACES")
		if g.peek().isPunct("(") {
			if err := g.skipParens(); err != nil {
				return err
			}
		}
		if !xmlns {
			if err := g.expect("AS"); err != nil {
				return err
			}
			if err := g.skipParens(); err != nil {
				return err
			}
		}
		if !g.peek().isPunct(",") {
			break
		}
		g.pos++
	}

	nx := g.peek()
	switch {
	case nx.isWord("SELECT"):
		return g.selectStatement()
	case nx.isWord("INSERT"):
		return g.insert()
	case nx.isWord("UPDATE"):
		return g.update()
	case nx.isWord("DELETE"):
		return g.delete()
	case nx.isWord("MERGE"):
		return g.merge()
	}
	return g.errorf(t, "WITH must be followed by a query or DML statement")
}

func (g *grammar) declare() error {
	t := g.next()
	nx := g.peek()
	if nx.kind == tWord || nx.kind == tQuoted || nx.kind == tVar {
		j := g.pos + 1
		for tokAt(g.toks, j).isWord("INSENSITIVE") || tokAt(g.toks, j).isWord("SCROLL") {
			j++
		}
		if tokAt(g.toks, j).isWord("CURSOR") {
			n := g.node(KindCursor, VerbDeclare, t)
			n.Target = nx.text
			g.ir.emit(n)
			g.pos = j + 1
		}
	}
	_, err := g.clause()
	return err
}
