// Package signals extracts transaction, data-change, error-handling,
// reference and migration-impact signals from a parsed unit in one pass over
// its IR.
package signals

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/collate"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

// CodeMaxItems marks a list that was cut at its limit.
const CodeMaxItems = collate.CodeMaxItems

var dmlSignals = map[string]string{
	parser.VerbInsert:     "INSERT",
	parser.VerbUpdate:     "UPDATE",
	parser.VerbDelete:     "DELETE",
	parser.VerbMerge:      "MERGE",
	parser.VerbTruncate:   "TRUNCATE",
	parser.VerbSelectInto: "SELECT INTO",
}

var errorFunctions = map[string]bool{
	"ERROR_LINE":      true,
	"ERROR_MESSAGE":   true,
	"ERROR_NUMBER":    true,
	"ERROR_PROCEDURE": true,
	"ERROR_SEVERITY":  true,
	"ERROR_STATE":     true,
}

var identityFunctions = map[string]bool{
	"SCOPE_IDENTITY": true,
	"IDENT_CURRENT":  true,
	"IDENTITY":       true,
}

var errorParamWords = []string{"err", "msg", "message", "status", "code"}

type offsetCall struct {
	offset int
	call   CallSite
}

type collector struct {
	opts Options

	tx Transactions
	eh ErrorHandling

	txSignals  []string
	dmlSignals []string
	errSignals []string

	counts     map[string]int
	opTables   map[string][]string
	tableOps   map[string][]string
	unresolved []string

	errorFuncs []string
	returns    []int
	errParams  []string

	impacts map[string][]string

	tables    []string
	functions []string
	calls     []offsetCall
}

// Extract walks ir once and returns its signal bundle. A nil ir yields an
// empty bundle.
func Extract(ir *parser.IR, opts Options) *Bundle {
	def := DefaultOptions()
	if opts.MaxListItems <= 0 {
		opts.MaxListItems = def.MaxListItems
	}
	if opts.MaxSignals <= 0 {
		opts.MaxSignals = def.MaxSignals
	}
	if opts.MaxQueryTerms <= 0 {
		opts.MaxQueryTerms = def.MaxQueryTerms
	}

	c := &collector{
		opts:     opts,
		counts:   make(map[string]int),
		opTables: make(map[string][]string),
		tableOps: make(map[string][]string),
		impacts:  make(map[string][]string),
	}
	if ir != nil {
		for _, n := range ir.Nodes {
			c.node(n)
		}
		for _, r := range ir.Refs {
			c.ref(r)
		}
	}
	return c.bundle()
}

func (c *collector) node(n parser.Node) {
	switch n.Kind {
	case parser.KindTransaction:
		switch n.Verb {
		case parser.VerbBegin:
			c.tx.BeginCount++
			c.txSignals = append(c.txSignals, "BEGIN TRAN")
		case parser.VerbCommit:
			c.tx.CommitCount++
			c.txSignals = append(c.txSignals, "COMMIT")
		case parser.VerbRollback:
			c.tx.RollbackCount++
			c.txSignals = append(c.txSignals, "ROLLBACK")
		case parser.VerbSave:
			c.tx.SavepointCount++
			c.txSignals = append(c.txSignals, "SAVE TRAN")
		}
	case parser.KindTry:
		c.eh.TryCount++
	case parser.KindCatch:
		c.eh.CatchCount++
	case parser.KindOption:
		v := n.Value
		switch n.Verb {
		case parser.VerbXactAbort:
			c.tx.XactAbort = &v
			c.txSignals = append(c.txSignals, "XACT_ABORT "+v)
		case parser.VerbIsolation:
			c.tx.IsolationLevel = &v
			c.txSignals = append(c.txSignals, "ISOLATION LEVEL "+v)
		}
	case parser.KindRaise:
		switch n.Verb {
		case parser.VerbThrow:
			c.eh.ThrowCount++
			c.txSignals = append(c.txSignals, "THROW")
			c.errSignals = append(c.errSignals, "THROW")
		case parser.VerbRaiserror:
			c.eh.RaiserrorCount++
			c.errSignals = append(c.errSignals, "RAISERROR")
		}
	case parser.KindPrint:
		c.eh.PrintCount++
		c.errSignals = append(c.errSignals, "PRINT")
	case parser.KindReturn:
		c.eh.ReturnCount++
		c.errSignals = append(c.errSignals, "RETURN")
		if n.Value != "" {
			if v, err := strconv.Atoi(n.Value); err == nil {
				c.returns = append(c.returns, v)
			}
		}
	case parser.KindDML:
		c.dml(n)
	case parser.KindCall:
		c.calls = append(c.calls, offsetCall{n.Offset, CallSite{Kind: n.Verb, Name: n.Target, Dynamic: n.Dynamic}})
		if n.Dynamic {
			sig := "EXEC(@sql)"
			if n.Target != "" {
				sig = strings.ToLower(baseName(n.Target))
			}
			c.impact(catDynamicSQL, sig)
		}
	case parser.KindCursor:
		sig := strings.ToUpper(n.Verb)
		if n.Verb == parser.VerbDeclare {
			sig = "DECLARE CURSOR"
		}
		c.impact(catCursor, sig)
	}
}

func (c *collector) dml(n parser.Node) {
	c.counts[n.Verb]++
	c.dmlSignals = append(c.dmlSignals, dmlSignals[n.Verb])
	if n.Output {
		c.dmlSignals = append(c.dmlSignals, "OUTPUT")
	}
	if n.Target == "" {
		c.unresolved = append(c.unresolved, "unresolved_target:"+n.Verb)
		return
	}
	table := collate.Identifier(n.Target)
	c.opTables[n.Verb] = append(c.opTables[n.Verb], table)
	c.tableOps[table] = append(c.tableOps[table], n.Verb)
	c.tempTable(table)
}

func (c *collector) ref(r parser.Ref) {
	switch r.Kind {
	case parser.RefTable:
		table := collate.Identifier(r.Name)
		c.tables = append(c.tables, table)
		c.tempTable(table)
	case parser.RefFunction:
		base := strings.ToUpper(baseName(r.Name))
		c.functions = append(c.functions, base)
		c.calls = append(c.calls, offsetCall{r.Offset, CallSite{Kind: CallFunction, Name: r.Name}})
		switch {
		case errorFunctions[base]:
			c.errorFuncs = append(c.errorFuncs, base)
			c.errSignals = append(c.errSignals, base)
		case base == "XACT_STATE":
			c.txSignals = append(c.txSignals, "XACT_STATE()")
		case identityFunctions[base]:
			c.impact(catIdentity, base+"()")
		}
	case parser.RefSystem:
		switch r.Name {
		case "@@TRANCOUNT":
			c.txSignals = append(c.txSignals, "@@TRANCOUNT")
		case "@@ERROR":
			c.eh.AtAtErrorCount++
			c.errSignals = append(c.errSignals, "@@ERROR")
		case "@@IDENTITY":
			c.impact(catIdentity, "@@IDENTITY")
		}
	case parser.RefPseudo:
		c.dmlSignals = append(c.dmlSignals, r.Name)
	case parser.RefOutputParam:
		if isErrorParam(r.Name) {
			c.errParams = append(c.errParams, r.Name)
		}
	}
}

func (c *collector) tempTable(table string) {
	base := baseName(table)
	switch {
	case strings.HasPrefix(base, "##"):
		c.impact(catTempTable, "GLOBAL_TEMP_TABLE")
	case strings.HasPrefix(base, "#"):
		c.impact(catTempTable, "TEMP_TABLE")
	}
}

func (c *collector) impact(category, signal string) {
	c.impacts[category] = append(c.impacts[category], signal)
}

func isErrorParam(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range errorParamWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func baseName(name string) string {
	parts := collate.SplitQualified(name)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// capped sorts, dedupes and caps values, recording a truncation in r under
// the list name.
func capped(r *collate.Report, list string, values []string, canon collate.Canonicalizer, limit int) []string {
	return collate.Note(r, CodeMaxItems, list, limit, collate.Strings(values, canon, limit))
}

func (c *collector) bundle() *Bundle {
	b := &Bundle{termLimit: c.opts.MaxQueryTerms}
	var all collate.Report

	b.References = References{
		Tables:    collate.Strings(c.tables, collate.Upper, 0).Items,
		Functions: collate.Strings(c.functions, collate.Upper, 0).Items,
	}

	var txReport collate.Report
	c.tx.UsesTransaction = c.tx.BeginCount > 0
	c.tx.HasTryCatch = c.eh.TryCount > 0
	if c.tx.HasTryCatch {
		c.txSignals = append(c.txSignals, "TRY/CATCH")
	}
	c.tx.Signals = capped(&txReport, "signals", c.txSignals, collate.Identity, c.opts.MaxSignals)
	b.Transactions = c.tx
	appendEntries(&all, "transactions.", &txReport)

	b.DataChanges = c.dataChanges(&all)
	b.ErrorHandling = c.errorHandling(&all)
	b.MigrationImpacts = c.migrationImpacts(&all)

	calls := collate.Apply(c.calls, collate.Spec[offsetCall]{
		Key: func(oc offsetCall) string {
			return strconv.Itoa(oc.offset) + ":" + oc.call.Kind + ":" + oc.call.Name
		},
		Compare: func(a, b offsetCall) int { return cmp.Compare(a.offset, b.offset) },
	})
	b.Calls = make([]CallSite, len(calls.Items))
	for i, oc := range calls.Items {
		b.Calls[i] = oc.call
	}
	b.Truncations = all.Entries()
	return b
}

func (c *collector) dataChanges(all *collate.Report) DataChanges {
	var r collate.Report
	op := func(verb string) Operation {
		return Operation{
			Count:  c.counts[verb],
			Tables: collate.Strings(c.opTables[verb], collate.Upper, 0).Items,
		}
	}
	dc := DataChanges{
		Operations: Operations{
			Insert:     op(parser.VerbInsert),
			Update:     op(parser.VerbUpdate),
			Delete:     op(parser.VerbDelete),
			Merge:      op(parser.VerbMerge),
			Truncate:   op(parser.VerbTruncate),
			SelectInto: op(parser.VerbSelectInto),
		},
		TableOperations: make([]TableOperation, 0, len(c.tableOps)),
	}
	for _, n := range c.counts {
		if n > 0 {
			dc.HasWrites = true
		}
	}

	tables := make([]string, 0, len(c.tableOps))
	for t := range c.tableOps {
		tables = append(tables, t)
	}
	for _, t := range collate.Strings(tables, collate.Identity, 0).Items {
		dc.TableOperations = append(dc.TableOperations, TableOperation{
			Table: t,
			Ops:   collate.Strings(c.tableOps[t], collate.Lower, 0).Items,
		})
	}

	dc.Signals = capped(&r, "signals", c.dmlSignals, collate.Identity, c.opts.MaxSignals)
	dc.Notes = append(collate.Strings(c.unresolved, collate.Identity, 0).Items, r.Strings()...)
	appendEntries(all, "data_changes.", &r)
	return dc
}

func (c *collector) errorHandling(all *collate.Report) ErrorHandling {
	var r collate.Report
	eh := c.eh
	eh.HasTryCatch = eh.TryCount > 0
	if eh.HasTryCatch {
		c.errSignals = append(c.errSignals, "TRY/CATCH")
	}
	if len(c.errParams) > 0 {
		c.errSignals = append(c.errSignals, "OUTPUT_ERROR_PARAM")
	}
	eh.UsesThrow = eh.ThrowCount > 0
	eh.UsesRaiserror = eh.RaiserrorCount > 0
	eh.UsesAtAtError = eh.AtAtErrorCount > 0
	eh.UsesPrint = eh.PrintCount > 0
	eh.UsesReturn = eh.ReturnCount > 0

	eh.UsesErrorFunctions = capped(&r, "uses_error_functions", c.errorFuncs, collate.Upper, c.opts.MaxListItems)

	values := collate.Apply(c.returns, collate.Spec[int]{
		Key:     strconv.Itoa,
		Compare: cmp.Compare[int],
		Limit:   c.opts.MaxListItems,
	})
	eh.ReturnValues = collate.Note(&r, CodeMaxItems, "return_values", c.opts.MaxListItems, values)

	eh.OutputErrorParams = collate.Note(&r, CodeMaxItems, "output_error_params", c.opts.MaxListItems,
		collate.Apply(c.errParams, collate.Spec[string]{
			Key:   collate.Lower,
			Limit: c.opts.MaxListItems,
		}))
	eh.UsesOutputErrorParams = len(eh.OutputErrorParams) > 0

	eh.Signals = capped(&r, "signals", c.errSignals, collate.Identity, c.opts.MaxSignals)
	eh.Notes = r.Strings()
	appendEntries(all, "error_handling.", &r)
	return eh
}

// appendEntries copies r into all with each context prefixed by section.
func appendEntries(all *collate.Report, section string, r *collate.Report) {
	for _, e := range r.Entries() {
		e.Context = section + e.Context
		all.Add(e)
	}
}
