// Package report builds renderable views of analysis results for the CLI
// and the MCP markdown format.
package report

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/panbanda/tsqlgraph/internal/output"
	"github.com/panbanda/tsqlgraph/internal/service/analysis"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/callgraph"
)

var printer = message.NewPrinter(language.English)

func count(n int) string { return printer.Sprintf("%d", n) }

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func list(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// Analysis renders the report of one unit.
func Analysis(r *analysis.Report) *output.Report {
	title := "Analysis"
	if r.Name != "" {
		title += ": " + r.Name
	}

	overview := &output.Section{Title: "Overview"}
	overview.
		Fact("Unit", r.Digest).
		Fact("Version", r.Version).
		Fact("Cyclomatic complexity", r.ControlFlow.Summary.CyclomaticComplexity).
		Fact("Max nesting", r.ControlFlow.Summary.MaxNestingDepth).
		Fact("Control flow", list(r.ControlFlow.Signals)).
		Fact("Errors", list(r.Errors))

	refs := make([][]string, 0, len(r.References.Tables)+len(r.References.Functions))
	for _, t := range r.References.Tables {
		refs = append(refs, []string{"table", t})
	}
	for _, f := range r.References.Functions {
		refs = append(refs, []string{"function", f})
	}

	tx := r.Transactions
	transactions := &output.Section{Title: "Transactions"}
	transactions.
		Fact("Uses transaction", yesNo(tx.UsesTransaction)).
		Fact("Begin/commit/rollback", strings.Join([]string{
			strconv.Itoa(tx.BeginCount), strconv.Itoa(tx.CommitCount), strconv.Itoa(tx.RollbackCount),
		}, "/")).
		Fact("Savepoints", tx.SavepointCount).
		Fact("TRY/CATCH", yesNo(tx.HasTryCatch)).
		Fact("XACT_ABORT", optional(tx.XactAbort)).
		Fact("Isolation level", optional(tx.IsolationLevel)).
		Fact("Signals", list(tx.Signals))

	dc := r.DataChanges
	writes := make([][]string, len(dc.TableOperations))
	for i, op := range dc.TableOperations {
		writes[i] = []string{op.Table, strings.Join(op.Ops, ", ")}
	}
	changes := &output.Section{
		Title: "Data changes",
		Tables: []*output.Table{
			output.NewTable("", []string{"Table", "Operations"}, writes, nil, nil),
		},
	}
	changes.Fact("Has writes", yesNo(dc.HasWrites)).Fact("Notes", list(dc.Notes))

	eh := r.ErrorHandling
	errs := &output.Section{Title: "Error handling"}
	errs.
		Fact("TRY/CATCH", yesNo(eh.HasTryCatch)).
		Fact("THROW", eh.ThrowCount).
		Fact("RAISERROR", eh.RaiserrorCount).
		Fact("@@ERROR", eh.AtAtErrorCount).
		Fact("Error functions", list(eh.UsesErrorFunctions)).
		Fact("Return values", list(intStrings(eh.ReturnValues))).
		Fact("Output error params", list(eh.OutputErrorParams)).
		Fact("Notes", list(eh.Notes))

	return &output.Report{
		Title: title,
		Sections: []output.Renderable{
			overview,
			output.NewTable("References", []string{"Kind", "Name"}, refs, nil, nil),
			transactions,
			changes,
			errs,
			Impacts(r),
		},
		Data: r,
	}
}

func intStrings(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

// ImpactTable colors the severity column in text output.
type ImpactTable struct {
	*output.Table
}

// Impacts renders the migration impacts of a unit.
func Impacts(r *analysis.Report) *ImpactTable {
	rows := make([][]string, len(r.MigrationImpacts.Items))
	for i, item := range r.MigrationImpacts.Items {
		rows[i] = []string{item.ID, item.Severity, item.Category, item.Title}
	}
	return &ImpactTable{output.NewTable("Migration impacts",
		[]string{"ID", "Severity", "Category", "Title"}, rows, nil, r.MigrationImpacts)}
}

func (t *ImpactTable) RenderText(w io.Writer, colored bool) error {
	if !colored {
		return t.Table.RenderText(w, false)
	}
	tinted := *t.Table
	tinted.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		tinted.Rows[i] = append([]string(nil), row...)
		tinted.Rows[i][1] = output.SeverityColor(row[1], row[1])
	}
	return tinted.RenderText(w, true)
}

// Batch renders several unit reports one after another.
func Batch(reports []*analysis.Report) output.Renderable {
	if len(reports) == 1 {
		return Analysis(reports[0])
	}
	sections := make([]output.Renderable, len(reports))
	for i, r := range reports {
		sections[i] = Analysis(r)
	}
	return &output.Report{Sections: sections, Data: batchData(reports)}
}

// UnitReport pairs a report with the unit it came from in batch output.
type UnitReport struct {
	Name   string           `json:"name" toon:"name"`
	Report *analysis.Report `json:"report" toon:"report"`
}

func batchData(reports []*analysis.Report) []UnitReport {
	out := make([]UnitReport, len(reports))
	for i, r := range reports {
		out[i] = UnitReport{Name: r.Name, Report: r}
	}
	return out
}

// CallGraph renders a call graph report.
func CallGraph(r *analysis.CallGraphReport) *output.Report {
	summary := &output.Section{Title: "Summary"}
	summary.
		Fact("Version", r.Version).
		Fact("Objects", count(r.Summary.ObjectCount)).
		Fact("Nodes", count(r.Summary.NodeCount)).
		Fact("Edges", count(r.Summary.EdgeCount)).
		Fact("Cycles", yesNo(r.Summary.HasCycles)).
		Fact("Truncated", yesNo(r.Summary.Truncated)).
		Fact("Roots", list(r.Topology.Roots)).
		Fact("Leaves", list(r.Topology.Leaves))

	edges := make([][]string, len(r.Graph.Edges))
	for i, e := range r.Graph.Edges {
		edges[i] = []string{e.From, e.To, e.Kind, strconv.Itoa(e.Count)}
	}

	return &output.Report{
		Title: "Call graph",
		Sections: []output.Renderable{
			summary,
			output.NewTable("Edges", []string{"From", "To", "Kind", "Count"}, edges, nil, nil),
			issues(r.Errors),
		},
		Data: r,
	}
}

// Callers renders a callers report.
func Callers(r *analysis.CallersReport) *output.Report {
	summary := &output.Section{Title: "Target"}
	summary.
		Fact("Name", r.Target.Name).
		Fact("Type", r.Target.Type).
		Fact("Normalized", r.Target.Normalized).
		Fact("Callers", count(r.Summary.CallerCount)).
		Fact("Total calls", count(r.Summary.TotalCalls))

	rows := make([][]string, len(r.Callers))
	for i, c := range r.Callers {
		rows[i] = []string{c.Name, c.Type, strconv.Itoa(c.CallCount), strings.Join(c.CallKinds, ", ")}
	}

	return &output.Report{
		Title: "Callers",
		Sections: []output.Renderable{
			summary,
			output.NewTable("Callers", []string{"Name", "Type", "Calls", "Kinds"}, rows, nil, nil),
			issues(r.Errors),
		},
		Data: r,
	}
}

// Terms renders the query terms of a unit.
func Terms(r *analysis.TermsReport) *output.Section {
	s := &output.Section{Title: "Query terms", Data: r}
	s.Fact("Terms", list(r.Terms))
	if len(r.Errors) > 0 {
		s.Fact("Errors", list(r.Errors))
	}
	return s
}

func issues(errs []callgraph.Issue) *output.Table {
	rows := make([][]string, len(errs))
	for i, e := range errs {
		rows[i] = []string{e.ID, e.Object, e.Message}
	}
	return output.NewTable("Errors", []string{"ID", "Object", "Message"}, rows, nil, nil)
}
