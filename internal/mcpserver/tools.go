package mcpserver

import (
	"bytes"
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/tsqlgraph/internal/output"
	"github.com/panbanda/tsqlgraph/internal/report"
	"github.com/panbanda/tsqlgraph/internal/service/analysis"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/callgraph"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

// FormatInput is embedded by every tool input.
type FormatInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// AnalyzeInput is the input of analyze_tsql.
type AnalyzeInput struct {
	FormatInput
	Name    string `json:"name,omitempty" jsonschema:"Object name used in logs and output. Optional."`
	SQL     string `json:"sql" jsonschema:"T-SQL source of one unit (procedure, function, trigger or batch)."`
	Dialect string `json:"dialect,omitempty" jsonschema:"SQL dialect. Only tsql is analyzed; other values are recorded."`
}

// ObjectInput is one unit in a batch.
type ObjectInput struct {
	Name string `json:"name" jsonschema:"Object name, optionally schema qualified."`
	Type string `json:"type,omitempty" jsonschema:"procedure or function. Unknown types are treated as procedure."`
	SQL  string `json:"sql" jsonschema:"T-SQL source of the object."`
}

// OptionsInput overrides call graph resolution defaults.
type OptionsInput struct {
	CaseInsensitive   *bool `json:"case_insensitive,omitempty" jsonschema:"Match names case-insensitively. Default true."`
	SchemaSensitive   *bool `json:"schema_sensitive,omitempty" jsonschema:"Require schema-qualified matches. Default false."`
	IncludeFunctions  *bool `json:"include_functions,omitempty" jsonschema:"Include function call edges. Default true."`
	IncludeProcedures *bool `json:"include_procedures,omitempty" jsonschema:"Include EXEC edges. Default true."`
	IgnoreDynamicExec *bool `json:"ignore_dynamic_exec,omitempty" jsonschema:"Skip sp_executesql calls. Default true."`
	IncludeSelf       *bool `json:"include_self,omitempty" jsonschema:"Count recursive self calls as callers. Default false."`
	MaxNodes          *int  `json:"max_nodes,omitempty" jsonschema:"Node cap. Default 500."`
	MaxEdges          *int  `json:"max_edges,omitempty" jsonschema:"Edge cap. Default 2000."`
}

// CallGraphInput is the input of build_call_graph.
type CallGraphInput struct {
	FormatInput
	Objects []ObjectInput `json:"objects" jsonschema:"Objects in the batch. At most 500."`
	Options OptionsInput  `json:"options,omitempty" jsonschema:"Resolution overrides."`
}

// CallersInput is the input of find_callers.
type CallersInput struct {
	FormatInput
	Target     string        `json:"target" jsonschema:"Name of the object whose callers are wanted."`
	TargetType string        `json:"target_type,omitempty" jsonschema:"procedure or function. Default procedure."`
	Objects    []ObjectInput `json:"objects" jsonschema:"Objects to search. At most 500."`
	Options    OptionsInput  `json:"options,omitempty" jsonschema:"Resolution overrides."`
}

// TermsInput is the input of extract_query_terms.
type TermsInput struct {
	FormatInput
	SQL string `json:"sql" jsonschema:"T-SQL source to extract lexical search terms from."`
}

func getFormat(input FormatInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func units(objects []ObjectInput) []parser.Unit {
	out := make([]parser.Unit, len(objects))
	for i, o := range objects {
		out[i] = parser.Unit{Name: o.Name, Type: o.Type, SQL: o.SQL}
	}
	return out
}

func (o OptionsInput) graphOptions() analysis.GraphOptions {
	return analysis.GraphOptions{
		CaseInsensitive:   o.CaseInsensitive,
		SchemaSensitive:   o.SchemaSensitive,
		IncludeFunctions:  o.IncludeFunctions,
		IncludeProcedures: o.IncludeProcedures,
		IgnoreDynamicExec: o.IgnoreDynamicExec,
		IncludeSelf:       o.IncludeSelf,
		MaxNodes:          o.MaxNodes,
		MaxEdges:          o.MaxEdges,
	}
}

func formatOutput(view output.Renderable, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := output.MarshalJSON(view.RenderData())
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		var buf bytes.Buffer
		if err := view.RenderMarkdown(&buf); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		out, err := toon.Marshal(view.RenderData(), toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(view output.Renderable, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(view, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// failure turns a service error into a tool error. Batch limit errors are
// the caller's to fix; anything else is returned as a protocol error.
func failure(err error) (*mcp.CallToolResult, any, error) {
	var limit *callgraph.BatchLimitError
	if errors.As(err, &limit) || errors.Is(err, context.Canceled) {
		return toolError(err.Error())
	}
	return nil, nil, err
}

// Tool handlers

func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	if input.SQL == "" {
		return toolError("sql is required")
	}
	result, err := s.svc.Analyze(ctx, analysis.Request{
		Name:    input.Name,
		SQL:     input.SQL,
		Dialect: input.Dialect,
	})
	if err != nil {
		return failure(err)
	}
	return toolResult(report.Analysis(result), getFormat(input.FormatInput))
}

func (s *Server) handleCallGraph(ctx context.Context, req *mcp.CallToolRequest, input CallGraphInput) (*mcp.CallToolResult, any, error) {
	result, err := s.svc.CallGraph(ctx, analysis.CallGraphRequest{
		Objects: units(input.Objects),
		Options: input.Options.graphOptions(),
	})
	if err != nil {
		return failure(err)
	}
	return toolResult(report.CallGraph(result), getFormat(input.FormatInput))
}

func (s *Server) handleCallers(ctx context.Context, req *mcp.CallToolRequest, input CallersInput) (*mcp.CallToolResult, any, error) {
	if input.Target == "" {
		return toolError("target is required")
	}
	result, err := s.svc.Callers(ctx, analysis.CallersRequest{
		Target:     input.Target,
		TargetType: input.TargetType,
		Objects:    units(input.Objects),
		Options:    input.Options.graphOptions(),
	})
	if err != nil {
		return failure(err)
	}
	return toolResult(report.Callers(result), getFormat(input.FormatInput))
}

func (s *Server) handleTerms(ctx context.Context, req *mcp.CallToolRequest, input TermsInput) (*mcp.CallToolResult, any, error) {
	result, err := s.svc.Terms(ctx, analysis.Request{SQL: input.SQL})
	if err != nil {
		return failure(err)
	}
	return toolResult(report.Terms(result), getFormat(input.FormatInput))
}
