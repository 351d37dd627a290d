package mcpserver

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/tsqlgraph/internal/output"
	"github.com/panbanda/tsqlgraph/internal/service/analysis"
	"github.com/panbanda/tsqlgraph/pkg/config"
)

// connect starts the server and a client over in-memory transports.
func connect(t *testing.T, cfg *config.Config) *mcp.ClientSession {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctx := context.Background()
	srv := NewServer("test", analysis.New(analysis.WithConfig(cfg)))

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("server Connect() error: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callText(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) error: %v", name, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("CallTool(%s) returned no content", name)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s) content type = %T", name, res.Content[0])
	}
	return text.Text, res.IsError
}

func TestServerCreation(t *testing.T) {
	server := NewServer("", nil)
	if server == nil || server.server == nil || server.svc == nil {
		t.Fatal("NewServer() returned an incomplete server")
	}
}

func TestToolDescriptions(t *testing.T) {
	descriptions := map[string]func() string{
		"analyze":   describeAnalyze,
		"callgraph": describeCallGraph,
		"callers":   describeCallers,
		"terms":     describeTerms,
	}

	for name, fn := range descriptions {
		t.Run(name, func(t *testing.T) {
			desc := fn()
			for _, section := range []string{"USE WHEN:", "INTERPRETING RESULTS:", "METRICS RETURNED:"} {
				if !strings.Contains(desc, section) {
					t.Errorf("%s description missing %s section", name, section)
				}
			}
		})
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		input string
		want  output.Format
	}{
		{"", output.FormatTOON},
		{"toon", output.FormatTOON},
		{"json", output.FormatJSON},
		{"markdown", output.FormatMarkdown},
		{"md", output.FormatMarkdown},
		{"xml", output.FormatTOON},
	}
	for _, tt := range tests {
		if got := getFormat(FormatInput{Format: tt.input}); got != tt.want {
			t.Errorf("getFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestListTools(t *testing.T) {
	cs := connect(t, nil)
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error: %v", err)
	}

	got := make(map[string]bool)
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, want := range []string{"analyze_tsql", "build_call_graph", "find_callers", "extract_query_terms"} {
		if !got[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

func TestAnalyzeTool(t *testing.T) {
	cs := connect(t, nil)
	text, isErr := callText(t, cs, "analyze_tsql", map[string]any{
		"sql":    "CREATE PROCEDURE dbo.usp_demo AS BEGIN TRAN; UPDATE dbo.Orders SET Total = 0; COMMIT;",
		"format": "json",
	})
	if isErr {
		t.Fatalf("analyze_tsql returned error: %s", text)
	}

	var got struct {
		Version      string `json:"version"`
		Transactions struct {
			UsesTransaction bool `json:"uses_transaction"`
			BeginCount      int  `json:"begin_count"`
			CommitCount     int  `json:"commit_count"`
			HasTryCatch     bool `json:"has_try_catch"`
		} `json:"transactions"`
		DataChanges struct {
			HasWrites bool `json:"has_writes"`
		} `json:"data_changes"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("Unmarshal() error: %v\n%s", err, text)
	}
	if got.Version != analysis.ReportVersion {
		t.Errorf("version = %q", got.Version)
	}
	if !got.Transactions.UsesTransaction || got.Transactions.BeginCount != 1 || got.Transactions.CommitCount != 1 {
		t.Errorf("transactions = %+v", got.Transactions)
	}
	if got.Transactions.HasTryCatch {
		t.Error("has_try_catch should be false")
	}
	if !got.DataChanges.HasWrites {
		t.Error("has_writes should be true")
	}
}

func TestAnalyzeToolDefaultsToTOON(t *testing.T) {
	cs := connect(t, nil)
	text, isErr := callText(t, cs, "analyze_tsql", map[string]any{
		"sql": "CREATE PROCEDURE dbo.usp_demo AS SELECT 1",
	})
	if isErr {
		t.Fatalf("analyze_tsql returned error: %s", text)
	}
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		t.Errorf("default format should not be JSON:\n%s", text)
	}
	if !strings.Contains(text, "cyclomatic_complexity") {
		t.Errorf("TOON output missing fields:\n%s", text)
	}
}

func TestAnalyzeToolNeverEchoesSource(t *testing.T) {
	cs := connect(t, nil)
	for _, format := range []string{"toon", "json", "markdown"} {
		text, _ := callText(t, cs, "analyze_tsql", map[string]any{
			"sql":    "CREATE PROCEDURE dbo.p AS INSERT INTO dbo.Log (Msg) VALUES ('hunter2_secret');",
			"format": format,
		})
		if strings.Contains(text, "hunter2_secret") {
			t.Errorf("%s output contains a string literal from the source", format)
		}
	}
}

func TestAnalyzeToolMarkdown(t *testing.T) {
	cs := connect(t, nil)
	text, _ := callText(t, cs, "analyze_tsql", map[string]any{
		"name":   "dbo.usp_demo",
		"sql":    "CREATE PROCEDURE dbo.usp_demo AS SELECT 1",
		"format": "markdown",
	})
	if !strings.HasPrefix(text, "# Analysis: dbo.usp_demo") {
		t.Errorf("markdown output = %q", text)
	}
}

func TestCallGraphTool(t *testing.T) {
	cs := connect(t, nil)
	text, isErr := callText(t, cs, "build_call_graph", map[string]any{
		"objects": []map[string]any{
			{"name": "dbo.a", "type": "procedure", "sql": "CREATE PROCEDURE dbo.a AS EXEC dbo.b;"},
			{"name": "dbo.b", "type": "procedure", "sql": "CREATE PROCEDURE dbo.b AS SELECT 1;"},
		},
		"format": "json",
	})
	if isErr {
		t.Fatalf("build_call_graph returned error: %s", text)
	}

	var got analysis.CallGraphReport
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Version != analysis.CallGraphVersion {
		t.Errorf("version = %q", got.Version)
	}
	if len(got.Graph.Edges) != 1 {
		t.Fatalf("edges = %+v, want 1", got.Graph.Edges)
	}
	if len(got.Topology.Roots) != 1 || len(got.Topology.Leaves) != 1 {
		t.Errorf("topology = %+v", got.Topology)
	}
}

func TestCallGraphToolBatchLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Limits.BatchChars = 10
	cs := connect(t, cfg)

	text, isErr := callText(t, cs, "build_call_graph", map[string]any{
		"objects": []map[string]any{
			{"name": "dbo.a", "sql": "CREATE PROCEDURE dbo.a AS SELECT 1;"},
		},
	})
	if !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
	if !strings.Contains(text, "batch limit exceeded") {
		t.Errorf("error text = %q", text)
	}
}

func TestFindCallersTool(t *testing.T) {
	cs := connect(t, nil)
	text, isErr := callText(t, cs, "find_callers", map[string]any{
		"target": "dbo.b",
		"objects": []map[string]any{
			{"name": "dbo.a", "sql": "CREATE PROCEDURE dbo.a AS EXEC dbo.b; EXEC dbo.b;"},
			{"name": "dbo.b", "sql": "CREATE PROCEDURE dbo.b AS SELECT 1;"},
		},
		"format": "json",
	})
	if isErr {
		t.Fatalf("find_callers returned error: %s", text)
	}

	var got analysis.CallersReport
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !got.Summary.HasCallers || len(got.Callers) != 1 || got.Callers[0].CallCount != 2 {
		t.Errorf("callers = %+v summary = %+v", got.Callers, got.Summary)
	}
}

func TestFindCallersToolRequiresTarget(t *testing.T) {
	cs := connect(t, nil)
	text, isErr := callText(t, cs, "find_callers", map[string]any{
		"target":  "",
		"objects": []map[string]any{},
	})
	if !isErr || !strings.Contains(text, "target is required") {
		t.Errorf("got %q (isError=%v)", text, isErr)
	}
}

func TestTermsTool(t *testing.T) {
	cs := connect(t, nil)
	text, isErr := callText(t, cs, "extract_query_terms", map[string]any{
		"sql":    "CREATE PROCEDURE dbo.p AS BEGIN TRAN; UPDATE dbo.t SET a = 1; COMMIT;",
		"format": "json",
	})
	if isErr {
		t.Fatalf("extract_query_terms returned error: %s", text)
	}

	var got analysis.TermsReport
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	want := []string{"commit", "transaction", "update", "writes"}
	if strings.Join(got.Terms, ",") != strings.Join(want, ",") {
		t.Errorf("terms = %v, want %v", got.Terms, want)
	}
}

func TestParseFrontmatter(t *testing.T) {
	content := []byte("---\ndescription: Demo\narguments:\n  - name: target\n    required: true\n---\nBody {{target}}\n")
	fm, body := parseFrontmatter(content)
	if fm.Description != "Demo" {
		t.Errorf("description = %q", fm.Description)
	}
	if len(fm.Arguments) != 1 || !fm.Arguments[0].Required {
		t.Errorf("arguments = %+v", fm.Arguments)
	}
	if body != "Body {{target}}\n" {
		t.Errorf("body = %q", body)
	}

	fm, body = parseFrontmatter([]byte("no frontmatter"))
	if fm.Description != "" || body != "no frontmatter" {
		t.Errorf("got %+v %q", fm, body)
	}
}

func TestSubstituteArgs(t *testing.T) {
	tests := []struct {
		body string
		args map[string]string
		want string
	}{
		{"Review {{name}}.", map[string]string{"name": "dbo.p"}, "Review dbo.p."},
		{"Review {{ name }}.", map[string]string{"name": "dbo.p"}, "Review dbo.p."},
		{"Review {{name}}.", nil, "Review the name."},
		{"Unclosed {{name", nil, "Unclosed {{name"},
		{"{{a}} and {{b}}", map[string]string{"a": "x", "b": "y"}, "x and y"},
	}
	for _, tt := range tests {
		if got := substituteArgs(tt.body, tt.args); got != tt.want {
			t.Errorf("substituteArgs(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestPrompts(t *testing.T) {
	cs := connect(t, nil)
	res, err := cs.ListPrompts(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListPrompts() error: %v", err)
	}
	if len(res.Prompts) < 2 {
		t.Fatalf("prompts = %d, want at least 2", len(res.Prompts))
	}

	got, err := cs.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "review_procedure",
		Arguments: map[string]string{"name": "dbo.usp_demo"},
	})
	if err != nil {
		t.Fatalf("GetPrompt() error: %v", err)
	}
	text := got.Messages[0].Content.(*mcp.TextContent).Text
	if !strings.Contains(text, "Review the stored procedure dbo.usp_demo.") {
		t.Errorf("prompt text = %q", text)
	}
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	if err != nil {
		t.Fatalf("GenerateManifest() error: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if m.Name != "io.github.panbanda/tsqlgraph" || m.Version != "1.2.3" {
		t.Errorf("manifest = %+v", m)
	}
	if m.Packages[0].Identifier != "ghcr.io/panbanda/tsqlgraph:1.2.3" {
		t.Errorf("identifier = %q", m.Packages[0].Identifier)
	}

	var names []string
	for _, tool := range m.Tools {
		names = append(names, tool.Name)
		if tool.Description == "" || strings.Contains(tool.Description, "\n") {
			t.Errorf("tool %s description = %q, want its first line", tool.Name, tool.Description)
		}
	}
	want := []string{"analyze_tsql", "extract_query_terms", "build_call_graph", "find_callers"}
	if !slices.Equal(names, want) {
		t.Errorf("manifest tools = %v, want %v", names, want)
	}
	if m.Tools[3].Description != "Finds which objects in a batch call a target procedure or function." {
		t.Errorf("find_callers description = %q", m.Tools[3].Description)
	}
}

func TestManifestMatchesRegisteredTools(t *testing.T) {
	cs := connect(t, nil)
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error: %v", err)
	}
	registered := make(map[string]string)
	for _, tool := range res.Tools {
		registered[tool.Name] = tool.Description
	}
	if len(registered) != len(catalog) {
		t.Fatalf("registered %d tools, manifest lists %d", len(registered), len(catalog))
	}
	for _, c := range catalog {
		if registered[c.name] != c.describe() {
			t.Errorf("tool %s is registered with a different description", c.name)
		}
	}
}
