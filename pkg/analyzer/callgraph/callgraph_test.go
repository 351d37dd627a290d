package callgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/tsqlgraph/pkg/parser"
)

func proc(name, sql string) parser.Unit {
	return parser.Unit{Name: name, Type: parser.TypeProcedure, SQL: sql}
}

func fn(name, sql string) parser.Unit {
	return parser.Unit{Name: name, Type: parser.TypeFunction, SQL: sql}
}

func TestBuild_SimpleCorpus(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS EXEC dbo.usp_B;"),
		proc("dbo.usp_B", "CREATE PROCEDURE dbo.usp_B AS SELECT dbo.fn_C(1);"),
		fn("dbo.fn_C", "CREATE FUNCTION dbo.fn_C() RETURNS INT AS BEGIN RETURN 1; END"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, Summary{ObjectCount: 3, NodeCount: 3, EdgeCount: 2}, g.Summary)
	assert.Equal(t, []Node{
		{ID: "dbo.fn_c", Name: "dbo.fn_C", Type: "function"},
		{ID: "dbo.usp_a", Name: "dbo.usp_A", Type: "procedure"},
		{ID: "dbo.usp_b", Name: "dbo.usp_B", Type: "procedure"},
	}, g.Graph.Nodes)
	assert.Equal(t, []Edge{
		{From: "dbo.usp_a", To: "dbo.usp_b", Kind: KindExec, Count: 1, Signals: []string{"EXEC"}},
		{From: "dbo.usp_b", To: "dbo.fn_c", Kind: KindFunction, Count: 1, Signals: []string{"FUNCTION"}},
	}, g.Graph.Edges)
	assert.Equal(t, []Issue{}, g.Errors)

	assert.Equal(t, Topology{
		Roots:     []string{"dbo.usp_a"},
		Leaves:    []string{"dbo.fn_c"},
		InDegree:  map[string]int{"dbo.fn_c": 1, "dbo.usp_a": 0, "dbo.usp_b": 1},
		OutDegree: map[string]int{"dbo.fn_c": 0, "dbo.usp_a": 1, "dbo.usp_b": 1},
	}, g.Topology)
}

func TestBuild_IgnoresCommentsAndStrings(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", `CREATE PROCEDURE dbo.usp_A AS
BEGIN
    EXEC dbo.usp_B;
    -- EXEC dbo.usp_B
    SELECT 'EXEC dbo.usp_B';
END`),
		proc("dbo.usp_B", "CREATE PROCEDURE dbo.usp_B AS SELECT 1;"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, g.Graph.Edges, 1)
	assert.Equal(t, 1, g.Graph.Edges[0].Count)
}

func TestBuild_DynamicExec(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS\nBEGIN\n  EXEC(@sql);\n  EXEC sp_executesql @sql;\nEND"),
		proc("sp_executesql", "CREATE PROCEDURE sp_executesql AS SELECT 1;"),
	}

	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, g.Graph.Edges)

	opts := DefaultOptions()
	opts.IgnoreDynamicExec = false
	g, err = Build(context.Background(), units, opts)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{From: "dbo.usp_a", To: "sp_executesql", Kind: KindExec, Count: 1, Signals: []string{"EXEC"}},
	}, g.Graph.Edges)
}

func TestBuild_AmbiguousTarget(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS BEGIN EXEC usp_X; EXEC usp_X; END"),
		proc("dbo.usp_X", "CREATE PROCEDURE dbo.usp_X AS SELECT 1;"),
		proc("alt.usp_X", "CREATE PROCEDURE alt.usp_X AS SELECT 2;"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, g.Graph.Edges)
	assert.Equal(t, []Issue{{
		ID:      IssueAmbiguousTarget,
		Message: "Call to usp_x is ambiguous across schemas.",
		Object:  "dbo.usp_A",
	}}, g.Errors)
}

func TestBuild_QualifiedCallResolvesDespiteSharedBaseName(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS EXEC [alt].[usp_X];"),
		proc("dbo.usp_X", "CREATE PROCEDURE dbo.usp_X AS SELECT 1;"),
		proc("alt.usp_X", "CREATE PROCEDURE alt.usp_X AS SELECT 2;"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, g.Graph.Edges, 1)
	assert.Equal(t, "alt.usp_x", g.Graph.Edges[0].To)
	assert.Empty(t, g.Errors)
}

func TestBuild_SchemaSensitive(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS BEGIN EXEC usp_B; EXEC dbo.usp_B; END"),
		proc("dbo.usp_B", "CREATE PROCEDURE dbo.usp_B AS SELECT 1;"),
	}
	opts := DefaultOptions()
	opts.SchemaSensitive = true
	g, err := Build(context.Background(), units, opts)
	require.NoError(t, err)

	require.Len(t, g.Graph.Edges, 1)
	assert.Equal(t, 1, g.Graph.Edges[0].Count)
}

func TestBuild_TypeFilters(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS BEGIN EXEC dbo.fn_C; SELECT dbo.fn_C(1); END"),
		fn("dbo.fn_C", "CREATE FUNCTION dbo.fn_C() RETURNS INT AS BEGIN RETURN 1; END"),
	}

	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, g.Graph.Edges, 1, "EXEC never resolves to a function")
	assert.Equal(t, KindFunction, g.Graph.Edges[0].Kind)

	opts := DefaultOptions()
	opts.IncludeFunctions = false
	g, err = Build(context.Background(), units, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Summary.NodeCount)
	assert.Equal(t, 2, g.Summary.ObjectCount)
	assert.Empty(t, g.Graph.Edges)
}

func TestBuild_AggregatesEdges(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS BEGIN EXEC dbo.usp_B; EXECUTE dbo.usp_B; EXEC dbo.usp_B; END"),
		proc("dbo.usp_B", "CREATE PROCEDURE dbo.usp_B AS SELECT 1;"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []Edge{
		{From: "dbo.usp_a", To: "dbo.usp_b", Kind: KindExec, Count: 2, Signals: []string{"EXEC"}},
		{From: "dbo.usp_a", To: "dbo.usp_b", Kind: KindExecute, Count: 1, Signals: []string{"EXECUTE"}},
	}, g.Graph.Edges)
	assert.Equal(t, 2, g.Topology.OutDegree["dbo.usp_a"])
	assert.Equal(t, 2, g.Topology.InDegree["dbo.usp_b"])
}

func TestBuild_DuplicateNamesCollapse(t *testing.T) {
	units := []parser.Unit{
		proc("dbo.usp_A", "CREATE PROCEDURE dbo.usp_A AS SELECT 1;"),
		proc("[dbo].[USP_A]", "CREATE PROCEDURE dbo.usp_A AS SELECT 2;"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []Node{{ID: "dbo.usp_a", Name: "dbo.usp_A", Type: "procedure"}}, g.Graph.Nodes)
}

func TestBuild_Cycles(t *testing.T) {
	tests := []struct {
		name  string
		units []parser.Unit
		want  bool
	}{
		{
			name: "mutual",
			units: []parser.Unit{
				proc("a", "CREATE PROCEDURE a AS EXEC b;"),
				proc("b", "CREATE PROCEDURE b AS EXEC a;"),
			},
			want: true,
		},
		{
			name:  "self",
			units: []parser.Unit{proc("a", "CREATE PROCEDURE a AS EXEC a;")},
			want:  true,
		},
		{
			name: "chain",
			units: []parser.Unit{
				proc("a", "CREATE PROCEDURE a AS EXEC b;"),
				proc("b", "CREATE PROCEDURE b AS EXEC c;"),
				proc("c", "CREATE PROCEDURE c AS SELECT 1;"),
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(context.Background(), tt.units, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Topology.HasCycles)
			assert.Equal(t, tt.want, g.Summary.HasCycles)
		})
	}
}

func TestBuild_NodeLimit(t *testing.T) {
	units := make([]parser.Unit, 0, 501)
	for i := range 501 {
		units = append(units, proc(fmt.Sprintf("dbo.p%03d", i), fmt.Sprintf("CREATE PROCEDURE dbo.p%03d AS EXEC dbo.p500;", i)))
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, g.Summary.Truncated)
	assert.Equal(t, 501, g.Summary.ObjectCount)
	assert.Equal(t, 500, g.Summary.NodeCount)
	assert.Empty(t, g.Graph.Edges, "the only call target was beyond the node cap")
	assert.Equal(t, []Issue{{
		ID:      IssueNodeLimit,
		Message: "Node limit exceeded. max_nodes=500.",
		Object:  "dbo.p500",
	}}, g.Errors)
}

func TestBuild_EdgeLimit(t *testing.T) {
	units := []parser.Unit{
		proc("z", "CREATE PROCEDURE z AS BEGIN EXEC b; EXEC a; END"),
		proc("a", "CREATE PROCEDURE a AS SELECT 1;"),
		proc("b", "CREATE PROCEDURE b AS SELECT 1;"),
	}
	opts := DefaultOptions()
	opts.MaxEdges = 1
	g, err := Build(context.Background(), units, opts)
	require.NoError(t, err)

	assert.True(t, g.Summary.Truncated)
	assert.Equal(t, []Edge{{From: "z", To: "b", Kind: KindExec, Count: 1, Signals: []string{"EXEC"}}}, g.Graph.Edges)
	require.Len(t, g.Errors, 1)
	assert.Equal(t, IssueEdgeLimit, g.Errors[0].ID)
}

func TestBuild_CapsCountDistinctItems(t *testing.T) {
	units := []parser.Unit{
		proc("z", "CREATE PROCEDURE z AS BEGIN EXEC b; EXEC b; EXEC a; END"),
		proc("Z", "CREATE PROCEDURE Z AS EXEC a;"),
		proc("b", "CREATE PROCEDURE b AS SELECT 1;"),
		proc("a", "CREATE PROCEDURE a AS SELECT 1;"),
		proc("c", "CREATE PROCEDURE c AS SELECT 1;"),
	}
	opts := DefaultOptions()
	opts.MaxNodes = 3
	opts.MaxEdges = 1
	g, err := Build(context.Background(), units, opts)
	require.NoError(t, err)

	ids := make([]string, len(g.Graph.Nodes))
	for i, n := range g.Graph.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"a", "b", "z"}, ids, "the duplicate Z does not use a slot")
	assert.Equal(t, []Edge{{From: "z", To: "b", Kind: KindExec, Count: 2, Signals: []string{"EXEC"}}}, g.Graph.Edges)
	assert.Equal(t, []Issue{
		{ID: IssueEdgeLimit, Message: "Edge limit exceeded. max_edges=1."},
		{ID: IssueNodeLimit, Message: "Node limit exceeded. max_nodes=3.", Object: "c"},
	}, g.Errors)
	assert.True(t, g.Summary.Truncated)
}

func TestBuild_ErrorsSortedByIDThenObject(t *testing.T) {
	units := []parser.Unit{
		proc("z", "CREATE PROCEDURE z AS BEGIN EXEC usp_X; SELECT 'oops"),
		proc("m", "CREATE PROCEDURE m AS EXEC usp_X;"),
		proc("a", "CREATE PROCEDURE a AS SELECT 'oops"),
		proc("dbo.usp_X", "CREATE PROCEDURE dbo.usp_X AS SELECT 1;"),
		proc("alt.usp_X", "CREATE PROCEDURE alt.usp_X AS SELECT 2;"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	got := make([]string, len(g.Errors))
	for i, e := range g.Errors {
		got[i] = e.ID + " " + e.Object
	}
	assert.Equal(t, []string{
		"AMBIGUOUS_TARGET m",
		"AMBIGUOUS_TARGET z",
		"PARSE_ERROR a",
		"PARSE_ERROR z",
	}, got)
}

func TestBuild_DegreeSums(t *testing.T) {
	units := []parser.Unit{
		proc("a", "CREATE PROCEDURE a AS BEGIN EXEC b; EXEC c; SELECT f(1); END"),
		proc("b", "CREATE PROCEDURE b AS EXEC c;"),
		proc("c", "CREATE PROCEDURE c AS SELECT f(2);"),
		fn("f", "CREATE FUNCTION f(@x INT) RETURNS INT AS BEGIN RETURN @x; END"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	in, out := 0, 0
	for _, id := range []string{"a", "b", "c", "f"} {
		in += g.Topology.InDegree[id]
		out += g.Topology.OutDegree[id]
	}
	assert.Equal(t, 5, g.Summary.EdgeCount)
	assert.Equal(t, g.Summary.EdgeCount, in)
	assert.Equal(t, g.Summary.EdgeCount, out)
	assert.Equal(t, []string{"a"}, g.Topology.Roots)
	assert.Equal(t, []string{"f"}, g.Topology.Leaves)
}

func TestBuild_CharLimit(t *testing.T) {
	units := []parser.Unit{proc("a", strings.Repeat("x", 11))}
	opts := DefaultOptions()
	opts.MaxTotalChars = 10

	_, err := Build(context.Background(), units, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchLimit))
	var limitErr *BatchLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "chars", limitErr.Limit)
	assert.Equal(t, 11, limitErr.Actual)
}

func TestBuild_ParseErrorIsScoped(t *testing.T) {
	units := []parser.Unit{
		proc("a", "CREATE PROCEDURE a AS BEGIN EXEC b; SELECT 'oops"),
		proc("b", "CREATE PROCEDURE b AS SELECT 1;"),
	}
	g, err := Build(context.Background(), units, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, g.Errors, 1)
	assert.Equal(t, IssueParseError, g.Errors[0].ID)
	assert.Equal(t, "a", g.Errors[0].Object)
	assert.NotContains(t, g.Errors[0].Message, "oops")
	assert.Len(t, g.Graph.Edges, 1, "fallback still recovers the EXEC")
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, []parser.Unit{proc("a", "SELECT 1")}, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
