package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, sql string) Result {
	t.Helper()
	p := New(WithRelations(false))
	res := p.Parse(context.Background(), Unit{Name: "u", SQL: sql})
	require.NotNil(t, res.IR)
	return res
}

type shape struct {
	Kind    Kind
	Verb    string
	Target  string
	Value   string
	Depth   int
	Dynamic bool
}

func shapes(ir *IR) []shape {
	out := make([]shape, 0, len(ir.Nodes))
	for _, n := range ir.Nodes {
		out = append(out, shape{n.Kind, n.Verb, n.Target, n.Value, n.Depth, n.Dynamic})
	}
	return out
}

func refNames(ir *IR, kind RefKind) []string {
	var out []string
	for _, r := range ir.Refs {
		if r.Kind == kind {
			out = append(out, r.Name)
		}
	}
	return out
}

func TestParse_MinimalProcedure(t *testing.T) {
	res := parse(t, "CREATE PROCEDURE dbo.usp_demo AS SELECT 1")

	assert.False(t, res.Degraded)
	assert.Empty(t, res.Reason)
	assert.Equal(t, []Routine{{Kind: "procedure", Name: "dbo.usp_demo"}}, res.IR.Routines)
	assert.Empty(t, res.IR.Nodes)
	assert.Empty(t, res.IR.Refs)
	assert.Equal(t, 0, res.IR.MaxDepth)
	assert.Equal(t, 41, res.Digest.Length)
	assert.Len(t, res.Digest.Hash8, 8)
}

func TestParse_Transaction(t *testing.T) {
	sql := `CREATE PROCEDURE dbo.p AS
BEGIN
  SET XACT_ABORT ON;
  BEGIN TRAN;
  UPDATE dbo.Accounts SET Balance = Balance - 1 WHERE Id = @id;
  COMMIT TRAN;
END`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []shape{
		{Kind: KindOption, Verb: VerbXactAbort, Value: "ON"},
		{Kind: KindTransaction, Verb: VerbBegin},
		{Kind: KindDML, Verb: VerbUpdate, Target: "dbo.Accounts"},
		{Kind: KindTransaction, Verb: VerbCommit},
	}, shapes(res.IR))
	assert.Equal(t, []string{"dbo.Accounts"}, refNames(res.IR, RefTable))

	for i, n := range res.IR.Nodes {
		assert.Equal(t, i, n.Ordinal)
	}
	assert.Equal(t, 5, res.IR.Nodes[2].Line)
}

func TestParse_ControlFlowNesting(t *testing.T) {
	sql := `CREATE PROC p AS
BEGIN TRY
  IF @a = 1
    RETURN 1
  ELSE
    WHILE @i < 10
      SET @i = @i + 1
END TRY
BEGIN CATCH
  THROW;
END CATCH`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []shape{
		{Kind: KindTry},
		{Kind: KindBranch, Depth: 1},
		{Kind: KindReturn, Value: "1", Depth: 2},
		{Kind: KindLoop, Depth: 2},
		{Kind: KindCatch},
		{Kind: KindRaise, Verb: VerbThrow, Depth: 1},
	}, shapes(res.IR))
	assert.True(t, res.IR.Nodes[1].HasElse)
	assert.Equal(t, 3, res.IR.MaxDepth)
}

func TestParse_ExecForms(t *testing.T) {
	sql := `EXEC dbo.usp_a @x = 1;
EXECUTE @rc = [dbo].[usp_b];
EXEC (@sql);
EXEC sp_executesql @sql;
EXECUTE AS USER = 'x';`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []shape{
		{Kind: KindCall, Verb: VerbExec, Target: "dbo.usp_a"},
		{Kind: KindCall, Verb: VerbExecute, Target: "[dbo].[usp_b]"},
		{Kind: KindCall, Verb: VerbExec, Dynamic: true},
		{Kind: KindCall, Verb: VerbExec, Target: "sp_executesql", Dynamic: true},
	}, shapes(res.IR))
}

func TestParse_DataChanges(t *testing.T) {
	sql := `INSERT INTO #tmp (a) SELECT a FROM dbo.Src;
DELETE FROM @tv WHERE a = 1;
MERGE dbo.Target AS t USING dbo.Src AS s ON t.id = s.id
WHEN MATCHED THEN UPDATE SET t.v = s.v
OUTPUT $action INTO @log;
TRUNCATE TABLE dbo.Stage;
SELECT a INTO #copy FROM dbo.Src;`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []shape{
		{Kind: KindDML, Verb: VerbInsert, Target: "#tmp"},
		{Kind: KindDML, Verb: VerbDelete},
		{Kind: KindDML, Verb: VerbMerge, Target: "dbo.Target"},
		{Kind: KindDML, Verb: VerbTruncate, Target: "dbo.Stage"},
		{Kind: KindDML, Verb: VerbSelectInto, Target: "#copy"},
	}, shapes(res.IR))
	assert.True(t, res.IR.Nodes[2].Output)
	assert.False(t, res.IR.Nodes[0].Output)
	assert.Equal(t,
		[]string{"#tmp", "dbo.Src", "dbo.Target", "dbo.Src", "dbo.Stage", "#copy", "dbo.Src"},
		refNames(res.IR, RefTable))
}

func TestParse_AliasedTargets(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		verb   string
		target string
		tables []string
	}{
		{
			name:   "update alias with join",
			sql:    "UPDATE o SET o.Status = 1 FROM dbo.Orders o JOIN dbo.Customers c ON c.Id = o.CustomerId;",
			verb:   VerbUpdate,
			target: "dbo.Orders",
			tables: []string{"dbo.Orders", "dbo.Customers"},
		},
		{
			name:   "update alias with AS",
			sql:    "UPDATE o SET Status = 1 FROM dbo.Orders AS o WHERE o.Id = 1;",
			verb:   VerbUpdate,
			target: "dbo.Orders",
			tables: []string{"dbo.Orders"},
		},
		{
			name:   "delete alias",
			sql:    "DELETE o FROM dbo.Orders o WHERE o.Id = 1;",
			verb:   VerbDelete,
			target: "dbo.Orders",
			tables: []string{"dbo.Orders"},
		},
		{
			name:   "unaliased table is kept",
			sql:    "UPDATE Orders SET Status = 1 FROM Orders WHERE Id = 1;",
			verb:   VerbUpdate,
			target: "Orders",
			tables: []string{"Orders", "Orders"},
		},
		{
			name:   "alias in subquery does not resolve",
			sql:    "UPDATE o SET Status = 1 WHERE Id IN (SELECT Id FROM dbo.Orders o);",
			verb:   VerbUpdate,
			target: "o",
			tables: []string{"o", "dbo.Orders"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.sql)

			require.False(t, res.Degraded, res.Reason)
			require.NotEmpty(t, res.IR.Nodes)
			assert.Equal(t, shape{Kind: KindDML, Verb: tt.verb, Target: tt.target}, shapes(res.IR)[0])
			assert.Equal(t, tt.tables, refNames(res.IR, RefTable))
		})
	}
}

func TestParse_FallbackResolvesAlias(t *testing.T) {
	res := parse(t, "UPDATE o SET Note = 'x FROM dbo.Orders o;")

	require.True(t, res.Degraded)
	require.NotEmpty(t, res.IR.Nodes)
	assert.Equal(t, "o", res.IR.Nodes[0].Target)

	res = parse(t, "UPDATE o SET Status = 1 FROM dbo.Orders o;\nEND")
	require.True(t, res.Degraded)
	require.NotEmpty(t, res.IR.Nodes)
	assert.Equal(t, "dbo.Orders", res.IR.Nodes[0].Target)
	assert.NotContains(t, refNames(res.IR, RefTable), "o")
}

func TestParse_ElseRange(t *testing.T) {
	sql := `IF @a = 1
BEGIN
  WHILE @i < 2 SET @i = @i + 1;
END
ELSE
BEGIN
  IF @b = 1 PRINT 1;
  RETURN 2;
END
RETURN 0;`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	require.Len(t, res.IR.Nodes, 6)
	outer := res.IR.Nodes[0]
	assert.True(t, outer.HasElse)
	assert.Equal(t, 2, outer.ElseStart)
	assert.Equal(t, 5, outer.ElseEnd)
	assert.Equal(t, KindBranch, res.IR.Nodes[outer.ElseStart].Kind)
	assert.Equal(t, KindReturn, res.IR.Nodes[outer.ElseEnd].Kind)

	inner := res.IR.Nodes[2]
	assert.False(t, inner.HasElse)
	assert.Zero(t, inner.ElseEnd)
}

func TestParse_FunctionAndSystemRefs(t *testing.T) {
	sql := `SELECT dbo.fn_x(a), COUNT(*), GETDATE(), @@TRANCOUNT, XACT_STATE()
FROM dbo.T t JOIN dbo.U u ON t.id = u.id
WHERE a IN (1, 2) AND EXISTS (SELECT 1)`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []string{"dbo.fn_x", "COUNT", "GETDATE", "XACT_STATE"}, refNames(res.IR, RefFunction))
	assert.Equal(t, []string{"@@TRANCOUNT"}, refNames(res.IR, RefSystem))
	assert.Equal(t, []string{"dbo.T", "dbo.U"}, refNames(res.IR, RefTable))
}

func TestParse_OutputParameters(t *testing.T) {
	sql := "CREATE PROCEDURE dbo.p @id INT, @err_msg NVARCHAR(200) OUTPUT, @rc INT OUT AS SELECT 1"
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []string{"@err_msg", "@rc"}, refNames(res.IR, RefOutputParam))
	assert.Empty(t, refNames(res.IR, RefFunction))
}

func TestParse_DropIfExistsIsNotBranch(t *testing.T) {
	res := parse(t, "DROP TABLE IF EXISTS #t; IF @x = 1 PRINT 'y'")

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []shape{
		{Kind: KindBranch},
		{Kind: KindPrint, Depth: 1},
	}, shapes(res.IR))
}

func TestParse_GotoAndLabel(t *testing.T) {
	sql := `IF @x = 1 GOTO Done
PRINT 'a'
Done:
RETURN`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []shape{
		{Kind: KindBranch},
		{Kind: KindGoto, Target: "Done", Depth: 1},
		{Kind: KindPrint},
		{Kind: KindLabel, Target: "Done"},
		{Kind: KindReturn},
	}, shapes(res.IR))
}

func TestParse_Cursor(t *testing.T) {
	sql := `DECLARE c CURSOR LOCAL FAST_FORWARD FOR SELECT id FROM dbo.T;
OPEN c;
FETCH NEXT FROM c INTO @id;
WHILE @@FETCH_STATUS = 0
BEGIN
  FETCH NEXT FROM c INTO @id;
END
CLOSE c;
DEALLOCATE c;`
	res := parse(t, sql)

	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, []shape{
		{Kind: KindCursor, Verb: VerbDeclare, Target: "c"},
		{Kind: KindCursor, Verb: VerbOpen},
		{Kind: KindCursor, Verb: VerbFetch},
		{Kind: KindLoop},
		{Kind: KindCursor, Verb: VerbFetch, Depth: 1},
		{Kind: KindCursor, Verb: VerbClose},
		{Kind: KindCursor, Verb: VerbDeallocate},
	}, shapes(res.IR))
	assert.Equal(t, []string{"dbo.T"}, refNames(res.IR, RefTable))
	assert.Equal(t, []string{"@@FETCH_STATUS"}, refNames(res.IR, RefSystem))
}

func TestParse_DegradesOnUnterminatedString(t *testing.T) {
	sql := "CREATE PROCEDURE dbo.p AS\nBEGIN\n  INSERT INTO dbo.Log (Msg) VALUES ('s3cr3t);\nEND"
	res := parse(t, sql)

	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Reason)
	assert.NotContains(t, res.Reason, "s3cr3t")
	assert.Equal(t, []Routine{{Kind: "procedure", Name: "dbo.p"}}, res.IR.Routines)
	assert.Equal(t, []shape{
		{Kind: KindDML, Verb: VerbInsert, Target: "dbo.Log"},
	}, shapes(res.IR))
	assert.Equal(t, []string{"dbo.Log"}, refNames(res.IR, RefTable))
}

func TestParse_DegradesOnUnbalancedEnd(t *testing.T) {
	sql := `BEGIN TRAN
UPDATE t SET a = 1
IF @@ERROR <> 0 ROLLBACK
COMMIT
END`
	res := parse(t, sql)

	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reason, "END")
	assert.Equal(t, []shape{
		{Kind: KindTransaction, Verb: VerbBegin},
		{Kind: KindDML, Verb: VerbUpdate, Target: "t"},
		{Kind: KindBranch},
		{Kind: KindTransaction, Verb: VerbRollback},
		{Kind: KindTransaction, Verb: VerbCommit},
	}, shapes(res.IR))
	assert.Equal(t, []string{"@@ERROR"}, refNames(res.IR, RefSystem))
}

func TestParse_FallbackDepthAndSelectInto(t *testing.T) {
	res := parse(t, "SELECT a INTO #t FROM b; IF 1=1 BEGIN DELETE FROM #t; END END")

	assert.True(t, res.Degraded)
	assert.Equal(t, []shape{
		{Kind: KindDML, Verb: VerbSelectInto, Target: "#t"},
		{Kind: KindBranch},
		{Kind: KindDML, Verb: VerbDelete, Target: "#t", Depth: 1},
	}, shapes(res.IR))
	assert.Equal(t, 1, res.IR.MaxDepth)
}

func TestParse_FallbackExec(t *testing.T) {
	res := parse(t, "EXEC dbo.usp_x @a = 1; EXEC (@s); END")

	assert.True(t, res.Degraded)
	assert.Equal(t, []shape{
		{Kind: KindCall, Verb: VerbExec, Target: "dbo.usp_x"},
		{Kind: KindCall, Verb: VerbExec, Dynamic: true},
	}, shapes(res.IR))
}

func TestParse_GrammarErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"else without if", "ELSE SELECT 1"},
		{"unclosed begin", "BEGIN SELECT 1"},
		{"merge without terminator", "MERGE dbo.t USING dbo.s ON 1 = 1 WHEN MATCHED THEN DELETE"},
		{"try without catch", "BEGIN TRY SELECT 1 END TRY"},
		{"end try closes plain block", "BEGIN SELECT 1 END TRY"},
		{"insert without source", "INSERT INTO dbo.t"},
		{"update without set", "UPDATE dbo.t WHERE a = 1"},
		{"unterminated comment", "SELECT 1 /* open"},
		{"unbalanced parenthesis", "SELECT (1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.sql)
			assert.True(t, res.Degraded)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	sql := `CREATE PROCEDURE dbo.p AS
BEGIN
  IF EXISTS (SELECT 1 FROM dbo.T) EXEC dbo.q;
  ELSE INSERT dbo.T VALUES (1);
END`
	p := New(WithRelations(false))
	first := p.Parse(context.Background(), Unit{SQL: sql})
	second := p.Parse(context.Background(), Unit{SQL: sql})
	assert.Equal(t, first, second)
	assert.False(t, first.Degraded, first.Reason)
	assert.Equal(t, []shape{
		{Kind: KindBranch},
		{Kind: KindCall, Verb: VerbExec, Target: "dbo.q", Depth: 1},
		{Kind: KindDML, Verb: VerbInsert, Target: "dbo.T", Depth: 1},
	}, shapes(first.IR))
}

func TestHeader(t *testing.T) {
	r, ok := Header("-- comment\nALTER FUNCTION [dbo].[fn] () RETURNS INT AS BEGIN RETURN 1 END")
	require.True(t, ok)
	assert.Equal(t, Routine{Kind: "function", Name: "[dbo].[fn]"}, r)

	_, ok = Header("SELECT 1")
	assert.False(t, ok)
}

func TestUnit_ObjectType(t *testing.T) {
	assert.Equal(t, TypeFunction, Unit{Type: "Function"}.ObjectType())
	assert.Equal(t, TypeProcedure, Unit{Type: "view"}.ObjectType())
	assert.Equal(t, TypeProcedure, Unit{}.ObjectType())
}
