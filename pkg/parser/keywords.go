package parser

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// statementStarts are keywords that open a new statement when they appear
// outside parentheses and CASE expressions.
var statementStarts = set(
	"ALTER", "BEGIN", "BREAK", "CLOSE", "COMMIT", "CONTINUE", "CREATE",
	"DEALLOCATE", "DECLARE", "DELETE", "DROP", "ELSE", "END", "EXEC", "EXECUTE",
	"FETCH", "GO", "GOTO", "IF", "INSERT", "MERGE", "OPEN", "PRINT", "RAISERROR",
	"RETURN", "ROLLBACK", "SAVE", "SELECT", "SET", "THROW", "TRUNCATE", "UPDATE",
	"USE", "WAITFOR", "WHILE", "WITH",
)

// reserved words never name a table, procedure or function.
var reserved = set(
	"ADD", "ALL", "AND", "ANY", "AS", "ASC", "BEGIN", "BETWEEN", "BREAK", "BY",
	"CASE", "CATCH", "CHECK", "CLOSE", "COMMIT", "CONSTRAINT", "CONTINUE",
	"CREATE", "CROSS", "CURSOR", "DEALLOCATE", "DECLARE", "DEFAULT", "DELETE",
	"DESC", "DISTINCT", "DROP", "ELSE", "END", "EXCEPT", "EXEC", "EXECUTE",
	"EXISTS", "FETCH", "FOR", "FOREIGN", "FROM", "FULL", "GOTO", "GROUP",
	"HAVING", "IF", "IN", "INNER", "INSERT", "INTERSECT", "INTO", "IS", "JOIN",
	"KEY", "LEFT", "LIKE", "MERGE", "NOT", "NULL", "OF", "ON", "OPEN", "OPTION",
	"OR", "ORDER", "OUTER", "OUTPUT", "OVER", "PERCENT", "PRIMARY", "PRINT",
	"PROC", "PROCEDURE", "RAISERROR", "REFERENCES", "RETURN", "RIGHT",
	"ROLLBACK", "SAVE", "SELECT", "SET", "TABLE", "THEN", "THROW", "TOP", "TRAN",
	"TRANSACTION", "TRUNCATE", "TRY", "UNION", "UNIQUE", "UPDATE", "USING",
	"VALUES", "WHEN", "WHERE", "WHILE", "WITH",
)

// notFunctions are keywords and type names that may be followed by an
// opening parenthesis without being a function call.
var notFunctions = set(
	"AND", "AS", "BINARY", "CHAR", "CHECK", "DATETIME2", "DATETIMEOFFSET",
	"DECIMAL", "EXISTS", "FLOAT", "FROM", "IF", "IN", "INTO", "JOIN", "KEY",
	"NCHAR", "NOT", "NUMERIC", "NVARCHAR", "ON", "OPTION", "OR", "OUTPUT", "OVER",
	"PRINT", "RAISERROR", "RETURN", "RETURNS", "SELECT", "SET", "TABLE", "THEN",
	"TIME", "TOP", "UNIQUE", "USING", "VALUES", "VARBINARY", "VARCHAR", "WHEN",
	"WHERE", "WHILE", "WITH", "ELSE", "CASE", "BY", "PARTITION", "WITHIN",
	"ANY", "ALL", "SOME", "DEFAULT", "CLUSTERED", "NONCLUSTERED", "INCLUDE",
	"LIKE", "BETWEEN", "IS", "DISTINCT",
)

// nameHeads precede a name that is being declared or defined, so a following
// parenthesis is a column or parameter list rather than a call.
var nameHeads = set(
	"CONSTRAINT", "EXEC", "EXECUTE", "FUNCTION", "INDEX", "INSERT", "INTO",
	"PROC", "PROCEDURE", "REFERENCES", "TABLE", "TRIGGER", "TYPE", "VIEW",
	"WITH",
)

// dropTargets precede IF in DROP ... IF EXISTS.
var dropTargets = set(
	"DATABASE", "FUNCTION", "INDEX", "PROC", "PROCEDURE", "SCHEMA", "SEQUENCE",
	"SYNONYM", "TABLE", "TRIGGER", "TYPE", "VIEW",
)

var routineKinds = map[string]string{
	"PROC":      "procedure",
	"PROCEDURE": "procedure",
	"FUNCTION":  "function",
	"TRIGGER":   "trigger",
	"VIEW":      "view",
}

var isolationLevels = set(
	"READ UNCOMMITTED", "READ COMMITTED", "REPEATABLE READ", "SNAPSHOT", "SERIALIZABLE",
)
