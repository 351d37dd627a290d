package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and key thresholds.

func describeAnalyze() string {
	return `Extracts structural signals from one T-SQL unit without echoing its source.

USE WHEN:
- Reviewing a stored procedure, function or trigger before changing it
- Planning a migration off SQL Server and sizing the transaction/error-handling work
- Checking which tables a unit writes to and how

INTERPRETING RESULTS:
- transactions.uses_transaction with has_try_catch=false: errors may leave a transaction open
- xact_abort "OFF" or missing alongside explicit transactions: partial commits are possible
- control_flow.summary.cyclomatic_complexity > 10: many paths, test coverage is hard
- migration_impacts.items: severity high > medium > low, sorted by id
- errors containing "parse_error": the unit was analyzed by the fallback scanner, results are best effort
- errors containing "control_flow_graph_truncated" or "max_items_exceeded": lists were capped, metrics still cover the whole unit

METRICS RETURNED:
- references: tables and functions (sorted, deduplicated)
- transactions: begin/commit/rollback/savepoint counts, XACT_ABORT, isolation level
- data_changes: per-verb counts and per-table operations
- error_handling: TRY/CATCH, THROW, RAISERROR, @@ERROR, RETURN values, output error params
- control_flow: summary metrics, control keyword signals and a bounded node/edge graph`
}

func describeCallGraph() string {
	return `Builds the EXEC and function-call graph across a batch of T-SQL objects.

USE WHEN:
- Mapping dependencies between stored procedures before a refactor
- Finding entry points (roots) and leaf procedures
- Detecting recursive or mutually recursive procedures

INTERPRETING RESULTS:
- topology.roots: objects nobody in the batch calls, likely entry points
- topology.leaves: objects that call nothing in the batch
- has_cycles=true: at least one recursion cycle exists
- AMBIGUOUS_TARGET errors: a call matched more than one object, no edge was added
- PARSE_ERROR errors: an object was analyzed by the fallback scanner
- summary.truncated=true: NODE_LIMIT_EXCEEDED or EDGE_LIMIT_EXCEEDED, graph covers the first objects in input order

METRICS RETURNED:
- graph.nodes and graph.edges (edges carry kind and call count)
- topology: roots, leaves, in/out degree per node, has_cycles
- summary: object, node and edge counts`
}

func describeCallers() string {
	return `Finds which objects in a batch call a target procedure or function.

USE WHEN:
- Assessing the blast radius of changing a procedure signature
- Checking whether an object is still used before dropping it

INTERPRETING RESULTS:
- summary.has_callers=false: nothing in the batch calls the target
- call_kinds: exec, execute or function_call
- Self calls are excluded unless include_self is set
- MAX_ITEMS_EXCEEDED errors: a caller's signal list was capped

METRICS RETURNED:
- target: name, type, normalized name
- callers: name, type, call_count, call_kinds (most calls first, then by name)
- summary: caller_count, total_calls`
}

func describeTerms() string {
	return `Extracts deterministic lexical search terms from a T-SQL unit.

USE WHEN:
- Indexing procedures for keyword search
- Grouping similar procedures by what they do

INTERPRETING RESULTS:
- Terms are lowercase, sorted and deduplicated, capped at 30
- Terms describe behavior (writes, transaction, commit), never literal values

METRICS RETURNED:
- terms: list of strings
- errors: parse_error when the fallback scanner was used`
}
