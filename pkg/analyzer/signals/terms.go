package signals

import (
	"iter"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/collate"
)

// QueryTerms returns the lexical retrieval terms for b: lowercase, sorted,
// deduplicated and capped. The sequence can be ranged over repeatedly.
func QueryTerms(b *Bundle) iter.Seq[string] {
	limit := b.termLimit
	if limit <= 0 {
		limit = DefaultOptions().MaxQueryTerms
	}
	terms := collate.Strings(rawTerms(b), collate.Lower, limit).Items
	return func(yield func(string) bool) {
		for _, t := range terms {
			if !yield(t) {
				return
			}
		}
	}
}

func rawTerms(b *Bundle) []string {
	var out []string
	add := func(cond bool, terms ...string) {
		if cond {
			out = append(out, terms...)
		}
	}

	for _, item := range b.MigrationImpacts.Items {
		out = append(out, item.ID, item.Category)
	}

	ops := b.DataChanges.Operations
	add(ops.Insert.Count > 0, "insert")
	add(ops.Update.Count > 0, "update")
	add(ops.Delete.Count > 0, "delete")
	add(ops.Merge.Count > 0, "merge")
	add(ops.Truncate.Count > 0, "truncate")
	add(ops.SelectInto.Count > 0, "select_into")
	add(b.DataChanges.HasWrites, "writes")

	tx := b.Transactions
	add(tx.UsesTransaction, "transaction")
	add(tx.CommitCount > 0, "commit")
	add(tx.RollbackCount > 0, "rollback")
	add(tx.SavepointCount > 0, "savepoint")
	add(tx.XactAbort != nil, "xact_abort")
	if tx.IsolationLevel != nil {
		out = append(out, "isolation_level", strings.ReplaceAll(*tx.IsolationLevel, " ", "_"))
	}

	eh := b.ErrorHandling
	add(eh.HasTryCatch, "try_catch")
	add(eh.UsesThrow, "throw")
	add(eh.UsesRaiserror, "raiserror")
	add(eh.UsesAtAtError, "at_at_error")
	add(len(eh.UsesErrorFunctions) > 0, "error_functions")
	add(eh.UsesOutputErrorParams, "output_error_params")
	add(eh.UsesReturn, "return")
	return out
}
