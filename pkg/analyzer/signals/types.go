package signals

import "github.com/panbanda/tsqlgraph/pkg/collate"

// Call kinds recorded for call sites.
const (
	CallExec     = "exec"
	CallExecute  = "execute"
	CallFunction = "function_call"
)

// CallSite is one procedure or function invocation in source order.
type CallSite struct {
	Kind    string `json:"kind" toon:"kind"`
	Name    string `json:"name" toon:"name"`
	Dynamic bool   `json:"dynamic" toon:"dynamic"`
}

// References lists the objects a unit reads or calls.
type References struct {
	Tables    []string `json:"tables" toon:"tables"`
	Functions []string `json:"functions" toon:"functions"`
}

// Transactions summarizes explicit transaction handling.
type Transactions struct {
	UsesTransaction bool     `json:"uses_transaction" toon:"uses_transaction"`
	BeginCount      int      `json:"begin_count" toon:"begin_count"`
	CommitCount     int      `json:"commit_count" toon:"commit_count"`
	RollbackCount   int      `json:"rollback_count" toon:"rollback_count"`
	SavepointCount  int      `json:"savepoint_count" toon:"savepoint_count"`
	HasTryCatch     bool     `json:"has_try_catch" toon:"has_try_catch"`
	XactAbort       *string  `json:"xact_abort" toon:"xact_abort"`
	IsolationLevel  *string  `json:"isolation_level" toon:"isolation_level"`
	Signals         []string `json:"signals" toon:"signals"`
}

// Operation counts statements of one DML verb.
type Operation struct {
	Count  int      `json:"count" toon:"count"`
	Tables []string `json:"tables" toon:"tables"`
}

// Operations is keyed by DML verb.
type Operations struct {
	Insert     Operation `json:"insert" toon:"insert"`
	Update     Operation `json:"update" toon:"update"`
	Delete     Operation `json:"delete" toon:"delete"`
	Merge      Operation `json:"merge" toon:"merge"`
	Truncate   Operation `json:"truncate" toon:"truncate"`
	SelectInto Operation `json:"select_into" toon:"select_into"`
}

// TableOperation lists the verbs applied to one table.
type TableOperation struct {
	Table string   `json:"table" toon:"table"`
	Ops   []string `json:"ops" toon:"ops"`
}

// DataChanges summarizes writes.
type DataChanges struct {
	HasWrites       bool             `json:"has_writes" toon:"has_writes"`
	Operations      Operations       `json:"operations" toon:"operations"`
	TableOperations []TableOperation `json:"table_operations" toon:"table_operations"`
	Signals         []string         `json:"signals" toon:"signals"`
	Notes           []string         `json:"notes" toon:"notes"`
}

// ErrorHandling summarizes error signaling and recovery.
type ErrorHandling struct {
	HasTryCatch           bool     `json:"has_try_catch" toon:"has_try_catch"`
	TryCount              int      `json:"try_count" toon:"try_count"`
	CatchCount            int      `json:"catch_count" toon:"catch_count"`
	UsesThrow             bool     `json:"uses_throw" toon:"uses_throw"`
	ThrowCount            int      `json:"throw_count" toon:"throw_count"`
	UsesRaiserror         bool     `json:"uses_raiserror" toon:"uses_raiserror"`
	RaiserrorCount        int      `json:"raiserror_count" toon:"raiserror_count"`
	UsesAtAtError         bool     `json:"uses_at_at_error" toon:"uses_at_at_error"`
	AtAtErrorCount        int      `json:"at_at_error_count" toon:"at_at_error_count"`
	UsesErrorFunctions    []string `json:"uses_error_functions" toon:"uses_error_functions"`
	UsesPrint             bool     `json:"uses_print" toon:"uses_print"`
	PrintCount            int      `json:"print_count" toon:"print_count"`
	UsesReturn            bool     `json:"uses_return" toon:"uses_return"`
	ReturnCount           int      `json:"return_count" toon:"return_count"`
	ReturnValues          []int    `json:"return_values" toon:"return_values"`
	UsesOutputErrorParams bool     `json:"uses_output_error_params" toon:"uses_output_error_params"`
	OutputErrorParams     []string `json:"output_error_params" toon:"output_error_params"`
	Signals               []string `json:"signals" toon:"signals"`
	Notes                 []string `json:"notes" toon:"notes"`
}

// ImpactItem is one migration concern.
type ImpactItem struct {
	ID       string   `json:"id" toon:"id"`
	Category string   `json:"category" toon:"category"`
	Severity string   `json:"severity" toon:"severity"`
	Title    string   `json:"title" toon:"title"`
	Signals  []string `json:"signals" toon:"signals"`
	Details  string   `json:"details" toon:"details"`
}

// MigrationImpacts lists the concerns found, sorted by id.
type MigrationImpacts struct {
	HasImpact bool         `json:"has_impact" toon:"has_impact"`
	Items     []ImpactItem `json:"items" toon:"items"`
}

// Bundle is everything extracted from one IR.
type Bundle struct {
	References       References       `json:"references" toon:"references"`
	Transactions     Transactions     `json:"transactions" toon:"transactions"`
	MigrationImpacts MigrationImpacts `json:"migration_impacts" toon:"migration_impacts"`
	DataChanges      DataChanges      `json:"data_changes" toon:"data_changes"`
	ErrorHandling    ErrorHandling    `json:"error_handling" toon:"error_handling"`

	// Calls feeds call-graph construction and is not part of the rendered
	// bundle.
	Calls []CallSite `json:"-" toon:"-"`
	// Truncations holds every list cut while building the bundle.
	Truncations []collate.Truncation `json:"-" toon:"-"`

	termLimit int
}

// Options bounds the lists in a Bundle.
type Options struct {
	MaxListItems  int
	MaxSignals    int
	MaxQueryTerms int
}

// DefaultOptions returns the standard caps.
func DefaultOptions() Options {
	return Options{
		MaxListItems:  10,
		MaxSignals:    15,
		MaxQueryTerms: 30,
	}
}
