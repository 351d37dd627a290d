package parser

// Kind tags an IR node.
type Kind string

const (
	KindBranch      Kind = "branch"
	KindLoop        Kind = "loop"
	KindTry         Kind = "try"
	KindCatch       Kind = "catch"
	KindReturn      Kind = "return"
	KindGoto        Kind = "goto"
	KindLabel       Kind = "label"
	KindBreak       Kind = "break"
	KindContinue    Kind = "continue"
	KindCall        Kind = "call"
	KindDML         Kind = "dml"
	KindTransaction Kind = "transaction"
	KindOption      Kind = "option"
	KindRaise       Kind = "raise"
	KindPrint       Kind = "print"
	KindCursor      Kind = "cursor"
)

// Verbs qualify a node kind.
const (
	VerbInsert     = "insert"
	VerbUpdate     = "update"
	VerbDelete     = "delete"
	VerbMerge      = "merge"
	VerbTruncate   = "truncate"
	VerbSelectInto = "select_into"

	VerbBegin    = "begin"
	VerbCommit   = "commit"
	VerbRollback = "rollback"
	VerbSave     = "save"

	VerbExec    = "exec"
	VerbExecute = "execute"

	VerbThrow     = "throw"
	VerbRaiserror = "raiserror"

	VerbXactAbort = "xact_abort"
	VerbIsolation = "isolation_level"

	VerbDeclare    = "declare"
	VerbOpen       = "open"
	VerbFetch      = "fetch"
	VerbClose      = "close"
	VerbDeallocate = "deallocate"
)

// Node is one statement-level construct in source order.
type Node struct {
	Kind Kind   `json:"kind"`
	Verb string `json:"verb,omitempty"`
	// Target is the object the statement acts on as written in the masked
	// text: DML table, EXEC procedure, GOTO label. Empty when it cannot be
	// determined statically.
	Target string `json:"target,omitempty"`
	// Value holds a structured literal: integer RETURN value, XACT_ABORT
	// setting or isolation level.
	Value   string `json:"value,omitempty"`
	Dynamic bool   `json:"dynamic,omitempty"`
	Output  bool   `json:"output,omitempty"`
	HasElse bool   `json:"has_else,omitempty"`
	// ElseStart and ElseEnd bound the ordinals of the nodes inside a
	// branch's ELSE part, end exclusive. Both are zero when the ELSE part
	// holds no nodes or was not delimited.
	ElseStart int `json:"else_start,omitempty"`
	ElseEnd   int `json:"else_end,omitempty"`

	Ordinal int `json:"ordinal"`
	Offset  int `json:"offset"`
	Line    int `json:"line"`
	Depth   int `json:"depth"`
}

// RefKind tags a token-level reference.
type RefKind string

const (
	RefTable       RefKind = "table"
	RefFunction    RefKind = "function"
	RefSystem      RefKind = "system"
	RefPseudo      RefKind = "pseudo"
	RefOutputParam RefKind = "output_param"
)

// Ref is a name observed in the text outside statement structure.
type Ref struct {
	Kind   RefKind `json:"kind"`
	Name   string  `json:"name"`
	Offset int     `json:"offset"`
}

// Routine is a CREATE or ALTER header found in the unit.
type Routine struct {
	Kind string `json:"kind"` // procedure, function, trigger, view
	Name string `json:"name"`
}

// IR is the parser-independent representation of one source unit.
type IR struct {
	Routines []Routine `json:"routines"`
	Nodes    []Node    `json:"nodes"`
	Refs     []Ref     `json:"refs"`
	MaxDepth int       `json:"max_depth"`
}

// Count returns the number of nodes of kind k.
func (ir *IR) Count(k Kind) int {
	n := 0
	for _, node := range ir.Nodes {
		if node.Kind == k {
			n++
		}
	}
	return n
}

// CountVerb returns the number of nodes of kind k with verb v.
func (ir *IR) CountVerb(k Kind, v string) int {
	n := 0
	for _, node := range ir.Nodes {
		if node.Kind == k && node.Verb == v {
			n++
		}
	}
	return n
}

func (ir *IR) emit(n Node) {
	n.Ordinal = len(ir.Nodes)
	ir.Nodes = append(ir.Nodes, n)
}
