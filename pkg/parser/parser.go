// Package parser turns T-SQL source into a parser-independent IR. A strict
// statement grammar is tried first; when it fails the unit is re-scanned
// with regular expressions so a degraded IR is always available.
package parser

import (
	"context"
	"log/slog"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/redact"
)

// ParseErrorSignal is recorded by analyzers when a unit was parsed by the
// fallback scanner.
const ParseErrorSignal = "parse_error"

// DialectTSQL is the only dialect analyzed; other values are recorded as-is.
const DialectTSQL = "tsql"

// Object types understood by call resolution.
const (
	TypeProcedure = "procedure"
	TypeFunction  = "function"
)

// Unit is one source object submitted for analysis. Its SQL never leaves
// the parsing boundary; use Digest for anything that is logged or echoed.
type Unit struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	SQL     string `json:"sql"`
	Dialect string `json:"dialect,omitempty"`
}

// ObjectType returns TypeFunction for functions and TypeProcedure for
// everything else.
func (u Unit) ObjectType() string {
	if strings.EqualFold(strings.TrimSpace(u.Type), TypeFunction) {
		return TypeFunction
	}
	return TypeProcedure
}

// Digest summarizes the unit's SQL.
func (u Unit) Digest() redact.Digest {
	return redact.Summarize(u.SQL)
}

// Result is the outcome of parsing one unit. IR is never nil. When
// Degraded is set the IR came from the fallback scanner and Reason holds
// the primary parser's error.
type Result struct {
	IR       *IR
	Degraded bool
	Reason   string
	Digest   redact.Digest
}

// Option configures a Parser.
type Option func(*Parser)

// WithRelations toggles the tree-sitter relation pass on the primary path.
func WithRelations(enabled bool) Option {
	return func(p *Parser) { p.relations = enabled }
}

// WithLogger sets the logger used for degradation events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// Parser is safe for concurrent use.
type Parser struct {
	relations bool
	logger    *slog.Logger
}

// New creates a parser. The relation pass is enabled by default.
func New(opts ...Option) *Parser {
	p := &Parser{relations: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse never fails: grammar errors degrade to the fallback scanner.
func (p *Parser) Parse(ctx context.Context, u Unit) Result {
	res := Result{Digest: u.Digest()}

	ir, err := p.primary(ctx, u.SQL)
	if err == nil {
		res.IR = ir
		return res
	}

	p.logger.DebugContext(ctx, "primary parse failed, using fallback",
		"unit", res.Digest,
		"reason", err.Error(),
	)
	masked := redact.Mask(u.SQL)
	res.IR = scanFallback(masked, lex(masked))
	res.Degraded = true
	res.Reason = err.Error()
	return res
}

func (p *Parser) primary(ctx context.Context, sql string) (*IR, error) {
	masked, err := redact.MaskStrict(sql)
	if err != nil {
		return nil, err
	}
	toks := lex(masked)
	ir, err := parsePrimary(toks)
	if err != nil {
		return nil, err
	}
	annotate(ir, toks)
	if p.relations {
		supplementRelations(ctx, ir, masked, toks)
	}
	resolveAliases(ir, toks)
	return ir, nil
}

// Header returns the first CREATE or ALTER routine header in sql.
func Header(sql string) (Routine, bool) {
	toks := lex(redact.Mask(sql))
	for i := range toks {
		if h, ok := readRoutineHeader(toks, i); ok {
			return h.routine, true
		}
	}
	return Routine{}, false
}
