package callgraph

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/collate"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

// FindCallers returns the units in the batch that call target. targetType
// selects EXEC matches ("procedure") or function-call matches ("function");
// empty infers it from a unit named target in the batch, else procedure.
// A batch over MaxObjects units or MaxTotalChars characters fails with a
// *BatchLimitError and no partial result.
func FindCallers(ctx context.Context, target, targetType string, units []parser.Unit, opts CallersOptions) (*CallersResult, error) {
	def := DefaultCallersOptions()
	if opts.MaxObjects <= 0 {
		opts.MaxObjects = def.MaxObjects
	}
	if opts.MaxTotalChars <= 0 {
		opts.MaxTotalChars = def.MaxTotalChars
	}
	if opts.MaxSignals <= 0 {
		opts.MaxSignals = def.MaxSignals
	}
	if len(units) > opts.MaxObjects {
		return nil, &BatchLimitError{Limit: "objects", Max: opts.MaxObjects, Actual: len(units)}
	}
	if err := checkChars(units, opts.MaxTotalChars); err != nil {
		return nil, err
	}

	self := normalizeName(target, opts.CaseInsensitive)
	if targetType == "" {
		targetType = inferTargetType(target, units)
	} else {
		targetType = unitType(targetType)
	}
	tSchema, tBase := splitName(target, opts.CaseInsensitive)

	p := opts.Parser
	if p == nil {
		p = parser.New(parser.WithRelations(false))
	}

	res := &CallersResult{
		Target: Target{
			Name:       target,
			Type:       targetType,
			Normalized: normalizeName(target, true),
		},
	}
	var callers []Caller
	var issues []Issue
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("finding callers: %w", err)
		}
		if !opts.IncludeSelf && normalizeName(u.Name, opts.CaseInsensitive) == self {
			continue
		}

		sites, pr := callSites(ctx, p, u)
		if pr.Degraded {
			issues = append(issues, Issue{ID: IssueParseError, Message: pr.Reason, Object: u.Name})
		}
		var kinds, sigs []string
		for _, s := range sites {
			if s.Name == "" || calleeType(s.Kind) != targetType {
				continue
			}
			schema, base := splitName(s.Name, opts.CaseInsensitive)
			if base != tBase {
				continue
			}
			if opts.SchemaSensitive && tSchema != "" && schema != tSchema {
				continue
			}
			kinds = append(kinds, s.Kind)
			sigs = append(sigs, signalFor(s.Kind))
		}
		if len(kinds) == 0 {
			continue
		}
		capped := collate.Strings(sigs, collate.Upper, opts.MaxSignals)
		if capped.Truncated {
			issues = append(issues, maxItemsIssue(u.Name, "callers.signals", opts.MaxSignals, capped.Total))
		}
		callers = append(callers, Caller{
			Name:      u.Name,
			Type:      unitType(u.Type),
			CallCount: len(kinds),
			CallKinds: collate.Strings(kinds, collate.Identity, 0).Items,
			Signals:   capped.Items,
		})
	}

	res.Callers = collate.Apply(callers, collate.Spec[Caller]{
		Key: func(c Caller) string { return normalizeName(c.Name, true) },
		Compare: func(a, b Caller) int {
			return cmp.Or(cmp.Compare(b.CallCount, a.CallCount), cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)))
		},
	}).Items
	res.Errors = sortIssues(issues)
	for _, c := range res.Callers {
		res.Summary.TotalCalls += c.CallCount
	}
	res.Summary.CallerCount = len(res.Callers)
	res.Summary.HasCallers = res.Summary.TotalCalls > 0
	return res, nil
}

func inferTargetType(target string, units []parser.Unit) string {
	want := normalizeName(target, true)
	for _, u := range units {
		if normalizeName(u.Name, true) == want {
			return unitType(u.Type)
		}
	}
	return parser.TypeProcedure
}
