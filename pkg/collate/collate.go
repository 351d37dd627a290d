// Package collate orders, deduplicates and bounds every list the analyzers
// emit. All output lists pass through Apply so that truncation always cuts a
// sorted, duplicate-free sequence and is reproducible for identical input.
package collate

import (
	"cmp"
	"slices"
	"strings"
)

// Canonicalizer maps a raw value to the key used for ordering and identity.
type Canonicalizer func(string) string

// Spec configures one Apply call.
type Spec[T any] struct {
	// Key returns the canonical identity of an item. Items sharing a key are
	// duplicates; the first one in input order is kept.
	Key func(T) string
	// Compare orders items. Nil orders by Key.
	Compare func(a, b T) int
	// Limit caps the result. Zero or negative means unbounded.
	Limit int
}

// Result is a sorted, deduplicated and possibly truncated list.
type Result[T any] struct {
	Items     []T
	Total     int // distinct items before the cap
	Truncated bool
}

// Apply canonicalizes, sorts, deduplicates and caps items. The input slice is
// not modified.
func Apply[T any](items []T, spec Spec[T]) Result[T] {
	type keyed struct {
		key  string
		item T
	}

	seen := make(map[string]struct{}, len(items))
	distinct := make([]keyed, 0, len(items))
	for _, item := range items {
		k := spec.Key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		distinct = append(distinct, keyed{key: k, item: item})
	}

	slices.SortStableFunc(distinct, func(a, b keyed) int {
		if spec.Compare != nil {
			if c := spec.Compare(a.item, b.item); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.key, b.key)
	})

	res := Result[T]{Total: len(distinct)}
	if spec.Limit > 0 && len(distinct) > spec.Limit {
		distinct = distinct[:spec.Limit]
		res.Truncated = true
	}
	res.Items = make([]T, len(distinct))
	for i, d := range distinct {
		res.Items[i] = d.item
	}
	return res
}

// Strings canonicalizes values with canon, drops empty results, and returns
// the canonical forms sorted, deduplicated and capped at limit.
func Strings(values []string, canon Canonicalizer, limit int) Result[string] {
	if canon == nil {
		canon = Identity
	}
	canonical := make([]string, 0, len(values))
	for _, v := range values {
		if c := canon(v); c != "" {
			canonical = append(canonical, c)
		}
	}
	return Apply(canonical, Spec[string]{
		Key:   Identity,
		Limit: limit,
	})
}

// Identity returns s with surrounding whitespace removed.
func Identity(s string) string { return strings.TrimSpace(s) }

// Upper trims and uppercases s.
func Upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Lower trims and lowercases s.
func Lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Identifier normalizes a possibly qualified, bracketed or quoted name
// ("[dbo] . [Orders]") to its uppercase dotted form ("DBO.ORDERS").
func Identifier(s string) string {
	return strings.ToUpper(QualifiedName(s))
}

// QualifiedName strips brackets, quotes and whitespace from every part of a
// dotted name without changing case. Empty parts are dropped.
func QualifiedName(s string) string {
	parts := SplitQualified(s)
	return strings.Join(parts, ".")
}

// SplitQualified splits a dotted name into its cleaned parts. Dots inside
// brackets or double quotes do not split.
func SplitQualified(s string) []string {
	var (
		parts  []string
		cur    strings.Builder
		closer byte
	)
	flush := func() {
		if p := strings.TrimSpace(cur.String()); p != "" {
			parts = append(parts, p)
		}
		cur.Reset()
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case closer != 0:
			if c == closer {
				if i+1 < len(s) && s[i+1] == closer {
					cur.WriteByte(c)
					i++
					continue
				}
				closer = 0
				continue
			}
			cur.WriteByte(c)
		case c == '[':
			closer = ']'
		case c == '"':
			closer = '"'
		case c == '.':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return parts
}
