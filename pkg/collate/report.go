package collate

import "fmt"

// CodeMaxItems marks a list that was cut at its limit.
const CodeMaxItems = "max_items_exceeded"

// Truncation records one list or graph that was cut at its limit.
type Truncation struct {
	Code    string `json:"code" yaml:"code" toon:"code"`
	Context string `json:"context" yaml:"context" toon:"context"`
	Limit   int    `json:"limit" yaml:"limit" toon:"limit"`
	Total   int    `json:"total" yaml:"total" toon:"total"`
}

func (t Truncation) String() string {
	return fmt.Sprintf("%s:%s limit=%d total=%d", t.Code, t.Context, t.Limit, t.Total)
}

// Report accumulates truncations in the order they occur. The zero value is
// ready to use.
type Report struct {
	entries []Truncation
}

// Note records res under code and context when res was truncated and
// returns res.Items.
func Note[T any](r *Report, code, context string, limit int, res Result[T]) []T {
	if res.Truncated {
		r.Add(Truncation{Code: code, Context: context, Limit: limit, Total: res.Total})
	}
	return res.Items
}

// Add appends t.
func (r *Report) Add(t Truncation) {
	r.entries = append(r.entries, t)
}

// Entries returns the recorded truncations. The result is never nil.
func (r *Report) Entries() []Truncation {
	out := make([]Truncation, len(r.entries))
	copy(out, r.entries)
	return out
}

// Strings returns each truncation formatted as "code:context limit=N total=M".
func (r *Report) Strings() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.String()
	}
	return out
}

// Empty reports whether nothing was truncated.
func (r *Report) Empty() bool { return len(r.entries) == 0 }
