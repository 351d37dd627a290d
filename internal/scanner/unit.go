package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/panbanda/tsqlgraph/pkg/parser"
)

// StdinName names the unit read from standard input when it has no
// CREATE header.
const StdinName = "stdin"

// ReadUnit builds a unit from sql. The name and type come from the first
// CREATE or ALTER header; without one the unit is a procedure named
// fallback.
func ReadUnit(fallback, sql string) parser.Unit {
	u := parser.Unit{Name: fallback, Type: parser.TypeProcedure, SQL: sql, Dialect: parser.DialectTSQL}
	if h, ok := parser.Header(sql); ok {
		u.Name = h.Name
		u.Type = h.Kind
	}
	return u
}

// LoadUnit reads path ("-" for stdin) into a unit named after its header,
// else after the file's base name without extension.
func LoadUnit(path string, stdin io.Reader) (parser.Unit, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return parser.Unit{}, fmt.Errorf("reading stdin: %w", err)
		}
		return ReadUnit(StdinName, string(data)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return parser.Unit{}, fmt.Errorf("reading %s: %w", path, err)
	}
	base := filepath.Base(path)
	return ReadUnit(strings.TrimSuffix(base, filepath.Ext(base)), string(data)), nil
}
