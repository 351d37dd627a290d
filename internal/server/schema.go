package server

import (
	"bytes"
	"embed"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBase = "https://github.com/panbanda/tsqlgraph/schemas/"

// Request schema names.
const (
	schemaAnalyze   = "analyze.json"
	schemaCallGraph = "callgraph.json"
	schemaCallers   = "callers.json"
	schemaTerms     = "terms.json"
)

// compileSchemas loads every embedded schema so relative $refs resolve, and
// compiles the request schemas.
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		raw, err := schemaFiles.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(schemaBase+e.Name(), doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	out := make(map[string]*jsonschema.Schema)
	for _, name := range []string{schemaAnalyze, schemaCallGraph, schemaCallers, schemaTerms} {
		sch, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", name, err)
		}
		out[name] = sch
	}
	return out, nil
}
