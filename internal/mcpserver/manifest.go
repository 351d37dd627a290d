package mcpserver

import (
	"encoding/json"
	"strings"
)

const manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"

// catalog lists the registered tools in the order the manifest advertises
// them.
var catalog = []struct {
	name     string
	title    string
	describe func() string
}{
	{"analyze_tsql", "Analyze T-SQL unit", describeAnalyze},
	{"extract_query_terms", "Extract query terms", describeTerms},
	{"build_call_graph", "Build call graph", describeCallGraph},
	{"find_callers", "Find callers", describeCallers},
}

// Manifest is the server.json document published for tsqlgraph.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
	Tools       []ToolEntry `json:"tools"`
}

// Repository points at the tsqlgraph source.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is the container image that serves the tools over stdio.
type Package struct {
	RegistryType     string     `json:"registryType"`
	Identifier       string     `json:"identifier"`
	PackageArguments []Argument `json:"packageArguments,omitempty"`
	Transport        Transport  `json:"transport"`
}

// Argument is one command-line argument passed to the image.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Transport names the MCP transport.
type Transport struct {
	Type string `json:"type"`
}

// ToolEntry advertises one tool with the first line of its description.
type ToolEntry struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GenerateManifest renders the server.json for version.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	m := Manifest{
		Schema:      manifestSchema,
		Name:        "io.github.panbanda/tsqlgraph",
		Description: "Signals, control flow and call graphs for T-SQL procedures, reported without echoing source text",
		Version:     version,
		Repository:  &Repository{URL: "https://github.com/panbanda/tsqlgraph", Source: "github"},
		Packages: []Package{{
			RegistryType:     "oci",
			Identifier:       "ghcr.io/panbanda/tsqlgraph:" + version,
			PackageArguments: []Argument{{Type: "positional", Value: "mcp"}},
			Transport:        Transport{Type: "stdio"},
		}},
		Tools: make([]ToolEntry, 0, len(catalog)),
	}
	for _, t := range catalog {
		summary, _, _ := strings.Cut(t.describe(), "\n")
		m.Tools = append(m.Tools, ToolEntry{Name: t.name, Title: t.title, Description: summary})
	}
	return json.MarshalIndent(m, "", "  ")
}
