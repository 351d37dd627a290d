package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/tsqlgraph/pkg/analyzer/callgraph"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/controlflow"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/signals"
)

// Config holds all configuration options for tsqlgraph.
type Config struct {
	// Caps applied by the analyzers
	Limits LimitsConfig `koanf:"limits" toml:"limits"`

	// Call-graph and callers resolution defaults
	CallGraph CallGraphConfig `koanf:"callgraph" toml:"callgraph"`

	// Parser settings
	Parser ParserConfig `koanf:"parser" toml:"parser"`

	// File exclusion patterns for directory arguments
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// HTTP server settings
	Server ServerConfig `koanf:"server" toml:"server"`

	// Logging settings
	Log LogConfig `koanf:"log" toml:"log"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// LimitsConfig bounds every list and graph the analyzers produce.
type LimitsConfig struct {
	ControlFlowNodes int `koanf:"control_flow_nodes" toml:"control_flow_nodes"`
	ControlFlowEdges int `koanf:"control_flow_edges" toml:"control_flow_edges"`
	CallGraphNodes   int `koanf:"call_graph_nodes" toml:"call_graph_nodes"`
	CallGraphEdges   int `koanf:"call_graph_edges" toml:"call_graph_edges"`
	BatchObjects     int `koanf:"batch_objects" toml:"batch_objects"`
	BatchChars       int `koanf:"batch_chars" toml:"batch_chars"`
	ListItems        int `koanf:"list_items" toml:"list_items"`
	Signals          int `koanf:"signals" toml:"signals"`
	QueryTerms       int `koanf:"query_terms" toml:"query_terms"`
}

// CallGraphConfig holds name resolution defaults.
type CallGraphConfig struct {
	CaseInsensitive   bool `koanf:"case_insensitive" toml:"case_insensitive"`
	SchemaSensitive   bool `koanf:"schema_sensitive" toml:"schema_sensitive"`
	IncludeFunctions  bool `koanf:"include_functions" toml:"include_functions"`
	IncludeProcedures bool `koanf:"include_procedures" toml:"include_procedures"`
	IgnoreDynamicExec bool `koanf:"ignore_dynamic_exec" toml:"ignore_dynamic_exec"`
	IncludeSelf       bool `koanf:"include_self" toml:"include_self"`
}

// ParserConfig controls the parser.
type ParserConfig struct {
	// Relations enables the tree-sitter relation pass.
	Relations bool `koanf:"relations" toml:"relations"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string `koanf:"addr" toml:"addr"`
	MaxBodyBytes    int64  `koanf:"max_body_bytes" toml:"max_body_bytes"`
	ShutdownSeconds int    `koanf:"shutdown_seconds" toml:"shutdown_seconds"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level"`   // debug, info, warn, error
	Format string `koanf:"format" toml:"format"` // text, json
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, yaml, toon
	Color  bool   `koanf:"color" toml:"color"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			ControlFlowNodes: 200,
			ControlFlowEdges: 400,
			CallGraphNodes:   500,
			CallGraphEdges:   2000,
			BatchObjects:     500,
			BatchChars:       1_000_000,
			ListItems:        10,
			Signals:          15,
			QueryTerms:       30,
		},
		CallGraph: CallGraphConfig{
			CaseInsensitive:   true,
			IncludeFunctions:  true,
			IncludeProcedures: true,
			IgnoreDynamicExec: true,
		},
		Parser: ParserConfig{
			Relations: true,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.generated.sql",
			},
			Dirs: []string{
				".git",
				".tsqlgraph",
				"node_modules",
				"vendor",
				"bin",
				"obj",
			},
			Gitignore: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodyBytes:    8 << 20,
			ShutdownSeconds: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}

// SearchPaths lists the config locations LoadOrDefault tries, in order.
func SearchPaths() []string {
	names := []string{
		"tsqlgraph.toml",
		"tsqlgraph.yaml",
		"tsqlgraph.yml",
		"tsqlgraph.json",
		".tsqlgraph.toml",
		".tsqlgraph.yaml",
		".tsqlgraph.yml",
		".tsqlgraph.json",
	}
	var paths []string
	for _, dir := range []string{".", ".tsqlgraph"} {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			if err == nil {
				return cfg
			}
		}
	}
	return DefaultConfig()
}

var (
	initOnce sync.Once
	shared   *Config
	initErr  error
)

// Init loads and validates the process-wide configuration exactly once.
// An empty path searches the standard locations. Later calls return the
// first result regardless of path.
func Init(path string) (*Config, error) {
	initOnce.Do(func() {
		if path == "" {
			shared = LoadOrDefault()
		} else {
			shared, initErr = Load(path)
		}
		if initErr == nil {
			initErr = shared.Validate()
		}
	})
	return shared, initErr
}

var (
	outputFormats = []string{"text", "json", "markdown", "yaml", "toon"}
	logFormats    = []string{"text", "json"}
)

// Validate checks the config for values the analyzers cannot work with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("limits.%s must be positive, got %d", name, v))
		}
	}
	positive("control_flow_nodes", c.Limits.ControlFlowNodes)
	positive("control_flow_edges", c.Limits.ControlFlowEdges)
	positive("call_graph_nodes", c.Limits.CallGraphNodes)
	positive("call_graph_edges", c.Limits.CallGraphEdges)
	positive("batch_objects", c.Limits.BatchObjects)
	positive("batch_chars", c.Limits.BatchChars)
	positive("list_items", c.Limits.ListItems)
	positive("signals", c.Limits.Signals)
	positive("query_terms", c.Limits.QueryTerms)
	if c.Limits.ControlFlowNodes > 0 && c.Limits.ControlFlowNodes < 2 {
		errs = append(errs, errors.New("limits.control_flow_nodes must leave room for start and end"))
	}

	if !slices.Contains(outputFormats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format %q is not one of %s", c.Output.Format, strings.Join(outputFormats, ", ")))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q is not one of %s", c.Log.Format, strings.Join(logFormats, ", ")))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// SignalOptions returns the signal extractor caps.
func (c *Config) SignalOptions() signals.Options {
	return signals.Options{
		MaxListItems:  c.Limits.ListItems,
		MaxSignals:    c.Limits.Signals,
		MaxQueryTerms: c.Limits.QueryTerms,
	}
}

// ControlFlowOptions returns the control-flow graph and signal caps.
func (c *Config) ControlFlowOptions() controlflow.Options {
	return controlflow.Options{
		MaxNodes:   c.Limits.ControlFlowNodes,
		MaxEdges:   c.Limits.ControlFlowEdges,
		MaxSignals: c.Limits.Signals,
	}
}

// CallGraphOptions returns the call-graph defaults. Requests may override
// the resolution flags.
func (c *Config) CallGraphOptions() callgraph.Options {
	return callgraph.Options{
		CaseInsensitive:   c.CallGraph.CaseInsensitive,
		SchemaSensitive:   c.CallGraph.SchemaSensitive,
		IncludeFunctions:  c.CallGraph.IncludeFunctions,
		IncludeProcedures: c.CallGraph.IncludeProcedures,
		IgnoreDynamicExec: c.CallGraph.IgnoreDynamicExec,
		MaxNodes:          c.Limits.CallGraphNodes,
		MaxEdges:          c.Limits.CallGraphEdges,
		MaxTotalChars:     c.Limits.BatchChars,
	}
}

// CallersOptions returns the callers query defaults.
func (c *Config) CallersOptions() callgraph.CallersOptions {
	return callgraph.CallersOptions{
		CaseInsensitive: c.CallGraph.CaseInsensitive,
		SchemaSensitive: c.CallGraph.SchemaSensitive,
		IncludeSelf:     c.CallGraph.IncludeSelf,
		MaxObjects:      c.Limits.BatchObjects,
		MaxTotalChars:   c.Limits.BatchChars,
	}
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
