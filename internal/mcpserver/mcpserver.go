// Package mcpserver exposes the analysis service as MCP tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/tsqlgraph/internal/service/analysis"
)

// Server wraps the MCP server and registers the tsqlgraph tools.
type Server struct {
	server *mcp.Server
	svc    *analysis.Service
}

// NewServer creates a new MCP server backed by svc. A nil svc uses the
// default configuration.
func NewServer(version string, svc *analysis.Service) *Server {
	if version == "" {
		version = "dev"
	}
	if svc == nil {
		svc = analysis.New()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "tsqlgraph",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, svc: svc}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	handlers := map[string]func(*mcp.Server, *mcp.Tool){
		"analyze_tsql":        func(m *mcp.Server, t *mcp.Tool) { mcp.AddTool(m, t, s.handleAnalyze) },
		"extract_query_terms": func(m *mcp.Server, t *mcp.Tool) { mcp.AddTool(m, t, s.handleTerms) },
		"build_call_graph":    func(m *mcp.Server, t *mcp.Tool) { mcp.AddTool(m, t, s.handleCallGraph) },
		"find_callers":        func(m *mcp.Server, t *mcp.Tool) { mcp.AddTool(m, t, s.handleCallers) },
	}
	for _, c := range catalog {
		handlers[c.name](s.server, &mcp.Tool{
			Name:        c.name,
			Title:       c.title,
			Description: c.describe(),
		})
	}
}
