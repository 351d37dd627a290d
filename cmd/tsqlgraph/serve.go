package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/tsqlgraph/internal/mcpserver"
	"github.com/panbanda/tsqlgraph/internal/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the analysis API over HTTP",
		Description: `Routes:
  GET  /health
  POST /mcp/analyze            {sql, dialect}
  POST /mcp/common/call-graph  {objects: [{name, type, sql}], options}
  POST /mcp/callers            {target, target_type, objects, options}
  POST /mcp/terms              {sql}
  GET  /metrics                Prometheus metrics`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config)",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			addr := c.String("addr")
			if addr == "" {
				addr = rt.cfg.Server.Addr
			}
			srv, err := server.New(rt.svc, server.WithLogger(rt.logger))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, addr)
		},
	}
}

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes tsqlgraph's
analyzers as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "tsqlgraph": {
        "command": "tsqlgraph",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_tsql          Signals and control flow of one unit
  - build_call_graph      EXEC/function call graph of a batch
  - find_callers          Objects that call a target
  - extract_query_terms   Lexical search terms of one unit`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifest",
				Usage: "Print the MCP server manifest (server.json) and exit",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("manifest") {
				data, err := mcpserver.GenerateManifest(version)
				if err != nil {
					return err
				}
				_, err = c.App.Writer.Write(append(data, '\n'))
				return err
			}
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			return mcpserver.NewServer(version, rt.svc).Run(c.Context)
		},
	}
}
