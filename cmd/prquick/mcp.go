package main

import (
	"context"
	"flag"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// runMCP serves the broker verbs to an MCP client on stdin/stdout. Logs go
// to stderr.
func runMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	var c common
	c.register(fs)
	fs.Parse(args)

	logger, cfg, err := c.setup()
	if err != nil {
		return err
	}
	ag, err := openAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer ag.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "prquick", Version: "0.1.0"}, nil)
	ag.broker.RegisterMCP(srv)

	logger.Info("prquick: MCP server on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}
