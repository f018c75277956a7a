// Package mcp exposes the live workspace index over the Model Context
// Protocol on stdio.
package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lwi/internal/debug"
	"github.com/standardbeagle/lwi/internal/version"
	"github.com/standardbeagle/lwi/internal/watch"
	"github.com/standardbeagle/lwi/internal/workspace"
)

// Server wires the synchronizer and aggregator behind MCP tools.
type Server struct {
	sync       *workspace.Synchronizer
	aggregator *watch.Aggregator
	server     *mcp.Server
}

// NewServer creates the MCP server and registers its tools. aggregator
// may be nil when serving a static snapshot.
func NewServer(sync *workspace.Synchronizer, aggregator *watch.Aggregator) *Server {
	s := &Server{
		sync:       sync,
		aggregator: aggregator,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "lwi-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Search declared symbols by exact name or wildcard pattern. '*' matches any run of characters, '?' matches exactly one.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern": {
					Type:        "string",
					Description: "Symbol name or wildcard pattern",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum results to return (default 100)",
				},
			},
			Required: []string{"pattern"},
		},
	}, s.handleSearchSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "workspace_status",
		Description: "Report the current snapshot generation, project and symbol counts, and watch statistics.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleWorkspaceStatus)
}

// Run serves MCP over stdio until ctx is cancelled or the transport
// closes.
func (s *Server) Run(ctx context.Context) error {
	debug.LogMCP("serving on stdio\n")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
