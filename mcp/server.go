// Package mcp exposes the knowledge base to assistants as Model Context
// Protocol tools.
package mcp

import (
	"context"

	"github.com/fwojciec/leadscout"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Searcher runs similarity searches over the vector index.
type Searcher interface {
	Search(ctx context.Context, req leadscout.SearchRequest) ([]*leadscout.SearchHit, error)
}

// Server serves the knowledge base tools.
type Server struct {
	server      *mcp.Server
	search      Searcher
	extractions leadscout.ExtractionService
}

// NewServer creates a server with every tool registered.
func NewServer(search Searcher, extractions leadscout.ExtractionService) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "leadscout",
			Version: Version,
		}, nil),
		search:      search,
		extractions: extractions,
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect starts a session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}
