package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urmzd/aquabridge/pkg/bridge"
	"github.com/urmzd/aquabridge/pkg/display"
	"github.com/urmzd/aquabridge/pkg/entity"
	"github.com/urmzd/aquabridge/pkg/messages"
	"github.com/urmzd/aquabridge/pkg/schema"
)

// Bridge is the subset of the running bridge the tools call into
type Bridge interface {
	Health() bridge.Health
	State() json.RawMessage
	ActiveMessages() []string
	Entities() []entity.Descriptor
	SetEntity(ctx context.Context, key string, on bool) error
	PressKey(name, source string) error
}

// DisplaySource provides the mirrored LCD
type DisplaySource interface {
	Snapshot() display.Snapshot
}

// Server wraps the MCP server with the pool controller tools
type Server struct {
	mcpServer *server.MCPServer
	bridge    Bridge
	display   DisplaySource
	validator *schema.Validator
}

// NewServer creates a new MCP server for the bridge
func NewServer(b Bridge, d DisplaySource, validator *schema.Validator) *Server {
	s := &Server{
		bridge:    b,
		display:   d,
		validator: validator,
	}

	s.mcpServer = server.NewMCPServer(
		"aquabridge",
		messages.Version,
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Handler returns a streamable HTTP handler for mounting under /mcp
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}
