package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const toolsURI = "codeassist://tools"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			toolsURI,
			"Tool List",
			mcplib.WithResourceDescription("Registered tools with their descriptions and tags"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleToolsResource,
	)
}

func (s *Server) handleToolsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	text := `[]`
	if s.deps.Tools != nil {
		data, err := json.Marshal(s.deps.Tools.List())
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
