package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func textResult(parts ...string) *gomcp.CallToolResult {
	content := make([]gomcp.Content, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			content = append(content, &gomcp.TextContent{Text: p})
		}
	}
	return &gomcp.CallToolResult{Content: content}
}

func jsonResult(data any) *gomcp.CallToolResult {
	return textResult(formatResult(data))
}

func formatResult(data any) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("failed to encode result: %v", err)
	}
	return string(out)
}

// project falls back to the configured default project.
func (s *Server) project(p string) string {
	if p = strings.TrimSpace(p); p != "" {
		return p
	}
	return s.cfg.DevOps.DefaultProject
}
