// Package mcp exposes organization discovery as MCP tools over stdio.
package mcp

import (
	"context"

	"ado-mcp/internal/backup"
	"ado-mcp/internal/config"
	"ado-mcp/internal/devops"
	"ado-mcp/internal/discovery"
	"ado-mcp/internal/eventlog"
	"ado-mcp/internal/investigation"
	"ado-mcp/internal/stats"
	"ado-mcp/internal/store"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Server holds the state for the MCP server.
type Server struct {
	server *gomcp.Server
	cfg    *config.AppConfig

	client       devops.Client
	docs         *store.Set
	backups      *backup.Manager
	journal      *eventlog.Journal
	orchestrator *investigation.Orchestrator
	analyzer     *stats.ContextAnalyzer
	types        *discovery.TypeEnumerator
	hierarchy    *discovery.HierarchyAnalyzer
	resolver     *discovery.Resolver
}

// NewServer creates a new MCP server. journal may be nil.
func NewServer(cfg *config.AppConfig, client devops.Client, docs *store.Set, journal *eventlog.Journal, version string) *Server {
	if version == "" {
		version = "dev"
	}

	backups := backup.NewManager()
	sample := 0
	if cfg.Discovery.SampleFieldValues {
		sample = cfg.Discovery.FieldValueSampleSize
	}

	s := &Server{
		cfg:     cfg,
		client:  client,
		docs:    docs,
		backups: backups,
		journal: journal,
		orchestrator: investigation.New(client, docs, backups, journal, investigation.Options{
			Organization:         cfg.DevOps.Organization,
			OrganizationURL:      cfg.DevOps.OrganizationURL,
			HierarchySampleSize:  cfg.Discovery.HierarchySampleSize,
			FieldValueSampleSize: cfg.Discovery.FieldValueSampleSize,
			SampleFieldValues:    cfg.Discovery.SampleFieldValues,
			Charts:               cfg.EnableMermaidCharts,
		}),
		analyzer:  stats.NewContextAnalyzer(client, stats.Options{Charts: cfg.EnableMermaidCharts}),
		types:     discovery.NewTypeEnumerator(client),
		hierarchy: discovery.NewHierarchyAnalyzer(client),
		resolver:  discovery.DefaultResolver(client, sample),
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "ado-mcp", Version: version},
		nil,
	)
	s.registerTools()

	return s
}

// Start serves MCP over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Info().Msg("MCP server listening on stdio")
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying server for in-memory transports.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}
