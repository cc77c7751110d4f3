package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const defaultHistoryLimit = 20

// document resolves a document name to its backing file together with the
// hooks needed to lock it and drop its cached copy.
type document struct {
	path       string
	lock       func()
	unlock     func()
	invalidate func()
	snapshot   func() (any, error)
}

func (s *Server) document(name string) (document, error) {
	switch name {
	case DocumentOrganization:
		d := s.docs.Organization
		return document{
			path:       d.Path(),
			lock:       d.Lock,
			unlock:     d.Unlock,
			invalidate: d.Invalidate,
			snapshot:   func() (any, error) { return d.Snapshot() },
		}, nil
	case DocumentFieldMappings:
		d := s.docs.FieldMappings
		return document{
			path:       d.Path(),
			lock:       d.Lock,
			unlock:     d.Unlock,
			invalidate: d.Invalidate,
			snapshot:   func() (any, error) { return d.Snapshot() },
		}, nil
	default:
		return document{}, fmt.Errorf("unknown document %q (expected %s or %s)", name, DocumentOrganization, DocumentFieldMappings)
	}
}

func (s *Server) handleGetConfiguration(_ context.Context, _ *gomcp.CallToolRequest, in configurationInput) (*gomcp.CallToolResult, any, error) {
	doc, err := s.document(in.Document)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	if in.Reload {
		doc.lock()
		doc.invalidate()
		doc.unlock()
	}

	data, err := doc.snapshot()
	if err != nil {
		return errorResult(fmt.Sprintf("failed to read %s: %v", doc.path, err)), nil, nil
	}
	return jsonResult(data), nil, nil
}

func (s *Server) handleListBackups(_ context.Context, _ *gomcp.CallToolRequest, in documentInput) (*gomcp.CallToolResult, any, error) {
	doc, err := s.document(in.Document)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	entries := s.backups.ListBackups(doc.path)
	return jsonResult(map[string]any{
		"document": in.Document,
		"path":     doc.path,
		"backups":  entries,
	}), nil, nil
}

func (s *Server) handleRestoreBackup(_ context.Context, _ *gomcp.CallToolRequest, in documentInput) (*gomcp.CallToolResult, any, error) {
	doc, err := s.document(in.Document)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	doc.lock()
	res := s.backups.Restore(doc.path)
	doc.invalidate()
	doc.unlock()

	if !res.Success {
		log.Warn().Str("document", in.Document).Str("error", res.Error).Msg("Restore failed")
		return errorResult(fmt.Sprintf("failed to restore %s: %s", in.Document, res.Error)), nil, nil
	}
	return jsonResult(res), nil, nil
}

func (s *Server) handleHistory(_ context.Context, _ *gomcp.CallToolRequest, in historyInput) (*gomcp.CallToolResult, any, error) {
	if s.journal == nil {
		return errorResult("investigation history is not enabled"), nil, nil
	}
	if err := s.journal.Load(); err != nil {
		return errorResult(fmt.Sprintf("failed to load investigation history: %v", err)), nil, nil
	}

	if in.RunID != "" {
		events := s.journal.EventsForRun(in.RunID)
		if len(events) == 0 {
			return errorResult(fmt.Sprintf("no events recorded for run %s", in.RunID)), nil, nil
		}
		return jsonResult(events), nil, nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return jsonResult(s.journal.Runs(limit)), nil, nil
}
