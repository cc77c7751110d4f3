package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ado-mcp/internal/discovery"
	"ado-mcp/internal/investigation"
	"ado-mcp/internal/stats"
	"ado-mcp/internal/visuals"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleInvestigate(ctx context.Context, _ *gomcp.CallToolRequest, in investigateInput) (*gomcp.CallToolResult, any, error) {
	req := investigation.Request{
		Kind:            in.Kind,
		Project:         s.project(in.Project),
		Team:            in.Team,
		AreaPath:        in.AreaPath,
		IterationPath:   in.IterationPath,
		BackupFirst:     in.BackupFirst,
		IncludeDocument: in.IncludeDocument,
	}

	res, err := s.orchestrator.Investigate(ctx, req)
	if err != nil {
		var reqErr *investigation.RequestError
		if errors.As(err, &reqErr) {
			return errorResult(reqErr.Error()), nil, nil
		}
		log.Error().Err(err).Str("kind", in.Kind).Msg("Investigation failed")
		msg := fmt.Sprintf("investigation failed: %v", err)
		if res != nil {
			msg += "\n\n" + res.Report
		}
		return errorResult(msg), nil, nil
	}

	return textResult(res.Report, formatResult(res)), nil, nil
}

type picklistOutput struct {
	Project      string               `json:"project"`
	Field        string               `json:"field"`
	WorkItemType string               `json:"workItemType,omitempty"`
	PicklistID   string               `json:"picklistId,omitempty"`
	Resolved     bool                 `json:"resolved"`
	Resolution   discovery.Resolution `json:"resolution"`
	Chain        []string             `json:"chain"`
}

func (s *Server) handleResolvePicklist(ctx context.Context, _ *gomcp.CallToolRequest, in resolvePicklistInput) (*gomcp.CallToolResult, any, error) {
	project := s.project(in.Project)
	if project == "" || strings.TrimSpace(in.Field) == "" {
		return errorResult("project and field are required"), nil, nil
	}

	picklistID := in.PicklistID
	if picklistID == "" {
		picklistID = s.knownPicklistID(in.Field)
	}

	res := s.resolver.Resolve(ctx, discovery.Request{
		Project:      project,
		WorkItemType: in.WorkItemType,
		Field:        in.Field,
		PicklistID:   picklistID,
	})

	return jsonResult(picklistOutput{
		Project:      project,
		Field:        in.Field,
		WorkItemType: in.WorkItemType,
		PicklistID:   picklistID,
		Resolved:     res.Resolved(),
		Resolution:   res,
		Chain:        s.resolver.Strategies(),
	}), nil, nil
}

// knownPicklistID looks the field up in the discovered configuration.
func (s *Server) knownPicklistID(ref string) string {
	org, err := s.docs.Organization.Snapshot()
	if err != nil {
		return ""
	}
	if cf, ok := org.CustomFields[ref]; ok && cf.PicklistID != "" {
		return cf.PicklistID
	}
	for _, name := range org.TypeNames() {
		if f := org.WorkItemTypes[name].Field(ref); f != nil && f.PicklistID != "" {
			return f.PicklistID
		}
	}
	return ""
}

func (s *Server) handleListTypes(ctx context.Context, _ *gomcp.CallToolRequest, in listTypesInput) (*gomcp.CallToolResult, any, error) {
	project := s.project(in.Project)
	if project == "" {
		return errorResult("project is required"), nil, nil
	}

	enum := s.types.ListEnabledTypes(ctx, project)
	if len(enum.Types) == 0 {
		return errorResult(fmt.Sprintf("could not determine the enabled work item types of %s", project)), nil, nil
	}
	return jsonResult(enum), nil, nil
}

func (s *Server) handleHierarchy(ctx context.Context, _ *gomcp.CallToolRequest, in hierarchyInput) (*gomcp.CallToolResult, any, error) {
	project := s.project(in.Project)
	if project == "" {
		return errorResult("project is required"), nil, nil
	}

	report := s.hierarchy.Analyze(ctx, project, in.SampleSize, in.AreaPath)
	chart := ""
	if s.cfg.EnableMermaidCharts {
		chart = visuals.GenerateHierarchyFlowchart(report.Relations)
	}
	return textResult(report.Summary(), chart, formatResult(report)), nil, nil
}

func (s *Server) handleTeamContext(ctx context.Context, _ *gomcp.CallToolRequest, in teamContextInput) (*gomcp.CallToolResult, any, error) {
	text, err := s.analyzer.Run(ctx, in.Analysis, stats.Scope{
		Project:       s.project(in.Project),
		Team:          in.Team,
		AreaPath:      in.AreaPath,
		IterationPath: in.IterationPath,
	})
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(text), nil, nil
}
