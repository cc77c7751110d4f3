package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ado-mcp/internal/devops"
	"ado-mcp/internal/discovery"

	"github.com/rs/zerolog/log"
)

// MaxSample bounds the work items read by one analysis.
const MaxSample = 200

// ErrMissingProject is returned when a Scope has no project.
var ErrMissingProject = errors.New("project is required")

// Scope narrows an analysis. Only Project is required. A Team without an
// AreaPath is expanded to the team's area paths.
type Scope struct {
	Project       string `json:"project"`
	Team          string `json:"team,omitempty"`
	AreaPath      string `json:"areaPath,omitempty"`
	IterationPath string `json:"iterationPath,omitempty"`
}

// Label renders the scope for report headers.
func (s Scope) Label() string {
	parts := []string{"project " + s.Project}
	if s.Team != "" {
		parts = append(parts, "team "+s.Team)
	}
	if s.AreaPath != "" {
		parts = append(parts, "area "+s.AreaPath)
	}
	if s.IterationPath != "" {
		parts = append(parts, "iteration "+s.IterationPath)
	}
	return strings.Join(parts, " / ")
}

// Options configures a ContextAnalyzer.
type Options struct {
	SampleLimit int
	Charts      bool
	Now         func() time.Time
}

// ContextAnalyzer produces read-only descriptive reports for a team or area.
type ContextAnalyzer struct {
	client    devops.Client
	hierarchy *discovery.HierarchyAnalyzer
	limit     int
	charts    bool
	now       func() time.Time
}

func NewContextAnalyzer(client devops.Client, opts Options) *ContextAnalyzer {
	limit := opts.SampleLimit
	if limit <= 0 || limit > MaxSample {
		limit = MaxSample
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ContextAnalyzer{
		client:    client,
		hierarchy: discovery.NewHierarchyAnalyzer(client),
		limit:     limit,
		charts:    opts.Charts,
		now:       now,
	}
}

// resolvedScope is a Scope with its area filter expanded.
type resolvedScope struct {
	Scope
	Areas []devops.TeamAreaPath
	Notes []string
}

func (a *ContextAnalyzer) resolve(ctx context.Context, s Scope) (resolvedScope, error) {
	s.Project = strings.TrimSpace(s.Project)
	if s.Project == "" {
		return resolvedScope{}, ErrMissingProject
	}
	r := resolvedScope{Scope: s}

	switch {
	case s.AreaPath != "":
		r.Areas = []devops.TeamAreaPath{{Path: s.AreaPath, IncludeChildren: true}}
	case s.Team != "":
		areas, err := a.client.GetTeamAreaPaths(ctx, s.Project, s.Team)
		if err != nil {
			log.Warn().Err(err).Str("team", s.Team).Msg("Failed to resolve team area paths, analysing whole project")
			r.Notes = append(r.Notes, fmt.Sprintf("team area paths unavailable (%v); whole project analysed", err))
		} else if len(areas) == 0 {
			r.Notes = append(r.Notes, "team owns no area paths; whole project analysed")
		}
		r.Areas = areas
	}
	return r, nil
}

// where renders the WIQL filter for the scope plus any extra clauses.
func (r resolvedScope) where(extra ...string) string {
	clauses := []string{"[System.TeamProject] = " + discovery.QuoteWIQL(r.Project)}

	if len(r.Areas) > 0 {
		var areas []string
		for _, area := range r.Areas {
			op := "="
			if area.IncludeChildren {
				op = "UNDER"
			}
			areas = append(areas, fmt.Sprintf("[System.AreaPath] %s %s", op, discovery.QuoteWIQL(area.Path)))
		}
		clauses = append(clauses, "("+strings.Join(areas, " OR ")+")")
	}
	if r.IterationPath != "" {
		clauses = append(clauses, "[System.IterationPath] UNDER "+discovery.QuoteWIQL(r.IterationPath))
	}
	clauses = append(clauses, extra...)
	return strings.Join(clauses, " AND ")
}

// sampleFields is read for every analysis except area fields, which needs the full bag.
var sampleFields = []string{
	devops.FieldID,
	devops.FieldTitle,
	devops.FieldWorkItemType,
	devops.FieldState,
	devops.FieldAreaPath,
	devops.FieldIterationPath,
	devops.FieldCreatedDate,
	devops.FieldChangedDate,
	devops.FieldChangedBy,
	devops.FieldStateChangeDate,
	devops.FieldClosedDate,
	devops.FieldStoryPoints,
	devops.FieldEffort,
}

func (a *ContextAnalyzer) sample(ctx context.Context, r resolvedScope, fields []string, extra ...string) ([]devops.WorkItem, error) {
	wiql := "SELECT [System.Id] FROM WorkItems WHERE " + r.where(extra...) + " ORDER BY [System.ChangedDate] DESC"

	ids, err := a.client.ExecuteQuery(ctx, r.Project, wiql, a.limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if len(ids) > a.limit {
		ids = ids[:a.limit]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := a.client.GetWorkItems(ctx, ids, fields)
	if err != nil {
		return nil, fmt.Errorf("work item fetch failed: %w", err)
	}
	log.Debug().Str("scope", r.Label()).Int("items", len(items)).Msg("Sampled work items")
	return items, nil
}
