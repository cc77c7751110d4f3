package investigation

import (
	"fmt"
	"strings"

	"ado-mcp/internal/discovery"
	"ado-mcp/internal/schema"
	"ado-mcp/internal/visuals"
)

// Status lines of the report header.
const (
	StatusCompleted             = "completed"
	StatusCompletedWithWarnings = "completed with warnings"
	StatusFailed                = "failed"
)

// Status summarizes the outcome in one phrase.
func (r *Result) Status() string {
	switch {
	case !r.Success:
		return StatusFailed
	case len(r.Warnings) > 0:
		return StatusCompletedWithWarnings
	default:
		return StatusCompleted
	}
}

func renderReport(res *Result, charts bool, org *schema.DiscoveredOrganization, hierarchy *discovery.HierarchyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Investigation: %s\n\n", res.Kind)
	fmt.Fprintf(&b, "- Project: %s\n", res.Project)
	fmt.Fprintf(&b, "- Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "- Status: %s\n", res.Status())
	fmt.Fprintf(&b, "- Resolved fields: %d\n", res.ResolvedFields)
	fmt.Fprintf(&b, "- Unresolved fields: %d\n", res.UnresolvedFields)

	if len(res.Backups) > 0 {
		b.WriteString("\n## Backups\n")
		for _, rec := range res.Backups {
			if rec.Success {
				fmt.Fprintf(&b, "- %s -> %s\n", rec.OriginalPath, rec.BackupPath)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", rec.OriginalPath, rec.Error)
			}
		}
	}

	if len(res.Steps) > 0 {
		b.WriteString("\n## Steps\n")
		for _, s := range res.Steps {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if len(res.Transitions) > 0 {
		b.WriteString("\n## Resolved\n")
		for _, t := range res.Transitions {
			fmt.Fprintf(&b, "- %s / %s: %s -> %s (%s, %d values)\n", t.WorkItemType, t.ReferenceName, t.From, t.To, t.Strategy, t.Values)
		}
	}

	if len(res.Unresolved) > 0 {
		b.WriteString("\n## Unresolved\n")
		for _, u := range res.Unresolved {
			fmt.Fprintf(&b, "- %s / %s: %s\n", u.WorkItemType, u.ReferenceName, u.Status)
		}
	}

	if len(res.Warnings) > 0 {
		b.WriteString("\n## Warnings\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	s := res.Statistics
	b.WriteString("\n## Statistics\n")
	fmt.Fprintf(&b, "- Projects: %d\n- Teams: %d\n- Work item types: %d\n- Fields: %d (%d functional)\n- Custom fields: %d\n",
		s.Projects, s.Teams, s.WorkItemTypes, s.Fields, s.FunctionalFields, s.CustomFields)

	if res.TeamContext != "" {
		b.WriteString("\n## Team context\n")
		b.WriteString(res.TeamContext)
		b.WriteString("\n")
	}

	if hierarchy != nil {
		b.WriteString("\n## Hierarchy\n")
		b.WriteString(hierarchy.Summary())
		b.WriteString("\n")
	}

	if charts && org != nil {
		writeCharts(&b, org)
	}
	return b.String()
}

func writeCharts(b *strings.Builder, org *schema.DiscoveredOrganization) {
	if len(org.WorkItemTypes) > 0 {
		counts := make(map[string]int, len(org.WorkItemTypes))
		for name, t := range org.WorkItemTypes {
			counts[name] = len(t.Fields)
		}
		b.WriteString("\n")
		b.WriteString(visuals.GenerateCountChart("Fields per work item type", "Fields", counts))
		b.WriteString("\n")
	}
	if len(org.Hierarchy) > 0 {
		b.WriteString("\n")
		b.WriteString(visuals.GenerateHierarchyFlowchart(org.Hierarchy))
		b.WriteString("\n")
	}
}
