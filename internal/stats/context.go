package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ado-mcp/internal/devops"
	"ado-mcp/internal/discovery"
	"ado-mcp/internal/visuals"
)

// Windows used by the time-based reports.
const (
	activityWindowDays = 30
	velocityWindowDays = 180
)

// Analysis names accepted by Run.
const (
	AnalysisDistribution = "distribution"
	AnalysisActivity     = "activity"
	AnalysisVelocity     = "velocity"
	AnalysisAreaFields   = "area_fields"
	AnalysisWorkflow     = "workflow"
	AnalysisHierarchy    = "hierarchy"
)

// Analyses lists the names accepted by Run.
var Analyses = []string{
	AnalysisDistribution,
	AnalysisActivity,
	AnalysisVelocity,
	AnalysisAreaFields,
	AnalysisWorkflow,
	AnalysisHierarchy,
}

// Run dispatches by analysis name.
func (a *ContextAnalyzer) Run(ctx context.Context, analysis string, s Scope) (string, error) {
	switch analysis {
	case AnalysisDistribution:
		return a.AnalyzeDistribution(ctx, s)
	case AnalysisActivity:
		return a.AnalyzeActivity(ctx, s)
	case AnalysisVelocity:
		return a.AnalyzeVelocity(ctx, s)
	case AnalysisAreaFields:
		return a.AnalyzeAreaFields(ctx, s)
	case AnalysisWorkflow:
		return a.AnalyzeWorkflowPatterns(ctx, s)
	case AnalysisHierarchy:
		return a.AnalyzeAreaHierarchy(ctx, s)
	}
	return "", fmt.Errorf("unknown analysis %q (valid: %s)", analysis, strings.Join(Analyses, ", "))
}

// AnalyzeDistribution counts sampled items by type, state and area.
func (a *ContextAnalyzer) AnalyzeDistribution(ctx context.Context, s Scope) (string, error) {
	r, err := a.resolve(ctx, s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	header(&b, "Work item distribution", r)

	items, err := a.sample(ctx, r, sampleFields)
	if err != nil {
		fmt.Fprintf(&b, "Could not sample work items: %v\n", err)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Sampled items: %d\n", len(items))
	if len(items) == 0 {
		return b.String(), nil
	}

	byType := countBy(items, devops.FieldWorkItemType)
	writeCounts(&b, "By type", byType, len(items), 0)
	writeCounts(&b, "By state", countBy(items, devops.FieldState), len(items), 0)
	writeCounts(&b, "By area path", countBy(items, devops.FieldAreaPath), len(items), 10)

	if a.charts {
		b.WriteString("\n")
		b.WriteString(visuals.GenerateCountChart("Items by type", "Items", byType))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// AnalyzeActivity reports recent changes, creations and closures.
func (a *ContextAnalyzer) AnalyzeActivity(ctx context.Context, s Scope) (string, error) {
	r, err := a.resolve(ctx, s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	header(&b, fmt.Sprintf("Activity over the last %d days", activityWindowDays), r)

	items, err := a.sample(ctx, r, sampleFields, fmt.Sprintf("[System.ChangedDate] >= @today - %d", activityWindowDays))
	if err != nil {
		fmt.Fprintf(&b, "Could not sample work items: %v\n", err)
		return b.String(), nil
	}

	now := a.now()
	cutoff := now.AddDate(0, 0, -activityWindowDays)
	var changed []time.Time
	created, closed := 0, 0
	contributors := make(map[string]int)

	for _, wi := range items {
		if t, ok := wi.Time(devops.FieldChangedDate); ok {
			changed = append(changed, t)
		}
		if t, ok := wi.Time(devops.FieldCreatedDate); ok && t.After(cutoff) {
			created++
		}
		if t, ok := wi.Time(devops.FieldClosedDate); ok && t.After(cutoff) {
			closed++
		}
		if who := wi.String(devops.FieldChangedBy); who != "" {
			contributors[who]++
		}
	}

	fmt.Fprintf(&b, "Items changed: %d (sample limit %d)\n", len(items), a.limit)
	fmt.Fprintf(&b, "Created in window: %d\n", created)
	fmt.Fprintf(&b, "Closed in window: %d\n", closed)

	weeks := WeeklyCounts(changed, activityWindowDays/7+1, now)
	b.WriteString("\nChanges per week:\n")
	var series []visuals.Series
	for _, w := range weeks {
		label := w.WeekStarting.Format("2006-01-02")
		fmt.Fprintf(&b, "- %s: %d\n", label, w.Count)
		series = append(series, visuals.Series{Label: label, Value: w.Count})
	}

	writeCounts(&b, "Most active contributors", contributors, len(items), 5)

	if a.charts {
		b.WriteString("\n")
		b.WriteString(visuals.GenerateBarChart("Changes per week", "Changes", series))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// iterationStats aggregates closed items of one iteration.
type iterationStats struct {
	Path   string
	Start  *time.Time
	Items  int
	Points float64
}

// AnalyzeVelocity reports closed items and points per iteration.
func (a *ContextAnalyzer) AnalyzeVelocity(ctx context.Context, s Scope) (string, error) {
	r, err := a.resolve(ctx, s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	header(&b, fmt.Sprintf("Velocity over the last %d days", velocityWindowDays), r)

	items, err := a.sample(ctx, r, sampleFields, fmt.Sprintf("[Microsoft.VSTS.Common.ClosedDate] >= @today - %d", velocityWindowDays))
	if err != nil {
		fmt.Fprintf(&b, "Could not sample work items: %v\n", err)
		return b.String(), nil
	}
	if len(items) == 0 {
		b.WriteString("No closed items in the window.\n")
		return b.String(), nil
	}

	// 1. Known iteration dates give a chronological order
	starts := make(map[string]*time.Time)
	if r.Team != "" {
		if iterations, err := a.client.GetTeamIterations(ctx, r.Project, r.Team); err == nil {
			for _, it := range iterations {
				starts[it.Path] = it.StartDate
			}
		}
	}

	// 2. Aggregate per iteration path
	byIteration := make(map[string]*iterationStats)
	var cycleTimes []float64
	for _, wi := range items {
		path := wi.String(devops.FieldIterationPath)
		st, ok := byIteration[path]
		if !ok {
			st = &iterationStats{Path: path, Start: starts[path]}
			byIteration[path] = st
		}
		st.Items++
		if p, ok := wi.Float(devops.FieldStoryPoints); ok {
			st.Points += p
		} else if p, ok := wi.Float(devops.FieldEffort); ok {
			st.Points += p
		}

		createdAt, okCreated := wi.Time(devops.FieldCreatedDate)
		closedAt, okClosed := wi.Time(devops.FieldClosedDate)
		if okCreated && okClosed && closedAt.After(createdAt) {
			cycleTimes = append(cycleTimes, closedAt.Sub(createdAt).Hours()/24)
		}
	}

	ordered := make([]*iterationStats, 0, len(byIteration))
	for _, st := range byIteration {
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := ordered[i].Start, ordered[j].Start
		if si != nil && sj != nil && !si.Equal(*sj) {
			return si.Before(*sj)
		}
		if (si == nil) != (sj == nil) {
			return si != nil
		}
		return ordered[i].Path < ordered[j].Path
	})

	// 3. Render
	var itemCounts, points []float64
	var series []visuals.Series
	b.WriteString("Closed per iteration:\n")
	for _, st := range ordered {
		label := st.Path
		if label == "" {
			label = "(no iteration)"
		}
		fmt.Fprintf(&b, "- %s: %d items, %.1f points\n", label, st.Items, st.Points)
		itemCounts = append(itemCounts, float64(st.Items))
		points = append(points, st.Points)
		series = append(series, visuals.Series{Label: lastSegment(label), Value: st.Items})
	}

	fmt.Fprintf(&b, "\nIterations: %d\n", len(ordered))
	fmt.Fprintf(&b, "Median items per iteration: %.1f\n", Median(itemCounts))
	fmt.Fprintf(&b, "Median points per iteration: %.1f\n", Median(points))
	if len(cycleTimes) > 0 {
		fmt.Fprintf(&b, "Cycle time (created to closed): median %.1f days, 85th percentile %.1f days\n",
			Median(cycleTimes), Percentile(cycleTimes, 85))
	}

	if a.charts {
		b.WriteString("\n")
		b.WriteString(visuals.GenerateBarChart("Closed items per iteration", "Items", series))
		b.WriteString("\n")
	}
	return b.String(), nil
}

type fieldFill struct {
	Ref    string
	Filled int
	Values map[string]int
}

// AnalyzeAreaFields reports how often custom fields are filled in the scope.
func (a *ContextAnalyzer) AnalyzeAreaFields(ctx context.Context, s Scope) (string, error) {
	r, err := a.resolve(ctx, s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	header(&b, "Custom field usage", r)

	items, err := a.sample(ctx, r, nil)
	if err != nil {
		fmt.Fprintf(&b, "Could not sample work items: %v\n", err)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Sampled items: %d\n", len(items))

	fills := make(map[string]*fieldFill)
	for _, wi := range items {
		for ref := range wi.Fields {
			if !discovery.IsCustomField(ref) {
				continue
			}
			v := strings.TrimSpace(wi.String(ref))
			if v == "" {
				continue
			}
			f, ok := fills[ref]
			if !ok {
				f = &fieldFill{Ref: ref, Values: make(map[string]int)}
				fills[ref] = f
			}
			f.Filled++
			f.Values[v]++
		}
	}
	if len(fills) == 0 {
		b.WriteString("No custom fields carry values in this sample.\n")
		return b.String(), nil
	}

	ordered := make([]*fieldFill, 0, len(fills))
	for _, f := range fills {
		ordered = append(ordered, f)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Filled != ordered[j].Filled {
			return ordered[i].Filled > ordered[j].Filled
		}
		return ordered[i].Ref < ordered[j].Ref
	})

	b.WriteString("\nCustom fields by fill rate:\n")
	for _, f := range ordered {
		fmt.Fprintf(&b, "- %s: %d/%d (%.1f%%), %d distinct values", f.Ref, f.Filled, len(items), Ratio(f.Filled, len(items)), len(f.Values))
		if len(f.Values) <= 10 {
			top := discovery.RankTypes(f.Values)
			names := make([]string, 0, len(top))
			for _, tc := range top {
				names = append(names, fmt.Sprintf("%s (%d)", tc.Type, tc.Count))
			}
			fmt.Fprintf(&b, ": %s", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// AnalyzeWorkflowPatterns reports state usage per type, time in current state
// for open items and cycle times for closed ones.
func (a *ContextAnalyzer) AnalyzeWorkflowPatterns(ctx context.Context, s Scope) (string, error) {
	r, err := a.resolve(ctx, s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	header(&b, "Workflow patterns", r)

	items, err := a.sample(ctx, r, sampleFields)
	if err != nil {
		fmt.Fprintf(&b, "Could not sample work items: %v\n", err)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Sampled items: %d\n", len(items))
	if len(items) == 0 {
		return b.String(), nil
	}

	now := a.now()
	states := make(map[string]map[string]int)
	ageInState := make(map[string][]float64)
	cycle := make(map[string][]float64)

	for _, wi := range items {
		typ := wi.String(devops.FieldWorkItemType)
		state := wi.String(devops.FieldState)
		if states[typ] == nil {
			states[typ] = make(map[string]int)
		}
		states[typ][state]++

		closedAt, isClosed := wi.Time(devops.FieldClosedDate)
		if isClosed {
			if createdAt, ok := wi.Time(devops.FieldCreatedDate); ok && closedAt.After(createdAt) {
				cycle[typ] = append(cycle[typ], closedAt.Sub(createdAt).Hours()/24)
			}
			continue
		}
		if since, ok := wi.Time(devops.FieldStateChangeDate); ok && now.After(since) {
			ageInState[state] = append(ageInState[state], now.Sub(since).Hours()/24)
		}
	}

	b.WriteString("\nStates per type:\n")
	for _, typ := range sortedKeys(states) {
		ranked := discovery.RankTypes(states[typ])
		parts := make([]string, 0, len(ranked))
		for _, tc := range ranked {
			parts = append(parts, fmt.Sprintf("%s %d", tc.Type, tc.Count))
		}
		fmt.Fprintf(&b, "- %s: %s\n", typ, strings.Join(parts, ", "))
	}

	if len(ageInState) > 0 {
		b.WriteString("\nOpen items, days in current state:\n")
		for _, state := range sortedKeys(ageInState) {
			ages := ageInState[state]
			fmt.Fprintf(&b, "- %s: %d items, median %.1f, max %.1f\n", state, len(ages), Median(ages), Percentile(ages, 100))
		}
	}

	if len(cycle) > 0 {
		b.WriteString("\nCycle time by type (days):\n")
		for _, typ := range sortedKeys(cycle) {
			c := cycle[typ]
			fmt.Fprintf(&b, "- %s: %d closed, median %.1f, 85th percentile %.1f\n", typ, len(c), Median(c), Percentile(c, 85))
		}
	}
	return b.String(), nil
}

// AnalyzeAreaHierarchy runs the hierarchy analysis inside the scope's first area.
func (a *ContextAnalyzer) AnalyzeAreaHierarchy(ctx context.Context, s Scope) (string, error) {
	r, err := a.resolve(ctx, s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	header(&b, "Hierarchy within area", r)

	area := ""
	if len(r.Areas) > 0 {
		area = r.Areas[0].Path
		if len(r.Areas) > 1 {
			fmt.Fprintf(&b, "Team owns %d area paths; analysing %s\n", len(r.Areas), area)
		}
	}

	report := a.hierarchy.Analyze(ctx, r.Project, discovery.MaxHierarchySample, area)
	b.WriteString(report.Summary())
	if a.charts {
		if chart := visuals.GenerateHierarchyFlowchart(report.Relations); chart != "" {
			b.WriteString("\n")
			b.WriteString(chart)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func header(b *strings.Builder, title string, r resolvedScope) {
	fmt.Fprintf(b, "%s for %s\n", title, r.Label())
	if len(r.Areas) > 0 && r.AreaPath == "" {
		paths := make([]string, len(r.Areas))
		for i, area := range r.Areas {
			paths[i] = area.Path
		}
		fmt.Fprintf(b, "Team area paths: %s\n", strings.Join(paths, ", "))
	}
	for _, note := range r.Notes {
		fmt.Fprintf(b, "Note: %s\n", note)
	}
}

func countBy(items []devops.WorkItem, field string) map[string]int {
	out := make(map[string]int)
	for _, wi := range items {
		v := wi.String(field)
		if v == "" {
			v = "(empty)"
		}
		out[v]++
	}
	return out
}

func writeCounts(b *strings.Builder, title string, counts map[string]int, total, limit int) {
	ranked := discovery.RankTypes(counts)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, tc := range ranked {
		fmt.Fprintf(b, "- %s: %d (%.1f%%)\n", tc.Type, tc.Count, Ratio(tc.Count, total))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, `\`); i >= 0 && i < len(path)-1 {
		return path[i+1:]
	}
	return path
}
