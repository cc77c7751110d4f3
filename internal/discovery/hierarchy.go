package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ado-mcp/internal/devops"
	"ado-mcp/internal/schema"

	"github.com/rs/zerolog/log"
)

// MaxHierarchySample bounds the number of work items read per analysis.
const MaxHierarchySample = 50

// MsgNoRelations is reported when no sampled item has a parent.
const MsgNoRelations = "no relations found"

// TypeCount is a type name with its observed frequency.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// HierarchyReport is built fresh on every call.
type HierarchyReport struct {
	Project               string                     `json:"project"`
	AreaPath              string                     `json:"areaPath,omitempty"`
	SampleSize            int                        `json:"sampleSize"`
	LinkedItems           int                        `json:"linkedItems"`
	Skipped               int                        `json:"skipped"`
	ChildTypeDistribution map[string]int             `json:"childTypeDistribution"`
	Relations             []schema.HierarchyRelation `json:"relations"`
	MostCommonChildTypes  []TypeCount                `json:"mostCommonChildTypes"`
	Message               string                     `json:"message"`
}

// HierarchyAnalyzer infers parent to child type relationships from a sample of
// recently changed work items.
type HierarchyAnalyzer struct {
	client devops.Client
}

func NewHierarchyAnalyzer(client devops.Client) *HierarchyAnalyzer {
	return &HierarchyAnalyzer{client: client}
}

// Analyze never fails. areaPath is optional and scopes the sample with UNDER.
func (h *HierarchyAnalyzer) Analyze(ctx context.Context, project string, sampleSize int, areaPath string) HierarchyReport {
	if sampleSize <= 0 || sampleSize > MaxHierarchySample {
		sampleSize = MaxHierarchySample
	}
	report := HierarchyReport{
		Project:               project,
		AreaPath:              areaPath,
		ChildTypeDistribution: map[string]int{},
		Relations:             []schema.HierarchyRelation{},
		MostCommonChildTypes:  []TypeCount{},
	}

	// 1. Sample the most recently changed items
	wiql := "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = " + QuoteWIQL(project)
	if areaPath != "" {
		wiql += " AND [System.AreaPath] UNDER " + QuoteWIQL(areaPath)
	}
	wiql += " ORDER BY [System.ChangedDate] DESC"

	ids, err := h.client.ExecuteQuery(ctx, project, wiql, sampleSize)
	if err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Hierarchy sample query failed")
		report.Message = fmt.Sprintf("sample query failed: %v", err)
		return report
	}
	if len(ids) > sampleSize {
		ids = ids[:sampleSize]
	}
	report.SampleSize = len(ids)

	// 2. Walk the sample and resolve each parent's type once
	parentTypes := make(map[int]string)
	pairs := make(map[string]map[string]int)

	for _, id := range ids {
		item, err := h.client.GetWorkItem(ctx, id)
		if err != nil || item == nil {
			log.Warn().Err(err).Int("id", id).Msg("Skipping work item in hierarchy sample")
			report.Skipped++
			continue
		}
		parentID := item.Int(devops.FieldParent)
		if parentID == 0 {
			continue
		}
		childType := item.String(devops.FieldWorkItemType)
		if childType == "" {
			report.Skipped++
			continue
		}

		parentType, ok := parentTypes[parentID]
		if !ok {
			parent, err := h.client.GetWorkItem(ctx, parentID)
			if err != nil || parent == nil {
				log.Warn().Err(err).Int("id", id).Int("parent", parentID).Msg("Skipping work item with unresolvable parent")
				parentTypes[parentID] = ""
				report.Skipped++
				continue
			}
			parentType = parent.String(devops.FieldWorkItemType)
			parentTypes[parentID] = parentType
		}
		if parentType == "" {
			report.Skipped++
			continue
		}

		report.LinkedItems++
		report.ChildTypeDistribution[childType]++
		if pairs[parentType] == nil {
			pairs[parentType] = make(map[string]int)
		}
		pairs[parentType][childType]++
	}

	// 3. Rank deterministically
	report.Relations = buildRelations(pairs)
	report.MostCommonChildTypes = RankTypes(report.ChildTypeDistribution)

	if report.LinkedItems == 0 {
		report.Message = MsgNoRelations
	} else {
		report.Message = fmt.Sprintf("%d of %d sampled items have a parent; %d parent types observed",
			report.LinkedItems, report.SampleSize, len(report.Relations))
	}
	log.Info().Str("project", project).Int("sample", report.SampleSize).Int("linked", report.LinkedItems).Msg("Hierarchy analysis complete")
	return report
}

// RankTypes sorts by count descending, then by name.
func RankTypes(counts map[string]int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TypeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func buildRelations(pairs map[string]map[string]int) []schema.HierarchyRelation {
	relations := make([]schema.HierarchyRelation, 0, len(pairs))
	for parent, children := range pairs {
		ranked := RankTypes(children)
		rel := schema.HierarchyRelation{
			ParentType: parent,
			ChildTypes: make([]string, len(ranked)),
			Frequency:  children,
		}
		for i, tc := range ranked {
			rel.ChildTypes[i] = tc.Type
		}
		relations = append(relations, rel)
	}
	sort.Slice(relations, func(i, j int) bool {
		return relations[i].ParentType < relations[j].ParentType
	})
	return relations
}

// MergeRelations folds observed relations into an existing set. Frequencies add up.
func MergeRelations(existing, observed []schema.HierarchyRelation) []schema.HierarchyRelation {
	pairs := make(map[string]map[string]int)
	for _, set := range [][]schema.HierarchyRelation{existing, observed} {
		for _, rel := range set {
			if pairs[rel.ParentType] == nil {
				pairs[rel.ParentType] = make(map[string]int)
			}
			for _, child := range rel.ChildTypes {
				if _, ok := pairs[rel.ParentType][child]; !ok {
					pairs[rel.ParentType][child] = 0
				}
			}
			for child, n := range rel.Frequency {
				pairs[rel.ParentType][child] += n
			}
		}
	}
	return buildRelations(pairs)
}

// Summary renders the report as text.
func (r HierarchyReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hierarchy analysis for %s", r.Project)
	if r.AreaPath != "" {
		fmt.Fprintf(&b, " (area %s)", r.AreaPath)
	}
	fmt.Fprintf(&b, "\nSampled items: %d, linked to a parent: %d, skipped: %d\n", r.SampleSize, r.LinkedItems, r.Skipped)
	if r.LinkedItems == 0 {
		b.WriteString(r.Message)
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString("\nParent -> children:\n")
	for _, rel := range r.Relations {
		parts := make([]string, len(rel.ChildTypes))
		for i, c := range rel.ChildTypes {
			parts[i] = fmt.Sprintf("%s (%d)", c, rel.Frequency[c])
		}
		fmt.Fprintf(&b, "- %s -> %s\n", rel.ParentType, strings.Join(parts, ", "))
	}
	b.WriteString("\nMost common child types:\n")
	for i, tc := range r.MostCommonChildTypes {
		fmt.Fprintf(&b, "%d. %s: %d\n", i+1, tc.Type, tc.Count)
	}
	return b.String()
}
