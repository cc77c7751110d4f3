package stats

import (
	"strings"
	"unicode"

	"ado-mcp/internal/schema"
)

// Team categories.
const (
	CategoryDevelopment = "development"
	CategoryQuality     = "quality"
	CategoryOperations  = "operations"
	CategorySupport     = "support"
	CategoryData        = "data"
	CategoryDesign      = "design"
	CategoryManagement  = "management"
	CategoryGeneral     = "general"
)

// categoryKeywords is checked in order; the first category with a matching
// word wins. Keywords of five or more letters also match as word prefixes.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryQuality, []string{"qa", "qe", "test", "tests", "testing", "quality", "calidad", "pruebas"}},
	{CategoryOperations, []string{"ops", "devops", "sre", "infra", "infrastructure", "operations", "operaciones", "infraestructura"}},
	{CategorySupport, []string{"support", "soporte", "helpdesk", "service", "servicio", "mesa"}},
	{CategoryData, []string{"data", "datos", "analytics", "bi", "ml", "analitica", "analítica"}},
	{CategoryDesign, []string{"design", "diseño", "ux", "ui"}},
	{CategoryManagement, []string{"pmo", "management", "gestion", "gestión", "leadership", "board", "direccion", "dirección"}},
	{CategoryDevelopment, []string{"dev", "develop", "development", "desarrollo", "engineering", "backend", "frontend", "mobile", "app", "apps", "platform", "api"}},
}

// AnalyzeTeams fills TeamAnalysis for each team. A prefix is only reported
// when at least two teams share it.
func AnalyzeTeams(teams []schema.Team) []schema.Team {
	prefixes := make(map[string]int)
	for _, t := range teams {
		if p := namePrefix(t.Name); p != "" {
			prefixes[strings.ToLower(p)]++
		}
	}

	out := make([]schema.Team, len(teams))
	for i, t := range teams {
		analysis := &schema.TeamAnalysis{Category: Categorize(t.Name)}
		if p := namePrefix(t.Name); p != "" && prefixes[strings.ToLower(p)] >= 2 {
			analysis.Prefix = p
		}
		t.Analysis = analysis
		out[i] = t
	}
	return out
}

// namePrefix returns the token before the first separator, or "" when the
// name has no separator.
func namePrefix(name string) string {
	name = strings.TrimSpace(name)
	i := strings.IndexAny(name, "-_.: ")
	if i <= 0 {
		return ""
	}
	return name[:i]
}

// Categorize assigns a keyword category to a team name.
func Categorize(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, group := range categoryKeywords {
		for _, kw := range group.words {
			for _, w := range words {
				if w == kw || (len([]rune(kw)) >= 5 && strings.HasPrefix(w, kw)) {
					return group.category
				}
			}
		}
	}
	return CategoryGeneral
}
