package stats

import (
	"testing"

	"ado-mcp/internal/schema"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Payments Backend", CategoryDevelopment},
		{"Equipo Desarrollo", CategoryDevelopment},
		{"QA Automation", CategoryQuality},
		{"Dev QA", CategoryQuality},
		{"Platform DevOps", CategoryOperations},
		{"Soporte N2", CategorySupport},
		{"Data Engineering", CategoryData},
		{"UX Research", CategoryDesign},
		{"PMO", CategoryManagement},
		{"Mobile", CategoryDevelopment},
		{"Developers", CategoryDevelopment},
		{"Falcon", CategoryGeneral},
	}
	for _, tt := range tests {
		if got := Categorize(tt.name); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAnalyzeTeams_SharedPrefix(t *testing.T) {
	teams := []schema.Team{
		{Name: "PAY-Backend"},
		{Name: "PAY-QA"},
		{Name: "CRM_Frontend"},
		{Name: "Falcon"},
	}

	got := AnalyzeTeams(teams)
	if len(got) != 4 {
		t.Fatalf("got %d teams", len(got))
	}
	if got[0].Analysis.Prefix != "PAY" || got[1].Analysis.Prefix != "PAY" {
		t.Errorf("shared prefix not detected: %+v %+v", got[0].Analysis, got[1].Analysis)
	}
	if got[2].Analysis.Prefix != "" {
		t.Errorf("unshared prefix reported: %+v", got[2].Analysis)
	}
	if got[1].Analysis.Category != CategoryQuality {
		t.Errorf("PAY-QA category = %s", got[1].Analysis.Category)
	}
	if teams[0].Analysis != nil {
		t.Error("input slice must not be modified")
	}
}
