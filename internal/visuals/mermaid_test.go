package visuals

import (
	"strings"
	"testing"

	"ado-mcp/internal/schema"
)

func TestGenerateBarChart(t *testing.T) {
	chart := GenerateBarChart("Items by type", "Items", []Series{{"Bug", 10}, {"Task", 4}})

	for _, want := range []string{
		"```mermaid",
		"xychart-beta",
		`title "Items by type"`,
		`x-axis ["Bug", "Task"]`,
		`y-axis "Items" 0 --> 12`,
		"bar [10, 4]",
	} {
		if !strings.Contains(chart, want) {
			t.Errorf("chart missing %q:\n%s", want, chart)
		}
	}
	if GenerateBarChart("empty", "y", nil) != "" {
		t.Error("empty data should render nothing")
	}
}

func TestGenerateBarChart_Truncates(t *testing.T) {
	data := make([]Series, 30)
	for i := range data {
		data[i] = Series{Label: "x", Value: i}
	}
	chart := GenerateBarChart("t", "y", data)
	if n := strings.Count(chart, `"x"`); n != maxBars {
		t.Errorf("plotted %d bars, want %d", n, maxBars)
	}
}

func TestGenerateCountChart_Order(t *testing.T) {
	chart := GenerateCountChart("t", "y", map[string]int{"b": 2, "a": 2, "c": 5})
	if !strings.Contains(chart, `x-axis ["c", "a", "b"]`) {
		t.Errorf("unexpected order:\n%s", chart)
	}
}

func TestGenerateHierarchyFlowchart(t *testing.T) {
	chart := GenerateHierarchyFlowchart([]schema.HierarchyRelation{
		{ParentType: "Epic", ChildTypes: []string{"Feature"}, Frequency: map[string]int{"Feature": 3}},
		{ParentType: "Feature", ChildTypes: []string{"User \"Story\""}, Frequency: map[string]int{`User "Story"`: 7}},
	})

	if !strings.Contains(chart, `T1["Epic"] -->|3| T2["Feature"]`) {
		t.Errorf("missing epic edge:\n%s", chart)
	}
	if !strings.Contains(chart, `T2["Feature"] -->|7| T3["User 'Story'"]`) {
		t.Errorf("missing escaped feature edge:\n%s", chart)
	}
	if GenerateHierarchyFlowchart(nil) != "" {
		t.Error("no relations should render nothing")
	}
}
