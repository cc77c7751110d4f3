package visuals

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"ado-mcp/internal/schema"
)

// maxBars keeps text charts readable inside a tool response.
const maxBars = 20

// Series is a labelled integer value.
type Series struct {
	Label string
	Value int
}

// GenerateBarChart creates a Mermaid xychart-beta bar chart. Only the first
// maxBars entries are plotted.
func GenerateBarChart(title, yAxis string, data []Series) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxBars {
		data = data[:maxBars]
	}

	var labels []string
	var values []string
	maxVal := 0
	for _, d := range data {
		labels = append(labels, fmt.Sprintf("\"%s\"", escapeLabel(d.Label)))
		values = append(values, fmt.Sprintf("%d", d.Value))
		if d.Value > maxVal {
			maxVal = d.Value
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"%s\"\n", escapeLabel(title)))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"%s\" 0 --> %d\n", escapeLabel(yAxis), maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateCountChart plots a count map, largest first with names breaking ties.
func GenerateCountChart(title, yAxis string, counts map[string]int) string {
	data := make([]Series, 0, len(counts))
	for k, v := range counts {
		data = append(data, Series{Label: k, Value: v})
	}
	sort.Slice(data, func(i, j int) bool {
		if data[i].Value != data[j].Value {
			return data[i].Value > data[j].Value
		}
		return data[i].Label < data[j].Label
	})
	return GenerateBarChart(title, yAxis, data)
}

// GenerateHierarchyFlowchart draws parent to child type edges weighted by frequency.
func GenerateHierarchyFlowchart(relations []schema.HierarchyRelation) string {
	if len(relations) == 0 {
		return ""
	}

	ids := make(map[string]string)
	nodeID := func(name string) string {
		if id, ok := ids[name]; ok {
			return id
		}
		id := fmt.Sprintf("T%d", len(ids)+1)
		ids[name] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart TD\n")
	for _, rel := range relations {
		parent := nodeID(rel.ParentType)
		for _, child := range rel.ChildTypes {
			childID := nodeID(child)
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"] -->|%d| %s[\"%s\"]\n",
				parent, escapeLabel(rel.ParentType), rel.Frequency[child], childID, escapeLabel(child)))
		}
	}
	sb.WriteString("```")
	return sb.String()
}

func escapeLabel(s string) string {
	return strings.NewReplacer(`"`, "'", "\n", " ", "[", "(", "]", ")").Replace(s)
}
