package discovery

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"ado-mcp/internal/devops"
	"ado-mcp/internal/devops/devopstest"
	"ado-mcp/internal/schema"

	"pgregory.net/rapid"
)

// itemsFake serves work items from a map and counts lookups per id.
func itemsFake(items map[int]devops.WorkItem, sample []int) (*devopstest.Fake, map[int]int) {
	lookups := make(map[int]int)
	fake := &devopstest.Fake{
		ExecuteQueryFunc: func(ctx context.Context, project, wiql string, top int) ([]int, error) {
			return sample, nil
		},
		GetWorkItemFunc: func(ctx context.Context, id int) (*devops.WorkItem, error) {
			lookups[id]++
			wi, ok := items[id]
			if !ok {
				return nil, fmt.Errorf("work item %d not found", id)
			}
			return &wi, nil
		},
	}
	return fake, lookups
}

func item(id int, typ string, parent int) devops.WorkItem {
	fields := map[string]any{devops.FieldWorkItemType: typ}
	if parent > 0 {
		fields[devops.FieldParent] = float64(parent)
	}
	return devops.WorkItem{ID: id, Fields: fields}
}

func TestHierarchyAnalyze_CountsRelations(t *testing.T) {
	items := map[int]devops.WorkItem{
		1: item(1, "Epic", 0),
		2: item(2, "Feature", 1),
		3: item(3, "User Story", 2),
		4: item(4, "User Story", 2),
		5: item(5, "Task", 3),
		6: item(6, "Bug", 2),
		7: item(7, "Task", 99), // parent missing
	}
	fake, lookups := itemsFake(items, []int{7, 6, 5, 4, 3, 2, 1, 404})

	report := NewHierarchyAnalyzer(fake).Analyze(context.Background(), "P", 10, "")

	if report.SampleSize != 8 {
		t.Errorf("sample size = %d, want 8", report.SampleSize)
	}
	if report.LinkedItems != 5 {
		t.Errorf("linked = %d, want 5", report.LinkedItems)
	}
	if report.Skipped != 2 {
		t.Errorf("skipped = %d, want 2 (missing item and missing parent)", report.Skipped)
	}
	wantDist := map[string]int{"Feature": 1, "User Story": 2, "Task": 1, "Bug": 1}
	if !reflect.DeepEqual(report.ChildTypeDistribution, wantDist) {
		t.Errorf("distribution = %v, want %v", report.ChildTypeDistribution, wantDist)
	}
	wantRank := []TypeCount{{"User Story", 2}, {"Bug", 1}, {"Feature", 1}, {"Task", 1}}
	if !reflect.DeepEqual(report.MostCommonChildTypes, wantRank) {
		t.Errorf("ranking = %v, want %v", report.MostCommonChildTypes, wantRank)
	}
	if len(report.Relations) != 3 || report.Relations[0].ParentType != "Epic" || report.Relations[1].ParentType != "Feature" {
		t.Errorf("relations = %+v", report.Relations)
	}
	if got := report.Relations[1].ChildTypes; !reflect.DeepEqual(got, []string{"User Story", "Bug"}) {
		t.Errorf("feature children = %v", got)
	}
	if lookups[2] != 2 {
		t.Errorf("item 2 fetched %d times, want 2 (once sampled, once as parent)", lookups[2])
	}
}

func TestHierarchyAnalyze_NoParents(t *testing.T) {
	items := map[int]devops.WorkItem{1: item(1, "Bug", 0), 2: item(2, "Task", 0)}
	fake, _ := itemsFake(items, []int{1, 2})

	report := NewHierarchyAnalyzer(fake).Analyze(context.Background(), "P", 50, "")

	if len(report.ChildTypeDistribution) != 0 {
		t.Errorf("distribution = %v, want empty", report.ChildTypeDistribution)
	}
	if report.Message != MsgNoRelations {
		t.Errorf("message = %q", report.Message)
	}
	if report.Skipped != 0 {
		t.Errorf("items without parents must not count as skipped, got %d", report.Skipped)
	}
	if !strings.Contains(report.Summary(), MsgNoRelations) {
		t.Error("summary should carry the no relations message")
	}
}

func TestHierarchyAnalyze_QueryFailure(t *testing.T) {
	fake := &devopstest.Fake{
		ExecuteQueryFunc: func(ctx context.Context, project, wiql string, top int) ([]int, error) {
			return nil, errors.New("timeout")
		},
	}
	report := NewHierarchyAnalyzer(fake).Analyze(context.Background(), "P", 5, "")
	if report.SampleSize != 0 || !strings.Contains(report.Message, "timeout") {
		t.Errorf("report = %+v", report)
	}
}

func TestHierarchyAnalyze_CapsSampleAndScopesArea(t *testing.T) {
	var gotTop int
	var gotWIQL string
	fake := &devopstest.Fake{
		ExecuteQueryFunc: func(ctx context.Context, project, wiql string, top int) ([]int, error) {
			gotTop, gotWIQL = top, wiql
			return nil, nil
		},
	}
	NewHierarchyAnalyzer(fake).Analyze(context.Background(), "P", 500, `P\Payments`)

	if gotTop != MaxHierarchySample {
		t.Errorf("top = %d, want %d", gotTop, MaxHierarchySample)
	}
	if !strings.Contains(gotWIQL, `[System.AreaPath] UNDER 'P\Payments'`) {
		t.Errorf("wiql = %s", gotWIQL)
	}
	if !strings.Contains(gotWIQL, "ORDER BY [System.ChangedDate] DESC") {
		t.Errorf("wiql must order by change date: %s", gotWIQL)
	}
}

func TestRankTypes_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfDistinct(rapid.StringMatching(`[A-Z][a-z]{1,6}`), func(s string) string { return s }).Draw(t, "names")
		counts := make(map[string]int, len(names))
		for _, n := range names {
			counts[n] = rapid.IntRange(1, 5).Draw(t, "count")
		}

		first := RankTypes(counts)
		for i := 0; i < 3; i++ {
			if again := RankTypes(counts); !reflect.DeepEqual(first, again) {
				t.Fatalf("ranking changed between runs: %v vs %v", first, again)
			}
		}
		for i := 1; i < len(first); i++ {
			prev, cur := first[i-1], first[i]
			if prev.Count < cur.Count || (prev.Count == cur.Count && prev.Type > cur.Type) {
				t.Fatalf("order violated at %d: %v then %v", i, prev, cur)
			}
		}
	})
}

func TestMergeRelations(t *testing.T) {
	existing := []schema.HierarchyRelation{{ParentType: "Epic", ChildTypes: []string{"Feature"}, Frequency: map[string]int{"Feature": 3}}}
	observed := []schema.HierarchyRelation{
		{ParentType: "Epic", ChildTypes: []string{"Feature", "Bug"}, Frequency: map[string]int{"Feature": 1, "Bug": 4}},
		{ParentType: "Feature", ChildTypes: []string{"Task"}, Frequency: map[string]int{"Task": 2}},
	}

	got := MergeRelations(existing, observed)
	if len(got) != 2 {
		t.Fatalf("relations = %+v", got)
	}
	if got[0].Frequency["Feature"] != 4 || got[0].Frequency["Bug"] != 4 {
		t.Errorf("epic frequency = %v", got[0].Frequency)
	}
	if !reflect.DeepEqual(got[0].ChildTypes, []string{"Bug", "Feature"}) {
		t.Errorf("epic children = %v, want tie broken by name", got[0].ChildTypes)
	}
}
