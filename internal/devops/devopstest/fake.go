// Package devopstest provides an in-memory devops.Client for tests.
package devopstest

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"ado-mcp/internal/devops"

	"github.com/google/uuid"
)

// Fake implements devops.Client. Each method delegates to its Func field when
// set and otherwise returns an empty result. Calls are counted per method.
type Fake struct {
	ListProjectsFunc          func(ctx context.Context) ([]devops.ProjectInfo, error)
	ListTeamsFunc             func(ctx context.Context, project string) ([]devops.TeamInfo, error)
	GetWorkItemTypesFunc      func(ctx context.Context, project string) ([]devops.WorkItemTypeInfo, error)
	GetWorkItemTypeFieldsFunc func(ctx context.Context, project, workItemType string) ([]devops.TypeFieldInfo, error)
	ListFieldsFunc            func(ctx context.Context, project string) ([]devops.FieldInfo, error)
	GetWorkItemFunc           func(ctx context.Context, id int) (*devops.WorkItem, error)
	GetWorkItemsFunc          func(ctx context.Context, ids []int, fields []string) ([]devops.WorkItem, error)
	ExecuteQueryFunc          func(ctx context.Context, project, wiql string, top int) ([]int, error)
	GetFieldAllowedValuesFunc func(ctx context.Context, project, workItemType, field string) ([]string, error)
	GetPicklistFunc           func(ctx context.Context, id uuid.UUID) (*devops.Picklist, error)
	GetAreaTreeFunc           func(ctx context.Context, project string, depth int) (*devops.AreaNode, error)
	GetTeamAreaPathsFunc      func(ctx context.Context, project, team string) ([]devops.TeamAreaPath, error)
	GetTeamIterationsFunc     func(ctx context.Context, project, team string) ([]devops.Iteration, error)
	GetFunc                   func(ctx context.Context, path string, query url.Values) ([]byte, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ devops.Client = (*Fake)(nil)

func (f *Fake) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Calls returns how often the named method was invoked.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *Fake) ListProjects(ctx context.Context) ([]devops.ProjectInfo, error) {
	f.record("ListProjects")
	if f.ListProjectsFunc != nil {
		return f.ListProjectsFunc(ctx)
	}
	return nil, nil
}

func (f *Fake) ListTeams(ctx context.Context, project string) ([]devops.TeamInfo, error) {
	f.record("ListTeams")
	if f.ListTeamsFunc != nil {
		return f.ListTeamsFunc(ctx, project)
	}
	return nil, nil
}

func (f *Fake) GetWorkItemTypes(ctx context.Context, project string) ([]devops.WorkItemTypeInfo, error) {
	f.record("GetWorkItemTypes")
	if f.GetWorkItemTypesFunc != nil {
		return f.GetWorkItemTypesFunc(ctx, project)
	}
	return nil, nil
}

func (f *Fake) GetWorkItemTypeFields(ctx context.Context, project, workItemType string) ([]devops.TypeFieldInfo, error) {
	f.record("GetWorkItemTypeFields")
	if f.GetWorkItemTypeFieldsFunc != nil {
		return f.GetWorkItemTypeFieldsFunc(ctx, project, workItemType)
	}
	return nil, nil
}

func (f *Fake) ListFields(ctx context.Context, project string) ([]devops.FieldInfo, error) {
	f.record("ListFields")
	if f.ListFieldsFunc != nil {
		return f.ListFieldsFunc(ctx, project)
	}
	return nil, nil
}

func (f *Fake) GetWorkItem(ctx context.Context, id int) (*devops.WorkItem, error) {
	f.record("GetWorkItem")
	if f.GetWorkItemFunc != nil {
		return f.GetWorkItemFunc(ctx, id)
	}
	return nil, fmt.Errorf("work item %d not found", id)
}

func (f *Fake) GetWorkItems(ctx context.Context, ids []int, fields []string) ([]devops.WorkItem, error) {
	f.record("GetWorkItems")
	if f.GetWorkItemsFunc != nil {
		return f.GetWorkItemsFunc(ctx, ids, fields)
	}
	return nil, nil
}

func (f *Fake) ExecuteQuery(ctx context.Context, project, wiql string, top int) ([]int, error) {
	f.record("ExecuteQuery")
	if f.ExecuteQueryFunc != nil {
		return f.ExecuteQueryFunc(ctx, project, wiql, top)
	}
	return nil, nil
}

func (f *Fake) GetFieldAllowedValues(ctx context.Context, project, workItemType, field string) ([]string, error) {
	f.record("GetFieldAllowedValues")
	if f.GetFieldAllowedValuesFunc != nil {
		return f.GetFieldAllowedValuesFunc(ctx, project, workItemType, field)
	}
	return nil, nil
}

func (f *Fake) GetPicklist(ctx context.Context, id uuid.UUID) (*devops.Picklist, error) {
	f.record("GetPicklist")
	if f.GetPicklistFunc != nil {
		return f.GetPicklistFunc(ctx, id)
	}
	return nil, fmt.Errorf("picklist %s not found", id)
}

func (f *Fake) GetAreaTree(ctx context.Context, project string, depth int) (*devops.AreaNode, error) {
	f.record("GetAreaTree")
	if f.GetAreaTreeFunc != nil {
		return f.GetAreaTreeFunc(ctx, project, depth)
	}
	return nil, nil
}

func (f *Fake) GetTeamAreaPaths(ctx context.Context, project, team string) ([]devops.TeamAreaPath, error) {
	f.record("GetTeamAreaPaths")
	if f.GetTeamAreaPathsFunc != nil {
		return f.GetTeamAreaPathsFunc(ctx, project, team)
	}
	return nil, nil
}

func (f *Fake) GetTeamIterations(ctx context.Context, project, team string) ([]devops.Iteration, error) {
	f.record("GetTeamIterations")
	if f.GetTeamIterationsFunc != nil {
		return f.GetTeamIterationsFunc(ctx, project, team)
	}
	return nil, nil
}

func (f *Fake) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, path, query)
	}
	return nil, &devops.APIError{StatusCode: 404, Endpoint: path}
}
