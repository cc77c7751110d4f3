package devops

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/core"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/work"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/workitemtracking"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/workitemtrackingprocess"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 5 * time.Minute
)

// servicesClient talks to Azure DevOps Services through the official SDK.
// Area clients are created lazily because creating them performs a resource
// area lookup against the organization.
type servicesClient struct {
	cfg   Config
	conn  *azuredevops.Connection
	raw   *passthrough
	cache *metadataCache

	mu         sync.Mutex
	coreClient core.Client
	witClient  workitemtracking.Client
	procClient workitemtrackingprocess.Client
	workClient work.Client
}

// NewServicesClient builds a Client backed by the Azure DevOps SDK.
func NewServicesClient(cfg Config) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &servicesClient{
		cfg:   cfg,
		conn:  azuredevops.NewPatConnection(cfg.OrganizationURL, cfg.Token),
		raw:   newPassthrough(cfg),
		cache: newMetadataCache(),
	}
}

func (c *servicesClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func (c *servicesClient) core(ctx context.Context) (core.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.coreClient == nil {
		cl, err := core.NewClient(ctx, c.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to create core client: %w", err)
		}
		c.coreClient = cl
	}
	return c.coreClient, nil
}

func (c *servicesClient) wit(ctx context.Context) (workitemtracking.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.witClient == nil {
		cl, err := workitemtracking.NewClient(ctx, c.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to create work item tracking client: %w", err)
		}
		c.witClient = cl
	}
	return c.witClient, nil
}

func (c *servicesClient) process(ctx context.Context) (workitemtrackingprocess.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.procClient == nil {
		cl, err := workitemtrackingprocess.NewClient(ctx, c.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to create process client: %w", err)
		}
		c.procClient = cl
	}
	return c.procClient, nil
}

func (c *servicesClient) work(ctx context.Context) (work.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workClient == nil {
		cl, err := work.NewClient(ctx, c.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to create work client: %w", err)
		}
		c.workClient = cl
	}
	return c.workClient, nil
}

func (c *servicesClient) ListProjects(ctx context.Context) ([]ProjectInfo, error) {
	return cached(c.cache, "projects", c.cfg.CacheTTL, func() ([]ProjectInfo, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		cl, err := c.core(ctx)
		if err != nil {
			return nil, err
		}

		var projects []ProjectInfo
		args := core.GetProjectsArgs{}
		for {
			resp, err := cl.GetProjects(ctx, args)
			if err != nil {
				return nil, fmt.Errorf("failed to list projects: %w", err)
			}
			if resp == nil {
				break
			}
			for _, p := range resp.Value {
				projects = append(projects, mapProject(p))
			}
			if resp.ContinuationToken == "" {
				break
			}
			token, err := strconv.Atoi(resp.ContinuationToken)
			if err != nil {
				log.Warn().Str("token", resp.ContinuationToken).Msg("Unparseable project continuation token, stopping pagination")
				break
			}
			args = core.GetProjectsArgs{ContinuationToken: &token}
		}

		log.Debug().Int("count", len(projects)).Msg("Projects listed")
		return projects, nil
	})
}

func (c *servicesClient) ListTeams(ctx context.Context, project string) ([]TeamInfo, error) {
	return cached(c.cache, "teams:"+project, c.cfg.CacheTTL, func() ([]TeamInfo, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		cl, err := c.core(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := cl.GetTeams(ctx, core.GetTeamsArgs{ProjectId: &project})
		if err != nil {
			return nil, fmt.Errorf("failed to list teams for %s: %w", project, err)
		}

		var teams []TeamInfo
		if resp != nil {
			for _, t := range *resp {
				teams = append(teams, mapTeam(t))
			}
		}
		return teams, nil
	})
}

func (c *servicesClient) GetWorkItemTypes(ctx context.Context, project string) ([]WorkItemTypeInfo, error) {
	return cached(c.cache, "types:"+project, c.cfg.CacheTTL, func() ([]WorkItemTypeInfo, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		cl, err := c.wit(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := cl.GetWorkItemTypes(ctx, workitemtracking.GetWorkItemTypesArgs{Project: &project})
		if err != nil {
			return nil, fmt.Errorf("failed to get work item types for %s: %w", project, err)
		}

		var types []WorkItemTypeInfo
		if resp != nil {
			for _, t := range *resp {
				types = append(types, mapWorkItemType(t))
			}
		}
		return types, nil
	})
}

func (c *servicesClient) GetWorkItemTypeFields(ctx context.Context, project, workItemType string) ([]TypeFieldInfo, error) {
	key := fmt.Sprintf("type_fields:%s:%s", project, workItemType)
	return cached(c.cache, key, c.cfg.CacheTTL, func() ([]TypeFieldInfo, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		cl, err := c.wit(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := cl.GetWorkItemTypeFieldsWithReferences(ctx, workitemtracking.GetWorkItemTypeFieldsWithReferencesArgs{
			Project: &project,
			Type:    &workItemType,
			Expand:  &workitemtracking.WorkItemTypeFieldsExpandLevelValues.AllowedValues,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get fields of %s in %s: %w", workItemType, project, err)
		}

		var fields []TypeFieldInfo
		if resp != nil {
			for _, f := range *resp {
				fields = append(fields, mapTypeField(f))
			}
		}
		return fields, nil
	})
}

func (c *servicesClient) ListFields(ctx context.Context, project string) ([]FieldInfo, error) {
	return cached(c.cache, "fields:"+project, c.cfg.CacheTTL, func() ([]FieldInfo, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		cl, err := c.wit(ctx)
		if err != nil {
			return nil, err
		}
		args := workitemtracking.GetWorkItemFieldsArgs{}
		if project != "" {
			args.Project = &project
		}
		resp, err := cl.GetWorkItemFields(ctx, args)
		if err != nil {
			return nil, fmt.Errorf("failed to list fields: %w", err)
		}

		var fields []FieldInfo
		if resp != nil {
			for _, f := range *resp {
				fields = append(fields, mapField2(f))
			}
		}
		return fields, nil
	})
}

func (c *servicesClient) GetWorkItem(ctx context.Context, id int) (*WorkItem, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cl, err := c.wit(ctx)
	if err != nil {
		return nil, err
	}
	wi, err := cl.GetWorkItem(ctx, workitemtracking.GetWorkItemArgs{Id: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to get work item %d: %w", id, err)
	}
	if wi == nil {
		return nil, fmt.Errorf("work item %d not found", id)
	}
	item := mapWorkItem(*wi)
	return &item, nil
}

func (c *servicesClient) GetWorkItems(ctx context.Context, ids []int, fields []string) ([]WorkItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cl, err := c.wit(ctx)
	if err != nil {
		return nil, err
	}

	var items []WorkItem
	for start := 0; start < len(ids); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(ids))
		batch := ids[start:end]

		args := workitemtracking.GetWorkItemsArgs{
			Ids:         &batch,
			ErrorPolicy: &workitemtracking.WorkItemErrorPolicyValues.Omit,
		}
		if len(fields) > 0 {
			args.Fields = &fields
		}

		callCtx, cancel := c.withTimeout(ctx)
		resp, err := cl.GetWorkItems(callCtx, args)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to get work items batch: %w", err)
		}
		if resp == nil {
			continue
		}
		for _, wi := range *resp {
			if wi.Id == nil {
				continue
			}
			items = append(items, mapWorkItem(wi))
		}
	}
	return items, nil
}

func (c *servicesClient) ExecuteQuery(ctx context.Context, project, wiql string, top int) ([]int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cl, err := c.wit(ctx)
	if err != nil {
		return nil, err
	}

	args := workitemtracking.QueryByWiqlArgs{
		Wiql: &workitemtracking.Wiql{Query: &wiql},
	}
	if project != "" {
		args.Project = &project
	}
	if top > 0 {
		args.Top = &top
	}

	log.Debug().Str("project", project).Str("wiql", wiql).Int("top", top).Msg("Executing WIQL")
	resp, err := cl.QueryByWiql(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	var ids []int
	if resp != nil && resp.WorkItems != nil {
		for _, ref := range *resp.WorkItems {
			if ref.Id != nil {
				ids = append(ids, *ref.Id)
			}
		}
	}
	return ids, nil
}

func (c *servicesClient) GetFieldAllowedValues(ctx context.Context, project, workItemType, field string) ([]string, error) {
	types := []string{workItemType}
	if workItemType == "" {
		all, err := c.GetWorkItemTypes(ctx, project)
		if err != nil {
			return nil, err
		}
		types = types[:0]
		for _, t := range all {
			if !t.IsDisabled {
				types = append(types, t.Name)
			}
		}
	}

	cl, err := c.wit(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, t := range types {
		callCtx, cancel := c.withTimeout(ctx)
		resp, err := cl.GetWorkItemTypeFieldWithReferences(callCtx, workitemtracking.GetWorkItemTypeFieldWithReferencesArgs{
			Project: &project,
			Type:    &t,
			Field:   &field,
			Expand:  &workitemtracking.WorkItemTypeFieldsExpandLevelValues.AllowedValues,
		})
		cancel()
		if err != nil {
			// The field is usually absent from most types; keep looking.
			lastErr = err
			continue
		}
		if resp == nil {
			continue
		}
		if values := stringifyAll(resp.AllowedValues); len(values) > 0 {
			return values, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to get allowed values of %s: %w", field, lastErr)
	}
	return nil, nil
}

func (c *servicesClient) GetPicklist(ctx context.Context, id uuid.UUID) (*Picklist, error) {
	return cached(c.cache, "picklist:"+id.String(), c.cfg.CacheTTL, func() (*Picklist, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		cl, err := c.process(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := cl.GetList(ctx, workitemtrackingprocess.GetListArgs{ListId: &id})
		if err != nil {
			return nil, fmt.Errorf("failed to get picklist %s: %w", id, err)
		}
		if resp == nil {
			return nil, fmt.Errorf("picklist %s not found", id)
		}

		pl := &Picklist{
			ID:          id.String(),
			Name:        deref(resp.Name),
			Type:        deref(resp.Type),
			IsSuggested: derefBool(resp.IsSuggested),
		}
		if resp.Items != nil {
			pl.Items = append(PicklistItems(nil), *resp.Items...)
		}
		return pl, nil
	})
}

func (c *servicesClient) GetAreaTree(ctx context.Context, project string, depth int) (*AreaNode, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cl, err := c.wit(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := cl.GetClassificationNode(ctx, workitemtracking.GetClassificationNodeArgs{
		Project:        &project,
		StructureGroup: &workitemtracking.TreeStructureGroupValues.Areas,
		Depth:          &depth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get area tree for %s: %w", project, err)
	}
	if resp == nil {
		return nil, nil
	}
	node := mapAreaNode(*resp)
	return &node, nil
}

func (c *servicesClient) GetTeamAreaPaths(ctx context.Context, project, team string) ([]TeamAreaPath, error) {
	key := fmt.Sprintf("team_areas:%s:%s", project, team)
	return cached(c.cache, key, c.cfg.CacheTTL, func() ([]TeamAreaPath, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		cl, err := c.work(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := cl.GetTeamFieldValues(ctx, work.GetTeamFieldValuesArgs{Project: &project, Team: &team})
		if err != nil {
			return nil, fmt.Errorf("failed to get area paths of team %s: %w", team, err)
		}

		var paths []TeamAreaPath
		if resp != nil && resp.Values != nil {
			for _, v := range *resp.Values {
				paths = append(paths, TeamAreaPath{
					Path:            deref(v.Value),
					IncludeChildren: derefBool(v.IncludeChildren),
				})
			}
		}
		return paths, nil
	})
}

func (c *servicesClient) GetTeamIterations(ctx context.Context, project, team string) ([]Iteration, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cl, err := c.work(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := cl.GetTeamIterations(ctx, work.GetTeamIterationsArgs{Project: &project, Team: &team})
	if err != nil {
		return nil, fmt.Errorf("failed to get iterations of team %s: %w", team, err)
	}

	var iterations []Iteration
	if resp != nil {
		for _, it := range *resp {
			iterations = append(iterations, mapIteration(it))
		}
	}
	return iterations, nil
}

func (c *servicesClient) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.raw.get(ctx, path, query)
}

func mapProject(p core.TeamProjectReference) ProjectInfo {
	info := ProjectInfo{
		Name:        deref(p.Name),
		Description: deref(p.Description),
	}
	if p.Id != nil {
		info.ID = p.Id.String()
	}
	if p.State != nil {
		info.State = string(*p.State)
	}
	if p.Visibility != nil {
		info.Visibility = string(*p.Visibility)
	}
	return info
}

func mapTeam(t core.WebApiTeam) TeamInfo {
	info := TeamInfo{
		Name:        deref(t.Name),
		Description: deref(t.Description),
		ProjectName: deref(t.ProjectName),
	}
	if t.Id != nil {
		info.ID = t.Id.String()
	}
	if t.ProjectId != nil {
		info.ProjectID = t.ProjectId.String()
	}
	return info
}

func mapWorkItemType(t workitemtracking.WorkItemType) WorkItemTypeInfo {
	info := WorkItemTypeInfo{
		Name:          deref(t.Name),
		ReferenceName: deref(t.ReferenceName),
		Description:   deref(t.Description),
		Color:         deref(t.Color),
		IsDisabled:    derefBool(t.IsDisabled),
	}
	if t.Icon != nil {
		info.Icon = deref(t.Icon.Id)
	}
	if t.States != nil {
		for _, s := range *t.States {
			info.States = append(info.States, StateInfo{
				Name:     deref(s.Name),
				Category: deref(s.Category),
				Color:    deref(s.Color),
			})
		}
	}
	if t.FieldInstances != nil {
		for _, f := range *t.FieldInstances {
			field := TypeFieldInfo{
				ReferenceName: deref(f.ReferenceName),
				Name:          deref(f.Name),
				Required:      derefBool(f.AlwaysRequired),
				HelpText:      deref(f.HelpText),
				DefaultValue:  deref(f.DefaultValue),
			}
			if f.AllowedValues != nil {
				field.AllowedValues = append([]string(nil), *f.AllowedValues...)
			}
			info.Fields = append(info.Fields, field)
		}
	}
	return info
}

func mapTypeField(f workitemtracking.WorkItemTypeFieldWithReferences) TypeFieldInfo {
	info := TypeFieldInfo{
		ReferenceName: deref(f.ReferenceName),
		Name:          deref(f.Name),
		Required:      derefBool(f.AlwaysRequired),
		HelpText:      deref(f.HelpText),
		AllowedValues: stringifyAll(f.AllowedValues),
	}
	if f.DefaultValue != nil {
		info.DefaultValue = fmt.Sprintf("%v", f.DefaultValue)
	}
	return info
}

func mapField2(f workitemtracking.WorkItemField2) FieldInfo {
	info := FieldInfo{
		ReferenceName: deref(f.ReferenceName),
		Name:          deref(f.Name),
		Description:   deref(f.Description),
		ReadOnly:      derefBool(f.ReadOnly),
		IsIdentity:    derefBool(f.IsIdentity),
		IsPicklist:    derefBool(f.IsPicklist),
		PicklistID:    f.PicklistId,
	}
	if f.Type != nil {
		info.Type = string(*f.Type)
	}
	return info
}

func mapWorkItem(wi workitemtracking.WorkItem) WorkItem {
	item := WorkItem{Fields: map[string]any{}}
	if wi.Id != nil {
		item.ID = *wi.Id
	}
	if wi.Rev != nil {
		item.Rev = *wi.Rev
	}
	if wi.Fields != nil {
		for k, v := range *wi.Fields {
			item.Fields[k] = v
		}
	}
	return item
}

func mapAreaNode(n workitemtracking.WorkItemClassificationNode) AreaNode {
	node := AreaNode{
		Name: deref(n.Name),
		Path: deref(n.Path),
	}
	if n.Children != nil {
		for _, child := range *n.Children {
			node.Children = append(node.Children, mapAreaNode(child))
		}
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].Name < node.Children[j].Name
		})
	}
	return node
}

func mapIteration(it work.TeamSettingsIteration) Iteration {
	out := Iteration{
		Name: deref(it.Name),
		Path: deref(it.Path),
	}
	if it.Id != nil {
		out.ID = it.Id.String()
	}
	if it.Attributes != nil {
		if it.Attributes.StartDate != nil {
			t := it.Attributes.StartDate.Time
			out.StartDate = &t
		}
		if it.Attributes.FinishDate != nil {
			t := it.Attributes.FinishDate.Time
			out.FinishDate = &t
		}
		if it.Attributes.TimeFrame != nil {
			out.TimeFrame = string(*it.Attributes.TimeFrame)
		}
	}
	return out
}

func stringifyAll(values *[]any) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(*values))
	for _, v := range *values {
		if v == nil {
			continue
		}
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	return b != nil && *b
}
