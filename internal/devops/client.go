package devops

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Client is the narrow gateway the discovery engine uses to talk to Azure DevOps.
type Client interface {
	ListProjects(ctx context.Context) ([]ProjectInfo, error)
	ListTeams(ctx context.Context, project string) ([]TeamInfo, error)
	GetWorkItemTypes(ctx context.Context, project string) ([]WorkItemTypeInfo, error)
	GetWorkItemTypeFields(ctx context.Context, project, workItemType string) ([]TypeFieldInfo, error)
	ListFields(ctx context.Context, project string) ([]FieldInfo, error)
	GetWorkItem(ctx context.Context, id int) (*WorkItem, error)
	GetWorkItems(ctx context.Context, ids []int, fields []string) ([]WorkItem, error)
	ExecuteQuery(ctx context.Context, project, wiql string, top int) ([]int, error)
	GetFieldAllowedValues(ctx context.Context, project, workItemType, field string) ([]string, error)
	GetPicklist(ctx context.Context, id uuid.UUID) (*Picklist, error)
	GetAreaTree(ctx context.Context, project string, depth int) (*AreaNode, error)
	GetTeamAreaPaths(ctx context.Context, project, team string) ([]TeamAreaPath, error)
	GetTeamIterations(ctx context.Context, project, team string) ([]Iteration, error)

	// Get is a passthrough for endpoints not modelled above. The path is
	// relative to the organization URL.
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Config holds the connection settings for an Azure DevOps organization.
type Config struct {
	Organization    string
	OrganizationURL string
	Token           string
	DefaultProject  string

	// Per-call timeout. Gateway calls are never retried.
	Timeout  time.Duration
	CacheTTL time.Duration
}

// MaxBatchSize is the largest id list accepted by the batch work item endpoint.
const MaxBatchSize = 200

// NewClient creates a new gateway client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewServicesClient(cfg)
}
