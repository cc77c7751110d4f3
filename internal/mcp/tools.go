package mcp

import (
	"fmt"

	"ado-mcp/internal/investigation"
	"ado-mcp/internal/stats"

	"github.com/google/jsonschema-go/jsonschema"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Document names accepted by the configuration tools.
const (
	DocumentOrganization  = "organization"
	DocumentFieldMappings = "field_mappings"
)

var documentNames = []string{DocumentOrganization, DocumentFieldMappings}

type investigateInput struct {
	Kind            string `json:"kind" jsonschema:"the investigation to run"`
	Project         string `json:"project,omitempty" jsonschema:"team project name; defaults to AZURE_DEVOPS_PROJECT"`
	Team            string `json:"team,omitempty" jsonschema:"optional team name"`
	AreaPath        string `json:"area_path,omitempty" jsonschema:"optional area path scoping the hierarchy sample"`
	IterationPath   string `json:"iteration_path,omitempty" jsonschema:"optional iteration path"`
	BackupFirst     bool   `json:"backup_first,omitempty" jsonschema:"back up the configuration documents before changing them"`
	IncludeDocument bool   `json:"include_document,omitempty" jsonschema:"attach the merged organization document to the response"`
}

type resolvePicklistInput struct {
	Project      string `json:"project" jsonschema:"team project name"`
	Field        string `json:"field" jsonschema:"field reference name, e.g. Custom.Squad"`
	WorkItemType string `json:"work_item_type,omitempty" jsonschema:"work item type the field belongs to"`
	PicklistID   string `json:"picklist_id,omitempty" jsonschema:"picklist UUID; looked up in the discovered configuration when omitted"`
}

type listTypesInput struct {
	Project string `json:"project" jsonschema:"team project name"`
}

type hierarchyInput struct {
	Project    string `json:"project" jsonschema:"team project name"`
	SampleSize int    `json:"sample_size,omitempty" jsonschema:"number of recently changed work items to sample (max 50)"`
	AreaPath   string `json:"area_path,omitempty" jsonschema:"optional area path; only items UNDER it are sampled"`
}

type teamContextInput struct {
	Analysis      string `json:"analysis" jsonschema:"the analysis to run"`
	Project       string `json:"project" jsonschema:"team project name"`
	Team          string `json:"team,omitempty" jsonschema:"team whose area paths scope the analysis when area_path is empty"`
	AreaPath      string `json:"area_path,omitempty" jsonschema:"explicit area path"`
	IterationPath string `json:"iteration_path,omitempty" jsonschema:"iteration path filter"`
}

type configurationInput struct {
	Document string `json:"document" jsonschema:"which configuration document to read"`
	Reload   bool   `json:"reload,omitempty" jsonschema:"re-read the file from disk instead of the cached copy"`
}

type documentInput struct {
	Document string `json:"document" jsonschema:"which configuration document"`
}

type historyInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"return the events of this run"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of runs to list (default 20)"`
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name: "investigate_configuration",
		Description: "Investigate the organization and merge the findings into the discovered configuration. " +
			"'workitem-types' re-enumerates enabled types, 'custom-fields' analyzes fields and resolves custom picklists, " +
			"'picklist-values' resolves every field still lacking values, 'full-configuration' runs everything including " +
			"projects, teams and hierarchy. Fields already FUNCTIONAL are never downgraded.",
		InputSchema: inputSchema[investigateInput](map[string][]string{"kind": investigation.KindNames()}),
	}, s.handleInvestigate)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_picklist_values",
		Description: "Resolve the allowed values of a field by trying the organization list, the project list, the field's allowed values and, when enabled, sampled work items. Read-only.",
	}, s.handleResolvePicklist)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_enabled_work_item_types",
		Description: "List the enabled work item types of a project and report which API path produced the list.",
	}, s.handleListTypes)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "analyze_work_item_hierarchy",
		Description: "Infer parent to child work item type relations from recently changed items. Read-only; relations are not persisted.",
	}, s.handleHierarchy)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "analyze_team_context",
		Description: "Descriptive statistics for a team or area: type distribution, recent activity, velocity, custom field usage, workflow states or hierarchy.",
		InputSchema: inputSchema[teamContextInput](map[string][]string{"analysis": stats.Analyses}),
	}, s.handleTeamContext)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_discovered_configuration",
		Description: "Return the persisted organization document or the field mapping document.",
		InputSchema: inputSchema[configurationInput](map[string][]string{"document": documentNames}),
	}, s.handleGetConfiguration)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_configuration_backups",
		Description: "List the backups of a configuration document, newest first.",
		InputSchema: inputSchema[documentInput](map[string][]string{"document": documentNames}),
	}, s.handleListBackups)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "restore_configuration_backup",
		Description: "Restore a configuration document from its most recent backup.",
		InputSchema: inputSchema[documentInput](map[string][]string{"document": documentNames}),
	}, s.handleRestoreBackup)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_investigation_history",
		Description: "List recent investigation runs, or the events of one run.",
	}, s.handleHistory)
}

// inputSchema infers the schema of T and restricts the named properties to
// the given values.
func inputSchema[T any](enums map[string][]string) *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("input schema for %T: %v", *new(T), err))
	}
	for name, values := range enums {
		prop, ok := schema.Properties[name]
		if !ok {
			panic(fmt.Sprintf("input schema for %T has no property %q", *new(T), name))
		}
		prop.Enum = make([]any, len(values))
		for i, v := range values {
			prop.Enum[i] = v
		}
	}
	return schema
}
