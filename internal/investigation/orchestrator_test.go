package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ado-mcp/internal/backup"
	"ado-mcp/internal/devops"
	"ado-mcp/internal/devops/devopstest"
	"ado-mcp/internal/eventlog"
	"ado-mcp/internal/schema"
	"ado-mcp/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	squadList = uuid.MustParse("6f1c2b0e-8d5a-4f43-9a53-2f1f4a8f1d01")
	fixedNow  = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
)

// fabrikam is a project with two enabled types sharing a picklist field.
func fabrikam() *devopstest.Fake {
	return &devopstest.Fake{
		ListProjectsFunc: func(ctx context.Context) ([]devops.ProjectInfo, error) {
			return []devops.ProjectInfo{{ID: "p1", Name: "Fabrikam", State: "wellFormed"}}, nil
		},
		ListTeamsFunc: func(ctx context.Context, project string) ([]devops.TeamInfo, error) {
			return []devops.TeamInfo{{ID: "t1", Name: "Web-Frontend"}, {ID: "t2", Name: "Web-Backend"}, {ID: "t3", Name: "QA"}}, nil
		},
		GetAreaTreeFunc: func(ctx context.Context, project string, depth int) (*devops.AreaNode, error) {
			return &devops.AreaNode{Name: "Fabrikam", Path: "Fabrikam", Children: []devops.AreaNode{{Name: "Web", Path: "Fabrikam\\Web"}}}, nil
		},
		GetWorkItemTypesFunc: func(ctx context.Context, project string) ([]devops.WorkItemTypeInfo, error) {
			return []devops.WorkItemTypeInfo{
				{Name: "Bug", Color: "CC293D", States: []devops.StateInfo{{Name: "New", Category: "Proposed"}}},
				{Name: "User Story"},
				{Name: "Retired", IsDisabled: true},
			}, nil
		},
		GetWorkItemTypeFieldsFunc: func(ctx context.Context, project, workItemType string) ([]devops.TypeFieldInfo, error) {
			fields := []devops.TypeFieldInfo{
				{ReferenceName: "System.Title", Name: "Title", Required: true},
				{ReferenceName: "Custom.Squad", Name: "Squad"},
			}
			if workItemType == "Bug" {
				fields = append(fields, devops.TypeFieldInfo{ReferenceName: "Microsoft.VSTS.Common.Priority", Name: "Priority", AllowedValues: []string{"1", "2", "3", "4"}})
			} else {
				fields = append(fields, devops.TypeFieldInfo{ReferenceName: "Custom.Release", Name: "Release Train"})
			}
			return fields, nil
		},
		ListFieldsFunc: func(ctx context.Context, project string) ([]devops.FieldInfo, error) {
			id := squadList
			return []devops.FieldInfo{
				{ReferenceName: "System.Title", Name: "Title", Type: "string"},
				{ReferenceName: "Custom.Squad", Name: "Squad", Type: "picklistString", IsPicklist: true, PicklistID: &id},
				{ReferenceName: "Microsoft.VSTS.Common.Priority", Name: "Priority", Type: "integer"},
				{ReferenceName: "Custom.Release", Name: "Release Train", Type: "string"},
			}, nil
		},
		GetPicklistFunc: func(ctx context.Context, id uuid.UUID) (*devops.Picklist, error) {
			if id != squadList {
				return nil, errors.New("unknown list")
			}
			return &devops.Picklist{ID: id.String(), Items: devops.PicklistItems{"Alpha", "Beta"}}, nil
		},
	}
}

type fixture struct {
	dir     string
	docs    *store.Set
	journal *eventlog.Journal
	orch    *Orchestrator
}

func newFixture(t *testing.T, client devops.Client) *fixture {
	t.Helper()
	dir := t.TempDir()
	docs, err := store.OpenSet(dir, "", "")
	require.NoError(t, err)
	journal := eventlog.NewJournal(filepath.Join(dir, eventlog.DefaultJournalFile))
	orch := New(client, docs, backup.NewManagerWithClock(func() time.Time { return fixedNow }), journal, Options{
		Organization: "contoso",
		Now:          func() time.Time { return fixedNow },
	})
	return &fixture{dir: dir, docs: docs, journal: journal, orch: orch}
}

func (f *fixture) readOrganization(t *testing.T) schema.DiscoveredOrganization {
	t.Helper()
	data, err := os.ReadFile(f.docs.Organization.Path())
	require.NoError(t, err)
	var org schema.DiscoveredOrganization
	require.NoError(t, json.Unmarshal(data, &org))
	return org
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestInvestigate_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"unknown kind", Request{Kind: "everything", Project: "Fabrikam"}, "kind"},
		{"empty kind", Request{Project: "Fabrikam"}, "kind"},
		{"missing project", Request{Kind: "custom-fields"}, "project"},
		{"blank project", Request{Kind: "custom-fields", Project: "   "}, "project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := fabrikam()
			f := newFixture(t, client)

			req := tt.req
			req.BackupFirst = true
			res, err := f.orch.Investigate(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, res)

			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, tt.field, reqErr.Field)

			assert.False(t, f.docs.Organization.Exists(), "no document may be written")
			_, statErr := os.Stat(f.journal.Path())
			assert.True(t, os.IsNotExist(statErr), "no journal may be written")
			assert.Zero(t, client.Calls("ListProjects")+client.Calls("GetWorkItemTypes"))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" Full-Configuration ")
	assert.True(t, ok)
	assert.Equal(t, KindFullConfiguration, k)

	_, ok = ParseKind("fields")
	assert.False(t, ok)
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, []string{"workitem-types", "custom-fields", "picklist-values", "full-configuration"}, KindNames())
	assert.Equal(t, "workitem-types, custom-fields, picklist-values, full-configuration", KindList())

	_, err := New(fabrikam(), nil, nil, nil, Options{}).Investigate(context.Background(), Request{Kind: "all", Project: "Fabrikam"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), KindList())
}

func TestInvestigate_FullConfiguration(t *testing.T) {
	client := fabrikam()
	f := newFixture(t, client)

	writeFile(t, f.docs.Organization.Path(), `{"organization":{"name":"contoso"},"projects":[],"workItemTypes":{},"customFields":{}}`)
	writeFile(t, f.docs.FieldMappings.Path(), `fieldMappings:
  squad:
    azureFieldName: Custom.Squad
    type: string
    required: false
    allowedValues: "@DYNAMIC_FROM_SOURCE"
    status: needs investigation
  priority:
    azureFieldName: Microsoft.VSTS.Common.Priority
    type: integer
    required: false
    allowedValues: []
    status: unknown values
`)

	res, err := f.orch.Investigate(context.Background(), Request{
		Kind:        "full-configuration",
		Project:     "Fabrikam",
		BackupFirst: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Success)
	assert.Equal(t, StatusCompleted, res.Status(), "warnings: %v", res.Warnings)

	// Backups of both pre-existing files
	require.Len(t, res.Backups, 2)
	for _, rec := range res.Backups {
		assert.True(t, rec.Success, rec.Error)
		assert.True(t, strings.HasSuffix(rec.BackupPath, ".backup_20260314_093000"), rec.BackupPath)
		_, statErr := os.Stat(rec.BackupPath)
		assert.NoError(t, statErr)
	}

	// Custom.Squad resolved once through the organization list, for both types
	assert.Equal(t, 2, res.ResolvedFields)
	assert.Len(t, res.Transitions, 2)
	for _, tr := range res.Transitions {
		assert.Equal(t, "Custom.Squad", tr.ReferenceName)
		assert.Equal(t, schema.StatusNeedsInvestigation, tr.From)
		assert.Equal(t, schema.StatusFunctional, tr.To)
		assert.Equal(t, "organization-list", tr.Strategy)
	}
	assert.Equal(t, 1, client.Calls("GetPicklist"))
	assert.Zero(t, res.UnresolvedFields)

	org := f.readOrganization(t)
	assert.Equal(t, "contoso", org.Organization.Name)
	require.Len(t, org.Projects, 1)
	assert.Len(t, org.Projects[0].Teams, 3)
	require.NotNil(t, org.Projects[0].AreaStructure)
	assert.Equal(t, "Fabrikam\\Web", org.Projects[0].AreaStructure.Children[0].Path)

	assert.ElementsMatch(t, []string{"Bug", "User Story"}, org.TypeNames())
	bug := org.WorkItemTypes["Bug"]
	require.NotNil(t, bug)
	assert.Equal(t, "CC293D", bug.Color)
	require.NotNil(t, bug.Field("Custom.Squad"))
	assert.Equal(t, []string{"Alpha", "Beta"}, bug.Field("Custom.Squad").AllowedValues)
	assert.Equal(t, schema.StatusFunctional, bug.Field("Microsoft.VSTS.Common.Priority").Status)

	squad := org.CustomFields["Custom.Squad"]
	require.NotNil(t, squad)
	assert.True(t, squad.IsPicklist)
	assert.Equal(t, schema.StatusFunctional, squad.Status)
	assert.Equal(t, []string{"Bug", "User Story"}, squad.UsedBy)

	require.NotNil(t, org.Metadata.LastInvestigation)
	assert.Equal(t, res.RunID, org.Metadata.LastInvestigation.RunID)
	assert.Equal(t, 2, org.Metadata.Statistics.WorkItemTypes)
	assert.Equal(t, 3, org.Metadata.Statistics.Teams)

	// Field mappings: dynamic marker kept, new custom field registered
	mappings := f.docs.FieldMappings.Reload()
	require.Contains(t, mappings.FieldMappings, "squad")
	assert.True(t, mappings.FieldMappings["squad"].AllowedValues.Dynamic)
	assert.Equal(t, schema.StatusFunctional, mappings.FieldMappings["squad"].Status)
	require.Contains(t, mappings.FieldMappings, "releaseTrain")
	assert.Equal(t, "Custom.Release", mappings.FieldMappings["releaseTrain"].AzureFieldName)
	assert.False(t, mappings.FieldMappings["releaseTrain"].AllowedValues.Dynamic)

	// Journal
	require.NoError(t, f.journal.Load())
	runs := f.journal.Runs(10)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Outcome)
	assert.Equal(t, 2, runs[0].Transitions)
	assert.Equal(t, 2, runs[0].Backups)

	assert.Contains(t, res.Report, "Resolved fields: 2")
	assert.Contains(t, res.Report, "no relations found")
}

func TestInvestigate_BackupSkipsMissingFiles(t *testing.T) {
	f := newFixture(t, fabrikam())

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "workitem-types", Project: "Fabrikam", BackupFirst: true})
	require.NoError(t, err)

	require.Len(t, res.Backups, 2)
	for _, rec := range res.Backups {
		assert.False(t, rec.Success)
		assert.Equal(t, backup.MsgSourceMissing, rec.Error)
	}
	assert.Empty(t, res.Warnings)
}

func TestInvestigate_NeverDowngradesFunctionalFields(t *testing.T) {
	client := fabrikam()
	client.GetPicklistFunc = nil
	f := newFixture(t, client)

	writeFile(t, f.docs.Organization.Path(), `{
  "organization": {"name": "contoso"},
  "projects": [],
  "workItemTypes": {
    "Bug": {"name": "Bug", "disabled": false, "states": [], "fields": [
      {"referenceName": "Custom.Squad", "name": "Squad", "type": "picklistString", "required": false,
       "status": "functional", "allowedValues": ["Legacy"]}
    ]},
    "User Story": {"name": "User Story", "disabled": false, "states": [], "fields": []}
  },
  "customFields": {}
}`)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "custom-fields", Project: "Fabrikam"})
	require.NoError(t, err)

	org := f.readOrganization(t)
	squad := org.WorkItemTypes["Bug"].Field("Custom.Squad")
	require.NotNil(t, squad)
	assert.Equal(t, schema.StatusFunctional, squad.Status)
	assert.Equal(t, []string{"Legacy"}, squad.AllowedValues)

	// User Story's copy of the field had no prior state and stays unresolved
	story := org.WorkItemTypes["User Story"].Field("Custom.Squad")
	require.NotNil(t, story)
	assert.Equal(t, schema.StatusNeedsInvestigation, story.Status)
	assert.Empty(t, story.AllowedValues)

	assert.Equal(t, 0, res.ResolvedFields)
	assert.Equal(t, 1, res.UnresolvedFields)
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "User Story", res.Unresolved[0].WorkItemType)
}

func TestInvestigate_WorkItemTypesReplacesList(t *testing.T) {
	client := fabrikam()
	f := newFixture(t, client)

	writeFile(t, f.docs.Organization.Path(), `{
  "organization": {"name": "contoso"},
  "projects": [],
  "workItemTypes": {
    "Bug": {"name": "Bug", "disabled": false, "states": [], "fields": [
      {"referenceName": "System.Title", "name": "Title", "type": "string", "required": true, "status": "functional", "allowedValues": []}
    ]},
    "Epic": {"name": "Epic", "disabled": false, "states": [], "fields": []}
  },
  "customFields": {}
}`)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "workitem-types", Project: "Fabrikam"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	org := f.readOrganization(t)
	assert.Equal(t, []string{"Bug", "User Story"}, org.TypeNames())
	assert.Len(t, org.WorkItemTypes["Bug"].Fields, 1, "surviving types keep their fields")
	assert.Empty(t, org.WorkItemTypes["User Story"].Fields)
	assert.Zero(t, client.Calls("GetWorkItemTypeFields"))
	assert.False(t, f.docs.FieldMappings.Exists(), "mappings untouched by a type enumeration")
}

func TestInvestigate_UnknownTypesKeepsPreviousList(t *testing.T) {
	client := &devopstest.Fake{}
	f := newFixture(t, client)

	writeFile(t, f.docs.Organization.Path(), `{"organization":{"name":"contoso"},"projects":[],"customFields":{},
  "workItemTypes":{"Epic":{"name":"Epic","disabled":false,"states":[],"fields":[]}}}`)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "workitem-types", Project: "Fabrikam"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompletedWithWarnings, res.Status())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "could not determine")
	org := f.readOrganization(t)
	assert.Equal(t, []string{"Epic"}, org.TypeNames())
}

func TestInvestigate_GenerateFailureBecomesWarning(t *testing.T) {
	client := fabrikam()
	client.ListProjectsFunc = func(ctx context.Context) ([]devops.ProjectInfo, error) {
		panic("transport exploded")
	}
	f := newFixture(t, client)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "full-configuration", Project: "Fabrikam"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, StatusCompletedWithWarnings, res.Status())
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "transport exploded")

	// Later steps still ran
	assert.Equal(t, 2, res.ResolvedFields)
	assert.Contains(t, res.Report, "completed with warnings")
}

func TestInvestigate_PersistFailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	docs, err := store.OpenSet(dir, filepath.Join(blocker, "org.json"), "")
	require.NoError(t, err)
	orch := New(fabrikam(), docs, backup.NewManager(), nil, Options{Now: func() time.Time { return fixedNow }})

	res, err := orch.Investigate(context.Background(), Request{Kind: "workitem-types", Project: "Fabrikam"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, StatusFailed, res.Status())
	assert.Contains(t, res.Report, "Status: failed")
}

func TestInvestigate_IncludeDocument(t *testing.T) {
	f := newFixture(t, fabrikam())

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "custom-fields", Project: "Fabrikam", IncludeDocument: true})
	require.NoError(t, err)
	require.NotNil(t, res.Document)
	assert.Contains(t, res.Document.CustomFields, "Custom.Squad")
	assert.Contains(t, res.Document.CustomFields, "Custom.Release")
	assert.NotContains(t, res.Document.CustomFields, "System.Title")
}

func TestInvestigate_ConcurrentRunsSerialise(t *testing.T) {
	dir := t.TempDir()
	var g errgroup.Group
	runIDs := make([]string, 4)

	for i := range runIDs {
		g.Go(func() error {
			// Separate sets over the same files share the path locks.
			docs, err := store.OpenSet(dir, "", "")
			if err != nil {
				return err
			}
			orch := New(fabrikam(), docs, backup.NewManager(), nil, Options{})
			res, err := orch.Investigate(context.Background(), Request{Kind: "custom-fields", Project: "Fabrikam"})
			if err != nil {
				return err
			}
			runIDs[i] = res.RunID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	docs, err := store.OpenSet(dir, "", "")
	require.NoError(t, err)
	org := docs.Organization.Reload()
	require.NotNil(t, org.Metadata.LastInvestigation)
	assert.Contains(t, runIDs, org.Metadata.LastInvestigation.RunID)
	assert.Len(t, org.CustomFields, 2)

	mappings := docs.FieldMappings.Reload()
	assert.Len(t, mappings.FieldMappings, 2, "mappings registered exactly once")
}

func TestInvestigate_PersistsRunWhenCacheDroppedMidRun(t *testing.T) {
	client := fabrikam()
	var f *fixture
	fields := client.GetWorkItemTypeFieldsFunc
	client.GetWorkItemTypeFieldsFunc = func(ctx context.Context, project, workItemType string) ([]devops.TypeFieldInfo, error) {
		// A configuration reload from another caller drops the cached copies.
		f.docs.Organization.Invalidate()
		f.docs.FieldMappings.Invalidate()
		return fields(ctx, project, workItemType)
	}
	f = newFixture(t, client)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "full-configuration", Project: "Fabrikam"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	org := f.readOrganization(t)
	assert.Len(t, org.Projects, 1)
	assert.ElementsMatch(t, []string{"Bug", "User Story"}, org.TypeNames())
	assert.Contains(t, org.CustomFields, "Custom.Squad")
	assert.Contains(t, org.CustomFields, "Custom.Release")
	require.NotNil(t, org.Metadata.LastInvestigation)
	assert.Equal(t, res.RunID, org.Metadata.LastInvestigation.RunID)

	mappings := f.docs.FieldMappings.Reload()
	assert.Contains(t, mappings.FieldMappings, "squad")
	assert.Contains(t, mappings.FieldMappings, "releaseTrain")
}

func TestInvestigate_FieldValuesResolvedPerType(t *testing.T) {
	client := fabrikam()
	fields := client.GetWorkItemTypeFieldsFunc
	client.GetWorkItemTypeFieldsFunc = func(ctx context.Context, project, workItemType string) ([]devops.TypeFieldInfo, error) {
		out, err := fields(ctx, project, workItemType)
		return append(out, devops.TypeFieldInfo{ReferenceName: "Custom.Env", Name: "Environment"}), err
	}
	catalogue := client.ListFieldsFunc
	client.ListFieldsFunc = func(ctx context.Context, project string) ([]devops.FieldInfo, error) {
		out, err := catalogue(ctx, project)
		return append(out, devops.FieldInfo{ReferenceName: "Custom.Env", Name: "Environment", Type: "picklistString", IsPicklist: true}), err
	}
	var asked []string
	client.GetFieldAllowedValuesFunc = func(ctx context.Context, project, workItemType, field string) ([]string, error) {
		if field != "Custom.Env" {
			return nil, nil
		}
		asked = append(asked, workItemType)
		if workItemType == "User Story" {
			return []string{"Dev", "Prod"}, nil
		}
		return nil, nil
	}
	f := newFixture(t, client)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "custom-fields", Project: "Fabrikam"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bug", "User Story"}, asked, "a failure on one type must not stand in for another")

	org := f.readOrganization(t)
	story := org.WorkItemTypes["User Story"].Field("Custom.Env")
	require.NotNil(t, story)
	assert.Equal(t, schema.StatusFunctional, story.Status)
	assert.Equal(t, []string{"Dev", "Prod"}, story.AllowedValues)

	bug := org.WorkItemTypes["Bug"].Field("Custom.Env")
	require.NotNil(t, bug)
	assert.Equal(t, schema.StatusNeedsInvestigation, bug.Status)

	// The shared list behind Custom.Squad is still read once for both types
	assert.Equal(t, 1, client.Calls("GetPicklist"))
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "Bug", res.Unresolved[0].WorkItemType)
}

func TestInvestigate_TeamAndIterationScopeTheRun(t *testing.T) {
	client := fabrikam()
	client.GetTeamAreaPathsFunc = func(ctx context.Context, project, team string) ([]devops.TeamAreaPath, error) {
		if team != "Web-Frontend" {
			return nil, errors.New("unknown team")
		}
		return []devops.TeamAreaPath{{Path: "Fabrikam\\Web", IncludeChildren: true}}, nil
	}
	var queries []string
	client.ExecuteQueryFunc = func(ctx context.Context, project, wiql string, top int) ([]int, error) {
		queries = append(queries, wiql)
		return nil, nil
	}
	f := newFixture(t, client)

	res, err := f.orch.Investigate(context.Background(), Request{
		Kind:          "full-configuration",
		Project:       "Fabrikam",
		Team:          "Web-Frontend",
		IterationPath: "Fabrikam\\Sprint 12",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status(), "warnings: %v", res.Warnings)

	require.Len(t, queries, 2, "hierarchy sample and team context")
	for _, q := range queries {
		assert.Contains(t, q, `[System.AreaPath] UNDER 'Fabrikam\Web'`)
	}
	assert.Contains(t, queries[1], `[System.IterationPath] UNDER 'Fabrikam\Sprint 12'`)
	assert.Equal(t, 2, client.Calls("GetTeamAreaPaths"))

	assert.Contains(t, res.TeamContext, "team Web-Frontend")
	assert.Contains(t, res.TeamContext, "iteration Fabrikam\\Sprint 12")
	assert.Contains(t, res.Report, "## Team context")
}

func TestInvestigate_TeamWithoutAreasSamplesWholeProject(t *testing.T) {
	client := fabrikam()
	var queries []string
	client.ExecuteQueryFunc = func(ctx context.Context, project, wiql string, top int) ([]int, error) {
		queries = append(queries, wiql)
		return nil, nil
	}
	f := newFixture(t, client)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "full-configuration", Project: "Fabrikam", Team: "QA"})
	require.NoError(t, err)

	require.NotEmpty(t, queries)
	assert.NotContains(t, queries[0], "System.AreaPath")
	assert.Contains(t, strings.Join(res.Steps, "\n"), "team QA owns no area paths")
}

func TestInvestigate_FixedMappingValuesSurviveEmptyDefinition(t *testing.T) {
	client := fabrikam()
	f := newFixture(t, client)

	writeFile(t, f.docs.Organization.Path(), `{
  "organization": {"name": "contoso"},
  "projects": [],
  "workItemTypes": {
    "Bug": {"name": "Bug", "disabled": false, "states": [], "fields": []},
    "User Story": {"name": "User Story", "disabled": false, "states": [], "fields": [
      {"referenceName": "Custom.Release", "name": "Release Train", "type": "string", "required": false,
       "status": "unknown values", "allowedValues": []}
    ]}
  },
  "customFields": {}
}`)
	writeFile(t, f.docs.FieldMappings.Path(), `fieldMappings:
  releaseTrain:
    azureFieldName: Custom.Release
    type: string
    required: false
    allowedValues: [R1, R2]
    status: unknown values
`)

	res, err := f.orch.Investigate(context.Background(), Request{Kind: "custom-fields", Project: "Fabrikam"})
	require.NoError(t, err)

	var fromAnalysis bool
	for _, tr := range res.Transitions {
		if tr.ReferenceName == "Custom.Release" {
			fromAnalysis = tr.Strategy == "field-analysis"
		}
	}
	require.True(t, fromAnalysis, "Custom.Release should turn functional during field analysis")

	mappings := f.docs.FieldMappings.Reload()
	release := mappings.FieldMappings["releaseTrain"]
	require.NotNil(t, release)
	assert.False(t, release.AllowedValues.Dynamic)
	assert.Equal(t, []string{"R1", "R2"}, release.AllowedValues.Values)
	assert.Equal(t, schema.StatusFunctional, release.Status)
}
