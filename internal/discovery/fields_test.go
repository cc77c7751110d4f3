package discovery

import (
	"context"
	"errors"
	"testing"

	"ado-mcp/internal/devops"
	"ado-mcp/internal/devops/devopstest"
	"ado-mcp/internal/schema"

	"github.com/google/uuid"
)

func TestFieldAnalyzer_Classification(t *testing.T) {
	plID := uuid.MustParse(picklistID)
	fake := &devopstest.Fake{
		GetWorkItemTypeFieldsFunc: func(ctx context.Context, project, workItemType string) ([]devops.TypeFieldInfo, error) {
			return []devops.TypeFieldInfo{
				{ReferenceName: "Microsoft.VSTS.Common.Priority", Name: "Priority", AllowedValues: []string{"1", "2"}},
				{ReferenceName: "Custom.Region", Name: "Region", Required: true},
				{ReferenceName: "System.Title", Name: "Title"},
				{ReferenceName: "Custom.Orphan", Name: "Orphan"},
			}, nil
		},
		ListFieldsFunc: func(ctx context.Context, project string) ([]devops.FieldInfo, error) {
			return []devops.FieldInfo{
				{ReferenceName: "Microsoft.VSTS.Common.Priority", Type: "integer"},
				{ReferenceName: "Custom.Region", Type: "string", IsPicklist: true, PicklistID: &plID},
				{ReferenceName: "System.Title", Type: "string"},
			}, nil
		},
	}

	defs := NewFieldAnalyzer(fake).Analyze(context.Background(), "P", "Bug")
	if len(defs) != 4 {
		t.Fatalf("got %d definitions", len(defs))
	}

	want := []schema.FieldStatus{
		schema.StatusFunctional,
		schema.StatusNeedsInvestigation,
		schema.StatusFunctional,
		schema.StatusUnknown,
	}
	for i, d := range defs {
		if d.Status != want[i] {
			t.Errorf("%s status = %s, want %s", d.ReferenceName, d.Status, want[i])
		}
		if d.AllowedValues == nil {
			t.Errorf("%s allowedValues must not be nil", d.ReferenceName)
		}
	}
	if defs[1].PicklistID != picklistID || !defs[1].Required {
		t.Errorf("region = %+v", defs[1])
	}
	if defs[0].Type != "integer" || len(defs[0].AllowedValues) != 2 {
		t.Errorf("priority = %+v", defs[0])
	}
}

func TestFieldAnalyzer_CatalogueFailure(t *testing.T) {
	fake := &devopstest.Fake{
		GetWorkItemTypeFieldsFunc: func(ctx context.Context, project, workItemType string) ([]devops.TypeFieldInfo, error) {
			return []devops.TypeFieldInfo{{ReferenceName: "Custom.A"}}, nil
		},
		ListFieldsFunc: func(ctx context.Context, project string) ([]devops.FieldInfo, error) {
			return nil, errors.New("forbidden")
		},
	}
	defs := NewFieldAnalyzer(fake).Analyze(context.Background(), "P", "Bug")
	if len(defs) != 1 || defs[0].Status != schema.StatusUnknown {
		t.Errorf("defs = %+v", defs)
	}
}

func TestIsPicklist_DeclaredType(t *testing.T) {
	if !IsPicklist(devops.FieldInfo{Type: "picklistString"}) {
		t.Error("picklistString should count as a picklist")
	}
	if IsPicklist(devops.FieldInfo{Type: "string"}) {
		t.Error("plain string is not a picklist")
	}
}

func TestIsCustomField(t *testing.T) {
	tests := map[string]bool{
		"Custom.Squad":                   true,
		"Contoso.Billing.Code":           true,
		"System.Title":                   false,
		"Microsoft.VSTS.Common.Priority": false,
		"":                               false,
	}
	for ref, want := range tests {
		if got := IsCustomField(ref); got != want {
			t.Errorf("IsCustomField(%q) = %v, want %v", ref, got, want)
		}
	}
}
