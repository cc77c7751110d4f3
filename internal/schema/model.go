// Package schema holds the persisted configuration model produced by
// organization discovery.
package schema

import (
	"sort"
	"strings"
	"time"
)

// DiscoveredOrganization is the root organization document.
type DiscoveredOrganization struct {
	Organization  OrganizationInfo         `json:"organization" yaml:"organization"`
	Projects      []Project                `json:"projects" yaml:"projects"`
	WorkItemTypes map[string]*WorkItemType `json:"workItemTypes" yaml:"workItemTypes"`
	CustomFields  map[string]*CustomField  `json:"customFields" yaml:"customFields"`
	Hierarchy     []HierarchyRelation      `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`
	Metadata      Metadata                 `json:"metadata" yaml:"metadata"`
}

type OrganizationInfo struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Project is a team project. Teams reference it only by name.
type Project struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	State         string    `json:"state,omitempty" yaml:"state,omitempty"`
	Visibility    string    `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Teams         []Team    `json:"teams" yaml:"teams"`
	AreaStructure *AreaNode `json:"areaStructure,omitempty" yaml:"areaStructure,omitempty"`
}

type Team struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Project  string        `json:"project" yaml:"project"`
	Analysis *TeamAnalysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// TeamAnalysis is derived from team naming conventions.
type TeamAnalysis struct {
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Category string `json:"category" yaml:"category"`
}

type AreaNode struct {
	Name     string     `json:"name" yaml:"name"`
	Path     string     `json:"path" yaml:"path"`
	Children []AreaNode `json:"children,omitempty" yaml:"children,omitempty"`
}

type WorkItemType struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Color       string            `json:"color,omitempty" yaml:"color,omitempty"`
	Icon        string            `json:"icon,omitempty" yaml:"icon,omitempty"`
	Disabled    bool              `json:"disabled" yaml:"disabled"`
	Fields      []FieldDefinition `json:"fields" yaml:"fields"`
	States      []WorkItemState   `json:"states" yaml:"states"`
}

type WorkItemState struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Color    string `json:"color,omitempty" yaml:"color,omitempty"`
}

// FieldDefinition is keyed by ReferenceName. Status only ever improves.
type FieldDefinition struct {
	ReferenceName string      `json:"referenceName" yaml:"referenceName"`
	Name          string      `json:"name" yaml:"name"`
	Type          string      `json:"type" yaml:"type"`
	Required      bool        `json:"required" yaml:"required"`
	HelpText      string      `json:"helpText,omitempty" yaml:"helpText,omitempty"`
	PicklistID    string      `json:"picklistId,omitempty" yaml:"picklistId,omitempty"`
	Status        FieldStatus `json:"status" yaml:"status"`
	AllowedValues []string    `json:"allowedValues" yaml:"allowedValues"`
}

// CustomField is an organization-level field outside the built-in namespaces.
type CustomField struct {
	ReferenceName string      `json:"referenceName" yaml:"referenceName"`
	Name          string      `json:"name" yaml:"name"`
	Type          string      `json:"type" yaml:"type"`
	IsPicklist    bool        `json:"isPicklist" yaml:"isPicklist"`
	PicklistID    string      `json:"picklistId,omitempty" yaml:"picklistId,omitempty"`
	UsedBy        []string    `json:"usedBy,omitempty" yaml:"usedBy,omitempty"`
	Status        FieldStatus `json:"status" yaml:"status"`
	AllowedValues []string    `json:"allowedValues" yaml:"allowedValues"`
}

// HierarchyRelation is a parent type with its observed child types.
type HierarchyRelation struct {
	ParentType string         `json:"parentType" yaml:"parentType"`
	ChildTypes []string       `json:"childTypes" yaml:"childTypes"`
	Frequency  map[string]int `json:"frequency" yaml:"frequency"`
}

type Metadata struct {
	DiscoveryDate     *time.Time         `json:"discoveryDate,omitempty" yaml:"discoveryDate,omitempty"`
	Statistics        Statistics         `json:"statistics" yaml:"statistics"`
	LastInvestigation *InvestigationMark `json:"lastInvestigation,omitempty" yaml:"lastInvestigation,omitempty"`
}

type Statistics struct {
	Projects         int `json:"projects" yaml:"projects"`
	Teams            int `json:"teams" yaml:"teams"`
	WorkItemTypes    int `json:"workItemTypes" yaml:"workItemTypes"`
	Fields           int `json:"fields" yaml:"fields"`
	CustomFields     int `json:"customFields" yaml:"customFields"`
	FunctionalFields int `json:"functionalFields" yaml:"functionalFields"`
}

type InvestigationMark struct {
	RunID   string    `json:"runId" yaml:"runId"`
	Kind    string    `json:"kind" yaml:"kind"`
	Project string    `json:"project,omitempty" yaml:"project,omitempty"`
	At      time.Time `json:"at" yaml:"at"`
}

// Normalize makes maps non-nil so callers can write into a freshly loaded document.
func (d *DiscoveredOrganization) Normalize() {
	if d.WorkItemTypes == nil {
		d.WorkItemTypes = make(map[string]*WorkItemType)
	}
	if d.CustomFields == nil {
		d.CustomFields = make(map[string]*CustomField)
	}
}

// Project returns the project with the given name, matched case-insensitively.
func (d *DiscoveredOrganization) Project(name string) *Project {
	for i := range d.Projects {
		if strings.EqualFold(d.Projects[i].Name, name) {
			return &d.Projects[i]
		}
	}
	return nil
}

// TypeNames returns the known work item type names in sorted order.
func (d *DiscoveredOrganization) TypeNames() []string {
	names := make([]string, 0, len(d.WorkItemTypes))
	for name := range d.WorkItemTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComputeStatistics recounts the document.
func (d *DiscoveredOrganization) ComputeStatistics() Statistics {
	var s Statistics
	s.Projects = len(d.Projects)
	for _, p := range d.Projects {
		s.Teams += len(p.Teams)
	}
	s.WorkItemTypes = len(d.WorkItemTypes)
	for _, t := range d.WorkItemTypes {
		s.Fields += len(t.Fields)
		for _, f := range t.Fields {
			if f.Status == StatusFunctional {
				s.FunctionalFields++
			}
		}
	}
	s.CustomFields = len(d.CustomFields)
	return s
}

// Field returns a pointer into the type's field list.
func (t *WorkItemType) Field(ref string) *FieldDefinition {
	for i := range t.Fields {
		if t.Fields[i].ReferenceName == ref {
			return &t.Fields[i]
		}
	}
	return nil
}

// MergeField folds a freshly analyzed definition into an existing one without
// losing resolved values.
func MergeField(existing, fresh FieldDefinition) FieldDefinition {
	out := fresh
	if existing.Status == StatusFunctional && len(existing.AllowedValues) > 0 && len(fresh.AllowedValues) == 0 {
		out.AllowedValues = existing.AllowedValues
	}
	if out.PicklistID == "" {
		out.PicklistID = existing.PicklistID
	}
	out.Status = existing.Status.Improve(fresh.Status)
	return out
}
