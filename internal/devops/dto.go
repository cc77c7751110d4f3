package devops

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProjectInfo is the subset of a team project we track.
type ProjectInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
}

// TeamInfo describes a team inside a project.
type TeamInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
}

// WorkItemTypeInfo is a work item type as returned by the type listing.
type WorkItemTypeInfo struct {
	Name          string          `json:"name"`
	ReferenceName string          `json:"referenceName,omitempty"`
	Description   string          `json:"description,omitempty"`
	Color         string          `json:"color,omitempty"`
	Icon          string          `json:"icon,omitempty"`
	IsDisabled    bool            `json:"isDisabled"`
	States        []StateInfo     `json:"states,omitempty"`
	Fields        []TypeFieldInfo `json:"fields,omitempty"`
}

// StateInfo is a workflow state of a work item type.
type StateInfo struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Color    string `json:"color,omitempty"`
}

// TypeFieldInfo is a field instance scoped to one work item type.
type TypeFieldInfo struct {
	ReferenceName string   `json:"referenceName"`
	Name          string   `json:"name"`
	Required      bool     `json:"alwaysRequired"`
	HelpText      string   `json:"helpText,omitempty"`
	DefaultValue  string   `json:"defaultValue,omitempty"`
	AllowedValues []string `json:"allowedValues,omitempty"`
}

// FieldInfo is an entry of the organization field catalogue.
type FieldInfo struct {
	ReferenceName string     `json:"referenceName"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	Description   string     `json:"description,omitempty"`
	ReadOnly      bool       `json:"readOnly"`
	IsIdentity    bool       `json:"isIdentity"`
	IsPicklist    bool       `json:"isPicklist"`
	PicklistID    *uuid.UUID `json:"picklistId,omitempty"`
}

// Picklist is a server managed list of legal values.
type Picklist struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	IsSuggested bool          `json:"isSuggested"`
	Items       PicklistItems `json:"items"`
}

// PicklistItems accepts both plain string items and {"value": ...} objects,
// since process endpoints disagree on the shape.
type PicklistItems []string

func (p *PicklistItems) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	items := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			items = append(items, s)
			continue
		}
		var obj struct {
			Value any `json:"value"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return fmt.Errorf("unsupported picklist item %s: %w", string(r), err)
		}
		if obj.Value != nil {
			items = append(items, fmt.Sprintf("%v", obj.Value))
		}
	}
	*p = items
	return nil
}

// AreaNode is one node of the area classification tree.
type AreaNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Children []AreaNode `json:"children,omitempty"`
}

// TeamAreaPath is an area path owned by a team.
type TeamAreaPath struct {
	Path            string `json:"value"`
	IncludeChildren bool   `json:"includeChildren"`
}

// Iteration is a team iteration (sprint).
type Iteration struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	TimeFrame  string     `json:"timeFrame,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	FinishDate *time.Time `json:"finishDate,omitempty"`
}

// WorkItem is a work item with its raw field bag.
type WorkItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
}

// Well known field reference names.
const (
	FieldID              = "System.Id"
	FieldTitle           = "System.Title"
	FieldWorkItemType    = "System.WorkItemType"
	FieldState           = "System.State"
	FieldParent          = "System.Parent"
	FieldAreaPath        = "System.AreaPath"
	FieldIterationPath   = "System.IterationPath"
	FieldChangedDate     = "System.ChangedDate"
	FieldCreatedDate     = "System.CreatedDate"
	FieldChangedBy       = "System.ChangedBy"
	FieldStateChangeDate = "Microsoft.VSTS.Common.StateChangeDate"
	FieldClosedDate      = "Microsoft.VSTS.Common.ClosedDate"
	FieldStoryPoints     = "Microsoft.VSTS.Scheduling.StoryPoints"
	FieldEffort          = "Microsoft.VSTS.Scheduling.Effort"
)

// String returns a field as text. Identity fields are reduced to their display name.
func (w WorkItem) String(field string) string {
	v, ok := w.Fields[field]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if name, ok := val["displayName"].(string); ok {
			return name
		}
		if name, ok := val["uniqueName"].(string); ok {
			return name
		}
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// Int returns a numeric field, zero when missing or not numeric.
func (w WorkItem) Int(field string) int {
	switch val := w.Fields[field].(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	case json.Number:
		n, _ := val.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(val))
		return n
	}
	return 0
}

// Float returns a numeric field as float64.
func (w WorkItem) Float(field string) (float64, bool) {
	switch val := w.Fields[field].(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// Time parses a date field.
func (w WorkItem) Time(field string) (time.Time, bool) {
	switch val := w.Fields[field].(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, val)
		return t, err == nil
	case time.Time:
		return val, true
	}
	return time.Time{}, false
}
