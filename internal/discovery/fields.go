// Package discovery investigates the schema of an Azure DevOps organization:
// fields, picklist values, work item types and type hierarchies.
package discovery

import (
	"context"
	"strings"

	"ado-mcp/internal/devops"
	"ado-mcp/internal/schema"

	"github.com/rs/zerolog/log"
)

// FieldAnalyzer enumerates the fields of a work item type and classifies them.
type FieldAnalyzer struct {
	client devops.Client
}

func NewFieldAnalyzer(client devops.Client) *FieldAnalyzer {
	return &FieldAnalyzer{client: client}
}

// Analyze joins the type's field instances with the organization field
// catalogue. Remote failures yield whatever could be classified.
func (a *FieldAnalyzer) Analyze(ctx context.Context, project, workItemType string) []schema.FieldDefinition {
	return a.AnalyzeWithCatalogue(ctx, project, workItemType, a.Catalogue(ctx, project))
}

// AnalyzeWithCatalogue is Analyze with a catalogue loaded by the caller, so
// one catalogue read can serve every type of a project.
func (a *FieldAnalyzer) AnalyzeWithCatalogue(ctx context.Context, project, workItemType string, catalogue map[string]devops.FieldInfo) []schema.FieldDefinition {
	instances, err := a.client.GetWorkItemTypeFields(ctx, project, workItemType)
	if err != nil {
		log.Warn().Err(err).Str("project", project).Str("type", workItemType).Msg("Failed to list type fields")
		return nil
	}

	defs := make([]schema.FieldDefinition, 0, len(instances))
	for _, inst := range instances {
		info, known := catalogue[inst.ReferenceName]
		defs = append(defs, Classify(inst, info, known))
	}
	return defs
}

// Catalogue returns the organization fields keyed by reference name. Failures
// yield an empty catalogue.
func (a *FieldAnalyzer) Catalogue(ctx context.Context, project string) map[string]devops.FieldInfo {
	fields, err := a.client.ListFields(ctx, project)
	if err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Failed to load field catalogue")
		return map[string]devops.FieldInfo{}
	}
	out := make(map[string]devops.FieldInfo, len(fields))
	for _, f := range fields {
		out[f.ReferenceName] = f
	}
	return out
}

// Classify decides the status of one field instance.
func Classify(inst devops.TypeFieldInfo, info devops.FieldInfo, known bool) schema.FieldDefinition {
	def := schema.FieldDefinition{
		ReferenceName: inst.ReferenceName,
		Name:          inst.Name,
		Required:      inst.Required,
		HelpText:      inst.HelpText,
		AllowedValues: []string{},
	}
	if known {
		def.Type = info.Type
		if def.Name == "" {
			def.Name = info.Name
		}
		if info.PicklistID != nil {
			def.PicklistID = info.PicklistID.String()
		}
	}

	switch {
	case len(inst.AllowedValues) > 0:
		def.AllowedValues = append(def.AllowedValues, inst.AllowedValues...)
		def.Status = schema.StatusFunctional
	case known && IsPicklist(info):
		def.Status = schema.StatusNeedsInvestigation
	case known:
		def.Status = schema.StatusFunctional
	default:
		def.Status = schema.StatusUnknown
	}
	return def
}

// IsPicklist reports whether the catalogue entry is backed by a value list.
func IsPicklist(info devops.FieldInfo) bool {
	return info.IsPicklist || info.PicklistID != nil || strings.HasPrefix(strings.ToLower(info.Type), "picklist")
}

// IsCustomField is true for references outside the built-in namespaces.
func IsCustomField(ref string) bool {
	return ref != "" && !strings.HasPrefix(ref, "System.") && !strings.HasPrefix(ref, "Microsoft.VSTS.")
}
