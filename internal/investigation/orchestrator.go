// Package investigation runs named discovery operations against an
// organization and merges what they learn into the persisted configuration.
package investigation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ado-mcp/internal/backup"
	"ado-mcp/internal/devops"
	"ado-mcp/internal/discovery"
	"ado-mcp/internal/eventlog"
	"ado-mcp/internal/schema"
	"ado-mcp/internal/stats"
	"ado-mcp/internal/store"

	"github.com/rs/zerolog/log"
)

// Kind names an investigation operation.
type Kind string

const (
	KindWorkItemTypes     Kind = "workitem-types"
	KindCustomFields      Kind = "custom-fields"
	KindPicklistValues    Kind = "picklist-values"
	KindFullConfiguration Kind = "full-configuration"
)

// Kinds lists every supported operation.
var Kinds = []Kind{KindWorkItemTypes, KindCustomFields, KindPicklistValues, KindFullConfiguration}

// ParseKind accepts the kind names case-insensitively.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, true
		}
	}
	return "", false
}

// areaTreeDepth bounds the area classification read for the target project.
const areaTreeDepth = 5

// Request describes one investigation call.
type Request struct {
	Kind          string
	Project       string
	Team          string
	AreaPath      string
	IterationPath string
	BackupFirst   bool

	// IncludeDocument attaches the merged organization document to the result.
	IncludeDocument bool
}

// RequestError is returned for invalid input. Nothing has been touched when
// it is returned.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid investigation request: %s %s", e.Field, e.Reason)
}

// FieldTransition is one field whose status became FUNCTIONAL during a run.
type FieldTransition struct {
	WorkItemType  string             `json:"workItemType"`
	ReferenceName string             `json:"referenceName"`
	From          schema.FieldStatus `json:"from"`
	To            schema.FieldStatus `json:"to"`
	Strategy      string             `json:"strategy"`
	Values        int                `json:"values"`
}

// UnresolvedField is a field that still needs resolution after the run.
type UnresolvedField struct {
	WorkItemType  string             `json:"workItemType"`
	ReferenceName string             `json:"referenceName"`
	Status        schema.FieldStatus `json:"status"`
}

// Result is the outcome of one investigation call.
type Result struct {
	RunID   string `json:"runId"`
	Kind    Kind   `json:"kind"`
	Project string `json:"project"`
	Success bool   `json:"success"`

	ResolvedFields   int `json:"resolvedFields"`
	UnresolvedFields int `json:"unresolvedFields"`

	Steps       []string          `json:"steps"`
	Warnings    []string          `json:"warnings"`
	Backups     []backup.Record   `json:"backups"`
	Transitions []FieldTransition `json:"transitions"`
	Unresolved  []UnresolvedField `json:"unresolved"`
	Statistics  schema.Statistics `json:"statistics"`
	Report      string            `json:"report"`

	// TeamContext is the distribution report for the requested team, area
	// and iteration scope.
	TeamContext string `json:"teamContext,omitempty"`

	Document *schema.DiscoveredOrganization `json:"document,omitempty"`
}

// Options tune sampling and rendering.
type Options struct {
	Organization    string
	OrganizationURL string

	HierarchySampleSize  int
	FieldValueSampleSize int
	// SampleFieldValues appends the sampled-values strategy to the resolver chain.
	SampleFieldValues bool
	Charts            bool

	Now func() time.Time
}

// Orchestrator composes the discovery components.
type Orchestrator struct {
	client    devops.Client
	docs      *store.Set
	backups   *backup.Manager
	journal   *eventlog.Journal
	fields    *discovery.FieldAnalyzer
	types     *discovery.TypeEnumerator
	hierarchy *discovery.HierarchyAnalyzer
	resolver  *discovery.Resolver
	analyzer  *stats.ContextAnalyzer
	opts      Options
}

// New wires an orchestrator. journal may be nil.
func New(client devops.Client, docs *store.Set, backups *backup.Manager, journal *eventlog.Journal, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sample := 0
	if opts.SampleFieldValues {
		sample = opts.FieldValueSampleSize
		if sample <= 0 {
			sample = discovery.MaxFieldValueSample
		}
	}
	return &Orchestrator{
		client:    client,
		docs:      docs,
		backups:   backups,
		journal:   journal,
		fields:    discovery.NewFieldAnalyzer(client),
		types:     discovery.NewTypeEnumerator(client),
		hierarchy: discovery.NewHierarchyAnalyzer(client),
		resolver:  discovery.DefaultResolver(client, sample),
		analyzer:  stats.NewContextAnalyzer(client, stats.Options{Charts: opts.Charts, Now: opts.Now}),
		opts:      opts,
	}
}

// WithResolver replaces the picklist resolver chain.
func (o *Orchestrator) WithResolver(r *discovery.Resolver) *Orchestrator {
	o.resolver = r
	return o
}

// run is the per-call state. It is discarded when Investigate returns.
type run struct {
	kind     Kind
	project  string
	req      Request
	rec      *eventlog.Recorder
	org      *schema.DiscoveredOrganization
	mappings *schema.FieldMappingDocument
	result   *Result

	mappingsChanged bool
	fieldsAnalyzed  bool
	resolved        map[string]discovery.Resolution
	hierarchy       *discovery.HierarchyReport
}

func (r *run) step(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.result.Steps = append(r.result.Steps, msg)
	log.Info().Str("run", r.rec.RunID).Msg(msg)
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.result.Warnings = append(r.result.Warnings, msg)
	r.rec.Record(eventlog.StepWarning, "", "", "", msg)
	log.Warn().Str("run", r.rec.RunID).Msg(msg)
}

// Investigate validates the request, then runs backup, generate, merge and
// persist while holding both document locks. Only a persist failure is
// returned as an error, together with the unsuccessful result.
func (o *Orchestrator) Investigate(ctx context.Context, req Request) (*Result, error) {
	// 1. Validate before any side effect
	kind, ok := ParseKind(req.Kind)
	if !ok {
		return nil, &RequestError{Field: "kind", Reason: fmt.Sprintf("must be one of %s, got %q", KindList(), req.Kind)}
	}
	project := strings.TrimSpace(req.Project)
	if project == "" {
		return nil, &RequestError{Field: "project", Reason: "is required"}
	}

	r := &run{
		kind:     kind,
		project:  project,
		req:      req,
		rec:      eventlog.NewRecorder(string(kind), project, o.opts.Now),
		resolved: make(map[string]discovery.Resolution),
		result: &Result{
			Kind:        kind,
			Project:     project,
			Steps:       []string{},
			Warnings:    []string{},
			Backups:     []backup.Record{},
			Transitions: []FieldTransition{},
			Unresolved:  []UnresolvedField{},
		},
	}
	r.result.RunID = r.rec.RunID
	r.rec.Record(eventlog.RunStarted, project, "", "", string(kind))
	log.Info().Str("run", r.rec.RunID).Str("kind", string(kind)).Str("project", project).Msg("Investigation started")

	o.docs.Lock()
	defer o.docs.Unlock()

	// 2. Backups
	if req.BackupFirst {
		o.backupDocuments(r)
	}

	// 3. Load current state from disk
	r.org = o.docs.Organization.Reload()
	r.mappings = o.docs.FieldMappings.Reload()

	// 4. Generate
	o.generate(ctx, r)

	// 5. Merge metadata
	o.finalize(r)

	// 6. Persist
	if err := o.persist(r); err != nil {
		r.result.Success = false
		r.rec.Record(eventlog.RunFailed, project, "", "", err.Error())
		r.result.Report = renderReport(r.result, o.opts.Charts, r.org, r.hierarchy)
		o.appendJournal(r)
		log.Error().Err(err).Str("run", r.rec.RunID).Msg("Investigation persist failed")
		return r.result, fmt.Errorf("persist investigation %s: %w", r.rec.RunID, err)
	}

	// 7. Report
	r.result.Success = true
	r.rec.Record(eventlog.RunCompleted, project, "", "", fmt.Sprintf("%d resolved, %d unresolved", r.result.ResolvedFields, r.result.UnresolvedFields))
	o.appendJournal(r)
	r.result.Report = renderReport(r.result, o.opts.Charts, r.org, r.hierarchy)
	if req.IncludeDocument {
		if doc, err := o.docs.Organization.Copy(); err == nil {
			r.result.Document = &doc
		} else {
			log.Warn().Err(err).Msg("Failed to copy organization document")
		}
	}

	log.Info().
		Str("run", r.rec.RunID).
		Int("resolved", r.result.ResolvedFields).
		Int("unresolved", r.result.UnresolvedFields).
		Int("warnings", len(r.result.Warnings)).
		Msg("Investigation completed")
	return r.result, nil
}

// KindNames lists the supported kinds as plain strings.
func KindNames() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return names
}

// KindList renders the supported kinds for help and error text.
func KindList() string {
	return strings.Join(KindNames(), ", ")
}

func (o *Orchestrator) backupDocuments(r *run) {
	for _, rec := range o.backups.BackupAll(o.docs.Paths()...) {
		r.result.Backups = append(r.result.Backups, rec)
		switch {
		case rec.Success:
			r.rec.Record(eventlog.BackupTaken, rec.OriginalPath, "", rec.BackupPath, "")
			r.step("backed up %s to %s", rec.OriginalPath, rec.BackupPath)
		case rec.Error == backup.MsgSourceMissing:
			r.step("skipped backup of %s: %s", rec.OriginalPath, rec.Error)
		default:
			r.warn("backup of %s failed: %s", rec.OriginalPath, rec.Error)
		}
	}
}

// generate dispatches on kind. Each sub-step runs behind guard so a failure in
// one does not undo what earlier ones merged.
func (o *Orchestrator) generate(ctx context.Context, r *run) {
	switch r.kind {
	case KindWorkItemTypes:
		o.guard(r, "work item types", func() { o.generateTypes(ctx, r) })
	case KindCustomFields:
		o.guard(r, "custom fields", func() {
			o.ensureTypes(ctx, r)
			o.generateFields(ctx, r)
			o.resolvePicklists(ctx, r, true)
		})
	case KindPicklistValues:
		o.guard(r, "picklist values", func() {
			if len(r.org.WorkItemTypes) == 0 {
				r.step("no discovered fields; analyzing fields first")
				o.ensureTypes(ctx, r)
				o.generateFields(ctx, r)
			}
			o.resolvePicklists(ctx, r, false)
		})
	case KindFullConfiguration:
		o.guard(r, "projects and teams", func() { o.generateProjects(ctx, r) })
		o.guard(r, "work item types", func() { o.generateTypes(ctx, r) })
		o.guard(r, "custom fields", func() { o.generateFields(ctx, r) })
		o.guard(r, "picklist values", func() { o.resolvePicklists(ctx, r, false) })
		o.guard(r, "hierarchy", func() { o.generateHierarchy(ctx, r) })
	}

	if r.kind == KindFullConfiguration || r.req.Team != "" || r.req.IterationPath != "" {
		o.guard(r, "team context", func() { o.generateTeamContext(ctx, r) })
	}

	// New custom fields get a mapping once their values are as good as they
	// will get in this run.
	if r.fieldsAnalyzed {
		o.guard(r, "field mappings", func() {
			if n := o.registerMappings(r); n > 0 {
				r.step("registered %d new field mappings", n)
			}
		})
	}
}

// guard turns a panic inside a generate step into a warning.
func (o *Orchestrator) guard(r *run, name string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.warn("%s step failed: %v", name, p)
		}
	}()
	fn()
}

func (o *Orchestrator) generateProjects(ctx context.Context, r *run) {
	infos, err := o.client.ListProjects(ctx)
	if err != nil {
		r.warn("listing projects failed: %v", err)
		return
	}

	previous := make(map[string]*schema.AreaNode)
	for _, p := range r.org.Projects {
		previous[strings.ToLower(p.Name)] = p.AreaStructure
	}

	projects := make([]schema.Project, 0, len(infos))
	teamCount := 0
	for _, info := range infos {
		p := schema.Project{
			ID:            info.ID,
			Name:          info.Name,
			Description:   info.Description,
			State:         info.State,
			Visibility:    info.Visibility,
			Teams:         []schema.Team{},
			AreaStructure: previous[strings.ToLower(info.Name)],
		}

		teams, err := o.client.ListTeams(ctx, info.Name)
		if err != nil {
			r.warn("listing teams of %s failed: %v", info.Name, err)
		}
		for _, t := range teams {
			p.Teams = append(p.Teams, schema.Team{ID: t.ID, Name: t.Name, Project: info.Name})
		}
		sort.Slice(p.Teams, func(i, j int) bool { return p.Teams[i].Name < p.Teams[j].Name })
		p.Teams = stats.AnalyzeTeams(p.Teams)
		teamCount += len(p.Teams)

		if strings.EqualFold(info.Name, r.project) {
			tree, err := o.client.GetAreaTree(ctx, info.Name, areaTreeDepth)
			switch {
			case err != nil:
				r.warn("reading area tree of %s failed: %v", info.Name, err)
			case tree != nil:
				node := mapArea(*tree)
				p.AreaStructure = &node
			}
		}
		projects = append(projects, p)
	}

	r.org.Projects = projects
	r.step("discovered %d projects with %d teams", len(projects), teamCount)
}

func mapArea(n devops.AreaNode) schema.AreaNode {
	out := schema.AreaNode{Name: n.Name, Path: n.Path}
	for _, c := range n.Children {
		out.Children = append(out.Children, mapArea(c))
	}
	return out
}

// ensureTypes enumerates types when the document has none yet.
func (o *Orchestrator) ensureTypes(ctx context.Context, r *run) {
	if len(r.org.WorkItemTypes) == 0 {
		o.generateTypes(ctx, r)
	}
}

// generateTypes replaces the type list with a fresh enumeration. Entries of
// types that are still present keep their analyzed fields.
func (o *Orchestrator) generateTypes(ctx context.Context, r *run) {
	enum := o.types.ListEnabledTypes(ctx, r.project)
	if len(enum.Types) == 0 {
		r.warn("could not determine enabled work item types of %s; keeping %d known types", r.project, len(r.org.WorkItemTypes))
		return
	}

	details := make(map[string]devops.WorkItemTypeInfo)
	if infos, err := o.client.GetWorkItemTypes(ctx, r.project); err == nil {
		for _, info := range infos {
			details[strings.ToLower(info.Name)] = info
		}
	}

	existing := make(map[string]*schema.WorkItemType, len(r.org.WorkItemTypes))
	for name, t := range r.org.WorkItemTypes {
		existing[strings.ToLower(name)] = t
	}

	types := make(map[string]*schema.WorkItemType, len(enum.Types))
	for _, name := range enum.Types {
		t := &schema.WorkItemType{Name: name, Fields: []schema.FieldDefinition{}, States: []schema.WorkItemState{}}
		if prev, ok := existing[strings.ToLower(name)]; ok {
			t.Fields = prev.Fields
			t.States = prev.States
			t.Description = prev.Description
			t.Color = prev.Color
			t.Icon = prev.Icon
		}
		if info, ok := details[strings.ToLower(name)]; ok {
			t.Description = info.Description
			t.Color = info.Color
			t.Icon = info.Icon
			t.Disabled = info.IsDisabled
			if len(info.States) > 0 {
				t.States = make([]schema.WorkItemState, 0, len(info.States))
				for _, s := range info.States {
					t.States = append(t.States, schema.WorkItemState{Name: s.Name, Category: s.Category, Color: s.Color})
				}
			}
		}
		types[name] = t
	}

	dropped := 0
	for name := range existing {
		if _, ok := findType(types, name); !ok {
			dropped++
		}
	}
	r.org.WorkItemTypes = types
	r.step("enumerated %d work item types via %s (%d removed)", len(types), enum.Source, dropped)
}

func findType(types map[string]*schema.WorkItemType, name string) (*schema.WorkItemType, bool) {
	for n, t := range types {
		if strings.EqualFold(n, name) {
			return t, true
		}
	}
	return nil, false
}

// generateFields analyzes the fields of every known type and refreshes the
// custom field registry.
func (o *Orchestrator) generateFields(ctx context.Context, r *run) {
	catalogue := o.fields.Catalogue(ctx, r.project)
	if len(catalogue) == 0 {
		r.warn("field catalogue of %s is empty; fields will be classified as unknown", r.project)
	}

	analyzed, custom := 0, 0
	for _, name := range r.org.TypeNames() {
		t := r.org.WorkItemTypes[name]
		defs := o.fields.AnalyzeWithCatalogue(ctx, r.project, name, catalogue)
		if len(defs) == 0 {
			r.warn("no fields returned for %s; keeping %d previous definitions", name, len(t.Fields))
			continue
		}

		merged := make([]schema.FieldDefinition, 0, len(defs))
		for _, fresh := range defs {
			def := fresh
			if prev := t.Field(fresh.ReferenceName); prev != nil {
				def = schema.MergeField(*prev, fresh)
				if prev.Status != schema.StatusFunctional && def.Status == schema.StatusFunctional {
					r.transition(name, def.ReferenceName, prev.Status, "field-analysis", len(def.AllowedValues))
					o.applyMapping(r, def)
				}
			}
			merged = append(merged, def)

			if discovery.IsCustomField(def.ReferenceName) {
				info := catalogue[def.ReferenceName]
				registerCustomField(r.org, name, def, discovery.IsPicklist(info))
				custom++
			}
		}
		t.Fields = merged
		analyzed += len(merged)
	}

	r.fieldsAnalyzed = true
	r.step("analyzed %d field definitions across %d types, %d custom", analyzed, len(r.org.WorkItemTypes), custom)
}

func registerCustomField(org *schema.DiscoveredOrganization, typeName string, def schema.FieldDefinition, picklist bool) {
	cf, ok := org.CustomFields[def.ReferenceName]
	if !ok {
		cf = &schema.CustomField{ReferenceName: def.ReferenceName, AllowedValues: []string{}}
		org.CustomFields[def.ReferenceName] = cf
	}
	cf.Name = def.Name
	if def.Type != "" {
		cf.Type = def.Type
	}
	cf.IsPicklist = cf.IsPicklist || picklist || def.PicklistID != ""
	if def.PicklistID != "" {
		cf.PicklistID = def.PicklistID
	}
	cf.UsedBy = addSorted(cf.UsedBy, typeName)
	syncCustomField(cf, def)
}

// syncCustomField lets the registry follow a type-level definition without
// ever downgrading it.
func syncCustomField(cf *schema.CustomField, def schema.FieldDefinition) {
	improved := cf.Status.Improve(def.Status)
	if def.Status == schema.StatusFunctional && len(def.AllowedValues) > 0 &&
		(cf.Status != schema.StatusFunctional || len(cf.AllowedValues) == 0) {
		cf.AllowedValues = append([]string{}, def.AllowedValues...)
	}
	if cf.AllowedValues == nil {
		cf.AllowedValues = []string{}
	}
	cf.Status = improved
}

func addSorted(list []string, name string) []string {
	for _, s := range list {
		if s == name {
			return list
		}
	}
	list = append(list, name)
	sort.Strings(list)
	return list
}

// resolvePicklists runs the resolver for every field that still needs
// values. A failed resolution leaves the field untouched.
func (o *Orchestrator) resolvePicklists(ctx context.Context, r *run, customOnly bool) {
	candidates, resolved := 0, 0
	for _, name := range r.org.TypeNames() {
		t := r.org.WorkItemTypes[name]
		for i := range t.Fields {
			def := &t.Fields[i]
			if !def.Status.NeedsResolution() {
				continue
			}
			if customOnly && !discovery.IsCustomField(def.ReferenceName) {
				continue
			}
			if ctx.Err() != nil {
				r.warn("picklist resolution interrupted: %v", ctx.Err())
				o.collectUnresolved(r, customOnly)
				return
			}
			candidates++

			res := o.resolve(ctx, r, name, *def)
			if !res.Resolved() {
				log.Debug().Str("type", name).Str("field", def.ReferenceName).Msg("Field values not resolved")
				continue
			}

			from := def.Status
			def.AllowedValues = append([]string{}, res.Values...)
			def.Status = schema.StatusFunctional
			r.transition(name, def.ReferenceName, from, res.Strategy, len(res.Values))
			resolved++

			if cf, ok := r.org.CustomFields[def.ReferenceName]; ok {
				syncCustomField(cf, *def)
			}
			o.applyMapping(r, *def)
		}
	}

	o.collectUnresolved(r, customOnly)
	r.step("resolved %d of %d fields needing values", resolved, candidates)
}

// resolve calls the resolver once per field and picklist when the values came
// from a list, and once per type otherwise.
func (o *Orchestrator) resolve(ctx context.Context, r *run, typeName string, def schema.FieldDefinition) discovery.Resolution {
	shared := def.ReferenceName + "|" + def.PicklistID
	if res, ok := r.resolved[shared]; ok {
		return res
	}
	scoped := typeName + "|" + shared
	if res, ok := r.resolved[scoped]; ok {
		return res
	}
	res := o.resolver.Resolve(ctx, discovery.Request{
		Project:      r.project,
		WorkItemType: typeName,
		Field:        def.ReferenceName,
		PicklistID:   def.PicklistID,
	})
	if discovery.SharedAcrossTypes(res.Strategy) {
		r.resolved[shared] = res
	} else {
		r.resolved[scoped] = res
	}
	return res
}

func (r *run) transition(typeName, ref string, from schema.FieldStatus, strategy string, values int) {
	r.result.Transitions = append(r.result.Transitions, FieldTransition{
		WorkItemType:  typeName,
		ReferenceName: ref,
		From:          from,
		To:            schema.StatusFunctional,
		Strategy:      strategy,
		Values:        values,
	})
	r.result.ResolvedFields = len(r.result.Transitions)
	r.rec.Record(eventlog.FieldTransitioned, typeName+"/"+ref, from.String(), schema.StatusFunctional.String(), strategy)
}

func (o *Orchestrator) collectUnresolved(r *run, customOnly bool) {
	r.result.Unresolved = r.result.Unresolved[:0]
	for _, name := range r.org.TypeNames() {
		for _, def := range r.org.WorkItemTypes[name].Fields {
			if !def.Status.NeedsResolution() {
				continue
			}
			if customOnly && !discovery.IsCustomField(def.ReferenceName) {
				continue
			}
			r.result.Unresolved = append(r.result.Unresolved, UnresolvedField{
				WorkItemType:  name,
				ReferenceName: def.ReferenceName,
				Status:        def.Status,
			})
		}
	}
	r.result.UnresolvedFields = len(r.result.Unresolved)
}

// applyMapping writes resolved values into the mapping of the same server
// field. Dynamic mappings keep their marker.
func (o *Orchestrator) applyMapping(r *run, def schema.FieldDefinition) {
	_, m := r.mappings.ByAzureField(def.ReferenceName)
	if m == nil {
		return
	}
	if !m.AllowedValues.Dynamic && len(def.AllowedValues) > 0 {
		m.AllowedValues = schema.FixedValues(def.AllowedValues...)
	}
	m.Status = m.Status.Improve(def.Status)
	r.mappingsChanged = true
}

// registerMappings adds a mapping for each custom field that has none.
func (o *Orchestrator) registerMappings(r *run) int {
	refs := make([]string, 0, len(r.org.CustomFields))
	for ref := range r.org.CustomFields {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	added := 0
	for _, ref := range refs {
		cf := r.org.CustomFields[ref]
		if _, m := r.mappings.ByAzureField(ref); m != nil {
			continue
		}

		values := schema.FixedValues(cf.AllowedValues...)
		if cf.IsPicklist && len(cf.AllowedValues) == 0 {
			values = schema.DynamicValues()
		}
		r.mappings.FieldMappings[uniqueName(r.mappings, schema.LogicalName(cf.Name))] = &schema.FieldMapping{
			AzureFieldName: ref,
			Type:           cf.Type,
			Required:       requiredAnywhere(r.org, ref),
			AllowedValues:  values,
			Status:         cf.Status,
		}
		added++
	}
	if added > 0 {
		r.mappingsChanged = true
	}
	return added
}

func uniqueName(doc *schema.FieldMappingDocument, base string) string {
	name := base
	for i := 2; ; i++ {
		if _, taken := doc.FieldMappings[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
}

func requiredAnywhere(org *schema.DiscoveredOrganization, ref string) bool {
	for _, t := range org.WorkItemTypes {
		if f := t.Field(ref); f != nil && f.Required {
			return true
		}
	}
	return false
}

// scope is the team/area/iteration filter of the request.
func (r *run) scope() stats.Scope {
	return stats.Scope{
		Project:       r.project,
		Team:          strings.TrimSpace(r.req.Team),
		AreaPath:      strings.TrimSpace(r.req.AreaPath),
		IterationPath: strings.TrimSpace(r.req.IterationPath),
	}
}

func (o *Orchestrator) generateTeamContext(ctx context.Context, r *run) {
	scope := r.scope()
	text, err := o.analyzer.AnalyzeDistribution(ctx, scope)
	if err != nil {
		r.warn("team context for %s failed: %v", scope.Label(), err)
		return
	}
	r.result.TeamContext = text
	r.step("team context: %s", scope.Label())
}

// hierarchyArea is the requested area path, or the first area path owned by
// the requested team.
func (o *Orchestrator) hierarchyArea(ctx context.Context, r *run) string {
	scope := r.scope()
	if scope.AreaPath != "" || scope.Team == "" {
		return scope.AreaPath
	}
	areas, err := o.client.GetTeamAreaPaths(ctx, r.project, scope.Team)
	if err != nil {
		r.warn("area paths of team %s unavailable, sampling the whole project: %v", scope.Team, err)
		return ""
	}
	if len(areas) == 0 {
		r.step("team %s owns no area paths; sampling the whole project", scope.Team)
		return ""
	}
	return areas[0].Path
}

func (o *Orchestrator) generateHierarchy(ctx context.Context, r *run) {
	report := o.hierarchy.Analyze(ctx, r.project, o.opts.HierarchySampleSize, o.hierarchyArea(ctx, r))
	r.hierarchy = &report
	if len(report.Relations) == 0 {
		r.step("hierarchy: %s (%d items sampled)", report.Message, report.SampleSize)
		return
	}
	r.org.Hierarchy = discovery.MergeRelations(r.org.Hierarchy, report.Relations)
	r.step("hierarchy: %d relations from %d linked items (%d skipped)", len(report.Relations), report.LinkedItems, report.Skipped)
}

func (o *Orchestrator) finalize(r *run) {
	now := o.opts.Now().UTC()
	if o.opts.Organization != "" {
		r.org.Organization.Name = o.opts.Organization
	}
	if o.opts.OrganizationURL != "" {
		r.org.Organization.URL = o.opts.OrganizationURL
	}
	r.org.Metadata.DiscoveryDate = &now
	r.org.Metadata.Statistics = r.org.ComputeStatistics()
	r.org.Metadata.LastInvestigation = &schema.InvestigationMark{
		RunID:   r.rec.RunID,
		Kind:    string(r.kind),
		Project: r.project,
		At:      now,
	}
	r.result.Statistics = r.org.Metadata.Statistics
}

func (o *Orchestrator) persist(r *run) error {
	if err := o.docs.Organization.Save(r.org); err != nil {
		o.docs.Organization.Invalidate()
		return fmt.Errorf("save organization document: %w", err)
	}
	if !r.mappingsChanged {
		return nil
	}
	if err := o.docs.FieldMappings.Save(r.mappings); err != nil {
		o.docs.FieldMappings.Invalidate()
		return fmt.Errorf("save field mappings: %w", err)
	}
	return nil
}

func (o *Orchestrator) appendJournal(r *run) {
	if o.journal == nil {
		return
	}
	o.journal.Append(r.rec.Events()...)
	if err := o.journal.Save(); err != nil {
		log.Warn().Err(err).Str("path", o.journal.Path()).Msg("Failed to save investigation journal")
	}
}
