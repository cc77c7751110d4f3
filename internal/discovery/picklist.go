package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"ado-mcp/internal/devops"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Request identifies the field whose values are wanted.
type Request struct {
	Project      string
	WorkItemType string
	Field        string
	PicklistID   string
}

// Strategy is one way of obtaining a field's allowed values. A strategy
// reports ok=false for any failure or empty answer so the next one runs.
type Strategy interface {
	Name() string
	TryResolve(ctx context.Context, req Request) ([]string, bool)
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string `json:"strategy"`
	Values   int    `json:"values"`
}

// Resolution is the result of Resolve. Values is never nil.
type Resolution struct {
	Values   []string  `json:"values"`
	Strategy string    `json:"strategy,omitempty"`
	Attempts []Attempt `json:"attempts"`
}

func (r Resolution) Resolved() bool { return len(r.Values) > 0 }

// SharedAcrossTypes reports whether values found by the named strategy hold
// for every work item type carrying the field. Process lists are defined once
// per organization; the other strategies answer for one type.
func SharedAcrossTypes(strategy string) bool {
	switch strategy {
	case OrganizationListStrategy{}.Name(), ProjectListStrategy{}.Name():
		return true
	}
	return false
}

// Resolver walks its strategies in order and stops at the first one that
// returns values.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds a resolver from an explicit chain.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// DefaultResolver returns the standard chain. sampleSize > 0 appends the
// sampled-values strategy.
func DefaultResolver(client devops.Client, sampleSize int) *Resolver {
	chain := []Strategy{
		OrganizationListStrategy{Client: client},
		ProjectListStrategy{Client: client},
		FieldAllowedValuesStrategy{Client: client},
	}
	if sampleSize > 0 {
		chain = append(chain, SampledValuesStrategy{Client: client, Limit: sampleSize})
	}
	return NewResolver(chain...)
}

// Strategies lists the chain by name.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve never fails. An empty Values slice means no strategy succeeded.
func (r *Resolver) Resolve(ctx context.Context, req Request) Resolution {
	res := Resolution{Values: []string{}}
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			log.Warn().Str("field", req.Field).Msg("Picklist resolution cancelled")
			break
		}
		values, ok := s.TryResolve(ctx, req)
		values = dedupe(values)
		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name(), Values: len(values)})
		if ok && len(values) > 0 {
			res.Values = values
			res.Strategy = s.Name()
			log.Debug().Str("field", req.Field).Str("strategy", s.Name()).Int("values", len(values)).Msg("Picklist values resolved")
			return res
		}
		log.Debug().Str("field", req.Field).Str("strategy", s.Name()).Msg("Picklist strategy produced nothing")
	}
	log.Info().Str("field", req.Field).Str("project", req.Project).Msg("Could not resolve picklist values")
	return res
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// OrganizationListStrategy reads the process list by id at organization level.
type OrganizationListStrategy struct {
	Client devops.Client
}

func (OrganizationListStrategy) Name() string { return "organization-list" }

func (s OrganizationListStrategy) TryResolve(ctx context.Context, req Request) ([]string, bool) {
	if req.PicklistID == "" {
		return nil, false
	}
	id, err := uuid.Parse(req.PicklistID)
	if err != nil {
		log.Debug().Str("picklist", req.PicklistID).Msg("Picklist id is not a UUID")
		return nil, false
	}
	pl, err := s.Client.GetPicklist(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("picklist", req.PicklistID).Msg("Organization list lookup failed")
		return nil, false
	}
	if pl == nil || len(pl.Items) == 0 {
		return nil, false
	}
	return []string(pl.Items), true
}

// ProjectListStrategy reads the process list through the project-scoped route.
type ProjectListStrategy struct {
	Client devops.Client
}

func (ProjectListStrategy) Name() string { return "project-list" }

func (s ProjectListStrategy) TryResolve(ctx context.Context, req Request) ([]string, bool) {
	if req.PicklistID == "" || req.Project == "" {
		return nil, false
	}
	path := fmt.Sprintf("%s/_apis/work/processes/lists/%s", url.PathEscape(req.Project), url.PathEscape(req.PicklistID))
	body, err := s.Client.Get(ctx, path, nil)
	if err != nil {
		log.Warn().Err(err).Str("picklist", req.PicklistID).Msg("Project list lookup failed")
		return nil, false
	}

	var pl devops.Picklist
	if err := json.Unmarshal(body, &pl); err != nil {
		log.Warn().Err(err).Str("picklist", req.PicklistID).Msg("Unexpected project list payload")
		return nil, false
	}
	return []string(pl.Items), len(pl.Items) > 0
}

// FieldAllowedValuesStrategy asks the field itself, which works for fields not
// backed by a shared list.
type FieldAllowedValuesStrategy struct {
	Client devops.Client
}

func (FieldAllowedValuesStrategy) Name() string { return "field-allowed-values" }

func (s FieldAllowedValuesStrategy) TryResolve(ctx context.Context, req Request) ([]string, bool) {
	if req.Field == "" || req.Project == "" {
		return nil, false
	}
	values, err := s.Client.GetFieldAllowedValues(ctx, req.Project, req.WorkItemType, req.Field)
	if err != nil {
		log.Warn().Err(err).Str("field", req.Field).Msg("Allowed values lookup failed")
		return nil, false
	}
	return values, len(values) > 0
}

// SampledValuesStrategy infers values from recent work items that carry the
// field. It only ever sees values in use, so it runs last.
type SampledValuesStrategy struct {
	Client devops.Client
	Limit  int
}

// MaxFieldValueSample caps the number of work items read per field probe.
const MaxFieldValueSample = 20

func (SampledValuesStrategy) Name() string { return "sampled-values" }

func (s SampledValuesStrategy) TryResolve(ctx context.Context, req Request) ([]string, bool) {
	if req.Field == "" || req.Project == "" {
		return nil, false
	}
	limit := s.Limit
	if limit <= 0 || limit > MaxFieldValueSample {
		limit = MaxFieldValueSample
	}

	wiql := fmt.Sprintf("SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = %s AND [%s] <> ''",
		QuoteWIQL(req.Project), req.Field)
	if req.WorkItemType != "" {
		wiql += " AND [System.WorkItemType] = " + QuoteWIQL(req.WorkItemType)
	}
	wiql += " ORDER BY [System.ChangedDate] DESC"

	ids, err := s.Client.ExecuteQuery(ctx, req.Project, wiql, limit)
	if err != nil {
		log.Warn().Err(err).Str("field", req.Field).Msg("Field value sample query failed")
		return nil, false
	}
	if len(ids) == 0 {
		return nil, false
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	items, err := s.Client.GetWorkItems(ctx, ids, []string{req.Field})
	if err != nil {
		log.Warn().Err(err).Str("field", req.Field).Msg("Field value sample fetch failed")
		return nil, false
	}

	seen := make(map[string]bool)
	var values []string
	for _, wi := range items {
		v := strings.TrimSpace(wi.String(req.Field))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values, len(values) > 0
}

// QuoteWIQL renders s as a WIQL string literal.
func QuoteWIQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
