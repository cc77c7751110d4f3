package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"ado-mcp/internal/devops"

	"github.com/rs/zerolog/log"
)

// Enumeration sources.
const (
	SourceTyped       = "typed"
	SourcePassthrough = "passthrough"
	SourceText        = "text-recovery"
	SourceNone        = "none"
)

// Enumeration is the set of enabled types and the path that produced it.
type Enumeration struct {
	Types  []string `json:"types"`
	Source string   `json:"source"`
}

// TypeEnumerator determines the enabled work item types of a project.
type TypeEnumerator struct {
	client devops.Client
}

func NewTypeEnumerator(client devops.Client) *TypeEnumerator {
	return &TypeEnumerator{client: client}
}

// ListEnabledTypes never fails. An empty result with SourceNone means the
// types could not be determined.
func (e *TypeEnumerator) ListEnabledTypes(ctx context.Context, project string) Enumeration {
	// 1. Typed SDK listing
	if types, err := e.client.GetWorkItemTypes(ctx, project); err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Typed work item type listing failed")
	} else if names := enabledNames(types); len(names) > 0 {
		return Enumeration{Types: names, Source: SourceTyped}
	}

	// 2. Raw REST listing, decoded into DTOs
	path := fmt.Sprintf("%s/_apis/wit/workitemtypes", url.PathEscape(project))
	body, err := e.client.Get(ctx, path, nil)
	if err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Passthrough work item type listing failed")
		return Enumeration{Types: []string{}, Source: SourceNone}
	}

	var payload struct {
		Value []devops.WorkItemTypeInfo `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if names := enabledNames(payload.Value); len(names) > 0 {
			return Enumeration{Types: names, Source: SourcePassthrough}
		}
	} else {
		log.Debug().Err(err).Msg("Work item type payload did not decode, falling back to text recovery")
	}

	// 3. Text heuristics over whatever came back
	if names := RecoverTypeNames(string(body)); len(names) > 0 {
		log.Info().Str("project", project).Int("count", len(names)).Msg("Work item types recovered from text")
		return Enumeration{Types: names, Source: SourceText}
	}
	return Enumeration{Types: []string{}, Source: SourceNone}
}

func enabledNames(types []devops.WorkItemTypeInfo) []string {
	set := newNameSet()
	for _, t := range types {
		if t.IsDisabled {
			continue
		}
		if IsValidTypeCandidate(t.Name) {
			set.add(t.Name)
		} else {
			log.Debug().Str("type", t.Name).Msg("Discarding work item type name")
		}
	}
	if set.len() == 0 {
		return nil
	}
	return set.sorted()
}
