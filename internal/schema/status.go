package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldStatus is the confidence marker on a field's resolved value list.
// It gates whether resolution is attempted again.
type FieldStatus int

const (
	StatusUnknown FieldStatus = iota
	StatusNeedsInvestigation
	StatusFunctional
)

func (s FieldStatus) String() string {
	switch s {
	case StatusFunctional:
		return "functional"
	case StatusNeedsInvestigation:
		return "needs investigation"
	default:
		return "unknown values"
	}
}

// ParseFieldStatus accepts the persisted labels as well as the constant
// style spellings found in hand-edited documents.
func ParseFieldStatus(s string) (FieldStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "functional", "funcional":
		return StatusFunctional, nil
	case "needs investigation", "requiere investigacion", "requiere investigación":
		return StatusNeedsInvestigation, nil
	case "unknown", "unknown values", "":
		return StatusUnknown, nil
	}
	return StatusUnknown, fmt.Errorf("unknown field status %q", s)
}

// Improve returns the better of the two statuses. Functional is terminal.
func (s FieldStatus) Improve(next FieldStatus) FieldStatus {
	if next > s {
		return next
	}
	return s
}

// NeedsResolution reports whether the picklist resolver should run for a field.
func (s FieldStatus) NeedsResolution() bool {
	return s != StatusFunctional
}

func (s FieldStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FieldStatus) UnmarshalText(text []byte) error {
	v, err := ParseFieldStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s FieldStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *FieldStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}
