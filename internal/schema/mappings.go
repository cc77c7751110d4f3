package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// DynamicMarker stands in for a value list that must be read from the server.
const DynamicMarker = "@DYNAMIC_FROM_SOURCE"

// AllowedValues is either a fixed list or the dynamic marker.
type AllowedValues struct {
	Dynamic bool
	Values  []string
}

func DynamicValues() AllowedValues { return AllowedValues{Dynamic: true} }

func FixedValues(values ...string) AllowedValues {
	return AllowedValues{Values: append([]string(nil), values...)}
}

func (a AllowedValues) MarshalJSON() ([]byte, error) {
	if a.Dynamic {
		return json.Marshal(DynamicMarker)
	}
	if a.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Values)
}

func (a *AllowedValues) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return a.fromScalar(s)
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("allowedValues must be %q or a list of strings: %w", DynamicMarker, err)
	}
	*a = AllowedValues{Values: values}
	return nil
}

func (a AllowedValues) MarshalYAML() (any, error) {
	if a.Dynamic {
		return DynamicMarker, nil
	}
	if a.Values == nil {
		return []string{}, nil
	}
	return a.Values, nil
}

func (a *AllowedValues) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return a.fromScalar(node.Value)
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*a = AllowedValues{Values: values}
		return nil
	}
	return fmt.Errorf("line %d: allowedValues must be %q or a list", node.Line, DynamicMarker)
}

func (a *AllowedValues) fromScalar(s string) error {
	switch strings.TrimSpace(s) {
	case DynamicMarker:
		*a = DynamicValues()
	case "":
		*a = AllowedValues{}
	default:
		return fmt.Errorf("unexpected allowedValues scalar %q", s)
	}
	return nil
}

// FieldMappingDocument maps logical field names to server fields.
type FieldMappingDocument struct {
	FieldMappings map[string]*FieldMapping `json:"fieldMappings" yaml:"fieldMappings"`
}

type FieldMapping struct {
	AzureFieldName string        `json:"azureFieldName" yaml:"azureFieldName"`
	Type           string        `json:"type" yaml:"type"`
	Required       bool          `json:"required" yaml:"required"`
	AllowedValues  AllowedValues `json:"allowedValues" yaml:"allowedValues"`
	Status         FieldStatus   `json:"status" yaml:"status"`
}

func (d *FieldMappingDocument) Normalize() {
	if d.FieldMappings == nil {
		d.FieldMappings = make(map[string]*FieldMapping)
	}
}

// ByAzureField returns the logical name and mapping for a server field reference.
func (d *FieldMappingDocument) ByAzureField(ref string) (string, *FieldMapping) {
	names := make([]string, 0, len(d.FieldMappings))
	for name := range d.FieldMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if m := d.FieldMappings[name]; m != nil && strings.EqualFold(m.AzureFieldName, ref) {
			return name, m
		}
	}
	return "", nil
}

// LogicalName derives a lowerCamel key from a display name, e.g. "Business Unit" -> "businessUnit".
func LogicalName(display string) string {
	words := strings.FieldsFunc(display, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if i > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	out := b.String()
	if out == "" {
		return "field"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		return "field" + out
	}
	return out
}
