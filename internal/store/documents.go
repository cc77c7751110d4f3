package store

import (
	"fmt"
	"path/filepath"

	"ado-mcp/internal/schema"
)

// Default locations relative to the data path.
const (
	DefaultOrganizationFile = "config/discovered-organization.json"
	DefaultFieldMappingFile = "config/field-mappings.yaml"
)

type (
	OrganizationDocument = Document[schema.DiscoveredOrganization]
	FieldMappingDocument = Document[schema.FieldMappingDocument]
)

// Set groups the documents one investigation touches.
type Set struct {
	Organization  *OrganizationDocument
	FieldMappings *FieldMappingDocument
}

// OpenSet opens both documents. Empty paths fall back to the defaults under dataPath.
func OpenSet(dataPath, organizationFile, fieldMappingFile string) (*Set, error) {
	if organizationFile == "" {
		organizationFile = filepath.Join(dataPath, DefaultOrganizationFile)
	}
	if fieldMappingFile == "" {
		fieldMappingFile = filepath.Join(dataPath, DefaultFieldMappingFile)
	}

	org, err := Open[schema.DiscoveredOrganization](organizationFile)
	if err != nil {
		return nil, err
	}
	mappings, err := Open[schema.FieldMappingDocument](fieldMappingFile)
	if err != nil {
		return nil, err
	}
	// Both documents share one writer lock per path, so Lock would block on itself.
	if org.Path() == mappings.Path() {
		return nil, fmt.Errorf("organization and field mapping documents must be different files, both are %s", org.Path())
	}
	return &Set{Organization: org, FieldMappings: mappings}, nil
}

// Paths lists the backing files in lock order.
func (s *Set) Paths() []string {
	return []string{s.Organization.Path(), s.FieldMappings.Path()}
}

// Lock takes both writer locks in a fixed order.
func (s *Set) Lock() {
	s.Organization.Lock()
	s.FieldMappings.Lock()
}

func (s *Set) Unlock() {
	s.FieldMappings.Unlock()
	s.Organization.Unlock()
}
