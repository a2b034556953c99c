// =============================================================================
// X12 Parser - Catalog Loader
// =============================================================================
//
// Catalogs are plain data. The built-in healthcare catalog ships as an
// embedded YAML document and user catalogs use the same format:
//
//   segments:
//     - id: HL
//       name: Hierarchical Level
//       fields:
//         - {name: hierarchical_id_number, type: AN, required: true, min: 1, max: 12}
//         - {name: hierarchical_parent_id_number, type: AN, min: 1, max: 12}
//   overrides:
//     - transaction_set: "270"
//       loop: 2100C
//       segment: NM1
//       fields:
//         - {name: entity_identifier_code, allowed: [IL]}
//
// =============================================================================

package segments

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// File is the on-disk catalog document.
type File struct {
	Segments  []SegmentDef `yaml:"segments"`
	Overrides []Override   `yaml:"overrides,omitempty"`
}

// DefaultCatalog returns a new catalog holding the built-in healthcare
// segments and the overrides of the built-in transaction sets. It panics if
// the embedded catalog is invalid.
func DefaultCatalog(opts ...Option) *Catalog {
	c := NewCatalog(opts...)
	if err := c.LoadYAML(defaultCatalogYAML); err != nil {
		panic(fmt.Sprintf("segments: invalid embedded catalog: %v", err))
	}
	return c
}

// LoadFile reads a YAML catalog file into c.
//
// PARAMETERS:
//   - path: path to the YAML catalog.
//
// RETURNS:
//   - An error if the file cannot be read or a definition is invalid.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}
	if err := c.LoadYAML(data); err != nil {
		return fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return nil
}

// LoadYAML adds the segments, then the overrides, of a YAML catalog document.
// Segments with an identifier already in the catalog replace it.
func (c *Catalog) LoadYAML(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return c.Load(file)
}

// Load adds the contents of a catalog document.
func (c *Catalog) Load(file File) error {
	for _, def := range file.Segments {
		if err := c.Add(def); err != nil {
			return err
		}
	}
	for _, o := range file.Overrides {
		if err := c.AddOverride(o); err != nil {
			return err
		}
	}
	return nil
}

// File returns the catalog as a document, segments sorted by identifier.
func (c *Catalog) File() File {
	file := File{Overrides: c.Overrides()}
	for _, d := range c.Definitions() {
		file.Segments = append(file.Segments, *d.clone())
	}
	return file
}

// ToYAML renders the catalog document.
func (c *Catalog) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c.File())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog: %w", err)
	}
	return data, nil
}
