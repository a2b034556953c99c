// =============================================================================
// X12 Parser - Segment Catalog
// =============================================================================
//
// The segment catalog is the SegmentRegistry consumed by the parsing engine.
// It maps a segment identifier to a constructor that turns a RawSegment into a
// typed Record, validating every element against its field definition.
//
// CATALOG SOURCES:
//   - DefaultCatalog(): the built-in healthcare segments (embedded YAML)
//   - LoadYAML(path):   a YAML catalog file
//   - xlsxparser:       an XLSX catalog template
//
// TRANSACTION OVERRIDES:
//   A base segment definition can be narrowed for one transaction set, or for
//   one loop of one transaction set (see overrides.go). Overrides are merged
//   into complete definitions when they are added, so lookups never walk an
//   override chain.
//
// =============================================================================

package segments

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/types"
	"github.com/ginjaninja78/x12-parser/internal/validation"
)

// =============================================================================
// DEFINITIONS
// =============================================================================

// FieldDef defines one element of a segment.
type FieldDef struct {
	// Name is the snake_case field name used by match rules and renderers.
	Name string `yaml:"name"`

	// Position is the 1-based element position. When zero, the position is
	// taken from the field's place in the definition.
	Position int `yaml:"position,omitempty"`

	// Type is the X12 data type: AN, ID, DT, TM, N0..N9, R or B.
	Type string `yaml:"type,omitempty"`

	Required  bool     `yaml:"required,omitempty"`
	MinLength int      `yaml:"min,omitempty"`
	MaxLength int      `yaml:"max,omitempty"`
	Allowed   []string `yaml:"allowed,omitempty,flow"`

	// Composite fields are split on the component separator. Length, type
	// and code checks apply to the first component. A field that is also
	// Repeatable keeps the components of each occurrence.
	Composite bool `yaml:"composite,omitempty"`

	// Repeatable fields are split on the repetition separator and every
	// occurrence is validated.
	Repeatable bool `yaml:"repeatable,omitempty"`

	// NotUsed fields must be empty.
	NotUsed bool `yaml:"not_used,omitempty"`
}

// spec converts the definition into a validation spec.
func (f FieldDef) spec(segmentID string) validation.FieldSpec {
	return validation.FieldSpec{
		SegmentID: segmentID,
		Name:      f.Name,
		Position:  f.Position,
		DataType:  f.Type,
		Required:  f.Required,
		MinLength: f.MinLength,
		MaxLength: f.MaxLength,
		Allowed:   f.Allowed,
	}
}

// SegmentDef defines a segment: its identifier, name and fields.
type SegmentDef struct {
	ID     string     `yaml:"id"`
	Name   string     `yaml:"name"`
	Fields []FieldDef `yaml:"fields"`
}

// Field returns the named field definition.
func (d *SegmentDef) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// clone returns a deep copy of the definition.
func (d *SegmentDef) clone() *SegmentDef {
	c := &SegmentDef{ID: d.ID, Name: d.Name, Fields: make([]FieldDef, len(d.Fields))}
	for i, f := range d.Fields {
		f.Allowed = append([]string(nil), f.Allowed...)
		c.Fields[i] = f
	}
	return c
}

// normalize fills implicit positions and checks the definition is usable.
func (d *SegmentDef) normalize() error {
	if !validSegmentID(d.ID) {
		return fmt.Errorf("invalid segment identifier %q", d.ID)
	}
	seen := make(map[string]bool, len(d.Fields))
	last := 0
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Position == 0 {
			f.Position = last + 1
		}
		if f.Position <= last {
			return fmt.Errorf("segment %s: field %q position %d is not ascending", d.ID, f.Name, f.Position)
		}
		if f.Name == "" {
			return fmt.Errorf("segment %s: field at position %d has no name", d.ID, f.Position)
		}
		if seen[f.Name] {
			return fmt.Errorf("segment %s: duplicate field name %q", d.ID, f.Name)
		}
		seen[f.Name] = true
		last = f.Position
	}
	return nil
}

// maxPosition returns the highest declared element position.
func (d *SegmentDef) maxPosition() int {
	if len(d.Fields) == 0 {
		return 0
	}
	return d.Fields[len(d.Fields)-1].Position
}

func validSegmentID(id string) bool {
	if len(id) < 2 || len(id) > 3 {
		return false
	}
	for _, c := range id {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// =============================================================================
// REGISTRY CONTRACT
// =============================================================================

// Constructor builds a typed Record from a raw segment, or fails with a
// FieldError ParseError.
type Constructor func(raw types.RawSegment, delims types.Delimiters) (*types.Record, error)

// Registry is the lookup contract the engine depends on.
type Registry interface {
	Lookup(id string) (Constructor, bool)
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog holds segment definitions and their transaction overrides.
// A Catalog is built once and is read-only while parsing, so it can be
// shared by concurrent parses.
type Catalog struct {
	defs      map[string]*SegmentDef
	overrides []Override
	scoped    map[overrideKey]*SegmentDef
	validator *validation.Validator
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithValidator sets the field validator used by constructors.
func WithValidator(v *validation.Validator) Option {
	return func(c *Catalog) {
		c.validator = v
	}
}

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		defs:      make(map[string]*SegmentDef),
		scoped:    make(map[overrideKey]*SegmentDef),
		validator: validation.NewValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers a segment definition, replacing any existing definition
// with the same identifier. Overrides must be added after their base.
//
// PARAMETERS:
//   - def: the segment definition; implicit field positions are filled in.
//
// RETURNS:
//   - An error if the definition is invalid.
func (c *Catalog) Add(def SegmentDef) error {
	d := def.clone()
	if err := d.normalize(); err != nil {
		return fmt.Errorf("failed to add segment definition: %w", err)
	}
	c.defs[d.ID] = d
	return nil
}

// Definition returns the base definition for id.
func (c *Catalog) Definition(id string) (*SegmentDef, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// Definitions returns all base definitions sorted by identifier.
func (c *Catalog) Definitions() []*SegmentDef {
	defs := make([]*SegmentDef, 0, len(c.defs))
	for _, d := range c.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Len returns the number of base definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Lookup returns the constructor for the base definition of id.
func (c *Catalog) Lookup(id string) (Constructor, bool) {
	d, ok := c.defs[id]
	if !ok {
		return nil, false
	}
	return c.constructor(d), true
}

// constructor binds a definition into a Constructor.
func (c *Catalog) constructor(def *SegmentDef) Constructor {
	return func(raw types.RawSegment, delims types.Delimiters) (*types.Record, error) {
		return c.Construct(def, raw, delims)
	}
}

// =============================================================================
// RECORD CONSTRUCTION
// =============================================================================

// Construct validates raw against def and builds the typed Record.
//
// PARAMETERS:
//   - def: the (possibly overridden) segment definition.
//   - raw: the tokenized segment.
//   - delims: the interchange delimiters, used to split composite and
//     repeatable fields.
//
// RETURNS:
//   - The typed record, with non-fatal findings in Record.Warnings.
//   - A FieldError ParseError for the first fatal field failure, or when the
//     segment carries more elements than the definition declares.
func (c *Catalog) Construct(def *SegmentDef, raw types.RawSegment, delims types.Delimiters) (*types.Record, error) {
	if len(raw.Elements) > def.maxPosition() {
		return nil, types.Newf(types.KindField,
			"segment has %d elements, definition allows %d", len(raw.Elements), def.maxPosition()).
			AtSegment(raw.Index, raw.ID)
	}

	fields := make([]types.Field, 0, len(def.Fields))
	var warnings []string

	for _, fd := range def.Fields {
		value := raw.Element(fd.Position)
		field := types.Field{Name: fd.Name, Position: fd.Position, Value: value}

		if fd.NotUsed {
			if value != "" {
				return nil, fieldError(raw, fd, "field is not used in this context")
			}
			fields = append(fields, field)
			continue
		}

		checked := []string{value}
		if fd.Repeatable && delims.HasRepetition() && value != "" {
			field.Repeats = strings.Split(value, string(delims.Repetition))
			checked = append([]string(nil), field.Repeats...)
		}
		if fd.Composite && value != "" {
			sep := string(delims.Component)
			field.Components = strings.Split(checked[0], sep)
			if len(field.Repeats) > 1 {
				field.RepeatComponents = make([][]string, len(field.Repeats))
				for i, occurrence := range field.Repeats {
					field.RepeatComponents[i] = strings.Split(occurrence, sep)
				}
			}
			for i, occurrence := range checked {
				checked[i], _, _ = strings.Cut(occurrence, sep)
			}
		}

		for _, v := range checked {
			errs := c.validator.ValidateField(v, fd.spec(def.ID), raw.Index)
			if fatal := validation.FirstFatal(errs); fatal != nil {
				return nil, fieldError(raw, fd, fatal.Message).Wrap(fatal)
			}
			for _, w := range errs {
				warnings = append(warnings, w.Error())
			}
		}
		fields = append(fields, field)
	}

	rec := types.NewRecord(raw, def.Name, fields)
	rec.Warnings = warnings
	return rec, nil
}

func fieldError(raw types.RawSegment, fd FieldDef, msg string) *types.ParseError {
	err := types.Newf(types.KindField, "%s%02d: %s", raw.ID, fd.Position, msg).AtSegment(raw.Index, raw.ID)
	err.Field = fd.Name
	return err
}
