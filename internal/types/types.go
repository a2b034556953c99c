// =============================================================================
// X12 Parser - Shared Types
// =============================================================================
//
// This package contains the value types shared by every stage of the parsing
// engine. Keeping them here avoids import cycles between:
//   - tokenizer   (produces RawSegment values)
//   - segments    (turns RawSegment values into Record values)
//   - parsing     (stores Record values in the transaction tree)
//   - engine      (drives all of the above)
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// DELIMITERS
// =============================================================================

// Delimiters holds the four control characters discovered in the interchange
// header. They are fixed for the life of one interchange.
type Delimiters struct {
	// Segment terminates every segment (ISA16 follows it).
	Segment byte

	// Element separates the elements of a segment.
	Element byte

	// Component separates the sub-elements of a composite element (ISA16).
	Component byte

	// Repetition separates repeated occurrences of one element (ISA11).
	// Zero when the interchange control version predates repetition support.
	Repetition byte
}

// DefaultDelimiters returns the delimiters most trading partners use.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Segment:    '~',
		Element:    '*',
		Component:  ':',
		Repetition: '^',
	}
}

// HasRepetition reports whether the interchange declared a repetition separator.
func (d Delimiters) HasRepetition() bool {
	return d.Repetition != 0
}

// Validate checks that every declared delimiter is set and that no two coincide.
func (d Delimiters) Validate() error {
	named := []struct {
		name string
		char byte
	}{
		{"segment terminator", d.Segment},
		{"element separator", d.Element},
		{"component separator", d.Component},
	}
	if d.HasRepetition() {
		named = append(named, struct {
			name string
			char byte
		}{"repetition separator", d.Repetition})
	}

	for i, a := range named {
		if a.char == 0 {
			return fmt.Errorf("%s is not set", a.name)
		}
		for _, b := range named[i+1:] {
			if a.char == b.char {
				return fmt.Errorf("%s and %s are both %q", a.name, b.name, a.char)
			}
		}
	}
	return nil
}

// String renders the delimiters for logs, e.g. `seg="~" elem="*" comp=":" rep="^"`.
func (d Delimiters) String() string {
	rep := ""
	if d.HasRepetition() {
		rep = string(d.Repetition)
	}
	return fmt.Sprintf("seg=%q elem=%q comp=%q rep=%q",
		string(d.Segment), string(d.Element), string(d.Component), rep)
}

// =============================================================================
// RAW SEGMENT
// =============================================================================

// RawSegment is one tokenized segment: the identifier plus its raw elements.
// Components and repetitions inside an element are not split here.
type RawSegment struct {
	// Index is the 1-based position of the segment in the interchange.
	Index int

	// ID is the segment identifier, e.g. "HL" or "NM1".
	ID string

	// Elements holds the raw element strings after the identifier.
	// Elements[0] is the first element (e.g. HL01).
	Elements []string
}

// Element returns the element at the 1-based X12 position, or "" when the
// segment is shorter than that.
func (s RawSegment) Element(position int) string {
	if position < 1 || position > len(s.Elements) {
		return ""
	}
	return s.Elements[position-1]
}

// Encode renders the segment with the given delimiters, without the terminator.
func (s RawSegment) Encode(d Delimiters) string {
	if len(s.Elements) == 0 {
		return s.ID
	}
	sep := string(d.Element)
	return s.ID + sep + strings.Join(s.Elements, sep)
}

// =============================================================================
// TYPED RECORD
// =============================================================================

// Field is one named, validated element of a Record.
type Field struct {
	// Name is the catalog name of the field, e.g. "hierarchical_id_number".
	Name string

	// Position is the 1-based element position within the segment.
	Position int

	// Value is the raw element string.
	Value string

	// Components holds the component-separated parts of a composite field.
	// For a field that is also repeatable, these are the first occurrence's.
	Components []string

	// Repeats holds the repetition-separated occurrences of a repeatable field.
	Repeats []string

	// RepeatComponents holds the components of every occurrence of a field
	// that is both repeatable and composite, parallel to Repeats.
	RepeatComponents [][]string
}

// Record is a RawSegment whose elements were checked against a segment
// definition and given names. It is the TypedRecord handed to match rules.
type Record struct {
	// Raw is the tokenized source segment.
	Raw RawSegment

	// Name is the descriptive segment name, e.g. "Hierarchical Level".
	Name string

	// Fields holds the declared fields in element order.
	Fields []Field

	// Warnings holds non-fatal validation findings, e.g. characters outside
	// the configured character set.
	Warnings []string

	byName map[string]int
}

// NewRecord builds a Record and indexes its fields by name.
func NewRecord(raw RawSegment, name string, fields []Field) *Record {
	r := &Record{
		Raw:    raw,
		Name:   name,
		Fields: fields,
		byName: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		r.byName[f.Name] = i
	}
	return r
}

// ID returns the segment identifier.
func (r *Record) ID() string {
	return r.Raw.ID
}

// Index returns the 1-based segment index in the interchange.
func (r *Record) Index() int {
	return r.Raw.Index
}

// Get returns the value of the named field, or "" when absent.
func (r *Record) Get(name string) string {
	if f, ok := r.Field(name); ok {
		return f.Value
	}
	return ""
}

// Field returns the named field.
func (r *Record) Field(name string) (Field, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Field{}, false
	}
	return r.Fields[i], true
}

// Element returns the raw element at the 1-based position.
func (r *Record) Element(position int) string {
	return r.Raw.Element(position)
}

// X12 re-encodes the record with the given delimiters, terminator included.
func (r *Record) X12(d Delimiters) string {
	return r.Raw.Encode(d) + string(d.Segment)
}
