// =============================================================================
// X12 Parser - Schema Validator
// =============================================================================
//
// A Schema describes the structural shape of one transaction set: which
// loops may appear where, how often, and which segments each loop holds in
// which order. Validate walks a finished tree and reports every deviation,
// then applies the loop-scoped segment overrides of the catalog now that
// each record's loop is known.
//
// Schemas are declared in code next to the match rules of their transaction
// set (see internal/transactions):
//
//   schema.Loop("2100C", 1, 1,
//       schema.Segs(schema.Seg("NM1", 1, 1), schema.Seg("DMG", 0, 1)),
//       schema.Loop("2110C", 0, 99, schema.Segs(schema.Seg("EQ", 1, 1))),
//   )
//
// =============================================================================

package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/segments"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// Unbounded is the Max of a segment or loop without an upper limit.
const Unbounded = 0

// SegmentUsage is one segment slot of a loop.
type SegmentUsage struct {
	ID  string
	Min int
	Max int
}

// LoopSpec is the shape of a loop.
type LoopSpec struct {
	Name     string
	Min      int
	Max      int
	Segments []SegmentUsage
	Loops    []LoopSpec
}

// Seg declares a segment slot.
func Seg(id string, minOccurs, maxOccurs int) SegmentUsage {
	return SegmentUsage{ID: id, Min: minOccurs, Max: maxOccurs}
}

// Segs groups segment slots; it only exists to make declarations read well.
func Segs(usages ...SegmentUsage) []SegmentUsage {
	return usages
}

// Loop declares a loop.
func Loop(name string, minOccurs, maxOccurs int, segs []SegmentUsage, loops ...LoopSpec) LoopSpec {
	return LoopSpec{Name: name, Min: minOccurs, Max: maxOccurs, Segments: segs, Loops: loops}
}

// Schema is the shape of one transaction set.
type Schema struct {
	TransactionSet string
	Version        string
	Root           LoopSpec

	// Catalog supplies loop-scoped overrides; nil skips them.
	Catalog *segments.Catalog
}

// New creates a schema. The root loop is named after the transaction set.
func New(txSet, version string, catalog *segments.Catalog, loops ...LoopSpec) *Schema {
	return &Schema{
		TransactionSet: txSet,
		Version:        version,
		Root:           LoopSpec{Name: txSet, Min: 1, Max: 1, Loops: loops},
		Catalog:        catalog,
	}
}

// Validate checks the tree against the schema.
//
// RETURNS:
//   - nil when the tree conforms.
//   - A SchemaViolation ParseError. With several violations it carries the
//     position of the first and wraps all of them, in document order.
func (s *Schema) Validate(tree *parsing.Tree) error {
	if tree.TransactionSet != s.TransactionSet {
		return types.Newf(types.KindSchemaViolation,
			"schema for %s cannot validate transaction set %s", s.TransactionSet, tree.TransactionSet)
	}
	w := &walker{schema: s, tree: tree}
	w.loop(tree.Root, &s.Root)

	switch len(w.errs) {
	case 0:
		return nil
	case 1:
		return w.errs[0]
	}
	first := w.errs[0]
	joined := make([]error, len(w.errs))
	for i, e := range w.errs {
		joined[i] = e
	}
	err := types.Newf(types.KindSchemaViolation, "%d schema violations, first: %s", len(w.errs), first.Message).
		AtSegment(first.SegmentIndex, first.SegmentID).
		Wrap(errors.Join(joined...))
	err.LoopPath = first.LoopPath
	err.TransactionSet = first.TransactionSet
	err.ControlNumber = first.ControlNumber
	return err
}

// Violations returns the individual violations carried by an error returned
// from Validate.
func Violations(err error) []*types.ParseError {
	var pe *types.ParseError
	if !errors.As(err, &pe) || pe.Kind != types.KindSchemaViolation {
		return nil
	}
	joined, ok := pe.Err.(interface{ Unwrap() []error })
	if !ok {
		return []*types.ParseError{pe}
	}
	var out []*types.ParseError
	for _, e := range joined.Unwrap() {
		if v, ok := e.(*types.ParseError); ok {
			out = append(out, v)
		}
	}
	return out
}

type walker struct {
	schema *Schema
	tree   *parsing.Tree
	errs   []*types.ParseError
}

func (w *walker) fail(l *parsing.Loop, rec *types.Record, format string, args ...any) *types.ParseError {
	err := types.Newf(types.KindSchemaViolation, format, args...)
	err.LoopPath = strings.Join(l.Path(), "/")
	err.TransactionSet = w.tree.TransactionSet
	err.ControlNumber = w.tree.ControlNumber
	if rec != nil {
		err.AtSegment(rec.Index(), rec.ID())
	}
	w.errs = append(w.errs, err)
	return err
}

func (w *walker) loop(l *parsing.Loop, spec *LoopSpec) {
	w.segments(l, spec)

	for _, name := range l.ChildNames() {
		child := findLoop(spec, name)
		if child == nil {
			inst := l.Instances(name)[0]
			var first *types.Record
			if len(inst.Segments) > 0 {
				first = inst.Segments[0]
			}
			w.fail(inst, first, "loop %s is not allowed in %s", name, l.Name)
		}
	}

	for i := range spec.Loops {
		child := &spec.Loops[i]
		instances := l.Instances(child.Name)
		if len(instances) < child.Min {
			w.fail(l, nil, "loop %s occurs %d times, at least %d required", child.Name, len(instances), child.Min)
		}
		if child.Max != Unbounded && len(instances) > child.Max {
			w.fail(instances[child.Max], firstSegment(instances[child.Max]),
				"loop %s occurs %d times, at most %d allowed", child.Name, len(instances), child.Max)
		}
		for _, inst := range instances {
			w.loop(inst, child)
		}
	}
}

func (w *walker) segments(l *parsing.Loop, spec *LoopSpec) {
	counts := make(map[string]int)
	lastSlot := -1
	for _, rec := range l.Segments {
		slot := findSegment(spec, rec.ID())
		if slot < 0 {
			w.fail(l, rec, "segment %s is not allowed in loop %s", rec.ID(), l.Name)
			continue
		}
		if slot < lastSlot {
			w.fail(l, rec, "segment %s is out of order in loop %s", rec.ID(), l.Name)
		}
		lastSlot = slot
		counts[rec.ID()]++
		w.override(l, rec)
	}

	for _, usage := range spec.Segments {
		n := counts[usage.ID]
		if n < usage.Min {
			w.fail(l, firstSegment(l), "segment %s occurs %d times in loop %s, at least %d required", usage.ID, n, l.Name, usage.Min)
		}
		if usage.Max != Unbounded && n > usage.Max {
			w.fail(l, l.SegmentsByID(usage.ID)[usage.Max], "segment %s occurs %d times in loop %s, at most %d allowed", usage.ID, n, l.Name, usage.Max)
		}
	}
}

// override applies the catalog's loop-scoped definition of rec, if any.
func (w *walker) override(l *parsing.Loop, rec *types.Record) {
	if w.schema.Catalog == nil {
		return
	}
	def, ok := w.schema.Catalog.LoopDefinition(w.tree.TransactionSet, l.Name, rec.ID())
	if !ok {
		return
	}
	if err := w.schema.Catalog.Check(def, rec, w.tree.Delimiters); err != nil {
		pe := w.fail(l, rec, "segment %s does not satisfy loop %s usage", rec.ID(), l.Name)
		pe.Wrap(err)
		var fe *types.ParseError
		if errors.As(err, &fe) {
			pe.Field = fe.Field
		}
	}
}

func findLoop(spec *LoopSpec, name string) *LoopSpec {
	for i := range spec.Loops {
		if spec.Loops[i].Name == name {
			return &spec.Loops[i]
		}
	}
	return nil
}

func findSegment(spec *LoopSpec, id string) int {
	for i, u := range spec.Segments {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func firstSegment(l *parsing.Loop) *types.Record {
	if len(l.Segments) == 0 {
		return nil
	}
	return l.Segments[0]
}

// String renders the schema outline, one loop per line.
func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.TransactionSet, s.Version)
	var walk func(spec *LoopSpec, depth int)
	walk = func(spec *LoopSpec, depth int) {
		for i := range spec.Loops {
			child := &spec.Loops[i]
			ids := make([]string, len(child.Segments))
			for j, u := range child.Segments {
				ids[j] = u.ID
			}
			fmt.Fprintf(&b, "%s%s [%s]\n", strings.Repeat("  ", depth+1), child.Name, strings.Join(ids, " "))
			walk(child, depth+1)
		}
	}
	walk(&s.Root, 0)
	return b.String()
}
