// =============================================================================
// X12 Parser - Transaction Overrides
// =============================================================================
//
// Implementation guides narrow the base segments. The 270 subscriber name
// (loop 2100C) only allows NM101 = "IL", the 837 billing provider (2010AA)
// requires NM109, and so on. An Override describes such a narrowing for a
// (transaction set, loop, segment) key:
//
//   - Loop == "":  applies to the segment everywhere in the transaction set
//                  and is used when the record is constructed.
//   - Loop != "":  applies to the segment inside that loop only. The loop is
//                  not known until the record has been placed, so these are
//                  checked by the schema validator on the finished tree.
//
// =============================================================================

package segments

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/x12-parser/internal/types"
)

// Field usages accepted by FieldOverride.Usage.
const (
	UsageRequired = "required"
	UsageOptional = "optional"
	UsageNotUsed  = "not_used"
)

// Override narrows a base segment definition.
type Override struct {
	TransactionSet string          `yaml:"transaction_set"`
	Loop           string          `yaml:"loop,omitempty"`
	Segment        string          `yaml:"segment"`
	Fields         []FieldOverride `yaml:"fields"`
}

// FieldOverride narrows one field. Zero values leave the base unchanged.
type FieldOverride struct {
	Name      string   `yaml:"name"`
	Usage     string   `yaml:"usage,omitempty"`
	Allowed   []string `yaml:"allowed,omitempty,flow"`
	MinLength int      `yaml:"min,omitempty"`
	MaxLength int      `yaml:"max,omitempty"`
}

type overrideKey struct {
	txSet   string
	loop    string
	segment string
}

// AddOverride merges o into its base definition and stores the result.
//
// RETURNS:
//   - An error if the base segment or a named field does not exist, or if a
//     usage is not one of required, optional or not_used.
func (c *Catalog) AddOverride(o Override) error {
	base, ok := c.defs[o.Segment]
	if !ok {
		return fmt.Errorf("failed to add override for %s/%s: unknown segment %s", o.TransactionSet, o.Loop, o.Segment)
	}
	if o.TransactionSet == "" {
		return fmt.Errorf("failed to add override for %s: transaction set is required", o.Segment)
	}

	key := overrideKey{txSet: o.TransactionSet, loop: o.Loop, segment: o.Segment}

	// Loop overrides build on the transaction-wide override when there is one.
	start := base
	if o.Loop != "" {
		if wide, ok := c.scoped[overrideKey{txSet: o.TransactionSet, segment: o.Segment}]; ok {
			start = wide
		}
	}
	if existing, ok := c.scoped[key]; ok {
		start = existing
	}

	merged := start.clone()
	for _, fo := range o.Fields {
		if err := applyFieldOverride(merged, fo); err != nil {
			return fmt.Errorf("failed to add override for %s/%s/%s: %w", o.TransactionSet, o.Loop, o.Segment, err)
		}
	}

	c.scoped[key] = merged
	c.overrides = append(c.overrides, o)
	return nil
}

func applyFieldOverride(def *SegmentDef, fo FieldOverride) error {
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Name != fo.Name {
			continue
		}
		switch fo.Usage {
		case "":
		case UsageRequired:
			f.Required, f.NotUsed = true, false
		case UsageOptional:
			f.Required, f.NotUsed = false, false
		case UsageNotUsed:
			f.Required, f.NotUsed = false, true
		default:
			return fmt.Errorf("field %s: unknown usage %q", fo.Name, fo.Usage)
		}
		if len(fo.Allowed) > 0 {
			f.Allowed = append([]string(nil), fo.Allowed...)
		}
		if fo.MinLength > 0 {
			f.MinLength = fo.MinLength
		}
		if fo.MaxLength > 0 {
			f.MaxLength = fo.MaxLength
		}
		return nil
	}
	return fmt.Errorf("unknown field %q", fo.Name)
}

// Overrides returns the added overrides sorted by transaction set, loop and
// segment.
func (c *Catalog) Overrides() []Override {
	out := append([]Override(nil), c.overrides...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TransactionSet != b.TransactionSet {
			return a.TransactionSet < b.TransactionSet
		}
		if a.Loop != b.Loop {
			return a.Loop < b.Loop
		}
		return a.Segment < b.Segment
	})
	return out
}

// LoopDefinition returns the merged definition of segment inside loop of the
// transaction set, if a loop override exists.
func (c *Catalog) LoopDefinition(txSet, loop, segment string) (*SegmentDef, bool) {
	d, ok := c.scoped[overrideKey{txSet: txSet, loop: loop, segment: segment}]
	return d, ok
}

// Check re-validates an already constructed record against def. It is used
// for loop overrides once the record's loop is known.
func (c *Catalog) Check(def *SegmentDef, rec *types.Record, delims types.Delimiters) error {
	_, err := c.Construct(def, rec.Raw, delims)
	return err
}

// =============================================================================
// TRANSACTION SCOPE
// =============================================================================

// Scope is a Registry view of the catalog with the transaction-wide
// overrides of one transaction set applied.
type Scope struct {
	catalog *Catalog
	txSet   string
}

// ForTransaction returns the registry for a transaction set code.
func (c *Catalog) ForTransaction(txSet string) Registry {
	return &Scope{catalog: c, txSet: txSet}
}

// Lookup returns the overridden constructor when one exists, otherwise the
// base constructor.
func (s *Scope) Lookup(id string) (Constructor, bool) {
	if d, ok := s.catalog.scoped[overrideKey{txSet: s.txSet, segment: id}]; ok {
		return s.catalog.constructor(d), true
	}
	return s.catalog.Lookup(id)
}
