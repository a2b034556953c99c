// =============================================================================
// X12 Parser - Transaction Tree
// =============================================================================
//
// A transaction set is assembled into a tree of loop instances:
//
//   270 (root)
//   ├── header            ST, BHT
//   ├── 2000A             HL*1**20*1
//   │   ├── 2100A         NM1*PR
//   │   └── 2000B         HL*2*1*21*1
//   │       ├── 2100B     NM1*1P
//   │       └── 2000C     HL*3*2*22*0
//   │           └── 2100C NM1*IL, DMG, DTP
//   │               └── 2110C EQ
//   └── footer            SE
//
// Child loops are kept in arrival order. The loop-name view (ChildNames,
// Instances) groups them by name for renderers and the schema validator.
//
// =============================================================================

package parsing

import (
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// Well-known loop names.
const (
	HeaderLoop = "header"
	FooterLoop = "footer"
)

// =============================================================================
// LOOP
// =============================================================================

// Loop is one instance of a loop in the transaction tree.
type Loop struct {
	// Name is the implementation guide loop identifier, e.g. "2100C".
	Name string

	// Segments holds the records attached to this loop instance in order.
	Segments []*types.Record

	// Children holds the nested loop instances in arrival order.
	Children []*Loop

	// Parent is the enclosing loop; nil for the transaction root.
	Parent *Loop

	// Hierarchy is set when the loop was opened by an HL segment.
	Hierarchy *HierarchyNode
}

// NewLoop creates an empty loop.
func NewLoop(name string) *Loop {
	return &Loop{Name: name}
}

// AddChild appends a child loop instance.
func (l *Loop) AddChild(child *Loop) {
	child.Parent = l
	l.Children = append(l.Children, child)
}

// Attach appends a record to the loop.
func (l *Loop) Attach(rec *types.Record) {
	l.Segments = append(l.Segments, rec)
}

// ChildNames returns the distinct child loop names in first-seen order.
func (l *Loop) ChildNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, c := range l.Children {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	return names
}

// Instances returns the child loop instances named name.
func (l *Loop) Instances(name string) []*Loop {
	var out []*Loop
	for _, c := range l.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// SegmentsByID returns the attached records with the given identifier.
func (l *Loop) SegmentsByID(id string) []*types.Record {
	var out []*types.Record
	for _, r := range l.Segments {
		if r.ID() == id {
			out = append(out, r)
		}
	}
	return out
}

// First returns the first attached record with the given identifier.
func (l *Loop) First(id string) (*types.Record, bool) {
	for _, r := range l.Segments {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// Path returns the loop names from the root's child down to l.
func (l *Loop) Path() []string {
	var path []string
	for cur := l; cur != nil && cur.Parent != nil; cur = cur.Parent {
		path = append([]string{cur.Name}, path...)
	}
	return path
}

// Walk visits l and its descendants depth first, segments before children.
// Returning false from fn skips the loop's children.
func (l *Loop) Walk(fn func(*Loop) bool) {
	if !fn(l) {
		return
	}
	for _, c := range l.Children {
		c.Walk(fn)
	}
}

// =============================================================================
// HIERARCHY
// =============================================================================

// HierarchyNode is one HL loop instance.
type HierarchyNode struct {
	// ID is HL01.
	ID string

	// ParentID is HL02; empty for a root.
	ParentID string

	// LevelCode is HL03, e.g. "20" information source, "22" subscriber.
	LevelCode string

	// ChildCode is HL04: "1" when child levels follow.
	ChildCode string

	// Loop is the loop instance opened by the HL segment.
	Loop *Loop

	Parent   *HierarchyNode
	Children []*HierarchyNode
}

// Depth returns 0 for a root node.
func (n *HierarchyNode) Depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// =============================================================================
// TREE
// =============================================================================

// Tree is the assembled transaction set.
type Tree struct {
	// TransactionSet is ST01, e.g. "270".
	TransactionSet string

	// ControlNumber is ST02.
	ControlNumber string

	// Version is the implementation version (ST03, or GS08 when absent).
	Version string

	// VersionKey is ISA12-GS01-GS08-ST01, e.g. "00501-HS-005010X279A1-270".
	VersionKey string

	// Delimiters are the interchange delimiters.
	Delimiters types.Delimiters

	// Root is the transaction loop; its first child is the header loop and,
	// once SE has been read, its last child is the footer loop.
	Root *Loop

	// Hierarchy holds the root HL nodes in arrival order.
	Hierarchy []*HierarchyNode

	// SegmentCount is the number of segments from ST to SE inclusive.
	SegmentCount int
}

// NewTree creates a tree with an empty header loop.
func NewTree(txSet, control, version string, delims types.Delimiters) *Tree {
	root := NewLoop(txSet)
	root.AddChild(NewLoop(HeaderLoop))
	return &Tree{
		TransactionSet: txSet,
		ControlNumber:  control,
		Version:        version,
		Delimiters:     delims,
		Root:           root,
	}
}

// Header returns the header loop.
func (t *Tree) Header() *Loop {
	return t.Root.Children[0]
}

// Footer returns the footer loop, or nil before SE.
func (t *Tree) Footer() *Loop {
	last := t.Root.Children[len(t.Root.Children)-1]
	if last.Name != FooterLoop {
		return nil
	}
	return last
}

// Records returns every record in document order.
func (t *Tree) Records() []*types.Record {
	var out []*types.Record
	t.Root.Walk(func(l *Loop) bool {
		out = append(out, l.Segments...)
		return true
	})
	return out
}

// FindLoops returns every loop instance with the given name, depth first.
func (t *Tree) FindLoops(name string) []*Loop {
	var out []*Loop
	t.Root.Walk(func(l *Loop) bool {
		if l.Name == name {
			out = append(out, l)
		}
		return true
	})
	return out
}
