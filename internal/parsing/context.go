// =============================================================================
// X12 Parser - Parsing Context
// =============================================================================
//
// A Context is the mutable state of one transaction set parse:
//   - the tree under construction and the loop cursor into it
//   - the hierarchy stack (path from the HL root to the current HL node)
//   - free-form markers handlers use to remember structural state, such as
//     an open LS/LE wrapper
//   - a reference to the envelope stack shared with the rest of the
//     interchange
//
// Match rule handlers receive the Context and change the tree only through
// its methods. A Context must never be shared between concurrent parses.
//
// =============================================================================

package parsing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/types"
)

// HL field names read by OpenHierarchy.
const (
	FieldHierarchicalID       = "hierarchical_id_number"
	FieldHierarchicalParentID = "hierarchical_parent_id_number"
	FieldHierarchicalLevel    = "hierarchical_level_code"
	FieldHierarchicalChild    = "hierarchical_child_code"
)

// Context is the per-transaction-set parsing state.
type Context struct {
	tree      *Tree
	envelopes *EnvelopeStack
	cursor    *Loop
	stack     []*HierarchyNode
	seen      map[string]*HierarchyNode
	markers   map[string]string
}

// NewContext creates the context for one transaction set. The cursor starts
// on the tree's header loop.
func NewContext(tree *Tree, envelopes *EnvelopeStack) *Context {
	return &Context{
		tree:      tree,
		envelopes: envelopes,
		cursor:    tree.Header(),
		seen:      make(map[string]*HierarchyNode),
		markers:   make(map[string]string),
	}
}

// Tree returns the tree under construction.
func (c *Context) Tree() *Tree {
	return c.tree
}

// Envelopes returns the shared envelope stack.
func (c *Context) Envelopes() *EnvelopeStack {
	return c.envelopes
}

// Delimiters returns the interchange delimiters.
func (c *Context) Delimiters() types.Delimiters {
	return c.tree.Delimiters
}

// =============================================================================
// CURSOR
// =============================================================================

// CurrentLoop returns the loop non-structural segments attach to.
func (c *Context) CurrentLoop() *Loop {
	return c.cursor
}

// Attach appends rec to the current loop.
func (c *Context) Attach(rec *types.Record) {
	c.cursor.Attach(rec)
}

// InLoop reports whether the current loop is named name.
func (c *Context) InLoop(name string) bool {
	return c.cursor.Name == name
}

// WithinLoop reports whether the current loop or one of its ancestors is
// named name.
func (c *Context) WithinLoop(name string) bool {
	return c.findAncestor(name) != nil
}

// LoopPath returns the cursor's loop path, e.g. "2000A/2000B/2100B".
func (c *Context) LoopPath() string {
	return strings.Join(c.cursor.Path(), "/")
}

// Ascend moves the cursor to the nearest loop named name on the cursor path.
//
// RETURNS:
//   - A LoopPlacement error if no such loop is open.
func (c *Context) Ascend(name string) (*Loop, error) {
	l := c.findAncestor(name)
	if l == nil {
		return nil, types.Newf(types.KindLoopPlacement, "loop %s is not open", name)
	}
	c.cursor = l
	return l, nil
}

func (c *Context) findAncestor(name string) *Loop {
	for l := c.cursor; l != nil; l = l.Parent {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// OpenLoop opens a non-hierarchical loop instance, attaches rec as its first
// segment and moves the cursor into it.
//
// PARAMETERS:
//   - name: the loop name, e.g. "2100C".
//   - rec: the segment that opens the loop.
//   - under: the loop names the new loop may nest under. The nearest loop on
//     the cursor path with one of these names becomes the parent. When empty,
//     the parent is the current HL loop, or the transaction root when no HL
//     loop is open.
//
// RETURNS:
//   - The new loop.
//   - A LoopPlacement error when none of the parents is on the cursor path.
func (c *Context) OpenLoop(name string, rec *types.Record, under ...string) (*Loop, error) {
	var parent *Loop
	if len(under) == 0 {
		parent = c.tree.Root
		if node := c.CurrentHierarchy(); node != nil {
			parent = node.Loop
		}
	} else {
		for l := c.cursor; l != nil && parent == nil; l = l.Parent {
			for _, n := range under {
				if l.Name == n {
					parent = l
					break
				}
			}
		}
	}
	if parent == nil {
		return nil, types.Newf(types.KindLoopPlacement,
			"loop %s must be inside %s", name, strings.Join(under, " or "))
	}

	loop := NewLoop(name)
	parent.AddChild(loop)
	if rec != nil {
		loop.Attach(rec)
	}
	c.cursor = loop
	return loop, nil
}

// Close ends the transaction set: SE is attached to a new footer loop.
func (c *Context) Close(trailer *types.Record) {
	footer := NewLoop(FooterLoop)
	c.tree.Root.AddChild(footer)
	footer.Attach(trailer)
	c.cursor = footer
	c.stack = nil
}

// =============================================================================
// HIERARCHY
// =============================================================================

// CurrentHierarchy returns the HL node at the top of the hierarchy stack.
func (c *Context) CurrentHierarchy() *HierarchyNode {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// HierarchyPath returns the HL01 ids on the hierarchy stack, root first.
func (c *Context) HierarchyPath() []string {
	ids := make([]string, len(c.stack))
	for i, n := range c.stack {
		ids[i] = n.ID
	}
	return ids
}

// OpenHierarchy opens the HL loop described by rec.
//
// A record without a parent id starts a new hierarchy root and resets the
// stack. Otherwise the stack is popped until its top is the parent; the new
// node becomes that node's child and its loop nests inside the parent's
// loop. The cursor moves into the new loop.
//
// PARAMETERS:
//   - rec: the HL record.
//   - loopName: the loop the HL opens, e.g. "2000B".
//
// RETURNS:
//   - The new node.
//   - DuplicateHierarchyID if HL01 was already used in this transaction set.
//   - OrphanedHierarchyLoop if HL02 names no node on the stack. The stack is
//     left unchanged in that case.
func (c *Context) OpenHierarchy(rec *types.Record, loopName string) (*HierarchyNode, error) {
	node := &HierarchyNode{
		ID:        rec.Get(FieldHierarchicalID),
		ParentID:  rec.Get(FieldHierarchicalParentID),
		LevelCode: rec.Get(FieldHierarchicalLevel),
		ChildCode: rec.Get(FieldHierarchicalChild),
	}
	if node.ID == "" {
		return nil, types.Newf(types.KindField, "hierarchical id is empty")
	}
	if _, dup := c.seen[node.ID]; dup {
		return nil, types.Newf(types.KindDuplicateHierarchyID, "hierarchical id %s is already in use", node.ID)
	}

	node.Loop = NewLoop(loopName)
	node.Loop.Hierarchy = node
	node.Loop.Attach(rec)

	if node.ParentID == "" {
		c.tree.Root.AddChild(node.Loop)
		c.tree.Hierarchy = append(c.tree.Hierarchy, node)
		c.stack = []*HierarchyNode{node}
	} else {
		depth := len(c.stack)
		for depth > 0 && c.stack[depth-1].ID != node.ParentID {
			depth--
		}
		if depth == 0 {
			return nil, types.Newf(types.KindOrphanedHierarchyLoop,
				"parent hierarchical id %s is not an open ancestor", node.ParentID)
		}
		parent := c.stack[depth-1]
		node.Parent = parent
		parent.Children = append(parent.Children, node)
		parent.Loop.AddChild(node.Loop)
		c.stack = append(c.stack[:depth], node)
	}

	c.seen[node.ID] = node
	c.cursor = node.Loop
	return node, nil
}

// =============================================================================
// MARKERS
// =============================================================================

// SetMarker records structural state under key. An empty value clears it.
func (c *Context) SetMarker(key, value string) {
	if value == "" {
		delete(c.markers, key)
		return
	}
	c.markers[key] = value
}

// Marker returns the value stored under key.
func (c *Context) Marker(key string) string {
	return c.markers[key]
}

// =============================================================================
// ERROR CONTEXT
// =============================================================================

// Annotate fills the positional context of a ParseError from the current
// state: segment, loop path, hierarchy path and transaction set. Fields that
// are already set are kept. Errors that are not ParseErrors are wrapped as
// KindUnknown.
func (c *Context) Annotate(err error, rec *types.Record) *types.ParseError {
	var pe *types.ParseError
	if !errors.As(err, &pe) {
		pe = types.Newf(types.KindUnknown, "%s", err.Error()).Wrap(err)
	}
	if pe.SegmentIndex == 0 && rec != nil {
		pe.SegmentIndex = rec.Index()
	}
	if pe.SegmentID == "" && rec != nil {
		pe.SegmentID = rec.ID()
	}
	if pe.LoopPath == "" {
		pe.LoopPath = c.LoopPath()
	}
	if pe.HierarchyPath == nil && len(c.stack) > 0 {
		pe.HierarchyPath = c.HierarchyPath()
	}
	if pe.TransactionSet == "" {
		pe.TransactionSet = c.tree.TransactionSet
		pe.ControlNumber = c.tree.ControlNumber
	}
	return pe
}

// String renders the context state for debug logs.
func (c *Context) String() string {
	return fmt.Sprintf("tx=%s/%s loop=%s hl=%s",
		c.tree.TransactionSet, c.tree.ControlNumber, c.LoopPath(), strings.Join(c.HierarchyPath(), ">"))
}
