// =============================================================================
// X12 Parser - Match Rule Registry
// =============================================================================
//
// A Registry is an ordered table of match rules for one transaction set.
// Each rule pairs a segment identifier and an optional predicate with the
// handler that places the segment in the tree.
//
// RESOLUTION:
//   Rules for the same identifier are evaluated in registration order and
//   the first rule whose predicate passes (or which has none) wins. Register
//   conditioned rules before the unconditioned fallback for the same
//   identifier, otherwise the fallback shadows them.
//
// The table is built once at startup and is read-only afterwards, so one
// Registry can serve concurrent parses.
//
// =============================================================================

package rules

import (
	"fmt"
	"log/slog"

	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// Handler places a record in the tree through the context.
type Handler func(rec *types.Record, ctx *parsing.Context) error

// Predicate decides whether a rule applies to a record.
type Predicate func(rec *types.Record, ctx *parsing.Context) bool

// Rule is one registered match rule.
type Rule struct {
	// Name describes the rule for logs and listings.
	Name string

	// SegmentID is the identifier the rule applies to.
	SegmentID string

	// Predicate is optional; nil matches every record.
	Predicate Predicate

	// Handler places the record.
	Handler Handler

	// Order is the global registration order, starting at 0.
	Order int
}

// Registry is an ordered rule table.
type Registry struct {
	name    string
	bySeg   map[string][]*Rule
	ordered []*Rule
}

// New creates an empty registry. The name is used in logs.
func New(name string) *Registry {
	return &Registry{
		name:  name,
		bySeg: make(map[string][]*Rule),
	}
}

// Name returns the registry name.
func (r *Registry) Name() string {
	return r.name
}

// RuleOption configures a rule at registration.
type RuleOption func(*Rule)

// WithName names a rule.
func WithName(name string) RuleOption {
	return func(rule *Rule) {
		rule.Name = name
	}
}

// Register appends a rule. It panics when segmentID is empty or handler is
// nil, since the table is built from code at startup.
//
// PARAMETERS:
//   - segmentID: the segment identifier, e.g. "NM1".
//   - pred: the predicate, or nil for an unconditioned rule.
//   - handler: the handler invoked when the rule is selected.
//
// RETURNS:
//   - The registry, for chaining.
func (r *Registry) Register(segmentID string, pred Predicate, handler Handler, opts ...RuleOption) *Registry {
	if segmentID == "" {
		panic("rules: segment identifier is required")
	}
	if handler == nil {
		panic(fmt.Sprintf("rules: nil handler for %s in %s", segmentID, r.name))
	}

	rule := &Rule{
		SegmentID: segmentID,
		Predicate: pred,
		Handler:   handler,
		Order:     len(r.ordered),
	}
	for _, opt := range opts {
		opt(rule)
	}
	if rule.Name == "" {
		rule.Name = fmt.Sprintf("%s#%d", segmentID, len(r.bySeg[segmentID]))
	}

	r.bySeg[segmentID] = append(r.bySeg[segmentID], rule)
	r.ordered = append(r.ordered, rule)
	slog.Debug("Registered match rule.", "registry", r.name, "segment", segmentID, "rule", rule.Name)
	return r
}

// Resolve returns the first rule for rec's identifier whose predicate
// passes, or false when none does.
func (r *Registry) Resolve(rec *types.Record, ctx *parsing.Context) (*Rule, bool) {
	for _, rule := range r.bySeg[rec.ID()] {
		if rule.Predicate == nil || rule.Predicate(rec, ctx) {
			return rule, true
		}
	}
	return nil, false
}

// Rules returns every rule in registration order.
func (r *Registry) Rules() []*Rule {
	return append([]*Rule(nil), r.ordered...)
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Clone returns an independent copy that can be extended without affecting r.
func (r *Registry) Clone(name string) *Registry {
	c := New(name)
	for _, rule := range r.ordered {
		cp := *rule
		c.bySeg[cp.SegmentID] = append(c.bySeg[cp.SegmentID], &cp)
		c.ordered = append(c.ordered, &cp)
	}
	return c
}
