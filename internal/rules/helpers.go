// =============================================================================
// X12 Parser - Rule Helpers
// =============================================================================
//
// Building blocks for transaction rule registries. Predicates decide
// whether a rule applies to a record in the current context; handlers
// act on the context once a rule is chosen.
//
// =============================================================================

package rules

import (
	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// =============================================================================
// PREDICATES
// =============================================================================

// FieldEquals matches when the named field holds one of values.
func FieldEquals(field string, values ...string) Predicate {
	return func(rec *types.Record, _ *parsing.Context) bool {
		v := rec.Get(field)
		for _, want := range values {
			if v == want {
				return true
			}
		}
		return false
	}
}

// InHierarchyLevel matches when the current HL node has one of the level
// codes.
func InHierarchyLevel(codes ...string) Predicate {
	return func(_ *types.Record, ctx *parsing.Context) bool {
		node := ctx.CurrentHierarchy()
		if node == nil {
			return false
		}
		for _, c := range codes {
			if node.LevelCode == c {
				return true
			}
		}
		return false
	}
}

// InLoop matches when the current loop is one of names.
func InLoop(names ...string) Predicate {
	return func(_ *types.Record, ctx *parsing.Context) bool {
		for _, n := range names {
			if ctx.InLoop(n) {
				return true
			}
		}
		return false
	}
}

// WithinLoop matches when one of names is open on the cursor path.
func WithinLoop(names ...string) Predicate {
	return func(_ *types.Record, ctx *parsing.Context) bool {
		for _, n := range names {
			if ctx.WithinLoop(n) {
				return true
			}
		}
		return false
	}
}

// MarkerSet matches when a context marker is set.
func MarkerSet(key string) Predicate {
	return func(_ *types.Record, ctx *parsing.Context) bool {
		return ctx.Marker(key) != ""
	}
}

// All matches when every predicate matches.
func All(preds ...Predicate) Predicate {
	return func(rec *types.Record, ctx *parsing.Context) bool {
		for _, p := range preds {
			if !p(rec, ctx) {
				return false
			}
		}
		return true
	}
}

// Not inverts a predicate.
func Not(pred Predicate) Predicate {
	return func(rec *types.Record, ctx *parsing.Context) bool {
		return !pred(rec, ctx)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

// Attach attaches the record to the current loop.
func Attach() Handler {
	return func(rec *types.Record, ctx *parsing.Context) error {
		ctx.Attach(rec)
		return nil
	}
}

// OpenLoop opens a loop with the record as its first segment.
// See parsing.Context.OpenLoop for the meaning of under.
func OpenLoop(name string, under ...string) Handler {
	return func(rec *types.Record, ctx *parsing.Context) error {
		_, err := ctx.OpenLoop(name, rec, under...)
		return err
	}
}

// OpenHierarchy opens an HL loop.
func OpenHierarchy(loopName string) Handler {
	return func(rec *types.Record, ctx *parsing.Context) error {
		_, err := ctx.OpenHierarchy(rec, loopName)
		return err
	}
}

// OpenHierarchyByLevel opens the HL loop mapped from HL03. Unmapped level
// codes fail with LoopPlacement.
func OpenHierarchyByLevel(loops map[string]string) Handler {
	return func(rec *types.Record, ctx *parsing.Context) error {
		code := rec.Get(parsing.FieldHierarchicalLevel)
		name, ok := loops[code]
		if !ok {
			return types.Newf(types.KindLoopPlacement, "no loop for hierarchical level code %q", code)
		}
		_, err := ctx.OpenHierarchy(rec, name)
		return err
	}
}

// AscendAndAttach moves the cursor back to the named loop and attaches the
// record there.
func AscendAndAttach(name string) Handler {
	return func(rec *types.Record, ctx *parsing.Context) error {
		if _, err := ctx.Ascend(name); err != nil {
			return err
		}
		ctx.Attach(rec)
		return nil
	}
}

// Sequence runs handlers in order, stopping at the first error.
func Sequence(handlers ...Handler) Handler {
	return func(rec *types.Record, ctx *parsing.Context) error {
		for _, h := range handlers {
			if err := h(rec, ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// SetMarker returns a handler that sets a context marker.
func SetMarker(key, value string) Handler {
	return func(_ *types.Record, ctx *parsing.Context) error {
		ctx.SetMarker(key, value)
		return nil
	}
}
