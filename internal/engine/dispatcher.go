// =============================================================================
// X12 Parser - Transaction Set Dispatcher
// =============================================================================
//
// The dispatcher maps a transaction set code and implementation version to
// the match rules and schema used to assemble it:
//
//   ("270", "005010X279A1") -> 270 rules + 270 schema
//   ("837", "005010X222A1") -> 837P rules + 837P schema
//
// An entry registered with an empty version serves every version of its
// code that has no exact entry.
//
// =============================================================================

package engine

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/rules"
)

// SchemaValidator validates a finished transaction tree.
type SchemaValidator interface {
	Validate(tree *parsing.Tree) error
}

// Entry is one registered transaction set.
type Entry struct {
	Code    string
	Version string
	Rules   *rules.Registry
	Schema  SchemaValidator
}

type dispatchKey struct {
	code    string
	version string
}

// Dispatcher resolves transaction sets to their rules and schema. It is
// populated at startup and read-only while parsing.
type Dispatcher struct {
	entries map[dispatchKey]*Entry
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{entries: make(map[dispatchKey]*Entry)}
}

// Register adds a transaction set.
//
// PARAMETERS:
//   - code: the ST01 transaction set code, e.g. "270".
//   - version: the implementation version, e.g. "005010X279A1", or "" for
//     any version.
//   - reg: the match rules; required.
//   - schema: the schema validator; nil skips validation.
//
// RETURNS:
//   - An error when reg is nil or the pair is already registered.
func (d *Dispatcher) Register(code, version string, reg *rules.Registry, schema SchemaValidator) error {
	if code == "" {
		return fmt.Errorf("failed to register transaction set: code is required")
	}
	if reg == nil {
		return fmt.Errorf("failed to register transaction set %s %s: rules are required", code, version)
	}
	key := dispatchKey{code: code, version: version}
	if _, exists := d.entries[key]; exists {
		return fmt.Errorf("failed to register transaction set %s %s: already registered", code, version)
	}
	d.entries[key] = &Entry{Code: code, Version: version, Rules: reg, Schema: schema}
	return nil
}

// Resolve returns the entry for a code and version.
func (d *Dispatcher) Resolve(code, version string) (*Entry, bool) {
	if e, ok := d.entries[dispatchKey{code: code, version: version}]; ok {
		return e, true
	}
	e, ok := d.entries[dispatchKey{code: code}]
	return e, ok
}

// Entries returns the registered entries sorted by code and version.
func (d *Dispatcher) Entries() []*Entry {
	out := make([]*Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Version < out[j].Version
	})
	return out
}
