// =============================================================================
// X12 Parser - Built-in Transaction Sets
// =============================================================================
//
// This package declares the match rules and schemas of the transaction sets
// the parser supports out of the box:
//
//   | Code | Implementation version | Description                          |
//   |------|------------------------|--------------------------------------|
//   | 270  | 005010X279A1           | Eligibility, Coverage or Benefit Inquiry |
//   | 271  | 005010X279A1           | Eligibility, Coverage or Benefit Information |
//   | 837  | 005010X222A1           | Health Care Claim: Professional      |
//
// Every table is an explicit list built at startup. Registration order is
// significant: for a given segment identifier the first matching rule wins,
// so context-specific rules are always listed before general ones.
//
// =============================================================================

package transactions

import (
	"fmt"

	"github.com/ginjaninja78/x12-parser/internal/engine"
	"github.com/ginjaninja78/x12-parser/internal/rules"
	"github.com/ginjaninja78/x12-parser/internal/schema"
	"github.com/ginjaninja78/x12-parser/internal/segments"
)

// Implementation versions.
const (
	VersionEligibility  = "005010X279A1"
	VersionProfessional = "005010X222A1"
)

// Transaction set codes.
const (
	CodeEligibilityInquiry  = "270"
	CodeEligibilityResponse = "271"
	CodeClaim               = "837"
)

// Definition is one built-in transaction set.
type Definition struct {
	Code        string
	Version     string
	Description string
	Rules       func() *rules.Registry
	Schema      func(*segments.Catalog) *schema.Schema
}

// Definitions returns the built-in transaction sets.
func Definitions() []Definition {
	return []Definition{
		{
			Code:        CodeEligibilityInquiry,
			Version:     VersionEligibility,
			Description: "Eligibility, Coverage or Benefit Inquiry",
			Rules:       EligibilityInquiryRules,
			Schema:      EligibilityInquirySchema,
		},
		{
			Code:        CodeEligibilityResponse,
			Version:     VersionEligibility,
			Description: "Eligibility, Coverage or Benefit Information",
			Rules:       EligibilityResponseRules,
			Schema:      EligibilityResponseSchema,
		},
		{
			Code:        CodeClaim,
			Version:     VersionProfessional,
			Description: "Health Care Claim: Professional",
			Rules:       ProfessionalClaimRules,
			Schema:      ProfessionalClaimSchema,
		},
	}
}

// Register adds every built-in transaction set to the dispatcher.
//
// PARAMETERS:
//   - d: the dispatcher.
//   - catalog: the segment catalog whose loop overrides the schemas apply;
//     nil disables loop overrides.
//
// RETURNS:
//   - An error if a transaction set is already registered.
func Register(d *engine.Dispatcher, catalog *segments.Catalog) error {
	for _, def := range Definitions() {
		if err := d.Register(def.Code, def.Version, def.Rules(), def.Schema(catalog)); err != nil {
			return fmt.Errorf("failed to register built-in transaction sets: %w", err)
		}
	}
	return nil
}

// NewDispatcher returns a dispatcher holding the built-in transaction sets.
func NewDispatcher(catalog *segments.Catalog) (*engine.Dispatcher, error) {
	d := engine.NewDispatcher()
	if err := Register(d, catalog); err != nil {
		return nil, err
	}
	return d, nil
}

// hierarchyLevels builds an HL handler from level code to loop name.
func hierarchyLevels(pairs ...string) rules.Handler {
	loops := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		loops[pairs[i]] = pairs[i+1]
	}
	return rules.OpenHierarchyByLevel(loops)
}

// entity matches NM101.
func entity(codes ...string) rules.Predicate {
	return rules.FieldEquals("entity_identifier_code", codes...)
}

// attachAll registers an unconditioned Attach rule for each identifier.
func attachAll(r *rules.Registry, ids ...string) {
	for _, id := range ids {
		r.Register(id, nil, rules.Attach(), rules.WithName(id+" attach"))
	}
}
