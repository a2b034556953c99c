// =============================================================================
// X12 Parser - 270/271 Eligibility
// =============================================================================
//
// Rules and loop schemas for the 270 eligibility inquiry (005010X279A1)
// and its 271 response. The 271 wraps LS..LE segments in their own loop.
//
// =============================================================================

package transactions

import (
	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/rules"
	"github.com/ginjaninja78/x12-parser/internal/schema"
	"github.com/ginjaninja78/x12-parser/internal/segments"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// markerWrapper holds the loop an open LS segment was attached to.
const markerWrapper = "ls"

// =============================================================================
// 270 ELIGIBILITY INQUIRY
// =============================================================================

// EligibilityInquiryRules returns the 270 match rules.
//
// HL levels: 20 information source (2000A), 21 information receiver (2000B),
// 22 subscriber (2000C), 23 dependent (2000D).
func EligibilityInquiryRules() *rules.Registry {
	r := rules.New("270")

	r.Register("BHT", nil, rules.Attach(), rules.WithName("beginning of hierarchical transaction"))
	r.Register("HL", nil, hierarchyLevels("20", "2000A", "21", "2000B", "22", "2000C", "23", "2000D"),
		rules.WithName("hierarchical level"))

	r.Register("NM1", rules.InHierarchyLevel("20"), rules.OpenLoop("2100A", "2000A"), rules.WithName("information source name"))
	r.Register("NM1", rules.InHierarchyLevel("21"), rules.OpenLoop("2100B", "2000B"), rules.WithName("information receiver name"))
	r.Register("NM1", rules.InHierarchyLevel("22"), rules.OpenLoop("2100C", "2000C"), rules.WithName("subscriber name"))
	r.Register("NM1", rules.InHierarchyLevel("23"), rules.OpenLoop("2100D", "2000D"), rules.WithName("dependent name"))

	r.Register("EQ", rules.InHierarchyLevel("22"), rules.OpenLoop("2110C", "2100C"), rules.WithName("subscriber eligibility inquiry"))
	r.Register("EQ", rules.InHierarchyLevel("23"), rules.OpenLoop("2110D", "2100D"), rules.WithName("dependent eligibility inquiry"))

	attachAll(r, "TRN", "REF", "N3", "N4", "PRV", "DMG", "INS", "HI", "DTP", "AMT", "III")
	return r
}

// EligibilityInquirySchema returns the 270 schema.
func EligibilityInquirySchema(catalog *segments.Catalog) *schema.Schema {
	name := schema.Segs(
		schema.Seg("NM1", 1, 1),
		schema.Seg("REF", 0, 9),
		schema.Seg("N3", 0, 1),
		schema.Seg("N4", 0, 1),
		schema.Seg("PRV", 0, 1),
		schema.Seg("DMG", 0, 1),
		schema.Seg("INS", 0, 1),
		schema.Seg("HI", 0, 1),
		schema.Seg("DTP", 0, 1),
	)

	dependent := schema.Loop("2000D", 0, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("TRN", 0, 2)),
		schema.Loop("2100D", 1, 1, name,
			schema.Loop("2110D", 0, 99, schema.Segs(
				schema.Seg("EQ", 1, 1),
				schema.Seg("III", 0, 10),
				schema.Seg("REF", 0, 1),
				schema.Seg("DTP", 0, 1),
			)),
		),
	)
	subscriber := schema.Loop("2000C", 1, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("TRN", 0, 2)),
		schema.Loop("2100C", 1, 1, name,
			schema.Loop("2110C", 0, 99, schema.Segs(
				schema.Seg("EQ", 1, 1),
				schema.Seg("AMT", 0, 2),
				schema.Seg("III", 0, 10),
				schema.Seg("REF", 0, 1),
				schema.Seg("DTP", 0, 1),
			)),
		),
		dependent,
	)
	receiver := schema.Loop("2000B", 1, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1)),
		schema.Loop("2100B", 1, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("REF", 0, 9),
			schema.Seg("N3", 0, 1),
			schema.Seg("N4", 0, 1),
			schema.Seg("PRV", 0, 1),
		)),
		subscriber,
	)
	source := schema.Loop("2000A", 1, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1)),
		schema.Loop("2100A", 1, 1, schema.Segs(schema.Seg("NM1", 1, 1))),
		receiver,
	)

	return schema.New(CodeEligibilityInquiry, VersionEligibility, catalog,
		header(), source, footer())
}

// =============================================================================
// 271 ELIGIBILITY RESPONSE
// =============================================================================

// EligibilityResponseRules returns the 271 match rules.
//
// Benefit loops (2110C/2110D) open on EB. An LS/LE pair inside a benefit
// loop wraps benefit related entity names (2120C/2120D); NM1 inside the
// wrapper opens those loops instead of a name loop, so the wrapper rules are
// registered first.
func EligibilityResponseRules() *rules.Registry {
	r := rules.New("271")

	r.Register("BHT", nil, rules.Attach(), rules.WithName("beginning of hierarchical transaction"))
	r.Register("HL", nil, hierarchyLevels("20", "2000A", "21", "2000B", "22", "2000C", "23", "2000D"),
		rules.WithName("hierarchical level"))

	r.Register("NM1", rules.All(rules.MarkerSet(markerWrapper), rules.WithinLoop("2110C")),
		rules.OpenLoop("2120C", "2110C"), rules.WithName("subscriber benefit related entity name"))
	r.Register("NM1", rules.All(rules.MarkerSet(markerWrapper), rules.WithinLoop("2110D")),
		rules.OpenLoop("2120D", "2110D"), rules.WithName("dependent benefit related entity name"))
	r.Register("NM1", rules.InHierarchyLevel("20"), rules.OpenLoop("2100A", "2000A"), rules.WithName("information source name"))
	r.Register("NM1", rules.InHierarchyLevel("21"), rules.OpenLoop("2100B", "2000B"), rules.WithName("information receiver name"))
	r.Register("NM1", rules.InHierarchyLevel("22"), rules.OpenLoop("2100C", "2000C"), rules.WithName("subscriber name"))
	r.Register("NM1", rules.InHierarchyLevel("23"), rules.OpenLoop("2100D", "2000D"), rules.WithName("dependent name"))

	r.Register("EB", rules.InHierarchyLevel("22"), rules.OpenLoop("2110C", "2100C"), rules.WithName("subscriber eligibility or benefit information"))
	r.Register("EB", rules.InHierarchyLevel("23"), rules.OpenLoop("2110D", "2100D"), rules.WithName("dependent eligibility or benefit information"))

	r.Register("III", rules.WithinLoop("2110C"), rules.OpenLoop("2115C", "2110C"), rules.WithName("subscriber eligibility or benefit additional information"))
	r.Register("III", rules.WithinLoop("2110D"), rules.OpenLoop("2115D", "2110D"), rules.WithName("dependent eligibility or benefit additional information"))

	r.Register("LS", rules.WithinLoop("2110C"), openWrapper("2110C"), rules.WithName("subscriber loop header"))
	r.Register("LS", rules.WithinLoop("2110D"), openWrapper("2110D"), rules.WithName("dependent loop header"))
	r.Register("LE", rules.MarkerSet(markerWrapper), closeWrapper(), rules.WithName("loop trailer"))

	attachAll(r, "TRN", "AAA", "PER", "REF", "N3", "N4", "PRV", "DMG", "INS", "HI", "DTP", "MPI", "HSD", "MSG")
	return r
}

// openWrapper attaches LS to the benefit loop and remembers it.
func openWrapper(loop string) rules.Handler {
	return rules.Sequence(
		rules.AscendAndAttach(loop),
		rules.SetMarker(markerWrapper, loop),
	)
}

// closeWrapper attaches LE to the loop holding the matching LS.
func closeWrapper() rules.Handler {
	return func(rec *types.Record, ctx *parsing.Context) error {
		loop := ctx.Marker(markerWrapper)
		if _, err := ctx.Ascend(loop); err != nil {
			return err
		}
		ctx.Attach(rec)
		ctx.SetMarker(markerWrapper, "")
		return nil
	}
}

// EligibilityResponseSchema returns the 271 schema.
func EligibilityResponseSchema(catalog *segments.Catalog) *schema.Schema {
	name := schema.Segs(
		schema.Seg("NM1", 1, 1),
		schema.Seg("REF", 0, 9),
		schema.Seg("N3", 0, 1),
		schema.Seg("N4", 0, 1),
		schema.Seg("AAA", 0, 9),
		schema.Seg("PRV", 0, 1),
		schema.Seg("DMG", 0, 1),
		schema.Seg("INS", 0, 1),
		schema.Seg("HI", 0, 1),
		schema.Seg("DTP", 0, 9),
		schema.Seg("MPI", 0, 1),
	)
	benefit := func(loop, info, entity string) schema.LoopSpec {
		return schema.Loop(loop, 0, schema.Unbounded,
			schema.Segs(
				schema.Seg("EB", 1, 1),
				schema.Seg("HSD", 0, 9),
				schema.Seg("REF", 0, 9),
				schema.Seg("DTP", 0, 20),
				schema.Seg("AAA", 0, 9),
				schema.Seg("MSG", 0, 10),
				schema.Seg("LS", 0, 1),
				schema.Seg("LE", 0, 1),
			),
			schema.Loop(info, 0, 10, schema.Segs(schema.Seg("III", 1, 1))),
			schema.Loop(entity, 0, 23, schema.Segs(
				schema.Seg("NM1", 1, 1),
				schema.Seg("N3", 0, 1),
				schema.Seg("N4", 0, 1),
				schema.Seg("PER", 0, 3),
				schema.Seg("PRV", 0, 1),
			)),
		)
	}

	dependent := schema.Loop("2000D", 0, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("TRN", 0, 3)),
		schema.Loop("2100D", 1, 1, name, benefit("2110D", "2115D", "2120D")),
	)
	subscriber := schema.Loop("2000C", 0, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("TRN", 0, 3)),
		schema.Loop("2100C", 1, 1, name, benefit("2110C", "2115C", "2120C")),
		dependent,
	)
	receiver := schema.Loop("2000B", 0, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1)),
		schema.Loop("2100B", 1, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("REF", 0, 9),
			schema.Seg("N3", 0, 1),
			schema.Seg("N4", 0, 1),
			schema.Seg("AAA", 0, 9),
			schema.Seg("PRV", 0, 1),
		)),
		subscriber,
	)
	source := schema.Loop("2000A", 1, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("AAA", 0, 9)),
		schema.Loop("2100A", 1, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("PER", 0, 3),
			schema.Seg("AAA", 0, 9),
		)),
		receiver,
	)

	return schema.New(CodeEligibilityResponse, VersionEligibility, catalog,
		header(), source, footer())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func header() schema.LoopSpec {
	return schema.Loop(parsing.HeaderLoop, 1, 1, schema.Segs(schema.Seg("ST", 1, 1), schema.Seg("BHT", 1, 1)))
}

func footer() schema.LoopSpec {
	return schema.Loop(parsing.FooterLoop, 1, 1, schema.Segs(schema.Seg("SE", 1, 1)))
}
