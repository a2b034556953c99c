// =============================================================================
// X12 Parser - 837 Professional Claim
// =============================================================================
//
// Rules and loop schema for the 837P health care claim (005010X222A1).
// HL03 picks the 2000-level loop and NM101 entity codes open the named
// sub-loops beneath it.
//
// =============================================================================

package transactions

import (
	"github.com/ginjaninja78/x12-parser/internal/rules"
	"github.com/ginjaninja78/x12-parser/internal/schema"
	"github.com/ginjaninja78/x12-parser/internal/segments"
)

// =============================================================================
// TYPES
// =============================================================================

// nameLoop maps an NM101 entity code to the loop it opens.
type nameLoop struct {
	entity string
	loop   string
}

var (
	// 2310x: claim level providers.
	claimProviders = []nameLoop{
		{"DN", "2310A"}, {"82", "2310B"}, {"77", "2310C"}, {"DQ", "2310D"}, {"PW", "2310E"}, {"45", "2310F"},
	}
	// 2330x: other subscriber, other payer and their providers.
	otherPayerNames = []nameLoop{
		{"IL", "2330A"}, {"PR", "2330B"}, {"DN", "2330C"}, {"82", "2330D"}, {"77", "2330E"}, {"DQ", "2330F"}, {"85", "2330G"},
	}
	// 2420x: service line providers.
	lineProviders = []nameLoop{
		{"82", "2420A"}, {"QB", "2420B"}, {"77", "2420C"}, {"DQ", "2420D"}, {"DK", "2420E"}, {"DN", "2420F"}, {"PW", "2420G"}, {"45", "2420H"},
	}
)

// =============================================================================
// 837 PROFESSIONAL RULES
// =============================================================================

// ProfessionalClaimRules returns the 837 professional match rules.
//
// HL levels: 20 billing provider (2000A), 22 subscriber (2000B),
// 23 patient (2000C). Claims (2300) nest under the subscriber or the
// patient, whichever is open. NM1 is resolved innermost context first:
// service line, other subscriber, claim, then the hierarchical levels and
// finally the submitter and receiver of the header area.
func ProfessionalClaimRules() *rules.Registry {
	r := rules.New("837P")

	r.Register("BHT", nil, rules.Attach(), rules.WithName("beginning of hierarchical transaction"))
	r.Register("HL", nil, hierarchyLevels("20", "2000A", "22", "2000B", "23", "2000C"),
		rules.WithName("hierarchical level"))

	nameLoops(r, rules.WithinLoop("2400"), "2400", lineProviders)
	nameLoops(r, rules.WithinLoop("2320"), "2320", otherPayerNames)
	nameLoops(r, rules.WithinLoop("2300"), "2300", claimProviders)

	r.Register("NM1", rules.All(entity("85"), rules.WithinLoop("2000A")), rules.OpenLoop("2010AA", "2000A"), rules.WithName("billing provider name"))
	r.Register("NM1", rules.All(entity("87"), rules.WithinLoop("2000A")), rules.OpenLoop("2010AB", "2000A"), rules.WithName("pay-to address name"))
	r.Register("NM1", rules.All(entity("PE"), rules.WithinLoop("2000A")), rules.OpenLoop("2010AC", "2000A"), rules.WithName("pay-to plan name"))
	r.Register("NM1", rules.All(entity("IL"), rules.WithinLoop("2000B")), rules.OpenLoop("2010BA", "2000B"), rules.WithName("subscriber name"))
	r.Register("NM1", rules.All(entity("PR"), rules.WithinLoop("2000B")), rules.OpenLoop("2010BB", "2000B"), rules.WithName("payer name"))
	r.Register("NM1", rules.All(entity("QC"), rules.WithinLoop("2000C")), rules.OpenLoop("2010CA", "2000C"), rules.WithName("patient name"))
	r.Register("NM1", entity("41"), rules.OpenLoop("1000A"), rules.WithName("submitter name"))
	r.Register("NM1", entity("40"), rules.OpenLoop("1000B"), rules.WithName("receiver name"))

	r.Register("CLM", nil, rules.OpenLoop("2300", "2000B", "2000C"), rules.WithName("claim information"))
	r.Register("SBR", rules.WithinLoop("2300"), rules.OpenLoop("2320", "2300"), rules.WithName("other subscriber information"))
	r.Register("SBR", nil, rules.Attach(), rules.WithName("subscriber information"))
	r.Register("LX", nil, rules.OpenLoop("2400", "2300"), rules.WithName("service line number"))
	r.Register("LIN", nil, rules.OpenLoop("2410", "2400"), rules.WithName("drug identification"))
	r.Register("SVD", nil, rules.OpenLoop("2430", "2400"), rules.WithName("line adjudication information"))
	r.Register("LQ", nil, rules.OpenLoop("2440", "2400"), rules.WithName("form identification code"))

	attachAll(r,
		"PER", "PRV", "CUR", "N3", "N4", "REF", "DMG", "PAT",
		"DTP", "PWK", "CN1", "AMT", "K3", "NTE", "CR1", "CRC", "HI",
		"CAS", "OI", "MOA", "SV1", "QTY", "CTP", "FRM",
	)
	return r
}

func nameLoops(r *rules.Registry, within rules.Predicate, parent string, loops []nameLoop) {
	for _, nl := range loops {
		r.Register("NM1", rules.All(within, entity(nl.entity)), rules.OpenLoop(nl.loop, parent),
			rules.WithName(nl.loop+" name"))
	}
}

// =============================================================================
// 837 PROFESSIONAL SCHEMA
// =============================================================================

// ProfessionalClaimSchema returns the 837 professional schema.
func ProfessionalClaimSchema(catalog *segments.Catalog) *schema.Schema {
	provider := func(loop string) schema.LoopSpec {
		return schema.Loop(loop, 0, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("PRV", 0, 1),
			schema.Seg("N3", 0, 1),
			schema.Seg("N4", 0, 1),
			schema.Seg("REF", 0, 20),
			schema.Seg("PER", 0, 1),
		))
	}
	providers := func(names []nameLoop) []schema.LoopSpec {
		out := make([]schema.LoopSpec, len(names))
		for i, nl := range names {
			out[i] = provider(nl.loop)
		}
		return out
	}

	otherSubscriber := schema.Loop("2320", 0, 10,
		schema.Segs(
			schema.Seg("SBR", 1, 1),
			schema.Seg("CAS", 0, 5),
			schema.Seg("AMT", 0, 3),
			schema.Seg("OI", 1, 1),
			schema.Seg("MOA", 0, 1),
		),
		append([]schema.LoopSpec{
			schema.Loop("2330A", 1, 1, schema.Segs(
				schema.Seg("NM1", 1, 1), schema.Seg("N3", 0, 1), schema.Seg("N4", 0, 1), schema.Seg("REF", 0, 1),
			)),
			schema.Loop("2330B", 1, 1, schema.Segs(
				schema.Seg("NM1", 1, 1), schema.Seg("N3", 0, 1), schema.Seg("N4", 0, 1), schema.Seg("DTP", 0, 1), schema.Seg("REF", 0, 6),
			)),
		}, providers(otherPayerNames[2:])...)...,
	)

	serviceLine := schema.Loop("2400", 1, 50,
		schema.Segs(
			schema.Seg("LX", 1, 1),
			schema.Seg("SV1", 1, 1),
			schema.Seg("PWK", 0, 10),
			schema.Seg("CR1", 0, 1),
			schema.Seg("CRC", 0, 3),
			schema.Seg("DTP", 0, 10),
			schema.Seg("QTY", 0, 2),
			schema.Seg("CN1", 0, 1),
			schema.Seg("REF", 0, 20),
			schema.Seg("AMT", 0, 2),
			schema.Seg("K3", 0, 10),
			schema.Seg("NTE", 0, 2),
		),
		append([]schema.LoopSpec{
			schema.Loop("2410", 0, 1, schema.Segs(
				schema.Seg("LIN", 1, 1), schema.Seg("CTP", 1, 1), schema.Seg("REF", 0, 1),
			)),
			schema.Loop("2430", 0, 15, schema.Segs(
				schema.Seg("SVD", 1, 1), schema.Seg("CAS", 0, 5), schema.Seg("DTP", 1, 1), schema.Seg("AMT", 0, 1),
			)),
			schema.Loop("2440", 0, schema.Unbounded, schema.Segs(
				schema.Seg("LQ", 1, 1), schema.Seg("FRM", 1, 99),
			)),
		}, providers(lineProviders)...)...,
	)

	claim := schema.Loop("2300", 0, 100,
		schema.Segs(
			schema.Seg("CLM", 1, 1),
			schema.Seg("DTP", 0, 20),
			schema.Seg("PWK", 0, 10),
			schema.Seg("CN1", 0, 1),
			schema.Seg("AMT", 0, 1),
			schema.Seg("REF", 0, 14),
			schema.Seg("K3", 0, 10),
			schema.Seg("NTE", 0, 1),
			schema.Seg("CR1", 0, 1),
			schema.Seg("CRC", 0, 8),
			schema.Seg("HI", 1, 4),
		),
		append(append(providers(claimProviders), otherSubscriber), serviceLine)...,
	)

	patient := schema.Loop("2000C", 0, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("PAT", 1, 1)),
		schema.Loop("2010CA", 1, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("N3", 1, 1),
			schema.Seg("N4", 1, 1),
			schema.Seg("DMG", 1, 1),
			schema.Seg("REF", 0, 2),
			schema.Seg("PER", 0, 1),
		)),
		claim,
	)
	subscriber := schema.Loop("2000B", 1, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("SBR", 1, 1), schema.Seg("PAT", 0, 1)),
		schema.Loop("2010BA", 1, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("N3", 0, 1),
			schema.Seg("N4", 0, 1),
			schema.Seg("DMG", 0, 1),
			schema.Seg("REF", 0, 2),
			schema.Seg("PER", 0, 1),
		)),
		schema.Loop("2010BB", 1, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("N3", 0, 1),
			schema.Seg("N4", 0, 1),
			schema.Seg("REF", 0, 5),
		)),
		claim,
		patient,
	)
	billing := schema.Loop("2000A", 1, schema.Unbounded,
		schema.Segs(schema.Seg("HL", 1, 1), schema.Seg("PRV", 0, 1), schema.Seg("CUR", 0, 1)),
		schema.Loop("2010AA", 1, 1, schema.Segs(
			schema.Seg("NM1", 1, 1),
			schema.Seg("N3", 1, 1),
			schema.Seg("N4", 1, 1),
			schema.Seg("REF", 1, 3),
			schema.Seg("PER", 0, 2),
		)),
		schema.Loop("2010AB", 0, 1, schema.Segs(
			schema.Seg("NM1", 1, 1), schema.Seg("N3", 1, 1), schema.Seg("N4", 1, 1),
		)),
		schema.Loop("2010AC", 0, 1, schema.Segs(
			schema.Seg("NM1", 1, 1), schema.Seg("N3", 1, 1), schema.Seg("N4", 1, 1), schema.Seg("REF", 0, 2),
		)),
		subscriber,
	)

	return schema.New(CodeClaim, VersionProfessional, catalog,
		header(),
		schema.Loop("1000A", 1, 1, schema.Segs(schema.Seg("NM1", 1, 1), schema.Seg("PER", 1, 2))),
		schema.Loop("1000B", 1, 1, schema.Segs(schema.Seg("NM1", 1, 1))),
		billing,
		footer(),
	)
}
