package segments

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/x12-parser/internal/types"
	"github.com/ginjaninja78/x12-parser/internal/validation"
)

// raw tokenizes one default-delimited segment without a terminator.
func raw(index int, text string) types.RawSegment {
	parts := strings.Split(text, "*")
	return types.RawSegment{Index: index, ID: parts[0], Elements: parts[1:]}
}

func construct(t *testing.T, reg Registry, index int, text string) (*types.Record, error) {
	t.Helper()
	seg := raw(index, text)
	ctor, ok := reg.Lookup(seg.ID)
	require.True(t, ok, "segment %s not in catalog", seg.ID)
	return ctor(seg, types.DefaultDelimiters())
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()

	assert.Greater(t, cat.Len(), 40)
	for _, id := range []string{"ISA", "IEA", "GS", "GE", "ST", "SE", "BHT", "HL", "NM1", "EQ", "EB", "CLM", "SV1"} {
		_, ok := cat.Definition(id)
		assert.True(t, ok, "missing %s", id)
	}

	nm1, _ := cat.Definition("NM1")
	assert.Len(t, nm1.Fields, 12)
	assert.Equal(t, 9, nm1.Fields[8].Position)

	defs := cat.Definitions()
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].ID, defs[i].ID)
	}
}

func TestConstruct_NamesFields(t *testing.T) {
	rec, err := construct(t, DefaultCatalog(), 5, "HL*2*1*21*1")
	require.NoError(t, err)

	assert.Equal(t, "HL", rec.ID())
	assert.Equal(t, 5, rec.Index())
	assert.Equal(t, "Hierarchical Level", rec.Name)
	assert.Equal(t, "2", rec.Get("hierarchical_id_number"))
	assert.Equal(t, "1", rec.Get("hierarchical_parent_id_number"))
	assert.Equal(t, "21", rec.Get("hierarchical_level_code"))
	assert.Equal(t, "1", rec.Get("hierarchical_child_code"))
	assert.Empty(t, rec.Warnings)
}

func TestConstruct_ShortSegmentLeavesOptionalFieldsEmpty(t *testing.T) {
	rec, err := construct(t, DefaultCatalog(), 1, "HL*1**20")
	require.NoError(t, err)

	assert.Equal(t, "", rec.Get("hierarchical_parent_id_number"))
	assert.Equal(t, "", rec.Get("hierarchical_child_code"))
	f, ok := rec.Field("hierarchical_child_code")
	require.True(t, ok)
	assert.Equal(t, 4, f.Position)
}

func TestConstruct_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		segment   string
		wantField string
		wantRule  string
	}{
		{"required missing", "HL**1*21*1", "hierarchical_id_number", "required"},
		{"code value", "HL*1**20*7", "hierarchical_child_code", "code_value"},
		{"too long", "DTP*2910*D8*20230101", "date_time_qualifier", "max_length"},
		{"valid demographic", "DMG*D8*19800101*M", "", ""},
		{"numeric type", "LX*A", "assigned_number", "data_type"},
		{"repeat occurrence", "EQ*30^ABC", "service_type_code", "max_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := construct(t, DefaultCatalog(), 4, tt.segment)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var pe *types.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, types.KindField, pe.Kind)
			assert.Equal(t, 4, pe.SegmentIndex)
			assert.Equal(t, tt.wantField, pe.Field)

			var ve *validation.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantRule, ve.Rule)
		})
	}
}

func TestConstruct_TooManyElements(t *testing.T) {
	_, err := construct(t, DefaultCatalog(), 3, "LX*1*2")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrField)
	assert.Contains(t, err.Error(), "definition allows 1")
}

func TestConstruct_Composite(t *testing.T) {
	rec, err := construct(t, DefaultCatalog(), 20, "HI*ABK:J449*ABF:E119")
	require.NoError(t, err)

	first, _ := rec.Field("health_care_code_information_1")
	assert.Equal(t, "ABK:J449", first.Value)
	assert.Equal(t, []string{"ABK", "J449"}, first.Components)

	second, _ := rec.Field("health_care_code_information_2")
	assert.Equal(t, []string{"ABF", "E119"}, second.Components)

	third, _ := rec.Field("health_care_code_information_3")
	assert.Nil(t, third.Components)
}

func TestConstruct_CompositeChecksFirstComponent(t *testing.T) {
	_, err := construct(t, DefaultCatalog(), 30, "SV1*HCX:99213*100*UN*1***1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite_medical_procedure_identifier")

	rec, err := construct(t, DefaultCatalog(), 30, "SV1*HC:99213*100*UN*1***1")
	require.NoError(t, err)
	f, _ := rec.Field("composite_medical_procedure_identifier")
	assert.Equal(t, []string{"HC", "99213"}, f.Components)
}

func TestConstruct_Repeatable(t *testing.T) {
	rec, err := construct(t, DefaultCatalog(), 14, "EQ*30^1^35")
	require.NoError(t, err)

	f, _ := rec.Field("service_type_code")
	assert.Equal(t, "30^1^35", f.Value)
	assert.Equal(t, []string{"30", "1", "35"}, f.Repeats)
}

func TestConstruct_RepeatableComposite(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Add(SegmentDef{
		ID:   "ZZ",
		Name: "Test",
		Fields: []FieldDef{
			{Name: "codes", Type: "AN", MaxLength: 5, Composite: true, Repeatable: true},
		},
	}))

	rec, err := construct(t, cat, 7, "ZZ*AB:1^CD:2:3^EF")
	require.NoError(t, err)

	f, _ := rec.Field("codes")
	assert.Equal(t, []string{"AB:1", "CD:2:3", "EF"}, f.Repeats)
	assert.Equal(t, []string{"AB", "1"}, f.Components)
	assert.Equal(t, [][]string{{"AB", "1"}, {"CD", "2", "3"}, {"EF"}}, f.RepeatComponents)

	_, err = construct(t, cat, 7, "ZZ*AB:1^TOOLONG:2")
	assert.ErrorIs(t, err, types.ErrField)
}

func TestConstruct_RepeatableWithoutRepetitionSeparator(t *testing.T) {
	cat := DefaultCatalog()
	ctor, _ := cat.Lookup("EQ")
	delims := types.Delimiters{Segment: '~', Element: '*', Component: ':'}

	rec, err := ctor(raw(14, "EQ*30"), delims)
	require.NoError(t, err)
	f, _ := rec.Field("service_type_code")
	assert.Nil(t, f.Repeats)
}

func TestConstruct_CharacterSetWarning(t *testing.T) {
	v := validation.NewValidatorWithOptions(validation.Options{CharacterSet: validation.CharacterSetBasic})
	cat := DefaultCatalog(WithValidator(v))

	rec, err := construct(t, cat, 9, "NM1*IL*1*doe*JOHN")
	require.NoError(t, err)
	require.Len(t, rec.Warnings, 1)
	assert.Contains(t, rec.Warnings[0], "name_last_or_organization_name")
}

func TestConstruct_CustomValidator(t *testing.T) {
	v := validation.NewValidatorWithOptions(validation.Options{
		CustomValidators: map[string]validation.CustomValidatorFunc{
			"NM1.identification_code": func(value string, _ validation.FieldSpec) string {
				if len(value) != 10 {
					return "NPI must be 10 digits"
				}
				return ""
			},
		},
	})
	cat := DefaultCatalog(WithValidator(v))

	_, err := construct(t, cat, 9, "NM1*85*2*CLINIC*****XX*1234567893")
	assert.NoError(t, err)

	_, err = construct(t, cat, 9, "NM1*85*2*CLINIC*****XX*123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NPI must be 10 digits")
}

func TestAdd_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  SegmentDef
		want string
	}{
		{"bad id", SegmentDef{ID: "nm1"}, "invalid segment identifier"},
		{"long id", SegmentDef{ID: "ABCD"}, "invalid segment identifier"},
		{"unnamed field", SegmentDef{ID: "ZZ", Fields: []FieldDef{{}}}, "has no name"},
		{"duplicate name", SegmentDef{ID: "ZZ", Fields: []FieldDef{{Name: "a"}, {Name: "a"}}}, "duplicate field name"},
		{"descending", SegmentDef{ID: "ZZ", Fields: []FieldDef{{Name: "a", Position: 3}, {Name: "b", Position: 2}}}, "not ascending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCatalog().Add(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAdd_ExplicitPositions(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Add(SegmentDef{
		ID:   "ZZ",
		Name: "Test",
		Fields: []FieldDef{
			{Name: "first"},
			{Name: "fourth", Position: 4},
			{Name: "fifth"},
		},
	}))

	rec, err := construct(t, cat, 1, "ZZ*a*b*c*d*e")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Get("first"))
	assert.Equal(t, "d", rec.Get("fourth"))
	assert.Equal(t, "e", rec.Get("fifth"))
	assert.Equal(t, "b", rec.Element(2))
}

func TestAdd_DoesNotAliasCaller(t *testing.T) {
	allowed := []string{"A", "B"}
	def := SegmentDef{ID: "ZZ", Fields: []FieldDef{{Name: "code", Allowed: allowed}}}

	cat := NewCatalog()
	require.NoError(t, cat.Add(def))
	allowed[0] = "X"

	stored, _ := cat.Definition("ZZ")
	assert.Equal(t, []string{"A", "B"}, stored.Fields[0].Allowed)
	assert.Equal(t, 0, def.Fields[0].Position)
}
