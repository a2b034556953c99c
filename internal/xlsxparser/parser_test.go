package xlsxparser

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/x12-parser/internal/segments"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// workbook saves a single-sheet workbook with the given rows.
func workbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestWriteParse_DefaultCatalogRoundTrip(t *testing.T) {
	want := segments.DefaultCatalog().File()
	path := filepath.Join(t.TempDir(), "default.xlsx")

	require.NoError(t, Write(path, want))
	got, err := Parse(path)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SpreadsheetTerminology(t *testing.T) {
	path := workbook(t, "Sheet1", [][]any{
		{"Segment", "Segment Name", "Position", "Field Name", "Type", "Min", "Max", "Required", "Allowed", "Composite", "Repeatable"},
		{"zz1", "Custom Member", 1, "member_id", "alphanumeric", 2, 10, "Mandatory", "", "", ""},
		{"zz1", "", 3, "status", "code", 1, 1, "situational", "A, I", "", ""},
		{},
		{"ZZ1", "", 4, "effective", "date", 8, 8, "n", "", "", ""},
		{"ZZ2", "Custom Service", 1, "procedure", "", "", "", "R", "", "yes", ""},
	})

	file, err := Parse(path)
	require.NoError(t, err)

	want := []segments.SegmentDef{
		{
			ID:   "ZZ1",
			Name: "Custom Member",
			Fields: []segments.FieldDef{
				{Name: "member_id", Position: 1, Type: "AN", Required: true, MinLength: 2, MaxLength: 10},
				{Name: "status", Position: 3, Type: "ID", MinLength: 1, MaxLength: 1, Allowed: []string{"A", "I"}},
				{Name: "effective", Position: 4, Type: "DT", MinLength: 8, MaxLength: 8},
			},
		},
		{
			ID:     "ZZ2",
			Name:   "Custom Service",
			Fields: []segments.FieldDef{{Name: "procedure", Position: 1, Required: true, Composite: true}},
		},
	}
	if diff := cmp.Diff(want, file.Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, file.Overrides)

	catalog := segments.NewCatalog()
	require.NoError(t, catalog.Load(file))
	ctor, ok := catalog.Lookup("ZZ1")
	require.True(t, ok)
	_, err = ctor(types.RawSegment{Index: 1, ID: "ZZ1", Elements: []string{"M1", "", "X"}}, types.DefaultDelimiters())
	assert.ErrorIs(t, err, types.ErrField)
}

func TestParse_OverridesGroupedByKey(t *testing.T) {
	file := segments.File{
		Segments: []segments.SegmentDef{{ID: "ZZ1", Fields: []segments.FieldDef{
			{Name: "code", Position: 1, Type: "ID"},
			{Name: "value", Position: 2, Type: "AN"},
		}}},
		Overrides: []segments.Override{
			{TransactionSet: "999", Segment: "ZZ1", Fields: []segments.FieldOverride{
				{Name: "code", Allowed: []string{"A", "B"}},
				{Name: "value", Usage: segments.UsageRequired, MaxLength: 5},
			}},
			{TransactionSet: "999", Loop: "2000", Segment: "ZZ1", Fields: []segments.FieldOverride{
				{Name: "value", Usage: segments.UsageNotUsed},
			}},
		},
	}
	path := filepath.Join(t.TempDir(), "overrides.xlsx")
	require.NoError(t, Write(path, file))

	got, err := Parse(path)
	require.NoError(t, err)

	if diff := cmp.Diff(file, got); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		rows [][]any
		want string
	}{
		{
			name: "bad position",
			rows: [][]any{segmentHeader(), {"ZZ1", "", "first", "code"}},
			want: `error parsing Segments row 2: position "first" is not a number`,
		},
		{
			name: "bad max length",
			rows: [][]any{segmentHeader(), {"ZZ1", "", 1, "code", "ID", 1, "long"}},
			want: `max length "long" is not a number`,
		},
		{
			name: "missing segment",
			rows: [][]any{segmentHeader(), {"", "", 1, "code"}},
			want: "row 2: segment is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(workbook(t, SegmentsSheet, tt.rows))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorContains(t, err, "failed to open template file")
}

func TestParseWithConfig_CustomLayout(t *testing.T) {
	path := workbook(t, "Sheet1", [][]any{
		{"Custom catalog"},
		{"Field", "Segment"},
		{"loop_code", "LS"},
	})
	cols := DefaultTemplateColumns()
	cols.SegmentColumn, cols.FieldNameColumn = 1, 0
	cols.PositionColumn, cols.SegmentNameColumn = 20, 21
	cols.DataStartRow = 2

	file, err := ParseWithConfig(path, cols)
	require.NoError(t, err)

	require.Len(t, file.Segments, 1)
	assert.Equal(t, "LS", file.Segments[0].ID)
	assert.Equal(t, "loop_code", file.Segments[0].Fields[0].Name)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "R", normalizeDataType("money"))
	assert.Equal(t, "N2", normalizeDataType("n2"))
	assert.Equal(t, "TM", normalizeDataType(" Time "))
	assert.Equal(t, segments.UsageNotUsed, normalizeRequiredType("N/U"))
	assert.Equal(t, segments.UsageOptional, normalizeRequiredType("S"))
	assert.Equal(t, segments.UsageRequired, normalizeRequiredType("M"))
}

func segmentHeader() []any {
	out := make([]any, len(segmentHeaders))
	for i, h := range segmentHeaders {
		out[i] = h
	}
	return out
}
