// =============================================================================
// X12 Parser - XLSX Catalog Templates
// =============================================================================
//
// This module reads and writes segment catalogs as XLSX templates, so that
// analysts can maintain segment definitions and implementation guide
// overrides in a spreadsheet.
//
// TEMPLATE STRUCTURE:
//   Sheet "Segments" holds one row per field. Rows of one segment are
//   consecutive; the segment name is read from its first row.
//
//   | A       | B            | C        | D          | E    | F   | G   | H        | I       | J         | K          |
//   |---------|--------------|----------|------------|------|-----|-----|----------|---------|-----------|------------|
//   | Segment | Segment Name | Position | Field Name | Type | Min | Max | Required | Allowed | Composite | Repeatable |
//   | HL      | Hier. Level  | 1        | hl_id      | AN   | 1   | 12  | Y        |         |           |            |
//
//   Sheet "Overrides" is optional and holds one row per overridden field.
//   Rows with the same transaction set, loop and segment form one override.
//
//   | A               | B    | C       | D          | E     | F       | G   | H   |
//   |-----------------|------|---------|------------|-------|---------|-----|-----|
//   | Transaction Set | Loop | Segment | Field Name | Usage | Allowed | Min | Max |
//
//   Allowed values are separated by commas.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/x12-parser/internal/segments"
)

// Sheet names.
const (
	SegmentsSheet  = "Segments"
	OverridesSheet = "Overrides"
)

var (
	segmentHeaders = []string{
		"Segment", "Segment Name", "Position", "Field Name", "Type",
		"Min", "Max", "Required", "Allowed", "Composite", "Repeatable",
	}
	overrideHeaders = []string{
		"Transaction Set", "Loop", "Segment", "Field Name", "Usage", "Allowed", "Min", "Max",
	}
)

// =============================================================================
// TEMPLATE COLUMN CONFIGURATION
// =============================================================================

// TemplateColumns defines which columns of the Segments sheet hold which
// data. Column indices are 0-based (A=0, B=1, C=2, etc.)
type TemplateColumns struct {
	SegmentColumn     int
	SegmentNameColumn int
	PositionColumn    int
	FieldNameColumn   int
	TypeColumn        int
	MinLengthColumn   int
	MaxLengthColumn   int
	RequiredColumn    int
	AllowedColumn     int
	CompositeColumn   int
	RepeatableColumn  int

	// DataStartRow is the row number where data begins (0-based).
	// Default: 1 (Row 2)
	DataStartRow int
}

// DefaultTemplateColumns returns the column layout written by Write.
func DefaultTemplateColumns() TemplateColumns {
	return TemplateColumns{
		SegmentColumn:     0,  // Column A
		SegmentNameColumn: 1,  // Column B
		PositionColumn:    2,  // Column C
		FieldNameColumn:   3,  // Column D
		TypeColumn:        4,  // Column E
		MinLengthColumn:   5,  // Column F
		MaxLengthColumn:   6,  // Column G
		RequiredColumn:    7,  // Column H
		AllowedColumn:     8,  // Column I
		CompositeColumn:   9,  // Column J
		RepeatableColumn:  10, // Column K
		DataStartRow:      1,  // Row 2
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads an XLSX catalog template.
//
// PARAMETERS:
//   - templatePath: The path to the XLSX template file.
//
// RETURNS:
//   - The catalog document, ready for (*segments.Catalog).Load.
//   - An error if the file cannot be read or a row is malformed.
func Parse(templatePath string) (segments.File, error) {
	return ParseWithConfig(templatePath, DefaultTemplateColumns())
}

// ParseWithConfig reads an XLSX catalog template with a custom column layout
// for the Segments sheet.
func ParseWithConfig(templatePath string, columns TemplateColumns) (segments.File, error) {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return segments.File{}, fmt.Errorf("failed to open template file: %w", err)
	}
	defer f.Close()

	return parseWorkbook(f, columns)
}

func parseWorkbook(f *excelize.File, columns TemplateColumns) (segments.File, error) {
	var file segments.File

	sheet := SegmentsSheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		// Fall back to the first sheet for single-sheet templates.
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return file, fmt.Errorf("template file has no sheets")
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return file, fmt.Errorf("failed to read rows: %w", err)
	}

	var current *segments.SegmentDef
	for i := columns.DataStartRow; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		id, name, field, err := parseSegmentRow(row, columns)
		if err != nil {
			return file, fmt.Errorf("error parsing %s row %d: %w", sheet, i+1, err)
		}
		if id == "" {
			return file, fmt.Errorf("error parsing %s row %d: segment is required", sheet, i+1)
		}
		if current == nil || current.ID != id {
			file.Segments = append(file.Segments, segments.SegmentDef{ID: id, Name: name})
			current = &file.Segments[len(file.Segments)-1]
		}
		if field.Name != "" {
			current.Fields = append(current.Fields, field)
		}
	}

	if idx, _ := f.GetSheetIndex(OverridesSheet); idx >= 0 {
		overrides, err := parseOverrides(f)
		if err != nil {
			return file, err
		}
		file.Overrides = overrides
	}
	return file, nil
}

// parseSegmentRow extracts a field definition from a Segments row.
func parseSegmentRow(row []string, columns TemplateColumns) (id, name string, field segments.FieldDef, err error) {
	getCell := cellReader(row)

	id = strings.ToUpper(getCell(columns.SegmentColumn))
	name = getCell(columns.SegmentNameColumn)

	field.Name = getCell(columns.FieldNameColumn)
	field.Type = normalizeDataType(getCell(columns.TypeColumn))
	field.Required = normalizeRequiredType(getCell(columns.RequiredColumn)) == segments.UsageRequired
	field.Allowed = splitList(getCell(columns.AllowedColumn))
	field.Composite = isYes(getCell(columns.CompositeColumn))
	field.Repeatable = isYes(getCell(columns.RepeatableColumn))

	if field.Position, err = atoi(getCell(columns.PositionColumn), "position"); err != nil {
		return
	}
	if field.MinLength, err = atoi(getCell(columns.MinLengthColumn), "min length"); err != nil {
		return
	}
	field.MaxLength, err = atoi(getCell(columns.MaxLengthColumn), "max length")
	return
}

// parseOverrides reads the Overrides sheet. Consecutive rows with the same
// key form one override.
func parseOverrides(f *excelize.File) ([]segments.Override, error) {
	rows, err := f.GetRows(OverridesSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var out []segments.Override
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		getCell := cellReader(row)

		o := segments.Override{
			TransactionSet: getCell(0),
			Loop:           getCell(1),
			Segment:        strings.ToUpper(getCell(2)),
		}
		fo := segments.FieldOverride{
			Name:    getCell(3),
			Allowed: splitList(getCell(5)),
		}
		if usage := getCell(4); usage != "" {
			fo.Usage = normalizeRequiredType(usage)
		}
		if fo.MinLength, err = atoi(getCell(6), "min length"); err != nil {
			return nil, fmt.Errorf("error parsing %s row %d: %w", OverridesSheet, i+1, err)
		}
		if fo.MaxLength, err = atoi(getCell(7), "max length"); err != nil {
			return nil, fmt.Errorf("error parsing %s row %d: %w", OverridesSheet, i+1, err)
		}

		if n := len(out); n > 0 && sameKey(out[n-1], o) {
			out[n-1].Fields = append(out[n-1].Fields, fo)
			continue
		}
		o.Fields = []segments.FieldOverride{fo}
		out = append(out, o)
	}
	return out, nil
}

func sameKey(a, b segments.Override) bool {
	return a.TransactionSet == b.TransactionSet && a.Loop == b.Loop && a.Segment == b.Segment
}

// =============================================================================
// WRITER
// =============================================================================

// Write renders a catalog document as an XLSX template that Parse reads back.
//
// PARAMETERS:
//   - path: the output .xlsx path.
//   - file: the catalog document, e.g. (*segments.Catalog).File().
//
// RETURNS:
//   - An error if the workbook cannot be built or saved.
func Write(path string, file segments.File) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SegmentsSheet); err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", SegmentsSheet, err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	var rows [][]any
	for _, def := range file.Segments {
		if len(def.Fields) == 0 {
			rows = append(rows, []any{def.ID, def.Name})
			continue
		}
		for i, fd := range def.Fields {
			name := ""
			if i == 0 {
				name = def.Name
			}
			rows = append(rows, []any{
				def.ID, name, fd.Position, fd.Name, fd.Type,
				intCell(fd.MinLength), intCell(fd.MaxLength), yesNo(fd.Required),
				strings.Join(fd.Allowed, ","), flag(fd.Composite), flag(fd.Repeatable),
			})
		}
	}
	if err := writeSheet(f, SegmentsSheet, segmentHeaders, rows, style); err != nil {
		return err
	}

	if len(file.Overrides) > 0 {
		if _, err := f.NewSheet(OverridesSheet); err != nil {
			return fmt.Errorf("failed to create %s sheet: %w", OverridesSheet, err)
		}
		rows = rows[:0]
		for _, o := range file.Overrides {
			for _, fo := range o.Fields {
				rows = append(rows, []any{
					o.TransactionSet, o.Loop, o.Segment, fo.Name, fo.Usage,
					strings.Join(fo.Allowed, ","), intCell(fo.MinLength), intCell(fo.MaxLength),
				})
			}
		}
		if err := writeSheet(f, OverridesSheet, overrideHeaders, rows, style); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save template %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, style int) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func cellReader(row []string) func(int) string {
	return func(index int) string {
		if index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func atoi(value, what string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", what, value)
	}
	return n, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func isYes(value string) bool {
	switch strings.ToLower(value) {
	case "y", "yes", "true", "1", "x":
		return true
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func flag(b bool) string {
	if b {
		return "Y"
	}
	return ""
}

func intCell(n int) any {
	if n == 0 {
		return ""
	}
	return n
}

// normalizeRequiredType maps spreadsheet terminology to a field usage.
func normalizeRequiredType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "required", "req", "r", "m", "mandatory", "yes", "y", "true", "1":
		return segments.UsageRequired
	case "not_used", "not used", "n/u", "x":
		return segments.UsageNotUsed
	default:
		// Situational and unrecognized usages are optional.
		return segments.UsageOptional
	}
}

// normalizeDataType maps spreadsheet terminology to an X12 data type.
func normalizeDataType(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "STRING", "TEXT", "ALPHANUMERIC", "ALPHANUM":
		return "AN"
	case "CODE", "IDENTIFIER":
		return "ID"
	case "DATE":
		return "DT"
	case "TIME":
		return "TM"
	case "NUMERIC", "INTEGER", "INT", "NUMBER":
		return "N0"
	case "DECIMAL", "MONEY", "CURRENCY", "FLOAT":
		return "R"
	}
	return value
}
