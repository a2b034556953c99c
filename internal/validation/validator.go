// =============================================================================
// X12 Parser - Field Validation Engine
// =============================================================================
//
// This module validates individual X12 element values against the field
// definitions of the segment catalog:
//   - Required / optional usage
//   - Minimum and maximum length
//   - X12 data types (AN, ID, DT, TM, Nn, R, B)
//   - Enumerated code values
//   - The BASIC / EXTENDED character sets
//
// VALIDATION STRATEGY:
//   Validation is performed per field. The segment catalog collects the errors
//   for every field of a segment and turns the first fatal one into a
//   FieldError for the engine. Business-rule (semantic) validation is out of
//   scope.
//
// =============================================================================

package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DATA TYPES
// =============================================================================

// X12 element data types.
const (
	TypeAlphanumeric = "AN"
	TypeIdentifier   = "ID"
	TypeDate         = "DT"
	TypeTime         = "TM"
	TypeDecimal      = "R"
	TypeBinary       = "B"
	// Numeric types are "N0" through "N9"; the digit is the implied decimal count.
	TypeNumericPrefix = "N"
)

// Character sets.
const (
	CharacterSetBasic    = "BASIC"
	CharacterSetExtended = "EXTENDED"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// Severity indicates the severity of the error.
	// "error" = fatal, the segment is rejected
	// "warning" = non-fatal, the segment is kept
	Severity string

	// SegmentID is the identifier of the segment holding the field.
	SegmentID string

	// SegmentIndex is the 1-based position of the segment in the interchange.
	SegmentIndex int

	// Field is the name of the field that failed validation.
	Field string

	// Position is the 1-based element position of the field.
	Position int

	// Value is the actual value that failed validation.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s%02d (%s) at segment %d: %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.SegmentID,
		e.Position,
		e.Field,
		e.SegmentIndex,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// FIELD SPECIFICATION
// =============================================================================

// FieldSpec is the subset of a catalog field definition the validator needs.
type FieldSpec struct {
	SegmentID string
	Name      string
	Position  int
	DataType  string
	Required  bool
	MinLength int
	MaxLength int
	Allowed   []string
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator validates element values.
type Validator struct {
	options Options
}

// Options contains options for validation.
type Options struct {
	// CharacterSet restricts AN values to the BASIC or EXTENDED set.
	// Empty disables the character check.
	CharacterSet string

	// CustomValidators is a map of custom validation functions.
	// Key is "<segment id>.<field name>", e.g. "NM1.entity_identifier_code".
	CustomValidators map[string]CustomValidatorFunc
}

// CustomValidatorFunc returns an error message when value is invalid.
type CustomValidatorFunc func(value string, spec FieldSpec) string

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{
		CharacterSet:     CharacterSetExtended,
		CustomValidators: make(map[string]CustomValidatorFunc),
	}
}

// NewValidator creates a Validator with the default options.
func NewValidator() *Validator {
	return &Validator{options: DefaultOptions()}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options Options) *Validator {
	if options.CustomValidators == nil {
		options.CustomValidators = make(map[string]CustomValidatorFunc)
	}
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// ValidateField validates a single element value against its specification.
//
// PARAMETERS:
//   - value: the raw element value.
//   - spec: the field specification.
//   - segmentIndex: the 1-based segment index, for error context.
//
// RETURNS:
//   - The validation errors; nil when the value is valid.
func (v *Validator) ValidateField(value string, spec FieldSpec, segmentIndex int) []*ValidationError {
	var errors []*ValidationError
	fail := func(rule, format string, args ...any) {
		errors = append(errors, &ValidationError{
			Severity:     SeverityError,
			SegmentID:    spec.SegmentID,
			SegmentIndex: segmentIndex,
			Field:        spec.Name,
			Position:     spec.Position,
			Value:        value,
			Rule:         rule,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	// =========================================================================
	// REQUIRED FIELD VALIDATION
	// =========================================================================

	if value == "" {
		if spec.Required {
			fail("required", "required field '%s' is empty", spec.Name)
		}
		return errors
	}

	// =========================================================================
	// LENGTH VALIDATION
	// =========================================================================
	// Numeric lengths exclude the sign and the decimal point.

	length := significantLength(value, spec.DataType)
	if spec.MinLength > 0 && length < spec.MinLength {
		fail("min_length", "value is shorter than %d characters (actual: %d)", spec.MinLength, length)
	}
	if spec.MaxLength > 0 && length > spec.MaxLength {
		fail("max_length", "value exceeds maximum length of %d characters (actual: %d)", spec.MaxLength, length)
	}

	// =========================================================================
	// DATA TYPE VALIDATION
	// =========================================================================

	if msg := validateDataType(value, spec.DataType); msg != "" {
		fail("data_type", "%s", msg)
	}

	// =========================================================================
	// CODE VALUE VALIDATION
	// =========================================================================

	if len(spec.Allowed) > 0 && !contains(spec.Allowed, value) {
		fail("code_value", "value is not one of %s", strings.Join(spec.Allowed, ", "))
	}

	// =========================================================================
	// CHARACTER SET VALIDATION
	// =========================================================================

	if spec.DataType == TypeAlphanumeric || spec.DataType == "" {
		if msg := validateCharacterSet(value, v.options.CharacterSet); msg != "" {
			errors = append(errors, &ValidationError{
				Severity:     SeverityWarning,
				SegmentID:    spec.SegmentID,
				SegmentIndex: segmentIndex,
				Field:        spec.Name,
				Position:     spec.Position,
				Value:        value,
				Rule:         "character_set",
				Message:      msg,
			})
		}
	}

	if custom, ok := v.options.CustomValidators[spec.SegmentID+"."+spec.Name]; ok {
		if msg := custom(value, spec); msg != "" {
			fail("custom", "%s", msg)
		}
	}

	return errors
}

// FirstFatal returns the first error-severity entry, or nil.
func FirstFatal(errs []*ValidationError) *ValidationError {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return e
		}
	}
	return nil
}

// =============================================================================
// DATA TYPE VALIDATORS
// =============================================================================

var (
	decimalPattern = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)
	integerPattern = regexp.MustCompile(`^-?\d+$`)
	timePattern    = regexp.MustCompile(`^\d{4}(\d{2}(\d{1,2})?)?$`)
)

// validateDataType validates a value against an X12 data type.
//
// SUPPORTED DATA TYPES:
//   - AN: any text value (character set checked separately)
//   - ID: identifier; code values are checked separately
//   - DT: CCYYMMDD or YYMMDD
//   - TM: HHMM, HHMMSS, HHMMSSD or HHMMSSDD
//   - N0..N9: integer with implied decimal places
//   - R: decimal number
//   - B: binary, never checked
func validateDataType(value, dataType string) string {
	switch {
	case dataType == "" || dataType == TypeAlphanumeric || dataType == TypeIdentifier || dataType == TypeBinary:
		return ""

	case dataType == TypeDate:
		return validateDate(value)

	case dataType == TypeTime:
		return validateTime(value)

	case dataType == TypeDecimal:
		if !decimalPattern.MatchString(value) {
			return fmt.Sprintf("value '%s' is not a valid decimal number", value)
		}
		return ""

	case isNumericType(dataType):
		if !integerPattern.MatchString(value) {
			return fmt.Sprintf("value '%s' is not a valid %s number", value, dataType)
		}
		return ""

	default:
		// Unknown type, treat as AN.
		return ""
	}
}

// isNumericType reports whether dataType is N0..N9.
func isNumericType(dataType string) bool {
	return len(dataType) == 2 && dataType[0] == 'N' && dataType[1] >= '0' && dataType[1] <= '9'
}

// validateDate accepts CCYYMMDD (transaction dates) and YYMMDD (ISA09).
func validateDate(value string) string {
	var layout string
	switch len(value) {
	case 8:
		layout = "20060102"
	case 6:
		layout = "060102"
	default:
		return fmt.Sprintf("value '%s' is not a valid date", value)
	}
	if _, err := time.Parse(layout, value); err != nil {
		return fmt.Sprintf("value '%s' is not a valid date", value)
	}
	return ""
}

// validateTime accepts HHMM with optional seconds and decimal seconds.
func validateTime(value string) string {
	if !timePattern.MatchString(value) {
		return fmt.Sprintf("value '%s' is not a valid time", value)
	}
	hours, _ := strconv.Atoi(value[0:2])
	minutes, _ := strconv.Atoi(value[2:4])
	if hours > 23 || minutes > 59 {
		return fmt.Sprintf("value '%s' is not a valid time", value)
	}
	if len(value) >= 6 {
		if seconds, _ := strconv.Atoi(value[4:6]); seconds > 59 {
			return fmt.Sprintf("value '%s' is not a valid time", value)
		}
	}
	return ""
}

// =============================================================================
// CHARACTER SET VALIDATION
// =============================================================================

const (
	basicSpecials    = " !\"&'()*+,-./:;?="
	extendedSpecials = "%@[]_{}\\|<>~^`#$"
)

// validateCharacterSet checks every character against the X12 character set.
func validateCharacterSet(value, set string) string {
	if set == "" {
		return ""
	}
	for _, r := range value {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			continue
		case r < 128 && strings.ContainsRune(basicSpecials, r):
			continue
		case set == CharacterSetExtended && (r >= 'a' && r <= 'z'):
			continue
		case set == CharacterSetExtended && r < 128 && strings.ContainsRune(extendedSpecials, r):
			continue
		}
		return fmt.Sprintf("character %q is outside the %s character set", r, set)
	}
	return ""
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// significantLength returns the X12 length of a value.
func significantLength(value, dataType string) int {
	if dataType == TypeDecimal || isNumericType(dataType) {
		return len(strings.NewReplacer("-", "", ".", "").Replace(value))
	}
	return len([]rune(value))
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errors)))
	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}
