// =============================================================================
// X12 Parser - Error Taxonomy
// =============================================================================
//
// Every structural failure raised by the engine is a *ParseError. Each error
// kind has a sentinel so callers can branch with errors.Is, and errors.As
// recovers the positional context (segment index, identifier, loop and
// hierarchy path) needed to report a precise location.
//
// None of these errors are transient. The engine never retries them.
//
// =============================================================================

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a ParseError.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMalformedEnvelope
	KindTokenize
	KindUnknownSegment
	KindField
	KindNoMatchingRule
	KindOrphanedHierarchyLoop
	KindControlNumberMismatch
	KindUnsupportedTransactionSet
	KindCountMismatch
	KindDuplicateHierarchyID
	KindLoopPlacement
	KindSchemaViolation
	KindCanceled
)

// Sentinels, one per kind.
var (
	ErrMalformedEnvelope         = errors.New("malformed envelope")
	ErrTokenize                  = errors.New("tokenize error")
	ErrUnknownSegment            = errors.New("unknown segment")
	ErrField                     = errors.New("field error")
	ErrNoMatchingRule            = errors.New("no matching rule")
	ErrOrphanedHierarchyLoop     = errors.New("orphaned hierarchy loop")
	ErrControlNumberMismatch     = errors.New("control number mismatch")
	ErrUnsupportedTransactionSet = errors.New("unsupported transaction set")
	ErrCountMismatch             = errors.New("count mismatch")
	ErrDuplicateHierarchyID      = errors.New("duplicate hierarchy id")
	ErrLoopPlacement             = errors.New("loop placement")
	ErrSchemaViolation           = errors.New("schema violation")
	ErrCanceled                  = errors.New("parse canceled")
)

var kindSentinels = map[ErrorKind]error{
	KindMalformedEnvelope:         ErrMalformedEnvelope,
	KindTokenize:                  ErrTokenize,
	KindUnknownSegment:            ErrUnknownSegment,
	KindField:                     ErrField,
	KindNoMatchingRule:            ErrNoMatchingRule,
	KindOrphanedHierarchyLoop:     ErrOrphanedHierarchyLoop,
	KindControlNumberMismatch:     ErrControlNumberMismatch,
	KindUnsupportedTransactionSet: ErrUnsupportedTransactionSet,
	KindCountMismatch:             ErrCountMismatch,
	KindDuplicateHierarchyID:      ErrDuplicateHierarchyID,
	KindLoopPlacement:             ErrLoopPlacement,
	KindSchemaViolation:           ErrSchemaViolation,
	KindCanceled:                  ErrCanceled,
}

// String returns the sentinel text for the kind.
func (k ErrorKind) String() string {
	if s, ok := kindSentinels[k]; ok {
		return s.Error()
	}
	return "unknown error"
}

// Sentinel returns the sentinel error for the kind, or nil for KindUnknown.
func (k ErrorKind) Sentinel() error {
	return kindSentinels[k]
}

// =============================================================================
// PARSE ERROR
// =============================================================================

// ParseError is a structural failure with its position in the interchange.
type ParseError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// SegmentIndex is the 1-based index of the offending segment (0 if unknown).
	SegmentIndex int

	// SegmentID is the identifier of the offending segment, if known.
	SegmentID string

	// Field is the field name for FieldError failures.
	Field string

	// LoopPath is the path of loop names from the transaction root to the
	// loop that was current when the failure occurred, e.g. "2000A/2100A".
	LoopPath string

	// HierarchyPath lists the HL01 ids on the hierarchy stack, root first.
	HierarchyPath []string

	// TransactionSet is the ST01 code of the transaction set being parsed.
	TransactionSet string

	// ControlNumber is the control number of the enclosing transaction set.
	ControlNumber string

	// Message describes the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Newf creates a ParseError of the given kind.
func Newf(kind ErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AtSegment sets the segment position and returns the error for chaining.
func (e *ParseError) AtSegment(index int, id string) *ParseError {
	e.SegmentIndex = index
	e.SegmentID = id
	return e
}

// Wrap sets the underlying cause and returns the error for chaining.
func (e *ParseError) Wrap(err error) *ParseError {
	e.Err = err
	return e
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.SegmentIndex > 0 || e.SegmentID != "" {
		fmt.Fprintf(&b, " at segment %d", e.SegmentIndex)
		if e.SegmentID != "" {
			fmt.Fprintf(&b, " (%s)", e.SegmentID)
		}
	}
	if e.TransactionSet != "" {
		fmt.Fprintf(&b, " in transaction set %s", e.TransactionSet)
		if e.ControlNumber != "" {
			fmt.Fprintf(&b, "/%s", e.ControlNumber)
		}
	}
	if e.LoopPath != "" {
		fmt.Fprintf(&b, " loop %s", e.LoopPath)
	}
	if len(e.HierarchyPath) > 0 {
		fmt.Fprintf(&b, " hl %s", strings.Join(e.HierarchyPath, ">"))
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ParseError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of the first ParseError in err's chain.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
