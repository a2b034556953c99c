package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError_Error(t *testing.T) {
	err := Newf(KindOrphanedHierarchyLoop, "parent hierarchical id 7 is not an open ancestor").AtSegment(12, "HL")
	err.TransactionSet = "270"
	err.ControlNumber = "0001"
	err.LoopPath = "2000A/2000B"
	err.HierarchyPath = []string{"1", "2"}

	assert.Equal(t,
		"orphaned hierarchy loop at segment 12 (HL) in transaction set 270/0001 loop 2000A/2000B hl 1>2: parent hierarchical id 7 is not an open ancestor",
		err.Error())
}

func TestParseError_FieldAndCause(t *testing.T) {
	cause := fmt.Errorf("value is not one of IL")
	err := Newf(KindField, "NM101: bad code").AtSegment(9, "NM1").Wrap(cause)
	err.Field = "entity_identifier_code"

	assert.Contains(t, err.Error(), "field entity_identifier_code")
	assert.Contains(t, err.Error(), ": value is not one of IL")
	assert.ErrorIs(t, err, cause)
}

func TestParseError_IsSentinel(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		sentinel error
	}{
		{KindMalformedEnvelope, ErrMalformedEnvelope},
		{KindNoMatchingRule, ErrNoMatchingRule},
		{KindControlNumberMismatch, ErrControlNumberMismatch},
		{KindUnsupportedTransactionSet, ErrUnsupportedTransactionSet},
		{KindCountMismatch, ErrCountMismatch},
		{KindSchemaViolation, ErrSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			var err error = Newf(tt.kind, "boom")
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(fmt.Errorf("wrapped: %w", err)))
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestParseError_WithoutPosition(t *testing.T) {
	err := Newf(KindCanceled, "parse canceled")
	assert.Equal(t, "parse canceled: parse canceled", err.Error())
}
