// =============================================================================
// X12 Parser - Delimiter Detector
// =============================================================================
//
// The interchange header (ISA) is the only fixed-width segment in X12. Its
// layout pins the four control characters to known offsets:
//
//   ISA*00*          *00*          *ZZ*SENDER         *ZZ*RECEIVER       *230101*1200*^*00501*000000001*0*T*:~
//      ^ element separator (3)                                                  ^ rep (82)          ^ comp (104)
//                                                                                                    ^ terminator (105)
//
// The offsets are configurable (see config.ISASettings) because a handful of
// trading partners are known to pad the header differently.
//
// =============================================================================

package tokenizer

import (
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/types"
)

// =============================================================================
// ISA OFFSETS
// =============================================================================

// ISAOffsets holds the character positions of the delimiters in the ISA header.
type ISAOffsets struct {
	Element    int
	Repetition int
	Component  int
	Segment    int

	// Length is the minimum header length, terminator included.
	Length int

	// ControlVersionField is the element position of ISA12.
	ControlVersionField int
}

// DefaultISAOffsets returns the offsets defined by the X12 standard.
func DefaultISAOffsets() ISAOffsets {
	return ISAOffsets{
		Element:             3,
		Repetition:          82,
		Component:           104,
		Segment:             105,
		Length:              106,
		ControlVersionField: 12,
	}
}

// repetitionVersion is the first interchange control version (ISA12) that
// defines ISA11 as a repetition separator. Earlier versions use ISA11 as the
// standards identifier ("U").
const repetitionVersion = "00402"

// =============================================================================
// DETECTOR
// =============================================================================

// Detector discovers delimiters from an interchange header.
type Detector struct {
	Offsets ISAOffsets
}

// NewDetector creates a Detector with the given offsets.
func NewDetector(offsets ISAOffsets) *Detector {
	return &Detector{Offsets: offsets}
}

// Detect discovers delimiters using the standard ISA offsets.
func Detect(text string) (types.Delimiters, error) {
	return NewDetector(DefaultISAOffsets()).Detect(text)
}

// Detect reads the delimiters from the header at the start of text.
//
// PARAMETERS:
//   - text: the interchange, starting with the ISA segment.
//
// RETURNS:
//   - The discovered delimiters.
//   - A MalformedEnvelope ParseError when the header is short, does not start
//     with ISA, or when two delimiters coincide.
//
// Only the header bytes are read.
func (d *Detector) Detect(text string) (types.Delimiters, error) {
	o := d.Offsets
	if len(text) < o.Length {
		return types.Delimiters{}, types.Newf(types.KindMalformedEnvelope,
			"interchange header is %d characters, need at least %d", len(text), o.Length).AtSegment(1, "ISA")
	}
	if !strings.HasPrefix(text, "ISA") {
		return types.Delimiters{}, types.Newf(types.KindMalformedEnvelope,
			"input does not start with an ISA segment").AtSegment(1, "")
	}

	delims := types.Delimiters{
		Element:   text[o.Element],
		Component: text[o.Component],
		Segment:   text[o.Segment],
	}

	header := strings.Split(text[:o.Segment], string(delims.Element))
	if len(header) <= o.ControlVersionField {
		return types.Delimiters{}, types.Newf(types.KindMalformedEnvelope,
			"interchange header has %d elements, need %d", len(header)-1, o.ControlVersionField).AtSegment(1, "ISA")
	}
	if version := header[o.ControlVersionField]; version >= repetitionVersion {
		delims.Repetition = text[o.Repetition]
	}

	if err := delims.Validate(); err != nil {
		return types.Delimiters{}, types.Newf(types.KindMalformedEnvelope,
			"invalid delimiters").AtSegment(1, "ISA").Wrap(err)
	}
	return delims, nil
}
