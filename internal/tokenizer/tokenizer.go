// =============================================================================
// X12 Parser - Tokenizer
// =============================================================================
//
// The tokenizer turns interchange text into a forward-only sequence of raw
// segments. It splits on the segment terminator, trims line-break artifacts
// around each segment, then splits on the element separator.
//
// Component and repetition separators are NOT applied here. Decomposing
// composite or repeated elements is the job of the segment catalog, which
// knows which fields are composite.
//
// USAGE:
//   tok := tokenizer.New(text, delims)
//   for tok.Next() {
//       seg := tok.Segment()
//       // Process the segment...
//   }
//   if err := tok.Err(); err != nil {
//       return err
//   }
//
// The sequence is single pass. To parse again, create a new Tokenizer.
//
// =============================================================================

package tokenizer

import (
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/types"
)

// lineArtifacts are stripped from both ends of every segment. Many senders
// wrap the interchange with a line break after each terminator.
const lineArtifacts = "\r\n"

// =============================================================================
// TOKENIZER
// =============================================================================

// Tokenizer produces RawSegment values from interchange text.
type Tokenizer struct {
	text    string
	delims  types.Delimiters
	pos     int
	index   int
	current types.RawSegment
	err     error
	done    bool
}

// New creates a Tokenizer over text using the discovered delimiters.
func New(text string, delims types.Delimiters) *Tokenizer {
	return &Tokenizer{
		text:   text,
		delims: delims,
	}
}

// Next advances to the next segment. It returns false at the end of input or
// after an error; check Err to tell the two apart.
func (t *Tokenizer) Next() bool {
	if t.err != nil || t.done {
		return false
	}

	if t.pos >= len(t.text) {
		t.done = true
		return false
	}

	rest := t.text[t.pos:]
	end := strings.IndexByte(rest, t.delims.Segment)
	terminated := end >= 0

	var chunk string
	if terminated {
		chunk = rest[:end]
		t.pos += end + 1
	} else {
		chunk = rest
		t.pos = len(t.text)
	}

	chunk = strings.Trim(chunk, lineArtifacts)
	if chunk == "" {
		// Whitespace after the final terminator ends the stream.
		if !terminated {
			t.done = true
			return false
		}
		t.err = types.Newf(types.KindTokenize, "empty segment").AtSegment(t.index+1, "")
		return false
	}

	t.index++
	seg, err := t.split(chunk)
	if err != nil {
		t.err = err
		return false
	}
	t.current = seg
	return true
}

// split breaks one segment string into its identifier and elements.
func (t *Tokenizer) split(chunk string) (types.RawSegment, error) {
	parts := strings.Split(chunk, string(t.delims.Element))
	id := parts[0]

	if !validSegmentID(id) {
		return types.RawSegment{}, types.Newf(types.KindTokenize,
			"invalid segment identifier %q", id).AtSegment(t.index, id)
	}

	return types.RawSegment{
		Index:    t.index,
		ID:       id,
		Elements: parts[1:],
	}, nil
}

// validSegmentID checks for a 2-3 character upper-case alphanumeric identifier.
func validSegmentID(id string) bool {
	if len(id) < 2 || len(id) > 3 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Segment returns the current segment.
func (t *Tokenizer) Segment() types.RawSegment {
	return t.current
}

// Index returns the 1-based index of the current segment.
func (t *Tokenizer) Index() int {
	return t.index
}

// Delimiters returns the delimiters the tokenizer splits on.
func (t *Tokenizer) Delimiters() types.Delimiters {
	return t.delims
}

// Err returns the error that stopped the tokenizer, if any.
func (t *Tokenizer) Err() error {
	return t.err
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// Collect tokenizes all of text. It is a convenience for tests and tooling;
// the engine pulls segments one at a time.
func Collect(text string, delims types.Delimiters) ([]types.RawSegment, error) {
	var segments []types.RawSegment
	tok := New(text, delims)
	for tok.Next() {
		segments = append(segments, tok.Segment())
	}
	return segments, tok.Err()
}

// Join re-encodes segments with the given delimiters, each followed by the
// segment terminator.
func Join(segments []types.RawSegment, delims types.Delimiters) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Encode(delims))
		b.WriteByte(delims.Segment)
	}
	return b.String()
}

// FilterByID returns the segments with the given identifier.
func FilterByID(segments []types.RawSegment, id string) []types.RawSegment {
	var filtered []types.RawSegment
	for _, seg := range segments {
		if seg.ID == id {
			filtered = append(filtered, seg)
		}
	}
	return filtered
}
