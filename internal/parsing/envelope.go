// =============================================================================
// X12 Parser - Envelope Stack
// =============================================================================
//
// The envelope stack holds the open ISA, GS and ST boundaries of one
// interchange, innermost last:
//
//   ISA 000000001  (interchange)
//   └── GS 1       (functional group)
//       └── ST 0001 (transaction set)
//
// Openers push, trailers pop. A trailer must close the innermost level and
// repeat its opener's control number; anything else is a
// ControlNumberMismatch. Each level counts what it contains so GE01 and
// IEA01 can be checked when it closes.
//
// =============================================================================

package parsing

import (
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// Level identifies an envelope boundary.
type Level int

const (
	LevelInterchange Level = iota + 1
	LevelGroup
	LevelTransaction
)

func (l Level) String() string {
	switch l {
	case LevelInterchange:
		return "interchange"
	case LevelGroup:
		return "functional group"
	case LevelTransaction:
		return "transaction set"
	}
	return "unknown"
}

var (
	openers = [...]string{LevelInterchange: "ISA", LevelGroup: "GS", LevelTransaction: "ST"}
	closers = [...]string{LevelInterchange: "IEA", LevelGroup: "GE", LevelTransaction: "SE"}
)

// Opener returns the segment identifier that opens the level, or "" for a
// level outside ISA..ST.
func (l Level) Opener() string {
	if l < LevelInterchange || l > LevelTransaction {
		return ""
	}
	return openers[l]
}

// Closer returns the segment identifier that closes the level, or "".
func (l Level) Closer() string {
	if l < LevelInterchange || l > LevelTransaction {
		return ""
	}
	return closers[l]
}

// Envelope is an open boundary.
type Envelope struct {
	Level         Level
	ControlNumber string
	Header        *types.Record

	// Children counts the nested boundaries closed so far: groups in an
	// interchange, transaction sets in a group.
	Children int

	// Segments counts the segments of a transaction set, ST included.
	Segments int
}

// EnvelopeStack tracks the open ISA/GS/ST boundaries of one interchange. It is
// shared by the contexts of every transaction set in the interchange.
type EnvelopeStack struct {
	open []*Envelope
}

// NewEnvelopeStack creates an empty stack.
func NewEnvelopeStack() *EnvelopeStack {
	return &EnvelopeStack{}
}

// Push opens a boundary. Levels must nest in order: interchange, group,
// transaction set. Opening a level that is already open, or one above it,
// means the open level's trailer is missing.
func (s *EnvelopeStack) Push(level Level, control string, header *types.Record) (*Envelope, error) {
	if top := s.Top(); top != nil && level <= top.Level {
		return nil, types.Newf(types.KindControlNumberMismatch,
			"%s found while %s %s is still open (missing %s)",
			level.Opener(), top.Level, top.ControlNumber, top.Level.Closer()).
			AtSegment(header.Index(), header.ID())
	}
	if want := Level(len(s.open) + 1); level != want {
		return nil, types.Newf(types.KindMalformedEnvelope,
			"%s cannot open here; expected %s", level.Opener(), want.Opener()).
			AtSegment(header.Index(), header.ID())
	}
	env := &Envelope{Level: level, ControlNumber: control, Header: header}
	s.open = append(s.open, env)
	return env, nil
}

// Pop closes the innermost boundary. The trailer must close the innermost
// open level and carry the opener's control number.
func (s *EnvelopeStack) Pop(level Level, control string, trailer *types.Record) (*Envelope, error) {
	top := s.Top()
	if top == nil {
		return nil, types.Newf(types.KindControlNumberMismatch,
			"%s without an open %s", level.Closer(), level).
			AtSegment(trailer.Index(), trailer.ID())
	}
	if top.Level != level {
		return nil, types.Newf(types.KindControlNumberMismatch,
			"%s found while %s %s is still open", level.Closer(), top.Level, top.ControlNumber).
			AtSegment(trailer.Index(), trailer.ID())
	}
	if top.ControlNumber != control {
		return nil, types.Newf(types.KindControlNumberMismatch,
			"%s control number %q does not match %s control number %q",
			level.Closer(), control, level.Opener(), top.ControlNumber).
			AtSegment(trailer.Index(), trailer.ID())
	}
	s.open = s.open[:len(s.open)-1]
	if parent := s.Top(); parent != nil {
		parent.Children++
	}
	return top, nil
}

// Abandon drops the innermost boundary, which must be at level, without a
// trailer. It still counts toward its parent. It returns the dropped
// boundary, or nil when level is not innermost.
func (s *EnvelopeStack) Abandon(level Level) *Envelope {
	top := s.Top()
	if top == nil || top.Level != level {
		return nil
	}
	s.open = s.open[:len(s.open)-1]
	if parent := s.Top(); parent != nil {
		parent.Children++
	}
	return top
}

// Top returns the innermost open boundary, or nil.
func (s *EnvelopeStack) Top() *Envelope {
	if len(s.open) == 0 {
		return nil
	}
	return s.open[len(s.open)-1]
}

// Find returns the open boundary at level, or nil.
func (s *EnvelopeStack) Find(level Level) *Envelope {
	for _, e := range s.open {
		if e.Level == level {
			return e
		}
	}
	return nil
}

// Depth returns the number of open boundaries.
func (s *EnvelopeStack) Depth() int {
	return len(s.open)
}

// Unclosed returns an error describing the innermost open boundary, or nil
// when every boundary was closed. It is called at end of input.
func (s *EnvelopeStack) Unclosed(lastIndex int) error {
	top := s.Top()
	if top == nil {
		return nil
	}
	return types.Newf(types.KindControlNumberMismatch,
		"end of input with %s %s still open (missing %s)", top.Level, top.ControlNumber, top.Level.Closer()).
		AtSegment(lastIndex, "")
}
