// =============================================================================
// X12 Parser - Loop Assembler
// =============================================================================
//
// The Parser drives one interchange from raw text to transaction trees:
//
//   raw text
//     -> Detect            delimiters from the ISA header
//     -> Tokenizer         one RawSegment at a time
//     -> SegmentRegistry   typed Record (or UnknownSegment / FieldError)
//     -> envelope segments ISA/GS/ST/SE/GE/IEA handled here
//     -> match rules       every other segment placed by its handler
//     -> SchemaValidator   finished tree after SE
//
// ERROR POLICY:
//   AbortOnError (default) stops at the first failure. ContinueOnError
//   records a failed transaction set in Result.Errors, discards its tree and
//   resumes after its SE. Envelope failures (ISA, GS, GE, IEA, control
//   numbers, end of input with open boundaries) always abort.
//
// UNMATCHED POLICY:
//   UnmatchedFail (default) fails a segment no rule matches with
//   NoMatchingRule. UnmatchedAttach attaches it to the current loop.
//
// =============================================================================

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/ginjaninja78/x12-parser/internal/logging"
	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/segments"
	"github.com/ginjaninja78/x12-parser/internal/tokenizer"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// =============================================================================
// OPTIONS
// =============================================================================

// ErrorPolicy selects what happens when a transaction set fails.
type ErrorPolicy int

const (
	// AbortOnError stops the parse at the first failure.
	AbortOnError ErrorPolicy = iota
	// ContinueOnError skips the failed transaction set and resumes after its SE.
	ContinueOnError
)

// UnmatchedPolicy selects what happens to a segment no rule matches.
type UnmatchedPolicy int

const (
	// UnmatchedFail fails with NoMatchingRule.
	UnmatchedFail UnmatchedPolicy = iota
	// UnmatchedAttach attaches the record to the current loop.
	UnmatchedAttach
)

// Options configures a Parser.
type Options struct {
	ErrorPolicy     ErrorPolicy
	UnmatchedPolicy UnmatchedPolicy

	// VerifyCounts checks SE01, GE01 and IEA01 against the actual counts.
	VerifyCounts bool

	// Offsets locates the delimiters in the ISA header.
	Offsets tokenizer.ISAOffsets
}

// DefaultOptions returns strict options with count verification.
func DefaultOptions() Options {
	return Options{
		ErrorPolicy:     AbortOnError,
		UnmatchedPolicy: UnmatchedFail,
		VerifyCounts:    true,
		Offsets:         tokenizer.DefaultISAOffsets(),
	}
}

// SegmentRegistry is the segment lookup the parser depends on.
type SegmentRegistry interface {
	Lookup(id string) (segments.Constructor, bool)
}

// transactionScoped registries provide transaction-specific constructors.
type transactionScoped interface {
	ForTransaction(code string) segments.Registry
}

// =============================================================================
// RESULT
// =============================================================================

// Interchange describes the ISA envelope.
type Interchange struct {
	SenderQualifier   string
	SenderID          string
	ReceiverQualifier string
	ReceiverID        string
	Date              string
	Time              string
	ControlVersion    string
	ControlNumber     string
	UsageIndicator    string
	Delimiters        types.Delimiters
}

// Group describes one GS envelope.
type Group struct {
	FunctionalCode   string
	SenderCode       string
	ReceiverCode     string
	ControlNumber    string
	Version          string
	TransactionCount int
}

// Result is the outcome of parsing one interchange.
type Result struct {
	// ID identifies this parse run.
	ID string

	Interchange Interchange
	Groups      []Group

	// Trees holds one tree per successfully assembled transaction set.
	Trees []*parsing.Tree

	// Errors holds the failures tolerated under ContinueOnError.
	Errors []*types.ParseError

	// Segments is the number of segments read.
	Segments int
}

// =============================================================================
// PARSER
// =============================================================================

// Parser parses interchanges. A Parser holds only read-only registries, so
// it may be used by concurrent goroutines; each Parse call owns its state.
type Parser struct {
	segs       SegmentRegistry
	dispatcher *Dispatcher
	opts       Options
}

// New creates a Parser.
//
// PARAMETERS:
//   - segs: the segment registry, usually a *segments.Catalog.
//   - dispatcher: the registered transaction sets.
//   - opts: parser options; a zero Offsets value uses the standard offsets.
func New(segs SegmentRegistry, dispatcher *Dispatcher, opts Options) *Parser {
	if opts.Offsets == (tokenizer.ISAOffsets{}) {
		opts.Offsets = tokenizer.DefaultISAOffsets()
	}
	return &Parser{segs: segs, dispatcher: dispatcher, opts: opts}
}

// Parse parses one interchange.
//
// PARAMETERS:
//   - ctx: checked between segments; its logger (see logging.WithLogger) is
//     used for debug and warning output.
//   - raw: the interchange text, starting with ISA.
//
// RETURNS:
//   - The result, with one tree per transaction set.
//   - A *types.ParseError on failure. No partial result is returned with
//     an error.
func (p *Parser) Parse(ctx context.Context, raw string) (*Result, error) {
	delims, err := tokenizer.NewDetector(p.opts.Offsets).Detect(raw)
	if err != nil {
		return nil, err
	}

	run := &run{
		parser:    p,
		log:       logging.FromContext(ctx),
		delims:    delims,
		envelopes: parsing.NewEnvelopeStack(),
		result: &Result{
			ID:          uuid.NewString(),
			Interchange: Interchange{Delimiters: delims},
		},
	}

	tok := tokenizer.New(raw, delims)
	for tok.Next() {
		if err := ctx.Err(); err != nil {
			return nil, types.Newf(types.KindCanceled, "parse canceled").
				AtSegment(tok.Index(), tok.Segment().ID).Wrap(err)
		}
		run.result.Segments++
		if err := run.segment(tok.Segment()); err != nil {
			return nil, err
		}
	}
	if err := tok.Err(); err != nil {
		return nil, err
	}
	if err := run.envelopes.Unclosed(tok.Index()); err != nil {
		return nil, err
	}

	run.log.Debug("Parsed interchange.",
		"id", run.result.ID,
		"control_number", run.result.Interchange.ControlNumber,
		"transaction_sets", len(run.result.Trees),
		"tolerated_errors", len(run.result.Errors))
	return run.result, nil
}

// =============================================================================
// PER-PARSE STATE
// =============================================================================

// run is the state of one Parse call.
type run struct {
	parser    *Parser
	log       *slog.Logger
	delims    types.Delimiters
	envelopes *parsing.EnvelopeStack
	result    *Result

	group *Group
	tx    *transaction
	done  bool

	// skipping is set while discarding a failed transaction set up to its SE.
	skipping bool
}

// transaction is the state of the transaction set being assembled.
type transaction struct {
	entry    *Entry
	registry SegmentRegistry
	tree     *parsing.Tree
	ctx      *parsing.Context
	env      *parsing.Envelope
}

// segment processes one raw segment.
func (r *run) segment(raw types.RawSegment) error {
	if r.done {
		return types.Newf(types.KindMalformedEnvelope, "segment after interchange trailer").AtSegment(raw.Index, raw.ID)
	}
	if r.envelopes.Depth() == 0 && raw.ID != "ISA" {
		return types.Newf(types.KindMalformedEnvelope, "segment outside an interchange").AtSegment(raw.Index, raw.ID)
	}

	if r.skipping && !isEnvelope(raw.ID) {
		r.envelopes.Top().Segments++
		return nil
	}

	rec, err := r.construct(raw)
	if err != nil {
		if raw.ID == "SE" && (r.tx != nil || r.skipping) {
			return r.failTrailer(err, raw)
		}
		if r.tx != nil {
			return r.fail(err, rec, false)
		}
		return err
	}

	switch raw.ID {
	case "ISA":
		return r.openInterchange(rec)
	case "IEA":
		return r.closeInterchange(rec)
	case "GS":
		return r.openGroup(rec)
	case "GE":
		return r.closeGroup(rec)
	case "ST":
		return r.openTransaction(rec)
	case "SE":
		return r.closeTransaction(rec)
	}

	if r.tx == nil {
		return types.Newf(types.KindMalformedEnvelope, "segment outside a transaction set").AtSegment(raw.Index, raw.ID)
	}
	return r.assemble(rec)
}

func isEnvelope(id string) bool {
	switch id {
	case "ISA", "IEA", "GS", "GE", "ST", "SE":
		return true
	}
	return false
}

// construct builds the typed record through the segment registry.
func (r *run) construct(raw types.RawSegment) (*types.Record, error) {
	registry := r.parser.segs
	if r.tx != nil {
		r.tx.env.Segments++
		registry = r.tx.registry
	}

	ctor, ok := registry.Lookup(raw.ID)
	if !ok {
		return nil, types.Newf(types.KindUnknownSegment, "segment %s is not in the catalog", raw.ID).AtSegment(raw.Index, raw.ID)
	}
	return ctor(raw, r.delims)
}

// assemble resolves and invokes the match rule for a body segment.
func (r *run) assemble(rec *types.Record) error {
	tx := r.tx
	rule, ok := tx.entry.Rules.Resolve(rec, tx.ctx)
	if !ok {
		if r.parser.opts.UnmatchedPolicy == UnmatchedAttach {
			r.log.Debug("Attached unmatched segment.", "segment", rec.ID(), "index", rec.Index(), "loop", tx.ctx.LoopPath())
			tx.ctx.Attach(rec)
			return nil
		}
		return r.fail(types.Newf(types.KindNoMatchingRule, "no rule matches %s", rec.ID()), rec, false)
	}

	if err := rule.Handler(rec, tx.ctx); err != nil {
		return r.fail(err, rec, false)
	}
	return nil
}

// fail handles a transaction-level failure according to the error policy.
// closed reports whether the transaction envelope has already been popped.
func (r *run) fail(err error, rec *types.Record, closed bool) error {
	var pe *types.ParseError
	if r.tx != nil {
		pe = r.tx.ctx.Annotate(err, rec)
	} else if !errors.As(err, &pe) {
		pe = types.Newf(types.KindUnknown, "%s", err.Error()).Wrap(err)
	}

	if r.parser.opts.ErrorPolicy != ContinueOnError {
		return pe
	}

	r.log.Warn("Skipping failed transaction set.",
		"transaction_set", pe.TransactionSet,
		"control_number", pe.ControlNumber,
		"error", pe.Error())
	r.result.Errors = append(r.result.Errors, pe)
	r.tx = nil
	r.skipping = !closed
	return nil
}

// failTrailer handles an SE that the catalog rejected. The transaction
// envelope is still closed from the raw SE02 so the next ST can open.
func (r *run) failTrailer(err error, raw types.RawSegment) error {
	trailer := types.NewRecord(raw, "", nil)
	_, popErr := r.envelopes.Pop(parsing.LevelTransaction, raw.Element(2), trailer)
	closed := popErr == nil

	if r.skipping {
		// The set already failed; its error is recorded.
		r.skipping = !closed
		return nil
	}
	return r.fail(err, nil, closed)
}

// =============================================================================
// ENVELOPE HANDLING
// =============================================================================

func (r *run) openInterchange(rec *types.Record) error {
	if r.envelopes.Depth() > 0 {
		return types.Newf(types.KindMalformedEnvelope, "nested interchange header").AtSegment(rec.Index(), rec.ID())
	}
	control := rec.Get("interchange_control_number")
	if _, err := r.envelopes.Push(parsing.LevelInterchange, control, rec); err != nil {
		return err
	}
	r.result.Interchange = Interchange{
		SenderQualifier:   rec.Get("interchange_sender_qualifier"),
		SenderID:          rec.Get("interchange_sender_id"),
		ReceiverQualifier: rec.Get("interchange_receiver_qualifier"),
		ReceiverID:        rec.Get("interchange_receiver_id"),
		Date:              rec.Get("interchange_date"),
		Time:              rec.Get("interchange_time"),
		ControlVersion:    rec.Get("interchange_control_version_number"),
		ControlNumber:     control,
		UsageIndicator:    rec.Get("interchange_usage_indicator"),
		Delimiters:        r.delims,
	}
	return nil
}

func (r *run) closeInterchange(rec *types.Record) error {
	env, err := r.envelopes.Pop(parsing.LevelInterchange, rec.Get("interchange_control_number"), rec)
	if err != nil {
		return err
	}
	if err := r.verifyCount(rec, "number_of_included_functional_groups", env.Children, "functional groups"); err != nil {
		return err
	}
	r.done = true
	return nil
}

func (r *run) openGroup(rec *types.Record) error {
	control := rec.Get("group_control_number")
	if _, err := r.envelopes.Push(parsing.LevelGroup, control, rec); err != nil {
		return err
	}
	r.result.Groups = append(r.result.Groups, Group{
		FunctionalCode: rec.Get("functional_identifier_code"),
		SenderCode:     rec.Get("application_sender_code"),
		ReceiverCode:   rec.Get("application_receiver_code"),
		ControlNumber:  control,
		Version:        rec.Get("version_identifier_code"),
	})
	r.group = &r.result.Groups[len(r.result.Groups)-1]
	return nil
}

func (r *run) closeGroup(rec *types.Record) error {
	env, err := r.envelopes.Pop(parsing.LevelGroup, rec.Get("group_control_number"), rec)
	if err != nil {
		return err
	}
	r.group.TransactionCount = env.Children
	if err := r.verifyCount(rec, "number_of_transaction_sets_included", env.Children, "transaction sets"); err != nil {
		return err
	}
	r.group = nil
	return nil
}

// openTransaction resolves the transaction set and starts a new tree. An
// unsupported transaction set does not open its envelope unless the error
// policy continues past it.
func (r *run) openTransaction(rec *types.Record) error {
	if r.group == nil {
		return types.Newf(types.KindMalformedEnvelope, "ST outside a functional group").AtSegment(rec.Index(), rec.ID())
	}

	if err := r.abandonOpenTransaction(rec); err != nil {
		return err
	}

	code := rec.Get("transaction_set_identifier_code")
	control := rec.Get("transaction_set_control_number")
	version := rec.Get("implementation_convention_reference")
	if version == "" {
		version = r.group.Version
	}

	entry, ok := r.parser.dispatcher.Resolve(code, version)
	if !ok {
		err := types.Newf(types.KindUnsupportedTransactionSet, "no rules registered for %s %s", code, version).
			AtSegment(rec.Index(), rec.ID())
		err.TransactionSet = code
		err.ControlNumber = control
		if r.parser.opts.ErrorPolicy != ContinueOnError {
			return err
		}
		env, pushErr := r.envelopes.Push(parsing.LevelTransaction, control, rec)
		if pushErr != nil {
			return pushErr
		}
		env.Segments = 1
		return r.fail(err, rec, false)
	}

	env, err := r.envelopes.Push(parsing.LevelTransaction, control, rec)
	if err != nil {
		return err
	}
	env.Segments = 1

	tree := parsing.NewTree(code, control, version, r.delims)
	tree.VersionKey = fmt.Sprintf("%s-%s-%s-%s",
		r.result.Interchange.ControlVersion, r.group.FunctionalCode, r.group.Version, code)

	var registry SegmentRegistry = r.parser.segs
	if scoped, ok := r.parser.segs.(transactionScoped); ok {
		registry = scoped.ForTransaction(code)
	}

	pctx := parsing.NewContext(tree, r.envelopes)
	pctx.Attach(rec)
	r.tx = &transaction{entry: entry, registry: registry, tree: tree, ctx: pctx, env: env}

	r.log.Debug("Dispatching transaction set.",
		"code", code, "version", version, "control_number", control, "rules", entry.Rules.Name())
	return nil
}

// abandonOpenTransaction handles an ST that arrives before the open
// transaction set's SE. Strict parsing fails with ControlNumberMismatch;
// tolerant parsing records the failure, drops the open set and lets the new
// ST proceed.
func (r *run) abandonOpenTransaction(rec *types.Record) error {
	open := r.envelopes.Top()
	if open == nil || open.Level != parsing.LevelTransaction {
		return nil
	}
	missing := types.Newf(types.KindControlNumberMismatch,
		"ST found while transaction set %s is still open (missing SE)", open.ControlNumber).
		AtSegment(rec.Index(), rec.ID())

	if r.parser.opts.ErrorPolicy != ContinueOnError {
		if r.tx != nil {
			return r.tx.ctx.Annotate(missing, rec)
		}
		return missing
	}

	r.envelopes.Abandon(parsing.LevelTransaction)
	if r.skipping {
		r.skipping = false
		return nil
	}
	if r.tx != nil {
		return r.fail(missing, rec, true)
	}
	return nil
}

// closeTransaction pops the ST envelope, verifies SE01 and hands the tree to
// the schema validator.
func (r *run) closeTransaction(rec *types.Record) error {
	if r.skipping {
		// The SE was not counted by construct while skipping.
		if _, err := r.envelopes.Pop(parsing.LevelTransaction, rec.Get("transaction_set_control_number"), rec); err != nil {
			return err
		}
		r.skipping = false
		return nil
	}

	if r.tx == nil {
		return types.Newf(types.KindControlNumberMismatch, "SE without an open transaction set").AtSegment(rec.Index(), rec.ID())
	}
	tx := r.tx

	env, err := r.envelopes.Pop(parsing.LevelTransaction, rec.Get("transaction_set_control_number"), rec)
	if err != nil {
		return tx.ctx.Annotate(err, rec)
	}
	tx.ctx.Close(rec)
	tx.tree.SegmentCount = env.Segments

	if err := r.verifyCount(rec, "transaction_segment_count", env.Segments, "segments"); err != nil {
		return r.fail(err, rec, true)
	}

	if tx.entry.Schema != nil {
		if err := tx.entry.Schema.Validate(tx.tree); err != nil {
			return r.fail(err, rec, true)
		}
	}

	r.result.Trees = append(r.result.Trees, tx.tree)
	r.tx = nil
	r.log.Debug("Assembled transaction set.",
		"code", tx.tree.TransactionSet, "control_number", tx.tree.ControlNumber, "segments", env.Segments)
	return nil
}

// verifyCount compares a trailer count element with the actual count.
func (r *run) verifyCount(rec *types.Record, field string, actual int, what string) error {
	if !r.parser.opts.VerifyCounts {
		return nil
	}
	declared, err := strconv.Atoi(rec.Get(field))
	if err != nil || declared != actual {
		return types.Newf(types.KindCountMismatch,
			"%s declares %s %s, found %d", rec.ID(), rec.Get(field), what, actual).AtSegment(rec.Index(), rec.ID())
	}
	return nil
}
