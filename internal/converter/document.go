// =============================================================================
// X12 Parser - JSON Document Shaping
// =============================================================================
//
// This module turns a parse result into the JSON output document. Loops nest
// the way the transaction tree does, and segment fields are keyed by name:
//
//   {
//     "id": "8c0f...",
//     "interchange": {"control_number": "000000001", ...},
//     "transaction_sets": [{
//       "code": "270",
//       "loops": [{
//         "name": "2000A", "hl": "1", "level": "20",
//         "segments": [{"id": "HL", "index": 5, "fields": {...}}],
//         "loops": [...]
//       }]
//     }]
//   }
//
// A composite field renders as a list of components and a repeated field as a
// list of repetitions. Empty fields are omitted.
//
// =============================================================================

package converter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/engine"
	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// Document is the JSON rendering of one interchange.
type Document struct {
	ID              string           `json:"id"`
	Interchange     InterchangeDoc   `json:"interchange"`
	Groups          []GroupDoc       `json:"groups,omitempty"`
	TransactionSets []TransactionDoc `json:"transaction_sets"`
	Errors          []ErrorDoc       `json:"errors,omitempty"`
	Segments        int              `json:"segment_count"`
}

// InterchangeDoc holds the ISA envelope values.
type InterchangeDoc struct {
	SenderQualifier   string `json:"sender_qualifier"`
	SenderID          string `json:"sender_id"`
	ReceiverQualifier string `json:"receiver_qualifier"`
	ReceiverID        string `json:"receiver_id"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	ControlVersion    string `json:"control_version"`
	ControlNumber     string `json:"control_number"`
	UsageIndicator    string `json:"usage_indicator"`
	Delimiters        string `json:"delimiters"`
}

// GroupDoc holds one GS envelope.
type GroupDoc struct {
	FunctionalCode   string `json:"functional_code"`
	SenderCode       string `json:"sender_code"`
	ReceiverCode     string `json:"receiver_code"`
	ControlNumber    string `json:"control_number"`
	Version          string `json:"version"`
	TransactionCount int    `json:"transaction_count"`
}

// TransactionDoc holds one transaction set tree.
type TransactionDoc struct {
	Code          string    `json:"code"`
	ControlNumber string    `json:"control_number"`
	Version       string    `json:"version"`
	VersionKey    string    `json:"version_key"`
	SegmentCount  int       `json:"segment_count"`
	Loops         []LoopDoc `json:"loops"`
}

// LoopDoc holds one loop instance.
type LoopDoc struct {
	Name     string       `json:"name"`
	HL       string       `json:"hl,omitempty"`
	ParentHL string       `json:"parent_hl,omitempty"`
	Level    string       `json:"level,omitempty"`
	Segments []SegmentDoc `json:"segments,omitempty"`
	Loops    []LoopDoc    `json:"loops,omitempty"`
}

// SegmentDoc holds one typed record.
type SegmentDoc struct {
	ID       string         `json:"id"`
	Index    int            `json:"index"`
	Name     string         `json:"name,omitempty"`
	Fields   map[string]any `json:"fields"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ErrorDoc holds a tolerated parse failure.
type ErrorDoc struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	SegmentIndex   int    `json:"segment_index,omitempty"`
	SegmentID      string `json:"segment_id,omitempty"`
	Field          string `json:"field,omitempty"`
	LoopPath       string `json:"loop_path,omitempty"`
	HierarchyPath  string `json:"hierarchy_path,omitempty"`
	TransactionSet string `json:"transaction_set,omitempty"`
	ControlNumber  string `json:"control_number,omitempty"`
}

// NewDocument shapes a parse result for JSON output.
func NewDocument(res *engine.Result) Document {
	isa := res.Interchange
	doc := Document{
		ID: res.ID,
		Interchange: InterchangeDoc{
			SenderQualifier:   isa.SenderQualifier,
			SenderID:          strings.TrimSpace(isa.SenderID),
			ReceiverQualifier: isa.ReceiverQualifier,
			ReceiverID:        strings.TrimSpace(isa.ReceiverID),
			Date:              isa.Date,
			Time:              isa.Time,
			ControlVersion:    isa.ControlVersion,
			ControlNumber:     isa.ControlNumber,
			UsageIndicator:    isa.UsageIndicator,
			Delimiters:        isa.Delimiters.String(),
		},
		TransactionSets: make([]TransactionDoc, 0, len(res.Trees)),
		Segments:        res.Segments,
	}

	for _, g := range res.Groups {
		doc.Groups = append(doc.Groups, GroupDoc(g))
	}
	for _, tree := range res.Trees {
		doc.TransactionSets = append(doc.TransactionSets, newTransactionDoc(tree))
	}
	for _, pe := range res.Errors {
		doc.Errors = append(doc.Errors, ErrorDoc{
			Kind:           pe.Kind.String(),
			Message:        pe.Error(),
			SegmentIndex:   pe.SegmentIndex,
			SegmentID:      pe.SegmentID,
			Field:          pe.Field,
			LoopPath:       pe.LoopPath,
			HierarchyPath:  strings.Join(pe.HierarchyPath, ">"),
			TransactionSet: pe.TransactionSet,
			ControlNumber:  pe.ControlNumber,
		})
	}
	return doc
}

// MarshalJSON renders a parse result as indented JSON.
func MarshalJSON(res *engine.Result) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("failed to generate JSON: no parse result")
	}
	data, err := json.MarshalIndent(NewDocument(res), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func newTransactionDoc(tree *parsing.Tree) TransactionDoc {
	td := TransactionDoc{
		Code:          tree.TransactionSet,
		ControlNumber: tree.ControlNumber,
		Version:       tree.Version,
		VersionKey:    tree.VersionKey,
		SegmentCount:  tree.SegmentCount,
		Loops:         make([]LoopDoc, 0, len(tree.Root.Children)),
	}
	for _, child := range tree.Root.Children {
		td.Loops = append(td.Loops, newLoopDoc(child))
	}
	return td
}

func newLoopDoc(loop *parsing.Loop) LoopDoc {
	ld := LoopDoc{Name: loop.Name}
	if h := loop.Hierarchy; h != nil {
		ld.HL, ld.ParentHL, ld.Level = h.ID, h.ParentID, h.LevelCode
	}
	for _, rec := range loop.Segments {
		ld.Segments = append(ld.Segments, newSegmentDoc(rec))
	}
	for _, child := range loop.Children {
		ld.Loops = append(ld.Loops, newLoopDoc(child))
	}
	return ld
}

func newSegmentDoc(rec *types.Record) SegmentDoc {
	sd := SegmentDoc{
		ID:       rec.ID(),
		Index:    rec.Index(),
		Name:     rec.Name,
		Fields:   make(map[string]any, len(rec.Fields)),
		Warnings: rec.Warnings,
	}
	for _, f := range rec.Fields {
		switch {
		case f.Value == "":
		case len(f.RepeatComponents) > 1:
			sd.Fields[f.Name] = f.RepeatComponents
		case len(f.Repeats) > 1:
			sd.Fields[f.Name] = f.Repeats
		case len(f.Components) > 1:
			sd.Fields[f.Name] = f.Components
		default:
			sd.Fields[f.Name] = f.Value
		}
	}
	return sd
}
