// =============================================================================
// X12 Parser - XML Writer Module
// =============================================================================
//
// This module renders parse results as XML documents. Loops, segments and
// fields keep their X12 names, so one document layout serves every
// transaction set.
//
// XML STRUCTURE:
//
//   <interchange controlNumber="000000001" sender="SUBMITTERID" ...>
//     <group functionalCode="HS" controlNumber="1" version="005010X279A1"/>
//     <transactionSet n="1" code="270" controlNumber="0001" ...>
//       <loop name="header">
//         <segment id="ST" n="3">
//           <field name="transaction_set_identifier_code" position="1">270</field>
//         </segment>
//       </loop>
//       <loop name="2000A" hl="1" level="20">
//         <segment id="HL" n="5">...</segment>
//         <loop name="2100A">...</loop>
//       </loop>
//     </transactionSet>
//   </interchange>
//
// Composite fields render <component n="1"> children and repeatable fields
// render <repeat n="1"> children.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/engine"
	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version for the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding for the XML declaration.
	// Default: "UTF-8"
	Encoding string

	// RootAttributes are additional attributes for the root element.
	// Example: {"xmlns": "http://example.com/x12"}
	RootAttributes map[string]string

	// IncludeEmptyFields renders declared fields without a value.
	// Default: false
	IncludeEmptyFields bool

	// IncludeRaw adds a raw="..." attribute with the re-encoded segment.
	// Default: false
	IncludeRaw bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
		RootAttributes:        make(map[string]string),
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate creates an XML document from a parse result.
//
// PARAMETERS:
//   - result: the parse result, one transactionSet element per tree.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if generation fails.
func Generate(result *engine.Result) ([]byte, error) {
	return GenerateWithOptions(result, DefaultGenerateOptions())
}

// GenerateWithOptions creates an XML document with custom options.
func GenerateWithOptions(result *engine.Result, options GenerateOptions) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("failed to generate XML: no parse result")
	}

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		fmt.Fprintf(&buffer, "<?xml version=\"%s\" encoding=\"%s\"?>\n",
			options.XMLVersion, options.Encoding)
	}

	root := buildDocument(result, options)
	writeElement(&buffer, root, options.Indent, 0)
	return buffer.Bytes(), nil
}

// GenerateTree renders a single transaction set as a document whose root is
// the transactionSet element.
func GenerateTree(tree *parsing.Tree, options GenerateOptions) ([]byte, error) {
	if tree == nil {
		return nil, fmt.Errorf("failed to generate XML: no transaction tree")
	}
	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		fmt.Fprintf(&buffer, "<?xml version=\"%s\" encoding=\"%s\"?>\n",
			options.XMLVersion, options.Encoding)
	}
	writeElement(&buffer, buildTransactionElement(tree, 1, options), options.Indent, 0)
	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

// buildDocument constructs the interchange element.
func buildDocument(result *engine.Result, options GenerateOptions) XMLElement {
	isa := result.Interchange
	root := element("interchange",
		"id", result.ID,
		"controlNumber", isa.ControlNumber,
		"senderQualifier", isa.SenderQualifier,
		"sender", strings.TrimSpace(isa.SenderID),
		"receiverQualifier", isa.ReceiverQualifier,
		"receiver", strings.TrimSpace(isa.ReceiverID),
		"date", isa.Date,
		"time", isa.Time,
		"version", isa.ControlVersion,
		"usage", isa.UsageIndicator,
		"segments", strconv.Itoa(result.Segments),
	)

	keys := make([]string, 0, len(options.RootAttributes))
	for key := range options.RootAttributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		root.Attributes = append(root.Attributes, attr(key, options.RootAttributes[key]))
	}

	for _, g := range result.Groups {
		root.Children = append(root.Children, element("group",
			"functionalCode", g.FunctionalCode,
			"sender", g.SenderCode,
			"receiver", g.ReceiverCode,
			"controlNumber", g.ControlNumber,
			"version", g.Version,
			"transactionSets", strconv.Itoa(g.TransactionCount),
		))
	}

	for i, tree := range result.Trees {
		root.Children = append(root.Children, buildTransactionElement(tree, i+1, options))
	}

	for _, pe := range result.Errors {
		e := element("error",
			"kind", pe.Kind.String(),
			"segment", strconv.Itoa(pe.SegmentIndex),
			"segmentId", pe.SegmentID,
			"transactionSet", pe.TransactionSet,
			"controlNumber", pe.ControlNumber,
		)
		e.Value = pe.Error()
		root.Children = append(root.Children, e)
	}
	return root
}

// buildTransactionElement constructs a transactionSet element.
//
// STRUCTURE:
//   <transactionSet n="1" code="270" controlNumber="0001" version="..." versionKey="...">
//     <loop name="header">...</loop>
//     <loop name="2000A" hl="1" level="20">...</loop>
//     <loop name="footer">...</loop>
//   </transactionSet>
func buildTransactionElement(tree *parsing.Tree, n int, options GenerateOptions) XMLElement {
	e := element("transactionSet",
		"n", strconv.Itoa(n),
		"code", tree.TransactionSet,
		"controlNumber", tree.ControlNumber,
		"version", tree.Version,
		"versionKey", tree.VersionKey,
		"segments", strconv.Itoa(tree.SegmentCount),
	)
	for _, child := range tree.Root.Children {
		e.Children = append(e.Children, buildLoopElement(child, tree.Delimiters, options))
	}
	return e
}

// buildLoopElement renders a loop: its segments, then its child loops.
func buildLoopElement(loop *parsing.Loop, delims types.Delimiters, options GenerateOptions) XMLElement {
	e := element("loop", "name", loop.Name)
	if h := loop.Hierarchy; h != nil {
		e.Attributes = append(e.Attributes,
			attr("hl", h.ID), attr("parent", h.ParentID), attr("level", h.LevelCode))
		e.Attributes = compact(e.Attributes)
	}
	for _, rec := range loop.Segments {
		e.Children = append(e.Children, buildSegmentElement(rec, delims, options))
	}
	for _, child := range loop.Children {
		e.Children = append(e.Children, buildLoopElement(child, delims, options))
	}
	return e
}

// buildSegmentElement renders one record.
//
// STRUCTURE:
//   <segment id="NM1" n="6" name="Individual or Organizational Name">
//     <field name="entity_identifier_code" position="1">PR</field>
//   </segment>
func buildSegmentElement(rec *types.Record, delims types.Delimiters, options GenerateOptions) XMLElement {
	e := element("segment", "id", rec.ID(), "n", strconv.Itoa(rec.Index()), "name", rec.Name)
	if options.IncludeRaw {
		e.Attributes = append(e.Attributes, attr("raw", rec.X12(delims)))
	}

	for _, f := range rec.Fields {
		if f.Value == "" && !options.IncludeEmptyFields {
			continue
		}
		fe := element("field", "name", f.Name, "position", strconv.Itoa(f.Position))
		switch {
		case len(f.Repeats) > 1:
			for i, r := range f.Repeats {
				re := element("repeat", "n", strconv.Itoa(i+1))
				if i < len(f.RepeatComponents) && len(f.RepeatComponents[i]) > 1 {
					re.Children = componentElements(f.RepeatComponents[i])
				} else {
					re.Value = r
				}
				fe.Children = append(fe.Children, re)
			}
		case len(f.Components) > 1:
			fe.Children = componentElements(f.Components)
		default:
			fe.Value = f.Value
		}
		e.Children = append(e.Children, fe)
	}

	for _, w := range rec.Warnings {
		we := element("warning")
		we.Value = w
		e.Children = append(e.Children, we)
	}
	return e
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// componentElements renders the parts of a composite value.
func componentElements(parts []string) []XMLElement {
	out := make([]XMLElement, len(parts))
	for i, c := range parts {
		out[i] = element("component", "n", strconv.Itoa(i+1))
		out[i].Value = c
	}
	return out
}

// element creates an element with name/value attribute pairs. Empty values
// are dropped.
func element(name string, attrs ...string) XMLElement {
	e := XMLElement{XMLName: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attributes = append(e.Attributes, attr(attrs[i], attrs[i+1]))
	}
	e.Attributes = compact(e.Attributes)
	return e
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func compact(attrs []xml.Attr) []xml.Attr {
	out := attrs[:0]
	for _, a := range attrs {
		if a.Value != "" {
			out = append(out, a)
		}
	}
	return out
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	pad := strings.Repeat(indent, level)
	buffer.WriteString(pad)

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)
	for _, a := range element.Attributes {
		fmt.Fprintf(buffer, " %s=\"%s\"", a.Name.Local, escapeXML(a.Value))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")
	if len(element.Children) == 0 {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		buffer.WriteString(pad)
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML text and attributes.
func escapeXML(s string) string {
	var buffer bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&buffer, []byte(s))
	return buffer.String()
}
