// =============================================================================
// X12 Parser - Converter Module
// =============================================================================
//
// This module runs the per-file pipeline, from reading an interchange to
// writing its parsed document.
//
// CONVERSION PIPELINE:
//   1. Read and decode the input file
//   2. Check that it starts with an ISA header
//   3. Parse the interchange into transaction trees
//   4. Render the trees as JSON or XML
//   5. Write the output file
//   6. Archive the processed files
//
// CONCURRENCY:
//   A Converter holds only read-only state, so one Converter can process
//   several files from concurrent goroutines.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/x12-parser/internal/config"
	"github.com/ginjaninja78/x12-parser/internal/engine"
	"github.com/ginjaninja78/x12-parser/internal/logging"
	"github.com/ginjaninja78/x12-parser/internal/parsing"
	"github.com/ginjaninja78/x12-parser/internal/types"
	"github.com/ginjaninja78/x12-parser/internal/xmlwriter"
	"github.com/ginjaninja78/x12-parser/pkg/utils"
)

// ErrNotX12 reports an input file that does not start with an ISA header.
var ErrNotX12 = errors.New("input is not an X12 interchange")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile is the path to the generated document.
	// This is empty if processing failed.
	OutputFile string

	// ArchivePath is where the input file was moved, if archival ran.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Parse is the parse result; it is set whenever parsing produced one.
	Parse *engine.Result

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Segments is the number of segments read.
	Segments int

	// TransactionSets is the number of assembled transaction sets.
	TransactionSets int

	// Loops is the number of loop instances across all trees.
	Loops int

	// ParseErrors is the number of failures tolerated under continue_on_error.
	ParseErrors int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter processes interchange files with one shared parser.
type Converter struct {
	cfg    *config.Config
	parser *engine.Parser
	files  *utils.FileManager
	dryRun bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithDryRun parses and renders without writing or archiving anything.
func WithDryRun(dryRun bool) Option {
	return func(c *Converter) {
		c.dryRun = dryRun
	}
}

// New creates a Converter.
//
// PARAMETERS:
//   - cfg: the loaded configuration (directories, output format, encoding).
//   - parser: the parser shared by every file.
//   - opts: optional settings.
//
// RETURNS:
//   - A new Converter instance.
func New(cfg *config.Config, parser *engine.Parser, opts ...Option) *Converter {
	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	fm.ArchiveOnSuccess = cfg.ArchiveEnabled()

	c := &Converter{cfg: cfg, parser: parser, files: fm}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Files returns the file manager used for discovery and archival.
func (c *Converter) Files() *utils.FileManager {
	return c.files
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for one file. The logger is taken from ctx.
//
// RETURNS:
//   - A Result describing the outcome. Archival failures are logged and do
//     not fail the file.
func (c *Converter) Run(ctx context.Context, path string) (result Result) {
	start := time.Now()
	log := logging.FromContext(ctx).With("file", filepath.Base(path))
	result = Result{FilePath: path}
	defer func() { result.Stats.ProcessingTime = time.Since(start) }()

	log.Info("Processing file.")

	text, err := utils.ReadInput(path, c.cfg.CharacterEncoding)
	if err != nil {
		result.Error = err
		return result
	}
	if !utils.IsX12Data(strings.TrimPrefix(text, "\ufeff")) {
		result.Error = fmt.Errorf("failed to parse %s: %w", filepath.Base(path), ErrNotX12)
		return result
	}

	res, err := c.parser.Parse(logging.WithLogger(ctx, log), text)
	result.Parse = res
	if res != nil {
		result.Stats = statsOf(res)
	}
	if err != nil {
		result.Error = fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		return result
	}

	data, ext, err := c.Render(res)
	if err != nil {
		result.Error = err
		return result
	}

	if c.dryRun {
		result.Success = true
		return result
	}

	outputPath, err := c.writeOutput(res, path, data, ext)
	if err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		return result
	}
	result.OutputFile = outputPath
	log.Info("Wrote output.", "output", outputPath, "transaction_sets", len(res.Trees))

	if archived, err := c.files.ArchiveInputFile(path); err != nil {
		log.Warn("Failed to archive input.", "error", err)
	} else if archived != path {
		result.ArchivePath = archived
	}
	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		log.Warn("Failed to archive output.", "error", err)
	}

	result.Success = true
	return result
}

// Render encodes a parse result in the configured output format and returns
// the document with its file extension.
func (c *Converter) Render(res *engine.Result) ([]byte, string, error) {
	if c.cfg.OutputFormat == config.FormatXML {
		data, err := xmlwriter.Generate(res)
		return data, ".xml", err
	}
	data, err := MarshalJSON(res)
	return data, ".json", err
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// writeOutput writes the document to the output directory.
//
// FILE NAMING:
//   The output file is named according to uuid_format. Placeholders:
//   - {uuid}: A random UUID
//   - {timestamp}: Current timestamp
//   - {code}: Transaction set code(s), e.g. "270" or "270-271"
//   - {name}: Input file name without extension
func (c *Converter) writeOutput(res *engine.Result, inputPath string, data []byte, ext string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	fileName := utils.GenerateOutputFileName(c.cfg.UUIDFormat, ext, map[string]string{
		"code": transactionCodes(res),
		"name": name,
	})
	outputPath := filepath.Join(c.cfg.OutputDir, fileName)

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return outputPath, nil
}

// transactionCodes joins the distinct transaction set codes in order.
func transactionCodes(res *engine.Result) string {
	var codes []string
	seen := make(map[string]bool)
	for _, tree := range res.Trees {
		if !seen[tree.TransactionSet] {
			seen[tree.TransactionSet] = true
			codes = append(codes, tree.TransactionSet)
		}
	}
	if len(codes) == 0 {
		return "none"
	}
	return strings.Join(codes, "-")
}

func statsOf(res *engine.Result) ProcessingStats {
	stats := ProcessingStats{
		Segments:        res.Segments,
		TransactionSets: len(res.Trees),
		ParseErrors:     len(res.Errors),
	}
	for _, tree := range res.Trees {
		tree.Root.Walk(func(l *parsing.Loop) bool {
			if l.Parent != nil {
				stats.Loops++
			}
			return true
		})
	}
	return stats
}

// ErrorEntries converts a file result into error log entries: one per
// tolerated parse error, or one for the failure itself.
func ErrorEntries(r Result) []utils.ErrorLogEntry {
	now := time.Now()
	file := filepath.Base(r.FilePath)

	var entries []utils.ErrorLogEntry
	if r.Parse != nil {
		for _, pe := range r.Parse.Errors {
			entries = append(entries, entryOf(now, file, pe))
		}
	}
	if r.Error != nil {
		var pe *types.ParseError
		if errors.As(r.Error, &pe) {
			entries = append(entries, entryOf(now, file, pe))
		} else {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:    now,
				FileName:     file,
				ErrorType:    "processing error",
				ErrorMessage: r.Error.Error(),
			})
		}
	}
	return entries
}

func entryOf(now time.Time, file string, pe *types.ParseError) utils.ErrorLogEntry {
	return utils.ErrorLogEntry{
		Timestamp:      now,
		FileName:       file,
		ErrorType:      pe.Kind.String(),
		ErrorMessage:   pe.Error(),
		SegmentIndex:   pe.SegmentIndex,
		SegmentID:      pe.SegmentID,
		LoopPath:       pe.LoopPath,
		TransactionSet: pe.TransactionSet,
		ControlNumber:  pe.ControlNumber,
	}
}
