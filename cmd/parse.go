// =============================================================================
// X12 Parser - Parse Command
// =============================================================================
//
// This file defines the 'parse' command, which is the main command for
// turning interchanges into JSON or XML documents.
//
// COMMAND USAGE:
//   x12 parse [files...] [flags]
//
// FLAGS:
//   --dry-run     : Parse and render without writing output or archiving
//   --pattern     : Glob for file names when scanning the input directory
//   --recursive   : Scan input directory subdirectories
//   --format      : Override output_format (json or xml)
//
// PROCESSING PIPELINE:
//   1. Build the segment catalog and register the transaction sets
//   2. Discover interchanges in the input directory (or use the arguments)
//   3. Parse each file concurrently, bounded by max_concurrency
//   4. Write outputs and archive inputs
//   5. Write the error log and summary to the log directory
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x12-parser/internal/config"
	"github.com/ginjaninja78/x12-parser/internal/converter"
	"github.com/ginjaninja78/x12-parser/internal/logging"
	"github.com/ginjaninja78/x12-parser/internal/types"
	"github.com/ginjaninja78/x12-parser/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun parses without writing output files.
var dryRun bool

// filePattern filters discovered file names.
var filePattern string

// recursive scans input directory subdirectories.
var recursive bool

// outputFormat overrides the configured output format.
var outputFormat string

// =============================================================================
// PARSE COMMAND DEFINITION
// =============================================================================

// parseCmd represents the 'parse' command.
var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Parse X12 interchanges into JSON or XML documents",
	Long: `The parse command reads X12 interchanges, assembles each transaction set
into a loop tree and writes one document per input file.

Without arguments it scans the input directory for files that start with an
ISA header. Files are processed concurrently, and a failure in one file does
not affect the others.

On successful processing:
  - The document is placed in the output directory
  - The input is moved to the input archive
  - A summary report is written to the log directory

On error:
  - An error log is written to the log directory
  - The input remains in place`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		if outputFormat != "" {
			outputFormat = strings.ToLower(outputFormat)
			if outputFormat != config.FormatJSON && outputFormat != config.FormatXML {
				return fmt.Errorf("--format must be json or xml, got %q", outputFormat)
			}
			cfg.OutputFormat = outputFormat
		}
		return runParse(cmd.Context(), &cfg, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Parse and render without writing output files",
	)

	parseCmd.Flags().StringVar(
		&filePattern,
		"pattern",
		"",
		"Glob for file names in the input directory (default: all files)",
	)

	parseCmd.Flags().BoolVar(
		&recursive,
		"recursive",
		false,
		"Scan subdirectories of the input directory",
	)

	parseCmd.Flags().StringVar(
		&outputFormat,
		"format",
		"",
		"Output format, json or xml (default: output_format)",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runParse orchestrates the parse pipeline and prints a summary to out.
func runParse(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	log := logging.FromContext(ctx)
	summary := utils.ProcessingSummary{StartTime: time.Now()}

	parser, _, err := converter.NewParser(cfg)
	if err != nil {
		return fmt.Errorf("failed to build parser: %w", err)
	}
	conv := converter.New(cfg, parser, converter.WithDryRun(dryRun))

	inputFiles := args
	if len(inputFiles) == 0 {
		inputFiles, err = conv.Files().DiscoverInputFiles(filePattern, recursive)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No X12 files found in the input directory.")
		return nil
	}
	summary.TotalFiles = len(inputFiles)
	log.Info("Processing files.", "files", len(inputFiles), "concurrency", cfg.MaxConcurrency)

	// =========================================================================
	// PROCESS FILES CONCURRENTLY
	// =========================================================================
	// One goroutine per file; the semaphore bounds how many parse at once.

	var wg sync.WaitGroup
	results := make(chan converter.Result, len(inputFiles))
	sem := make(chan struct{}, cfg.MaxConcurrency)

	for _, file := range inputFiles {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- conv.Run(ctx, path)
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// COLLECT RESULTS
	// =========================================================================

	ok := color.New(color.FgGreen)
	failed := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	var errorEntries []utils.ErrorLogEntry
	for result := range results {
		name := filepath.Base(result.FilePath)
		errorEntries = append(errorEntries, converter.ErrorEntries(result)...)
		summary.TotalSegments += result.Stats.Segments
		summary.TotalTransactionSets += result.Stats.TransactionSets
		summary.ParseErrors += result.Stats.ParseErrors

		if !result.Success {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    result.FilePath,
				ErrorMessage: result.Error.Error(),
				ErrorType:    kindName(result.Error),
			})
			failed.Fprintf(out, "  ✗ %s: %v\n", name, result.Error)
			continue
		}

		summary.SuccessfulFiles++
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:       result.FilePath,
			OutputFile:      result.OutputFile,
			ArchivePath:     result.ArchivePath,
			Segments:        result.Stats.Segments,
			TransactionSets: result.Stats.TransactionSets,
			ParseErrors:     result.Stats.ParseErrors,
			ProcessTime:     result.Stats.ProcessingTime,
		})
		target := result.OutputFile
		if target == "" {
			target = "(dry run)"
		}
		if result.Stats.ParseErrors > 0 {
			warn.Fprintf(out, "  ! %s -> %s (%d transaction sets skipped)\n", name, target, result.Stats.ParseErrors)
		} else {
			ok.Fprintf(out, "  ✓ %s -> %s\n", name, target)
		}
	}
	summary.EndTime = time.Now()

	// =========================================================================
	// PRINT SUMMARY
	// =========================================================================

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:      %d\n", summary.TotalFiles)
	ok.Fprintf(out, "Successful:       %d\n", summary.SuccessfulFiles)
	if summary.FailedFiles > 0 {
		failed.Fprintf(out, "Errors:           %d\n", summary.FailedFiles)
	} else {
		fmt.Fprintf(out, "Errors:           %d\n", summary.FailedFiles)
	}
	fmt.Fprintf(out, "Transaction sets: %d\n", summary.TotalTransactionSets)
	fmt.Fprintf(out, "Time elapsed:     %s\n", summary.EndTime.Sub(summary.StartTime))

	if !dryRun {
		if path, err := utils.WriteErrorLog(errorEntries, cfg.LogDir); err != nil {
			log.Warn("Failed to write error log.", "error", err)
		} else if path != "" {
			fmt.Fprintf(out, "\nErrors have been logged to %s\n", path)
		}
		if _, err := utils.WriteSummaryLog(summary, cfg.LogDir); err != nil {
			log.Warn("Failed to write summary.", "error", err)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d files failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// kindName names the parse error kind of err, or "" for other errors.
func kindName(err error) string {
	if kind := types.KindOf(err); kind != types.KindUnknown {
		return kind.String()
	}
	return ""
}
