// =============================================================================
// X12 Parser - File Manager Utility
// =============================================================================
//
// Everything the parse command does on disk around the engine lives here:
// finding interchanges in the input directory, naming rendered documents,
// moving parsed interchanges out of the way and writing the run reports.
//
// LIFECYCLE OF AN INTERCHANGE:
//   input/claims.x12
//     -> parsed, rendered to output/837_claims_<uuid>.json
//     -> input/claims.x12 moved to input_archive/[YYYY/MM/DD/]claims.x12
//     -> output document copied to output_archive/
//   An interchange that fails to parse stays in input/ and is reported in
//   log_dir/error_log_<timestamp>.txt.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager owns the four directories a parse run touches.
type FileManager struct {
	InputDir         string
	OutputDir        string
	InputArchiveDir  string
	OutputArchiveDir string

	// UseTimestampSubdirs files archives under YYYY/MM/DD of the archive date.
	UseTimestampSubdirs bool

	// ArchiveOnSuccess turns both archive operations on. When false they
	// return the path they were given.
	ArchiveOnSuccess bool

	// now is replaced in tests.
	now func() time.Time
}

// NewFileManager returns a FileManager that archives on success.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		ArchiveOnSuccess: true,
		now:              time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the configured directories. Unset ones are skipped.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the interchanges waiting in the input directory.
// A file qualifies when its name matches pattern ("" matches everything) and
// its content starts with an ISA header. Extensions are ignored.
//
// PARAMETERS:
//   - pattern: glob applied to the base name, e.g. "*.x12".
//   - recursive: descend into subdirectories of InputDir.
//
// RETURNS:
//   - The qualifying paths in lexical order.
//   - An error for a bad pattern or an unreadable directory.
func (fm *FileManager) DiscoverInputFiles(pattern string, recursive bool) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}

	var found []string
	walk := func(path string, d os.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != fm.InputDir && !recursive:
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok && IsX12File(path) {
			found = append(found, path)
		}
		return nil
	}
	if err := filepath.WalkDir(fm.InputDir, walk); err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	sort.Strings(found)
	return found, nil
}

// =============================================================================
// ARCHIVING
// =============================================================================

// ArchiveInputFile moves a parsed interchange into InputArchiveDir and
// returns its new path.
func (fm *FileManager) ArchiveInputFile(path string) (string, error) {
	return fm.archive(fm.InputArchiveDir, path, true)
}

// ArchiveOutputFile copies a rendered document into OutputArchiveDir. The
// document stays in OutputDir for downstream consumers.
func (fm *FileManager) ArchiveOutputFile(path string) (string, error) {
	return fm.archive(fm.OutputArchiveDir, path, false)
}

func (fm *FileManager) archive(dir, path string, move bool) (string, error) {
	if !fm.ArchiveOnSuccess || dir == "" {
		return path, nil
	}

	if fm.UseTimestampSubdirs {
		dir = filepath.Join(dir, filepath.FromSlash(fm.clock().Format("2006/01/02")))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(path))

	if move && os.Rename(path, dst) == nil {
		return dst, nil
	}
	// Copy when asked to, or when the rename crossed a device boundary.
	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("failed to copy %s to archive: %w", filepath.Base(path), err)
	}
	if move {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove archived input %s: %w", path, err)
		}
	}
	return dst, nil
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// OUTPUT NAMING
// =============================================================================

// unsafeName maps path separators that a placeholder value might carry.
var unsafeName = strings.NewReplacer("/", "_", "\\", "_")

// GenerateOutputFileName expands an output name template.
//
// PARAMETERS:
//   - format: template such as "{code}_{name}_{uuid}". Built-in placeholders
//     are {uuid}, {timestamp} (YYYYMMDD_HHMMSS), {date} (YYYYMMDD) and
//     {time} (HHMMSS); every params key adds one more.
//   - extension: appended unless the expanded name already ends with it.
//   - params: caller placeholders, e.g. {"code": "837", "name": "claims"}.
//
// RETURNS:
//   - A file name without directory components, for example
//     "837_claims_a1b2c3d4-e5f6-7890-abcd-ef1234567890.json".
func GenerateOutputFileName(format, extension string, params map[string]string) string {
	now := time.Now()
	pairs := []string{
		"{uuid}", uuid.NewString(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		pairs = append(pairs, "{"+key+"}", params[key])
	}

	name := unsafeName.Replace(strings.NewReplacer(pairs...).Replace(format))
	if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(extension)) {
		name += extension
	}
	return name
}

// =============================================================================
// RUN REPORTS
// =============================================================================

const reportRule = "================================================================================"

// ErrorLogEntry is one structural failure found while parsing a file.
// Segment, loop and transaction-set fields are empty when the failure has
// no position, e.g. an unreadable file.
type ErrorLogEntry struct {
	Timestamp      time.Time
	FileName       string
	ErrorType      string
	ErrorMessage   string
	SegmentIndex   int
	SegmentID      string
	LoopPath       string
	TransactionSet string
	ControlNumber  string
}

// location renders where in the interchange the error sits.
func (e ErrorLogEntry) location() string {
	var parts []string
	if e.TransactionSet != "" {
		parts = append(parts, fmt.Sprintf("ST %s #%s", e.TransactionSet, e.ControlNumber))
	}
	if e.LoopPath != "" {
		parts = append(parts, "loop "+e.LoopPath)
	}
	if e.SegmentIndex > 0 {
		parts = append(parts, fmt.Sprintf("segment %d (%s)", e.SegmentIndex, e.SegmentID))
	}
	return strings.Join(parts, ", ")
}

// WriteErrorLog writes error_log_<timestamp>.txt into logDir.
//
// RETURNS:
//   - The log path, or "" without touching the disk when entries is empty.
//   - An error if the log cannot be written.
func WriteErrorLog(entries []ErrorLogEntry, logDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("error_log_%s.txt", time.Now().Format("20060102_150405.000")))
	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "X12 Parser - Error Log (%d errors, %s)\n%s\n\n",
		len(entries), time.Now().Format("2006-01-02 15:04:05"), reportRule)

	for i, entry := range entries {
		fmt.Fprintf(w, "[%d] %s  %s  %s\n", i+1, entry.Timestamp.Format("15:04:05"), entry.FileName, entry.ErrorType)
		if loc := entry.location(); loc != "" {
			fmt.Fprintf(w, "    at %s\n", loc)
		}
		fmt.Fprintf(w, "    %s\n\n", entry.ErrorMessage)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

// ProcessingSummary aggregates one parse run.
type ProcessingSummary struct {
	StartTime            time.Time
	EndTime              time.Time
	TotalFiles           int
	SuccessfulFiles      int
	FailedFiles          int
	TotalSegments        int
	TotalTransactionSets int
	ParseErrors          int
	ProcessedFiles       []ProcessedFileInfo
	FailedFilesList      []FailedFileInfo
}

// ProcessedFileInfo describes a file that produced a document.
type ProcessedFileInfo struct {
	InputFile       string
	OutputFile      string
	ArchivePath     string
	Segments        int
	TransactionSets int
	ParseErrors     int
	ProcessTime     time.Duration
}

// FailedFileInfo describes a file that produced no document.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// WriteSummaryLog writes processing_summary_<start>.txt into logDir: the run
// totals followed by one table row per file.
//
// RETURNS:
//   - The summary path.
//   - An error if the summary cannot be written.
func WriteSummaryLog(summary ProcessingSummary, logDir string) (string, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	summaryPath := filepath.Join(logDir,
		fmt.Sprintf("processing_summary_%s.txt", summary.StartTime.Format("20060102_150405.000")))
	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "X12 Parser - Processing Summary\n%s\n", reportRule)

	totals := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, row := range [][2]any{
		{"Started", summary.StartTime.Format("2006-01-02 15:04:05")},
		{"Duration", summary.EndTime.Sub(summary.StartTime)},
		{"Files", fmt.Sprintf("%d (%d ok, %d failed)", summary.TotalFiles, summary.SuccessfulFiles, summary.FailedFiles)},
		{"Segments", summary.TotalSegments},
		{"Transaction sets", summary.TotalTransactionSets},
		{"Skipped sets", summary.ParseErrors},
	} {
		fmt.Fprintf(totals, "%s:\t%v\n", row[0], row[1])
	}
	if err := totals.Flush(); err != nil {
		return "", fmt.Errorf("failed to write summary totals: %w", err)
	}

	if len(summary.ProcessedFiles) > 0 {
		fmt.Fprintf(w, "\nParsed:\n")
		table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(table, "  INPUT\tSEGMENTS\tSETS\tSKIPPED\tTIME\tOUTPUT")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(table, "  %s\t%d\t%d\t%d\t%s\t%s\n",
				filepath.Base(pf.InputFile), pf.Segments, pf.TransactionSets, pf.ParseErrors, pf.ProcessTime, pf.OutputFile)
		}
		if err := table.Flush(); err != nil {
			return "", fmt.Errorf("failed to write summary table: %w", err)
		}
	}

	if len(summary.FailedFilesList) > 0 {
		fmt.Fprintf(w, "\nFailed:\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(w, "  %s [%s]\n    %s\n", filepath.Base(ff.InputFile), ff.ErrorType, ff.ErrorMessage)
		}
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
