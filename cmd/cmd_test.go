package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"

	"github.com/ginjaninja78/x12-parser/internal/segments"
	"github.com/ginjaninja78/x12-parser/internal/xlsxparser"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "internal", "transactions", "testdata", name))
	require.NoError(t, err)
	return string(data)
}

// workspace creates a config whose directories live in a temp dir.
func workspace(t *testing.T, body string) *fs.Dir {
	t.Helper()
	dir := fs.NewDir(t, "x12-cmd", fs.WithDir("in"))
	yaml := body +
		"input_dir: " + dir.Join("in") + "\n" +
		"output_dir: " + dir.Join("out") + "\n" +
		"input_archive_dir: " + dir.Join("in_archive") + "\n" +
		"output_archive_dir: " + dir.Join("out_archive") + "\n" +
		"log_dir: " + dir.Join("logs") + "\n" +
		"log_level: error\n"
	require.NoError(t, os.WriteFile(dir.Join("config.yaml"), []byte(yaml), 0644))
	return dir
}

// run executes the CLI with fresh flag values and returns its output.
func run(t *testing.T, dir *fs.Dir, args ...string) (string, error) {
	t.Helper()
	dryRun, filePattern, recursive, outputFormat = false, "", false, ""
	dump, segmentID, exportPath = false, "", "catalog.xlsx"
	verbose = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", dir.Join("config.yaml"), "--env-file", dir.Join(".env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParse_InputDirectory(t *testing.T) {
	dir := workspace(t, "")
	require.NoError(t, os.WriteFile(dir.Join("in", "inquiry.x12"), []byte(fixture(t, "eligibility_270.x12")), 0644))
	require.NoError(t, os.WriteFile(dir.Join("in", "claim.x12"), []byte(fixture(t, "claim_837p.x12")), 0644))
	require.NoError(t, os.WriteFile(dir.Join("in", "readme.txt"), []byte("not edi"), 0644))

	out, err := run(t, dir, "parse")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ inquiry.x12 -> ")
	assert.Contains(t, out, "✓ claim.x12 -> ")
	assert.Contains(t, out, "Total files:      2")
	assert.Contains(t, out, "Transaction sets: 2")

	outputs, err := filepath.Glob(dir.Join("out", "*.json"))
	require.NoError(t, err)
	assert.Len(t, outputs, 2)
	assert.FileExists(t, dir.Join("in_archive", "claim.x12"))
	assert.FileExists(t, dir.Join("in", "readme.txt"))

	summaries, err := filepath.Glob(dir.Join("logs", "processing_summary_*.txt"))
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestParse_FailureWritesErrorLog(t *testing.T) {
	dir := workspace(t, "")
	bad := strings.Replace(fixture(t, "eligibility_270.x12"), "IEA*1*000000001", "IEA*1*000000002", 1)
	require.NoError(t, os.WriteFile(dir.Join("in", "bad.x12"), []byte(bad), 0644))

	out, err := run(t, dir, "parse", "--format", "XML")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.Contains(t, out, "✗ bad.x12: ")
	assert.Contains(t, out, "Errors have been logged to")

	logs, err := filepath.Glob(dir.Join("logs", "error_log_*.txt"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	data, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "control number mismatch")
	assert.FileExists(t, dir.Join("in", "bad.x12"))
}

func TestParse_DryRunArguments(t *testing.T) {
	dir := workspace(t, "")
	path := dir.Join("in", "response.x12")
	require.NoError(t, os.WriteFile(path, []byte(fixture(t, "eligibility_271.x12")), 0644))

	out, err := run(t, dir, "parse", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ response.x12 -> (dry run)")
	assert.FileExists(t, path)

	logs, err := filepath.Glob(dir.Join("logs", "*"))
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestParse_BadFormat(t *testing.T) {
	dir := workspace(t, "")
	_, err := run(t, dir, "parse", "--format", "csv")
	assert.ErrorContains(t, err, `--format must be json or xml, got "csv"`)
}

func TestParse_NoFiles(t *testing.T) {
	dir := workspace(t, "")
	out, err := run(t, dir, "parse")
	require.NoError(t, err)
	assert.Contains(t, out, "No X12 files found")
}

func TestSegments(t *testing.T) {
	dir := workspace(t, "")
	path := dir.Join("in", "inquiry.x12")
	require.NoError(t, os.WriteFile(path, []byte(fixture(t, "eligibility_270.x12")), 0644))

	out, err := run(t, dir, "segments", path)
	require.NoError(t, err)
	assert.Contains(t, out, "    5  HL   1 |  | 20 | 1\n")
	assert.Equal(t, 18, strings.Count(out, "\n"), "delimiter line plus 17 segments")

	out, err = run(t, dir, "segments", path, "--id", "nm1", "--dump")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "Name: (string) (len=33) \"Individual or Organizational Name\""))
	assert.Contains(t, out, "(string) (len=10) \"PAYER NAME\"")
}

func TestValidate(t *testing.T) {
	dir := workspace(t, "")

	out, err := run(t, dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "  270 005010X279A1")
	assert.Contains(t, out, "  837 005010X222A1")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestValidate_BadCatalogFile(t *testing.T) {
	dir := workspace(t, "catalog_file: catalog.csv\n")

	_, err := run(t, dir, "validate")
	assert.ErrorContains(t, err, "unsupported catalog file")
}

func TestCatalogExport(t *testing.T) {
	dir := workspace(t, "")

	out, err := run(t, dir, "catalog", "export", "--out", dir.Join("catalog.xlsx"))
	require.NoError(t, err)
	assert.Contains(t, out, "Exported")

	file, err := xlsxparser.Parse(dir.Join("catalog.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, segments.DefaultCatalog().File(), file)

	// The exported template loads back through catalog_file.
	withCatalog := workspace(t, "catalog_file: "+dir.Join("catalog.xlsx")+"\n")
	out, err = run(t, withCatalog, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog file:")

	_, err = run(t, dir, "catalog", "export", "--out", dir.Join("catalog.txt"))
	assert.ErrorContains(t, err, "unsupported export file")
}

func TestVersion(t *testing.T) {
	dir := workspace(t, "")
	out, err := run(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+Version)
}
