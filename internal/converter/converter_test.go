package converter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"

	"github.com/ginjaninja78/x12-parser/internal/config"
	"github.com/ginjaninja78/x12-parser/internal/types"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "transactions", "testdata", name))
	require.NoError(t, err)
	return string(data)
}

// setup writes a config inside a temp dir, loads it and places the given
// input files in its input directory.
func setup(t *testing.T, body string, inputs map[string]string) (*fs.Dir, *config.Config) {
	t.Helper()
	dir := fs.NewDir(t, "x12-converter")
	yaml := body +
		"input_dir: " + dir.Join("in") + "\n" +
		"output_dir: " + dir.Join("out") + "\n" +
		"input_archive_dir: " + dir.Join("in_archive") + "\n" +
		"output_archive_dir: " + dir.Join("out_archive") + "\n" +
		"log_dir: " + dir.Join("logs") + "\n"
	require.NoError(t, os.WriteFile(dir.Join("config.yaml"), []byte(yaml), 0644))

	cfg, err := config.Load(dir.Join("config.yaml"))
	require.NoError(t, err)
	for name, content := range inputs {
		require.NoError(t, os.WriteFile(dir.Join("in", name), []byte(content), 0644))
	}
	return dir, cfg
}

func newConverter(t *testing.T, cfg *config.Config, opts ...Option) *Converter {
	t.Helper()
	parser, _, err := NewParser(cfg)
	require.NoError(t, err)
	return New(cfg, parser, opts...)
}

func TestRun_JSON(t *testing.T) {
	dir, cfg := setup(t, "", map[string]string{"inquiry.x12": fixture(t, "eligibility_270.x12")})
	c := newConverter(t, cfg)

	res := c.Run(context.Background(), dir.Join("in", "inquiry.x12"))
	require.NoError(t, res.Error)
	assert.True(t, res.Success)

	assert.Equal(t, dir.Join("out"), filepath.Dir(res.OutputFile))
	assert.True(t, strings.HasPrefix(filepath.Base(res.OutputFile), "inquiry_"), res.OutputFile)
	assert.Equal(t, ".json", filepath.Ext(res.OutputFile))
	assert.Equal(t, dir.Join("in_archive", "inquiry.x12"), res.ArchivePath)
	assert.NoFileExists(t, dir.Join("in", "inquiry.x12"))
	assert.FileExists(t, dir.Join("out_archive", filepath.Base(res.OutputFile)))

	assert.Equal(t, 17, res.Stats.Segments)
	assert.Equal(t, 1, res.Stats.TransactionSets)
	assert.Equal(t, 9, res.Stats.Loops)
	assert.Zero(t, res.Stats.ParseErrors)

	data, err := os.ReadFile(res.OutputFile)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, res.Parse.ID, doc.ID)
	assert.Equal(t, "SUBMITTERID", doc.Interchange.SenderID)
	require.Len(t, doc.TransactionSets, 1)
	ts := doc.TransactionSets[0]
	assert.Equal(t, "00501-HS-005010X279A1-270", ts.VersionKey)

	var names []string
	for _, l := range ts.Loops {
		names = append(names, l.Name)
	}
	if diff := cmp.Diff([]string{"header", "2000A", "footer"}, names); diff != "" {
		t.Errorf("loop mismatch (-want +got):\n%s", diff)
	}

	source := ts.Loops[1]
	assert.Equal(t, "1", source.HL)
	assert.Equal(t, "20", source.Level)
	assert.Equal(t, "HL", source.Segments[0].ID)
	assert.Equal(t, 5, source.Segments[0].Index)
	assert.Equal(t, "PR", source.Loops[0].Segments[0].Fields["entity_identifier_code"])
	assert.NotContains(t, source.Loops[0].Segments[0].Fields, "name_first")
}

func TestRun_XMLCodePlaceholder(t *testing.T) {
	dir, cfg := setup(t, "output_format: xml\nuuid_format: \"{code}_{name}\"\narchive: false\n",
		map[string]string{"response.x12": fixture(t, "eligibility_271.x12")})
	c := newConverter(t, cfg)

	res := c.Run(context.Background(), dir.Join("in", "response.x12"))
	require.NoError(t, res.Error)

	assert.Equal(t, dir.Join("out", "271_response.xml"), res.OutputFile)
	assert.Empty(t, res.ArchivePath)
	assert.FileExists(t, dir.Join("in", "response.x12"))

	data, err := os.ReadFile(res.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<transactionSet n="1" code="271"`)
}

func TestRun_DryRun(t *testing.T) {
	dir, cfg := setup(t, "", map[string]string{"claim.x12": fixture(t, "claim_837p.x12")})
	c := newConverter(t, cfg, WithDryRun(true))

	res := c.Run(context.Background(), dir.Join("in", "claim.x12"))
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Empty(t, res.OutputFile)
	assert.FileExists(t, dir.Join("in", "claim.x12"))

	entries, err := os.ReadDir(dir.Join("out"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_NotX12(t *testing.T) {
	dir, cfg := setup(t, "", map[string]string{"notes.txt": "hello"})
	c := newConverter(t, cfg)

	res := c.Run(context.Background(), dir.Join("in", "notes.txt"))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, ErrNotX12)

	entries := ErrorEntries(res)
	require.Len(t, entries, 1)
	assert.Equal(t, "processing error", entries[0].ErrorType)
}

func TestRun_CountMismatch(t *testing.T) {
	bad := strings.Replace(fixture(t, "eligibility_270.x12"), "SE*13*0001", "SE*12*0001", 1)

	t.Run("strict", func(t *testing.T) {
		dir, cfg := setup(t, "", map[string]string{"bad.x12": bad})
		res := newConverter(t, cfg).Run(context.Background(), dir.Join("in", "bad.x12"))

		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Error, types.ErrCountMismatch)
		assert.FileExists(t, dir.Join("in", "bad.x12"), "failed inputs stay in place")

		entries := ErrorEntries(res)
		require.Len(t, entries, 1)
		assert.Equal(t, "count mismatch", entries[0].ErrorType)
		assert.Equal(t, "SE", entries[0].SegmentID)
		assert.Equal(t, "270", entries[0].TransactionSet)
	})

	t.Run("continue on error", func(t *testing.T) {
		dir, cfg := setup(t, "continue_on_error: true\n", map[string]string{"bad.x12": bad})
		res := newConverter(t, cfg).Run(context.Background(), dir.Join("in", "bad.x12"))

		require.NoError(t, res.Error)
		assert.True(t, res.Success)
		assert.Equal(t, 1, res.Stats.ParseErrors)
		assert.Zero(t, res.Stats.TransactionSets)

		data, err := os.ReadFile(res.OutputFile)
		require.NoError(t, err)
		var doc Document
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Empty(t, doc.TransactionSets)
		require.Len(t, doc.Errors, 1)
		assert.Equal(t, "count mismatch", doc.Errors[0].Kind)

		assert.Len(t, ErrorEntries(res), 1)
	})
}

func TestRun_ISO88591(t *testing.T) {
	raw := strings.Replace(fixture(t, "eligibility_270.x12"), "NM1*IL*1*DOE*JOHN", "NM1*IL*1*DO\xc9*JOHN", 1)
	dir, cfg := setup(t, "character_encoding: ISO-8859-1\n", map[string]string{"latin1.x12": raw})

	res := newConverter(t, cfg, WithDryRun(true)).Run(context.Background(), dir.Join("in", "latin1.x12"))
	require.NoError(t, res.Error)

	subscriber := res.Parse.Trees[0].FindLoops("2100C")
	require.Len(t, subscriber, 1)
	nm1, ok := subscriber[0].First("NM1")
	require.True(t, ok)
	assert.Equal(t, "DOÉ", nm1.Get("name_last_or_organization_name"))
}

func TestNewSegmentDoc_FieldShapes(t *testing.T) {
	rec := types.NewRecord(
		types.RawSegment{Index: 9, ID: "ZZ", Elements: []string{"A", "B:C", "1^2", "P:1^Q", ""}},
		"Custom",
		[]types.Field{
			{Name: "plain", Position: 1, Value: "A"},
			{Name: "composite", Position: 2, Value: "B:C", Components: []string{"B", "C"}},
			{Name: "repeated", Position: 3, Value: "1^2", Repeats: []string{"1", "2"}},
			{
				Name: "both", Position: 4, Value: "P:1^Q",
				Components:       []string{"P", "1"},
				Repeats:          []string{"P:1", "Q"},
				RepeatComponents: [][]string{{"P", "1"}, {"Q"}},
			},
			{Name: "empty", Position: 5},
		},
	)

	want := map[string]any{
		"plain":     "A",
		"composite": []string{"B", "C"},
		"repeated":  []string{"1", "2"},
		"both":      [][]string{{"P", "1"}, {"Q"}},
	}
	if diff := cmp.Diff(want, newSegmentDoc(rec).Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}
