package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"

	"github.com/ginjaninja78/x12-parser/internal/engine"
	"github.com/ginjaninja78/x12-parser/internal/tokenizer"
)

// workspace returns a temp dir holding config.yaml with the given body
// followed by directory settings inside the temp dir.
func workspace(t *testing.T, body string) (*fs.Dir, string) {
	t.Helper()
	dir := fs.NewDir(t, "x12-config")
	yaml := body +
		"input_dir: " + dir.Join("in") + "\n" +
		"output_dir: " + dir.Join("out") + "\n" +
		"log_dir: " + dir.Join("logs") + "\n"
	require.NoError(t, os.WriteFile(dir.Join("config.yaml"), []byte(yaml), 0644))
	return dir, dir.Join("config.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	dir, path := workspace(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, FormatJSON, cfg.OutputFormat)
	assert.Equal(t, "{name}_{uuid}", cfg.UUIDFormat)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, UnmatchedFail, cfg.UnmatchedSegments)
	assert.Equal(t, "UTF-8", cfg.CharacterEncoding)
	assert.True(t, cfg.ArchiveEnabled())
	assert.Equal(t, tokenizer.DefaultISAOffsets(), cfg.ISAOffsets())

	for _, sub := range []string{"in", "out", "logs"} {
		info, err := os.Stat(dir.Join(sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir(), sub)
	}
}

func TestLoad_EngineOptions(t *testing.T) {
	_, path := workspace(t, `
continue_on_error: true
unmatched_segments: attach
verify_counts: false
isa:
  component_separator: 103
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	opts := cfg.EngineOptions()
	assert.Equal(t, engine.ContinueOnError, opts.ErrorPolicy)
	assert.Equal(t, engine.UnmatchedAttach, opts.UnmatchedPolicy)
	assert.False(t, opts.VerifyCounts)
	assert.Equal(t, 103, opts.Offsets.Component)
	assert.Equal(t, 105, opts.Offsets.Segment)
}

func TestLoad_DefaultEngineOptions(t *testing.T) {
	_, path := workspace(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, engine.DefaultOptions(), cfg.EngineOptions())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	_, path := workspace(t, "log_level: debug\noutput_format: json\n")
	t.Setenv("X12_OUTPUT_FORMAT", "XML")
	t.Setenv("X12_MAX_CONCURRENCY", "2")
	t.Setenv("X12_CONTINUE_ON_ERROR", "true")
	t.Setenv("X12_ARCHIVE", "false")
	t.Setenv("X12_CHARACTER_SET", "basic")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, FormatXML, cfg.OutputFormat)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.True(t, cfg.ContinueOnError)
	assert.False(t, cfg.ArchiveEnabled())
	assert.Equal(t, "BASIC", cfg.CharacterSet)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "log format", body: "log_format: xml\n", want: "log_format must be text or json"},
		{name: "output format", body: "output_format: csv\n", want: "output_format must be json or xml"},
		{name: "unmatched", body: "unmatched_segments: drop\n", want: "unmatched_segments must be fail or attach"},
		{name: "character set", body: "character_set: ascii\n", want: "character_set must be BASIC or EXTENDED"},
		{name: "encoding", body: "character_encoding: UTF-16\n", want: "character_encoding must be one of"},
		{name: "concurrency", body: "max_concurrency: -1\n", want: "max_concurrency must be at least 1"},
		{name: "offset outside header", body: "isa:\n  segment_terminator: 200\n", want: "outside the 106 character header"},
		{name: "shared offset", body: "isa:\n  component_separator: 105\n", want: "share position 105"},
		{name: "broken yaml", body: "log_level: [\n", want: "failed to parse config file"},
		{name: "bad integer", env: map[string]string{"X12_MAX_CONCURRENCY": "many"}, want: `X12_MAX_CONCURRENCY: "many" is not an integer`},
		{name: "bad boolean", env: map[string]string{"X12_VERIFY_COUNTS": "sometimes"}, want: "X12_VERIFY_COUNTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, path := workspace(t, tt.body)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadEnvFile(t *testing.T) {
	dir := fs.NewDir(t, "x12-env", fs.WithFile(".env", "X12_LOG_FORMAT=json\nX12_TEST_ONLY=1\n"))
	t.Setenv("X12_LOG_FORMAT", "")
	os.Unsetenv("X12_LOG_FORMAT")
	t.Setenv("X12_TEST_ONLY", "kept")

	require.NoError(t, LoadEnvFile(dir.Join(".env")))

	assert.Equal(t, "json", os.Getenv("X12_LOG_FORMAT"))
	assert.Equal(t, "kept", os.Getenv("X12_TEST_ONLY"), "existing variables win")

	assert.NoError(t, LoadEnvFile(dir.Join("missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}

func TestApplyEnv_Lookup(t *testing.T) {
	env := map[string]string{"X12_ISA_LENGTH": " 120 ", "X12_LOG_DIR": "/var/log/x12"}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	var cfg Config
	require.NoError(t, applyEnv(&cfg, lookup))

	assert.Equal(t, 120, cfg.ISA.Length)
	assert.Equal(t, "/var/log/x12", cfg.LogDir)
	assert.Nil(t, cfg.VerifyCounts)
}
