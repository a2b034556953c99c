// =============================================================================
// X12 Parser - Configuration Module
// =============================================================================
//
// This module loads the application configuration.
//
// SOURCES (later sources win):
//   1. Main config (config.yaml): the YAML file named by --config.
//   2. Environment file (.env): optional, loaded into the process environment.
//   3. Environment variables: X12_* variables override single settings.
//
// Every source is merged first; defaults are then applied and the result is
// validated once.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/x12-parser/internal/engine"
	"github.com/ginjaninja78/x12-parser/internal/tokenizer"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Unmatched segment policies.
const (
	UnmatchedFail   = "fail"
	UnmatchedAttach = "attach"
)

// Supported input encodings.
var encodings = []string{"UTF-8", "ISO-8859-1", "Windows-1252"}

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the global application configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for X12 files when no files are named.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives one document per parsed input file.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives input files after successful processing.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir receives copies of generated documents.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// LogDir receives the error and summary logs of each run.
	// Default: "./logs"
	LogDir string `yaml:"log_dir"`

	// CatalogFile is an optional YAML or XLSX segment catalog that extends
	// the built-in healthcare catalog.
	CatalogFile string `yaml:"catalog_file"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFormat is "json" or "xml".
	// Default: "json"
	OutputFormat string `yaml:"output_format"`

	// UUIDFormat defines output file names.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {code}      - Transaction set codes of the file, joined with "-"
	//   {name}      - Input file name without extension
	// Default: "{name}_{uuid}"; the extension follows OutputFormat.
	UUIDFormat string `yaml:"uuid_format"`

	// Archive moves inputs and copies outputs to the archive directories.
	// Default: true
	Archive *bool `yaml:"archive"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the number of files parsed concurrently.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError discards a failed transaction set and resumes after
	// its SE instead of aborting the interchange. Envelope errors always
	// abort.
	// Default: false
	ContinueOnError bool `yaml:"continue_on_error"`

	// UnmatchedSegments is "fail" or "attach".
	// Default: "fail"
	UnmatchedSegments string `yaml:"unmatched_segments"`

	// VerifyCounts checks SE01, GE01 and IEA01.
	// Default: true
	VerifyCounts *bool `yaml:"verify_counts"`

	// CharacterEncoding is the encoding of input files.
	// Valid values: "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "UTF-8"
	CharacterEncoding string `yaml:"character_encoding"`

	// CharacterSet enables the X12 character set check: "BASIC", "EXTENDED"
	// or empty to disable it.
	CharacterSet string `yaml:"character_set"`

	// ISA holds the fixed ISA delimiter offsets.
	ISA ISAConfig `yaml:"isa"`
}

// ISAConfig holds character positions within the fixed-width ISA segment.
// Zero values take the X12 standard positions.
type ISAConfig struct {
	ElementSeparator    int `yaml:"element_separator"`
	RepetitionSeparator int `yaml:"repetition_separator"`
	ComponentSeparator  int `yaml:"component_separator"`
	SegmentTerminator   int `yaml:"segment_terminator"`
	Length              int `yaml:"length"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load loads the configuration.
//
// PARAMETERS:
//   - configPath: The YAML file; empty uses defaults and the environment only.
//
// RETURNS:
//   - The merged, defaulted and validated configuration.
//   - An error if the file cannot be read or parsed, an environment variable
//     holds an invalid value, or validation fails.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&config, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// LoadEnvFile loads KEY=VALUE pairs from an env file into the process
// environment. Variables already set are kept. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overrides settings from X12_* variables.
func applyEnv(config *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"X12_INPUT_DIR":          &config.InputDir,
		"X12_OUTPUT_DIR":         &config.OutputDir,
		"X12_INPUT_ARCHIVE_DIR":  &config.InputArchiveDir,
		"X12_OUTPUT_ARCHIVE_DIR": &config.OutputArchiveDir,
		"X12_LOG_DIR":            &config.LogDir,
		"X12_CATALOG_FILE":       &config.CatalogFile,
		"X12_LOG_LEVEL":          &config.LogLevel,
		"X12_LOG_FORMAT":         &config.LogFormat,
		"X12_OUTPUT_FORMAT":      &config.OutputFormat,
		"X12_UUID_FORMAT":        &config.UUIDFormat,
		"X12_UNMATCHED_SEGMENTS": &config.UnmatchedSegments,
		"X12_CHARACTER_ENCODING": &config.CharacterEncoding,
		"X12_CHARACTER_SET":      &config.CharacterSet,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"X12_MAX_CONCURRENCY":          &config.MaxConcurrency,
		"X12_ISA_ELEMENT_SEPARATOR":    &config.ISA.ElementSeparator,
		"X12_ISA_REPETITION_SEPARATOR": &config.ISA.RepetitionSeparator,
		"X12_ISA_COMPONENT_SEPARATOR":  &config.ISA.ComponentSeparator,
		"X12_ISA_SEGMENT_TERMINATOR":   &config.ISA.SegmentTerminator,
		"X12_ISA_LENGTH":               &config.ISA.Length,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
	}

	if v, ok := lookup("X12_CONTINUE_ON_ERROR"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("X12_CONTINUE_ON_ERROR: %q is not a boolean", v)
		}
		config.ContinueOnError = b
	}
	for key, dst := range map[string]**bool{
		"X12_VERIFY_COUNTS": &config.VerifyCounts,
		"X12_ARCHIVE":       &config.Archive,
	} {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", key, v)
		}
		*dst = &b
	}
	return nil
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *Config) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.LogDir == "" {
		config.LogDir = "./logs"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = FormatJSON
	}
	config.OutputFormat = strings.ToLower(config.OutputFormat)
	if config.UUIDFormat == "" {
		config.UUIDFormat = "{name}_{uuid}"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.UnmatchedSegments == "" {
		config.UnmatchedSegments = UnmatchedFail
	}
	if config.CharacterEncoding == "" {
		config.CharacterEncoding = "UTF-8"
	}
	config.CharacterSet = strings.ToUpper(config.CharacterSet)
	if config.VerifyCounts == nil {
		v := true
		config.VerifyCounts = &v
	}
	if config.Archive == nil {
		v := true
		config.Archive = &v
	}

	std := tokenizer.DefaultISAOffsets()
	if config.ISA.ElementSeparator == 0 {
		config.ISA.ElementSeparator = std.Element
	}
	if config.ISA.RepetitionSeparator == 0 {
		config.ISA.RepetitionSeparator = std.Repetition
	}
	if config.ISA.ComponentSeparator == 0 {
		config.ISA.ComponentSeparator = std.Component
	}
	if config.ISA.SegmentTerminator == 0 {
		config.ISA.SegmentTerminator = std.Segment
	}
	if config.ISA.Length == 0 {
		config.ISA.Length = std.Length
	}
}

// validate checks option values and creates the working directories.
func validate(config *Config) error {
	switch config.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", config.LogFormat)
	}
	switch config.OutputFormat {
	case FormatJSON, FormatXML:
	default:
		return fmt.Errorf("output_format must be json or xml, got %q", config.OutputFormat)
	}
	switch config.UnmatchedSegments {
	case UnmatchedFail, UnmatchedAttach:
	default:
		return fmt.Errorf("unmatched_segments must be fail or attach, got %q", config.UnmatchedSegments)
	}
	switch config.CharacterSet {
	case "", "BASIC", "EXTENDED":
	default:
		return fmt.Errorf("character_set must be BASIC or EXTENDED, got %q", config.CharacterSet)
	}
	if !supportedEncoding(config.CharacterEncoding) {
		return fmt.Errorf("character_encoding must be one of %s, got %q",
			strings.Join(encodings, ", "), config.CharacterEncoding)
	}
	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}

	isa := config.ISA
	seen := make(map[int]string)
	for name, pos := range map[string]int{
		"element_separator":    isa.ElementSeparator,
		"repetition_separator": isa.RepetitionSeparator,
		"component_separator":  isa.ComponentSeparator,
		"segment_terminator":   isa.SegmentTerminator,
	} {
		if pos < 0 || pos >= isa.Length {
			return fmt.Errorf("isa.%s %d is outside the %d character header", name, pos, isa.Length)
		}
		if other, dup := seen[pos]; dup {
			return fmt.Errorf("isa.%s and isa.%s share position %d", name, other, pos)
		}
		seen[pos] = name
	}

	// Create the working directories if they don't exist.
	for _, dir := range []string{config.InputDir, config.OutputDir, config.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func supportedEncoding(name string) bool {
	for _, e := range encodings {
		if strings.EqualFold(e, name) {
			return true
		}
	}
	return false
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// ISAOffsets returns the delimiter offsets for the delimiter detector.
func (c *Config) ISAOffsets() tokenizer.ISAOffsets {
	offsets := tokenizer.DefaultISAOffsets()
	offsets.Element = c.ISA.ElementSeparator
	offsets.Repetition = c.ISA.RepetitionSeparator
	offsets.Component = c.ISA.ComponentSeparator
	offsets.Segment = c.ISA.SegmentTerminator
	offsets.Length = c.ISA.Length
	return offsets
}

// EngineOptions returns the parser options for this configuration.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	if c.ContinueOnError {
		opts.ErrorPolicy = engine.ContinueOnError
	}
	if c.UnmatchedSegments == UnmatchedAttach {
		opts.UnmatchedPolicy = engine.UnmatchedAttach
	}
	opts.VerifyCounts = c.VerifyCounts == nil || *c.VerifyCounts
	opts.Offsets = c.ISAOffsets()
	return opts
}

// ArchiveEnabled reports whether processed files are archived.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive == nil || *c.Archive
}
