package converter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/x12-parser/internal/config"
	"github.com/ginjaninja78/x12-parser/internal/engine"
	"github.com/ginjaninja78/x12-parser/internal/segments"
	"github.com/ginjaninja78/x12-parser/internal/transactions"
	"github.com/ginjaninja78/x12-parser/internal/validation"
	"github.com/ginjaninja78/x12-parser/internal/xlsxparser"
)

// LoadCatalog builds the segment catalog for a configuration: the built-in
// healthcare catalog, then the optional catalog_file on top of it. YAML files
// (.yaml, .yml) and XLSX templates (.xlsx) are accepted.
func LoadCatalog(cfg *config.Config) (*segments.Catalog, error) {
	v := validation.NewValidatorWithOptions(validation.Options{CharacterSet: cfg.CharacterSet})
	catalog := segments.DefaultCatalog(segments.WithValidator(v))

	path := cfg.CatalogFile
	if path == "" {
		return catalog, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := catalog.LoadFile(path); err != nil {
			return nil, err
		}
	case ".xlsx":
		file, err := xlsxparser.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog template: %w", err)
		}
		if err := catalog.Load(file); err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog file %q: expected .yaml, .yml or .xlsx", path)
	}
	return catalog, nil
}

// NewParser builds the catalog, registers the built-in transaction sets and
// returns a parser configured from cfg.
func NewParser(cfg *config.Config) (*engine.Parser, *engine.Dispatcher, error) {
	catalog, err := LoadCatalog(cfg)
	if err != nil {
		return nil, nil, err
	}
	d, err := transactions.NewDispatcher(catalog)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(catalog, d, cfg.EngineOptions()), d, nil
}
