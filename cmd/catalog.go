package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x12-parser/internal/config"
	"github.com/ginjaninja78/x12-parser/internal/converter"
	"github.com/ginjaninja78/x12-parser/internal/xlsxparser"
)

// exportPath is the destination of 'catalog export'.
var exportPath string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Work with segment catalogs",
}

// catalogExportCmd writes the active catalog so it can be edited and fed back
// through catalog_file.
var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the active segment catalog as an XLSX template or YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogExport(appConfig, exportPath, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	catalogExportCmd.Flags().StringVar(&exportPath, "out", "catalog.xlsx", "Destination file (.xlsx, .yaml or .yml)")
}

func runCatalogExport(cfg *config.Config, path string, out io.Writer) error {
	catalog, err := converter.LoadCatalog(cfg)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		if err := xlsxparser.Write(path, catalog.File()); err != nil {
			return err
		}
	case ".yaml", ".yml":
		data, err := catalog.ToYAML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write catalog: %w", err)
		}
	default:
		return fmt.Errorf("unsupported export file %q: expected .xlsx, .yaml or .yml", path)
	}

	fmt.Fprintf(out, "Exported %d segments to %s\n", catalog.Len(), path)
	return nil
}
