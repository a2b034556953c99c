// =============================================================================
// X12 Parser - Main Entry Point
// =============================================================================
//
// USAGE:
//   x12 parse             - Parse all interchanges in the input directory
//   x12 segments FILE     - List the segments of one interchange
//   x12 validate          - Validate configuration and catalog
//   x12 catalog export    - Export the segment catalog
//   x12 version           - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : tokenizer, catalog, rules, engine and output writers
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/x12-parser/cmd"
)

func main() {
	cmd.Execute()
}
