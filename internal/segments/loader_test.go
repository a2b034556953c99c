package segments

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

const customCatalog = `
segments:
  - id: ZZ1
    name: Custom Segment
    fields:
      - {name: code, type: ID, required: true, min: 2, max: 2, allowed: [AA, BB]}
      - {name: amount, type: R, position: 3}
overrides:
  - transaction_set: "999"
    segment: ZZ1
    fields:
      - {name: code, allowed: [AA]}
`

func TestLoadFile(t *testing.T) {
	dir := fs.NewDir(t, "catalog", fs.WithFile("custom.yaml", customCatalog))
	defer dir.Remove()

	cat := NewCatalog()
	require.NoError(t, cat.LoadFile(dir.Join("custom.yaml")))

	def, ok := cat.Definition("ZZ1")
	require.True(t, ok)
	assert.Equal(t, "Custom Segment", def.Name)
	assert.Equal(t, []FieldDef{
		{Name: "code", Position: 1, Type: "ID", Required: true, MinLength: 2, MaxLength: 2, Allowed: []string{"AA", "BB"}},
		{Name: "amount", Position: 3, Type: "R"},
	}, def.Fields)

	_, err := construct(t, cat, 1, "ZZ1*BB**12.50")
	assert.NoError(t, err)
	_, err = construct(t, cat.ForTransaction("999"), 1, "ZZ1*BB**12.50")
	assert.Error(t, err)
}

func TestLoadFile_ExtendsDefaultCatalog(t *testing.T) {
	dir := fs.NewDir(t, "catalog", fs.WithFile("custom.yaml", customCatalog))
	defer dir.Remove()

	cat := DefaultCatalog()
	before := cat.Len()
	require.NoError(t, cat.LoadFile(dir.Join("custom.yaml")))
	assert.Equal(t, before+1, cat.Len())
}

func TestLoadFile_Errors(t *testing.T) {
	dir := fs.NewDir(t, "catalog",
		fs.WithFile("broken.yaml", "segments: [\n"),
		fs.WithFile("invalid.yaml", "segments:\n  - id: bad\n"),
		fs.WithFile("override.yaml", "overrides:\n  - {transaction_set: \"270\", segment: NOPE}\n"),
	)
	defer dir.Remove()

	tests := []struct {
		file string
		want string
	}{
		{"missing.yaml", "failed to read catalog file"},
		{"broken.yaml", "failed to parse catalog YAML"},
		{"invalid.yaml", "invalid segment identifier"},
		{"override.yaml", "unknown segment NOPE"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			err := NewCatalog().LoadFile(dir.Join(tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestToYAML_ReloadsToSameCatalog(t *testing.T) {
	original := DefaultCatalog()
	data, err := original.ToYAML()
	require.NoError(t, err)

	reloaded := NewCatalog()
	require.NoError(t, reloaded.LoadYAML(data))

	if diff := cmp.Diff(original.File(), reloaded.File()); diff != "" {
		t.Errorf("catalog changed after export (-want +got):\n%s", diff)
	}
}
