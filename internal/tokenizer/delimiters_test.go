package tokenizer

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/x12-parser/internal/types"
)

const header5010 = "ISA*00*          *00*          *ZZ*SUBMITTERID    *ZZ*RECEIVERID     *230101*1200*^*00501*000000001*0*T*:~"

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

// withDelimiters rewrites a default-delimited interchange with other delimiters.
func withDelimiters(text string, d types.Delimiters) string {
	r := strings.NewReplacer(
		"~", string(d.Segment),
		"*", string(d.Element),
		":", string(d.Component),
		"^", string(d.Repetition),
	)
	return r.Replace(text)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		delims types.Delimiters
	}{
		{"default", types.DefaultDelimiters()},
		{"pipe", types.Delimiters{Segment: '~', Element: '|', Component: '>', Repetition: '^'}},
		{"newline terminator", types.Delimiters{Segment: '\n', Element: '*', Component: ':', Repetition: '!'}},
		{"exotic", types.Delimiters{Segment: '\'', Element: '+', Component: '\\', Repetition: '}'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(withDelimiters(header5010, tt.delims))
			require.NoError(t, err)
			assert.Equal(t, tt.delims, got)
		})
	}
}

func TestDetect_RecoversDelimitersForWholeFile(t *testing.T) {
	text := loadFixture(t, "eligibility_270.x12")
	compact := strings.ReplaceAll(text, "\n", "")
	custom := types.Delimiters{Segment: '\'', Element: '|', Component: '>', Repetition: '{'}
	encoded := withDelimiters(compact, custom)

	delims, err := Detect(encoded)
	require.NoError(t, err)
	assert.Equal(t, custom, delims)

	original, err := Collect(compact, types.DefaultDelimiters())
	require.NoError(t, err)
	recovered, err := Collect(encoded, delims)
	require.NoError(t, err)
	assert.Len(t, recovered, len(original))
}

func TestDetect_RepetitionOnlyFrom00402(t *testing.T) {
	old := strings.Replace(header5010, "*^*00501*", "*U*00401*", 1)

	delims, err := Detect(old)
	require.NoError(t, err)
	assert.False(t, delims.HasRepetition())
	assert.Equal(t, byte('*'), delims.Element)
	assert.Equal(t, byte(':'), delims.Component)
	assert.Equal(t, byte('~'), delims.Segment)
}

func TestDetect_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short header", header5010[:80]},
		{"not isa", "GS" + header5010[2:]},
		{"element equals component", strings.Replace(header5010, "*T*:~", "*T***", 1)},
		{"repetition equals component", strings.Replace(header5010, "*^*00501*", "*:*00501*", 1)},
		{"every delimiter identical", "ISA" + strings.Repeat("x", 103)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrMalformedEnvelope), "got %v", err)
		})
	}
}

func TestDetector_CustomOffsets(t *testing.T) {
	// One extra pad character in ISA06 shifts every later offset by one.
	padded := strings.Replace(header5010, "SUBMITTERID    ", "SUBMITTERID     ", 1)
	offsets := DefaultISAOffsets()
	offsets.Repetition++
	offsets.Component++
	offsets.Segment++
	offsets.Length++

	delims, err := NewDetector(offsets).Detect(padded)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultDelimiters(), delims)
}
