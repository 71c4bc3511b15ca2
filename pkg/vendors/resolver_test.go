package vendors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/imgsync/imgsync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
version: 1
vendors:
  - name: Raccoon Fireworks
    prefixes: ["RR"]
    directory: raccoon
    strip_codes: true
  - name: Raccoon Extreme
    prefixes: ["RRX"]
    directory: raccoon-extreme
  - name: Sky Bacon
    directory: skybacon
aliases:
  Raccoon Fireworks Inc: Raccoon Fireworks
  World Class: www.WorldClassFireworks.com
  Bacon Co: Sky Bacon
websites:
  - vendor: Sky Bacon
    url: https://www.skybacon.com/catalog
`

func loadTestTable(t *testing.T) *Table {
	t.Helper()
	table, err := Parse([]byte(testRules))
	require.NoError(t, err)
	return table
}

func TestIdentify(t *testing.T) {
	table := loadTestTable(t)

	tests := []struct {
		name       string
		variation  string
		annotation string
		want       string
	}{
		{"prefix", "RR Big Bang", "", "Raccoon Fireworks"},
		{"prefix with digits", "rr123 Big Bang", "", "Raccoon Fireworks"},
		{"longest prefix wins", "RRX Thunder", "", "Raccoon Extreme"},
		{"prefix must end at a letter boundary", "RRZ Thunder", "Sky Bacon", "Sky Bacon"},
		{"annotation fallback", "Regular", "World Class", "World Class"},
		{"unknown", "Regular", "", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Identify(tt.variation, tt.annotation))
		})
	}
}

func TestResolveDirectory(t *testing.T) {
	table := loadTestTable(t)

	tests := []struct {
		vendor string
		want   string
		ok     bool
	}{
		{"Raccoon Fireworks", "raccoon", true},
		{"raccoon  fireworks", "raccoon", true},
		{"Raccoon Fireworks Inc", "raccoon", true},
		{"World Class", "worldclassfireworks.com", true},
		{"Sky Bacon", "skybacon.com", true},
		{"Bacon Co", "skybacon.com", true},
		{"Nobody", "", false},
		{Unknown, "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			got, ok := table.ResolveDirectory(tt.vendor)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDirectory_Deterministic(t *testing.T) {
	table := loadTestTable(t)
	first, _ := table.ResolveDirectory("Bacon Co")
	for i := 0; i < 10; i++ {
		got, _ := table.ResolveDirectory("Bacon Co")
		assert.Equal(t, first, got)
	}
}

func TestStripCodes(t *testing.T) {
	table := loadTestTable(t)
	assert.True(t, table.StripCodes("Raccoon Fireworks"))
	assert.True(t, table.StripCodes("Raccoon Fireworks Inc"))
	assert.False(t, table.StripCodes("Raccoon Extreme"))
	assert.False(t, table.StripCodes("World Class"))
}

func TestResolve_ConfigurationMissing(t *testing.T) {
	table := loadTestTable(t)

	_, err := table.Resolve("Nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigurationMissing))

	res, err := table.Resolve("Raccoon Fireworks")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Vendor: "Raccoon Fireworks", Directory: "raccoon", StripCodes: true}, res)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("version: 2\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("version: 1\nvendors:\n  - directory: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("version: 1\nvendors:\n  - name: A\n  - name: a\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("version: 1\nwebsites:\n  - vendor: A\n    url: 'https://'\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(":::"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRules), 0o644))

	table, err := LoadFile(path)
	require.NoError(t, err)
	dir, ok := table.ResolveDirectory("Raccoon Fireworks")
	assert.True(t, ok)
	assert.Equal(t, "raccoon", dir)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
