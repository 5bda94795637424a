package data

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		Features: []Feature{
			{Column: "tem", Name: "Tem"},
			{Column: "croppot", Name: "Quality"},
			{Column: "igg", Name: "Clrr"},
		},
		Label:   "Cropabon",
		Exclude: []string{"Year"},
	}
}

const table = "Year\tcroppot\ttem\tigg\textra\tCropabon\n" +
	"2000\t0.5\t12.1\t3\tx\t1.5\n" +
	"2001\t0.7\tNA\t4\ty\t2.5\n" +
	"2002\t0.9\t13.0\t\tz\tNA\n" +
	"2003\t1.1\t14.2\t6\tw\t4.0\n"

func TestLoad(t *testing.T) {
	ds, err := Load(strings.NewReader(table), testSchema())
	require.NoError(t, err)

	assert.Equal(t, []string{"Tem", "Quality", "Clrr"}, ds.Names)
	assert.Equal(t, "Cropabon", ds.Label)
	assert.Equal(t, 3, ds.Rows())
	assert.Equal(t, 3, ds.Cols())
	assert.Equal(t, 1, ds.DroppedRows)
	assert.Equal(t, []float64{1.5, 2.5, 4.0}, ds.Y)

	assert.Equal(t, []float64{12.1, 0.5, 3}, ds.X[0])
	assert.True(t, math.IsNaN(ds.X[1][0]))
	assert.Equal(t, []float64{0.7, 4}, ds.X[1][1:])
}

func TestLoad_SwappedAndChainedNames(t *testing.T) {
	in := "a\tb\tc\tCropabon\n1\t100\t7\t5\n2\t200\t8\t6\n"

	swap := Schema{Features: []Feature{{Column: "a", Name: "b"}, {Column: "b", Name: "a"}}, Label: "Cropabon"}
	ds, err := Load(strings.NewReader(in), swap)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ds.Names)
	assert.Equal(t, [][]float64{{1, 100}, {2, 200}}, ds.X)

	chain := Schema{Features: []Feature{{Column: "a", Name: "b"}, {Column: "b", Name: "c"}}, Label: "Cropabon"}
	ds, err = Load(strings.NewReader(in), chain)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ds.Names)
	assert.Equal(t, [][]float64{{1, 100}, {2, 200}}, ds.X)
	assert.Equal(t, []float64{5, 6}, ds.Y)
}

func TestLoad_MissingColumns(t *testing.T) {
	in := "croppot\ttem\tCropabon\n1\t2\t3\n"
	_, err := Load(strings.NewReader(in), testSchema())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "igg")
}

func TestLoad_AllLabelsMissing(t *testing.T) {
	in := "croppot\ttem\tigg\tCropabon\n1\t2\t3\tNA\n"
	_, err := Load(strings.NewReader(in), testSchema())
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoad_InvalidSchema(t *testing.T) {
	s := testSchema()
	s.Features = append(s.Features, Feature{Column: "Cropabon", Name: "Leak"})
	_, err := Load(strings.NewReader(table), s)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region_a.txt")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))

	ds, err := LoadFile(path, testSchema())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Rows())

	_, err = LoadFile(filepath.Join(dir, "nope.txt"), testSchema())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "region_a", BaseName("/data/in/region_a.txt"))
	assert.Equal(t, "archive.tar", BaseName("archive.tar.gz"))
	assert.Equal(t, "plain", BaseName("plain"))
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schema)
	}{
		{"no features", func(s *Schema) { s.Features = nil }},
		{"no label", func(s *Schema) { s.Label = "" }},
		{"dup column", func(s *Schema) { s.Features[1].Column = "tem" }},
		{"dup name", func(s *Schema) { s.Features[1].Name = "Tem" }},
		{"empty name", func(s *Schema) { s.Features[0].Name = "" }},
		{"excluded feature", func(s *Schema) { s.Exclude = []string{"igg"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			s.Features = append([]Feature(nil), s.Features...)
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
	assert.NoError(t, testSchema().Validate())
}
