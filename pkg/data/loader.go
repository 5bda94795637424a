package data

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	ErrMissingColumn = errors.New("data: missing column")
	ErrEmptyDataset  = errors.New("data: no usable rows")
)

// Dataset is a loaded feature table plus its label.
type Dataset struct {
	Names []string // renamed feature names
	X     [][]float64
	Y     []float64
	Label string

	// DroppedRows counts rows discarded because the label was missing.
	DroppedRows int
}

// Rows returns the number of observations.
func (d *Dataset) Rows() int { return len(d.X) }

// Cols returns the number of features.
func (d *Dataset) Cols() int { return len(d.Names) }

// BaseName returns the file name of path without directory and extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile opens a tab-separated table with a header row and applies s.
func LoadFile(path string, s Schema) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Load(f, s)
	if err != nil {
		return nil, fmt.Errorf("data: %s: %w", filepath.Base(path), err)
	}
	return ds, nil
}

// Load reads a tab-separated table: excluded columns are dropped, feature
// columns selected in schema order and renamed, and the label extracted.
// Empty, NA and unparsable cells become NaN. Rows whose label is NaN are
// dropped.
func Load(r io.Reader, s Schema) (*Dataset, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter('\t'),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse table: %w", df.Err)
	}

	present := df.Names()
	var drop []string
	for _, ex := range s.Exclude {
		if slices.Contains(present, ex) {
			drop = append(drop, ex)
		}
	}
	if len(drop) > 0 {
		df = df.Drop(drop)
	}

	var missing []string
	for _, c := range append(s.Columns(), s.Label) {
		if !slices.Contains(present, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	labelCol := df.Col(s.Label)
	if labelCol.Err != nil {
		return nil, fmt.Errorf("label %s: %w", s.Label, labelCol.Err)
	}
	label := labelCol.Float()

	// all names are set at once so a mapping may swap or chain names
	feats := df.Select(s.Columns())
	if feats.Err != nil {
		return nil, fmt.Errorf("select features: %w", feats.Err)
	}
	if err := feats.SetNames(s.Names()...); err != nil {
		return nil, fmt.Errorf("rename features: %w", err)
	}

	cols := make([][]float64, len(s.Features))
	for j, name := range s.Names() {
		col := feats.Col(name)
		if col.Err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, col.Err)
		}
		cols[j] = col.Float()
	}

	ds := &Dataset{Names: s.Names(), Label: s.Label}
	for i, y := range label {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			ds.DroppedRows++
			continue
		}
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, y)
	}
	if len(ds.X) == 0 {
		return nil, ErrEmptyDataset
	}
	return ds, nil
}
