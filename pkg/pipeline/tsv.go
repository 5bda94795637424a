package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/impala3/CARin2050/pkg/model"
)

// writeImportances stores the ranked importances as a Feature/Importance
// table.
func writeImportances(path string, imps []model.Importance) error {
	names := make([]string, len(imps))
	scores := make([]float64, len(imps))
	for i, imp := range imps {
		names[i] = imp.Feature
		scores[i] = imp.Importance
	}
	return writeTSV(path, dataframe.New(
		series.New(names, series.String, "Feature"),
		series.New(scores, series.Float, "Importance"),
	))
}

// writePredictions stores the label, the model prediction and the split of
// every row.
func writePredictions(path, label string, y, pred []float64, testIdx []int) error {
	if len(y) != len(pred) {
		return fmt.Errorf("predictions: %d labels, %d predictions", len(y), len(pred))
	}
	split := make([]string, len(y))
	for i := range split {
		split[i] = "train"
	}
	for _, i := range testIdx {
		split[i] = "test"
	}
	return writeTSV(path, dataframe.New(
		series.New(y, series.Float, label),
		series.New(pred, series.Float, "pred"),
		series.New(split, series.String, "split"),
	))
}

func writeTSV(path string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), df.Err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.WriteAll(df.Records()); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
