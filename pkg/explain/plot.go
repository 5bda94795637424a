package explain

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/impala3/CARin2050/pkg/model"
	"github.com/impala3/CARin2050/pkg/stats"
)

var missingColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}

// SummaryPlot renders a SHAP beeswarm: one row per feature, most
// influential at the top, each dot an observation placed at its SHAP value
// and colored from blue (low feature value) to red (high).
func SummaryPlot(path string, values *mat.Dense, X [][]float64, names []string) error {
	r, c := values.Dims()
	if len(names) != c || len(X) != r {
		return fmt.Errorf("summary plot: %d x %d values for %d rows and %d names", r, c, len(X), len(names))
	}

	p := plot.New()
	p.Title.Text = "SHAP summary"
	p.X.Label.Text = "SHAP value (impact on model output)"

	cm := moreland.SmoothBlueRed()
	cm.SetMin(0)
	cm.SetMax(1)

	order := Order(MeanAbs(values))
	labels := make([]string, c)
	rnd := rand.New(rand.NewSource(int64(r)*31 + int64(c)))

	for rank, j := range order {
		ypos := float64(c - 1 - rank)
		labels[c-1-rank] = names[j]

		col := make([]float64, r)
		for i := 0; i < r; i++ {
			col[i] = X[i][j]
		}
		norm := normalizer(col)

		pts := make(plotter.XYs, r)
		colors := make([]color.Color, r)
		for i := 0; i < r; i++ {
			pts[i].X = values.At(i, j)
			pts[i].Y = ypos + (rnd.Float64()-0.5)*0.6
			colors[i] = missingColor
			if v := col[i]; !math.IsNaN(v) {
				if cc, err := cm.At(norm(v)); err == nil {
					colors[i] = cc
				}
			}
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("summary plot: %s: %w", names[j], err)
		}
		s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{Color: colors[i], Radius: vg.Points(1.6), Shape: draw.CircleGlyph{}}
		}
		p.Add(s)
	}

	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: -0.5}, {X: 0, Y: float64(c) - 0.5}})
	if err != nil {
		return fmt.Errorf("summary plot: %w", err)
	}
	zero.Color = color.Gray{Y: 120}
	zero.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(zero)

	p.NominalY(labels...)
	p.Y.Min = -0.6
	p.Y.Max = float64(c) - 0.4

	high, _ := cm.At(1)
	low, _ := cm.At(0)
	p.Legend.Top = true
	p.Legend.Add("high feature value", thumb(high))
	p.Legend.Add("low feature value", thumb(low))

	return save(p, 10*vg.Inch, 8*vg.Inch, path)
}

// ImportancePlot renders ranked importances as horizontal bars, largest on
// top.
func ImportancePlot(path string, ranked []model.Importance) error {
	if len(ranked) == 0 {
		return errors.New("importance plot: nothing to plot")
	}
	n := len(ranked)
	vals := make(plotter.Values, n)
	labels := make([]string, n)
	for i, imp := range ranked {
		vals[n-1-i] = imp.Importance
		labels[n-1-i] = imp.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "Mean decrease in impurity"

	bars, err := plotter.NewBarChart(vals, vg.Points(14))
	if err != nil {
		return fmt.Errorf("importance plot: %w", err)
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 30, G: 136, B: 229, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)

	return save(p, 8*vg.Inch, 6*vg.Inch, path)
}

// normalizer maps feature values into [0,1] using the 5th and 95th
// percentiles so outliers do not wash out the color scale.
func normalizer(col []float64) func(float64) float64 {
	finite := stats.Finite(col)
	lo := stats.Percentile(finite, 5)
	hi := stats.Percentile(finite, 95)
	if hi <= lo {
		lo, hi = stats.MinMax(finite)
	}
	if hi <= lo {
		return func(float64) float64 { return 0.5 }
	}
	return func(v float64) float64 {
		return math.Min(math.Max((v-lo)/(hi-lo), 0), 1)
	}
}

func thumb(c color.Color) plot.Thumbnailer {
	return &plotter.Scatter{GlyphStyle: draw.GlyphStyle{Color: c, Radius: vg.Points(3), Shape: draw.CircleGlyph{}}}
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}
