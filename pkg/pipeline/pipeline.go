// Package pipeline runs the per-file workflow: load, split, train or reuse
// a model, evaluate it, rank features and explain it with SHAP values.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/impala3/CARin2050/pkg/config"
	"github.com/impala3/CARin2050/pkg/data"
	"github.com/impala3/CARin2050/pkg/dataprep"
	"github.com/impala3/CARin2050/pkg/explain"
	"github.com/impala3/CARin2050/pkg/loader"
	"github.com/impala3/CARin2050/pkg/model"
	"github.com/impala3/CARin2050/pkg/report"
	"github.com/impala3/CARin2050/pkg/telemetry"
)

// InputExt is the extension of the tables picked up in directory mode.
const InputExt = ".txt"

// ErrPathNotFound is returned by Run when the path is neither a file nor a
// directory.
var ErrPathNotFound = errors.New("pipeline: path not found")

// Processor processes input tables with one configuration.
type Processor struct {
	cfg     *config.Config
	logger  *zap.Logger
	out     *report.Printer
	metrics *telemetry.Recorder
	force   bool
	runID   string
}

// Option functional config for Processor
type Option func(*Processor)

func WithLogger(l *zap.Logger) Option { return func(p *Processor) { p.logger = l } }

func WithPrinter(pr *report.Printer) Option { return func(p *Processor) { p.out = pr } }

func WithRecorder(r *telemetry.Recorder) Option { return func(p *Processor) { p.metrics = r } }

// WithForce ignores cached models and SHAP values.
func WithForce(f bool) Option { return func(p *Processor) { p.force = f } }

// New validates cfg and returns a processor. Without options it logs
// nowhere and prints to stdout.
func New(cfg *config.Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{
		cfg:     cfg,
		logger:  zap.NewNop(),
		out:     report.New(os.Stdout),
		metrics: telemetry.NewRecorder(),
		runID:   uuid.NewString(),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With(zap.String("run_id", p.runID))
	return p, nil
}

// RunID identifies this processor's run in logs and model metadata.
func (p *Processor) RunID() string { return p.runID }

// Recorder returns the metrics collected so far.
func (p *Processor) Recorder() *telemetry.Recorder { return p.metrics }

// Artifacts are the files produced for one input.
type Artifacts struct {
	Model           string
	ShapValues      string
	SummaryPlot     string
	ImportancePlot  string
	ImportanceTable string
	Predictions     string
}

// ArtifactsFor derives the artifact paths of the input named base.
func ArtifactsFor(saveDir, base string) Artifacts {
	at := func(suffix string) string { return filepath.Join(saveDir, base+suffix) }
	return Artifacts{
		Model:           at("_model.gob"),
		ShapValues:      at("_shap_values.npy"),
		SummaryPlot:     at("_shap_summary.png"),
		ImportancePlot:  at("_importance.png"),
		ImportanceTable: at("_importance.tsv"),
		Predictions:     at("_predictions.tsv"),
	}
}

// Result summarizes one processed file.
type Result struct {
	Name      string
	Path      string
	Rows      int
	TrainRows int
	TestRows  int

	R2, RMSE, MAE float64

	Importances []model.Importance
	ShapRanking []model.Importance
	CV          *model.CVResult

	ModelCached bool
	ShapCached  bool
	Artifacts   Artifacts
}

// ProcessFile runs the whole workflow on one table.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Result, error) {
	return p.processFile(ctx, path, p.force)
}

func (p *Processor) processFile(ctx context.Context, path string, force bool) (*Result, error) {
	base := data.BaseName(path)
	log := p.logger.With(zap.String("dataset", base))
	arts := ArtifactsFor(p.cfg.SaveDir, base)
	p.out.Header("Processing file: " + path)

	ds, err := data.LoadFile(path, p.cfg.Schema())
	if err != nil {
		return nil, err
	}
	p.out.Info("Data loaded: %d samples, %d features", ds.Rows(), ds.Cols())
	if ds.DroppedRows > 0 {
		p.out.Warning("Dropped %d rows without %s", ds.DroppedRows, ds.Label)
	}
	log.Debug("dataset loaded", zap.Int("rows", ds.Rows()), zap.Int("dropped", ds.DroppedRows))

	split, err := loader.TrainTestSplit(ds.X, ds.Y, p.cfg.Split.TestSize, p.cfg.Split.RandomState)
	if err != nil {
		return nil, err
	}
	strategy, err := dataprep.ParseStrategy(p.cfg.Impute.Strategy)
	if err != nil {
		return nil, err
	}
	imp := dataprep.NewImputer(strategy)
	prep := NewChain(imp)
	xTrain, err := prep.FitTransform(split.XTrain)
	if err != nil {
		return nil, err
	}
	if n := imp.TotalMissing(); n > 0 {
		p.out.Info("Imputed %d missing training cells (%s)", n, strategy)
	}

	bundle, modelCached, err := model.TrainOrLoad(ctx, log, model.TrainRequest{
		Path:     arts.Model,
		Dataset:  base,
		Features: ds.Names,
		Label:    ds.Label,
		Params:   p.cfg.Model,
		Imputer:  imp,
		TestRows: len(split.XTest),
		RunID:    p.runID,
		Force:    force,
		Progress: func(done, total int) {
			if done%50 == 0 || done == total {
				log.Debug("fitting forest", zap.Int("trees", done), zap.Int("total", total))
			}
		},
	}, xTrain, split.YTrain)
	if err != nil {
		return nil, err
	}
	if modelCached {
		p.out.Info("Loading existing model from %s", arts.Model)
		// the cached imputer belongs to the cached forest
		if bundle.Imputer != nil {
			prep = NewChain(bundle.Imputer)
		}
	} else {
		p.out.Success("Model trained and saved to %s", arts.Model)
	}

	p.out.Rule("Model Evaluation", "-", "")
	xTest, err := prep.Transform(split.XTest)
	if err != nil {
		return nil, err
	}
	met, err := model.Evaluate(bundle.Forest, xTest, split.YTest)
	if err != nil {
		return nil, err
	}
	p.out.Result("R²", fmt.Sprintf("%.4f", met.R2))
	p.out.Result("RMSE", fmt.Sprintf("%.4f", met.RMSE))
	p.out.Result("MAE", fmt.Sprintf("%.4f", met.MAE))

	res := &Result{
		Name:        base,
		Path:        path,
		Rows:        ds.Rows(),
		TrainRows:   len(split.XTrain),
		TestRows:    len(split.XTest),
		R2:          met.R2,
		RMSE:        met.RMSE,
		MAE:         met.MAE,
		ModelCached: modelCached,
		Artifacts:   arts,
	}

	scores, err := bundle.Forest.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if res.Importances, err = model.RankImportances(ds.Names, scores); err != nil {
		return nil, err
	}
	p.out.Table("Feature Importance", []string{"Feature", "Importance"}, importanceRows(res.Importances))
	if err := writeImportances(arts.ImportanceTable, res.Importances); err != nil {
		return nil, err
	}
	if p.cfg.Plots {
		if err := explain.ImportancePlot(arts.ImportancePlot, res.Importances); err != nil {
			return nil, err
		}
	}

	xAll, err := prep.Transform(ds.X)
	if err != nil {
		return nil, err
	}

	if p.cfg.CVFolds >= 2 {
		params := p.cfg.Model
		cv, err := model.CrossValidate(ctx, func() model.Model {
			return model.NewRandomForestRegressor(params)
		}, xAll, ds.Y, p.cfg.CVFolds, p.cfg.Split.RandomState)
		if err != nil {
			return nil, err
		}
		res.CV = &cv
		p.out.Result(fmt.Sprintf("CV R² (%d folds)", p.cfg.CVFolds),
			fmt.Sprintf("%.4f ± %.4f", cv.MeanR2(), cv.StdR2()))
		p.out.Result(fmt.Sprintf("CV RMSE (%d folds)", p.cfg.CVFolds), fmt.Sprintf("%.4f", cv.MeanRMSE()))
	}

	p.out.Rule("SHAP Analysis", "-", "")
	ex, err := explain.NewTreeExplainer(bundle.Forest)
	if err != nil {
		return nil, err
	}
	ex.SetWorkers(p.cfg.Model.Workers)
	shapStart := time.Now()
	// values cached for an older forest are stale
	values, shapCached, err := explain.ComputeOrLoad(ctx, log, arts.ShapValues, ex, xAll, force || !modelCached)
	if err != nil {
		return nil, err
	}
	shapTime := time.Since(shapStart)
	res.ShapCached = shapCached
	if shapCached {
		p.out.Info("Loading existing SHAP values from %s", arts.ShapValues)
	} else {
		p.out.Success("SHAP values saved to %s", arts.ShapValues)
	}
	r, c := values.Dims()
	p.out.Info("SHAP values shape: (%d, %d)", r, c)

	if res.ShapRanking, err = model.RankImportances(ds.Names, explain.MeanAbs(values)); err != nil {
		return nil, err
	}
	p.out.Table("Mean |SHAP|", []string{"Feature", "Mean |SHAP|"}, importanceRows(res.ShapRanking))

	if p.cfg.Plots {
		if err := explain.SummaryPlot(arts.SummaryPlot, values, xAll, ds.Names); err != nil {
			return nil, err
		}
		p.out.Success("SHAP summary plot saved to %s", arts.SummaryPlot)
	}

	if err := writePredictions(arts.Predictions, ds.Label, ds.Y, bundle.Forest.Predict(xAll), split.TestIdx); err != nil {
		return nil, err
	}

	p.metrics.Observe(telemetry.FileResult{
		Dataset:    base,
		R2:         met.R2,
		RMSE:       met.RMSE,
		MAE:        met.MAE,
		Train:      bundle.Metadata.TrainingTime,
		Shap:       shapTime,
		ModelCache: modelCached,
		ShapCache:  shapCached,
	})
	log.Info("file processed",
		zap.Float64("r2", met.R2),
		zap.Float64("rmse", met.RMSE),
		zap.Bool("model_cached", modelCached),
		zap.Bool("shap_cached", shapCached))
	p.out.Success("\nProcessing complete for %s", base)
	return res, nil
}

// ProcessDirectory processes every *.txt entry of dir in name order. A
// file that fails is reported and skipped. A missing directory yields no
// results and no error.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) ([]*Result, error) {
	p.out.Header("Processing directory: " + dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		p.out.Warning("Warning: Directory not found: %s", dir)
		p.logger.Warn("cannot read directory", zap.String("dir", dir), zap.Error(err))
		return nil, nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), InputExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var results []*Result
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := p.ProcessFile(ctx, filepath.Join(dir, name))
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			p.metrics.Failed()
			p.out.Warning("Error processing %s: %v", name, err)
			p.logger.Warn("file failed", zap.String("file", name), zap.Error(err))
			continue
		}
		results = append(results, res)
	}

	if len(results) == 0 {
		p.out.Warning("No %s files found in %s", InputExt, dir)
	} else {
		p.out.Success("Successfully processed %d files in %s", len(results), dir)
	}
	return results, nil
}

// Run processes path as a file or a directory, prints the summary and
// writes the metrics textfile.
func (p *Processor) Run(ctx context.Context, path string) ([]*Result, error) {
	p.out.Rule("Starting Model Training and Analysis", "*", report.ColorHeader)
	if err := os.MkdirAll(p.cfg.SaveDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		p.out.Warning("Error: Path not found: %s", path)
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	var results []*Result
	if info.IsDir() {
		results, err = p.ProcessDirectory(ctx, path)
	} else {
		var res *Result
		res, err = p.ProcessFile(ctx, path)
		if err != nil {
			p.metrics.Failed()
		} else {
			results = append(results, res)
		}
	}
	if werr := p.metrics.Write(p.cfg.SaveDir); werr != nil {
		p.logger.Warn("metrics not written", zap.Error(werr))
	}
	if err != nil {
		return results, err
	}

	p.Summary(results)
	return results, nil
}

// Summary prints R² and RMSE of every result.
func (p *Processor) Summary(results []*Result) {
	if len(results) == 0 {
		p.out.Warning("No results to report. No files were processed successfully.")
		return
	}
	p.out.Rule("Summary of Results", "*", report.ColorHeader)
	for _, r := range results {
		p.out.Rule("Results for "+r.Name, "-", report.ColorHeader)
		p.out.Result("R²", fmt.Sprintf("%.4f", r.R2))
		p.out.Result("RMSE", fmt.Sprintf("%.4f", r.RMSE))
		if r.CV != nil {
			p.out.Result("CV R²", fmt.Sprintf("%.4f", r.CV.MeanR2()))
			p.out.Result("CV RMSE", fmt.Sprintf("%.4f", r.CV.MeanRMSE()))
		}
	}
	p.out.Success("\nAll files processed successfully!")
}

func importanceRows(imps []model.Importance) [][]string {
	rows := make([][]string, len(imps))
	for i, imp := range imps {
		rows[i] = []string{imp.Feature, fmt.Sprintf("%.4f", imp.Importance)}
	}
	return rows
}
