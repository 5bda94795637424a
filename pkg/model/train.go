package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/impala3/CARin2050/pkg/dataprep"
)

// TrainRequest describes a model to train or to reuse from Path.
type TrainRequest struct {
	Path     string
	Dataset  string
	Features []string
	Label    string
	Params   Params
	Imputer  *dataprep.Imputer
	TestRows int
	RunID    string

	// Force retrains even when a usable bundle exists at Path.
	Force bool

	// Progress, when set, is passed to the forest as WithProgress.
	Progress func(done, total int)
}

// TrainOrLoad returns the bundle at req.Path when it exists and was
// trained on the same features and label. Otherwise it fits a new forest
// on X, y and saves it to req.Path. The bool result reports a cache hit.
func TrainOrLoad(ctx context.Context, logger *zap.Logger, req TrainRequest, X [][]float64, y []float64) (*Bundle, bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("model_path", req.Path))

	if !req.Force {
		b, err := LoadBundle(req.Path)
		switch {
		case err == nil && b.Matches(req.Features, req.Label):
			log.Info("loaded cached model",
				zap.Int("trees", len(b.Forest.Trees)),
				zap.Time("created_at", b.Metadata.CreatedAt))
			return b, true, nil
		case err == nil:
			log.Warn("cached model was trained on different columns, retraining",
				zap.Strings("cached_features", b.Metadata.Features),
				zap.String("cached_label", b.Metadata.Label))
		case errors.Is(err, os.ErrNotExist):
			log.Debug("no cached model")
		default:
			log.Warn("cached model unreadable, retraining", zap.Error(err))
		}
	}

	var opts []RandomForestOption
	if req.Progress != nil {
		opts = append(opts, WithProgress(req.Progress))
	}
	forest := NewRandomForestRegressor(req.Params, opts...)

	start := time.Now()
	if err := forest.Fit(ctx, X, y); err != nil {
		return nil, false, fmt.Errorf("train %s: %w", req.Dataset, err)
	}
	elapsed := time.Since(start)

	b := &Bundle{
		Forest:  forest,
		Imputer: req.Imputer,
		Metadata: Metadata{
			ModelName:    "RandomForestRegressor",
			Dataset:      req.Dataset,
			Features:     req.Features,
			Label:        req.Label,
			Params:       req.Params,
			TrainRows:    len(X),
			TestRows:     req.TestRows,
			TrainingTime: elapsed,
			RunID:        req.RunID,
			CreatedAt:    time.Now().UTC(),
		},
	}
	if err := b.Save(req.Path); err != nil {
		return nil, false, err
	}
	log.Info("model trained and saved",
		zap.Int("trees", len(forest.Trees)),
		zap.Int("train_rows", len(X)),
		zap.Duration("elapsed", elapsed))
	return b, false, nil
}
