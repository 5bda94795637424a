package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/impala3/CARin2050/pkg/dataprep"
)

// Bundle is the on-disk form of a trained model.
type Bundle struct {
	Forest   *RandomForestRegressor
	Imputer  *dataprep.Imputer
	Metadata Metadata
}

// Metadata describes how a bundle was produced.
type Metadata struct {
	ModelName    string
	Dataset      string
	Features     []string
	Label        string
	Params       Params
	TrainRows    int
	TestRows     int
	TrainingTime time.Duration
	RunID        string
	CreatedAt    time.Time
}

// Matches reports whether the bundle was trained on the given features
// and label, in that order.
func (b *Bundle) Matches(features []string, label string) bool {
	return b.Metadata.Label == label && slices.Equal(b.Metadata.Features, features)
}

// Save writes the bundle with gob. The file is written next to path and
// renamed into place so a crash never leaves a truncated model behind.
func (b *Bundle) Save(path string) error {
	if b.Forest == nil || len(b.Forest.Trees) == 0 {
		return ErrNotFitted
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return fmt.Errorf("bundle: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	return nil
}

// LoadBundle reads a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	defer f.Close()

	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("bundle: decode %s: %w", path, err)
	}
	if b.Forest == nil || len(b.Forest.Trees) == 0 {
		return nil, errors.Join(ErrNotFitted, fmt.Errorf("bundle: %s holds no trees", path))
	}
	return &b, nil
}
