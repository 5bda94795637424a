package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Model.NEstimators)
	assert.Equal(t, 10, cfg.Model.MaxDepth)
	assert.Equal(t, "sqrt", cfg.Model.MaxFeatures)
	assert.Len(t, cfg.Features, 17)
	assert.Equal(t, "Clrr", cfg.Features[13].Name)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
save_dir: out
model:
  n_estimators: 50
  max_features: log2
features:
  - column: tem
    name: Tem
  - column: pre
    name: Pre
cv_folds: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	want := Default()
	want.SaveDir = "out"
	want.Model.NEstimators = 50
	want.Model.MaxFeatures = "log2"
	want.Features = want.Features[:0:0]
	want.Features = append(want.Features, DefaultFeatures()[1], DefaultFeatures()[3])
	want.CVFolds = 5
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvSaveDir, "/tmp/elsewhere")
	t.Setenv(EnvLogLevel, "debug")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", cfg.SaveDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "c.yaml")
	cfg := Default()
	cfg.Model.NEstimators = 12
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty save dir", func(c *Config) { c.SaveDir = "" }},
		{"no features", func(c *Config) { c.Features = nil }},
		{"label as feature", func(c *Config) { c.Label = "tem" }},
		{"test size", func(c *Config) { c.Split.TestSize = 1 }},
		{"trees", func(c *Config) { c.Model.NEstimators = 0 }},
		{"max features", func(c *Config) { c.Model.MaxFeatures = "half" }},
		{"impute", func(c *Config) { c.Impute.Strategy = "mode" }},
		{"folds", func(c *Config) { c.CVFolds = 1 }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
