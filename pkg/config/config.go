// Package config holds the run configuration: which columns to use, where
// artifacts go and how the forest is trained.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/impala3/CARin2050/pkg/data"
	"github.com/impala3/CARin2050/pkg/dataprep"
	"github.com/impala3/CARin2050/pkg/model"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "cropshap.yaml"

// Environment variables that override file values.
const (
	EnvSaveDir  = "CROPSHAP_SAVE_DIR"
	EnvLogLevel = "CROPSHAP_LOG_LEVEL"
)

type Config struct {
	SaveDir        string         `yaml:"save_dir"`
	Label          string         `yaml:"label"`
	ExcludeColumns []string       `yaml:"exclude_columns"`
	Features       []data.Feature `yaml:"features"`
	Split          SplitConfig    `yaml:"split"`
	Model          model.Params   `yaml:"model"`
	Impute         ImputeConfig   `yaml:"impute"`
	CVFolds        int            `yaml:"cv_folds"` // 0 disables cross-validation
	Plots          bool           `yaml:"plots"`
	Logging        LoggingConfig  `yaml:"logging"`
}

type SplitConfig struct {
	TestSize    float64 `yaml:"test_size"`
	RandomState int64   `yaml:"random_state"`
}

type ImputeConfig struct {
	Strategy string `yaml:"strategy"` // median, mean or none
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// DefaultFeatures is the column mapping of the crop abundance tables.
func DefaultFeatures() []data.Feature {
	return []data.Feature{
		{Column: "croppot", Name: "Quality"},
		{Column: "tem", Name: "Tem"},
		{Column: "pop", Name: "Pop"},
		{Column: "pre", Name: "Pre"},
		{Column: "solar", Name: "Solar"},
		{Column: "ENNMN", Name: "ENNMN"},
		{Column: "PARAMN", Name: "PARAMN"},
		{Column: "gdp", Name: "GDP"},
		{Column: "PD", Name: "PD"},
		{Column: "AI", Name: "AI"},
		{Column: "dem", Name: "DEM"},
		{Column: "slope", Name: "Slope"},
		{Column: "som", Name: "SOM"},
		{Column: "igg", Name: "Clrr"},
		{Column: "riverdis", Name: "Riverdis"},
		{Column: "roaddis", Name: "Roaddis"},
		{Column: "setdis", Name: "Setdis"},
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		SaveDir:        "results",
		Label:          "Cropabon",
		ExcludeColumns: []string{"Year"},
		Features:       DefaultFeatures(),
		Split:          SplitConfig{TestSize: 0.2, RandomState: 42},
		Model:          model.DefaultParams(),
		Impute:         ImputeConfig{Strategy: string(dataprep.StrategyMedian)},
		Plots:          true,
		Logging:        LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load overlays the YAML file at path on Default and applies environment
// overrides. A missing file is only an error when path is not DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSaveDir); v != "" {
		c.SaveDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// Schema returns the column layout described by c.
func (c *Config) Schema() data.Schema {
	return data.Schema{Features: c.Features, Label: c.Label, Exclude: c.ExcludeColumns}
}

// Validate reports every problem found in c.
func (c *Config) Validate() error {
	var errs []error
	if c.SaveDir == "" {
		errs = append(errs, errors.New("config: save_dir is empty"))
	}
	if err := c.Schema().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		errs = append(errs, fmt.Errorf("config: split.test_size must be in (0,1), got %g", c.Split.TestSize))
	}
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if _, err := dataprep.ParseStrategy(c.Impute.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.CVFolds < 0 || c.CVFolds == 1 {
		errs = append(errs, fmt.Errorf("config: cv_folds must be 0 or at least 2, got %d", c.CVFolds))
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("config: unknown logging.format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
