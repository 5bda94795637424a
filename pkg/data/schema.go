package data

import (
	"errors"
	"fmt"
)

// Feature maps a raw input column to the display name used downstream.
type Feature struct {
	Column string `yaml:"column"`
	Name   string `yaml:"name"`
}

// Schema describes which columns of an input table are used and how.
// Feature order is the model's column order.
type Schema struct {
	Features []Feature
	Label    string
	Exclude  []string
}

// Columns returns the raw feature column names in order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.Features))
	for i, f := range s.Features {
		out[i] = f.Column
	}
	return out
}

// Names returns the renamed feature names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Features))
	for i, f := range s.Features {
		out[i] = f.Name
	}
	return out
}

// Validate checks the schema is usable.
func (s Schema) Validate() error {
	if len(s.Features) == 0 {
		return errors.New("schema: no feature columns")
	}
	if s.Label == "" {
		return errors.New("schema: empty label column")
	}
	cols := map[string]bool{}
	names := map[string]bool{}
	for _, f := range s.Features {
		if f.Column == "" || f.Name == "" {
			return fmt.Errorf("schema: feature %+v needs both column and name", f)
		}
		if cols[f.Column] {
			return fmt.Errorf("schema: column %q listed twice", f.Column)
		}
		if names[f.Name] {
			return fmt.Errorf("schema: feature name %q used twice", f.Name)
		}
		if f.Column == s.Label {
			return fmt.Errorf("schema: label %q cannot also be a feature", s.Label)
		}
		cols[f.Column] = true
		names[f.Name] = true
	}
	for _, ex := range s.Exclude {
		if cols[ex] || ex == s.Label {
			return fmt.Errorf("schema: excluded column %q is also used", ex)
		}
	}
	return nil
}
