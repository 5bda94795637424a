package pipeline

// Transformer is a preprocessing step fitted on training rows and applied
// to every split.
type Transformer interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) ([][]float64, error)
}

// Chain runs transformers in order.
type Chain struct {
	steps []Transformer
}

func NewChain(steps ...Transformer) *Chain {
	return &Chain{steps: steps}
}

// FitTransform fits every step on the output of the previous one.
func (c *Chain) FitTransform(X [][]float64) ([][]float64, error) {
	for _, step := range c.steps {
		if err := step.Fit(X); err != nil {
			return nil, err
		}
		var err error
		if X, err = step.Transform(X); err != nil {
			return nil, err
		}
	}
	return X, nil
}

// Transform applies fitted steps.
func (c *Chain) Transform(X [][]float64) ([][]float64, error) {
	for _, step := range c.steps {
		var err error
		if X, err = step.Transform(X); err != nil {
			return nil, err
		}
	}
	return X, nil
}
