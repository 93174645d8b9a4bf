package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// FlavorLogisticPipeline is the flavor tag written by the training export.
const FlavorLogisticPipeline = "logistic_pipeline"

// LogisticPipeline is imputer -> scaler -> logistic regression, evaluated
// natively. Imputer and scaler are optional.
type LogisticPipeline struct {
	Flavor       string   `json:"flavor"`
	NFeatures    int      `json:"n_features"`
	FeatureNames []string `json:"feature_names,omitempty"`
	Imputer      *struct {
		Statistics []float64 `json:"statistics"`
	} `json:"imputer,omitempty"`
	Scaler *struct {
		Mean  []float64 `json:"mean"`
		Scale []float64 `json:"scale"`
	} `json:"scaler,omitempty"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// DecodeLogisticPipeline parses and checks a model.json artifact.
func DecodeLogisticPipeline(data []byte) (*LogisticPipeline, error) {
	var m LogisticPipeline
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LogisticPipeline) validate() error {
	if m.Flavor != FlavorLogisticPipeline {
		return fmt.Errorf("%w: unsupported flavor %q", ErrInvalidArtifact, m.Flavor)
	}
	n := len(m.Coefficients)
	if n == 0 {
		return fmt.Errorf("%w: no coefficients", ErrInvalidArtifact)
	}
	if m.NFeatures != n {
		return fmt.Errorf("%w: n_features=%d but %d coefficients", ErrInvalidArtifact, m.NFeatures, n)
	}
	if m.FeatureNames != nil && len(m.FeatureNames) != n {
		return fmt.Errorf("%w: %d feature names for %d features", ErrInvalidArtifact, len(m.FeatureNames), n)
	}
	if m.Imputer != nil && len(m.Imputer.Statistics) != n {
		return fmt.Errorf("%w: imputer has %d statistics for %d features", ErrInvalidArtifact, len(m.Imputer.Statistics), n)
	}
	if m.Scaler != nil && (len(m.Scaler.Mean) != n || len(m.Scaler.Scale) != n) {
		return fmt.Errorf("%w: scaler shape does not match %d features", ErrInvalidArtifact, n)
	}
	return nil
}

// PredictProba evaluates the pipeline on one vector.
func (m *LogisticPipeline) PredictProba(_ context.Context, features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: model expects %d, got %d", ErrFeatureCount, len(m.Coefficients), len(features))
	}

	z := m.Intercept
	for i, v := range features {
		if math.IsNaN(v) {
			if m.Imputer == nil {
				return 0, fmt.Errorf("%w: feature %d is NaN and the model has no imputer", ErrInvalidInput, i)
			}
			v = m.Imputer.Statistics[i]
		}
		if m.Scaler != nil {
			scale := m.Scaler.Scale[i]
			if scale == 0 {
				scale = 1 // constant column at fit time
			}
			v = (v - m.Scaler.Mean[i]) / scale
		}
		z += m.Coefficients[i] * v
	}

	return sigmoid(z), nil
}

// sigmoid converts a log-odds score to a probability without overflowing
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
