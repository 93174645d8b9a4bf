// Package ml loads trained credit-default models and exposes them behind a
// single narrow capability: given the ordered feature vector, return the
// probability of the positive (default) class.
//
// Two artifact shapes are supported: the native logistic pipeline exported
// by the training job (median imputer, standard scaler, logistic
// regression), and a remote MLflow scoring server reached over HTTP.
package ml

import (
	"context"
	"errors"
)

var (
	// ErrFeatureCount indicates a vector whose length the model cannot accept.
	ErrFeatureCount = errors.New("ml: feature count mismatch")

	// ErrInvalidArtifact indicates an artifact that cannot be turned into a model.
	ErrInvalidArtifact = errors.New("ml: invalid model artifact")

	// ErrInvalidInput indicates a feature value the model cannot evaluate.
	ErrInvalidInput = errors.New("ml: invalid model input")

	// ErrInvalidOutput indicates a model answer that is not a probability.
	ErrInvalidOutput = errors.New("ml: invalid model output")
)

// Predictor is the loaded model. Implementations are immutable after
// construction and safe for concurrent use.
type Predictor interface {
	// PredictProba returns P(default) in [0,1] for one feature vector.
	PredictProba(ctx context.Context, features []float64) (float64, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, features []float64) (float64, error)

func (f PredictorFunc) PredictProba(ctx context.Context, features []float64) (float64, error) {
	return f(ctx, features)
}
