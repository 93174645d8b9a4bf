// Package scoring turns a validated feature vector into a credit decision.
//
// Service is the process-wide serving context: it is built once at startup
// around an already-loaded model and is read-only afterwards, so request
// handlers share it without locking.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"credit-scoring/internal/common"
	"credit-scoring/internal/ml"

	"github.com/rs/zerolog/log"
)

// ErrPrediction wraps any failure of the model itself.
var ErrPrediction = errors.New("scoring: prediction failed")

// VersionSource names the model version behind a reference. It must not fail.
type VersionSource interface {
	ResolveVersion(ctx context.Context, ref string) string
}

// Recorder receives scoring metrics.
type Recorder interface {
	PredictionObserve(decision string, probability float64)
	PredictionFailuresInc()
	ValidationErrorsInc()
	DecisionLogErrorsInc()
}

// DecisionSink receives every served decision after it has been computed.
type DecisionSink interface {
	RecordDecision(ctx context.Context, rec DecisionRecord) error
}

// DecisionRecord is what sinks see. Features are not retained.
type DecisionRecord struct {
	RequestID   string    `json:"request_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Probability float64   `json:"probability"`
	Decision    Decision  `json:"decision"`
	Threshold   float64   `json:"threshold"`
	ModelURI    string    `json:"model_uri"`
}

// Result is the /predict response body.
type Result struct {
	Probability float64  `json:"probability"`
	Decision    Decision `json:"decision"`
	Threshold   float64  `json:"threshold"`
	ModelURI    string   `json:"model_uri"`
}

// Health is the /health response body.
type Health struct {
	Status   string `json:"status"`
	ModelURI string `json:"model_uri"`
}

// Meta is the /meta response body.
type Meta struct {
	ModelURI          string  `json:"model_uri"`
	Threshold         float64 `json:"threshold"`
	NFeaturesExpected int     `json:"n_features_expected"`
	GitCommit         string  `json:"git_commit"`
	ModelVersion      string  `json:"model_version"`
}

// Config is everything a Service needs. Model must already be loaded.
type Config struct {
	ModelURI  string
	Model     ml.Predictor
	Threshold float64
	NFeatures int
	GitCommit string
	Versions  VersionSource
	Recorder  Recorder
	Sinks     []DecisionSink
}

type Service struct {
	modelURI  string
	model     ml.Predictor
	threshold float64
	nFeatures int
	gitCommit string
	versions  VersionSource
	recorder  Recorder
	sinks     []DecisionSink
}

func NewService(c Config) (*Service, error) {
	if c.Model == nil {
		return nil, fmt.Errorf("scoring: model is required")
	}
	if c.ModelURI == "" {
		return nil, fmt.Errorf("scoring: model reference is required")
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return nil, fmt.Errorf("scoring: threshold must be in (0, 1], got %v", c.Threshold)
	}
	if c.NFeatures <= 0 {
		c.NFeatures = common.ExpectedFeatures
	}
	if c.GitCommit == "" {
		c.GitCommit = common.DefaultGitCommit
	}

	sinks := make([]DecisionSink, 0, len(c.Sinks))
	for _, sink := range c.Sinks {
		if sink != nil {
			sinks = append(sinks, sink)
		}
	}

	return &Service{
		modelURI:  c.ModelURI,
		model:     c.Model,
		threshold: c.Threshold,
		nFeatures: c.NFeatures,
		gitCommit: c.GitCommit,
		versions:  c.Versions,
		recorder:  c.Recorder,
		sinks:     sinks,
	}, nil
}

func (s *Service) ModelURI() string   { return s.modelURI }
func (s *Service) Threshold() float64 { return s.threshold }
func (s *Service) NFeatures() int     { return s.nFeatures }

// Health reports that the process is serving and which model it serves.
func (s *Service) Health() Health {
	return Health{Status: "ok", ModelURI: s.modelURI}
}

// Meta describes the served model. The version lookup is the only part that
// may touch the network and it is bounded by the resolver's timeout.
func (s *Service) Meta(ctx context.Context) Meta {
	version := common.UnknownVersion
	if s.versions != nil {
		if v := s.versions.ResolveVersion(ctx, s.modelURI); v != "" {
			version = v
		}
	}
	return Meta{
		ModelURI:          s.modelURI,
		Threshold:         s.threshold,
		NFeaturesExpected: s.nFeatures,
		GitCommit:         s.gitCommit,
		ModelVersion:      version,
	}
}

// ScoreJSON decodes a /predict body and scores it.
func (s *Service) ScoreJSON(ctx context.Context, body io.Reader) (Result, error) {
	req, err := DecodeRequest(body)
	if err != nil {
		s.validationFailed(err)
		return Result{}, err
	}
	return s.Score(ctx, req)
}

// Score validates a decoded request and, if it passes, predicts.
func (s *Service) Score(ctx context.Context, req PredictRequest) (Result, error) {
	features, err := Validate(req, s.nFeatures)
	if err != nil {
		s.validationFailed(err)
		return Result{}, err
	}
	return s.Predict(ctx, features)
}

// Predict runs the model on one vector and applies the threshold policy.
func (s *Service) Predict(ctx context.Context, features []float64) (Result, error) {
	if len(features) != s.nFeatures {
		err := &ValidationError{Expected: s.nFeatures, Actual: len(features)}
		s.validationFailed(err)
		return Result{}, err
	}

	p, err := s.model.PredictProba(ctx, features)
	if err == nil && (math.IsNaN(p) || p < 0 || p > 1) {
		err = fmt.Errorf("%w: %v is not a probability", ml.ErrInvalidOutput, p)
	}
	if err != nil {
		if s.recorder != nil {
			s.recorder.PredictionFailuresInc()
		}
		log.Error().Err(err).Str("model_uri", s.modelURI).Str("request_id", RequestIDFrom(ctx)).Msg("model prediction failed")
		return Result{}, fmt.Errorf("%w: %v", ErrPrediction, err)
	}

	decision := Decide(p, s.threshold)
	if s.recorder != nil {
		s.recorder.PredictionObserve(string(decision), p)
	}

	s.publish(ctx, DecisionRecord{
		RequestID:   RequestIDFrom(ctx),
		Timestamp:   time.Now().UTC(),
		Probability: p,
		Decision:    decision,
		Threshold:   s.threshold,
		ModelURI:    s.modelURI,
	})

	return Result{
		Probability: p,
		Decision:    decision,
		Threshold:   s.threshold,
		ModelURI:    s.modelURI,
	}, nil
}

// publish hands the decision to every sink. Sink failures never fail the request.
func (s *Service) publish(ctx context.Context, rec DecisionRecord) {
	for _, sink := range s.sinks {
		if err := sink.RecordDecision(ctx, rec); err != nil {
			if s.recorder != nil {
				s.recorder.DecisionLogErrorsInc()
			}
			log.Warn().Err(err).Str("request_id", rec.RequestID).Msg("decision sink failed")
		}
	}
}

func (s *Service) validationFailed(err error) {
	if s.recorder != nil {
		s.recorder.ValidationErrorsInc()
	}
	log.Debug().Err(err).Msg("prediction request rejected")
}
