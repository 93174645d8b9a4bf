package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemotePredictor scores against an MLflow scoring server (`mlflow models
// serve`). The server may answer with class-1 probabilities, full
// predict_proba rows, or labels; all three are read as P(default).
type RemotePredictor struct {
	url     string
	rest    *resty.Client
	timeout time.Duration
}

type invocationReq struct {
	Inputs [][]float64 `json:"inputs"`
}

type invocationResp struct {
	Predictions json.RawMessage `json:"predictions"`
}

// NewRemotePredictor targets url, which is either the scoring server root or
// its /invocations endpoint.
func NewRemotePredictor(url string, timeout time.Duration) *RemotePredictor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := strings.TrimRight(url, "/")
	if !strings.HasSuffix(base, "/invocations") {
		base += "/invocations"
	}
	return &RemotePredictor{
		url:     base,
		rest:    resty.New().SetTimeout(timeout),
		timeout: timeout,
	}
}

// URL returns the invocation endpoint.
func (p *RemotePredictor) URL() string { return p.url }

// Ping checks the scoring server's health endpoint.
func (p *RemotePredictor) Ping(ctx context.Context) error {
	pingURL := strings.TrimSuffix(p.url, "/invocations") + "/ping"
	resp, err := p.rest.R().SetContext(ctx).Get(pingURL)
	if err != nil {
		return fmt.Errorf("ping %s: %w", pingURL, err)
	}
	if resp.IsError() {
		return fmt.Errorf("ping %s: status %d", pingURL, resp.StatusCode())
	}
	return nil
}

func (p *RemotePredictor) PredictProba(ctx context.Context, features []float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out := &invocationResp{}
	resp, err := p.rest.R().
		SetContext(ctx).
		SetBody(invocationReq{Inputs: [][]float64{features}}).
		SetResult(out).
		Post(p.url)
	if err != nil {
		return 0, fmt.Errorf("invoke %s: %w", p.url, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("invoke %s: status %d", p.url, resp.StatusCode())
	}

	return parsePredictions(out.Predictions)
}

// parsePredictions accepts [p], [[p0, p1]] or [[p]] and returns P(class 1).
func parsePredictions(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: no predictions", ErrInvalidOutput)
	}

	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return 0, fmt.Errorf("%w: empty predictions", ErrInvalidOutput)
		}
		return checkProbability(flat[0])
	}

	var rows [][]float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, fmt.Errorf("%w: empty predictions", ErrInvalidOutput)
	}
	row := rows[0]
	if len(row) >= 2 {
		return checkProbability(row[1])
	}
	return checkProbability(row[0])
}

func checkProbability(p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: %v is not a probability", ErrInvalidOutput, p)
	}
	return p, nil
}
