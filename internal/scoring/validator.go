package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"credit-scoring/internal/common"
)

// PredictRequest is the /predict body: {"data": {"features": [...]}}.
type PredictRequest struct {
	Data *PredictData `json:"data"`
}

// PredictData holds the ordered feature vector. Elements are pointers so a
// JSON null is rejected instead of silently becoming 0.
type PredictData struct {
	Features []*float64 `json:"features"`
}

// ValidationError is a client error. Expected and Actual are set for a
// feature count mismatch.
type ValidationError struct {
	Expected int
	Actual   int
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("Model expects %d features, got %d", e.Expected, e.Actual)
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DecodeRequest parses a request body. Malformed JSON is a validation error.
func DecodeRequest(r io.Reader) (PredictRequest, error) {
	var req PredictRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return PredictRequest{}, &ValidationError{Reason: describeDecodeError(err)}
	}
	if dec.More() {
		return PredictRequest{}, &ValidationError{Reason: "request body must contain a single JSON object"}
	}
	return req, nil
}

// Validate enforces the feature contract and returns the vector to score.
func Validate(req PredictRequest, expected int) ([]float64, error) {
	if req.Data == nil || req.Data.Features == nil {
		return nil, &ValidationError{Reason: common.ErrMsgFeaturesMissing}
	}
	if len(req.Data.Features) == 0 {
		return nil, &ValidationError{Reason: common.ErrMsgFeaturesEmpty}
	}

	features := make([]float64, len(req.Data.Features))
	for i, v := range req.Data.Features {
		if v == nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("data.features[%d] must be a number", i)}
		}
		features[i] = *v
	}

	if len(features) != expected {
		return nil, &ValidationError{Expected: expected, Actual: len(features)}
	}
	return features, nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("%s must be %s", typeErr.Field, expectedKind(typeErr.Field))
		}
		return "request body must be a JSON object"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &maxErr):
		return fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)
	default:
		return "malformed JSON body"
	}
}

func expectedKind(field string) string {
	switch field {
	case "data":
		return "an object"
	case "data.features":
		return "an array of numbers"
	default:
		return "a number"
	}
}
