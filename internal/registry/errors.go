package registry

import "errors"

// Sentinel errors for registry operations.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrInvalidReference indicates a model reference the registry cannot interpret.
	ErrInvalidReference = errors.New("registry: invalid model reference")

	// ErrNotFound indicates the registry has no model version for the request.
	ErrNotFound = errors.New("registry: model version not found")

	// ErrRegistry indicates the registry answered with an error or unparseable data.
	ErrRegistry = errors.New("registry: request failed")

	// ErrUnsupportedArtifact indicates an artifact location the service cannot fetch.
	ErrUnsupportedArtifact = errors.New("registry: unsupported artifact location")
)

// APIError is the error body returned by the MLflow REST API.
type APIError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}
