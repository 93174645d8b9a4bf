package cfg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"credit-scoring/internal/common"

	"github.com/rs/zerolog/log"
)

// ErrNotSet is returned by a strategy that has no value to offer.
var ErrNotSet = errors.New("cfg: value not set")

// ConfigError reports a configuration document that could not be used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ReferenceStrategy is one tier of model reference resolution.
type ReferenceStrategy struct {
	Name   string
	Lookup func() (string, error)
}

// ResolveModelReference runs the strategies in order and returns the first
// non-empty reference. Failing tiers are logged at debug level and skipped.
// The built-in default is always tried last, so the result is never empty.
func ResolveModelReference(strategies ...ReferenceStrategy) string {
	chain := make([]ReferenceStrategy, 0, len(strategies)+1)
	chain = append(chain, strategies...)
	chain = append(chain, DefaultReference(common.DefaultModelURI))
	for _, s := range chain {
		ref, err := s.Lookup()
		if err != nil {
			log.Debug().Err(err).Str("source", s.Name).Msg("model reference source skipped")
			continue
		}
		ref = strings.TrimSpace(ref)
		if ref == "" {
			log.Debug().Str("source", s.Name).Msg("model reference source returned empty value")
			continue
		}
		log.Debug().Str("source", s.Name).Str("model_uri", ref).Msg("model reference resolved")
		return ref
	}
	return common.DefaultModelURI
}

// EnvReference reads the reference from an environment variable.
func EnvReference(key string) ReferenceStrategy {
	return ReferenceStrategy{
		Name: "env:" + key,
		Lookup: func() (string, error) {
			v, ok := os.LookupEnv(key)
			if !ok || v == "" {
				return "", fmt.Errorf("%s: %w", key, ErrNotSet)
			}
			return v, nil
		},
	}
}

// FileReference reads mlflow.model_uri from the YAML document at path.
func FileReference(path string) ReferenceStrategy {
	return ReferenceStrategy{
		Name: "file:" + path,
		Lookup: func() (string, error) {
			doc, err := readConfigFile(path)
			if err != nil {
				return "", err
			}
			return modelURIFromDocument(path, doc)
		},
	}
}

// DefaultReference always succeeds with ref.
func DefaultReference(ref string) ReferenceStrategy {
	return ReferenceStrategy{
		Name:   "default",
		Lookup: func() (string, error) { return ref, nil },
	}
}

// documentReference is FileReference over a document Load has already read.
func documentReference(path string, doc *ConfigFile, readErr error) ReferenceStrategy {
	return ReferenceStrategy{
		Name: "file:" + path,
		Lookup: func() (string, error) {
			if readErr != nil {
				return "", readErr
			}
			return modelURIFromDocument(path, doc)
		},
	}
}

func modelURIFromDocument(path string, doc *ConfigFile) (string, error) {
	if doc == nil || doc.MLflow.ModelURI == "" {
		return "", &ConfigError{Path: path, Err: fmt.Errorf("mlflow.model_uri: %w", ErrNotSet)}
	}
	return doc.MLflow.ModelURI, nil
}
