package cfg

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"credit-scoring/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createValidSettings() *Settings {
	return &Settings{
		ModelURI:         "models:/credit-default-model@production",
		Port:             8000,
		RegistryTimeout:  3 * time.Second,
		ModelLoadTimeout: 30 * time.Second,
		PredictTimeout:   5 * time.Second,
		WriteTimeout:     10 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		LogFormat:        "json",
		FeedBufferSize:   64,
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	assert.NoError(t, validateSettings(createValidSettings()))
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"empty model URI", func(s *Settings) { s.ModelURI = "" }},
		{"zero port", func(s *Settings) { s.Port = 0 }},
		{"zero registry timeout", func(s *Settings) { s.RegistryTimeout = 0 }},
		{"negative load timeout", func(s *Settings) { s.ModelLoadTimeout = -time.Second }},
		{"zero predict timeout", func(s *Settings) { s.PredictTimeout = 0 }},
		{"predict timeout equals write timeout", func(s *Settings) { s.PredictTimeout = s.WriteTimeout }},
		{"predict timeout beyond write timeout", func(s *Settings) { s.PredictTimeout = 30 * time.Second }},
		{"zero write timeout", func(s *Settings) { s.WriteTimeout = 0 }},
		{"zero shutdown timeout", func(s *Settings) { s.ShutdownTimeout = 0 }},
		{"zero feed buffer", func(s *Settings) { s.FeedBufferSize = 0 }},
		{"unknown log format", func(s *Settings) { s.LogFormat = "text" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createValidSettings()
			tt.mutate(s)
			assert.Error(t, validateSettings(s))
		})
	}
}

func TestResolveModelReference_EnvDominatesFile(t *testing.T) {
	path := writeConfig(t, "mlflow:\n  model_uri: models:/from-file/3\n")
	t.Setenv("MODEL_URI", "models:/from-env@champion")

	ref := ResolveModelReference(
		EnvReference("MODEL_URI"),
		FileReference(path),
		DefaultReference("models:/fallback@production"),
	)
	assert.Equal(t, "models:/from-env@champion", ref)
}

func TestResolveModelReference_Tiers(t *testing.T) {
	valid := writeConfig(t, "mlflow:\n  model_uri: models:/from-file/3\n")
	missingKey := writeConfig(t, "mlflow:\n  experiment_name: credit\n")
	malformed := writeConfig(t, "mlflow: [unterminated")
	missingFile := filepath.Join(t.TempDir(), "nope.yaml")

	tests := []struct {
		name string
		env  string
		path string
		want string
	}{
		{"file used when env unset", "", valid, "models:/from-file/3"},
		{"missing key falls through", "", missingKey, "models:/fallback@production"},
		{"malformed document falls through", "", malformed, "models:/fallback@production"},
		{"missing file falls through", "", missingFile, "models:/fallback@production"},
		{"whitespace env is ignored", "   ", valid, "models:/from-file/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MODEL_URI", tt.env)
			ref := ResolveModelReference(
				EnvReference("MODEL_URI"),
				FileReference(tt.path),
				DefaultReference("models:/fallback@production"),
			)
			assert.Equal(t, tt.want, ref)
		})
	}
}

func TestResolveModelReference_NoTierSucceeds(t *testing.T) {
	t.Setenv("MODEL_URI", "")
	ref := ResolveModelReference(EnvReference("MODEL_URI"), FileReference(filepath.Join(t.TempDir(), "x.yaml")))
	assert.Equal(t, common.DefaultModelURI, ref)

	assert.Equal(t, common.DefaultModelURI, ResolveModelReference())
	assert.Equal(t, common.DefaultModelURI, ResolveModelReference(DefaultReference("   ")))
}

func TestFileReference_ErrorTypes(t *testing.T) {
	_, err := FileReference(filepath.Join(t.TempDir(), "absent.yaml")).Lookup()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "absent.yaml")

	_, err = FileReference(writeConfig(t, "server:\n  port: 1\n")).Lookup()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSet))
}

func TestEnvReference_Unset(t *testing.T) {
	t.Setenv("MODEL_URI", "")
	_, err := EnvReference("MODEL_URI").Lookup()
	assert.ErrorIs(t, err, ErrNotSet)
}
