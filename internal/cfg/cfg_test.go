package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"credit-scoring/internal/common"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		common.EnvModelURI, common.EnvGitCommit, common.EnvConfigFile, common.EnvPort,
		common.EnvTrackingURI, common.EnvTrackingToken, common.EnvTrackingUsername,
		common.EnvTrackingPassword, common.EnvRegistryTimeout, common.EnvModelLoadTimeout,
		common.EnvDataPath, common.EnvLogLevel, common.EnvLogFormat, common.EnvShutdownTimeout,
		common.EnvDecisionFeedBufferSize, common.EnvPredictTimeout, common.EnvWriteTimeout,
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(common.EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))

	settings, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if settings.ModelURI != common.DefaultModelURI {
		t.Errorf("expected default model URI, got %s", settings.ModelURI)
	}
	if settings.GitCommit != "unknown" {
		t.Errorf("expected git commit 'unknown', got %s", settings.GitCommit)
	}
	if settings.Port != 8000 {
		t.Errorf("expected port 8000, got %d", settings.Port)
	}
	if settings.TrackingURI != "http://localhost:5000" {
		t.Errorf("expected default tracking URI, got %s", settings.TrackingURI)
	}
	if settings.RegistryTimeout != 3*time.Second {
		t.Errorf("expected registry timeout 3s, got %v", settings.RegistryTimeout)
	}
	if settings.PredictTimeout != 5*time.Second {
		t.Errorf("expected predict timeout 5s, got %v", settings.PredictTimeout)
	}
	if settings.PredictTimeout >= settings.WriteTimeout {
		t.Errorf("expected predict timeout %v below write timeout %v", settings.PredictTimeout, settings.WriteTimeout)
	}
	if settings.DataPath != "" {
		t.Errorf("expected decision log disabled by default, got %s", settings.DataPath)
	}
}

func TestLoadFromYAMLAndEnv(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name: "config document supplies model and tracking URI",
			yaml: `
mlflow:
  model_uri: "models:/credit-default-model/Staging"
  tracking_uri: "http://mlflow:5000"
server:
  port: 9001
  registryTimeout: 2s
`,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelURI != "models:/credit-default-model/Staging" {
					t.Errorf("expected model URI from file, got %s", settings.ModelURI)
				}
				if settings.TrackingURI != "http://mlflow:5000" {
					t.Errorf("expected tracking URI from file, got %s", settings.TrackingURI)
				}
				if settings.Port != 9001 {
					t.Errorf("expected port 9001, got %d", settings.Port)
				}
				if settings.RegistryTimeout != 2*time.Second {
					t.Errorf("expected registry timeout 2s, got %v", settings.RegistryTimeout)
				}
			},
		},
		{
			name: "environment overrides document",
			yaml: `
mlflow:
  model_uri: "models:/credit-default-model/1"
  tracking_uri: "http://mlflow:5000"
`,
			envVars: map[string]string{
				common.EnvModelURI:    "models:/credit-default-model/7",
				common.EnvTrackingURI: "http://registry.internal:5000",
				common.EnvPort:        "8081",
				common.EnvGitCommit:   "abc1234",
				common.EnvDataPath:    "/var/lib/scoring",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelURI != "models:/credit-default-model/7" {
					t.Errorf("expected env model URI, got %s", settings.ModelURI)
				}
				if settings.TrackingURI != "http://registry.internal:5000" {
					t.Errorf("expected env tracking URI, got %s", settings.TrackingURI)
				}
				if settings.Port != 8081 {
					t.Errorf("expected port 8081, got %d", settings.Port)
				}
				if settings.GitCommit != "abc1234" {
					t.Errorf("expected git commit abc1234, got %s", settings.GitCommit)
				}
				if settings.DataPath != "/var/lib/scoring" {
					t.Errorf("expected data path, got %s", settings.DataPath)
				}
			},
		},
		{
			name: "malformed document falls back to default reference",
			yaml: "mlflow: [not: a: mapping",
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelURI != common.DefaultModelURI {
					t.Errorf("expected default model URI, got %s", settings.ModelURI)
				}
			},
		},
		{
			name:    "invalid port",
			yaml:    "server:\n  port: 70000\n",
			wantErr: true,
		},
		{
			name:    "invalid log format",
			envVars: map[string]string{common.EnvLogFormat: "xml"},
			wantErr: true,
		},
		{
			name: "predict timeout from environment",
			envVars: map[string]string{
				common.EnvPredictTimeout: "750ms",
				common.EnvWriteTimeout:   "2s",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.PredictTimeout != 750*time.Millisecond {
					t.Errorf("expected predict timeout 750ms, got %v", settings.PredictTimeout)
				}
				if settings.WriteTimeout != 2*time.Second {
					t.Errorf("expected write timeout 2s, got %v", settings.WriteTimeout)
				}
			},
		},
		{
			name:    "predict timeout outlives write timeout",
			envVars: map[string]string{common.EnvPredictTimeout: "30s"},
			wantErr: true,
		},
		{
			name:    "registry timeout too long",
			envVars: map[string]string{common.EnvRegistryTimeout: "5m"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(common.EnvConfigFile, writeConfig(t, tt.yaml))
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}
