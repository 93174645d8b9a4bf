package ml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	locations map[string]string
	files     map[string][]byte
	downloads []string
}

func (s *stubSource) LocateArtifact(_ context.Context, ref string) (string, error) {
	loc, ok := s.locations[ref]
	if !ok {
		return "", errors.New("registry: model version not found")
	}
	return loc, nil
}

func (s *stubSource) Download(_ context.Context, rawURL string) ([]byte, error) {
	s.downloads = append(s.downloads, rawURL)
	data, ok := s.files[rawURL]
	if !ok {
		return nil, errors.New("registry: artifact not found")
	}
	return data, nil
}

func writeArtifact(t *testing.T, dir string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoader_LocalArtifacts(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, artifactJSON(t, 11, 0.3))
	loader := NewLoader(nil, 11, time.Second)

	for _, ref := range []string{path, dir, "file://" + path, "file://" + dir} {
		t.Run(ref, func(t *testing.T) {
			p, err := loader.Load(context.Background(), ref)
			require.NoError(t, err)

			prob, err := p.PredictProba(context.Background(), make([]float64, 11))
			require.NoError(t, err)
			assert.InDelta(t, 0.3, prob, 1e-12)
		})
	}
}

func TestLoader_Failures(t *testing.T) {
	dir := t.TempDir()
	wrongShape := writeArtifact(t, t.TempDir(), artifactJSON(t, 3, 0.3))
	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o600))

	tests := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{"empty reference", "", ErrInvalidArtifact},
		{"missing file", filepath.Join(dir, "missing.json"), os.ErrNotExist},
		{"garbage artifact", garbage, ErrInvalidArtifact},
		{"feature contract mismatch", wrongShape, ErrFeatureCount},
		{"unsupported scheme", "s3://bucket/model", ErrInvalidArtifact},
		{"registry without client", "models:/credit-default-model@production", nil},
	}

	loader := NewLoader(nil, 11, time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := loader.Load(context.Background(), tt.ref)
			require.Error(t, err)
			assert.Nil(t, p)

			var loadErr *ModelLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.ref, loadErr.Reference)
			assert.Contains(t, err.Error(), "failed to load model from "+tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoader_RegistryReference(t *testing.T) {
	localDir := t.TempDir()
	writeArtifact(t, localDir, artifactJSON(t, 11, 0.05))

	source := &stubSource{
		locations: map[string]string{
			"models:/credit-default-model@production": localDir,
			"models:/credit-default-model/Staging":    "http://mlflow:5000/api/2.0/mlflow-artifacts/artifacts/1/abc/artifacts/model",
		},
		files: map[string][]byte{
			"http://mlflow:5000/api/2.0/mlflow-artifacts/artifacts/1/abc/artifacts/model/model.json": artifactJSON(t, 11, 0.6),
		},
	}
	loader := NewLoader(source, 11, time.Second)

	p, err := loader.Load(context.Background(), "models:/credit-default-model@production")
	require.NoError(t, err)
	prob, err := p.PredictProba(context.Background(), make([]float64, 11))
	require.NoError(t, err)
	assert.InDelta(t, 0.05, prob, 1e-12)

	p, err = loader.Load(context.Background(), "models:/credit-default-model/Staging")
	require.NoError(t, err)
	prob, err = p.PredictProba(context.Background(), make([]float64, 11))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, prob, 1e-12)
	assert.Equal(t, []string{"http://mlflow:5000/api/2.0/mlflow-artifacts/artifacts/1/abc/artifacts/model/model.json"}, source.downloads)

	_, err = loader.Load(context.Background(), "models:/credit-default-model@missing")
	var loadErr *ModelLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLoader_RemoteScoringServer(t *testing.T) {
	srv := scoringServer(t, `[[0.9, 0.1]]`)
	loader := NewLoader(nil, 11, time.Second)

	p, err := loader.Load(context.Background(), srv.URL)
	require.NoError(t, err)

	prob, err := p.PredictProba(context.Background(), make([]float64, 11))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, prob, 1e-12)

	srv.Close()
	_, err = loader.Load(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestPredictorFunc(t *testing.T) {
	var p Predictor = PredictorFunc(func(_ context.Context, f []float64) (float64, error) {
		return float64(len(f)) / 100, nil
	})
	prob, err := p.PredictProba(context.Background(), make([]float64, 11))
	require.NoError(t, err)
	assert.InDelta(t, 0.11, prob, 1e-12)
}
