package ml

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"credit-scoring/internal/common"

	"github.com/rs/zerolog/log"
)

// ModelLoadError is returned when the model behind a reference cannot be
// loaded. The service must not start serving after it.
type ModelLoadError struct {
	Reference string
	Err       error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model from %s: %v", e.Reference, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// ArtifactSource resolves registry references and downloads remote artifacts.
type ArtifactSource interface {
	LocateArtifact(ctx context.Context, ref string) (string, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// Loader turns a model reference into a Predictor.
type Loader struct {
	source        ArtifactSource
	nFeatures     int
	remoteTimeout time.Duration
}

// NewLoader creates a loader. source may be nil when only local and remote
// scoring-server references are used.
func NewLoader(source ArtifactSource, nFeatures int, remoteTimeout time.Duration) *Loader {
	return &Loader{source: source, nFeatures: nFeatures, remoteTimeout: remoteTimeout}
}

// Load resolves ref and returns the bound model. It does not retry.
func (l *Loader) Load(ctx context.Context, ref string) (Predictor, error) {
	start := time.Now()

	p, kind, err := l.load(ctx, ref)
	if err != nil {
		return nil, &ModelLoadError{Reference: ref, Err: err}
	}

	log.Info().
		Str("model_uri", ref).
		Str("kind", kind).
		Dur("took", time.Since(start)).
		Msg("model loaded")
	return p, nil
}

func (l *Loader) load(ctx context.Context, ref string) (Predictor, string, error) {
	switch {
	case ref == "":
		return nil, "", fmt.Errorf("%w: empty reference", ErrInvalidArtifact)

	case strings.HasPrefix(ref, common.RegistryScheme):
		if l.source == nil {
			return nil, "", fmt.Errorf("no registry configured for %s", ref)
		}
		loc, err := l.source.LocateArtifact(ctx, ref)
		if err != nil {
			return nil, "", err
		}
		p, err := l.loadArtifact(ctx, loc)
		return p, "registry", err

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		rp := NewRemotePredictor(ref, l.remoteTimeout)
		if err := rp.Ping(ctx); err != nil {
			return nil, "", err
		}
		return rp, "remote", nil

	case strings.HasPrefix(ref, "file:"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		p, err := l.loadArtifact(ctx, u.Path)
		return p, "file", err

	case strings.Contains(ref, ":/"):
		return nil, "", fmt.Errorf("%w: unsupported reference scheme in %q", ErrInvalidArtifact, ref)

	default:
		p, err := l.loadArtifact(ctx, ref)
		return p, "file", err
	}
}

// loadArtifact reads model.json from a local path or an http(s) location.
func (l *Loader) loadArtifact(ctx context.Context, loc string) (Predictor, error) {
	var (
		data []byte
		err  error
	)

	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		if l.source == nil {
			return nil, fmt.Errorf("no artifact downloader for %s", loc)
		}
		target := loc
		if !strings.HasSuffix(target, ".json") {
			target = strings.TrimRight(target, "/") + "/" + common.ArtifactFile
		}
		data, err = l.source.Download(ctx, target)
	} else {
		data, err = readLocalArtifact(loc)
	}
	if err != nil {
		return nil, err
	}

	m, err := DecodeLogisticPipeline(data)
	if err != nil {
		return nil, err
	}
	if l.nFeatures > 0 && m.NFeatures != l.nFeatures {
		return nil, fmt.Errorf("%w: artifact has %d features, service contract is %d", ErrFeatureCount, m.NFeatures, l.nFeatures)
	}
	return m, nil
}

func readLocalArtifact(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, common.ArtifactFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}
