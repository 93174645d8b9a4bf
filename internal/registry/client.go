// Package registry talks to an MLflow model registry. It parses models:/
// references, resolves them to concrete model versions, locates their
// artifacts, and resolves a human-readable version for the metadata endpoint.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	pathAliasLookup    = "/api/2.0/mlflow/registered-models/alias"
	pathLatestVersions = "/api/2.0/mlflow/registered-models/get-latest-versions"
	pathModelVersion   = "/api/2.0/mlflow/model-versions/get"
	pathDownloadURI    = "/api/2.0/mlflow/model-versions/get-download-uri"
	pathArtifactProxy  = "/api/2.0/mlflow-artifacts/artifacts"

	errCodeNotFound = "RESOURCE_DOES_NOT_EXIST"
)

// ModelVersion is the subset of an MLflow model version the service uses.
type ModelVersion struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	CurrentStage string   `json:"current_stage,omitempty"`
	Source       string   `json:"source,omitempty"`
	RunID        string   `json:"run_id,omitempty"`
	Status       string   `json:"status,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
}

type modelVersionResp struct {
	ModelVersion *ModelVersion `json:"model_version"`
}

type latestVersionsReq struct {
	Name   string   `json:"name"`
	Stages []string `json:"stages"`
}

type latestVersionsResp struct {
	ModelVersions []ModelVersion `json:"model_versions"`
}

type downloadURIResp struct {
	ArtifactURI string `json:"artifact_uri"`
}

// ClientOptions configures access to the tracking server.
type ClientOptions struct {
	TrackingURI string
	Token       string
	Username    string
	Password    string
	Timeout     time.Duration
}

// Client is an MLflow registry REST client.
type Client struct {
	base string
	rest *resty.Client
}

func NewClient(opts ClientOptions) *Client {
	base := strings.TrimRight(opts.TrackingURI, "/")

	r := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{})
	if opts.Timeout > 0 {
		r.SetTimeout(opts.Timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	switch {
	case opts.Token != "":
		r.SetAuthToken(opts.Token)
	case opts.Username != "":
		r.SetBasicAuth(opts.Username, opts.Password)
	}

	return &Client{base: base, rest: r}
}

// BaseURL returns the tracking server URL without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// GetModelVersionByAlias returns the version an alias points to.
func (c *Client) GetModelVersionByAlias(ctx context.Context, name, alias string) (*ModelVersion, error) {
	out := &modelVersionResp{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"name": name, "alias": alias}).
		SetResult(out).
		SetError(&APIError{}).
		Get(pathAliasLookup)
	if err := checkResponse(resp, err, "alias "+name+"@"+alias); err != nil {
		return nil, err
	}
	if out.ModelVersion == nil {
		return nil, fmt.Errorf("%w: empty alias response for %s@%s", ErrRegistry, name, alias)
	}
	return out.ModelVersion, nil
}

// GetLatestVersions returns the newest version of name in each stage.
func (c *Client) GetLatestVersions(ctx context.Context, name string, stages []string) ([]ModelVersion, error) {
	out := &latestVersionsResp{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(latestVersionsReq{Name: name, Stages: stages}).
		SetResult(out).
		SetError(&APIError{}).
		Post(pathLatestVersions)
	if err := checkResponse(resp, err, "latest versions of "+name); err != nil {
		return nil, err
	}
	return out.ModelVersions, nil
}

// GetModelVersion fetches an explicit version.
func (c *Client) GetModelVersion(ctx context.Context, name, version string) (*ModelVersion, error) {
	out := &modelVersionResp{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"name": name, "version": version}).
		SetResult(out).
		SetError(&APIError{}).
		Get(pathModelVersion)
	if err := checkResponse(resp, err, "version "+name+"/"+version); err != nil {
		return nil, err
	}
	if out.ModelVersion == nil {
		return nil, fmt.Errorf("%w: empty version response for %s/%s", ErrRegistry, name, version)
	}
	return out.ModelVersion, nil
}

// GetDownloadURI returns where the artifacts of a version are stored.
func (c *Client) GetDownloadURI(ctx context.Context, name, version string) (string, error) {
	out := &downloadURIResp{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"name": name, "version": version}).
		SetResult(out).
		SetError(&APIError{}).
		Get(pathDownloadURI)
	if err := checkResponse(resp, err, "download URI of "+name+"/"+version); err != nil {
		return "", err
	}
	if out.ArtifactURI == "" {
		return "", fmt.Errorf("%w: empty artifact URI for %s/%s", ErrRegistry, name, version)
	}
	return out.ArtifactURI, nil
}

// ResolveModelVersion turns a parsed reference into a concrete model version.
func (c *Client) ResolveModelVersion(ctx context.Context, ref Reference) (*ModelVersion, error) {
	switch ref.Kind {
	case KindAlias:
		return c.GetModelVersionByAlias(ctx, ref.Name, ref.Selector)
	case KindVersion:
		return c.GetModelVersion(ctx, ref.Name, ref.Selector)
	case KindStage:
		versions, err := c.GetLatestVersions(ctx, ref.Name, []string{ref.Selector})
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, fmt.Errorf("%w: no %s version in stage %s", ErrNotFound, ref.Name, ref.Selector)
		}
		return &versions[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, ref.Raw)
	}
}

// LocateArtifact resolves a models:/ reference to the fetchable location of
// its artifact directory: a local path or an http(s) URL.
func (c *Client) LocateArtifact(ctx context.Context, raw string) (string, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return "", err
	}

	mv, err := c.ResolveModelVersion(ctx, ref)
	if err != nil {
		return "", err
	}

	uri, err := c.GetDownloadURI(ctx, mv.Name, mv.Version)
	if err != nil {
		return "", err
	}

	loc, err := c.artifactLocation(uri)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("model_uri", raw).
		Str("name", mv.Name).
		Str("version", mv.Version).
		Str("artifact_uri", uri).
		Msg("model reference resolved in registry")

	return loc, nil
}

// Download fetches an http(s) artifact with the client's credentials.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", ErrRegistry, rawURL, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, rawURL)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: download %s: status %d", ErrRegistry, rawURL, resp.StatusCode())
	}
	return resp.Body(), nil
}

// artifactLocation maps a registry artifact URI onto something Download or
// the filesystem can read.
func (c *Client) artifactLocation(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnsupportedArtifact, uri, err)
	}

	switch u.Scheme {
	case "", "file":
		return u.Path, nil
	case "http", "https":
		return uri, nil
	case "mlflow-artifacts":
		// served by the tracking server's artifact proxy
		return c.base + pathArtifactProxy + "/" + strings.TrimLeft(u.Path, "/"), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedArtifact, uri)
	}
}

func checkResponse(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRegistry, what, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr, _ := resp.Error().(*APIError)
	if resp.StatusCode() == http.StatusNotFound || (apiErr != nil && apiErr.ErrorCode == errCodeNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	if apiErr != nil && apiErr.Message != "" {
		return fmt.Errorf("%w: %s: %d %s", ErrRegistry, what, resp.StatusCode(), apiErr.Message)
	}
	return fmt.Errorf("%w: %s: status %d", ErrRegistry, what, resp.StatusCode())
}

// restyLogger routes resty's internal messages through zerolog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	log.Error().Str("component", "registry").Msgf(format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	log.Warn().Str("component", "registry").Msgf(format, v...)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	log.Debug().Str("component", "registry").Msgf(format, v...)
}
