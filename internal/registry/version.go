package registry

import (
	"context"
	"errors"
	"time"

	"credit-scoring/internal/common"

	"github.com/rs/zerolog/log"
)

// Lookup results reported to the metrics recorder.
const (
	LookupLocal   = "local"   // numeric reference, no registry call
	LookupHit     = "hit"     // registry returned a version
	LookupMiss    = "miss"    // registry has no such alias/stage
	LookupError   = "error"   // transport or registry failure
	LookupSkipped = "skipped" // not a registry reference
)

// VersionLookup is the part of the registry the resolver queries.
type VersionLookup interface {
	GetModelVersionByAlias(ctx context.Context, name, alias string) (*ModelVersion, error)
	GetLatestVersions(ctx context.Context, name string, stages []string) ([]ModelVersion, error)
}

// LookupRecorder receives one result per resolution.
type LookupRecorder interface {
	RegistryLookupObserve(result string)
}

// VersionResolver names the model version behind a reference for display.
// It never fails: every error collapses to common.UnknownVersion. Results are
// not cached, so an alias moved in the registry shows up on the next call.
type VersionResolver struct {
	lookup   VersionLookup
	timeout  time.Duration
	recorder LookupRecorder
}

func NewVersionResolver(lookup VersionLookup, timeout time.Duration, recorder LookupRecorder) *VersionResolver {
	return &VersionResolver{lookup: lookup, timeout: timeout, recorder: recorder}
}

// ResolveVersion returns the numeric version for ref or "unknown".
func (r *VersionResolver) ResolveVersion(ctx context.Context, raw string) (version string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("model_uri", raw).Msg("version resolution panicked")
			r.observe(LookupError)
			version = common.UnknownVersion
		}
	}()

	if !IsRegistryReference(raw) {
		r.observe(LookupSkipped)
		return common.UnknownVersion
	}

	ref, err := ParseReference(raw)
	if err != nil {
		log.Debug().Err(err).Str("model_uri", raw).Msg("unparseable registry reference")
		r.observe(LookupError)
		return common.UnknownVersion
	}

	if ref.Kind == KindVersion {
		r.observe(LookupLocal)
		return ref.Selector
	}

	if r.lookup == nil {
		r.observe(LookupSkipped)
		return common.UnknownVersion
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var mv *ModelVersion
	switch ref.Kind {
	case KindAlias:
		mv, err = r.lookup.GetModelVersionByAlias(ctx, ref.Name, ref.Selector)
	case KindStage:
		var versions []ModelVersion
		versions, err = r.lookup.GetLatestVersions(ctx, ref.Name, []string{ref.Selector})
		if err == nil && len(versions) > 0 {
			mv = &versions[0]
		}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		log.Debug().Err(err).Str("model_uri", raw).Msg("registry has no matching version")
		r.observe(LookupMiss)
		return common.UnknownVersion
	case err != nil:
		log.Debug().Err(err).Str("model_uri", raw).Msg("registry version lookup failed")
		r.observe(LookupError)
		return common.UnknownVersion
	case mv == nil || mv.Version == "":
		r.observe(LookupMiss)
		return common.UnknownVersion
	}

	r.observe(LookupHit)
	return mv.Version
}

func (r *VersionResolver) observe(result string) {
	if r.recorder != nil {
		r.recorder.RegistryLookupObserve(result)
	}
}
