package registry

import (
	"fmt"
	"strings"

	"credit-scoring/internal/common"
)

// ReferenceKind tells how a registry reference names its model version.
type ReferenceKind int

const (
	KindVersion ReferenceKind = iota + 1 // models:/name/<number>
	KindStage                            // models:/name/<stage>
	KindAlias                            // models:/name@<alias>
)

func (k ReferenceKind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindStage:
		return "stage"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// Reference is a parsed models:/ URI.
type Reference struct {
	Raw  string
	Name string
	Kind ReferenceKind
	// Selector holds the version number, stage label or alias, depending on Kind.
	Selector string
}

// IsRegistryReference reports whether raw uses the registry scheme.
func IsRegistryReference(raw string) bool {
	return strings.HasPrefix(raw, common.RegistryScheme)
}

// ParseReference parses the three registry dialects. Anything after the
// second path segment is ignored.
func ParseReference(raw string) (Reference, error) {
	if !IsRegistryReference(raw) {
		return Reference{}, fmt.Errorf("%w: %q is not a %s URI", ErrInvalidReference, raw, common.RegistryScheme)
	}
	body := strings.TrimPrefix(raw, common.RegistryScheme)

	if left, alias, ok := strings.Cut(body, common.AliasSeparator); ok {
		name := strings.Trim(left, "/")
		if name == "" || alias == "" {
			return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
		}
		return Reference{Raw: raw, Name: name, Kind: KindAlias, Selector: alias}, nil
	}

	parts := strings.Split(strings.Trim(body, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Reference{}, fmt.Errorf("%w: %q has no version or stage", ErrInvalidReference, raw)
	}

	name, selector := parts[0], parts[1]
	if isDigits(selector) {
		return Reference{Raw: raw, Name: name, Kind: KindVersion, Selector: selector}, nil
	}
	return Reference{Raw: raw, Name: name, Kind: KindStage, Selector: selector}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
