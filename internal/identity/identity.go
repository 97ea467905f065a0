// Package identity maps (entity type, source id) pairs to canonical document keys.
//
// Keys have the form "<namespace>_<entity_type>_<source_id>". Entity types
// never contain an underscore, so a key splits back into exactly one pair and
// the mapping is injective: a movie and a TV series sharing upstream id 550
// land on "tmdb_movie_550" and "tmdb_tv_550".
//
// Keys derived from alternative ids use the reserved id prefix "alt_":
// "<namespace>_<entity_type>_alt_<hash>". MakeKey refuses source ids with that
// prefix, so hashed keys never meet upstream ones.
//
// The previous scheme, "<namespace>_<source_id>", had no type qualifier and
// let one entity type overwrite another. IsLegacyKey recognises its keys.
package identity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// DefaultNamespace is used when a Scheme has no namespace configured.
const DefaultNamespace = "tmdb"

// AltMarker prefixes the id part of keys derived from alternative ids.
const AltMarker = "alt_"

// Scheme builds canonical keys for one namespace.
type Scheme struct {
	namespace string
}

// New creates a Scheme. An empty namespace falls back to DefaultNamespace.
func New(namespace string) (Scheme, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if strings.Contains(namespace, "_") {
		return Scheme{}, fmt.Errorf("namespace %q must not contain '_'", namespace)
	}
	return Scheme{namespace: namespace}, nil
}

// Namespace returns the key namespace.
func (s Scheme) Namespace() string {
	if s.namespace == "" {
		return DefaultNamespace
	}
	return s.namespace
}

// MakeKey returns the canonical key for a source id of the given type.
func (s Scheme) MakeKey(entityType domain.EntityType, sourceID string) (string, error) {
	if !entityType.Valid() {
		return "", fmt.Errorf("invalid entity type %q", entityType)
	}
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return "", fmt.Errorf("empty source id for %s", entityType)
	}
	if strings.HasPrefix(sourceID, AltMarker) {
		return "", fmt.Errorf("source id %q uses the reserved prefix %q", sourceID, AltMarker)
	}
	return s.join(entityType, sourceID), nil
}

func (s Scheme) join(entityType domain.EntityType, id string) string {
	return s.Namespace() + "_" + string(entityType) + "_" + id
}

// MakeKeyFromAltIDs derives a stable key when no primary id is available.
// altIDs maps id systems (imdb_id, tvdb_id, ...) to values; empty values are
// ignored and the result does not depend on map iteration order.
func (s Scheme) MakeKeyFromAltIDs(entityType domain.EntityType, altIDs map[string]string) (string, error) {
	if !entityType.Valid() {
		return "", fmt.Errorf("invalid entity type %q", entityType)
	}
	pairs := make([]string, 0, len(altIDs))
	for system, value := range altIDs {
		system = strings.ToLower(strings.TrimSpace(system))
		value = strings.TrimSpace(value)
		if system == "" || value == "" {
			continue
		}
		pairs = append(pairs, system+"="+value)
	}
	if len(pairs) == 0 {
		return "", fmt.Errorf("no alternative ids for %s", entityType)
	}
	sort.Strings(pairs)

	sum := xxhash.Sum64String(strings.Join(pairs, "\x1f"))
	return s.join(entityType, AltMarker+strconv.FormatUint(sum, 16)), nil
}

// ParseKey splits a canonical key back into its pair.
// It reports false for keys from another namespace, for legacy keys and for
// keys derived from alternative ids, which have no source id.
func (s Scheme) ParseKey(key string) (domain.Candidate, bool) {
	rest, ok := strings.CutPrefix(key, s.Namespace()+"_")
	if !ok {
		return domain.Candidate{}, false
	}
	et, id, ok := strings.Cut(rest, "_")
	if !ok || id == "" || strings.HasPrefix(id, AltMarker) {
		return domain.Candidate{}, false
	}
	entityType := domain.EntityType(et)
	if !entityType.Valid() {
		return domain.Candidate{}, false
	}
	return domain.Candidate{SourceID: id, EntityType: entityType}, true
}

// IsLegacyKey reports whether key has the untyped "<namespace>_<id>" shape.
func (s Scheme) IsLegacyKey(key string) bool {
	rest, ok := strings.CutPrefix(key, s.Namespace()+"_")
	return ok && rest != "" && !strings.Contains(rest, "_")
}
