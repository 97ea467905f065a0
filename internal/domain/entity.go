// Package domain defines the canonical types shared by every pipeline stage.
package domain

import (
	"fmt"
	"regexp"
)

// EntityType identifies the kind of upstream entity a document describes.
type EntityType string

// Known entity types. The string value doubles as the detail path segment
// and as the type qualifier inside canonical keys, so it must never contain
// an underscore.
const (
	EntityMovie  EntityType = "movie"
	EntityTV     EntityType = "tv"
	EntityPerson EntityType = "person"
)

var entityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// KnownEntityTypes lists the entity types the bundled mappers understand.
func KnownEntityTypes() []EntityType {
	return []EntityType{EntityMovie, EntityTV, EntityPerson}
}

// Valid reports whether t is syntactically usable as a key qualifier.
func (t EntityType) Valid() bool {
	return entityTypePattern.MatchString(string(t))
}

// Known reports whether t is one of the bundled entity types.
func (t EntityType) Known() bool {
	for _, k := range KnownEntityTypes() {
		if k == t {
			return true
		}
	}
	return false
}

// ParseEntityType validates raw as an entity type.
func ParseEntityType(raw string) (EntityType, error) {
	t := EntityType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("invalid entity type %q", raw)
	}
	return t, nil
}

func (t EntityType) String() string { return string(t) }

// Candidate is a (source id, entity type) pair queued for detail fetch.
type Candidate struct {
	SourceID   string     `json:"source_id"`
	EntityType EntityType `json:"entity_type"`
}

func (c Candidate) String() string {
	return string(c.EntityType) + "/" + c.SourceID
}
