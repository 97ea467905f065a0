package recovery

import "github.com/reelfeed/reelfeed/internal/domain"

// SiblingPolicy names the entity types that may share a source id with a
// given type and were therefore exposed to collisions under the untyped key
// scheme. Types with no siblings are never recovery candidates.
type SiblingPolicy interface {
	Siblings(et domain.EntityType) []domain.EntityType
}

// PairPolicy is a static sibling table.
type PairPolicy map[domain.EntityType][]domain.EntityType

// Siblings implements SiblingPolicy.
func (p PairPolicy) Siblings(et domain.EntityType) []domain.EntityType {
	return p[et]
}

// DefaultPolicy pairs movies with tv series. People live in their own id
// space upstream and have no sibling.
func DefaultPolicy() PairPolicy {
	return PairPolicy{
		domain.EntityMovie: {domain.EntityTV},
		domain.EntityTV:    {domain.EntityMovie},
	}
}
