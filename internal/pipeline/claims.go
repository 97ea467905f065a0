package pipeline

import (
	"sync"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// Claims is the run-scoped set of candidates already taken by a job.
// Two jobs covering the same entity type fetch each candidate once.
type Claims struct {
	mu sync.RWMutex
	m  map[domain.Candidate]string
}

// NewClaims creates an empty claim set.
func NewClaims() *Claims {
	return &Claims{m: make(map[domain.Candidate]string)}
}

// Claim records job as the owner of c. It returns false and the existing
// owner when another job already holds c.
func (cl *Claims) Claim(c domain.Candidate, job string) (owner string, ok bool) {
	cl.mu.RLock()
	owner, held := cl.m[c]
	cl.mu.RUnlock()
	if held {
		return owner, owner == job
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Re-check: another goroutine may have claimed c between the locks.
	if owner, held = cl.m[c]; held {
		return owner, owner == job
	}
	cl.m[c] = job
	return job, true
}

// Len returns the number of claimed candidates.
func (cl *Claims) Len() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.m)
}
