// Package providers contains dependency injection providers.
package providers

import (
	"fmt"
	"sync"
)

// Shutdowner is implemented by handles that hold resources.
type Shutdowner interface {
	Shutdown() error
}

// Lifecycle records built handles so they can be released in reverse order.
type Lifecycle struct {
	mu      sync.Mutex
	handles []Shutdowner
}

// Track registers h for shutdown.
func (l *Lifecycle) Track(h Shutdowner) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handles = append(l.handles, h)
}

// Shutdown releases every tracked handle once, newest first, and returns
// the failures.
func (l *Lifecycle) Shutdown() []error {
	l.mu.Lock()
	handles := l.handles
	l.handles = nil
	l.mu.Unlock()

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", handles[i], err))
		}
	}
	return errs
}
