package fetch

import (
	"fmt"

	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
)

// Error wraps a coded failure with request context.
type Error struct {
	Op       string // "fetch", "detail"
	Path     string
	Status   int // last observed HTTP status, 0 for transport failures
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s [%s] status %d after %d attempt(s): %v", e.Op, e.Path, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s [%s] after %d attempt(s): %v", e.Op, e.Path, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the error kind of the wrapped failure.
func (e *Error) Kind() domainerrors.Code {
	return domainerrors.KindOf(e.Err)
}

func wrapError(op, path string, status, attempts int, err error) error {
	return &Error{
		Op:       op,
		Path:     path,
		Status:   status,
		Attempts: attempts,
		Err:      err,
	}
}
