package store

import domainerrors "github.com/reelfeed/reelfeed/internal/errors"

// ErrNotFound carries a domain code so callers can match with
// errors.Is against either this value or domainerrors.ErrNotFound.
var ErrNotFound = domainerrors.NotFoundf("record not found")
