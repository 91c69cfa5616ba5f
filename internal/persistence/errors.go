package persistence

import "errors"

// ErrNotFound is returned when a requested record does not exist. Callers in
// the service layer translate it to their own sentinel.
var ErrNotFound = errors.New("persistence: not found")
