package repository

import "errors"

// ErrNotFound is returned when no receipt exists for the given key. Callers
// test for it with errors.Is.
var ErrNotFound = errors.New("receipt not found")
