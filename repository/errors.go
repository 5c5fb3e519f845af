package repository

import "errors"

// ErrConflict is returned when a new admin collides with an existing
// username or email under the active ConflictPolicy. Nothing is written.
var ErrConflict = errors.New("email or user name already exist")
