package config

import "errors"

// ErrNotFound is returned when a requested profile, run or secret does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName is returned when a profile name is already taken.
var ErrDuplicateName = errors.New("name already in use")
