package dataaccess

import "errors"

// ErrWarnNotFound is returned when a referenced warning does not exist.
var ErrWarnNotFound = errors.New("warn not found")
