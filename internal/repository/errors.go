package repository

import "errors"

// ErrPersistenceFailed marks store read/write failures. Recoverable; the
// caller decides whether to retry.
var ErrPersistenceFailed = errors.New("persistence failed")

// ErrNotFound marks a missing record.
var ErrNotFound = errors.New("record not found")
