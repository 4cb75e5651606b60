package domain

import "errors"

// ErrNotFound is the shared sentinel every repository in pkg/storage/postgres
// returns when a lookup by ID finds no row. Living here lets pkg/httpapi map
// it to an HTTP 404 without importing pkg/storage/postgres — the same
// cross-package sentinel pattern as ErrNoPendingOutboxEvents.
var ErrNotFound = errors.New("not found")
