package engine

import "errors"

// Sentinel errors for engine construction and lookups.
var (
	ErrReadOnlyStore = errors.New("store does not accept inserts")
	ErrNoCounter     = errors.New("store cannot report its size")
)
