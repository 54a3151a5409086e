package store

import "errors"

// Sentinel errors for store operations.
var (
	ErrConnectionUnavailable = errors.New("store connection unavailable")
	ErrLoadFailed            = errors.New("load failed")
	ErrSaveFailed            = errors.New("save failed")
	ErrArity                 = errors.New("value count does not match definition")
	ErrUnknownAttribute      = errors.New("unknown attribute")
	ErrDefinitionMismatch    = errors.New("cache definition does not match store definition")
	ErrUnknownType           = errors.New("unknown store type")
	ErrInvalidConfig         = errors.New("invalid store config")
	ErrInvalidID             = errors.New("invalid record id")
)
