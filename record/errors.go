package record

import "errors"

// Sentinel errors for table definitions and values.
var (
	ErrEmptyTableID       = errors.New("table id is empty")
	ErrEmptyAttribute     = errors.New("attribute name is empty")
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	ErrReservedAttribute  = errors.New("attribute name is reserved")
	ErrUnsupportedType    = errors.New("unsupported attribute type")
)
