package assembler

import "errors"

var (
	ErrInvalidGrid    = errors.New("assembler: terrain grid must be at least 2x2 vertices")
	ErrUnknownPattern = errors.New("assembler: unknown pattern")
	ErrInvalidScale   = errors.New("assembler: scale must be an integer >= 1")
	ErrEmptyLayout    = errors.New("assembler: layout has no cells")
)
