package wang

import "errors"

var (
	ErrIncompleteTileset  = errors.New("wang: tileset does not have 16 tiles")
	ErrCorruptMetadata    = errors.New("wang: tileset metadata is missing or corrupt")
	ErrInvalidCornerValue = errors.New("wang: corner value must be 0 or 1")
)
