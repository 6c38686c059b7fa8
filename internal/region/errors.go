package region

import "errors"

var (
	ErrInvalidDirection = errors.New("region: direction must be up, down, left or right")
	ErrInvalidOverlap   = errors.New("region: invalid overlap")
	ErrCanvasTooLarge   = errors.New("region: canvas exceeds the generation limit")
	ErrInvalidSize      = errors.New("region: width and height must be positive")
	ErrInvalidRect      = errors.New("region: inpaint rectangle does not intersect the region")
	ErrEmptyDescription = errors.New("region: description is empty")
	ErrNoImage          = errors.New("region: region has no image")
)
