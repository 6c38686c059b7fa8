package region

import (
	"fmt"
	"strings"
)

// Direction is the side of a region an expansion grows from.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// String returns the lower-case name of the direction.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Horizontal reports whether d grows the region along the x axis.
func (d Direction) Horizontal() bool {
	return d == Left || d == Right
}

// AllDirections returns the four expansion directions.
func AllDirections() []Direction {
	return []Direction{Up, Right, Down, Left}
}

// ParseDirection parses up, down, left or right, ignoring case.
func ParseDirection(s string) (Direction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, d := range AllDirections() {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: got %q", ErrInvalidDirection, s)
}

// Set implements pflag.Value so a Direction can be a command flag.
func (d *Direction) Set(s string) error {
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Type implements pflag.Value.
func (d *Direction) Type() string {
	return "direction"
}
