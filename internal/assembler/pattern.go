package assembler

import (
	"fmt"
	"math/rand"
)

// Pattern names a procedural terrain layout for AssembleSimple.
type Pattern string

const (
	PatternRandom       Pattern = "random"
	PatternGradient     Pattern = "gradient"
	PatternCheckerboard Pattern = "checkerboard"
	PatternSolidLower   Pattern = "solid_lower"
	PatternSolidUpper   Pattern = "solid_upper"
)

// Patterns returns every supported pattern.
func Patterns() []Pattern {
	return []Pattern{PatternRandom, PatternGradient, PatternCheckerboard, PatternSolidLower, PatternSolidUpper}
}

// ParsePattern validates a pattern name.
func ParsePattern(name string) (Pattern, error) {
	for _, p := range Patterns() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, name)
}

// GeneratePattern builds a (height+1) x (width+1) vertex grid for a map of
// width x height tiles. rng is only used by PatternRandom.
func GeneratePattern(width, height int, pattern Pattern, rng *rand.Rand) (Grid, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: map must be at least 1x1 tiles, got %dx%d", ErrInvalidGrid, width, height)
	}

	var value func(x, y int) int
	switch pattern {
	case PatternRandom:
		if rng == nil {
			return nil, fmt.Errorf("assembler: random pattern needs a random source")
		}
		value = func(x, y int) int { return rng.Intn(2) }
	case PatternGradient:
		// A hard step at the midpoint, not a ramp.
		value = func(x, y int) int {
			if float64(y)/float64(height) > 0.5 {
				return 1
			}
			return 0
		}
	case PatternCheckerboard:
		value = func(x, y int) int { return (x + y) % 2 }
	case PatternSolidLower:
		value = func(x, y int) int { return 0 }
	case PatternSolidUpper:
		value = func(x, y int) int { return 1 }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}

	grid := make(Grid, height+1)
	for y := range grid {
		grid[y] = make([]int, width+1)
		for x := range grid[y] {
			grid[y][x] = value(x, y)
		}
	}
	return grid, nil
}
