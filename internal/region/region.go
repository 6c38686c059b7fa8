// Package region generates free-form rectangular map regions: initial
// generation, overlap-seeded expansion in a cardinal direction, rectangular
// inpainting and transparent map objects.
package region

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/mapforge/internal/assembler"
)

// MapRegion is a generated image positioned on the map canvas.
type MapRegion struct {
	Image         image.Image
	X, Y          int
	Width, Height int
	Description   string
	GenerationID  string
	CreatedAt     time.Time
}

// NewRegion wraps img at (x, y), taking its size from the image bounds.
func NewRegion(img image.Image, x, y int, description string) *MapRegion {
	r := &MapRegion{
		Image:        img,
		X:            x,
		Y:            y,
		Description:  description,
		GenerationID: uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
	}
	if img != nil {
		r.Width = img.Bounds().Dx()
		r.Height = img.Bounds().Dy()
	}
	return r
}

// Bounds returns the region's rectangle in canvas coordinates.
func (r *MapRegion) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Placement returns the region as a stitch unit.
func (r *MapRegion) Placement() assembler.Placement {
	return assembler.Placement{Image: r.Image, X: r.X, Y: r.Y}
}

// Placements converts regions for assembler.Stitch, preserving order.
func Placements(regions []*MapRegion) []assembler.Placement {
	out := make([]assembler.Placement, 0, len(regions))
	for _, r := range regions {
		if r == nil || r.Image == nil {
			continue
		}
		out = append(out, r.Placement())
	}
	return out
}
