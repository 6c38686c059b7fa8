package assembler

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Placement is an image positioned on a larger canvas.
type Placement struct {
	Image image.Image
	X, Y  int
}

// Stitch composites placements onto one canvas filled with bg. The canvas
// extends to the largest x+width and y+height. Placements are drawn in
// order with Porter-Duff source-over: opaque pixels of a later placement
// replace what lies beneath, transparent ones leave it untouched, and
// semi-transparent ones blend with it. With no placements the result is a
// 1x1 canvas of bg.
func Stitch(placements []Placement, bg color.Color) *image.NRGBA {
	if len(placements) == 0 {
		return imaging.New(1, 1, bg)
	}

	maxX, maxY := 0, 0
	for _, p := range placements {
		b := p.Image.Bounds()
		maxX = max(maxX, p.X+b.Dx())
		maxY = max(maxY, p.Y+b.Dy())
	}

	canvas := imaging.New(maxX, maxY, bg)
	for _, p := range placements {
		xdraw.Copy(canvas, image.Pt(p.X, p.Y), p.Image, p.Image.Bounds(), xdraw.Over, nil)
	}
	return canvas
}

// NormalizeOffsets shifts placements so the smallest x and y become 0.
// Regions expanded up or left of their origin have negative offsets that
// Stitch would otherwise clip.
func NormalizeOffsets(placements []Placement) []Placement {
	if len(placements) == 0 {
		return nil
	}
	minX, minY := placements[0].X, placements[0].Y
	for _, p := range placements[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
	}

	out := make([]Placement, len(placements))
	for i, p := range placements {
		out[i] = Placement{Image: p.Image, X: p.X - minX, Y: p.Y - minY}
	}
	return out
}
