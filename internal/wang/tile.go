// Package wang implements corner-indexed Wang tilesets used for autotiling.
//
// Each tile has four corners, each either lower (0) or upper (1) terrain:
//
//	TL -- TR
//	|      |
//	BL -- BR
//
// The 4-bit corner code TL*8 + TR*4 + BL*2 + BR is the tile's index within
// its 16-tile set.
package wang

import (
	"fmt"
	"image"
)

// TileCount is the number of tiles in a complete two-terrain Wang set.
const TileCount = 16

// Terrain values a corner may take.
const (
	Lower = 0
	Upper = 1
)

// Corners holds the terrain value at each corner of a tile.
type Corners struct {
	TL, TR, BL, BR int
}

// Valid reports whether every corner is Lower or Upper.
func (c Corners) Valid() bool {
	return isTerrain(c.TL) && isTerrain(c.TR) && isTerrain(c.BL) && isTerrain(c.BR)
}

// String returns the corners in TL,TR,BL,BR order.
func (c Corners) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", c.TL, c.TR, c.BL, c.BR)
}

// Index returns the corner code of c. It does not validate c; callers that
// accept untrusted values should check Valid first.
func Index(c Corners) int {
	return c.TL*8 + c.TR*4 + c.BL*2 + c.BR
}

// CornersOf decodes a corner code back into its corners.
func CornersOf(index int) Corners {
	return Corners{
		TL: (index >> 3) & 1,
		TR: (index >> 2) & 1,
		BL: (index >> 1) & 1,
		BR: index & 1,
	}
}

func isTerrain(v int) bool {
	return v == Lower || v == Upper
}

// Tile is a single tile image plus its corner classification.
// Index and Corners always agree: Index == Index(Corners).
type Tile struct {
	Index   int
	Corners Corners
	Image   image.Image
}

// NewTile creates the tile at the given corner code.
func NewTile(index int, img image.Image) *Tile {
	return &Tile{
		Index:   index,
		Corners: CornersOf(index),
		Image:   img,
	}
}

// Size returns the tile's width in pixels. Tiles are square.
func (t *Tile) Size() int {
	return t.Image.Bounds().Dx()
}

// TileFileName returns the on-disk name of the tile at index.
func TileFileName(index int) string {
	return fmt.Sprintf("tile_%02d.png", index)
}
