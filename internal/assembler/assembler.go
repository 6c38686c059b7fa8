// Package assembler turns Wang tilesets and terrain descriptions into map
// images, stitches generated regions onto one canvas, and exports PNGs.
package assembler

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand"
	"path/filepath"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/lawnchairsociety/mapforge/internal/logger"
	"github.com/lawnchairsociety/mapforge/internal/storage"
	"github.com/lawnchairsociety/mapforge/internal/wang"
)

// Grid holds terrain values (0 lower, 1 upper) at tile vertices. A grid of
// (H+1) x (W+1) vertices describes H x W tiles.
type Grid [][]int

// Layout holds an explicit tile index per cell.
type Layout [][]int

// Assembler builds map images. It is not safe for concurrent use because
// the random pattern shares one source.
type Assembler struct {
	mapsDir string
	rng     *rand.Rand
}

// New creates an Assembler that exports relative paths under mapsDir and
// seeds the random pattern with seed.
func New(mapsDir string, seed int64) *Assembler {
	return &Assembler{
		mapsDir: mapsDir,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// MapsDir returns the directory relative export paths resolve under.
func (a *Assembler) MapsDir() string {
	return a.mapsDir
}

// AssembleFromLayout places ts.TileByIndex(layout[y][x]) at each cell.
// Indices with no tile leave the cell transparent. tileSize 0 uses the
// tileset's own size.
func (a *Assembler) AssembleFromLayout(ts *wang.Tileset, layout Layout, tileSize int) (*image.NRGBA, error) {
	width := 0
	for _, row := range layout {
		width = max(width, len(row))
	}
	if len(layout) == 0 || width == 0 {
		return nil, ErrEmptyLayout
	}

	size := resolveTileSize(ts, tileSize)
	tiles := scaledTiles(ts, size)
	canvas := imaging.New(width*size, len(layout)*size, color.Transparent)

	missing := 0
	for y, row := range layout {
		for x, index := range row {
			if index < 0 || index >= len(tiles) || tiles[index] == nil {
				missing++
				continue
			}
			placeTile(canvas, tiles[index], x, y, size)
		}
	}
	if missing > 0 {
		logger.Debug("Layout cells left transparent", "tileset_id", ts.ID, "missing", missing)
	}
	return canvas, nil
}

// AssembleFromTerrain autotiles a vertex grid: each output tile is chosen by
// the terrain at its four surrounding vertices.
func (a *Assembler) AssembleFromTerrain(ts *wang.Tileset, grid Grid, tileSize int) (*image.NRGBA, error) {
	if err := validateGrid(grid); err != nil {
		return nil, err
	}

	height := len(grid) - 1
	width := len(grid[0]) - 1
	size := resolveTileSize(ts, tileSize)
	tiles := scaledTiles(ts, size)
	canvas := imaging.New(width*size, height*size, color.Transparent)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := CellCorners(grid, x, y)
			tile, err := ts.Lookup(c)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", x, y, err)
			}
			if tile == nil {
				continue
			}
			placeTile(canvas, tiles[tile.Index], x, y, size)
		}
	}
	return canvas, nil
}

// AssembleSimple builds a width x height tile map from a procedural pattern.
func (a *Assembler) AssembleSimple(ts *wang.Tileset, width, height int, pattern Pattern) (*image.NRGBA, error) {
	grid, err := GeneratePattern(width, height, pattern, a.rng)
	if err != nil {
		return nil, err
	}
	return a.AssembleFromTerrain(ts, grid, 0)
}

// CellCorners returns the corners of tile (x, y) read from the grid.
func CellCorners(grid Grid, x, y int) wang.Corners {
	return wang.Corners{
		TL: grid[y][x],
		TR: grid[y][x+1],
		BL: grid[y+1][x],
		BR: grid[y+1][x+1],
	}
}

func validateGrid(grid Grid) error {
	if len(grid) < 2 {
		return fmt.Errorf("%w: got %d rows", ErrInvalidGrid, len(grid))
	}
	cols := len(grid[0])
	if cols < 2 {
		return fmt.Errorf("%w: got %d columns", ErrInvalidGrid, cols)
	}
	for y, row := range grid {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidGrid, y, len(row), cols)
		}
	}
	return nil
}

func resolveTileSize(ts *wang.Tileset, tileSize int) int {
	if tileSize <= 0 {
		return ts.TileSize
	}
	return tileSize
}

// scaledTiles returns the tileset's images at size x size, indexed by corner
// code. Nearest-neighbour keeps pixel art crisp.
func scaledTiles(ts *wang.Tileset, size int) []image.Image {
	out := make([]image.Image, wang.TileCount)
	for _, t := range ts.Tiles() {
		if t == nil {
			continue
		}
		b := t.Image.Bounds()
		if b.Dx() == size && b.Dy() == size {
			out[t.Index] = t.Image
			continue
		}
		out[t.Index] = imaging.Resize(t.Image, size, size, imaging.NearestNeighbor)
	}
	return out
}

func placeTile(canvas *image.NRGBA, tile image.Image, x, y, size int) {
	xdraw.Copy(canvas, image.Pt(x*size, y*size), tile, tile.Bounds(), xdraw.Src, nil)
}

// Scale enlarges img by an integer factor with nearest-neighbour sampling.
func Scale(img image.Image, scale int) (*image.NRGBA, error) {
	if scale < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidScale, scale)
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, nil
}

// ExportPNG writes img, scaled by an integer factor, to path as a PNG.
// Relative paths resolve under the maps directory. It returns the path
// written.
func (a *Assembler) ExportPNG(img image.Image, path string, scale int) (string, error) {
	scaled, err := Scale(img, scale)
	if err != nil {
		return "", err
	}

	if !filepath.IsAbs(path) && a.mapsDir != "" {
		path = filepath.Join(a.mapsDir, path)
	}

	err = storage.WriteFileAtomic(path, func(w io.Writer) error {
		return imaging.Encode(w, scaled, imaging.PNG)
	})
	if err != nil {
		return "", fmt.Errorf("export %s: %w", path, err)
	}

	logger.Info("Map exported", "path", path, "scale", scale,
		"width", scaled.Bounds().Dx(), "height", scaled.Bounds().Dy())
	return path, nil
}
