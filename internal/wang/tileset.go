package wang

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Tileset is a complete set of 16 Wang tiles addressable by corner code.
type Tileset struct {
	ID               string
	LowerBaseTileID  string
	UpperBaseTileID  string
	LowerDescription string
	UpperDescription string

	// Dir is the directory the tileset was loaded from, empty for
	// in-memory tilesets.
	Dir string

	// TileSize is the width of tile 0 in pixels.
	TileSize int

	tiles []*Tile
}

// New builds an in-memory tileset from 16 images in corner-code order.
func New(id string, images []image.Image) (*Tileset, error) {
	if len(images) != TileCount {
		return nil, fmt.Errorf("%w: got %d images", ErrIncompleteTileset, len(images))
	}

	ts := &Tileset{ID: id, tiles: make([]*Tile, TileCount)}
	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("%w: tile %d is nil", ErrIncompleteTileset, i)
		}
		ts.tiles[i] = NewTile(i, img)
	}
	ts.TileSize = ts.tiles[0].Size()
	return ts, nil
}

// Load reads a persisted tileset from dir: tile_00.png through tile_15.png
// plus metadata.json.
func Load(dir string) (*Tileset, error) {
	md, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}

	present := 0
	for i := 0; i < TileCount; i++ {
		if _, err := os.Stat(filepath.Join(dir, TileFileName(i))); err == nil {
			present++
		}
	}
	if present < TileCount {
		return nil, fmt.Errorf("%w: found %d tile images in %s", ErrIncompleteTileset, present, dir)
	}

	images := make([]image.Image, TileCount)
	var g errgroup.Group
	for i := 0; i < TileCount; i++ {
		g.Go(func() error {
			img, err := loadTile(dir, TileFileName(i), md.Digests)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ts, err := New(md.TilesetID, images)
	if err != nil {
		return nil, err
	}
	ts.LowerBaseTileID = md.LowerBaseTileID
	ts.UpperBaseTileID = md.UpperBaseTileID
	ts.LowerDescription = md.LowerDescription
	ts.UpperDescription = md.UpperDescription
	ts.Dir = dir
	return ts, nil
}

// loadTile reads and decodes one tile file, checking its digest when the
// metadata records one.
func loadTile(dir, name string, digests map[string]string) (image.Image, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s missing from %s", ErrIncompleteTileset, name, dir)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if want, ok := digests[name]; ok && want != Digest(data) {
		return nil, fmt.Errorf("%w: %s in %s does not match its recorded digest", ErrCorruptMetadata, name, dir)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// TileByIndex returns the tile with the given corner code, or nil when index
// is outside [0, 15].
func (ts *Tileset) TileByIndex(index int) *Tile {
	if index < 0 || index >= len(ts.tiles) {
		return nil
	}
	return ts.tiles[index]
}

// TileByCorners returns the tile whose corners match. Every corner must be
// 0 or 1.
func (ts *Tileset) TileByCorners(tl, tr, bl, br int) (*Tile, error) {
	return ts.Lookup(Corners{TL: tl, TR: tr, BL: bl, BR: br})
}

// Lookup is TileByCorners taking a Corners value.
func (ts *Tileset) Lookup(c Corners) (*Tile, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidCornerValue, c)
	}
	return ts.TileByIndex(Index(c)), nil
}

// Tiles returns the tiles in corner-code order.
func (ts *Tileset) Tiles() []*Tile {
	out := make([]*Tile, len(ts.tiles))
	copy(out, ts.tiles)
	return out
}
