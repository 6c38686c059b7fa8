package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/mapforge/internal/assembler"
)

// mapFile is the YAML form of a terrain grid or tile layout:
//
//	tileset: 3f2a9c01
//	tile_size: 32
//	grid:
//	  - [0, 0, 1]
//	  - [0, 1, 1]
type mapFile struct {
	Tileset  string  `yaml:"tileset"`
	TileSize int     `yaml:"tile_size"`
	Grid     [][]int `yaml:"grid"`
	Layout   [][]int `yaml:"layout"`
}

func loadMapFile(path string) (*mapFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var mf mapFile
	if err := dec.Decode(&mf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if mf.Grid == nil && mf.Layout == nil {
		return nil, fmt.Errorf("%s has neither grid nor layout", path)
	}
	return &mf, nil
}

func (mf *mapFile) grid() assembler.Grid {
	return assembler.Grid(mf.Grid)
}

func (mf *mapFile) layout() assembler.Layout {
	return assembler.Layout(mf.Layout)
}

// parsePoint parses "x,y".
func parsePoint(s string) (image.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return image.Point{}, fmt.Errorf("invalid point %q, want x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return image.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return image.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return image.Pt(x, y), nil
}

// parseRect parses "x,y,w,h" into the half-open rectangle it covers.
func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid rect %q, want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid rect %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] < 1 || v[3] < 1 {
		return image.Rectangle{}, fmt.Errorf("invalid rect %q: width and height must be positive", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// parsePlacement parses "file.png@x,y". The offset defaults to 0,0.
func parsePlacement(s string) (string, image.Point, error) {
	path, at, found := strings.Cut(s, "@")
	if path == "" {
		return "", image.Point{}, fmt.Errorf("invalid placement %q, want file@x,y", s)
	}
	if !found {
		return path, image.Point{}, nil
	}
	pt, err := parsePoint(at)
	return path, pt, err
}

func loadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}
