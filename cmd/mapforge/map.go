package main

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lawnchairsociety/mapforge/internal/assembler"
	"github.com/lawnchairsociety/mapforge/internal/wang"
)

func newMapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Assemble, stitch and preview maps",
	}
	cmd.AddCommand(
		newMapAssembleCmd(a),
		newMapTerrainCmd(a),
		newMapStitchCmd(a),
		newMapPreviewCmd(),
	)
	return cmd
}

func patternHelp() string {
	names := make([]string, 0, len(assembler.Patterns()))
	for _, p := range assembler.Patterns() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

func newMapAssembleCmd(a *app) *cobra.Command {
	var (
		width, height int
		pattern       string
		layoutPath    string
		tileSize      int
		out           string
		scale         int
	)

	cmd := &cobra.Command{
		Use:   "assemble TILESET",
		Short: "Assemble a map from a saved tileset and a pattern or layout file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p   assembler.Pattern
				mf  *mapFile
				err error
			)
			if layoutPath != "" {
				if mf, err = loadMapFile(layoutPath); err != nil {
					return err
				}
				if mf.Layout == nil {
					return fmt.Errorf("%s has no layout", layoutPath)
				}
			} else if p, err = assembler.ParsePattern(pattern); err != nil {
				return err
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			var img *image.NRGBA
			if mf != nil {
				img, err = f.MapFromLayout(args[0], mf.layout(), tileSize)
			} else {
				img, err = f.MapFromTileset(args[0], width, height, p)
			}
			if err != nil {
				return err
			}

			path, err := f.SaveMap(cmd.Context(), img, out, scale)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Map written to %s\n", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&width, "width", "W", 8, "Map width in tiles")
	flags.IntVarP(&height, "height", "H", 8, "Map height in tiles")
	flags.StringVarP(&pattern, "pattern", "p", string(assembler.PatternRandom), "Terrain pattern: "+patternHelp())
	flags.StringVar(&layoutPath, "layout", "", "YAML file with an explicit tile index layout")
	flags.IntVar(&tileSize, "tile-size", 0, "Output tile size in pixels (0 keeps the tileset's size)")
	flags.StringVar(&out, "out", "map.png", "Output PNG, relative paths go under the maps directory")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	return cmd
}

func newMapTerrainCmd(a *app) *cobra.Command {
	var (
		gridPath string
		tileSize int
		out      string
		scale    int
	)

	cmd := &cobra.Command{
		Use:   "terrain [TILESET]",
		Short: "Assemble a map from a vertex terrain grid file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mf, err := loadMapFile(gridPath)
			if err != nil {
				return err
			}
			id := mf.Tileset
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return fmt.Errorf("no tileset given and %s names none", gridPath)
			}
			if tileSize == 0 {
				tileSize = mf.TileSize
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			img, err := f.MapFromTerrain(id, mf.grid(), tileSize)
			if err != nil {
				return err
			}
			path, err := f.SaveMap(cmd.Context(), img, out, scale)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Map written to %s\n", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&gridPath, "grid", "g", "", "YAML file with the vertex terrain grid")
	flags.IntVar(&tileSize, "tile-size", 0, "Output tile size in pixels (0 keeps the tileset's size)")
	flags.StringVar(&out, "out", "terrain.png", "Output PNG, relative paths go under the maps directory")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	cmd.MarkFlagRequired("grid")
	return cmd
}

func newMapStitchCmd(a *app) *cobra.Command {
	var (
		out   string
		scale int
	)

	cmd := &cobra.Command{
		Use:   "stitch FILE@X,Y [FILE@X,Y...]",
		Short: "Composite region images onto one canvas, later files on top",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			placements := make([]assembler.Placement, 0, len(args))
			for _, arg := range args {
				path, at, err := parsePlacement(arg)
				if err != nil {
					return err
				}
				img, err := loadImage(path)
				if err != nil {
					return err
				}
				placements = append(placements, assembler.Placement{Image: img, X: at.X, Y: at.Y})
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			canvas := assembler.Stitch(assembler.NormalizeOffsets(placements), color.Transparent)
			path, err := f.SaveMap(cmd.Context(), canvas, out, scale)
			if err != nil {
				return err
			}
			b := canvas.Bounds()
			fmt.Fprintf(cmd.OutOrStdout(), "Stitched %d regions into %dx%d map at %s\n", len(placements), b.Dx(), b.Dy(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "stitched.png", "Output PNG, relative paths go under the maps directory")
	cmd.Flags().IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	return cmd
}

func newMapPreviewCmd() *cobra.Command {
	var (
		width, height int
		pattern       string
		gridPath      string
		seed          int64
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the corner codes a grid or pattern selects, without a tileset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var grid assembler.Grid
			if gridPath != "" {
				mf, err := loadMapFile(gridPath)
				if err != nil {
					return err
				}
				grid = mf.grid()
			} else {
				p, err := assembler.ParsePattern(pattern)
				if err != nil {
					return err
				}
				if seed == 0 {
					seed = time.Now().UnixNano()
				}
				grid, err = assembler.GeneratePattern(width, height, p, rand.New(rand.NewSource(seed)))
				if err != nil {
					return err
				}
			}
			return renderPreview(cmd.OutOrStdout(), grid)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&width, "width", "W", 8, "Map width in tiles")
	flags.IntVarP(&height, "height", "H", 8, "Map height in tiles")
	flags.StringVarP(&pattern, "pattern", "p", string(assembler.PatternCheckerboard), "Terrain pattern: "+patternHelp())
	flags.StringVarP(&gridPath, "grid", "g", "", "YAML file with the vertex terrain grid")
	flags.Int64Var(&seed, "seed", 0, "Seed for the random pattern (0 picks one)")
	return cmd
}

// renderPreview writes one hex digit per cell: the corner code of the tile
// the grid selects there.
func renderPreview(w io.Writer, grid assembler.Grid) error {
	if len(grid) < 2 || len(grid[0]) < 2 {
		return assembler.ErrInvalidGrid
	}
	for _, row := range grid {
		if len(row) != len(grid[0]) {
			return fmt.Errorf("%w: ragged rows", assembler.ErrInvalidGrid)
		}
	}

	var b strings.Builder
	cols, rows := len(grid[0])-1, len(grid)-1
	fmt.Fprintf(&b, "Terrain preview (%dx%d tiles)\n", cols, rows)
	b.WriteString(strings.Repeat("=", cols) + "\n")
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := assembler.CellCorners(grid, x, y)
			if !c.Valid() {
				return fmt.Errorf("%w: cell (%d,%d) has corners %s", wang.ErrInvalidCornerValue, x, y, c)
			}
			fmt.Fprintf(&b, "%x", wang.Index(c))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nLegend: 0 = all lower, f = all upper, bits TL=8 TR=4 BL=2 BR=1\n")

	_, err := io.WriteString(w, b.String())
	return err
}
