package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lawnchairsociety/mapforge/internal/pixellab"
	"github.com/lawnchairsociety/mapforge/internal/region"
)

func newRegionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "region",
		Short: "Generate, expand and inpaint free-form map regions",
	}
	cmd.AddCommand(
		newRegionGenerateCmd(a),
		newRegionExpandCmd(a),
		newRegionInpaintCmd(a),
	)
	return cmd
}

func newRegionGenerateCmd(a *app) *cobra.Command {
	var (
		width, height int
		initPath      string
		stylePath     string
		seed          int64
		out           string
		scale         int
		rawOpts       map[string]string
	)

	cmd := &cobra.Command{
		Use:   "generate DESCRIPTION",
		Short: "Generate a region from a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pixellab.ParseOptions(rawOpts)
			if err != nil {
				return err
			}
			initImg, err := loadImage(initPath)
			if err != nil {
				return err
			}
			styleImg, err := loadImage(stylePath)
			if err != nil {
				return err
			}

			req := region.Request{
				Description: args[0],
				Width:       width,
				Height:      height,
				InitImage:   initImg,
				StyleImage:  styleImg,
				Options:     opts,
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			r, err := f.GenerateRegion(cmd.Context(), req)
			if err != nil {
				return err
			}
			path, err := f.SaveMap(cmd.Context(), r.Image, out, scale)
			if err != nil {
				return err
			}
			printRegion(cmd, r, path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&width, "width", "W", 64, "Region width in pixels")
	flags.IntVarP(&height, "height", "H", 64, "Region height in pixels")
	flags.StringVar(&initPath, "init", "", "Starting image or sketch")
	flags.StringVar(&stylePath, "style", "", "Style reference image (selects bitforge, max 200x200)")
	flags.Int64Var(&seed, "seed", 0, "Generation seed")
	flags.StringVar(&out, "out", "region.png", "Output PNG, relative paths go under the maps directory")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	flags.StringToStringVarP(&rawOpts, "option", "o", nil, "Generation option key=value (repeatable)")
	return cmd
}

func newRegionExpandCmd(a *app) *cobra.Command {
	var (
		at          string
		dir         = region.Right
		description string
		overlap     int
		size        int
		out         string
		scale       int
		rawOpts     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "expand IMAGE",
		Short: "Generate the neighbour of a region, seeded by its edge pixels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pixellab.ParseOptions(rawOpts)
			if err != nil {
				return err
			}
			pos, err := parsePoint(at)
			if err != nil {
				return err
			}
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			existing := region.NewRegion(img, pos.X, pos.Y, "")
			next, err := f.ExpandRegion(cmd.Context(), existing, dir, description, overlap, size, opts)
			if err != nil {
				return err
			}
			path, err := f.SaveMap(cmd.Context(), next.Image, out, scale)
			if err != nil {
				return err
			}
			printRegion(cmd, next, path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&at, "at", "0,0", "Canvas position of IMAGE as x,y")
	flags.Var(&dir, "direction", "Side to expand: up, down, left or right")
	flags.StringVarP(&description, "description", "d", "", "Description of the new area")
	flags.IntVar(&overlap, "overlap", 16, "Pixels of the existing edge used as context")
	flags.IntVar(&size, "size", 64, "Extent of the new region along the expansion direction")
	flags.StringVar(&out, "out", "expanded.png", "Output PNG, relative paths go under the maps directory")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	flags.StringToStringVarP(&rawOpts, "option", "o", nil, "Generation option key=value (repeatable)")
	cmd.MarkFlagRequired("description")
	return cmd
}

func newRegionInpaintCmd(a *app) *cobra.Command {
	var (
		rect        string
		description string
		out         string
		scale       int
		rawOpts     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "inpaint IMAGE",
		Short: "Regenerate a rectangle of an image, keeping the original on failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pixellab.ParseOptions(rawOpts)
			if err != nil {
				return err
			}
			area, err := parseRect(rect)
			if err != nil {
				return err
			}
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			r, err := f.Inpaint(cmd.Context(), region.NewRegion(img, 0, 0, ""), area, description, opts)
			if err != nil {
				return err
			}
			path, err := f.SaveMap(cmd.Context(), r.Image, out, scale)
			if err != nil {
				return err
			}
			printRegion(cmd, r, path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&rect, "rect", "", "Area to regenerate as x,y,w,h")
	flags.StringVarP(&description, "description", "d", "", "Description of the inpainted area")
	flags.StringVar(&out, "out", "inpainted.png", "Output PNG, relative paths go under the maps directory")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	flags.StringToStringVarP(&rawOpts, "option", "o", nil, "Generation option key=value (repeatable)")
	cmd.MarkFlagRequired("rect")
	cmd.MarkFlagRequired("description")
	return cmd
}

func newObjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Generate, rotate and animate map objects",
	}
	cmd.AddCommand(
		newObjectCreateCmd(a),
		newObjectRotateCmd(a),
		newObjectAnimateCmd(a),
	)
	return cmd
}

func newObjectCreateCmd(a *app) *cobra.Command {
	var (
		width, height int
		view          string
		stylePath     string
		out           string
		scale         int
		rawOpts       map[string]string
	)

	cmd := &cobra.Command{
		Use:   "create DESCRIPTION",
		Short: "Generate a single map object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pixellab.ParseOptions(rawOpts)
			if err != nil {
				return err
			}
			styleImg, err := loadImage(stylePath)
			if err != nil {
				return err
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			r, err := f.CreateMapObject(cmd.Context(), region.ObjectRequest{
				Description: args[0],
				Width:       width,
				Height:      height,
				View:        view,
				StyleImage:  styleImg,
				Options:     opts,
			})
			if err != nil {
				return err
			}
			path, err := f.SaveMap(cmd.Context(), r.Image, out, scale)
			if err != nil {
				return err
			}
			printRegion(cmd, r, path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&width, "width", "W", 64, "Object width in pixels")
	flags.IntVarP(&height, "height", "H", 64, "Object height in pixels")
	flags.StringVar(&view, "view", "high top-down", "Camera view: high top-down, low top-down or side")
	flags.StringVar(&stylePath, "style", "", "Style reference image")
	flags.StringVar(&out, "out", "object.png", "Output PNG, relative paths go under the maps directory")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	flags.StringToStringVarP(&rawOpts, "option", "o", nil, "Generation option key=value (repeatable)")
	return cmd
}

func newObjectRotateCmd(a *app) *cobra.Command {
	var (
		from, to         string
		fromView, toView string
		out              string
		scale            int
		rawOpts          map[string]string
	)

	cmd := &cobra.Command{
		Use:   "rotate IMAGE",
		Short: "Turn an object or character to face a new direction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pixellab.ParseOptions(rawOpts)
			if err != nil {
				return err
			}
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			r, err := f.RotateObject(cmd.Context(), img, from, to, fromView, toView, opts)
			if err != nil {
				return err
			}
			path, err := f.SaveMap(cmd.Context(), r.Image, out, scale)
			if err != nil {
				return err
			}
			printRegion(cmd, r, path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&from, "from", "south", "Direction IMAGE faces: "+strings.Join(pixellab.Directions, ", "))
	flags.StringVar(&to, "to", "east", "Direction to turn to")
	flags.StringVar(&fromView, "from-view", "side", "View of IMAGE: "+strings.Join(pixellab.Views, ", "))
	flags.StringVar(&toView, "to-view", "side", "View to render")
	flags.StringVar(&out, "out", "rotated.png", "Output PNG, relative paths go under the maps directory")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	flags.StringToStringVarP(&rawOpts, "option", "o", nil, "Generation option key=value (repeatable)")
	return cmd
}

func newObjectAnimateCmd(a *app) *cobra.Command {
	var (
		action      string
		description string
		direction   string
		frames      int
		out         string
		scale       int
	)

	cmd := &cobra.Command{
		Use:   "animate IMAGE",
		Short: "Generate animation frames of a character from a reference image",
		Long: `Generate animation frames of the character in IMAGE performing an
action. Frame i is written next to --out with a _NN suffix, so
walk.png becomes walk_01.png, walk_02.png and so on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}

			f, err := a.openForge(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			regions, err := f.AnimateObject(cmd.Context(), img, action, description, direction, frames)
			if err != nil {
				return err
			}
			for i, r := range regions {
				path, err := f.SaveMap(cmd.Context(), r.Image, frameName(out, i), scale)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d written to %s\n", r.Description, r.Width, r.Height, path)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&action, "action", "walk", "Action to animate, such as walk, run or idle")
	flags.StringVarP(&description, "description", "d", "", "Character description")
	flags.StringVar(&direction, "direction", "south", "Direction the character faces")
	flags.IntVarP(&frames, "frames", "n", 4, fmt.Sprintf("Number of frames (%d-%d)", pixellab.MinFrames, pixellab.MaxFrames))
	flags.StringVar(&out, "out", "animation.png", "Output PNG name the frame files are derived from")
	flags.IntVar(&scale, "scale", 0, "Integer export scale (0 uses the configured scale)")
	return cmd
}

// frameName returns out with a 1-based frame suffix before the extension.
func frameName(out string, i int) string {
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s_%02d%s", strings.TrimSuffix(out, ext), i+1, ext)
}

func printRegion(cmd *cobra.Command, r *region.MapRegion, path string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%dx%d region at %d,%d written to %s (stitch as %s@%d,%d)\n",
		r.Width, r.Height, r.X, r.Y, path, path, r.X, r.Y)
}
