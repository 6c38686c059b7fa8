package region

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/lawnchairsociety/mapforge/internal/logger"
	"github.com/lawnchairsociety/mapforge/internal/pixellab"
)

// Generator produces, inpaints, rotates and animates images.
type Generator interface {
	GenerateImage(ctx context.Context, req pixellab.ImageRequest) (image.Image, error)
	Inpaint(ctx context.Context, req pixellab.InpaintRequest) (image.Image, error)
	Rotate(ctx context.Context, req pixellab.RotateRequest) (image.Image, error)
	Animate(ctx context.Context, req pixellab.AnimateRequest) ([]image.Image, error)
}

// Request describes an initial region.
type Request struct {
	Description string
	Width       int
	Height      int
	InitImage   image.Image
	StyleImage  image.Image
	Seed        *int64
	Options     pixellab.Options
}

// Mode returns the generation mode: bitforge with a style image, pixflux
// otherwise.
func (r Request) Mode() string {
	return r.apiRequest(pixellab.Options{}).Mode()
}

// MaxSize returns the largest square edge the request's mode accepts.
func (r Request) MaxSize() int {
	if r.Mode() == pixellab.ModeBitforge {
		return pixellab.MaxBitforgeSize
	}
	return pixellab.MaxPixfluxSize
}

// Validate checks the description and canvas size. The canvas limit is on
// area: width*height may not exceed MaxSize squared.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if r.Width < 1 || r.Height < 1 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidSize, r.Width, r.Height)
	}
	if limit := r.MaxSize(); r.Width*r.Height > limit*limit {
		return fmt.Errorf("%w: %dx%d exceeds %dx%d for %s", ErrCanvasTooLarge, r.Width, r.Height, limit, limit, r.Mode())
	}
	return r.Options.Validate()
}

func (r Request) apiRequest(defaults pixellab.Options) pixellab.ImageRequest {
	return pixellab.ImageRequest{
		Description: r.Description,
		Width:       r.Width,
		Height:      r.Height,
		InitImage:   r.InitImage,
		StyleImage:  r.StyleImage,
		Seed:        r.Seed,
		Options:     defaults.Merge(r.Options),
	}
}

// ObjectRequest describes a map object generated on a transparent
// background.
type ObjectRequest struct {
	Description string
	Width       int
	Height      int

	// View is high top-down, low top-down or side. Side views face south.
	View       string
	StyleImage image.Image
	Options    pixellab.Options
}

// Service runs region workflows against a Generator.
type Service struct {
	gen      Generator
	defaults pixellab.Options
}

// NewService creates a service. defaults are applied beneath every
// request's own options.
func NewService(gen Generator, defaults pixellab.Options) *Service {
	return &Service{gen: gen, defaults: defaults}
}

// CreateInitialRegion generates a region placed at the origin.
func (s *Service) CreateInitialRegion(ctx context.Context, req Request) (*MapRegion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Generating region",
		"mode", req.Mode(),
		"width", req.Width,
		"height", req.Height,
		"init_image", req.InitImage != nil)

	img, err := s.gen.GenerateImage(ctx, req.apiRequest(s.defaults))
	if err != nil {
		return nil, fmt.Errorf("generate region %q: %w", req.Description, err)
	}
	return NewRegion(img, 0, 0, req.Description), nil
}

// ExpandRegion generates a neighbour of existing on side dir. The overlap
// pixels at that edge seed the generation and the new region overlaps
// existing by the same amount. expansionSize is the new region's extent
// along dir; the other axis matches existing.
func (s *Service) ExpandRegion(ctx context.Context, existing *MapRegion, dir Direction, description string, overlap, expansionSize int, opts pixellab.Options) (*MapRegion, error) {
	if existing == nil || existing.Image == nil {
		return nil, ErrNoImage
	}
	if expansionSize < 1 {
		return nil, fmt.Errorf("%w: expansion size %d", ErrInvalidSize, expansionSize)
	}

	b := existing.Image.Bounds()
	edge := b.Dy()
	if dir.Horizontal() {
		edge = b.Dx()
	}
	if overlap < 1 || overlap > edge {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidOverlap, overlap, edge)
	}
	if overlap > expansionSize {
		return nil, fmt.Errorf("%w: %d exceeds expansion size %d", ErrInvalidOverlap, overlap, expansionSize)
	}

	var strip image.Rectangle
	x, y := existing.X, existing.Y
	w, h := b.Dx(), b.Dy()
	switch dir {
	case Right:
		strip = image.Rect(b.Max.X-overlap, b.Min.Y, b.Max.X, b.Max.Y)
		x = existing.X + b.Dx() - overlap
		w = expansionSize
	case Left:
		strip = image.Rect(b.Min.X, b.Min.Y, b.Min.X+overlap, b.Max.Y)
		x = existing.X - expansionSize + overlap
		w = expansionSize
	case Down:
		strip = image.Rect(b.Min.X, b.Max.Y-overlap, b.Max.X, b.Max.Y)
		y = existing.Y + b.Dy() - overlap
		h = expansionSize
	case Up:
		strip = image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+overlap)
		y = existing.Y - expansionSize + overlap
		h = expansionSize
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(dir))
	}

	logger.Debug("Expanding region",
		"direction", dir.String(),
		"from", existing.GenerationID,
		"overlap", overlap,
		"x", x,
		"y", y)

	next, err := s.CreateInitialRegion(ctx, Request{
		Description: description,
		Width:       w,
		Height:      h,
		InitImage:   imaging.Crop(existing.Image, strip),
		Options:     opts,
	})
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", dir, err)
	}
	next.X, next.Y = x, y
	return next, nil
}

// BuildMask returns an opaque mask of size w x h, white inside rect and
// black elsewhere. rect is half-open and clipped to the mask.
func BuildMask(w, h int, rect image.Rectangle) *image.NRGBA {
	mask := imaging.New(w, h, color.Black)
	area := rect.Canon().Intersect(mask.Bounds())
	if !area.Empty() {
		xdraw.Draw(mask, area, image.White, image.Point{}, xdraw.Src)
	}
	return mask
}

// InpaintArea regenerates rect of r's image, where rect is in the image's
// own coordinates. If the generator fails for any reason other than
// cancellation the result holds r's original image unchanged.
func (s *Service) InpaintArea(ctx context.Context, r *MapRegion, rect image.Rectangle, description string, opts pixellab.Options) (*MapRegion, error) {
	if r == nil || r.Image == nil {
		return nil, ErrNoImage
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}

	src := imaging.Clone(r.Image)
	size := src.Bounds().Size()
	if rect.Canon().Intersect(src.Bounds()).Empty() {
		return nil, fmt.Errorf("%w: %v within %dx%d", ErrInvalidRect, rect, size.X, size.Y)
	}
	mask := BuildMask(size.X, size.Y, rect)

	img, err := s.gen.Inpaint(ctx, pixellab.InpaintRequest{
		Description: description,
		Image:       src,
		Mask:        mask,
		Options:     s.defaults.Merge(opts),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Warning("Inpaint failed, keeping original image",
			"region", r.GenerationID,
			"rect", rect.String(),
			"error", err)
		img = r.Image
	}

	return NewRegion(img, r.X, r.Y, description), nil
}

// CreateMapObject generates an object on a transparent background. A style
// image switches to bitforge.
func (s *Service) CreateMapObject(ctx context.Context, req ObjectRequest) (*MapRegion, error) {
	view := req.View
	if view == "" {
		view = "high top-down"
	}
	if !slices.Contains(pixellab.Views, view) {
		return nil, fmt.Errorf("%w: view %q", pixellab.ErrInvalidOption, view)
	}

	base := pixellab.Options{NoBackground: true}
	if view == "side" {
		base.Direction = "south"
	}

	logger.Info("Generating map object", "view", view, "width", req.Width, "height", req.Height)
	return s.CreateInitialRegion(ctx, Request{
		Description: req.Description,
		Width:       req.Width,
		Height:      req.Height,
		StyleImage:  req.StyleImage,
		Options:     base.Merge(req.Options),
	})
}

// RotateObject renders src facing toDir in toView. Directions must be one
// of pixellab.Directions and views one of pixellab.Views.
func (s *Service) RotateObject(ctx context.Context, src image.Image, fromDir, toDir, fromView, toView string, opts pixellab.Options) (*MapRegion, error) {
	if src == nil {
		return nil, ErrNoImage
	}
	req := pixellab.RotateRequest{
		Image:         src,
		FromDirection: fromDir,
		ToDirection:   toDir,
		FromView:      fromView,
		ToView:        toView,
		Options:       s.defaults.Merge(opts),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Rotating object", "from", fromDir, "to", toDir, "from_view", fromView, "to_view", toView)
	img, err := s.gen.Rotate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rotate %s to %s: %w", fromDir, toDir, err)
	}
	return NewRegion(img, 0, 0, fmt.Sprintf("Rotated from %s to %s", fromDir, toDir)), nil
}

// AnimateObject generates nFrames frames of ref performing action while
// facing dir. Frames are side views; an empty description falls back to a
// generic character.
func (s *Service) AnimateObject(ctx context.Context, ref image.Image, action, description, dir string, nFrames int) ([]*MapRegion, error) {
	if ref == nil {
		return nil, ErrNoImage
	}
	if strings.TrimSpace(description) == "" {
		description = "pixel art character"
	}
	req := pixellab.AnimateRequest{
		Reference:   ref,
		Description: description,
		Action:      action,
		View:        "side",
		Direction:   dir,
		Frames:      nFrames,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Animating object", "action", action, "direction", dir, "frames", nFrames)
	images, err := s.gen.Animate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("animate %s: %w", action, err)
	}

	frames := make([]*MapRegion, len(images))
	for i, img := range images {
		frames[i] = NewRegion(img, 0, 0, fmt.Sprintf("%s frame %d", action, i+1))
	}
	return frames, nil
}
