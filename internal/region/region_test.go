package region

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/lawnchairsociety/mapforge/internal/pixellab"
)

var (
	red  = color.NRGBA{255, 0, 0, 255}
	blue = color.NRGBA{0, 0, 255, 255}
)

type fakeGenerator struct {
	generated  []pixellab.ImageRequest
	inpainted  []pixellab.InpaintRequest
	rotated    []pixellab.RotateRequest
	animated   []pixellab.AnimateRequest
	inpaintErr error
	animateErr error
	fill       color.NRGBA
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, req pixellab.ImageRequest) (image.Image, error) {
	f.generated = append(f.generated, req)
	return imaging.New(req.Width, req.Height, f.fill), nil
}

func (f *fakeGenerator) Inpaint(ctx context.Context, req pixellab.InpaintRequest) (image.Image, error) {
	f.inpainted = append(f.inpainted, req)
	if f.inpaintErr != nil {
		return nil, f.inpaintErr
	}
	b := req.Image.Bounds()
	return imaging.New(b.Dx(), b.Dy(), f.fill), nil
}

func (f *fakeGenerator) Rotate(ctx context.Context, req pixellab.RotateRequest) (image.Image, error) {
	f.rotated = append(f.rotated, req)
	b := req.Image.Bounds()
	return imaging.New(b.Dx(), b.Dy(), f.fill), nil
}

func (f *fakeGenerator) Animate(ctx context.Context, req pixellab.AnimateRequest) ([]image.Image, error) {
	f.animated = append(f.animated, req)
	if f.animateErr != nil {
		return nil, f.animateErr
	}
	b := req.Reference.Bounds()
	frames := make([]image.Image, req.Frames)
	for i := range frames {
		frames[i] = imaging.New(b.Dx(), b.Dy(), color.NRGBA{uint8(i), 0, 0, 255})
	}
	return frames, nil
}

// splitImage is red on its left half and blue on its right half.
func splitImage(w, h int) *image.NRGBA {
	img := imaging.New(w, h, red)
	return imaging.Paste(img, imaging.New(w/2, h, blue), image.Pt(w/2, 0))
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{"up", Up, false},
		{"DOWN", Down, false},
		{" left ", Left, false},
		{"right", Right, false},
		{"north", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDirection(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDirection) {
					t.Errorf("ParseDirection(%q) error = %v, want ErrInvalidDirection", tt.input, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseDirection(%q) = %v, %v, want %v", tt.input, got, err, tt.want)
			}
		})
	}
}

func TestDirectionHorizontal(t *testing.T) {
	want := map[Direction]bool{Up: false, Right: true, Down: false, Left: true}
	for _, d := range AllDirections() {
		if d.Horizontal() != want[d] {
			t.Errorf("%s.Horizontal() = %v", d, d.Horizontal())
		}
	}
}

func TestDirectionSet(t *testing.T) {
	var d Direction
	if err := d.Set("left"); err != nil || d != Left {
		t.Errorf("Set(left) = %v, direction %s", err, d)
	}
	if err := d.Set("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Set(sideways) error = %v", err)
	}
	if d != Left {
		t.Errorf("failed Set changed direction to %s", d)
	}
}

func TestCreateInitialRegionCanvasLimits(t *testing.T) {
	style := imaging.New(8, 8, red)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"pixflux max", Request{Description: "d", Width: 400, Height: 400}, nil},
		{"pixflux wide", Request{Description: "d", Width: 800, Height: 200}, nil},
		{"pixflux too large", Request{Description: "d", Width: 401, Height: 400}, ErrCanvasTooLarge},
		{"bitforge max", Request{Description: "d", Width: 200, Height: 200, StyleImage: style}, nil},
		{"bitforge too large", Request{Description: "d", Width: 201, Height: 200, StyleImage: style}, ErrCanvasTooLarge},
		{"zero width", Request{Description: "d", Width: 0, Height: 10}, ErrInvalidSize},
		{"negative height", Request{Description: "d", Width: 10, Height: -1}, ErrInvalidSize},
		{"no description", Request{Width: 10, Height: 10}, ErrEmptyDescription},
		{"bad option", Request{Description: "d", Width: 10, Height: 10, Options: pixellab.Options{View: "aerial"}}, pixellab.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{fill: red}
			s := NewService(gen, pixellab.Options{})
			r, err := s.CreateInitialRegion(context.Background(), tt.req)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("error = %v, want %v", err, tt.want)
				}
				if len(gen.generated) != 0 {
					t.Error("invalid request reached the generator")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateInitialRegion failed: %v", err)
			}
			if r.Width != tt.req.Width || r.Height != tt.req.Height || r.X != 0 || r.Y != 0 {
				t.Errorf("region = %dx%d at (%d,%d)", r.Width, r.Height, r.X, r.Y)
			}
			if r.GenerationID == "" || r.CreatedAt.IsZero() {
				t.Error("region missing generation id or timestamp")
			}
		})
	}
}

func TestCreateInitialRegionAppliesDefaults(t *testing.T) {
	gen := &fakeGenerator{fill: red}
	s := NewService(gen, pixellab.Options{Outline: "lineless", Shading: "flat shading"})

	seed := int64(7)
	_, err := s.CreateInitialRegion(context.Background(), Request{
		Description: "meadow",
		Width:       32,
		Height:      32,
		Seed:        &seed,
		Options:     pixellab.Options{Shading: "basic shading"},
	})
	if err != nil {
		t.Fatalf("CreateInitialRegion failed: %v", err)
	}
	got := gen.generated[0]
	if got.Options.Outline != "lineless" || got.Options.Shading != "basic shading" {
		t.Errorf("options = %+v", got.Options)
	}
	if got.Seed == nil || *got.Seed != 7 {
		t.Errorf("seed not passed through: %v", got.Seed)
	}
}

func TestExpandRegionPlacement(t *testing.T) {
	const overlap, expansion = 16, 32

	tests := []struct {
		dir          Direction
		x, y, w, h   int
		stripW       int
		stripH       int
		stripColorAt color.NRGBA
	}{
		{Right, 10 + 64 - overlap, 20, expansion, 48, overlap, 48, blue},
		{Left, 10 - expansion + overlap, 20, expansion, 48, overlap, 48, red},
		{Down, 10, 20 + 48 - overlap, 64, expansion, 64, overlap, red},
		{Up, 10, 20 - expansion + overlap, 64, expansion, 64, overlap, red},
	}

	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			gen := &fakeGenerator{fill: blue}
			s := NewService(gen, pixellab.Options{})
			existing := NewRegion(splitImage(64, 48), 10, 20, "forest")

			next, err := s.ExpandRegion(context.Background(), existing, tt.dir, "more forest", overlap, expansion, pixellab.Options{})
			if err != nil {
				t.Fatalf("ExpandRegion failed: %v", err)
			}
			if next.X != tt.x || next.Y != tt.y || next.Width != tt.w || next.Height != tt.h {
				t.Errorf("region = %dx%d at (%d,%d), want %dx%d at (%d,%d)",
					next.Width, next.Height, next.X, next.Y, tt.w, tt.h, tt.x, tt.y)
			}

			init := gen.generated[0].InitImage
			if init == nil {
				t.Fatal("no init image passed")
			}
			if b := init.Bounds(); b.Dx() != tt.stripW || b.Dy() != tt.stripH {
				t.Errorf("strip = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.stripW, tt.stripH)
			}
			b := init.Bounds()
			if got := nrgbaAt(init, b.Min.X, b.Min.Y); got != tt.stripColorAt {
				t.Errorf("strip corner = %v, want %v", got, tt.stripColorAt)
			}
		})
	}
}

func TestExpandRegionRejectsBadOverlap(t *testing.T) {
	s := NewService(&fakeGenerator{}, pixellab.Options{})
	existing := NewRegion(splitImage(64, 32), 0, 0, "cave")
	ctx := context.Background()

	tests := []struct {
		name      string
		dir       Direction
		overlap   int
		expansion int
		want      error
	}{
		{"zero overlap", Right, 0, 64, ErrInvalidOverlap},
		{"overlap beyond height", Down, 33, 64, ErrInvalidOverlap},
		{"overlap beyond expansion", Right, 20, 16, ErrInvalidOverlap},
		{"zero expansion", Left, 8, 0, ErrInvalidSize},
		{"unknown direction", Direction(9), 8, 16, ErrInvalidDirection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.ExpandRegion(ctx, existing, tt.dir, "x", tt.overlap, tt.expansion, pixellab.Options{}); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	// Overlap equal to the full edge is allowed.
	if _, err := s.ExpandRegion(ctx, existing, Down, "x", 32, 32, pixellab.Options{}); err != nil {
		t.Errorf("full-edge overlap rejected: %v", err)
	}
	if _, err := s.ExpandRegion(ctx, nil, Down, "x", 8, 32, pixellab.Options{}); !errors.Is(err, ErrNoImage) {
		t.Errorf("nil region: error = %v", err)
	}
}

func TestBuildMask(t *testing.T) {
	mask := BuildMask(8, 8, image.Rect(2, 2, 5, 5))
	white := color.NRGBA{255, 255, 255, 255}
	black := color.NRGBA{0, 0, 0, 255}

	checks := []struct {
		x, y int
		want color.NRGBA
	}{
		{2, 2, white},
		{4, 4, white},
		{5, 5, black},
		{1, 2, black},
		{7, 7, black},
	}
	for _, c := range checks {
		if got := nrgbaAt(mask, c.x, c.y); got != c.want {
			t.Errorf("mask(%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}

	clipped := BuildMask(8, 8, image.Rect(6, 6, 20, 20))
	if b := clipped.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("mask size = %v", b)
	}
	if nrgbaAt(clipped, 7, 7) != white || nrgbaAt(clipped, 5, 5) != black {
		t.Error("clipped mask wrong")
	}
}

func TestInpaintAreaFallsBackToOriginal(t *testing.T) {
	gen := &fakeGenerator{inpaintErr: errors.New("remote unavailable")}
	s := NewService(gen, pixellab.Options{})
	original := NewRegion(splitImage(32, 32), 5, 6, "village")

	out, err := s.InpaintArea(context.Background(), original, image.Rect(4, 4, 12, 12), "a well", pixellab.Options{})
	if err != nil {
		t.Fatalf("InpaintArea returned error on remote failure: %v", err)
	}

	want := imaging.Clone(original.Image)
	got := imaging.Clone(out.Image)
	if got.Bounds() != want.Bounds() || !bytes.Equal(got.Pix, want.Pix) {
		t.Error("fallback image differs from original")
	}
	if out.X != 5 || out.Y != 6 {
		t.Errorf("fallback region at (%d,%d), want (5,6)", out.X, out.Y)
	}
	if out.Image != original.Image {
		t.Error("fallback replaced the original image")
	}
	if len(gen.inpainted) != 1 || gen.inpainted[0].Image == original.Image {
		t.Error("generator was not sent its own copy of the image")
	}
}

func TestInpaintAreaFallbackKeepsTranslucentRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			a := uint8(x*16 + y)
			src.SetRGBA(x, y, color.RGBA{a / 2, a / 3, 0, a})
		}
	}
	pix := bytes.Clone(src.Pix)

	gen := &fakeGenerator{inpaintErr: errors.New("remote unavailable")}
	out, err := NewService(gen, pixellab.Options{}).InpaintArea(context.Background(), NewRegion(src, 0, 0, "glass"), image.Rect(0, 0, 8, 8), "frost", pixellab.Options{})
	if err != nil {
		t.Fatalf("InpaintArea failed: %v", err)
	}
	got, ok := out.Image.(*image.RGBA)
	if !ok {
		t.Fatalf("fallback image is %T, want *image.RGBA", out.Image)
	}
	if !bytes.Equal(got.Pix, pix) {
		t.Error("fallback pixels differ from the original")
	}
}

func TestInpaintAreaSendsMask(t *testing.T) {
	gen := &fakeGenerator{fill: blue}
	s := NewService(gen, pixellab.Options{})
	original := NewRegion(splitImage(16, 16), 0, 0, "field")

	out, err := s.InpaintArea(context.Background(), original, image.Rect(0, 0, 4, 4), "rock", pixellab.Options{})
	if err != nil {
		t.Fatalf("InpaintArea failed: %v", err)
	}
	if len(gen.inpainted) != 1 {
		t.Fatalf("inpaint called %d times", len(gen.inpainted))
	}
	mask := gen.inpainted[0].Mask
	if mask.Bounds() != original.Image.Bounds() {
		t.Errorf("mask bounds = %v, want %v", mask.Bounds(), original.Image.Bounds())
	}
	if nrgbaAt(mask, 0, 0) != (color.NRGBA{255, 255, 255, 255}) || nrgbaAt(mask, 4, 4) != (color.NRGBA{0, 0, 0, 255}) {
		t.Error("mask does not cover the requested rectangle")
	}
	if nrgbaAt(out.Image, 10, 10) != blue {
		t.Error("inpainted image not returned")
	}
	if out.Description != "rock" {
		t.Errorf("description = %q", out.Description)
	}
}

func TestInpaintAreaErrors(t *testing.T) {
	ctx := context.Background()
	region := NewRegion(splitImage(16, 16), 0, 0, "field")

	s := NewService(&fakeGenerator{}, pixellab.Options{})
	if _, err := s.InpaintArea(ctx, region, image.Rect(20, 20, 30, 30), "x", pixellab.Options{}); !errors.Is(err, ErrInvalidRect) {
		t.Errorf("outside rect: error = %v, want ErrInvalidRect", err)
	}
	if _, err := s.InpaintArea(ctx, &MapRegion{}, image.Rect(0, 0, 4, 4), "x", pixellab.Options{}); !errors.Is(err, ErrNoImage) {
		t.Errorf("no image: error = %v, want ErrNoImage", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	gen := &fakeGenerator{inpaintErr: context.Canceled}
	s = NewService(gen, pixellab.Options{})
	if _, err := s.InpaintArea(cancelled, region, image.Rect(0, 0, 4, 4), "x", pixellab.Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: error = %v, want context.Canceled", err)
	}
}

func TestCreateMapObject(t *testing.T) {
	gen := &fakeGenerator{fill: red}
	s := NewService(gen, pixellab.Options{})
	ctx := context.Background()

	if _, err := s.CreateMapObject(ctx, ObjectRequest{Description: "barrel", Width: 32, Height: 32, View: "side"}); err != nil {
		t.Fatalf("CreateMapObject failed: %v", err)
	}
	opts := gen.generated[0].Options
	if !opts.NoBackground || opts.Direction != "south" {
		t.Errorf("side view options = %+v", opts)
	}
	if gen.generated[0].Mode() != pixellab.ModePixflux {
		t.Errorf("mode = %s, want pixflux", gen.generated[0].Mode())
	}

	style := imaging.New(4, 4, blue)
	if _, err := s.CreateMapObject(ctx, ObjectRequest{Description: "chest", Width: 32, Height: 32, StyleImage: style}); err != nil {
		t.Fatalf("CreateMapObject with style failed: %v", err)
	}
	if gen.generated[1].Mode() != pixellab.ModeBitforge || gen.generated[1].Options.Direction != "" {
		t.Errorf("styled object = mode %s, options %+v", gen.generated[1].Mode(), gen.generated[1].Options)
	}

	if _, err := s.CreateMapObject(ctx, ObjectRequest{Description: "x", Width: 8, Height: 8, View: "worm's eye"}); !errors.Is(err, pixellab.ErrInvalidOption) {
		t.Errorf("bad view: error = %v, want ErrInvalidOption", err)
	}
}

func TestPlacements(t *testing.T) {
	a := NewRegion(imaging.New(4, 4, red), 0, 0, "a")
	b := NewRegion(imaging.New(4, 4, blue), 2, 3, "b")

	got := Placements([]*MapRegion{a, nil, &MapRegion{}, b})
	if len(got) != 2 {
		t.Fatalf("got %d placements, want 2", len(got))
	}
	if got[1].X != 2 || got[1].Y != 3 || got[1].Image != b.Image {
		t.Errorf("placement = %+v", got[1])
	}
	if a.Bounds() != image.Rect(0, 0, 4, 4) || b.Bounds() != image.Rect(2, 3, 6, 7) {
		t.Errorf("bounds = %v, %v", a.Bounds(), b.Bounds())
	}
}

func TestRotateObject(t *testing.T) {
	gen := &fakeGenerator{fill: blue}
	s := NewService(gen, pixellab.Options{Isometric: true})
	src := imaging.New(24, 32, red)

	out, err := s.RotateObject(context.Background(), src, "south", "east", "side", "side", pixellab.Options{})
	if err != nil {
		t.Fatalf("RotateObject failed: %v", err)
	}
	if len(gen.rotated) != 1 {
		t.Fatalf("rotate called %d times", len(gen.rotated))
	}
	req := gen.rotated[0]
	if req.FromDirection != "south" || req.ToDirection != "east" || !req.Options.Isometric {
		t.Errorf("request = %+v", req)
	}
	if out.Width != 24 || out.Height != 32 || nrgbaAt(out.Image, 0, 0) != blue {
		t.Errorf("rotated region = %dx%d", out.Width, out.Height)
	}
	if out.Description != "Rotated from south to east" {
		t.Errorf("description = %q", out.Description)
	}
}

func TestRotateObjectRejectsBadInput(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewService(gen, pixellab.Options{})
	ctx := context.Background()
	src := imaging.New(8, 8, red)

	if _, err := s.RotateObject(ctx, src, "south", "sideways", "side", "side", pixellab.Options{}); !errors.Is(err, pixellab.ErrInvalidOption) {
		t.Errorf("bad direction: error = %v, want ErrInvalidOption", err)
	}
	if _, err := s.RotateObject(ctx, src, "south", "east", "side", "isometric", pixellab.Options{}); !errors.Is(err, pixellab.ErrInvalidOption) {
		t.Errorf("bad view: error = %v, want ErrInvalidOption", err)
	}
	if _, err := s.RotateObject(ctx, nil, "south", "east", "side", "side", pixellab.Options{}); !errors.Is(err, ErrNoImage) {
		t.Errorf("nil image: error = %v, want ErrNoImage", err)
	}
	if len(gen.rotated) != 0 {
		t.Errorf("generator called %d times for invalid input", len(gen.rotated))
	}
}

func TestAnimateObject(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewService(gen, pixellab.Options{})
	ref := imaging.New(16, 16, red)

	frames, err := s.AnimateObject(context.Background(), ref, "walk", "", "west", 6)
	if err != nil {
		t.Fatalf("AnimateObject failed: %v", err)
	}
	if len(frames) != 6 {
		t.Fatalf("got %d frames, want 6", len(frames))
	}
	for i, f := range frames {
		if nrgbaAt(f.Image, 0, 0).R != uint8(i) {
			t.Errorf("frame %d out of order", i)
		}
	}
	if frames[2].Description != "walk frame 3" {
		t.Errorf("description = %q", frames[2].Description)
	}
	req := gen.animated[0]
	if req.View != "side" || req.Description != "pixel art character" || req.Direction != "west" {
		t.Errorf("request = %+v", req)
	}
}

func TestAnimateObjectFrameLimits(t *testing.T) {
	tests := []struct {
		frames  int
		wantErr bool
	}{
		{1, true},
		{2, false},
		{20, false},
		{21, true},
	}
	ref := imaging.New(8, 8, red)
	for _, tt := range tests {
		gen := &fakeGenerator{}
		_, err := NewService(gen, pixellab.Options{}).AnimateObject(context.Background(), ref, "idle", "mage", "south", tt.frames)
		if tt.wantErr {
			if !errors.Is(err, pixellab.ErrInvalidFrameCount) {
				t.Errorf("frames %d: error = %v, want ErrInvalidFrameCount", tt.frames, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("frames %d: %v", tt.frames, err)
		}
	}

	gen := &fakeGenerator{animateErr: errors.New("offline")}
	if _, err := NewService(gen, pixellab.Options{}).AnimateObject(context.Background(), ref, "idle", "mage", "south", 4); err == nil {
		t.Error("generator failure not returned")
	}
}
