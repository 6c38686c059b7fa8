package pixellab

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"slices"
	"strings"
)

// Animation frame limits for one animate request.
const (
	MinFrames = 2
	MaxFrames = 20
)

// RotateRequest turns an object or character to a new direction and view.
type RotateRequest struct {
	Image         image.Image
	FromDirection string
	ToDirection   string
	FromView      string
	ToView        string
	Options       Options
}

// Validate checks directions and views against their allowed sets.
func (r RotateRequest) Validate() error {
	if r.Image == nil {
		return fmt.Errorf("pixellab: rotate needs a source image")
	}
	if err := checkChoice("from_direction", r.FromDirection, Directions); err != nil {
		return err
	}
	if err := checkChoice("to_direction", r.ToDirection, Directions); err != nil {
		return err
	}
	if err := checkChoice("from_view", r.FromView, Views); err != nil {
		return err
	}
	if err := checkChoice("to_view", r.ToView, Views); err != nil {
		return err
	}
	return r.Options.Validate()
}

// AnimateRequest generates animation frames of a reference character
// performing Action.
type AnimateRequest struct {
	Reference   image.Image
	Description string
	Action      string
	View        string
	Direction   string
	Frames      int
}

// Validate checks the action, direction, view and frame count.
func (r AnimateRequest) Validate() error {
	if r.Reference == nil {
		return fmt.Errorf("pixellab: animate needs a reference image")
	}
	if strings.TrimSpace(r.Action) == "" {
		return fmt.Errorf("%w: action is empty", ErrInvalidOption)
	}
	if err := checkChoice("direction", r.Direction, Directions); err != nil {
		return err
	}
	if err := checkChoice("view", r.View, Views); err != nil {
		return err
	}
	if r.Frames < MinFrames || r.Frames > MaxFrames {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidFrameCount, r.Frames, MinFrames, MaxFrames)
	}
	return nil
}

func checkChoice(name, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%w: %s %q (allowed: %s)", ErrInvalidOption, name, value, strings.Join(allowed, ", "))
	}
	return nil
}

type rotatePayload struct {
	FromImage     *base64Image `json:"from_image"`
	ImageSize     imageSize    `json:"image_size"`
	FromDirection string       `json:"from_direction"`
	ToDirection   string       `json:"to_direction"`
	FromView      string       `json:"from_view"`
	ToView        string       `json:"to_view"`
	Isometric     bool         `json:"isometric,omitempty"`
}

type animatePayload struct {
	Description    string       `json:"description"`
	Action         string       `json:"action"`
	View           string       `json:"view"`
	Direction      string       `json:"direction"`
	ImageSize      imageSize    `json:"image_size"`
	ReferenceImage *base64Image `json:"reference_image"`
	NFrames        int          `json:"n_frames"`
}

type imagesResponse struct {
	Images []base64Image `json:"images"`
}

// Rotate renders the source image facing ToDirection in ToView. Of the
// style options only Isometric applies.
func (c *Client) Rotate(ctx context.Context, req RotateRequest) (image.Image, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	b := req.Image.Bounds()
	payload := rotatePayload{
		ImageSize:     imageSize{Width: b.Dx(), Height: b.Dy()},
		FromDirection: req.FromDirection,
		ToDirection:   req.ToDirection,
		FromView:      req.FromView,
		ToView:        req.ToView,
		Isometric:     req.Options.Isometric,
	}
	var err error
	if payload.FromImage, err = encodeImage(req.Image); err != nil {
		return nil, fmt.Errorf("encode source image: %w", err)
	}

	var resp imageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/rotate", payload, &resp); err != nil {
		return nil, err
	}
	return decodeImage(resp.Image)
}

// Animate returns the generated frames in order.
func (c *Client) Animate(ctx context.Context, req AnimateRequest) ([]image.Image, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	b := req.Reference.Bounds()
	payload := animatePayload{
		Description: req.Description,
		Action:      req.Action,
		View:        req.View,
		Direction:   req.Direction,
		ImageSize:   imageSize{Width: b.Dx(), Height: b.Dy()},
		NFrames:     req.Frames,
	}
	var err error
	if payload.ReferenceImage, err = encodeImage(req.Reference); err != nil {
		return nil, fmt.Errorf("encode reference image: %w", err)
	}

	var resp imagesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/animate-with-text", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("pixellab: animate response contained no frames")
	}

	frames := make([]image.Image, len(resp.Images))
	for i, encoded := range resp.Images {
		if frames[i], err = decodeImage(encoded); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
	}
	return frames, nil
}
