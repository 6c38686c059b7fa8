package pixellab

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Tileset job statuses reported by the API.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TilesetRequest describes one Wang tileset between two terrains.
type TilesetRequest struct {
	LowerDescription      string
	UpperDescription      string
	TransitionSize        float64
	TransitionDescription string
	TileSize              int
	LowerBaseTileID       string
	UpperBaseTileID       string
	Options               Options
}

// TilesetStatus is one poll of a tileset job.
type TilesetStatus struct {
	TilesetID       string
	Status          string
	LowerBaseTileID string
	UpperBaseTileID string

	// Tiles holds PNG bytes in corner-code order when the job is completed.
	Tiles  [][]byte
	PNGURL string

	// Raw is the response's data object, kept for failure reports.
	Raw json.RawMessage
}

type tileSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type tilesetPayload struct {
	LowerDescription      string   `json:"lower_description"`
	UpperDescription      string   `json:"upper_description"`
	TransitionSize        float64  `json:"transition_size"`
	TransitionDescription string   `json:"transition_description,omitempty"`
	TileSize              tileSize `json:"tile_size"`
	View                  string   `json:"view,omitempty"`
	Outline               string   `json:"outline,omitempty"`
	Shading               string   `json:"shading,omitempty"`
	Detail                string   `json:"detail,omitempty"`
	LowerBaseTileID       string   `json:"lower_base_tile_id,omitempty"`
	UpperBaseTileID       string   `json:"upper_base_tile_id,omitempty"`
	TextGuidanceScale     float64  `json:"text_guidance_scale,omitempty"`
}

type tilesetResponse struct {
	Data json.RawMessage `json:"data"`
}

type tilesetData struct {
	TilesetID       string            `json:"tileset_id"`
	Status          string            `json:"status"`
	LowerBaseTileID string            `json:"lower_base_tile_id"`
	UpperBaseTileID string            `json:"upper_base_tile_id"`
	Tiles           []json.RawMessage `json:"tiles"`
	PNGURL          string            `json:"png_url"`
}

// SubmitTileset starts a tileset job and returns its id.
func (c *Client) SubmitTileset(ctx context.Context, req TilesetRequest) (string, error) {
	if err := req.Options.Validate(); err != nil {
		return "", err
	}
	view := req.Options.View
	if view == "" {
		view = "high top-down"
	}
	payload := tilesetPayload{
		LowerDescription:  req.LowerDescription,
		UpperDescription:  req.UpperDescription,
		TransitionSize:    req.TransitionSize,
		TileSize:          tileSize{Width: req.TileSize, Height: req.TileSize},
		View:              view,
		Outline:           req.Options.Outline,
		Shading:           req.Options.Shading,
		Detail:            req.Options.Detail,
		LowerBaseTileID:   req.LowerBaseTileID,
		UpperBaseTileID:   req.UpperBaseTileID,
		TextGuidanceScale: req.Options.TextGuidanceScale,
	}
	if req.TransitionSize > 0 {
		payload.TransitionDescription = req.TransitionDescription
	}

	var resp tilesetResponse
	if err := c.do(ctx, http.MethodPost, "/v2/create-topdown-tileset", payload, &resp); err != nil {
		return "", err
	}
	var data tilesetData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("pixellab: decode tileset submission: %w", err)
	}
	if data.TilesetID == "" {
		return "", fmt.Errorf("pixellab: tileset submission returned no tileset_id")
	}
	return data.TilesetID, nil
}

// TilesetStatus polls a tileset job once.
func (c *Client) TilesetStatus(ctx context.Context, tilesetID string) (*TilesetStatus, error) {
	var resp tilesetResponse
	if err := c.do(ctx, http.MethodGet, "/v2/topdown-tilesets/"+url.PathEscape(tilesetID), nil, &resp); err != nil {
		return nil, err
	}

	var data tilesetData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("pixellab: decode tileset %s: %w", tilesetID, err)
	}

	status := &TilesetStatus{
		TilesetID:       tilesetID,
		Status:          data.Status,
		LowerBaseTileID: data.LowerBaseTileID,
		UpperBaseTileID: data.UpperBaseTileID,
		PNGURL:          data.PNGURL,
		Raw:             resp.Data,
	}
	if status.Status == "" {
		status.Status = "unknown"
	}
	for i, raw := range data.Tiles {
		png, err := decodeTileImage(raw)
		if err != nil {
			return nil, fmt.Errorf("pixellab: tileset %s tile %d: %w", tilesetID, i, err)
		}
		if png != nil {
			status.Tiles = append(status.Tiles, png)
		}
	}
	return status, nil
}

// decodeTileImage accepts {"image": "<base64>"} and
// {"image": {"type": "base64", "base64": "<base64>"}}. Tiles without an
// image yield nil.
func decodeTileImage(raw json.RawMessage) ([]byte, error) {
	var tile struct {
		Image json.RawMessage `json:"image"`
	}
	if err := json.Unmarshal(raw, &tile); err != nil {
		return nil, err
	}
	if len(tile.Image) == 0 || string(tile.Image) == "null" {
		return nil, nil
	}

	var encoded string
	if err := json.Unmarshal(tile.Image, &encoded); err != nil {
		var obj base64Image
		if err := json.Unmarshal(tile.Image, &obj); err != nil {
			return nil, fmt.Errorf("unrecognised image field: %w", err)
		}
		encoded = obj.Base64
	}
	return base64.StdEncoding.DecodeString(encoded)
}
