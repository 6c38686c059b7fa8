package pixellab

import (
	"errors"
	"testing"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		"detail":              "highly detailed",
		"outline":             "lineless",
		"view":                "side",
		"direction":           "south",
		"no_background":       "true",
		"text_guidance_scale": "8",
	})
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}
	want := Options{
		Detail:            "highly detailed",
		Outline:           "lineless",
		View:              "side",
		Direction:         "south",
		NoBackground:      true,
		TextGuidanceScale: 8,
	}
	if opts != want {
		t.Errorf("ParseOptions = %+v, want %+v", opts, want)
	}
}

func TestParseOptionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   error
	}{
		{"unknown key", map[string]string{"colour": "red"}, ErrUnknownOption},
		{"bad enum", map[string]string{"shading": "glossy"}, ErrInvalidOption},
		{"bad bool", map[string]string{"isometric": "maybe"}, ErrInvalidOption},
		{"bad float", map[string]string{"text_guidance_scale": "high"}, ErrInvalidOption},
		{"out of range", map[string]string{"text_guidance_scale": "50"}, ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseOptions(tt.values); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestZeroOptionsValid(t *testing.T) {
	if err := (Options{}).Validate(); err != nil {
		t.Errorf("zero Options invalid: %v", err)
	}
}

func TestMerge(t *testing.T) {
	base := Options{Detail: "low detail", View: "high top-down"}
	got := base.Merge(Options{View: "side", NoBackground: true})
	want := Options{Detail: "low detail", View: "side", NoBackground: true}
	if got != want {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}
}

func TestImageRequestMode(t *testing.T) {
	if got := (ImageRequest{}).Mode(); got != ModePixflux {
		t.Errorf("Mode() = %q, want pixflux", got)
	}
}
