package pixellab

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Allowed values for the enumerated options.
var (
	Details    = []string{"low detail", "medium detail", "highly detailed"}
	Outlines   = []string{"single color black outline", "single color outline", "selective outline", "lineless"}
	Shadings   = []string{"flat shading", "basic shading", "medium shading", "detailed shading", "highly detailed shading"}
	Views      = []string{"high top-down", "low top-down", "side"}
	Directions = []string{"north", "north-east", "east", "south-east", "south", "south-west", "west", "north-west"}
)

// Options are the style parameters shared by generation endpoints. Zero
// values are omitted from requests and leave the API default in place.
type Options struct {
	Detail            string  `json:"detail,omitempty" yaml:"detail"`
	Outline           string  `json:"outline,omitempty" yaml:"outline"`
	Shading           string  `json:"shading,omitempty" yaml:"shading"`
	View              string  `json:"view,omitempty" yaml:"view"`
	Direction         string  `json:"direction,omitempty" yaml:"direction"`
	NoBackground      bool    `json:"no_background,omitempty" yaml:"no_background"`
	Isometric         bool    `json:"isometric,omitempty" yaml:"isometric"`
	TextGuidanceScale float64 `json:"text_guidance_scale,omitempty" yaml:"text_guidance_scale"`
}

// Validate rejects values outside each option's allowed set.
func (o Options) Validate() error {
	checks := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"detail", o.Detail, Details},
		{"outline", o.Outline, Outlines},
		{"shading", o.Shading, Shadings},
		{"view", o.View, Views},
		{"direction", o.Direction, Directions},
	}
	for _, c := range checks {
		if c.value != "" && !slices.Contains(c.allowed, c.value) {
			return fmt.Errorf("%w: %s %q (allowed: %s)", ErrInvalidOption, c.name, c.value, strings.Join(c.allowed, ", "))
		}
	}
	if o.TextGuidanceScale != 0 && (o.TextGuidanceScale < 1 || o.TextGuidanceScale > 20) {
		return fmt.Errorf("%w: text_guidance_scale %v not in [1, 20]", ErrInvalidOption, o.TextGuidanceScale)
	}
	return nil
}

// Merge returns o with every non-zero field of override applied.
func (o Options) Merge(override Options) Options {
	if override.Detail != "" {
		o.Detail = override.Detail
	}
	if override.Outline != "" {
		o.Outline = override.Outline
	}
	if override.Shading != "" {
		o.Shading = override.Shading
	}
	if override.View != "" {
		o.View = override.View
	}
	if override.Direction != "" {
		o.Direction = override.Direction
	}
	if override.NoBackground {
		o.NoBackground = true
	}
	if override.Isometric {
		o.Isometric = true
	}
	if override.TextGuidanceScale != 0 {
		o.TextGuidanceScale = override.TextGuidanceScale
	}
	return o
}

// OptionKeys lists the keys ParseOptions accepts.
func OptionKeys() []string {
	keys := []string{"detail", "outline", "shading", "view", "direction", "no_background", "isometric", "text_guidance_scale"}
	sort.Strings(keys)
	return keys
}

// ParseOptions builds Options from key/value pairs such as CLI --option
// flags. Unknown keys fail with ErrUnknownOption; the result is validated.
func ParseOptions(values map[string]string) (Options, error) {
	var o Options
	for key, value := range values {
		var err error
		switch key {
		case "detail":
			o.Detail = value
		case "outline":
			o.Outline = value
		case "shading":
			o.Shading = value
		case "view":
			o.View = value
		case "direction":
			o.Direction = value
		case "no_background":
			o.NoBackground, err = strconv.ParseBool(value)
		case "isometric":
			o.Isometric, err = strconv.ParseBool(value)
		case "text_guidance_scale":
			o.TextGuidanceScale, err = strconv.ParseFloat(value, 64)
		default:
			return Options{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownOption, key, strings.Join(OptionKeys(), ", "))
		}
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s=%q: %v", ErrInvalidOption, key, value, err)
		}
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}
