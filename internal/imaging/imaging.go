// Package imaging implements the case-artwork transform engine: geometric
// scale/rotate/pan plus color filters over an uploaded raster, rasterized
// into the final print artifact. Rendering is a pure function of its inputs
// and may be invoked repeatedly for preview; the authoritative render runs
// once when the edit step is committed.
package imaging

import (
	"errors"
	"fmt"
)

// Parameter ranges accepted by Render. Out-of-range values are rejected,
// not clamped.
const (
	MinScale = 0.5
	MaxScale = 3.0

	MinFilter = -50
	MaxFilter = 50

	MaxBlur = 5.0
)

// ErrUnsupportedImage is returned when the source bytes cannot be decoded.
var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// ErrTooLarge is returned when the source exceeds the configured size ceiling.
var ErrTooLarge = errors.New("image exceeds size ceiling")

// Transform is the geometric edit state: pan offsets in destination pixels,
// rotation in degrees (quarter turns only), uniform scale.
type Transform struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
	Rotation   int     `json:"rotation"`
}

// Identity returns the no-op transform.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Validate checks the transform against the documented ranges.
func (t Transform) Validate() error {
	if t.Scale < MinScale || t.Scale > MaxScale {
		return fmt.Errorf("scale %.2f out of range [%.1f, %.1f]", t.Scale, MinScale, MaxScale)
	}
	switch t.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("rotation %d not a quarter turn", t.Rotation)
	}
	return nil
}

// Filters is the color-filter edit state. Brightness, contrast and
// saturation are percentage deltas in [-50, 50]; blur is a radius in
// destination pixels in [0, 5].
type Filters struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	Blur       float64 `json:"blur"`
}

// Validate checks the filters against the documented ranges.
func (f Filters) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"brightness", f.Brightness},
		{"contrast", f.Contrast},
		{"saturation", f.Saturation},
	} {
		if v.val < MinFilter || v.val > MaxFilter {
			return fmt.Errorf("%s %.1f out of range [%d, %d]", v.name, v.val, MinFilter, MaxFilter)
		}
	}
	if f.Blur < 0 || f.Blur > MaxBlur {
		return fmt.Errorf("blur %.1f out of range [0, %.0f]", f.Blur, MaxBlur)
	}
	return nil
}

// IsZero reports whether the filters are all at their neutral values.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Artifact is an encoded image produced by the engine.
type Artifact struct {
	Data        []byte `json:"-"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}
