package imaging

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// jpegQuality is the lossy compression quality of rendered artifacts.
const jpegQuality = 90

// Engine renders case artwork. The size ceiling bounds the source byte
// length accepted by Render and Reencode.
type Engine struct {
	MaxSourceBytes int64
}

// NewEngine creates an engine with the given source size ceiling in bytes.
func NewEngine(maxSourceBytes int64) *Engine {
	return &Engine{MaxSourceBytes: maxSourceBytes}
}

// Render decodes the source raster, applies the geometric transform and the
// color-filter pipeline, and returns the result encoded as JPEG. The output
// dimensions always equal the source dimensions. On any decode or parameter
// failure the engine fails closed and returns an error; callers fall back
// to Reencode of the untouched source.
func (e *Engine) Render(source []byte, t Transform, f Filters) (*Artifact, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	src, err := e.decode(source)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// Print surface is opaque; start from white so transparency and
	// out-of-frame regions come out paper-colored, not black.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	// Geometry: translate to center, rotate, scale, translate back plus
	// the pan offsets. Composed right to left, applied to source points.
	cx, cy := float64(w)/2, float64(h)/2
	m := translate(cx, cy).
		mul(rotate(t.Rotation)).
		mul(scaleBy(t.Scale)).
		mul(translate(-cx+t.TranslateX, -cy+t.TranslateY))

	draw.BiLinear.Transform(dst, f64.Aff3{m.a, m.b, m.c, m.d, m.e, m.f}, src, b, draw.Over, nil)

	// Color filters run after the geometric draw so the blur radius is in
	// destination pixel space.
	applyFilters(dst, f)

	data, err := encodeJPEG(dst)
	if err != nil {
		return nil, err
	}
	return &Artifact{Data: data, ContentType: "image/jpeg", Width: w, Height: h}, nil
}

// Reencode is the fail-closed fallback: the untransformed source re-encoded
// as JPEG. If even decoding fails, the original bytes pass through as-is so
// the wizard is never blocked by the engine.
func (e *Engine) Reencode(source []byte) (*Artifact, error) {
	src, err := e.decode(source)
	if err != nil {
		return &Artifact{Data: source, ContentType: http.DetectContentType(source)}, nil
	}
	b := src.Bounds()
	data, err := encodeJPEG(src)
	if err != nil {
		return &Artifact{Data: source, ContentType: http.DetectContentType(source)}, nil
	}
	return &Artifact{Data: data, ContentType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// Inspect decodes just enough of the source to report its dimensions and
// content type, enforcing the size ceiling. Used at upload time.
func (e *Engine) Inspect(source []byte) (*Artifact, error) {
	if e.MaxSourceBytes > 0 && int64(len(source)) > e.MaxSourceBytes {
		return nil, ErrTooLarge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(source))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	return &Artifact{
		Data:        source,
		ContentType: http.DetectContentType(source),
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

func (e *Engine) decode(source []byte) (image.Image, error) {
	if e.MaxSourceBytes > 0 && int64(len(source)) > e.MaxSourceBytes {
		return nil, ErrTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	return img, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// aff is a 2D affine transform: x' = a*x + b*y + c, y' = d*x + e*y + f.
type aff struct {
	a, b, c float64
	d, e, f float64
}

// mul composes m with n so that n is applied first.
func (m aff) mul(n aff) aff {
	return aff{
		a: m.a*n.a + m.b*n.d,
		b: m.a*n.b + m.b*n.e,
		c: m.a*n.c + m.b*n.f + m.c,
		d: m.d*n.a + m.e*n.d,
		e: m.d*n.b + m.e*n.e,
		f: m.d*n.c + m.e*n.f + m.f,
	}
}

func translate(tx, ty float64) aff {
	return aff{1, 0, tx, 0, 1, ty}
}

func scaleBy(s float64) aff {
	return aff{s, 0, 0, 0, s, 0}
}

// rotate returns an exact quarter-turn rotation, avoiding float drift from
// trigonometry on multiples of 90.
func rotate(degrees int) aff {
	switch degrees {
	case 90:
		return aff{0, -1, 0, 1, 0, 0}
	case 180:
		return aff{-1, 0, 0, 0, -1, 0}
	case 270:
		return aff{0, 1, 0, -1, 0, 0}
	default:
		return aff{1, 0, 0, 0, 1, 0}
	}
}
