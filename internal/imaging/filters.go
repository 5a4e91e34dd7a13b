package imaging

import (
	"image"
	"math"
)

// applyFilters runs the color pipeline in place over an RGBA image, in the
// same order as the CSS filter string it mirrors:
// brightness(100+b%) contrast(100+c%) saturate(100+s%) blur(blur px).
func applyFilters(img *image.RGBA, f Filters) {
	if f.IsZero() {
		return
	}

	fb := 1 + f.Brightness/100
	fc := 1 + f.Contrast/100
	fs := 1 + f.Saturation/100

	if fb != 1 || fc != 1 || fs != 1 {
		pix := img.Pix
		for i := 0; i < len(pix); i += 4 {
			r := float64(pix[i])
			g := float64(pix[i+1])
			b := float64(pix[i+2])

			r *= fb
			g *= fb
			b *= fb

			r = (r-128)*fc + 128
			g = (g-128)*fc + 128
			b = (b-128)*fc + 128

			if fs != 1 {
				// Rec. 709 luma, matching the CSS saturate() matrix.
				gray := 0.2126*r + 0.7152*g + 0.0722*b
				r = gray + (r-gray)*fs
				g = gray + (g-gray)*fs
				b = gray + (b-gray)*fs
			}

			pix[i] = clamp8(r)
			pix[i+1] = clamp8(g)
			pix[i+2] = clamp8(b)
		}
	}

	if f.Blur > 0 {
		boxBlur(img, f.Blur)
	}
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// boxBlur approximates a gaussian blur of the given sigma with three
// successive box-blur passes, the usual fast approximation.
func boxBlur(img *image.RGBA, sigma float64) {
	for _, r := range boxRadii(sigma) {
		if r > 0 {
			boxBlurPass(img, r)
		}
	}
}

// boxRadii derives three box radii whose composition approximates a
// gaussian with the given standard deviation.
func boxRadii(sigma float64) [3]int {
	// Ideal box width for n=3 passes.
	wIdeal := math.Sqrt(12*sigma*sigma/3 + 1)
	wl := int(math.Floor(wIdeal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2
	mIdeal := (12*sigma*sigma - float64(3*wl*wl) - float64(4*3*wl) - float64(3*3)) /
		(float64(-4*wl) - 4)
	m := int(math.Round(mIdeal))

	var out [3]int
	for i := 0; i < 3; i++ {
		w := wu
		if i < m {
			w = wl
		}
		out[i] = (w - 1) / 2
	}
	return out
}

// boxBlurPass runs one separable box blur of the given radius.
func boxBlurPass(img *image.RGBA, radius int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint8, len(img.Pix))

	// Horizontal.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sr, sg, sb, sa, n int
			for dx := -radius; dx <= radius; dx++ {
				xx := x + dx
				if xx < 0 || xx >= w {
					continue
				}
				i := y*img.Stride + xx*4
				sr += int(img.Pix[i])
				sg += int(img.Pix[i+1])
				sb += int(img.Pix[i+2])
				sa += int(img.Pix[i+3])
				n++
			}
			i := y*img.Stride + x*4
			tmp[i] = uint8(sr / n)
			tmp[i+1] = uint8(sg / n)
			tmp[i+2] = uint8(sb / n)
			tmp[i+3] = uint8(sa / n)
		}
	}

	// Vertical.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sr, sg, sb, sa, n int
			for dy := -radius; dy <= radius; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				i := yy*img.Stride + x*4
				sr += int(tmp[i])
				sg += int(tmp[i+1])
				sb += int(tmp[i+2])
				sa += int(tmp[i+3])
				n++
			}
			i := y*img.Stride + x*4
			img.Pix[i] = uint8(sr / n)
			img.Pix[i+1] = uint8(sg / n)
			img.Pix[i+2] = uint8(sb / n)
			img.Pix[i+3] = uint8(sa / n)
		}
	}
}
