package imaging

import (
	"image"

	disintegration "github.com/disintegration/imaging"
)

// SSIM constants for 8-bit dynamic range, per Wang et al.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)

	// ssimWindow is the side of the square comparison window in pixels.
	ssimWindow = 8
)

// SSIM computes the mean structural similarity between two images of equal
// size, in [0,1] (1 for identical images). Both images are converted to
// grayscale and compared window by window on local luminance, contrast and
// structure statistics.
//
// Images with mismatched dimensions or no pixels yield a *ComparisonError;
// that is a failure to compare, not a low similarity.
func SSIM(a, b image.Image) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, comparisonErr("ssim", ErrSizeMismatch)
	}
	if ab.Dx() == 0 || ab.Dy() == 0 {
		return 0, comparisonErr("ssim", ErrEmptyImage)
	}

	ga := grayPixels(a)
	gb := grayPixels(b)
	w, h := ab.Dx(), ab.Dy()

	sum, windows := 0.0, 0
	for y := 0; y+ssimWindow <= h; y += ssimWindow {
		for x := 0; x+ssimWindow <= w; x += ssimWindow {
			sum += windowSSIM(ga, gb, w, x, y)
			windows++
		}
	}
	if windows == 0 {
		// Image smaller than one window: compare it as a single block.
		sum = blockSSIM(ga, gb, w, 0, 0, w, h)
		windows = 1
	}
	return sum / float64(windows), nil
}

func windowSSIM(a, b []float64, stride, x0, y0 int) float64 {
	return blockSSIM(a, b, stride, x0, y0, ssimWindow, ssimWindow)
}

func blockSSIM(a, b []float64, stride, x0, y0, bw, bh int) float64 {
	n := float64(bw * bh)

	var muA, muB float64
	for y := y0; y < y0+bh; y++ {
		for x := x0; x < x0+bw; x++ {
			muA += a[y*stride+x]
			muB += b[y*stride+x]
		}
	}
	muA /= n
	muB /= n

	var varA, varB, cov float64
	for y := y0; y < y0+bh; y++ {
		for x := x0; x < x0+bw; x++ {
			da := a[y*stride+x] - muA
			db := b[y*stride+x] - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	varA /= denom
	varB /= denom
	cov /= denom

	num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}

// grayPixels flattens the image into row-major grayscale intensities.
func grayPixels(img image.Image) []float64 {
	g := disintegration.Grayscale(img)
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// NRGBA grayscale: R == G == B.
			out[y*w+x] = float64(g.Pix[g.PixOffset(x, y)])
		}
	}
	return out
}
