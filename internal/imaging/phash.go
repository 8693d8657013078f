package imaging

import (
	"image"
	"math/bits"

	disintegration "github.com/disintegration/imaging"
)

// SimilarDistanceThreshold is the Hamming distance at or below which two
// perceptual hashes are considered to show the same diagram. Empirically,
// re-renders of one layout land within a handful of bits while different
// layouts differ by 20+.
const SimilarDistanceThreshold = 10

// phashCols x phashRows is the downsample grid for the difference hash; each
// of the 8 rows contributes 8 left-vs-right comparisons for a 64-bit hash.
const (
	phashCols = 9
	phashRows = 8
)

// PerceptualHash returns a 64-bit difference-hash fingerprint of the image.
// The image is grayscaled and resized to a 9x8 grid with a fixed Lanczos
// filter so the hash is deterministic for identical input, and each bit
// records whether a pixel is brighter than its right neighbor. The hash is
// robust to minor shifts, scaling and noise.
func PerceptualHash(img image.Image) uint64 {
	small := disintegration.Resize(disintegration.Grayscale(img), phashCols, phashRows, disintegration.Lanczos)

	var hash uint64
	bit := 0
	for y := 0; y < phashRows; y++ {
		for x := 0; x < phashCols-1; x++ {
			left := small.Pix[small.PixOffset(x, y)]
			right := small.Pix[small.PixOffset(x+1, y)]
			if left > right {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

// HashDistance returns the Hamming distance between two perceptual hashes,
// in [0, 64].
func HashDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// HashSimilarity converts a Hamming distance into a similarity in [0,1].
func HashSimilarity(a, b uint64) float64 {
	return 1 - float64(HashDistance(a, b))/64
}

// IsSimilar reports whether two hashes are within SimilarDistanceThreshold.
func IsSimilar(a, b uint64) bool {
	return HashDistance(a, b) <= SimilarDistanceThreshold
}
