package imaging

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDiagram paints a few "node" rectangles on a white canvas so the images
// have structure for SSIM and hashing to latch onto.
func testDiagram(w, h int, boxes []image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for _, box := range boxes {
		for y := box.Min.Y; y < box.Max.Y; y++ {
			for x := box.Min.X; x < box.Max.X; x++ {
				img.SetNRGBA(x, y, color.NRGBA{R: 40, G: 40, B: 120, A: 255})
			}
		}
	}
	return img
}

func noisyImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestSSIMIdenticalImages(t *testing.T) {
	img := testDiagram(128, 128, []image.Rectangle{
		image.Rect(10, 10, 40, 30),
		image.Rect(70, 60, 110, 90),
	})
	score, err := SSIM(img, img)
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)
}

func TestSSIMDissimilarImages(t *testing.T) {
	a := testDiagram(128, 128, []image.Rectangle{image.Rect(5, 5, 60, 60)})
	b := noisyImage(128, 128, 99)
	score, err := SSIM(a, b)
	require.NoError(t, err)
	assert.Less(t, score, 0.5)
}

func TestSSIMSizeMismatchIsComparisonError(t *testing.T) {
	a := testDiagram(64, 64, nil)
	b := testDiagram(128, 64, nil)
	_, err := SSIM(a, b)
	require.Error(t, err)

	var cmpErr *ComparisonError
	require.True(t, errors.As(err, &cmpErr))
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestPerceptualHashSelfDistanceZero(t *testing.T) {
	img := testDiagram(200, 150, []image.Rectangle{
		image.Rect(20, 20, 80, 50),
		image.Rect(120, 80, 180, 130),
	})
	h1 := PerceptualHash(img)
	h2 := PerceptualHash(img)
	assert.Equal(t, 0, HashDistance(h1, h2))
	assert.Equal(t, 1.0, HashSimilarity(h1, h2))
	assert.True(t, IsSimilar(h1, h2))
}

func TestPerceptualHashDetectsDifferentLayouts(t *testing.T) {
	a := testDiagram(200, 150, []image.Rectangle{image.Rect(10, 10, 60, 60)})
	b := testDiagram(200, 150, []image.Rectangle{image.Rect(130, 90, 190, 140)})
	assert.Greater(t, HashDistance(PerceptualHash(a), PerceptualHash(b)), SimilarDistanceThreshold)
}

func TestDiffHeatmapIdentical(t *testing.T) {
	img := testDiagram(96, 96, []image.Rectangle{image.Rect(8, 8, 40, 40)})
	result, err := DiffHeatmap(img, img)
	require.NoError(t, err)

	assert.Zero(t, result.MeanDiff)
	assert.Zero(t, result.MaxDiff)
	assert.Zero(t, result.PercentDifferent)
	assert.Empty(t, result.Hotspots)
}

func TestDiffHeatmapLocalizesChange(t *testing.T) {
	a := testDiagram(96, 96, nil)
	b := testDiagram(96, 96, []image.Rectangle{image.Rect(0, 0, 24, 24)})
	result, err := DiffHeatmap(a, b)
	require.NoError(t, err)

	assert.Greater(t, result.MaxDiff, float64(significantDiff))
	assert.Greater(t, result.PercentDifferent, 0.0)
	require.NotEmpty(t, result.Hotspots)
	// The hotspot must cover the changed corner.
	assert.True(t, result.Hotspots[0].Rect.Overlaps(image.Rect(0, 0, 24, 24)))
}

func TestDiffHeatmapSizeMismatch(t *testing.T) {
	_, err := DiffHeatmap(testDiagram(32, 32, nil), testDiagram(64, 32, nil))
	var cmpErr *ComparisonError
	require.True(t, errors.As(err, &cmpErr))
	assert.Equal(t, "diff", cmpErr.Op)
}
