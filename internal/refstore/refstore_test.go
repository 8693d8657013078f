package refstore

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	layoutimg "github.com/docrobotics/layouttune/internal/imaging"
)

func testImage(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	// A diagonal stripe keeps the perceptual hash away from the all-flat
	// degenerate case.
	for i := 0; i < w && i < h; i++ {
		img.Set(i, i, color.Black)
	}
	return img
}

func newTestStore(t *testing.T, cacheSize int) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), cacheSize)
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t, 8)
	src := testImage(64, 48, color.White)

	meta, err := s.Put("flowchart-v1", src)
	require.NoError(t, err)
	assert.Equal(t, 64, meta.Width)
	assert.Equal(t, 48, meta.Height)
	assert.Equal(t, layoutimg.PerceptualHash(src), meta.Hash)

	img, got, err := s.Get("flowchart-v1")
	require.NoError(t, err)
	assert.Equal(t, meta, got)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t, 8)
	_, _, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSurvivesCacheEviction(t *testing.T) {
	s := newTestStore(t, 1)
	_, err := s.Put("a", testImage(16, 16, color.White))
	require.NoError(t, err)
	_, err = s.Put("b", testImage(16, 16, color.White))
	require.NoError(t, err)

	// "a" was evicted by the single-slot cache; it must reload from disk.
	_, meta, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", meta.ID)
}

func TestListSorted(t *testing.T) {
	s := newTestStore(t, 8)
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := s.Put(id, testImage(8, 8, color.White))
		require.NoError(t, err)
	}

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, ids)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, 8)
	_, err := s.Put("gone", testImage(8, 8, color.White))
	require.NoError(t, err)

	require.NoError(t, s.Remove("gone"))
	_, _, err = s.Get("gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Remove("gone"), "removing twice is not an error")
}

func TestIDValidation(t *testing.T) {
	s := newTestStore(t, 8)
	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		_, _, err := s.Get(id)
		assert.Error(t, err, "id %q must be rejected", id)
	}
}
