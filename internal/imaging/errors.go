// Package imaging compares rendered screenshots against reference images.
// It provides a windowed structural-similarity metric, a 64-bit perceptual
// hash with Hamming-distance comparison, and a per-pixel difference heatmap.
package imaging

import (
	"errors"
	"fmt"
)

// Comparison failures are reported separately from "compared and found
// dissimilar": a dissimilar pair returns a low score, a broken pair returns a
// *ComparisonError wrapping one of these sentinels.
var (
	ErrSizeMismatch = errors.New("image dimensions do not match")
	ErrEmptyImage   = errors.New("image has no pixels")
)

// ComparisonError marks a comparison that could not be carried out at all.
type ComparisonError struct {
	// Op is the comparison that failed (ssim, diff).
	Op  string
	Err error
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("image comparison %s: %v", e.Op, e.Err)
}

func (e *ComparisonError) Unwrap() error { return e.Err }

func comparisonErr(op string, err error) *ComparisonError {
	return &ComparisonError{Op: op, Err: err}
}
