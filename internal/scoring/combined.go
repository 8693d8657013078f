package scoring

import (
	"image"

	"github.com/docrobotics/layouttune/internal/imaging"
	"github.com/docrobotics/layouttune/internal/params"
)

// QualityClass buckets a combined score for display.
type QualityClass string

const (
	QualityPoor       QualityClass = "poor"
	QualityAcceptable QualityClass = "acceptable"
	QualityGood       QualityClass = "good"
	QualityExcellent  QualityClass = "excellent"
)

// Similarity blend: the windowed structural metric carries more weight than
// the coarse perceptual hash.
const (
	ssimWeight = 0.6
	hashWeight = 0.4
)

// CombinedResult is the full scoring output for one candidate layout.
type CombinedResult struct {
	Score          float64      `json:"score"`
	Class          QualityClass `json:"class"`
	MeetsThreshold bool         `json:"meetsThreshold"`

	Breakdown      Breakdown `json:"breakdown"`
	SSIM           float64   `json:"ssim"`
	HashSimilarity float64   `json:"hashSimilarity"`
}

// CombinedScore fuses geometry readability with visual similarity against a
// reference image into one scalar in [0,1], classifies it, and checks it
// against the caller's target threshold.
//
// When either image is nil the similarity leg is skipped and its weight is
// redistributed onto readability, so geometry-only callers still get a full
// scale score. Image comparison failures propagate as *imaging.ComparisonError.
func CombinedScore(nodes []Node, edges []Edge, layout params.LayoutType, diagram params.DiagramType, reference, generated image.Image, target float64) (*CombinedResult, error) {
	breakdown := Readability(nodes, edges)

	readabilityWeight := 0.5
	if layout == params.LayoutHierarchical {
		// Layered diagrams are judged more on structure than pixel fidelity.
		readabilityWeight = 0.55
	}

	result := &CombinedResult{Breakdown: breakdown}
	if reference == nil || generated == nil {
		result.Score = breakdown.Readability
	} else {
		ssim, err := imaging.SSIM(reference, generated)
		if err != nil {
			return nil, err
		}
		result.SSIM = ssim
		result.HashSimilarity = imaging.HashSimilarity(
			imaging.PerceptualHash(reference), imaging.PerceptualHash(generated))

		similarity := ssimWeight*result.SSIM + hashWeight*result.HashSimilarity
		result.Score = readabilityWeight*breakdown.Readability + (1-readabilityWeight)*similarity
	}
	result.Score = clamp01(result.Score)
	result.Class = Classify(result.Score)
	result.MeetsThreshold = result.Score >= target
	return result, nil
}

// Classify buckets a score into a quality class.
func Classify(score float64) QualityClass {
	switch {
	case score >= 0.8:
		return QualityExcellent
	case score >= 0.6:
		return QualityGood
	case score >= 0.4:
		return QualityAcceptable
	default:
		return QualityPoor
	}
}
