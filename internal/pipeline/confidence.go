package pipeline

import (
	"math"

	"github.com/joseph-ayodele/form-extractor/constants"
)

// adjustConfidence pulls the document score down when detection quality is
// below threshold. It never raises the score.
func adjustConfidence(score, quality float64) float64 {
	if quality >= constants.ImageConfidenceThreshold {
		return score
	}
	return math.Min(score, 0.7*quality+0.3*score)
}
