package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate  = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}\b`)
	reEmail = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	rePhone = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	reLabel = regexp.MustCompile(`(?m)^[a-z][a-z ]{1,30}:`)
)

func hasDatePattern(s string) bool  { return reDate.MatchString(s) }
func hasEmailPattern(s string) bool { return reEmail.MatchString(s) }
func hasPhonePattern(s string) bool { return rePhone.MatchString(s) }
func hasLabelPattern(s string) bool { return reLabel.MatchString(s) }

// heuristicConfidence scores how form-like the detected text looks.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if hasLabelPattern(txtL) {
		score += 0.25
	}
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasEmailPattern(txtL) {
		score += 0.1
	}
	if hasPhonePattern(txtL) {
		score += 0.1
	}
	if len(txt) > 120 {
		score += 0.1
	}
	return clamp01(score)
}

// Quality blends detector confidence with the text heuristic, weighting the
// detector higher when it reported anything.
func (r RawDetectionResult) Quality() float64 {
	if r.Degraded {
		return 0
	}
	heur := heuristicConfidence(r.VisualContext)
	if mean := r.MeanConfidence(); mean > 0 {
		return clamp01(0.7*mean + 0.3*heur)
	}
	return heur
}
