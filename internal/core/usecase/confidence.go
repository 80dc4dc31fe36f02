package usecase

import "github.com/knowbase/sales-copilot/internal/core/domain"

// ConfidenceThresholds gates answer generation downstream. Defaults follow
// the documented configuration surface.
type ConfidenceThresholds struct {
	High   float64
	Medium float64
}

func DefaultConfidenceThresholds() ConfidenceThresholds {
	return ConfidenceThresholds{High: 0.80, Medium: 0.55}
}

// estimateConfidence reduces the top results to one scalar: the arithmetic
// mean of the semantic similarity of the top 3 results (or fewer, if fewer
// exist). The fused rank score plays no part here.
func estimateConfidence(results []domain.RankedPassage, thresholds ConfidenceThresholds) (domain.ConfidenceTier, float64) {
	if len(results) == 0 {
		return domain.ConfidenceLow, 0.0
	}

	n := len(results)
	if n > 3 {
		n = 3
	}
	sum := 0.0
	for _, r := range results[:n] {
		sum += r.SemanticScore
	}
	score := sum / float64(n)

	switch {
	case score >= thresholds.High:
		return domain.ConfidenceHigh, score
	case score >= thresholds.Medium:
		return domain.ConfidenceMedium, score
	default:
		return domain.ConfidenceLow, score
	}
}
