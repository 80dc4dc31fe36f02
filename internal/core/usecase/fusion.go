package usecase

import (
	"sort"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// fuseCandidatesRRF merges two ranked lists with Reciprocal Rank Fusion:
// each item contributes 1/(k + 1-based rank) per list it appears in, using
// positions only, never the raw scores. That keeps fusion indifferent to the
// unrelated score scales of the two strategies. Ties keep insertion order,
// semantic list first.
func fuseCandidatesRRF(semantic, lexical []domain.Candidate, k int) []domain.Candidate {
	if k <= 0 {
		k = 60
	}

	scores := make(map[string]float64, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))

	addList := func(list []domain.Candidate) {
		for rank, c := range list {
			if _, seen := scores[c.PassageID]; !seen {
				order = append(order, c.PassageID)
			}
			scores[c.PassageID] += 1.0 / float64(k+rank+1)
		}
	}
	addList(semantic)
	addList(lexical)

	fused := make([]domain.Candidate, 0, len(order))
	for _, id := range order {
		fused = append(fused, domain.Candidate{PassageID: id, Score: scores[id]})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
