package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
)

// Index is the embedded search backend: one immutable generation snapshot
// behind an atomic pointer. Rebuild constructs the next generation fully,
// then swaps; readers always see a complete snapshot.
type Index struct {
	gen atomic.Pointer[generation]
}

type generation struct {
	passages []domain.Passage
	byID     map[string]int
	vectors  [][]float32
}

var _ ports.SearchIndex = (*Index)(nil)

func New() *Index {
	return &Index{}
}

func (x *Index) Rebuild(_ context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages/vectors mismatch: %d/%d", len(passages), len(vectors))
	}

	next := &generation{
		passages: append([]domain.Passage(nil), passages...),
		byID:     make(map[string]int, len(passages)),
		vectors:  append([][]float32(nil), vectors...),
	}
	for i, p := range next.passages {
		if _, dup := next.byID[p.ID]; dup {
			return fmt.Errorf("duplicate passage id in generation: %s", p.ID)
		}
		next.byID[p.ID] = i
	}

	x.gen.Store(next)
	return nil
}

func (x *Index) Count(context.Context) (int, error) {
	gen := x.gen.Load()
	if gen == nil {
		return 0, nil
	}
	return len(gen.passages), nil
}

// SearchSemantic ranks passages by cosine similarity to the query vector.
// The native metric is cosine distance d in [0,2]; reported scores are
// 1 - d/2 so callers always see 0-1, higher is better.
func (x *Index) SearchSemantic(_ context.Context, vector []float32, limit int, filters domain.QueryFilters) ([]domain.Candidate, error) {
	gen := x.gen.Load()
	if gen == nil || len(vector) == 0 {
		return nil, nil
	}

	candidates := make([]domain.Candidate, 0, limit)
	for i, p := range gen.passages {
		if !filters.Match(p) {
			continue
		}
		cos := cosineSimilarity(vector, gen.vectors[i])
		dist := 1.0 - cos
		candidates = append(candidates, domain.Candidate{
			PassageID: p.ID,
			Score:     1.0 - dist/2.0,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return head(candidates, limit), nil
}

// SearchLexical scores passages by term frequency of the query's lowercase
// whitespace tokens, normalized so the best match in the result set is 1.0.
func (x *Index) SearchLexical(_ context.Context, query string, limit int, filters domain.QueryFilters) ([]domain.Candidate, error) {
	gen := x.gen.Load()
	if gen == nil {
		return nil, nil
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	candidates := make([]domain.Candidate, 0, limit)
	for _, p := range gen.passages {
		if !filters.Match(p) {
			continue
		}
		score := termFrequencyScore(terms, p.Text)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, domain.Candidate{PassageID: p.ID, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	candidates = head(candidates, limit)

	if len(candidates) > 0 && candidates[0].Score > 0 {
		top := candidates[0].Score
		for i := range candidates {
			candidates[i].Score /= top
		}
	}
	return candidates, nil
}

func (x *Index) Fetch(_ context.Context, ids []string) ([]domain.Passage, error) {
	gen := x.gen.Load()
	if gen == nil {
		return nil, nil
	}
	out := make([]domain.Passage, 0, len(ids))
	for _, id := range ids {
		if i, ok := gen.byID[id]; ok {
			out = append(out, gen.passages[i])
		}
	}
	return out, nil
}

func head(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}

func termFrequencyScore(terms []string, text string) float64 {
	passageTokens := strings.Fields(strings.ToLower(text))
	counts := make(map[string]int, len(passageTokens))
	for _, t := range passageTokens {
		counts[t]++
	}
	score := 0.0
	for _, term := range terms {
		score += float64(counts[term])
	}
	return score
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
