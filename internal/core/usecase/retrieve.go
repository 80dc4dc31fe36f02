package usecase

import (
	"context"
	"sync"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
)

// RetrievalConfig is the tunable surface of the hybrid retrieval core.
type RetrievalConfig struct {
	TopKSemantic int
	TopKLexical  int
	FinalTopK    int
	RRFK         int
	Thresholds   ConfidenceThresholds
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopKSemantic: 15,
		TopKLexical:  15,
		FinalTopK:    5,
		RRFK:         60,
		Thresholds:   DefaultConfidenceThresholds(),
	}
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	def := DefaultRetrievalConfig()
	if c.TopKSemantic <= 0 {
		c.TopKSemantic = def.TopKSemantic
	}
	if c.TopKLexical <= 0 {
		c.TopKLexical = def.TopKLexical
	}
	if c.FinalTopK <= 0 {
		c.FinalTopK = def.FinalTopK
	}
	if c.RRFK <= 0 {
		c.RRFK = def.RRFK
	}
	if c.Thresholds.High <= 0 {
		c.Thresholds.High = def.Thresholds.High
	}
	if c.Thresholds.Medium <= 0 {
		c.Thresholds.Medium = def.Thresholds.Medium
	}
	return c
}

// RetrieveUseCase is the hybrid retrieval and ranking core. It is stateless
// per query: arbitrary concurrent callers share only the read-only index
// snapshot and the rule tables.
type RetrieveUseCase struct {
	embedder ports.Embedder
	index    ports.SearchIndex
	tables   domain.RuleTables
	cfg      RetrievalConfig
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	index ports.SearchIndex,
	tables domain.RuleTables,
	cfg RetrievalConfig,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		index:    index,
		tables:   tables,
		cfg:      cfg.normalize(),
	}
}

// Retrieve runs the full pipeline: filter extraction, concurrent semantic
// and lexical search, unfiltered fallback, rank fusion, hydration and
// confidence estimation.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string) (*domain.RetrievalResult, error) {
	count, err := uc.index.Count(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "count indexed passages", err)
	}
	if count == 0 {
		return &domain.RetrievalResult{
			Tier:       domain.ConfidenceLow,
			IndexEmpty: true,
		}, nil
	}

	filters := AnalyzeQuery(query, uc.tables)

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "embed query", err)
	}

	semantic, lexical, err := uc.searchBoth(ctx, query, queryVector, filters)
	if err != nil {
		return nil, err
	}

	// A filter naming metadata that matches nothing must still produce the
	// best unfiltered guess, not an empty answer.
	filtersDropped := false
	if len(semantic) == 0 && len(lexical) == 0 && !filters.IsZero() {
		semantic, lexical, err = uc.searchBoth(ctx, query, queryVector, domain.QueryFilters{})
		if err != nil {
			return nil, err
		}
		filtersDropped = true
	}

	fused := trimCandidates(fuseCandidatesRRF(semantic, lexical, uc.cfg.RRFK), uc.cfg.FinalTopK)

	ranked, err := uc.hydrate(ctx, fused, semantic)
	if err != nil {
		return nil, err
	}

	tier, score := estimateConfidence(ranked, uc.cfg.Thresholds)
	return &domain.RetrievalResult{
		Passages:        ranked,
		Tier:            tier,
		ConfidenceScore: score,
		Filters:         filters,
		FiltersDropped:  filtersDropped,
	}, nil
}

// searchBoth runs the two strategies concurrently; they share no mutable
// state and have no ordering dependency.
func (uc *RetrieveUseCase) searchBoth(
	ctx context.Context,
	query string,
	queryVector []float32,
	filters domain.QueryFilters,
) (semantic, lexical []domain.Candidate, err error) {
	var wg sync.WaitGroup
	var semErr, lexErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		semantic, semErr = uc.index.SearchSemantic(ctx, queryVector, uc.cfg.TopKSemantic, filters)
	}()
	go func() {
		defer wg.Done()
		lexical, lexErr = uc.index.SearchLexical(ctx, query, uc.cfg.TopKLexical, filters)
	}()
	wg.Wait()

	if semErr != nil {
		return nil, nil, domain.WrapError(domain.ErrBackendUnavailable, "semantic search", semErr)
	}
	if lexErr != nil {
		return nil, nil, domain.WrapError(domain.ErrBackendUnavailable, "lexical search", lexErr)
	}
	return semantic, lexical, nil
}

func (uc *RetrieveUseCase) hydrate(
	ctx context.Context,
	fused []domain.Candidate,
	semantic []domain.Candidate,
) ([]domain.RankedPassage, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(fused))
	fusedScore := make(map[string]float64, len(fused))
	for _, c := range fused {
		ids = append(ids, c.PassageID)
		fusedScore[c.PassageID] = c.Score
	}

	semScore := make(map[string]float64, len(semantic))
	for _, c := range semantic {
		semScore[c.PassageID] = c.Score
	}

	passages, err := uc.index.Fetch(ctx, ids)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "hydrate passages", err)
	}

	ranked := make([]domain.RankedPassage, 0, len(passages))
	for _, p := range passages {
		ranked = append(ranked, domain.RankedPassage{
			Passage:       p,
			SemanticScore: semScore[p.ID],
			FusedScore:    fusedScore[p.ID],
		})
	}
	return ranked, nil
}

var _ ports.PassageRetriever = (*RetrieveUseCase)(nil)
