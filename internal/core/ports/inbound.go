package ports

import (
	"context"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// PassageRetriever is the inbound contract of the hybrid retrieval core.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string) (*domain.RetrievalResult, error)
}

// QueryAnswerer is the inbound contract for conversational, citation-backed
// answers.
type QueryAnswerer interface {
	Answer(ctx context.Context, sessionID, query string) (*domain.QueryResponse, error)
}

// CorpusIndexer rebuilds the searchable passage set from the corpus source.
type CorpusIndexer interface {
	Rebuild(ctx context.Context, runID string) (*domain.IngestReport, error)
}
