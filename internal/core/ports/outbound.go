package ports

import (
	"context"
	"io"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// SourceFile identifies one document in the corpus source.
type SourceFile struct {
	Name string
	Path string
	// Link is the document's canonical location, surfaced in citations.
	Link string
}

// DocumentSource lists and opens corpus documents.
type DocumentSource interface {
	List(ctx context.Context) ([]SourceFile, error)
	Open(ctx context.Context, file SourceFile) (io.ReadCloser, error)
}

// TextExtractor turns a raw document into pages of plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (domain.ExtractedDocument, error)
}

// Segmenter splits an extracted document into token-bounded passages with
// document-level metadata attached.
type Segmenter interface {
	Segment(doc domain.ExtractedDocument) []domain.Passage
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex is one complete, atomically swappable generation of the
// passage set, queryable through two independent strategies. Implementations
// never leak which backend they are; retrieval logic must not branch on it.
type SearchIndex interface {
	// Rebuild replaces the whole generation: readers see either the prior
	// generation or the new one, never a mix.
	Rebuild(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	// SearchSemantic returns nearest-neighbour candidates. Scores are
	// similarities on a 0-1 scale, higher is more relevant, regardless of
	// the backend's native distance metric.
	SearchSemantic(ctx context.Context, vector []float32, limit int, filters domain.QueryFilters) ([]domain.Candidate, error)
	// SearchLexical returns term-frequency candidates with scores normalized
	// so the best match is 1.0.
	SearchLexical(ctx context.Context, query string, limit int, filters domain.QueryFilters) ([]domain.Candidate, error)
	// Fetch hydrates passage ids to full records, preserving input order and
	// skipping unknown ids.
	Fetch(ctx context.Context, ids []string) ([]domain.Passage, error)
	Count(ctx context.Context) (int, error)
}

// IngestRepository persists corpus rebuild runs and their per-document
// status records.
type IngestRepository interface {
	RecordRun(ctx context.Context, report *domain.IngestReport) error
	LastRun(ctx context.Context) (*domain.IngestReport, error)
}

// MessageQueue carries corpus rebuild requests from the API to the worker.
type MessageQueue interface {
	PublishRebuildRequested(ctx context.Context, runID string) error
	SubscribeRebuildRequested(ctx context.Context, handler func(context.Context, domain.RebuildRequest) error) error
}

// AnswerGenerator produces the grounded, citation-tagged answer text.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, history []domain.ConversationTurn, passages []domain.RankedPassage) (string, error)
}

// SessionStore keeps isolated conversation histories.
type SessionStore interface {
	Create(ctx context.Context) (string, error)
	History(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error)
	AppendTurn(ctx context.Context, sessionID string, turn domain.ConversationTurn) error
	Touch(ctx context.Context, sessionID string) error
}

// Guardrails validates queries before retrieval and answers after
// generation.
type Guardrails interface {
	CheckInput(query string) *domain.GuardrailViolation
	CheckOutput(answer string, knownSources []string) *domain.GuardrailViolation
}
