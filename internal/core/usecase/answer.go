package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
)

const noAnswerMessage = "I don't have relevant information in our knowledge base for this query. " +
	"The available proposals, case studies and whitepapers don't appear to cover this topic. " +
	"Please try a different question or check with the source team."

// AnswerConfig gates and shapes answer generation.
type AnswerConfig struct {
	// NoAnswerThreshold refuses generation outright below this confidence.
	NoAnswerThreshold float64
	// MaxHistoryTurns bounds how much conversation history feeds the prompt.
	MaxHistoryTurns int
}

func (c AnswerConfig) normalize() AnswerConfig {
	if c.NoAnswerThreshold <= 0 {
		c.NoAnswerThreshold = 0.40
	}
	if c.MaxHistoryTurns <= 0 {
		c.MaxHistoryTurns = 10
	}
	return c
}

// AnswerUseCase wraps the retrieval core with guardrails, session history,
// LLM generation and citation parsing.
type AnswerUseCase struct {
	retriever ports.PassageRetriever
	generator ports.AnswerGenerator
	sessions  ports.SessionStore
	guards    ports.Guardrails
	cfg       AnswerConfig
	logger    *slog.Logger
}

func NewAnswerUseCase(
	retriever ports.PassageRetriever,
	generator ports.AnswerGenerator,
	sessions ports.SessionStore,
	guards ports.Guardrails,
	cfg AnswerConfig,
	logger *slog.Logger,
) *AnswerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		retriever: retriever,
		generator: generator,
		sessions:  sessions,
		guards:    guards,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, sessionID, query string) (*domain.QueryResponse, error) {
	if violation := uc.guards.CheckInput(query); violation != nil {
		return &domain.QueryResponse{
			SessionID:          sessionID,
			Citations:          []domain.Citation{},
			GuardrailTriggered: violation,
		}, nil
	}

	result, err := uc.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}
	if result.IndexEmpty {
		return nil, domain.WrapError(domain.ErrEmptyIndex, "answer query", fmt.Errorf("no documents have been ingested yet"))
	}

	if len(result.Passages) == 0 || result.ConfidenceScore < uc.cfg.NoAnswerThreshold {
		return uc.refuse(ctx, sessionID, query, result)
	}

	history, err := uc.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	if len(history) > uc.cfg.MaxHistoryTurns {
		history = history[len(history)-uc.cfg.MaxHistoryTurns:]
	}

	raw, err := uc.generator.GenerateAnswer(ctx, query, history, result.Passages)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	intent, answer := parseIntent(raw)
	citations := parseCitations(answer, result.Passages)
	if len(citations) == 0 {
		citations = implicitCitations(result.Passages)
	}

	sources := make([]string, 0, len(result.Passages))
	for _, p := range result.Passages {
		sources = append(sources, p.SourceDocument)
	}
	violation := uc.guards.CheckOutput(answer, sources)

	if result.Tier == domain.ConfidenceLow {
		answer += "\n\n_Note: this answer is based on limited matches in the knowledge base and may be incomplete._"
	}

	uc.record(ctx, sessionID, query, answer, citations)

	return &domain.QueryResponse{
		SessionID:          sessionID,
		Answer:             answer,
		Citations:          citations,
		Confidence:         result.Tier,
		ConfidenceScore:    result.ConfidenceScore,
		Intent:             intent,
		GuardrailTriggered: violation,
		FiltersDropped:     result.FiltersDropped,
	}, nil
}

func (uc *AnswerUseCase) refuse(ctx context.Context, sessionID, query string, result *domain.RetrievalResult) (*domain.QueryResponse, error) {
	uc.record(ctx, sessionID, query, noAnswerMessage, nil)
	return &domain.QueryResponse{
		SessionID:       sessionID,
		Answer:          noAnswerMessage,
		Citations:       []domain.Citation{},
		Confidence:      domain.ConfidenceLow,
		ConfidenceScore: result.ConfidenceScore,
		Intent:          "general_query",
		FiltersDropped:  result.FiltersDropped,
	}, nil
}

// record appends the turn pair to the session. A failed append (typically a
// session that expired mid-request) loses the turn but never the answer.
func (uc *AnswerUseCase) record(ctx context.Context, sessionID, query, answer string, citations []domain.Citation) {
	turns := []domain.ConversationTurn{
		{Role: "user", Content: query},
		{Role: "assistant", Content: answer, Citations: citations},
	}
	for _, turn := range turns {
		if err := uc.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
			uc.logger.Warn("append_turn_failed", "session_id", sessionID, "role", turn.Role, "error", err)
		}
	}
}

var _ ports.QueryAnswerer = (*AnswerUseCase)(nil)
