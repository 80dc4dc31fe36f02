package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowbase/sales-copilot/internal/config"
	"github.com/knowbase/sales-copilot/internal/core/ports"
	"github.com/knowbase/sales-copilot/internal/core/usecase"
	"github.com/knowbase/sales-copilot/internal/infrastructure/extractor"
	"github.com/knowbase/sales-copilot/internal/infrastructure/guardrails"
	"github.com/knowbase/sales-copilot/internal/infrastructure/index/memory"
	"github.com/knowbase/sales-copilot/internal/infrastructure/index/qdrant"
	"github.com/knowbase/sales-copilot/internal/infrastructure/llm/ollama"
	natsqueue "github.com/knowbase/sales-copilot/internal/infrastructure/queue/nats"
	"github.com/knowbase/sales-copilot/internal/infrastructure/repository/postgres"
	"github.com/knowbase/sales-copilot/internal/infrastructure/resilience"
	"github.com/knowbase/sales-copilot/internal/infrastructure/segment"
	"github.com/knowbase/sales-copilot/internal/infrastructure/session"
	"github.com/knowbase/sales-copilot/internal/infrastructure/source/localfs"
	"github.com/knowbase/sales-copilot/internal/infrastructure/tokenizer"
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	IngestRepo ports.IngestRepository
	Index      ports.SearchIndex
	Sessions   *session.Store

	AnswerUC  ports.QueryAnswerer
	RebuildUC ports.CorpusIndexer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ingestRepo := postgres.NewIngestRepository(db)
	if err := ingestRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithExecutor(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	index, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}

	tables, err := config.LoadRuleTables(cfg.RuleTablesFile)
	if err != nil {
		return nil, fmt.Errorf("load rule tables: %w", err)
	}
	links, err := config.LoadDocumentLinks(cfg.DocumentLinks)
	if err != nil {
		return nil, fmt.Errorf("load document links: %w", err)
	}

	counter := buildTokenCounter(cfg.TokenizerEncoding, logger)
	segmenter := segment.New(cfg.WindowTokens, cfg.OverlapTokens, cfg.MaxPassageChars, counter, tables)

	source := localfs.New(cfg.CorpusDir, links)
	extractors := extractor.NewRegistry(logger)

	sessions := session.NewStore(cfg.SessionTTL)
	sessions.StartJanitor(ctx, 0)

	guards := guardrails.New(cfg.MaxQueryLength, logger)

	rebuildUC := usecase.NewRebuildCorpusUseCase(
		source, extractors, segmenter, embedder, index, ingestRepo,
		usecase.IngestConfig{
			EmbedBatchSize:   cfg.EmbedBatchSize,
			EmbedConcurrency: cfg.EmbedConcurrency,
		},
		logger,
	)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, index, tables, usecase.RetrievalConfig{
		TopKSemantic: cfg.TopKSemantic,
		TopKLexical:  cfg.TopKLexical,
		FinalTopK:    cfg.FinalTopK,
		RRFK:         cfg.RRFK,
		Thresholds: usecase.ConfidenceThresholds{
			High:   cfg.ConfidenceHigh,
			Medium: cfg.ConfidenceMedium,
		},
	})
	answerUC := usecase.NewAnswerUseCase(retrieveUC, generator, sessions, guards, usecase.AnswerConfig{
		NoAnswerThreshold: cfg.NoAnswerThreshold,
		MaxHistoryTurns:   cfg.MaxHistoryTurns,
	}, logger)

	return &App{
		Config:     cfg,
		Queue:      queue,
		IngestRepo: ingestRepo,
		Index:      index,
		Sessions:   sessions,
		AnswerUC:   answerUC,
		RebuildUC:  rebuildUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func buildIndex(cfg config.Config) (ports.SearchIndex, error) {
	switch cfg.IndexBackend {
	case "qdrant", "":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantAlias), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

// buildTokenCounter prefers a real BPE encoding; if the encoding cannot be
// loaded (offline vocab cache missing) segmentation still works on word
// counts.
func buildTokenCounter(encoding string, logger *slog.Logger) segment.TokenCounter {
	counter, err := tokenizer.NewTiktoken(encoding)
	if err != nil {
		logger.Warn("tiktoken_unavailable_falling_back_to_words", "encoding", encoding, "error", err)
		return tokenizer.Words{}
	}
	return counter
}
