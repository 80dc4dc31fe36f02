package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
)

// IngestConfig tunes the rebuild pipeline.
type IngestConfig struct {
	EmbedBatchSize   int
	EmbedConcurrency int
}

func (c IngestConfig) normalize() IngestConfig {
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 25
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	return c
}

// RebuildCorpusUseCase turns the raw corpus into one new index generation:
// list, extract, segment, embed, swap. The whole rebuild is a single logical
// transaction; readers see either the old generation or the new one.
type RebuildCorpusUseCase struct {
	source    ports.DocumentSource
	extractor ports.TextExtractor
	segmenter ports.Segmenter
	embedder  ports.Embedder
	index     ports.SearchIndex
	repo      ports.IngestRepository
	cfg       IngestConfig
	logger    *slog.Logger
}

func NewRebuildCorpusUseCase(
	source ports.DocumentSource,
	extractor ports.TextExtractor,
	segmenter ports.Segmenter,
	embedder ports.Embedder,
	index ports.SearchIndex,
	repo ports.IngestRepository,
	cfg IngestConfig,
	logger *slog.Logger,
) *RebuildCorpusUseCase {
	return &RebuildCorpusUseCase{
		source:    source,
		extractor: extractor,
		segmenter: segmenter,
		embedder:  embedder,
		index:     index,
		repo:      repo,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

func (uc *RebuildCorpusUseCase) Rebuild(ctx context.Context, runID string) (*domain.IngestReport, error) {
	started := time.Now().UTC()

	files, err := uc.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus documents: %w", err)
	}

	var passages []domain.Passage
	details := make([]domain.IngestDetail, 0, len(files))
	for _, file := range files {
		detail, docPassages := uc.processDocument(ctx, file)
		details = append(details, detail)
		passages = append(passages, docPassages...)
	}

	vectors, err := uc.embedAll(ctx, passages)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "embed passages", err)
	}

	if err := uc.index.Rebuild(ctx, passages, vectors); err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "rebuild index generation", err)
	}

	indexed := 0
	for _, d := range details {
		if d.Status == domain.IngestIndexed {
			indexed++
		}
	}

	report := &domain.IngestReport{
		RunID:              runID,
		Generation:         runID,
		StartedAt:          started,
		FinishedAt:         time.Now().UTC(),
		DocumentsProcessed: indexed,
		TotalPassages:      len(passages),
		Details:            details,
	}

	if err := uc.repo.RecordRun(ctx, report); err != nil {
		return nil, fmt.Errorf("record ingest run: %w", err)
	}

	uc.logger.Info("corpus_rebuild_complete",
		"run_id", runID,
		"documents", len(files),
		"indexed", indexed,
		"passages", len(passages),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

// processDocument extracts and segments one file. A failure here is recorded
// and skipped; it never aborts the batch.
func (uc *RebuildCorpusUseCase) processDocument(ctx context.Context, file ports.SourceFile) (domain.IngestDetail, []domain.Passage) {
	reader, err := uc.source.Open(ctx, file)
	if err != nil {
		return failedDetail(file.Name, fmt.Errorf("open: %w", err)), nil
	}
	defer reader.Close()

	doc, err := uc.extractor.Extract(ctx, file.Name, reader)
	if err != nil {
		return failedDetail(file.Name, fmt.Errorf("extract: %w", err)), nil
	}
	doc.ExternalLink = file.Link

	if len(doc.Pages) == 0 {
		uc.logger.Warn("document_has_no_text", "filename", file.Name)
		return domain.IngestDetail{
			Filename:     file.Name,
			DocumentType: domain.TypeUnknown,
			Status:       domain.IngestNoText,
		}, nil
	}

	passages := uc.segmenter.Segment(doc)
	detail := domain.IngestDetail{
		Filename: file.Name,
		Passages: len(passages),
		Status:   domain.IngestIndexed,
	}
	if len(passages) > 0 {
		// Type, year and regions are document-level facts; any passage
		// carries the authoritative copy.
		detail.DocumentType = passages[0].DocumentType
		detail.Year = passages[0].Year
	}
	uc.logger.Info("document_segmented",
		"filename", file.Name,
		"passages", len(passages),
		"doc_type", detail.DocumentType,
		"year", detail.Year,
	)
	return detail, passages
}

func failedDetail(filename string, err error) domain.IngestDetail {
	return domain.IngestDetail{
		Filename:     filename,
		DocumentType: domain.TypeUnknown,
		Status:       domain.IngestFailed,
		Error:        err.Error(),
	}
}

// embedAll embeds passages in fixed-size batches with bounded parallelism.
// Embedding is idempotent and stateless per batch, so batch order only
// matters for reassembly.
func (uc *RebuildCorpusUseCase) embedAll(ctx context.Context, passages []domain.Passage) ([][]float32, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		texts []string
	}

	batches := make([]batch, 0, len(passages)/uc.cfg.EmbedBatchSize+1)
	for start := 0; start < len(passages); start += uc.cfg.EmbedBatchSize {
		end := start + uc.cfg.EmbedBatchSize
		if end > len(passages) {
			end = len(passages)
		}
		texts := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			texts = append(texts, p.Text)
		}
		batches = append(batches, batch{start: start, texts: texts})
	}

	vectors := make([][]float32, len(passages))
	sem := make(chan struct{}, uc.cfg.EmbedConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, b := range batches {
		wg.Add(1)
		go func(b batch) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			got, err := uc.embedder.Embed(ctx, b.texts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if len(got) != len(b.texts) {
				if firstErr == nil {
					firstErr = fmt.Errorf("vectors/passages mismatch: %d/%d", len(got), len(b.texts))
				}
				return
			}
			copy(vectors[b.start:], got)
		}(b)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

var _ ports.CorpusIndexer = (*RebuildCorpusUseCase)(nil)
