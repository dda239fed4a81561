package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/core/ports"
)

const reindexBatchSize = 64

// ReindexUseCase re-embeds every unit of one source set and rewrites its
// vector index points. Point ids are derived from unit ids, so a rerun
// overwrites rather than duplicates.
type ReindexUseCase struct {
	corpus   ports.CorpusStore
	vectors  ports.VectorIndex
	embedder ports.Embedder
	logger   *slog.Logger
}

func NewReindexUseCase(
	corpus ports.CorpusStore,
	vectors ports.VectorIndex,
	embedder ports.Embedder,
	logger *slog.Logger,
) *ReindexUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReindexUseCase{
		corpus:   corpus,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

func (uc *ReindexUseCase) ReindexSourceSet(ctx context.Context, sourceSet string) error {
	sourceSet = strings.TrimSpace(sourceSet)
	if sourceSet == "" {
		return domain.WrapError(domain.ErrInvalidInput, "reindex source set", fmt.Errorf("empty source set"))
	}

	units, err := uc.corpus.ListUnitsBySourceSet(ctx, sourceSet)
	if err != nil {
		return fmt.Errorf("list units for %s: %w", sourceSet, err)
	}
	if len(units) == 0 {
		uc.logger.Warn("reindex_empty_source_set", "source_set", sourceSet)
		return nil
	}

	indexed := 0
	for start := 0; start < len(units); start += reindexBatchSize {
		end := start + reindexBatchSize
		if end > len(units) {
			end = len(units)
		}
		batch := units[start:end]

		texts := make([]string, len(batch))
		for i, unit := range batch {
			texts[i] = embeddingText(unit)
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed batch at %d: got %d vectors for %d units", start, len(vectors), len(batch))
		}
		if err := uc.vectors.IndexUnits(ctx, batch, vectors); err != nil {
			return fmt.Errorf("index batch at %d: %w", start, err)
		}
		indexed += len(batch)
	}

	uc.logger.Info("reindex_completed",
		"source_set", sourceSet,
		"units", indexed,
	)
	return nil
}

// embeddingText prefers the ingestion-normalized text and falls back to the
// raw chunk, always appending the meaning so semantic search can land on
// commentary phrasing.
func embeddingText(unit domain.RetrievedUnit) string {
	parts := make([]string, 0, 3)
	if unit.NormalizedText != "" {
		parts = append(parts, unit.NormalizedText)
	} else if unit.ChunkText != "" {
		parts = append(parts, unit.ChunkText)
	}
	if unit.MeaningText != "" {
		parts = append(parts, unit.MeaningText)
	}
	if len(parts) == 0 {
		parts = append(parts, strings.Join(unit.ChopaiLines, "\n"))
	}
	return strings.Join(parts, "\n")
}
