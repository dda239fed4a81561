package usecase

import (
	"context"
	"log/slog"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/core/ports"
)

// RetrievalService runs one hybrid lexical+vector search: every query
// variant hits both indexes, the streams are fused with RRF, and the fused
// list is re-ranked by readability. A failed adapter call degrades that
// stream to empty instead of failing the search.
type RetrievalService struct {
	corpus   ports.CorpusStore
	vectors  ports.VectorIndex
	embedder ports.Embedder
	variants ports.VariantGenerator
	rrfK     int
	logger   *slog.Logger
}

func NewRetrievalService(
	corpus ports.CorpusStore,
	vectors ports.VectorIndex,
	embedder ports.Embedder,
	variants ports.VariantGenerator,
	rrfK int,
	logger *slog.Logger,
) *RetrievalService {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{
		corpus:   corpus,
		vectors:  vectors,
		embedder: embedder,
		variants: variants,
		rrfK:     rrfK,
		logger:   logger,
	}
}

// Search retrieves the topK best units for one query string, scoped by the
// optional work/section filter.
func (s *RetrievalService) Search(
	ctx context.Context,
	query, style string,
	topK int,
	filter domain.SearchFilter,
) []domain.RetrievalResult {
	if topK <= 0 {
		topK = 5
	}
	variants := s.variants.Variants(query, style)
	if len(variants) == 0 {
		return nil
	}

	perVariantLimit := topK * 3
	if perVariantLimit < 12 {
		perVariantLimit = 12
	}

	lexical := s.searchLexicalStream(ctx, variants, perVariantLimit, filter)
	vector := s.searchVectorStream(ctx, variants, perVariantLimit, filter)

	fused := rerankByReadability(fuseReciprocalRank(lexical, vector, s.rrfK))
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}

func (s *RetrievalService) searchLexicalStream(
	ctx context.Context,
	variants []string,
	limit int,
	filter domain.SearchFilter,
) []domain.RetrievalResult {
	var out []domain.RetrievalResult
	for _, variant := range variants {
		hits, err := s.corpus.SearchLexical(ctx, variant, limit, filter)
		if err != nil {
			s.logger.Warn("lexical_search_degraded", "error", err, "variant_len", len(variant))
			continue
		}
		out = append(out, hits...)
	}
	return out
}

func (s *RetrievalService) searchVectorStream(
	ctx context.Context,
	variants []string,
	limit int,
	filter domain.SearchFilter,
) []domain.RetrievalResult {
	var out []domain.RetrievalResult
	for _, variant := range variants {
		embedding, err := s.embedder.EmbedQuery(ctx, variant)
		if err != nil {
			s.logger.Warn("embed_query_degraded", "error", err)
			continue
		}

		hits, err := s.vectors.Search(ctx, embedding, limit, filter)
		if err != nil {
			s.logger.Warn("vector_search_degraded", "error", err)
			continue
		}
		if len(hits) == 0 {
			continue
		}

		ids := make([]string, 0, len(hits))
		for _, hit := range hits {
			ids = append(ids, hit.UnitID)
		}
		byID, err := s.corpus.FetchUnitsByIDs(ctx, ids)
		if err != nil {
			s.logger.Warn("vector_resolve_degraded", "error", err)
			continue
		}
		for _, hit := range hits {
			if unit, ok := byID[hit.UnitID]; ok {
				out = append(out, domain.RetrievalResult{Unit: unit, Score: hit.Score})
			}
		}
	}
	return out
}
