package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/core/ports"
)

const (
	// At most this many retrieval sub-queries per turn, original question
	// included.
	maxRetrievalQueries = 10

	// Later sub-queries are trusted less: weight = 1/(1+queryDecay*i).
	queryDecay = 0.35

	// Small bounded positional prior independent of raw score scale.
	rankBonusOffset = 40.0

	// Floor score for exact reference lookups: above lexical/vector noise,
	// below a strong semantic match.
	referenceFloorBase       = 0.25
	referenceFloorRankOffset = 30.0
)

// AgenticRetriever aggregates several hybrid searches into one ranked
// candidate list, merges exact reference lookups for constrained requests,
// and applies constraint filtering plus range diversification.
type AgenticRetriever struct {
	retrieval *RetrievalService
	corpus    ports.CorpusStore
	maxSpan   int
	logger    *slog.Logger
}

func NewAgenticRetriever(
	retrieval *RetrievalService,
	corpus ports.CorpusStore,
	maxSpan int,
	logger *slog.Logger,
) *AgenticRetriever {
	if maxSpan <= 0 {
		maxSpan = domain.DefaultPrakranMaxSpan
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AgenticRetriever{
		retrieval: retrieval,
		corpus:    corpus,
		maxSpan:   maxSpan,
		logger:    logger,
	}
}

// Retrieve runs the full engine pipeline for one turn: multi-query
// aggregation, reference merging, constraint filtering, and
// diversification. The message comes first in the query list, then planner
// sub-queries, then reference-derived hints.
func (r *AgenticRetriever) Retrieve(
	ctx context.Context,
	message string,
	plan domain.QueryPlan,
	query domain.QueryContext,
	style string,
	topK int,
	filter domain.SearchFilter,
) domain.RetrievalOutcome {
	if topK <= 0 {
		topK = 5
	}

	queries := dedupeQueries(append(append([]string{message}, plan.SubQueries...), BuildQueryHints(query)...))
	aggregated := r.aggregateQueries(ctx, queries, style, topK, filter)

	if query.HasReferenceConstraint() {
		aggregated = r.mergeReferenceLookups(ctx, aggregated, query, topK)
	}

	outcome := applyConstraints(aggregated, query, r.maxSpan)
	if outcome.Ambiguous {
		return outcome
	}

	if query.PrakranRangeStart != nil && query.PrakranRangeEnd != nil {
		outcome.Results = diversifyRange(outcome.Results, query.PrakranNumbers(r.maxSpan), topK)
	} else if len(outcome.Results) > topK {
		outcome.Results = outcome.Results[:topK]
	}
	return outcome
}

// aggregateQueries blends per-query hybrid search results into one
// accumulator. Each hit contributes its score decayed by query ordinal plus
// a rank bonus; contributions across queries are summed so units surfaced by
// several sub-queries are rewarded.
func (r *AgenticRetriever) aggregateQueries(
	ctx context.Context,
	queries []string,
	style string,
	topK int,
	filter domain.SearchFilter,
) []domain.RetrievalResult {
	if len(queries) == 0 {
		return nil
	}

	perQueryLimit := 2 * topK
	if perQueryLimit < 8 {
		perQueryLimit = 8
	}

	// Sub-query searches share no mutable state, so they fan out
	// concurrently; results land in their ordinal slot to keep aggregation
	// deterministic.
	perQuery := make([][]domain.RetrievalResult, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			perQuery[i] = r.retrieval.Search(ctx, query, style, perQueryLimit, filter)
		}(i, query)
	}
	wg.Wait()

	scores := map[string]float64{}
	units := map[string]domain.RetrievedUnit{}
	for i, hits := range perQuery {
		queryWeight := 1.0 / (1.0 + queryDecay*float64(i))
		for rank, hit := range hits {
			rankBonus := 1.0 / (rankBonusOffset + float64(rank+1))
			scores[hit.Unit.ID] += hit.Score*queryWeight + rankBonus
			units[hit.Unit.ID] = hit.Unit
		}
	}

	out := make([]domain.RetrievalResult, 0, len(scores))
	for id, score := range scores {
		out = append(out, domain.RetrievalResult{Unit: units[id], Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Unit.ID < out[j].Unit.ID
	})

	limit := topK
	if limit < 4 {
		limit = 4
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// mergeReferenceLookups folds exact structural lookups into the aggregated
// list. Lookup hits get a floor score merged via max, never overwriting a
// higher score the free-text search already found.
func (r *AgenticRetriever) mergeReferenceLookups(
	ctx context.Context,
	aggregated []domain.RetrievalResult,
	query domain.QueryContext,
	topK int,
) []domain.RetrievalResult {
	lookup := domain.ReferenceLookup{
		GranthName:   query.GranthName,
		ChopaiNumber: query.ChopaiNumber,
		Limit:        3 * r.maxSpan,
	}
	if query.PrakranNumber != nil {
		lookup.PrakranNumber = query.PrakranNumber
	} else if query.PrakranRangeStart != nil && query.PrakranRangeEnd != nil {
		lookup.PrakranRange = &[2]int{*query.PrakranRangeStart, *query.PrakranRangeEnd}
	}

	units, err := r.corpus.LookupReference(ctx, lookup)
	if err != nil {
		r.logger.Warn("reference_lookup_degraded", "error", err)
		units = nil
	}

	scores := map[string]float64{}
	byID := map[string]domain.RetrievedUnit{}
	for _, result := range aggregated {
		scores[result.Unit.ID] = result.Score
		byID[result.Unit.ID] = result.Unit
	}
	for rank, unit := range units {
		floor := referenceFloorBase + 1.0/(referenceFloorRankOffset+float64(rank+1))
		if floor > scores[unit.ID] {
			scores[unit.ID] = floor
		}
		byID[unit.ID] = unit
	}

	out := make([]domain.RetrievalResult, 0, len(scores))
	for id, score := range scores {
		out = append(out, domain.RetrievalResult{Unit: byID[id], Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Unit.ID < out[j].Unit.ID
	})

	limit := 2 * topK
	if limit < 10 {
		limit = 10
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func dedupeQueries(queries []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(queries))
	for _, query := range queries {
		clean := strings.TrimSpace(query)
		key := strings.ToLower(clean)
		if clean == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, clean)
		if len(out) == maxRetrievalQueries {
			break
		}
	}
	return out
}
