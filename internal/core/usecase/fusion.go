package usecase

import (
	"sort"
	"strings"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/textquality"
)

const defaultRRFK = 50

// Readability multiplier tiers for the quality re-ranking pass.
const (
	garbledSevereRatio = 0.03
	garbledMildRatio   = 0.015

	garbledSevereMultiplier = 0.35
	garbledMildMultiplier   = 0.60
)

// fuseReciprocalRank combines the lexical and vector streams with
// reciprocal rank fusion. BM25 and cosine scores live on incomparable
// scales, so only each stream's internal order is used: every stream is
// deduplicated keeping its best occurrence, re-sorted, and each unit
// accumulates 1/(k+rank) per stream it appears in.
func fuseReciprocalRank(lexical, vector []domain.RetrievalResult, k int) []domain.RetrievalResult {
	if k <= 0 {
		k = defaultRRFK
	}

	acc := map[string]float64{}
	units := map[string]domain.RetrievedUnit{}
	addStream := func(stream []domain.RetrievalResult) {
		for rank, result := range dedupeStream(stream) {
			acc[result.Unit.ID] += 1.0 / float64(k+rank+1)
			units[result.Unit.ID] = result.Unit
		}
	}

	addStream(lexical)
	addStream(vector)

	out := make([]domain.RetrievalResult, 0, len(acc))
	for id, score := range acc {
		out = append(out, domain.RetrievalResult{Unit: units[id], Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Unit.ID < out[j].Unit.ID
	})
	return out
}

// dedupeStream keeps the highest-scored occurrence of each unit and returns
// the stream in descending score order, ready for 0-based ranking.
func dedupeStream(stream []domain.RetrievalResult) []domain.RetrievalResult {
	sorted := make([]domain.RetrievalResult, len(stream))
	copy(sorted, stream)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	seen := map[string]struct{}{}
	out := make([]domain.RetrievalResult, 0, len(sorted))
	for _, result := range sorted {
		if _, ok := seen[result.Unit.ID]; ok {
			continue
		}
		seen[result.Unit.ID] = struct{}{}
		out = append(out, result)
	}
	return out
}

// rerankByReadability multiplies fused scores by a readability multiplier so
// passages with corrupted source text sink without being excluded.
func rerankByReadability(fused []domain.RetrievalResult) []domain.RetrievalResult {
	out := make([]domain.RetrievalResult, len(fused))
	copy(out, fused)
	for i := range out {
		out[i].Score *= readabilityMultiplier(out[i].Unit)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Unit.ID < out[j].Unit.ID
	})
	return out
}

func readabilityMultiplier(unit domain.RetrievedUnit) float64 {
	lines := unit.ChopaiLines
	if len(lines) > 2 {
		lines = lines[:2]
	}
	sample := textPrefix(unit.ChunkText, 1200) + "\n" +
		textPrefix(unit.MeaningText, 400) + "\n" +
		textPrefix(strings.Join(lines, " "), 300)

	ratio := textquality.GarbledRatio(sample)
	switch {
	case ratio >= garbledSevereRatio:
		return garbledSevereMultiplier
	case ratio >= garbledMildRatio:
		return garbledMildMultiplier
	default:
		return 1.0
	}
}
