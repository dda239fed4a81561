package usecase

import (
	"strings"
	"testing"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

func result(id string, score float64) domain.RetrievalResult {
	return domain.RetrievalResult{Unit: domain.RetrievedUnit{ID: id}, Score: score}
}

func TestFuseReciprocalRankRewardsBothStreams(t *testing.T) {
	lexical := []domain.RetrievalResult{result("a", 12.0), result("b", 6.0)}
	vector := []domain.RetrievalResult{result("b", 0.91), result("c", 0.40)}

	fused := fuseReciprocalRank(lexical, vector, 50)
	if len(fused) != 3 {
		t.Fatalf("fused %d units, want 3", len(fused))
	}
	if fused[0].Unit.ID != "b" {
		t.Fatalf("top = %s, want b (present in both streams)", fused[0].Unit.ID)
	}

	// b: rank 2 lexical + rank 1 vector; a: rank 1 lexical only.
	wantB := 1.0/52.0 + 1.0/51.0
	if diff := fused[0].Score - wantB; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("score(b) = %v, want %v", fused[0].Score, wantB)
	}
	if fused[1].Unit.ID != "a" || fused[2].Unit.ID != "c" {
		t.Fatalf("unexpected order: %+v", fused)
	}
}

func TestFuseReciprocalRankIgnoresRawScales(t *testing.T) {
	// Absolute BM25 magnitudes must not leak into fused scores: only order
	// within the stream matters.
	small := fuseReciprocalRank([]domain.RetrievalResult{result("a", 0.01), result("b", 0.005)}, nil, 50)
	large := fuseReciprocalRank([]domain.RetrievalResult{result("a", 900), result("b", 450)}, nil, 50)

	for i := range small {
		if small[i].Unit.ID != large[i].Unit.ID || small[i].Score != large[i].Score {
			t.Fatalf("scale leaked into fusion: %+v vs %+v", small, large)
		}
	}
}

func TestDedupeStreamKeepsBestOccurrence(t *testing.T) {
	stream := []domain.RetrievalResult{result("a", 1.0), result("b", 3.0), result("a", 2.0)}

	deduped := dedupeStream(stream)
	if len(deduped) != 2 {
		t.Fatalf("deduped %d results, want 2", len(deduped))
	}
	if deduped[0].Unit.ID != "b" || deduped[1].Unit.ID != "a" {
		t.Fatalf("unexpected order: %+v", deduped)
	}
	if deduped[1].Score != 2.0 {
		t.Fatalf("kept score %v for a, want best occurrence 2.0", deduped[1].Score)
	}
}

func TestRerankByReadabilityDemotesGarbledText(t *testing.T) {
	clean := domain.RetrievalResult{
		Unit:  domain.RetrievedUnit{ID: "clean", ChunkText: strings.Repeat("sab ghat mere saiyan ", 40)},
		Score: 0.50,
	}
	garbled := domain.RetrievalResult{
		Unit:  domain.RetrievedUnit{ID: "garbled", ChunkText: strings.Repeat("¤¥¦ text ÐÑÒ ", 60)},
		Score: 0.55,
	}

	out := rerankByReadability([]domain.RetrievalResult{garbled, clean})
	if out[0].Unit.ID != "clean" {
		t.Fatalf("clean unit must outrank garbled one: %+v", out)
	}
	if out[1].Score >= garbled.Score {
		t.Fatalf("garbled score %v not demoted", out[1].Score)
	}
}

func TestReadabilityMultiplierTiers(t *testing.T) {
	cleanUnit := domain.RetrievedUnit{ChunkText: strings.Repeat("plain words here ", 30)}
	if m := readabilityMultiplier(cleanUnit); m != 1.0 {
		t.Fatalf("clean multiplier = %v, want 1.0", m)
	}

	severeUnit := domain.RetrievedUnit{ChunkText: strings.Repeat("¤¥¦§¨ word ", 50)}
	if m := readabilityMultiplier(severeUnit); m != garbledSevereMultiplier {
		t.Fatalf("severe multiplier = %v, want %v", m, garbledSevereMultiplier)
	}
}
