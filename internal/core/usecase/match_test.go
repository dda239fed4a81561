package usecase

import (
	"testing"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

func TestUnitMatchesPrakranStructuredField(t *testing.T) {
	unit := domain.RetrievedUnit{
		ID:                "u1",
		PrakranNumber:     intPtr(14),
		PrakranConfidence: 0.95,
		ChunkText:         "page 7 prakran 19 text",
	}

	if !UnitMatchesPrakran(unit, 14) {
		t.Fatal("structured number must match")
	}
	// Confident structured field rejects other numbers even when the text
	// mentions them.
	if UnitMatchesPrakran(unit, 19) {
		t.Fatal("confident structured number must be authoritative")
	}
}

func TestUnitMatchesPrakranLowConfidenceFallsBack(t *testing.T) {
	unit := domain.RetrievedUnit{
		ID:                "u2",
		PrakranNumber:     intPtr(3),
		PrakranConfidence: 0.4,
		ChunkText:         "continuation of prakran 19 -19- shlok",
	}

	if !UnitMatchesPrakran(unit, 3) {
		t.Fatal("structured number must still match")
	}
	if !UnitMatchesPrakran(unit, 19) {
		t.Fatal("low-confidence structured number must allow the text fallback")
	}
}

func TestUnitMatchesPrakranExactNameTier(t *testing.T) {
	unit := domain.RetrievedUnit{ID: "u3", PrakranName: "Prakran 7"}

	if !UnitMatchesPrakran(unit, 7) {
		t.Fatal("exact section name must match")
	}
	if UnitMatchesPrakran(unit, 17) {
		t.Fatal("exact section name must be terminal for other numbers")
	}
}

func TestUnitMatchesPrakranDigitBoundaries(t *testing.T) {
	unit := domain.RetrievedUnit{ID: "u4", ChunkText: "reference 114 and then -14- marker"}
	if !UnitMatchesPrakran(unit, 14) {
		t.Fatal("-14- marker must match")
	}

	embedded := domain.RetrievedUnit{ID: "u5", ChunkText: "page 114 only"}
	if UnitMatchesPrakran(embedded, 14) {
		t.Fatal("14 inside 114 must not match")
	}
}

func TestUnitMatchesQueryChopaiByNumberOrIndex(t *testing.T) {
	query := domain.QueryContext{ChopaiNumber: intPtr(4)}

	byNumber := domain.RetrievedUnit{ID: "a", ChopaiNumber: "४"}
	if !UnitMatchesQuery(byNumber, query, 20) {
		t.Fatal("Devanagari verse number must match")
	}

	byIndex := domain.RetrievedUnit{ID: "b", PrakranChopaiIndex: intPtr(4)}
	if !UnitMatchesQuery(byIndex, query, 20) {
		t.Fatal("prakran-relative index must match")
	}

	neither := domain.RetrievedUnit{ID: "c", ChopaiNumber: "7"}
	if UnitMatchesQuery(neither, query, 20) {
		t.Fatal("mismatched verse must not match")
	}
}

func TestApplyConstraintsAmbiguousAcrossGranths(t *testing.T) {
	results := []domain.RetrievalResult{
		{Unit: domain.RetrievedUnit{ID: "a", GranthName: "ShriSingaar", PrakranNumber: intPtr(14), PrakranConfidence: 1}, Score: 0.9},
		{Unit: domain.RetrievedUnit{ID: "b", GranthName: "PrakashVani", PrakranNumber: intPtr(14), PrakranConfidence: 1}, Score: 0.8},
	}
	query := domain.QueryContext{PrakranNumber: intPtr(14)}

	outcome := applyConstraints(results, query, 20)
	if !outcome.Ambiguous || !outcome.Constrained {
		t.Fatalf("expected ambiguous constrained outcome, got %+v", outcome)
	}
	if len(outcome.Results) != 0 {
		t.Fatal("ambiguous outcome must carry no results")
	}

	// Anchoring the work resolves the ambiguity.
	query.GranthName = "ShriSingaar"
	outcome = applyConstraints(results, query, 20)
	if outcome.Ambiguous {
		t.Fatal("anchored reference must not be ambiguous")
	}
	if len(outcome.Results) != 1 || outcome.Results[0].Unit.ID != "a" {
		t.Fatalf("unexpected results %+v", outcome.Results)
	}
}

func TestApplyConstraintsEmptyStaysEmpty(t *testing.T) {
	results := []domain.RetrievalResult{
		{Unit: domain.RetrievedUnit{ID: "a", GranthName: "ShriSingaar", PrakranNumber: intPtr(2), PrakranConfidence: 1}, Score: 0.9},
	}
	query := domain.QueryContext{GranthName: "ShriSingaar", PrakranNumber: intPtr(99)}

	outcome := applyConstraints(results, query, 20)
	if !outcome.Constrained {
		t.Fatal("expected constrained outcome")
	}
	if len(outcome.Results) != 0 {
		t.Fatalf("constrained miss must stay empty, got %+v", outcome.Results)
	}
}

func TestApplyConstraintsUnconstrainedPassesThrough(t *testing.T) {
	results := []domain.RetrievalResult{
		{Unit: domain.RetrievedUnit{ID: "a", GranthName: "ShriSingaar"}, Score: 0.9},
		{Unit: domain.RetrievedUnit{ID: "b", GranthName: "PrakashVani"}, Score: 0.8},
	}

	outcome := applyConstraints(results, domain.QueryContext{}, 20)
	if outcome.Constrained || outcome.Ambiguous {
		t.Fatalf("unconstrained outcome flags wrong: %+v", outcome)
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("expected passthrough, got %d results", len(outcome.Results))
	}
}

func TestDiversifyRangeLimitsPerPrakran(t *testing.T) {
	unit := func(id string, prakran int, conf float64) domain.RetrievedUnit {
		return domain.RetrievedUnit{ID: id, PrakranNumber: intPtr(prakran), PrakranConfidence: conf}
	}
	results := []domain.RetrievalResult{
		{Unit: unit("a1", 14, 1), Score: 0.9},
		{Unit: unit("a2", 14, 1), Score: 0.8},
		{Unit: unit("a3", 14, 1), Score: 0.7},
		{Unit: unit("b1", 15, 1), Score: 0.6},
		{Unit: unit("c1", 16, 1), Score: 0.5},
	}

	out := diversifyRange(results, []int{14, 15, 16}, 4)
	if len(out) != 4 {
		t.Fatalf("got %d results, want 4", len(out))
	}
	// Two units for 14, then the remaining sections, then overflow.
	wantOrder := []string{"a1", "a2", "b1", "c1"}
	for i, want := range wantOrder {
		if out[i].Unit.ID != want {
			t.Fatalf("position %d = %s, want %s (full: %+v)", i, out[i].Unit.ID, want, out)
		}
	}
}

func TestDiversifyRangeOverflowFillsRemainingSlots(t *testing.T) {
	unit := func(id string, prakran int) domain.RetrievedUnit {
		return domain.RetrievedUnit{ID: id, PrakranNumber: intPtr(prakran), PrakranConfidence: 1}
	}
	results := []domain.RetrievalResult{
		{Unit: unit("a1", 14), Score: 0.9},
		{Unit: unit("a2", 14), Score: 0.8},
		{Unit: unit("a3", 14), Score: 0.7},
		{Unit: unit("a4", 14), Score: 0.6},
	}

	out := diversifyRange(results, []int{14, 15}, 3)
	if len(out) != 3 {
		t.Fatalf("got %d results, want 3", len(out))
	}
	if out[2].Unit.ID != "a3" {
		t.Fatalf("overflow must backfill by score order, got %+v", out)
	}
}
