package sqlite

import (
	"context"
	"testing"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

func intPtr(n int) *int { return &n }

func newTestRepository(t *testing.T) *CorpusRepository {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open corpus db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCorpusRepository(db)
}

func seedUnits(t *testing.T, repo *CorpusRepository) {
	t.Helper()
	units := []domain.RetrievedUnit{
		{
			ID:                "u1",
			GranthName:        "ShriSingaar",
			PrakranName:       "Prakran 14",
			PrakranNumber:     intPtr(14),
			PrakranConfidence: 0.9,
			ChopaiNumber:      "4",
			ChopaiLines:       []string{"sab ghat mere saiyan", "suni sej na koi"},
			MeaningText:       "The Lord dwells in every heart.",
			PageNumber:        41,
			PDFPath:           "texts/shrisingaar.pdf",
			SourceSet:         "singaar-v1",
			NormalizedText:    "sab ghat mere saiyan suni sej na koi",
			TranslitHiLatn:    "sab ghat mere saiyan",
			ChunkText:         "prakran 14 sab ghat mere saiyan suni sej na koi",
			ChunkType:         "chopai",
		},
		{
			ID:                "u2",
			GranthName:        "ShriSingaar",
			PrakranName:       "Prakran 15",
			PrakranNumber:     intPtr(15),
			PrakranConfidence: 0.9,
			ChopaiNumber:      "1",
			PageNumber:        42,
			PDFPath:           "texts/shrisingaar.pdf",
			SourceSet:         "singaar-v1",
			NormalizedText:    "prem bina dhani nahi pave",
			ChunkText:         "prakran 15 prem bina dhani nahi pave",
			ChunkType:         "chopai",
		},
		{
			ID:             "u3",
			GranthName:     "PrakashVani",
			PrakranName:    "Prakash 2",
			PageNumber:     7,
			PDFPath:        "texts/prakashvani.pdf",
			SourceSet:      "prakash-v1",
			NormalizedText: "jagat ke sab jeev prem se jage",
			ChunkText:      "jagat ke sab jeev prem se jage",
			ChunkType:      "meaning",
		},
	}
	if err := repo.UpsertUnits(context.Background(), units); err != nil {
		t.Fatalf("seed units: %v", err)
	}
}

func TestSearchLexicalRanksAndFilters(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)
	ctx := context.Background()

	hits, err := repo.SearchLexical(ctx, "saiyan ghat", 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected lexical hits")
	}
	if hits[0].Unit.ID != "u1" {
		t.Fatalf("top hit = %s, want u1", hits[0].Unit.ID)
	}
	for _, hit := range hits {
		if hit.Score <= 0 || hit.Score > 1 {
			t.Fatalf("relevance %v out of (0,1]", hit.Score)
		}
	}

	// Work filter excludes the other granth even when terms match.
	hits, err = repo.SearchLexical(ctx, "prem", 10, domain.SearchFilter{Granth: "ShriSingaar"})
	if err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	for _, hit := range hits {
		if hit.Unit.GranthName != "ShriSingaar" {
			t.Fatalf("filter leaked granth %s", hit.Unit.GranthName)
		}
	}
}

func TestSearchLexicalBestMatchScoresHighest(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// bm25() is ascending (more negative = better); the relevance mapping
	// must not let a weaker hit outscore the top-ranked one.
	units := []domain.RetrievedUnit{
		{
			ID:             "strong",
			GranthName:     "ShriSingaar",
			PrakranName:    "Prakran 3",
			SourceSet:      "singaar-v1",
			NormalizedText: "prem bhakti prem bhakti prem bhakti",
			ChunkText:      "prem bhakti prem bhakti prem bhakti",
			ChunkType:      "chopai",
		},
		{
			ID:             "weak",
			GranthName:     "ShriSingaar",
			PrakranName:    "Prakran 4",
			SourceSet:      "singaar-v1",
			NormalizedText: "jagat ke sab jeev prem se jage aur bhakti ko pave dhani ke dwara",
			ChunkText:      "jagat ke sab jeev prem se jage aur bhakti ko pave dhani ke dwara",
			ChunkType:      "chopai",
		},
	}
	if err := repo.UpsertUnits(ctx, units); err != nil {
		t.Fatalf("seed units: %v", err)
	}

	hits, err := repo.SearchLexical(ctx, "prem bhakti", 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Unit.ID != "strong" {
		t.Fatalf("top hit = %s, want strong", hits[0].Unit.ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("best match scored %v below weaker match %v", hits[0].Score, hits[1].Score)
	}
}

func TestSearchLexicalPrefixMatching(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)

	hits, err := repo.SearchLexical(context.Background(), "saiy", 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("prefix term must match saiyan")
	}
}

func TestSearchLexicalEmptyQuery(t *testing.T) {
	repo := newTestRepository(t)

	hits, err := repo.SearchLexical(context.Background(), "  ?! ", 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits != nil {
		t.Fatalf("expected no hits for empty query, got %+v", hits)
	}
}

func TestLookupReferenceByPrakranAndChopai(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)
	ctx := context.Background()

	units, err := repo.LookupReference(ctx, domain.ReferenceLookup{
		GranthName:    "ShriSingaar",
		PrakranNumber: intPtr(14),
	})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(units) != 1 || units[0].ID != "u1" {
		t.Fatalf("lookup = %+v, want u1", units)
	}

	units, err = repo.LookupReference(ctx, domain.ReferenceLookup{
		GranthName:    "ShriSingaar",
		PrakranNumber: intPtr(14),
		ChopaiNumber:  intPtr(4),
	})
	if err != nil {
		t.Fatalf("verse lookup: %v", err)
	}
	if len(units) != 1 || units[0].ID != "u1" {
		t.Fatalf("verse lookup = %+v, want u1", units)
	}

	units, err = repo.LookupReference(ctx, domain.ReferenceLookup{
		GranthName:   "ShriSingaar",
		PrakranRange: &[2]int{14, 15},
	})
	if err != nil {
		t.Fatalf("range lookup: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("range lookup returned %d units, want 2", len(units))
	}
	if units[0].PageNumber > units[1].PageNumber {
		t.Fatal("range lookup must order by page")
	}
}

func TestLookupReferenceWithoutConditions(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)

	units, err := repo.LookupReference(context.Background(), domain.ReferenceLookup{})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if units != nil {
		t.Fatalf("unconditioned lookup must return nothing, got %d units", len(units))
	}
}

func TestCountChopai(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)
	ctx := context.Background()

	count, err := repo.CountChopai(ctx, domain.ReferenceLookup{GranthName: "ShriSingaar"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	count, err = repo.CountChopai(ctx, domain.ReferenceLookup{
		GranthName:    "ShriSingaar",
		PrakranNumber: intPtr(14),
	})
	if err != nil {
		t.Fatalf("scoped count: %v", err)
	}
	if count != 1 {
		t.Fatalf("scoped count = %d, want 1", count)
	}

	// Meaning units are not chopais.
	count, err = repo.CountChopai(ctx, domain.ReferenceLookup{GranthName: "PrakashVani"})
	if err != nil {
		t.Fatalf("meaning count: %v", err)
	}
	if count != 0 {
		t.Fatalf("meaning count = %d, want 0", count)
	}
}

func TestListGranthsAndFilters(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)
	ctx := context.Background()

	granths, err := repo.ListGranths(ctx)
	if err != nil {
		t.Fatalf("list granths: %v", err)
	}
	if len(granths) != 2 || granths[0] != "PrakashVani" || granths[1] != "ShriSingaar" {
		t.Fatalf("granths = %v", granths)
	}

	granths, prakrans, err := repo.ListFilters(ctx)
	if err != nil {
		t.Fatalf("list filters: %v", err)
	}
	if len(granths) != 2 || len(prakrans) != 3 {
		t.Fatalf("filters = %v / %v", granths, prakrans)
	}
}

func TestNeighborContext(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)

	units, err := repo.FetchUnitsByIDs(context.Background(), []string{"u2"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	unit := units["u2"]

	prev, next, err := repo.NeighborContext(context.Background(), unit)
	if err != nil {
		t.Fatalf("neighbor context: %v", err)
	}
	if prev == "" {
		t.Fatal("expected previous page snippet from page 41")
	}
	if next != "" {
		t.Fatalf("no unit on page 43, got %q", next)
	}
}

func TestUpsertUnitsReplacesExisting(t *testing.T) {
	repo := newTestRepository(t)
	seedUnits(t, repo)
	ctx := context.Background()

	updated := domain.RetrievedUnit{
		ID:             "u1",
		GranthName:     "ShriSingaar",
		PrakranName:    "Prakran 14",
		PrakranNumber:  intPtr(14),
		PageNumber:     41,
		PDFPath:        "texts/shrisingaar.pdf",
		SourceSet:      "singaar-v2",
		NormalizedText: "naya paath sudhara hua",
		ChunkText:      "naya paath sudhara hua",
		ChunkType:      "chopai",
	}
	if err := repo.UpsertUnits(ctx, []domain.RetrievedUnit{updated}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	units, err := repo.FetchUnitsByIDs(ctx, []string{"u1"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if units["u1"].SourceSet != "singaar-v2" {
		t.Fatalf("unit not replaced: %+v", units["u1"])
	}

	// The old text must no longer be findable.
	hits, err := repo.SearchLexical(ctx, "saiyan", 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, hit := range hits {
		if hit.Unit.ID == "u1" {
			t.Fatal("stale FTS row survived the upsert")
		}
	}

	listed, err := repo.ListUnitsBySourceSet(ctx, "singaar-v2")
	if err != nil {
		t.Fatalf("list by source set: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "u1" {
		t.Fatalf("source set listing = %+v", listed)
	}
}
