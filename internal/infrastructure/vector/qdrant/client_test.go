package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

func TestIndexUnitsEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/units":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/units/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "units")
	units := []domain.RetrievedUnit{{ID: "u1", GranthName: "ShriSingaar"}, {ID: "u2", GranthName: "ShriSingaar"}}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexUnits(context.Background(), units, vectors); err != nil {
		t.Fatalf("first IndexUnits() error = %v", err)
	}
	if err := client.IndexUnits(context.Background(), units, vectors); err != nil {
		t.Fatalf("second IndexUnits() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestIndexUnitsDeterministicPointIDs(t *testing.T) {
	var captured struct {
		Points []struct {
			ID string `json:"id"`
		} `json:"points"`
	}
	var upserts [][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/units":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/units/points":
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
			ids := make([]string, 0, len(captured.Points))
			for _, p := range captured.Points {
				ids = append(ids, p.ID)
			}
			upserts = append(upserts, ids)
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "units")
	units := []domain.RetrievedUnit{{ID: "u1"}}
	vectors := [][]float32{{0.1, 0.2}}

	if err := client.IndexUnits(context.Background(), units, vectors); err != nil {
		t.Fatalf("IndexUnits() error = %v", err)
	}
	if err := client.IndexUnits(context.Background(), units, vectors); err != nil {
		t.Fatalf("IndexUnits() error = %v", err)
	}
	if len(upserts) != 2 || len(upserts[0]) != 1 {
		t.Fatalf("unexpected upserts %v", upserts)
	}
	if upserts[0][0] != upserts[1][0] {
		t.Fatalf("point id must be stable across reindex runs: %v", upserts)
	}
}

func TestSearchReturnsUnitIDsAndAppliesFilter(t *testing.T) {
	var capturedFilter map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/units/points/search" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode search: %v", err)
		}
		capturedFilter, _ = body["filter"].(map[string]any)
		_, _ = w.Write([]byte(`{
			"result": [
				{"score": 0.92, "payload": {"unit_id": "u1", "granth_name": "ShriSingaar"}},
				{"score": 0.81, "payload": {"granth_name": "no-unit-id"}}
			]
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "units")
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{Granth: "ShriSingaar"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1 (payload without unit_id skipped)", len(hits))
	}
	if hits[0].UnitID != "u1" {
		t.Fatalf("unexpected hit %+v", hits[0])
	}
	// Cosine similarity 0.92 maps through relevance = 1/(1+(1-similarity)).
	if want := 1.0 / 1.08; math.Abs(hits[0].Score-want) > 1e-9 {
		t.Fatalf("hit score = %v, want %v", hits[0].Score, want)
	}
	if capturedFilter == nil {
		t.Fatal("granth filter missing from search request")
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/units" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "units")
	err := client.IndexUnits(context.Background(), []domain.RetrievedUnit{{ID: "u1"}}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
