package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_FUSION_RRF_K", "")
	t.Setenv("RAG_MIN_GROUNDING_SCORE", "")
	t.Setenv("PRAKRAN_MAX_SPAN", "")
	t.Setenv("OLLAMA_EMBED_MODEL", "")

	cfg := Load()
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.RAGFusionRRFK != 50 {
		t.Fatalf("expected default fusion rrf k 50, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGMinGroundingScore != 0.01 {
		t.Fatalf("expected default grounding score 0.01, got %f", cfg.RAGMinGroundingScore)
	}
	if cfg.PrakranMaxSpan != 20 {
		t.Fatalf("expected default prakran span 20, got %d", cfg.PrakranMaxSpan)
	}
	if cfg.OllamaEmbedModel != "" {
		t.Fatalf("embed model should default to the hashed fallback, got %q", cfg.OllamaEmbedModel)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("RAG_FUSION_RRF_K", "75")
	t.Setenv("RAG_MIN_GROUNDING_SCORE", "0.05")
	t.Setenv("PRAKRAN_MAX_SPAN", "10")
	t.Setenv("ALLOW_DEBUG_PAYLOADS", "true")

	cfg := Load()
	if cfg.RAGTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RAGTopK)
	}
	if cfg.RAGFusionRRFK != 75 {
		t.Fatalf("expected fusion rrf k 75, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGMinGroundingScore != 0.05 {
		t.Fatalf("expected grounding score 0.05, got %f", cfg.RAGMinGroundingScore)
	}
	if cfg.PrakranMaxSpan != 10 {
		t.Fatalf("expected prakran span 10, got %d", cfg.PrakranMaxSpan)
	}
	if !cfg.AllowDebugPayloads {
		t.Fatalf("expected debug payloads enabled")
	}
}

func TestLoadGranthSynonyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	content := "singaar:\n  - singar sagar\n  - shringar\nprakashvani:\n  - prakash vani\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := LoadGranthSynonyms(path)
	if err != nil {
		t.Fatalf("LoadGranthSynonyms() error = %v", err)
	}
	if len(table["singaar"]) != 2 || table["singaar"][0] != "singar sagar" {
		t.Fatalf("unexpected aliases: %v", table["singaar"])
	}

	empty, err := LoadGranthSynonyms("")
	if err != nil {
		t.Fatalf("empty path should not error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("empty path should yield empty table, got %v", empty)
	}

	if _, err := LoadGranthSynonyms(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should error")
	}
}
