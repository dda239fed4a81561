package ports

import (
	"context"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

// CorpusStore is the read path over ingested scripture units: unit fetch,
// BM25-ranked lexical search, exact structural lookup, and corpus vocabulary.
type CorpusStore interface {
	FetchUnitsByIDs(ctx context.Context, ids []string) (map[string]domain.RetrievedUnit, error)
	SearchLexical(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error)
	LookupReference(ctx context.Context, ref domain.ReferenceLookup) ([]domain.RetrievedUnit, error)
	CountChopai(ctx context.Context, ref domain.ReferenceLookup) (int, error)
	ListGranths(ctx context.Context) ([]string, error)
	ListFilters(ctx context.Context) (granths, prakrans []string, err error)
	NeighborContext(ctx context.Context, unit domain.RetrievedUnit) (prev, next string, err error)
	ListUnitsBySourceSet(ctx context.Context, sourceSet string) ([]domain.RetrievedUnit, error)
}

// VectorIndex performs embedding-similarity search over unit vectors. Hits
// come back as raw unit ids; the engine resolves them through the corpus
// store.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.VectorHit, error)
	IndexUnits(ctx context.Context, units []domain.RetrievedUnit, vectors [][]float32) error
}

// Embedder builds vectors for unit text and query text. Implementations may
// fall back to a deterministic pseudo-embedding when no model is configured.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// QueryPlanner expands a raw question into retrieval sub-queries. A failed
// call must degrade to an empty plan, never fail the turn.
type QueryPlanner interface {
	PlanQuery(ctx context.Context, question string, recent []domain.MessageRecord) (domain.QueryPlan, error)
}

// AnswerGenerator creates the final user-facing answer from citations.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, citations []domain.Citation, style string, recent []domain.MessageRecord) (string, error)
}

// VariantGenerator expands a raw message into normalized/transliterated
// search variants. The engine treats its output as opaque strings.
type VariantGenerator interface {
	DetectStyle(text string) string
	Variants(query, style string) []string
}

// SessionStore persists conversation transcripts and the per-session
// reference carry-over record.
type SessionStore interface {
	GetSessionContext(ctx context.Context, sessionID string) (domain.SessionContextState, error)
	UpsertSessionContext(ctx context.Context, sessionID string, state domain.SessionContextState) error
	AppendMessage(ctx context.Context, msg domain.MessageRecord) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.MessageRecord, error)
	SessionMessages(ctx context.Context, sessionID string) ([]domain.MessageRecord, error)
	ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error)
}

// MessageQueue publishes/consumes corpus reindex events.
type MessageQueue interface {
	PublishReindexRequested(ctx context.Context, sourceSet string) error
	SubscribeReindexRequested(ctx context.Context, handler func(context.Context, string) error) error
}
