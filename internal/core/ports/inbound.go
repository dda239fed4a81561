package ports

import (
	"context"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

// ChatService is the inbound contract for one conversational turn.
type ChatService interface {
	Respond(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// Retriever is the inbound contract for grounded citation retrieval without
// answer generation, used by debug tooling and evaluation harnesses.
type Retriever interface {
	Retrieve(ctx context.Context, message string, topK int, filters *domain.ChatFilters, prior domain.SessionContextState) (domain.RetrievalOutcome, domain.QueryContext, error)
}

// CorpusReindexer re-embeds and re-indexes corpus units asynchronously.
type CorpusReindexer interface {
	ReindexSourceSet(ctx context.Context, sourceSet string) error
}
