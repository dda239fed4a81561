package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/core/ports"
)

const notFoundAnswer = "I could not find this clearly in available texts."
const notFoundFollowUp = "Please mention granth, prakran, or a key chopai phrase so I can search better."
const ambiguousFollowUp = "That number matches more than one granth. Which granth do you mean?"

const recentMessagesForContext = 6

// ChatConfig carries the per-deployment retrieval knobs.
type ChatConfig struct {
	TopK                  int
	MinimumGroundingScore float64
	AllowDebugPayloads    bool
}

// ChatUseCase orchestrates one conversational turn: parse references, plan
// sub-queries, retrieve grounded citations, generate the answer, and persist
// the transcript plus the carried session context.
type ChatUseCase struct {
	parser    *ReferenceParser
	retriever *AgenticRetriever
	corpus    ports.CorpusStore
	sessions  ports.SessionStore
	planner   ports.QueryPlanner
	generator ports.AnswerGenerator
	variants  ports.VariantGenerator
	cfg       ChatConfig
	logger    *slog.Logger
}

func NewChatUseCase(
	parser *ReferenceParser,
	retriever *AgenticRetriever,
	corpus ports.CorpusStore,
	sessions ports.SessionStore,
	planner ports.QueryPlanner,
	generator ports.AnswerGenerator,
	variants ports.VariantGenerator,
	cfg ChatConfig,
	logger *slog.Logger,
) *ChatUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MinimumGroundingScore <= 0 {
		cfg.MinimumGroundingScore = 0.01
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		parser:    parser,
		retriever: retriever,
		corpus:    corpus,
		sessions:  sessions,
		planner:   planner,
		generator: generator,
		variants:  variants,
		cfg:       cfg,
		logger:    logger,
	}
}

func (uc *ChatUseCase) Respond(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	message := strings.TrimSpace(req.Message)
	if sessionID == "" || message == "" {
		return nil, fmt.Errorf("chat request: %w: session_id and message are required", domain.ErrInvalidInput)
	}

	style := uc.variants.DetectStyle(message)
	answerStyle := style
	if req.StyleMode != "" && req.StyleMode != "auto" {
		answerStyle = req.StyleMode
	}

	topK := req.TopK
	if topK <= 0 {
		topK = uc.cfg.TopK
	}

	prior, err := uc.sessions.GetSessionContext(ctx, sessionID)
	if err != nil && !domain.IsKind(err, domain.ErrSessionNotFound) {
		uc.logger.Warn("session_context_load_degraded", "error", err, "session_id", sessionID)
		prior = domain.SessionContextState{}
	}

	query, outcome := uc.retrieve(ctx, message, topK, req.Filters, prior, style)

	next := domain.NextSessionContext(prior, query)
	if err := uc.sessions.UpsertSessionContext(ctx, sessionID, next); err != nil {
		uc.logger.Warn("session_context_save_degraded", "error", err, "session_id", sessionID)
	}

	resp := uc.buildResponse(ctx, message, answerStyle, sessionID, query, outcome)

	uc.persistExchange(ctx, sessionID, message, style, resp)

	if uc.cfg.AllowDebugPayloads {
		scores := make([]float64, 0, len(outcome.Results))
		for _, result := range outcome.Results {
			scores = append(scores, result.Score)
		}
		resp.Debug = map[string]any{
			"retrieval_scores": scores,
			"query_context":    query,
		}
	}
	return resp, nil
}

// Retrieve exposes the engine pipeline without answer generation, for debug
// tooling and evaluation runs.
func (uc *ChatUseCase) Retrieve(
	ctx context.Context,
	message string,
	topK int,
	filters *domain.ChatFilters,
	prior domain.SessionContextState,
) (domain.RetrievalOutcome, domain.QueryContext, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.RetrievalOutcome{}, domain.QueryContext{}, fmt.Errorf("retrieve: %w: message is required", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = uc.cfg.TopK
	}
	style := uc.variants.DetectStyle(message)
	query, outcome := uc.retrieve(ctx, message, topK, filters, prior, style)
	return outcome, query, nil
}

func (uc *ChatUseCase) retrieve(
	ctx context.Context,
	message string,
	topK int,
	filters *domain.ChatFilters,
	prior domain.SessionContextState,
	style string,
) (domain.QueryContext, domain.RetrievalOutcome) {
	granths, err := uc.corpus.ListGranths(ctx)
	if err != nil {
		uc.logger.Warn("list_granths_degraded", "error", err)
		granths = nil
	}

	filterGranth, filterPrakran := "", ""
	if filters != nil {
		filterGranth, filterPrakran = filters.Granth, filters.Prakran
	}
	query := uc.parser.Parse(message, granths, prior, filterGranth, filterPrakran)
	plan := uc.plan(ctx, message)

	searchFilter := domain.SearchFilter{Granth: query.GranthName, Prakran: filterPrakran}
	outcome := uc.retriever.Retrieve(ctx, message, plan, query, style, topK, searchFilter)
	return query, outcome
}

func (uc *ChatUseCase) plan(ctx context.Context, message string) domain.QueryPlan {
	plan, err := uc.planner.PlanQuery(ctx, message, nil)
	if err != nil {
		uc.logger.Warn("query_plan_degraded", "error", err)
		return domain.QueryPlan{}
	}
	return plan
}

func (uc *ChatUseCase) buildResponse(
	ctx context.Context,
	message, answerStyle, sessionID string,
	query domain.QueryContext,
	outcome domain.RetrievalOutcome,
) *domain.ChatResponse {
	if outcome.Ambiguous {
		return &domain.ChatResponse{
			Answer:           notFoundAnswer,
			AnswerStyle:      answerStyle,
			NotFound:         true,
			Ambiguous:        true,
			FollowUpQuestion: ambiguousFollowUp,
			Citations:        []domain.Citation{},
		}
	}

	if query.RequiresCount {
		return uc.buildCountResponse(ctx, answerStyle, query)
	}

	strong := make([]domain.RetrievalResult, 0, len(outcome.Results))
	for _, result := range outcome.Results {
		if result.Score >= uc.cfg.MinimumGroundingScore {
			strong = append(strong, result)
		}
	}
	if len(strong) == 0 {
		return &domain.ChatResponse{
			Answer:           notFoundAnswer,
			AnswerStyle:      answerStyle,
			NotFound:         true,
			FollowUpQuestion: notFoundFollowUp,
			Citations:        []domain.Citation{},
		}
	}

	citations := uc.buildCitations(ctx, strong)
	recent, err := uc.sessions.RecentMessages(ctx, sessionID, recentMessagesForContext)
	if err != nil {
		uc.logger.Warn("recent_messages_degraded", "error", err, "session_id", sessionID)
		recent = nil
	}

	answer, err := uc.generator.GenerateAnswer(ctx, message, citations, answerStyle, recent)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			uc.logger.Warn("answer_generation_degraded", "error", err)
		}
		answer = notFoundAnswer
	}

	return &domain.ChatResponse{
		Answer:      answer,
		AnswerStyle: answerStyle,
		Citations:   citations,
	}
}

func (uc *ChatUseCase) buildCountResponse(ctx context.Context, answerStyle string, query domain.QueryContext) *domain.ChatResponse {
	lookup := domain.ReferenceLookup{
		GranthName:    query.GranthName,
		PrakranNumber: query.PrakranNumber,
	}
	if query.PrakranRangeStart != nil && query.PrakranRangeEnd != nil {
		lookup.PrakranRange = &[2]int{*query.PrakranRangeStart, *query.PrakranRangeEnd}
	}

	count, err := uc.corpus.CountChopai(ctx, lookup)
	if err != nil {
		uc.logger.Warn("chopai_count_degraded", "error", err)
		return &domain.ChatResponse{
			Answer:           notFoundAnswer,
			AnswerStyle:      answerStyle,
			NotFound:         true,
			FollowUpQuestion: notFoundFollowUp,
			Citations:        []domain.Citation{},
		}
	}

	scope := "the requested reference"
	if query.GranthName != "" {
		scope = query.GranthName
	}
	return &domain.ChatResponse{
		Answer:      fmt.Sprintf("There are %d chopais recorded for %s.", count, scope),
		AnswerStyle: answerStyle,
		Citations:   []domain.Citation{},
	}
}

func (uc *ChatUseCase) buildCitations(ctx context.Context, strong []domain.RetrievalResult) []domain.Citation {
	citations := make([]domain.Citation, 0, len(strong))
	for _, result := range strong {
		prev, next, err := uc.corpus.NeighborContext(ctx, result.Unit)
		if err != nil {
			uc.logger.Warn("neighbor_context_degraded", "error", err, "unit_id", result.Unit.ID)
		}
		lines := result.Unit.ChopaiLines
		if len(lines) > 2 {
			lines = lines[:2]
		}
		citations = append(citations, domain.Citation{
			CitationID:  result.Unit.ID,
			GranthName:  result.Unit.GranthName,
			PrakranName: result.Unit.PrakranName,
			ChopaiLines: lines,
			MeaningText: result.Unit.MeaningText,
			PageNumber:  result.Unit.PageNumber,
			PDFPath:     result.Unit.PDFPath,
			Score:       result.Score,
			PrevContext: prev,
			NextContext: next,
		})
	}
	return citations
}

func (uc *ChatUseCase) persistExchange(ctx context.Context, sessionID, userText, userStyle string, resp *domain.ChatResponse) {
	now := time.Now().UTC()
	userMsg := domain.MessageRecord{
		MessageID: uuid.NewString(),
		SessionID: sessionID,
		Role:      "user",
		Text:      userText,
		StyleTag:  userStyle,
		CreatedAt: now,
	}
	assistantMsg := domain.MessageRecord{
		MessageID: uuid.NewString(),
		SessionID: sessionID,
		Role:      "assistant",
		Text:      resp.Answer,
		StyleTag:  resp.AnswerStyle,
		Citations: resp.Citations,
		CreatedAt: now,
	}

	if err := uc.sessions.AppendMessage(ctx, userMsg); err != nil {
		uc.logger.Warn("append_message_degraded", "error", err, "role", "user")
	}
	if err := uc.sessions.AppendMessage(ctx, assistantMsg); err != nil {
		uc.logger.Warn("append_message_degraded", "error", err, "role", "assistant")
	}
}
