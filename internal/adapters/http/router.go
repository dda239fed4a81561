package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/core/ports"
	"github.com/skylarkoo7/tartam-rag/internal/observability/metrics"
)

const serviceName = "api"

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInflight    int
}

type Router struct {
	chat     ports.ChatService
	retrieve ports.Retriever
	corpus   ports.CorpusStore
	sessions ports.SessionStore
	queue    ports.MessageQueue
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	chat ports.ChatService,
	retrieve ports.Retriever,
	corpus ports.CorpusStore,
	sessions ports.SessionStore,
	queue ports.MessageQueue,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	return &Router{
		chat:     chat,
		retrieve: retrieve,
		corpus:   corpus,
		sessions: sessions,
		queue:    queue,
		metrics:  serverMetrics,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatTurn)
	mux.HandleFunc("/v1/retrieve", rt.retrieveCitations)
	mux.HandleFunc("/v1/filters", rt.listFilters)
	mux.HandleFunc("/v1/sessions", rt.listSessions)
	mux.HandleFunc("/v1/sessions/", rt.sessionHistory)
	mux.HandleFunc("/v1/reindex", rt.requestReindex)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxInflight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxInflight, 50*time.Millisecond)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	resp, err := rt.chat.Respond(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordChatTurn(serviceName, chatOutcome(resp), resp.AnswerStyle, len(resp.Citations), time.Since(start))
	}
	writeJSON(w, http.StatusOK, resp)
}

func chatOutcome(resp *domain.ChatResponse) string {
	switch {
	case resp.Ambiguous:
		return "ambiguous"
	case resp.NotFound:
		return "not_found"
	default:
		return "answered"
	}
}

type retrieveRequest struct {
	Message string              `json:"message"`
	TopK    int                 `json:"top_k"`
	Filters *domain.ChatFilters `json:"filters,omitempty"`
}

type retrieveResponse struct {
	Results      []domain.RetrievalResult `json:"results"`
	Constrained  bool                     `json:"constrained"`
	Ambiguous    bool                     `json:"ambiguous"`
	QueryContext domain.QueryContext      `json:"query_context"`
}

func (rt *Router) retrieveCitations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	outcome, query, err := rt.retrieve.Retrieve(r.Context(), req.Message, req.TopK, req.Filters, domain.SessionContextState{})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(serviceName, "retrieve", len(outcome.Results), time.Since(start))
	}
	if outcome.Results == nil {
		outcome.Results = []domain.RetrievalResult{}
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Results:      outcome.Results,
		Constrained:  outcome.Constrained,
		Ambiguous:    outcome.Ambiguous,
		QueryContext: query,
	})
}

func (rt *Router) listFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	granths, prakrans, err := rt.corpus.ListFilters(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if granths == nil {
		granths = []string{}
	}
	if prakrans == nil {
		prakrans = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"granths":  granths,
		"prakrans": prakrans,
	})
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sessions, err := rt.sessions.ListSessions(r.Context(), 50)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []domain.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (rt *Router) sessionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID := strings.TrimSuffix(rest, "/history")
	if sessionID == "" || sessionID == rest {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	messages, err := rt.sessions.SessionMessages(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []domain.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (rt *Router) requestReindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SourceSet string `json:"source_set"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	sourceSet := strings.TrimSpace(req.SourceSet)
	if sourceSet == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_set is required"})
		return
	}

	if err := rt.queue.PublishReindexRequested(r.Context(), sourceSet); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "source_set": sourceSet})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
