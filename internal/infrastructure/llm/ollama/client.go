package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/resilience"
)

const maxPlannedSubQueries = 6

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds an ollama client. An empty embedModel selects the deterministic
// hashed pseudo-embedding instead of /api/embed, so retrieval keeps working
// without an embedding model pulled. executor may be nil.
func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	fn := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}
	if c.executor == nil {
		return wrapTemporaryIfNeeded(operation, fn(ctx))
	}
	return wrapTemporaryIfNeeded(operation, c.executor.Execute(ctx, operation, fn, classifyOllamaError))
}

type Planner struct {
	client *Client
}

func NewPlanner(client *Client) *Planner {
	return &Planner{client: client}
}

// PlanQuery expands a question into retrieval sub-queries via strict-JSON
// generation. Callers degrade a failed plan to an empty one, never to a
// failed turn.
func (p *Planner) PlanQuery(ctx context.Context, question string, recent []domain.MessageRecord) (domain.QueryPlan, error) {
	respText, err := p.client.generateJSON(ctx, buildPlannerPrompt(question, recent))
	if err != nil {
		return domain.QueryPlan{}, err
	}

	var plan domain.QueryPlan
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &plan); err != nil {
		return domain.QueryPlan{}, fmt.Errorf("parse plan json: %w", err)
	}
	if plan.SubQueries == nil {
		plan.SubQueries = []string{}
	}
	if plan.RequiredFacts == nil {
		plan.RequiredFacts = []string{}
	}
	if len(plan.SubQueries) > maxPlannedSubQueries {
		plan.SubQueries = plan.SubQueries[:maxPlannedSubQueries]
	}
	return plan, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.client.embedModel == "" {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = pseudoEmbed(text)
		}
		return out, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(
	ctx context.Context,
	question string,
	citations []domain.Citation,
	style string,
	recent []domain.MessageRecord,
) (string, error) {
	return g.client.generateText(ctx, buildAnswerPrompt(question, citations, style, recent))
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "generate", "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
