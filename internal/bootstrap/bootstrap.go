package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skylarkoo7/tartam-rag/internal/config"
	"github.com/skylarkoo7/tartam-rag/internal/core/ports"
	"github.com/skylarkoo7/tartam-rag/internal/core/usecase"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/llm/ollama"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/queue/nats"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/repository/postgres"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/repository/sqlite"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/resilience"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/vector/qdrant"
	"github.com/skylarkoo7/tartam-rag/internal/language"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Corpus    ports.CorpusStore
	Sessions  ports.SessionStore
	ChatUC    *usecase.ChatUseCase
	ReindexUC *usecase.ReindexUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	corpusDB, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open corpus db: %w", err)
	}
	corpus := sqlite.NewCorpusRepository(corpusDB)

	sessionDB, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sessions := postgres.NewSessionRepository(sessionDB)
	if err := sessions.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure session schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	planner := ollama.NewPlanner(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	variants := language.NewService()

	synonyms, err := config.LoadGranthSynonyms(cfg.GranthSynonymsPath)
	if err != nil {
		return nil, fmt.Errorf("load granth synonyms: %w", err)
	}
	parser := usecase.NewReferenceParser(synonyms, cfg.PrakranMaxSpan)

	retrieval := usecase.NewRetrievalService(corpus, vectorIndex, embedder, variants, cfg.RAGFusionRRFK, logger)
	retriever := usecase.NewAgenticRetriever(retrieval, corpus, cfg.PrakranMaxSpan, logger)

	chatUC := usecase.NewChatUseCase(
		parser,
		retriever,
		corpus,
		sessions,
		planner,
		generator,
		variants,
		usecase.ChatConfig{
			TopK:                  cfg.RAGTopK,
			MinimumGroundingScore: cfg.RAGMinGroundingScore,
			AllowDebugPayloads:    cfg.AllowDebugPayloads,
		},
		logger,
	)
	reindexUC := usecase.NewReindexUseCase(corpus, vectorIndex, embedder, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Corpus:    corpus,
		Sessions:  sessions,
		ChatUC:    chatUC,
		ReindexUC: reindexUC,

		closeFn: func() {
			queue.Close()
			_ = sessionDB.Close()
			_ = corpusDB.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
