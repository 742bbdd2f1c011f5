package bookqa

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/panjf2000/ants/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/bookqa/handler"
	"github.com/studyforge/bookqa/internal/bookqa/middleware"
	"github.com/studyforge/bookqa/internal/bookqa/router"
	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/pkg/component/milvus"
	"github.com/studyforge/bookqa/pkg/component/postgres"
	"github.com/studyforge/bookqa/pkg/component/redis"
	"github.com/studyforge/bookqa/pkg/llm"

	// Register LLM providers.
	_ "github.com/studyforge/bookqa/pkg/llm/huggingface"
	_ "github.com/studyforge/bookqa/pkg/llm/ollama"
	_ "github.com/studyforge/bookqa/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "bookqa"

// Config contains application-related configurations.
type Config struct {
	Options *Options
}

// Server represents the book QA server.
type Server struct {
	opts       *Options
	httpServer *http.Server
	sessions   *biz.SessionManager

	milvusClose   func()
	postgresClose func()
	redisClose    func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	opts := cfg.Options

	// 1. Logger
	logOpt := option.DefaultLogOption()
	logOpt.Level = opts.Log.Level
	logOpt.Format = opts.Log.Format
	logOpt.OutputPaths = opts.Log.OutputPaths
	logOpt.Development = opts.Log.Development
	logOpt.WithInitialFields(map[string]interface{}{"service.name": Name})
	log, err := logger.New(logOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(log)
	logger.Info("Starting book QA service...")

	// 2. Milvus
	milvusClient, err := milvus.New(opts.Milvus)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	vectorStore := store.NewMilvusStore(milvusClient)
	logger.Info("Milvus client initialized")

	// 3. PostgreSQL
	pgClient, err := postgres.NewWithContext(ctx, opts.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	if err := store.Migrate(pgClient.DB()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Postgres client initialized")

	// 4. Redis. The service survives without it: the transform cache loses
	// its cross-replica lock and rate limiting degrades to per-process.
	var rdb *goredis.Client
	var redisClose func()
	if opts.Redis.Enabled {
		redisClient, err := redis.NewWithContext(ctx, opts.Redis)
		if err != nil {
			logger.Warnw("redis unavailable, continuing degraded", "error", err.Error())
		} else {
			rdb = redisClient.Client()
			redisClose = func() { _ = redisClient.Close() }
			logger.Infow("Redis client initialized",
				"host", opts.Redis.Host, "port", opts.Redis.Port)
		}
	} else {
		logger.Info("Redis is disabled")
	}

	// 5. LLM providers
	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	fallbackProvider, err := llm.NewEmbeddingProvider(opts.Fallback.Provider, opts.Fallback.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fallback embedding provider: %w", err)
	}
	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	rerankProvider, err := llm.NewRerankProvider(opts.Rerank.Provider, opts.Rerank.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rerank provider: %w", err)
	}
	logger.Infow("LLM providers initialized",
		"embedding", opts.Embedding.Provider,
		"fallback", opts.Fallback.Provider,
		"chat", opts.Chat.Provider,
		"rerank", opts.Rerank.Provider,
	)

	strategies := biz.NewEmbeddingSet(opts.RAG.Strategy)
	strategies.Add(&biz.EmbeddingStrategy{
		Name:       biz.StrategyPrimary,
		Provider:   embedProvider,
		Dimension:  opts.RAG.PrimaryDim,
		Collection: opts.RAG.PrimaryCollection,
	})
	strategies.Add(&biz.EmbeddingStrategy{
		Name:       biz.StrategyFallback,
		Provider:   fallbackProvider,
		Dimension:  opts.RAG.FallbackDim,
		Collection: opts.RAG.FallbackCollection,
	})

	// 6. Store layer
	sessionStore := store.NewSessionStore(pgClient.DB(), opts.RAG.SessionTTL)
	bookStore := store.NewBookStore(pgClient.DB())
	transformStore := store.NewTransformStore(pgClient.DB(), rdb)

	// 7. Biz layer
	retriever := biz.NewRetriever(vectorStore, strategies, &biz.RetrieverConfig{TopK: opts.RAG.TopK})
	reranker := biz.NewReranker(rerankProvider, &biz.RerankerConfig{Keep: opts.RAG.RerankKeep})
	agentConfig := biz.DefaultAgentConfig()
	agentConfig.ConfidenceThreshold = opts.RAG.ConfidenceThreshold
	agent := biz.NewGroundingAgent(chatProvider, agentConfig)
	sessions := biz.NewSessionManager(sessionStore)
	qaService := biz.NewQAService(retriever, reranker, agent, sessions, &biz.ServiceConfig{
		RecentTurns: opts.RAG.RecentTurns,
	})
	ingestorConfig := biz.DefaultIngestorConfig()
	ingestorConfig.Chunker = &biz.ChunkerConfig{
		TargetTokens:  opts.RAG.ChunkTarget,
		MaxTokens:     opts.RAG.ChunkMax,
		OverlapTokens: opts.RAG.ChunkOverlap,
	}
	ingestorConfig.BatchSize = opts.RAG.IngestBatchSize
	ingestorConfig.MaxAttempts = opts.RAG.IngestMaxAttempts
	ingestorConfig.Workers = opts.RAG.IngestWorkers
	ingestorConfig.HNSWM = opts.RAG.HNSWM
	ingestorConfig.HNSWEfConstruction = opts.RAG.HNSWEfConstruction
	ingestor := biz.NewIngestor(vectorStore, bookStore, strategies, ingestorConfig)
	transformConfig := biz.DefaultTransformConfig()
	transformConfig.DefaultLanguage = opts.RAG.TranslateLanguage
	transformer := biz.NewTransformer(bookStore, transformStore, chatProvider, transformConfig)
	logger.Info("Biz layer initialized")

	// 8. Handler layer
	handlers := &router.Handlers{
		Chat:      handler.NewChatHandler(qaService),
		History:   handler.NewHistoryHandler(sessions),
		Transform: handler.NewTransformHandler(transformer),
		Ingest:    handler.NewIngestHandler(ingestor),
		Health:    handler.NewHealthHandler(pgClient, milvusClient, rdb),
	}

	var limits *router.Limits
	if opts.RateLimit.Enabled {
		limits = &router.Limits{
			Limiter:            middleware.NewRateLimiter(rdb),
			ChatPerMinute:      opts.RateLimit.ChatPerMinute,
			TransformPerMinute: opts.RateLimit.TransformPerMinute,
		}
	}

	// 9. HTTP server
	gin.SetMode(opts.Server.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.Register(engine, handlers, limits)

	httpServer := &http.Server{
		Addr:         opts.Server.Addr,
		Handler:      engine,
		ReadTimeout:  opts.Server.ReadTimeout,
		WriteTimeout: opts.Server.WriteTimeout,
	}

	logger.Info("Book QA service is ready")
	return &Server{
		opts:          opts,
		httpServer:    httpServer,
		sessions:      sessions,
		milvusClose:   func() { _ = milvusClient.Close(context.Background()) },
		postgresClose: func() { _ = pgClient.Close() },
		redisClose:    redisClose,
	}, nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.redisClose != nil {
			s.redisClose()
		}
		s.postgresClose()
		s.milvusClose()
	}()

	pool, err := ants.NewPool(1)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()
	s.sessions.StartSweeper(ctx, pool, s.opts.RAG.SweepInterval, s.opts.RAG.SessionRetain)

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.opts.Server.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
