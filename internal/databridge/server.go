// Package databridge provides the DataBridge server implementation.
package databridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/databridge/internal/databridge/biz"
	"github.com/kart-io/databridge/internal/databridge/handler"
	"github.com/kart-io/databridge/internal/databridge/middleware"
	"github.com/kart-io/databridge/internal/databridge/router"
	"github.com/kart-io/databridge/internal/databridge/store"
	"github.com/kart-io/databridge/internal/databridge/telemetry"
	"github.com/kart-io/databridge/pkg/component/milvus"
	"github.com/kart-io/databridge/pkg/component/mongodb"
	"github.com/kart-io/databridge/pkg/component/redis"
	"github.com/kart-io/databridge/pkg/llm"

	// Register LLM providers.
	_ "github.com/kart-io/databridge/pkg/llm/ollama"
	_ "github.com/kart-io/databridge/pkg/llm/openai"
	"github.com/kart-io/databridge/pkg/llm/rerank"
	bridgeopts "github.com/kart-io/databridge/pkg/options/bridge"
	httpopts "github.com/kart-io/databridge/pkg/options/http"
	jwtopts "github.com/kart-io/databridge/pkg/options/jwt"
	llmopts "github.com/kart-io/databridge/pkg/options/llm"
	logopts "github.com/kart-io/databridge/pkg/options/logger"
	milvusopts "github.com/kart-io/databridge/pkg/options/milvus"
	mongodbopts "github.com/kart-io/databridge/pkg/options/mongodb"
	redisopts "github.com/kart-io/databridge/pkg/options/redis"
	storageopts "github.com/kart-io/databridge/pkg/options/storage"
)

// Name is the name of the application.
const Name = "databridge"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	JWTOptions        *jwtopts.Options
	MongoOptions      *mongodbopts.Options
	MilvusOptions     *milvusopts.Options
	RedisOptions      *redisopts.Options
	StorageOptions    *storageopts.Options
	BridgeOptions     *bridgeopts.Options
	EmbeddingOptions  *llmopts.Options
	CompletionOptions *llmopts.Options
}

// Server represents the DataBridge server.
type Server struct {
	http    *http.Server
	cfg     *Config
	closers []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. Initialize logging.
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting DataBridge service...")

	var closers []func()

	// 2. Initialize the metadata store.
	mongoClient, err := mongodb.NewWithContext(ctx, cfg.MongoOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	closers = append(closers, func() { _ = mongoClient.Close() })
	database := store.NewMongoStore(mongoClient)
	logger.Info("Metadata store initialized")

	// 3. Initialize the vector store.
	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	closers = append(closers, func() { _ = milvusClient.Close(context.Background()) })
	vectorStore := store.NewMilvusStore(milvusClient, cfg.BridgeOptions.Collection, cfg.EmbeddingOptions.Dimension)
	if err := vectorStore.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	logger.Infow("Vector store initialized", "collection", cfg.BridgeOptions.Collection)

	// 4. Initialize blob storage.
	blobStore, err := store.NewLocalBlobStore(cfg.StorageOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
	}
	logger.Infow("Blob storage initialized", "base_path", cfg.StorageOptions.BasePath)

	// 5. Initialize the query cache. A broken Redis disables caching
	// rather than failing startup.
	var queryCache *biz.QueryCache
	if cfg.BridgeOptions.QueryCacheEnabled {
		redisClient, err := redis.New(ctx, cfg.RedisOptions)
		if err != nil {
			logger.Warnw("failed to connect to redis, query cache disabled", "error", err.Error())
		} else {
			closers = append(closers, func() { _ = redisClient.Close() })
			queryCache = biz.NewQueryCache(redisClient.Raw(), &biz.QueryCacheConfig{
				Enabled: true,
				TTL:     cfg.BridgeOptions.QueryCacheTTL,
			})
			logger.Infow("Query cache initialized", "ttl", cfg.BridgeOptions.QueryCacheTTL)
		}
	} else {
		logger.Info("Query cache is disabled")
	}

	// 6. Initialize LLM providers.
	embedder, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider, "model", cfg.EmbeddingOptions.Model)

	chatProvider, err := llm.NewChatProvider(cfg.CompletionOptions.Provider, cfg.CompletionOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	completer, err := llm.NewCompletionProvider(cfg.CompletionOptions.Provider, cfg.CompletionOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion provider: %w", err)
	}
	logger.Infow("Completion provider initialized",
		"provider", cfg.CompletionOptions.Provider, "model", cfg.CompletionOptions.Model)

	var reranker llm.Reranker
	if cfg.BridgeOptions.EnableRerank {
		reranker = rerank.NewLLMReranker(chatProvider)
		logger.Info("LLM reranker enabled")
	}

	// 7. Initialize the Biz layer.
	service := biz.NewDocumentService(
		database, vectorStore, blobStore,
		embedder, chatProvider, completer, reranker,
		queryCache, cfg.BridgeOptions,
	)
	logger.Infow("Document service initialized",
		"chunk_size", cfg.BridgeOptions.ChunkSize,
		"top_k", cfg.BridgeOptions.TopK,
		"rerank", cfg.BridgeOptions.EnableRerank,
	)

	// 8. Initialize the handler layer and routes.
	authn := middleware.NewAuthenticator(cfg.JWTOptions)
	h := handler.New(service, authn, telemetry.NewTracker(), map[string]string{
		"database":     "mongodb",
		"vector_store": "milvus",
		"storage":      "local",
		"embedding":    cfg.EmbeddingOptions.Provider,
		"completion":   cfg.CompletionOptions.Provider,
	})

	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Logging())
	router.Register(engine, h, authn)

	logger.Info("DataBridge service is ready")
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
		},
		cfg:     cfg,
		closers: closers,
	}, nil
}

// Run starts the server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down DataBridge service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPOptions.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
