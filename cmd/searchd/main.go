package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docsearch/internal/analytics"
	"docsearch/internal/corpus"
	"docsearch/internal/index"
	"docsearch/internal/index/tokenizer"
	"docsearch/internal/search"
	"docsearch/internal/search/cache"
	"docsearch/internal/search/handler"
	"docsearch/pkg/config"
	apperrors "docsearch/pkg/errors"
	"docsearch/pkg/health"
	"docsearch/pkg/kafka"
	"docsearch/pkg/logger"
	"docsearch/pkg/metrics"
	"docsearch/pkg/middleware"
	"docsearch/pkg/postgres"
	pkgredis "docsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus_source", cfg.Corpus.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	src, pgClient, err := buildSource(cfg)
	if err != nil {
		slog.Error("failed to create corpus source", "error", err)
		os.Exit(1)
	}
	if pgClient != nil {
		defer pgClient.Close()
	}

	loadStart := time.Now()
	docs, err := corpus.LoadWithRetry(ctx, src, cfg.Corpus)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}

	tok := tokenizer.New(cfg.Tokenizer.StopWords)
	idx, err := index.Build(docs, tok)
	if err != nil {
		slog.Error("failed to build index", "error", err)
		os.Exit(1)
	}
	slog.Info("index built",
		"documents", idx.DocCount(),
		"terms", idx.Terms(),
		"elapsed", time.Since(loadStart).Round(time.Millisecond),
	)
	if m != nil {
		m.IndexTerms.Set(float64(idx.Terms()))
		m.IndexDocuments.Set(float64(idx.DocCount()))
		m.CorpusLoadSeconds.Set(time.Since(loadStart).Seconds())
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, tok)
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AnalyticsTopic)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.AnalyticsTopic)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if idx.DocCount() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "empty corpus"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents, %d terms", idx.DocCount(), idx.Terms())}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if pgClient != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pgClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	engine := search.NewEngine(idx, tok)
	h := handler.New(engine, idx, handler.Options{
		Cache:          queryCache,
		Collector:      collector,
		Metrics:        m,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxResults:     cfg.Search.MaxResults,
		MaxQueryLength: cfg.Search.MaxQueryLength,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("search service listening", "addr", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	// Shutdown completes before the deferred closes run, so in-flight
	// handlers finish publishing analytics before the collector stops.
	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}

	slog.Info("search service stopped")
}

// buildSource creates the configured corpus source. The postgres client is
// returned so the caller can close it and register a health check.
func buildSource(cfg *config.Config) (corpus.Source, *postgres.Client, error) {
	switch cfg.Corpus.Source {
	case "postgres":
		pgClient, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return corpus.NewPostgresSource(pgClient), pgClient, nil
	case "dir":
		if cfg.Corpus.Dir == "" {
			return nil, nil, apperrors.New(apperrors.ErrInvalidInput, 400, "corpus.dir is required for the dir source")
		}
		return corpus.NewDirSource(cfg.Corpus.Dir), nil, nil
	default:
		return nil, nil, apperrors.Newf(apperrors.ErrSourceUnknown, 400, "unsupported corpus source %q", cfg.Corpus.Source)
	}
}
