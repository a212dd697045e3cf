package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"ragline/features/chunk"
	"ragline/features/job"
	"ragline/features/source"
	"ragline/features/stats"
	"ragline/internal/adapter/gemini"
	wstore "ragline/internal/adapter/weaviate"
	"ragline/internal/config"
	"ragline/internal/logger"
	"ragline/internal/middleware"
	"ragline/internal/text"
	"ragline/internal/vector"
	"ragline/internal/worker"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

func main() {
	// Structured logger with correlation id propagation
	slogger := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(slogger)

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Database Connection
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", cfg.BootstrapRetryAttempts)
		time.Sleep(retryDelay)
	}
	if err := db.Ping(); err != nil {
		slog.Error("failed to ping db after retries", "error", err)
		os.Exit(1)
	}

	// 3. Run Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		slog.Error("failed to create migration driver", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		slog.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	// 4. Weaviate Connection & Schema
	wClient, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		slog.Error("failed to create weaviate client", "error", err)
		os.Exit(1)
	}

	wAdapter := vector.NewWeaviateClientAdapter(wClient)
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := vector.EnsureSchema(context.Background(), wAdapter); err == nil {
			slog.Info("weaviate schema ensured")
			break
		}
		slog.Warn("failed to ensure weaviate schema, retrying...", "attempt", i+1, "error", err)
		time.Sleep(retryDelay)
	}
	if err := vector.EnsureSchema(context.Background(), wAdapter); err != nil {
		slog.Error("failed to ensure weaviate schema after retries", "error", err)
		os.Exit(1)
	}

	vecStore := wstore.NewStore(wClient)

	// 5. Embedding Provider
	embedder, err := gemini.NewEmbedder(context.Background(), cfg.GeminiAPIKey)
	if err != nil {
		slog.Error("failed to create gemini embedder", "error", err)
		os.Exit(1)
	}

	// 6. NSQ Producer
	nsqCfg := nsq.NewConfig()
	nsqProducer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		slog.Error("failed to create NSQ producer", "error", err)
		os.Exit(1)
	}

	// Pre-create the tick topic. NSQ creates topics lazily on publish, but a
	// consumer querying lookupd gets 404s until the topic exists.
	tickTopicURL := fmt.Sprintf("http://%s/topic/create?topic=%s", cfg.NSQDHTTP, config.TopicPipelineTick)
	go func() {
		time.Sleep(retryDelay)
		resp, err := http.Post(tickTopicURL, "application/json", nil)
		if err != nil {
			slog.Warn("failed to pre-create tick topic", "error", err, "url", tickTopicURL)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode == 200 {
			slog.Info("tick topic pre-created successfully")
		}
	}()

	// 7. Repositories, Pipeline, Runner
	queueCfg := job.QueueConfig{
		MaxAttempts: cfg.MaxAttempts,
		ClaimTTL:    time.Duration(cfg.ClaimTTLSeconds) * time.Second,
		BackoffBase: time.Duration(cfg.BackoffBaseSeconds) * time.Second,
		BackoffCap:  time.Duration(cfg.BackoffCapSeconds) * time.Second,
	}
	sourceRepo := source.NewPostgresRepo(db)
	jobRepo := job.NewPostgresRepo(db, queueCfg)
	chunkRepo := chunk.NewPostgresRepo(db)

	stageCfg := worker.StageConfig{
		UserAgent:           cfg.FetchUserAgent,
		FetchMaxBytes:       cfg.FetchMaxBytes,
		FetchTimeout:        time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		ChunkLang:           "en",
		SimilarityThreshold: worker.DefaultSimilarityThreshold,
	}
	pipeline := worker.NewPipeline(db, sourceRepo, jobRepo, chunkRepo,
		embedder, vecStore, text.NewRegexFilter(), stageCfg)
	runner := worker.NewRunner(jobRepo, pipeline)

	// 8. Features
	sourceService := source.NewService(db, sourceRepo, jobRepo, chunkRepo, vecStore, nsqProducer)
	sourceHandler := source.NewHandler(sourceService)

	jobService := job.NewService(jobRepo)
	jobHandler := job.NewHandler(jobService, runner, cfg.DrainMaxJobs)

	statsHandler := stats.NewHandler(sourceRepo, jobRepo, chunkRepo)

	// 9. Tick Consumer
	tickConsumer := worker.NewTickConsumer(runner, jobService, nsqProducer, cfg.DrainMaxJobs)
	consumer, err := nsq.NewConsumer(config.TopicPipelineTick, config.ChannelWorker, nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create NSQ tick consumer", "error", err)
	} else {
		consumer.AddHandler(nsq.HandlerFunc(func(msg *nsq.Message) error {
			return tickConsumer.HandleMessage(msg)
		}))
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Error("failed to connect to NSQLookupd", "error", err)
		} else {
			slog.Info("NSQ tick consumer connected")
		}
	}

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	http.Handle("POST /sources", middleware.CorrelationID(enableCORS(sourceHandler.Create)))
	http.Handle("GET /sources", middleware.CorrelationID(enableCORS(sourceHandler.List)))
	http.Handle("GET /sources/{id}", middleware.CorrelationID(enableCORS(sourceHandler.Get)))
	http.Handle("DELETE /sources/{id}", middleware.CorrelationID(enableCORS(sourceHandler.Delete)))

	http.Handle("POST /drain", middleware.CorrelationID(enableCORS(jobHandler.Drain)))
	http.Handle("GET /jobs/dead", middleware.CorrelationID(enableCORS(jobHandler.ListDeadLetters)))
	http.Handle("POST /jobs/{id}/requeue", middleware.CorrelationID(enableCORS(jobHandler.Requeue)))

	http.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// 10. Start Server
	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.ServerPort), nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
