package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"situationcord.app/relay/common/id"
	"situationcord.app/relay/common/llm"
	"situationcord.app/relay/common/logger"
	"situationcord.app/relay/common/otel"
	"situationcord.app/relay/core/config"
	"situationcord.app/relay/core/db"
	"situationcord.app/relay/internal/alert"
	"situationcord.app/relay/internal/brain"
	"situationcord.app/relay/internal/pipeline"
	"situationcord.app/relay/internal/queue"
	"situationcord.app/relay/internal/store"
	"situationcord.app/relay/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "relay worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer,
		"model", cfg.Enrichment.AIModel)

	// Different node ID than the server
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	llmClient, err := llm.New(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.Enrichment.AIModel,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Conn())

	var mirrors []alert.Dispatcher
	if cfg.Slack.Enabled() {
		mirrors = append(mirrors, alert.NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel, cfg.Enrichment.AlertTimeout))
		slog.InfoContext(ctx, "slack alert mirror enabled")
	}

	enricher := pipeline.New(pipeline.Config{
		AIModel:           cfg.Enrichment.AIModel,
		AlertEndpoint:     cfg.Enrichment.AlertEndpoint,
		AlertTimeout:      cfg.Enrichment.AlertTimeout,
		SeverityThreshold: cfg.Enrichment.SeverityThreshold,
		MaxThreadContext:  cfg.Enrichment.MaxThreadContext,
	}, pipeline.Deps{
		Analyzer:     brain.NewAnalyzer(llmClient, stores.LLMEvals()),
		QAResolver:   brain.NewQAResolver(llmClient, stores.LLMEvals()),
		AlertMirrors: mirrors,
		Messages:     stores.Messages(),
		Analyses:     stores.Analyses(),
		IgnoredUsers: stores.IgnoredUsers(),
		Runs:         stores.PipelineRuns(),
	})

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    int64(cfg.Enrichment.Concurrency),
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Enrichment.MaxAttempts,
		RequeueDelay: cfg.Pipeline.RequeueDelay,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, enricher, worker.Config{
		MaxAttempts: cfg.Enrichment.MaxAttempts,
		Concurrency: cfg.Enrichment.Concurrency,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   cfg.Pipeline.ReclaimMinIdle,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.Handle)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running",
		"concurrency", cfg.Enrichment.Concurrency,
		"severity_threshold", cfg.Enrichment.SeverityThreshold)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Reclaimer first; the worker may still be finishing a batch
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 ___ ___ _      ___   __ __      _____  ___ _  _____ ___
| _ \ __| |    /_\ \ / / \ \    / / _ \| _ \ |/ / __| _ \
|   / _|| |__ / _ \ V /   \ \/\/ / (_) |   / ' <| _||   /
|_|_\___|____/_/ \_\_|     \_/\_/ \___/|_|_\_|\_\___|_|_\
`
