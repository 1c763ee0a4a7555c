package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"prediction-tracker/internal/ai"
	"prediction-tracker/internal/config"
	"prediction-tracker/internal/pipeline"
	"prediction-tracker/internal/platform/youtube"
	"prediction-tracker/internal/repository/postgresql"
	"prediction-tracker/internal/service"
	httptransport "prediction-tracker/internal/transport/http"
	"prediction-tracker/internal/worker"
)

// @title Prediction Tracker API
// @version 1.0
// @description Tracks content creators' public predictions, verifies them against real-world outcomes and ranks creators by accuracy.
// @BasePath /
func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(envOr("LOG_LEVEL", "info")),
		TimeFormat: time.RFC3339,
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()

	// external clients
	yt, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("youtube client")
	}
	aiClient, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("ai client")
	}
	defer aiClient.Close()
	search, err := ai.NewSearchClient(ctx, cfg.SearchAPIKey, cfg.SearchEngineID)
	if err != nil {
		log.Fatal().Err(err).Msg("search client")
	}

	// DI
	creatorRepo := postgresql.NewCreatorRepository(pool)
	videoRepo := postgresql.NewVideoRepository(pool)
	predRepo := postgresql.NewPredictionRepository(pool)

	queue := service.NewPipelineQueue(rdb, envOr("REDIS_QUEUE_PREFIX", "pipeline:jobs"), service.QueueOptions{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.RetryBackoffBase,
	})
	statusStore := service.NewStatusStore(rdb, envOr("REDIS_STATUS_PREFIX", "pipeline:status"), cfg.StatusTTL)

	analyzer := service.NewAnalysisService(aiClient, search, videoRepo, predRepo)
	pipe := pipeline.New(pipeline.Config{
		MonthsBack:        cfg.MonthsBack,
		MaxVideosPerRun:   cfg.MaxVideosPerRun,
		TranscriptSpacing: cfg.TranscriptSpacing,
		AnalysisSpacing:   cfg.AnalysisSpacing,
		CompletionMargin:  cfg.CompletionMargin,
		MaxAttempts:       cfg.MaxAttempts,
	}, queue, statusStore, videoRepo, creatorRepo, predRepo, yt, analyzer)

	creatorSvc := service.NewCreatorService(creatorRepo, predRepo, pipe)

	// startup recovery: reclaim jobs a dead worker left in processing, then
	// repair pipelines the previous process left mid-phase
	if n, err := queue.RequeueStale(ctx, 1000); err != nil {
		log.Error().Err(err).Msg("requeue stale jobs")
	} else if n > 0 {
		log.Info().Int64("requeued", n).Msg("reclaimed jobs from a previous run")
	}
	if err := pipe.RunRecoverySweep(ctx); err != nil {
		log.Error().Err(err).Msg("recovery sweep")
	}

	// maintenance: re-run the sweep periodically so orphaned work drains
	// even without a restart
	sched := cron.New()
	if _, err := sched.AddFunc("@every 15m", func() {
		if err := pipe.RunRecoverySweep(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled recovery sweep")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule recovery sweep")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP + worker
	handler := httptransport.NewHandler(creatorSvc, pipe)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	workers := worker.NewPool(queue, worker.NewProcessor(pipe), cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Int("workers", cfg.Workers).Msg("server started")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("server stopped")
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
