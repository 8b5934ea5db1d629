package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/cache"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/database"
	"github.com/stemsi/tryout-backend/internal/event"
	"github.com/stemsi/tryout-backend/internal/handler"
	"github.com/stemsi/tryout-backend/internal/logger"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/retry"
	"github.com/stemsi/tryout-backend/internal/router"
	"github.com/stemsi/tryout-backend/internal/service"
	"github.com/stemsi/tryout-backend/internal/timer"
	"github.com/stemsi/tryout-backend/internal/validator"
	"github.com/stemsi/tryout-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Tryout Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Event Publisher ───────────────────────────────────────────────
	var events event.Publisher = event.Noop{}
	if cfg.AMQPURL != "" {
		pub, err := event.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warn().Err(err).Msg("AMQP unavailable, domain events disabled")
		} else {
			events = pub
		}
	}
	defer events.Close()

	m := metrics.New()

	// ─── Initialize Repositories & Caches ──────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	sessionStore := cache.NewSessionStore(rdb)
	testCache := cache.NewTestCache(rdb)
	answerBuffer := cache.NewAnswerBuffer(rdb)
	boardCache := cache.NewLeaderboardCache(rdb, cfg.LeaderboardCacheTTL)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, sessionStore)
	testService := service.NewTestService(testRepo, questionRepo, testCache, log)
	leaderboardService := service.NewLeaderboardService(attemptRepo, testService, boardCache, cfg.LeaderboardSize, log)
	attemptService := service.NewAttemptService(service.AttemptDeps{
		Attempts:    attemptRepo,
		Tests:       testService,
		Buffer:      answerBuffer,
		Leaderboard: boardCache,
		Events:      events,
		Metrics:     m,
		Clock:       timer.SystemClock,
		Retry: retry.Policy{
			Attempts: cfg.RetryAttempts,
			Base:     cfg.RetryBase,
			Max:      retry.DefaultPolicy.Max,
		},
		Log: log,
	})

	answersQueue := cache.NewQueue(rdb, config.WorkerKey.PersistAnswersQueue)
	refreshQueue := cache.NewQueue(rdb, config.WorkerKey.LeaderboardRefreshQueue)

	// ─── Initialize Handlers ──────────────────────────────────────────
	systemHandler := handler.NewSystemHandler(
		map[string]handler.Check{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		map[string]handler.QueueProbe{
			config.WorkerKey.PersistAnswersQueue:     answersQueue,
			config.WorkerKey.LeaderboardRefreshQueue: refreshQueue,
		},
		log,
	)
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, log),
		Test:    handler.NewTestHandler(testService, leaderboardService, log),
		Attempt: handler.NewAttemptHandler(attemptService, log),
		WS:      handler.NewWSHandler(attemptService, cfg.TimerTick, log, cfg.AllowedOrigins),
		System:  systemHandler,
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	autosaveWorker := worker.NewAutosaveWorker(answersQueue, attemptRepo, m, log)
	leaderboardWorker := worker.NewLeaderboardWorker(refreshQueue, leaderboardService, m, log)
	expiryWorker := worker.NewExpiryWorker(attemptService, cfg.ExpirySweepInterval, m, log)

	for _, start := range []func(context.Context){
		autosaveWorker.Start,
		leaderboardWorker.Start,
		expiryWorker.Start,
	} {
		workers.Add(1)
		go func(start func(context.Context)) {
			defer workers.Done()
			start(workerCtx)
		}(start)
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all active tests into Redis before accepting traffic.
	if err := testService.WarmActive(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, m, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
