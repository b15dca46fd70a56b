package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/config"
	"github.com/Dosada05/playoff-engine/db"
	"github.com/Dosada05/playoff-engine/handlers"
	"github.com/Dosada05/playoff-engine/listener"
	"github.com/Dosada05/playoff-engine/repositories"
	api "github.com/Dosada05/playoff-engine/routes"
	"github.com/Dosada05/playoff-engine/services"
	"github.com/Dosada05/playoff-engine/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

type stores struct {
	playoffs repositories.PlayoffRepository
	external repositories.ExternalMatchStore
	closer   io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return nil, err
		}
		applied, err := db.Migrate(ctx, dbConn)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Info("database migrations applied", slog.Any("migrations", applied))
		}
		return &stores{
			playoffs: repositories.NewPostgresPlayoffRepository(dbConn),
			external: repositories.NewPostgresExternalMatchRepository(dbConn),
			closer:   dbConn,
		}, nil

	case config.StorageDriverMongo:
		client, err := db.ConnectMongo(cfg.MongoURI, 5*time.Second)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &stores{
			playoffs: repositories.NewMongoPlayoffRepository(database),
			external: repositories.NewMongoExternalMatchRepository(database),
			closer:   closerFunc(func() error { return client.Disconnect(context.Background()) }),
		}, nil

	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage, state is lost on restart")
		return &stores{
			playoffs: repositories.NewMemoryPlayoffRepository(),
			external: repositories.NewMemoryExternalMatchRepository(),
			closer:   closerFunc(func() error { return nil }),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.String("transport", cfg.EventTransport))

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := st.closer.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		} else {
			logger.Info("storage closed")
		}
	}()

	// Архив снимков сетки (Cloudflare R2), необязателен
	var archiver services.ArchiveService
	r2 := storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
		Endpoint:        cfg.R2Endpoint,
	}
	var uploader storage.FileUploader
	if r2.Enabled() {
		uploader, err = storage.NewR2Uploader(ctx, r2)
		if err != nil {
			return fmt.Errorf("failed to initialize R2 uploader: %w", err)
		}
		logger.Info("R2 snapshot archive enabled", slog.String("bucket", r2.BucketName))
	}
	archive := services.NewArchiveService(st.playoffs, uploader, logger)
	if uploader != nil {
		archiver = archive
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)

	materializer := services.NewMaterializerService(st.playoffs, st.external, wsHub, metrics, logger, cfg.MaxApplyAttempts)
	advancement := services.NewAdvancementService(services.AdvancementDeps{
		Repo:         st.playoffs,
		External:     st.external,
		Materializer: materializer,
		Notifier:     wsHub,
		Archiver:     archiver,
		Metrics:      metrics,
		Logger:       logger,
		MaxAttempts:  cfg.MaxApplyAttempts,
	})
	statusService := services.NewStatusService(st.playoffs, st.external, advancement, metrics, logger)
	seedingService := services.NewSeedingService(st.playoffs, materializer, wsHub, metrics, logger, cfg.MaxApplyAttempts)
	playoffService := services.NewPlayoffService(st.playoffs, cfg.Seeding, wsHub, metrics, logger, cfg.MaxApplyAttempts)
	logger.Info("services initialized")

	// Слушатель событий завершения матчей
	// The NATS reconnect handler may fire before the consumer exists.
	var running atomic.Pointer[listener.Consumer]
	transport, err := listener.NewTransport(listener.TransportConfig{
		Kind:    cfg.EventTransport,
		NATSURL: cfg.NATSURL,
		OnReconnect: func() {
			if c := running.Load(); c != nil {
				go c.Reconcile(ctx)
			}
		},
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.Error("failed to close event transport", slog.Any("error", err))
		}
	}()
	consumer, err := listener.NewConsumer(listener.ConsumerConfig{Topic: cfg.CompletionTopic}, transport.Subscriber,
		listener.StatusAdapter{Status: statusService}, logger)
	if err != nil {
		return err
	}
	running.Store(consumer)
	consumerErrors := make(chan error, 1)
	go func() {
		consumerErrors <- consumer.Run(ctx)
	}()

	// Периодические задачи: материализация и сверка с системой матчей
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			if err := materializer.MaterializeAll(ctx); err != nil {
				logger.Error("scheduler: materialization sweep failed", slog.Any("error", err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule materialization sweep: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() { consumer.Reconcile(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconcile sweep: %w", err)
	}
	scheduler.Start()
	logger.Info("scheduler started", slog.Duration("interval", cfg.SweepInterval))
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	// Инициализация обработчиков HTTP
	playoffHandler := handlers.NewPlayoffHandler(handlers.PlayoffHandlerDeps{
		Playoffs:     playoffService,
		Seeding:      seedingService,
		Advancement:  advancement,
		Materializer: materializer,
		Status:       statusService,
		Archive:      archive,
		Logger:       logger,
	})
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, playoffService, logger)
	opts := api.Options{Logger: logger, Registry: registry}
	if cfg.EnableSimulator {
		publisher := listener.NewCompletionPublisher(transport.Publisher, cfg.CompletionTopic)
		opts.Simulator = handlers.NewSimulatorHandler(listener.NewMatchSimulator(st.external, publisher, logger), logger)
		logger.Warn("match simulator endpoint enabled")
	}

	router := chi.NewRouter()
	api.SetupRoutes(router, opts, playoffHandler, webSocketHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case err := <-consumerErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("completion consumer stopped: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := consumer.Close(); err != nil {
		logger.Error("failed to close completion consumer", slog.Any("error", err))
	}
	logger.Info("server shutdown complete")
	return nil
}
