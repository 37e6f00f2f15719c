package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"studio/internal/adapter/repo"
	"studio/internal/config"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/middleware"
	"studio/internal/notify"
	"studio/internal/orchestrator"
	"studio/internal/providers/media"
	"studio/internal/session"
	"studio/internal/storage"
	"studio/internal/studio"
	"studio/internal/telemetry"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ops, err := config.LoadOperations(cfg.OperationsConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load operations config")
	}
	// submit and upload requests come on top of the longest poll loop
	if bound := ops.LongestRun() + 2*cfg.MediaRequestTimeout; bound > cfg.HTTPWriteTimeout {
		logger.Warn().
			Dur("worst_case_run", bound).
			Dur("http_write_timeout", cfg.HTTPWriteTimeout).
			Msg("slow operations can outlive their HTTP response")
	}
	metrics := telemetry.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Layer records are optional; without a database they are only logged.
	var recorder studio.LayerRecorder
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if dbpool != nil {
		defer dbpool.Close()
		layerRepo := repo.NewLayerRepository(infra.NewSQLRunner(dbpool, infra.Component(&logger, "sql")))
		if err := layerRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare layer_records")
		}
		recorder = layerRepo
	} else {
		logger.Warn().Msg("DATABASE_URL not set; layer records disabled")
	}

	blobs, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.SnapshotBackend).Msg("failed to open snapshot store")
	}
	sessions := session.NewRegistry(session.NewBlobSnapshots(blobs), session.Options{
		IdleTTL: ops.SnapshotTTL,
		Logger:  infra.Component(&logger, "session"),
	})

	client, err := media.NewClient(media.Options{
		APIKey:         cfg.MediaAPIKey,
		BaseURL:        cfg.MediaBaseURL,
		DeliveryURL:    cfg.MediaDeliveryURL,
		Logger:         infra.Component(&logger, "media"),
		RequestTimeout: cfg.MediaRequestTimeout,
		RatePerSecond:  cfg.MediaRatePerSecond,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create media client")
	}
	orch, err := orchestrator.New(orchestrator.Options{
		Client:  client,
		Budgets: ops.KindBudgets(),
		Logger:  infra.Component(&logger, "orchestrator"),
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create orchestrator")
	}

	var publisher notify.Publisher = notify.NewLogPublisher(infra.Component(&logger, "notify"))
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka publisher")
		}
		publisher = kp
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close publisher")
		}
	}()

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath, geoip.Options{Logger: infra.Component(&logger, "geoip")})
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		defer resolver.Close()
	}

	svc, err := studio.New(studio.Options{
		Sessions:       sessions,
		Runner:         orch,
		Recorder:       recorder,
		Publisher:      publisher,
		Metrics:        metrics,
		Logger:         &logger,
		PersistTimeout: ops.PersistTimeout,
		SourceHosts:    cfg.SourceHostAllowlist,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create studio service")
	}

	router := httpapi.NewRouter(handlers.NewApp(svc, &logger), httpapi.Options{
		Logger:          &logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	servers := []*infra.HTTPServer{
		infra.NewHTTPServer(cfg, router),
		infra.NewMetricsServer(cfg, metrics.Handler()),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info().Str("server", srv.Name()).Str("addr", srv.Addr()).Msg("listening")
			return srv.Start()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := svc.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func openSnapshotStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	if cfg.SnapshotBackend == "minio" {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return storage.NewObjectStore(ctx, storage.ObjectOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	}
	return storage.NewFileStore(cfg.SnapshotPath)
}
