package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/clickhook/config"
	appmodel "github.com/sifan077/clickhook/internal/app/model"
	apprepository "github.com/sifan077/clickhook/internal/app/repository"
	appserver "github.com/sifan077/clickhook/internal/app/server"
	appservice "github.com/sifan077/clickhook/internal/app/service"
	"github.com/sifan077/clickhook/internal/app/store"
	inthttp "github.com/sifan077/clickhook/internal/http/handler"
	"github.com/sifan077/clickhook/internal/http/util"
	"github.com/sifan077/clickhook/internal/infra/logger"
	infraNATS "github.com/sifan077/clickhook/internal/infra/nats"
	infraPostgres "github.com/sifan077/clickhook/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/clickhook/internal/infra/prometheus"
	infraRedis "github.com/sifan077/clickhook/internal/infra/redis"
	infraSQLite "github.com/sifan077/clickhook/internal/infra/sqlite"
	"github.com/sifan077/clickhook/internal/infra/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, cfg, err := config.LoadViper()
	if err != nil {
		logger.L().Fatal("Failed to load config", zap.Error(err))
	}

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("config_file", v.ConfigFileUsed()),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("events_transport", cfg.Events.Transport),
		zap.String("dispatch_mode", cfg.Dispatch.Mode),
	)

	if v.ConfigFileUsed() != "" {
		config.Watch(v, func(next *config.Config) {
			if err := logger.SetLevel(next.Log.Level); err != nil {
				log.Warn("Ignoring invalid log level from reloaded config", zap.Error(err))
				return
			}
			log.Info("Configuration reloaded", zap.String("log_level", logger.Level().String()))
		}, func(err error) {
			log.Warn("Failed to reload config", zap.Error(err))
		})
	}

	readyChecks := map[string]inthttp.Pinger{}

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	models := []interface{}{&appmodel.Link{}}
	if cfg.Store.Backend == config.StorePostgres {
		models = append(models, &apprepository.Option{})
	}
	if err := infraPostgres.AutoMigrate(ctx, gormDB, models...); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	readyChecks["postgres"] = pool
	log.Info("Connected to Postgres successfully")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		readyChecks["redis"] = inthttp.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		log.Info("Connected to Redis successfully", zap.String("addr", infraRedis.Addr(cfg.Redis)))
	}

	optionStore, closeStore, err := openStore(ctx, cfg, gormDB, redisClient, readyChecks)
	if err != nil {
		log.Fatal("Failed to open option store", zap.Error(err))
	}
	defer closeStore()

	settings := appservice.NewSettingsService(optionStore, log.Named("settings"))
	limiter := appservice.NewRateLimiter(optionStore)
	dispatcher := webhook.New(cfg.Dispatch, webhook.NewHTTPTransport(nil), log.Named("webhook"))
	notifier := appservice.NewNotifier(appservice.NotifierDeps{
		Logger:     log.Named("notifier"),
		Store:      optionStore,
		Settings:   settings,
		Limiter:    limiter,
		Builder:    appservice.NewPayloadBuilder(cfg.Server.SiteURL, cfg.Dispatch.FooterText),
		Dispatcher: dispatcher,
	})

	sweeper := appservice.NewLedgerSweeper(log.Named("ledger"), limiter, settings, cfg.Ledger.SweepSchedule, cfg.Ledger.MaxEntries)
	if err := sweeper.Start(); err != nil {
		log.Fatal("Failed to start ledger sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// Events from the host go straight to the notifier unless a broker sits in between.
	var events appservice.EventSink = notifier
	if cfg.Events.Transport == config.TransportNATS {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log.Named("nats"))
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()
		readyChecks["nats"] = inthttp.PingFunc(natsConn.FlushWithContext)

		if err := appservice.EnsureLinkEventStream(js); err != nil {
			log.Fatal("Failed to prepare link event stream", zap.Error(err))
		}
		consumer := appservice.NewEventConsumer(js, log.Named("consumer"), notifier)
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start link event consumer", zap.Error(err))
		}
		events = appservice.NewEventPublisher(js, log.Named("publisher"))
		log.Info("Connected to NATS successfully", zap.String("url", infraNATS.URL(cfg.NATS)))
	}

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, nil)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Prometheus metrics server disabled")
	}

	if cfg.Server.AdminSecret == "" {
		log.Warn("ADMIN_SECRET is empty; the admin API will reject every request")
	}

	server := appserver.New(appserver.Dependencies{
		Logger:        log,
		Redis:         redisClient,
		ReadyChecks:   readyChecks,
		Links:         appservice.NewLinkService(apprepository.NewLinkRepository(gormDB), events),
		Events:        events,
		Settings:      settings,
		Tester:        notifier,
		Tokens:        util.NewTokenSigner([]byte(cfg.Server.AdminSecret), cfg.Server.AdminTokenTTL),
		CountryHeader: cfg.Geo.CountryHeader,
		APIRateLimit:  cfg.Server.APIRateLimit,
		CORSOrigins:   cfg.Server.CORSOrigins,
		ProxyHeader:   cfg.Server.ProxyHeader,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr), zap.Bool("async_dispatch", dispatcher.Async()))
		serverErr <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server did not shut down cleanly", zap.Error(err))
	}
}

// openStore selects the option store backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, redisClient *redis.Client, readyChecks map[string]inthttp.Pinger) (store.Store, func(), error) {
	var (
		s       store.Store
		release = func() {}
	)

	switch cfg.Store.Backend {
	case config.StorePostgres:
		s = apprepository.NewOptionRepository(gormDB)
	case config.StoreRedis:
		s = store.NewRedis(redisClient)
	case config.StoreSQLite:
		db, err := infraSQLite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sqliteStore, err := store.NewSQLite(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		readyChecks["sqlite"] = inthttp.PingFunc(db.PingContext)
		s = sqliteStore
		release = func() { closeDB(db) }
	case config.StoreMemory:
		s = store.NewMemory()
	}

	if cfg.Store.KeyPrefix != "" {
		s = store.WithPrefix(s, cfg.Store.KeyPrefix)
	}
	return s, release, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.L().Warn("Failed to close sqlite database", zap.Error(err))
	}
}
