package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/config"
	"github.com/Fabian12Florin/KeepUp/internal/db"
	"github.com/Fabian12Florin/KeepUp/internal/events"
	"github.com/Fabian12Florin/KeepUp/internal/logging"
	"github.com/Fabian12Florin/KeepUp/internal/server"
	"github.com/Fabian12Florin/KeepUp/internal/telemetry"
	"github.com/Fabian12Florin/KeepUp/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(service, level string) *slog.Logger
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	connectMongo    func(config.Config) (*mongo.Client, *mongo.Database, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, Resources, <-chan os.Signal, ListenFunc) error
}

// Resources are the long-lived connections Run serves with and releases on exit.
type Resources struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	Events   *events.Publisher
	Influx   *telemetry.InfluxRecorder
	Sentry   *telemetry.SentryReporter
	Logger   *slog.Logger
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       logging.New,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		connectMongo:    db.ConnectMongo,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	log := deps.newLogger("keepup-api", cfg.LogLevel)

	res := Resources{Logger: log}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Warn("postgres connection failed", "error", err)
	}
	res.Postgres = pg
	res.Redis = deps.connectRedis(cfg)

	if cfg.WorkoutStore == config.StoreMongo {
		client, database, err := deps.connectMongo(cfg)
		if err != nil {
			log.Error("mongo connection failed", "error", err)
		}
		res.Mongo, res.MongoDB = client, database
	}

	if cfg.AMQPURL != "" {
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, workout events disabled", "error", err)
		} else {
			res.Events = pub
		}
	}
	if cfg.InfluxURL != "" {
		rec, err := telemetry.NewInfluxRecorder(cfg.InfluxURL, cfg.InfluxDatabase)
		if err != nil {
			log.Warn("influxdb unavailable, workout metrics disabled", "error", err)
		} else {
			res.Influx = rec
		}
	}
	if cfg.SentryDSN != "" {
		rep, err := telemetry.NewSentryReporter(cfg.SentryDSN, "production")
		if err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			res.Sentry = rep
		}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, res, signals, nil); err != nil {
		log.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and background jobs and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, res Resources, signals <-chan os.Signal, listen ListenFunc) error {
	log := res.Logger
	if log == nil {
		log = slog.Default()
	}
	defer res.release(log)

	srv, err := server.NewServer(cfg, server.Deps{
		DB:        res.Postgres,
		Mongo:     res.MongoDB,
		Redis:     res.Redis,
		Notifiers: res.notifiers(),
		Reporter:  res.Sentry,
		Logger:    log,
		Checks:    res.checks(),
	})
	if err != nil {
		return err
	}

	if listen == nil {
		listen = defaultListen
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	bgDone := make(chan struct{})
	go func() {
		defer close(bgDone)
		if err := srv.RunBackground(bgCtx); err != nil {
			log.Error("background jobs stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	var runErr error
	select {
	case sig := <-signals:
		log.Info("shutting down", "signal", sig)
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	stopBackground()
	<-bgDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	srv.Close()
	return runErr
}

func (r Resources) notifiers() []tracking.Notifier {
	var out []tracking.Notifier
	if r.Events != nil {
		out = append(out, r.Events)
	}
	if r.Influx != nil {
		out = append(out, r.Influx)
	}
	return out
}

func (r Resources) checks() map[string]server.HealthCheck {
	checks := map[string]server.HealthCheck{}
	if r.Postgres != nil {
		checks["postgres"] = func(ctx context.Context) error { return r.Postgres.Ping(ctx) }
	}
	if r.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return r.Redis.Ping(ctx).Err() }
	}
	if r.Mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return r.Mongo.Ping(ctx, nil) }
	}
	if r.Influx != nil {
		checks["influxdb"] = func(context.Context) error { return r.Influx.Ping(2 * time.Second) }
	}
	return checks
}

func (r Resources) release(log *slog.Logger) {
	if r.Events != nil {
		if err := r.Events.Close(); err != nil {
			log.Warn("close rabbitmq", "error", err)
		}
	}
	if r.Influx != nil {
		_ = r.Influx.Close()
	}
	if r.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.Mongo.Disconnect(ctx)
		cancel()
	}
	if r.Postgres != nil {
		r.Postgres.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	r.Sentry.Flush(2 * time.Second)
}
