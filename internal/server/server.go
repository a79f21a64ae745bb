package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/auth"
	"github.com/Fabian12Florin/KeepUp/internal/config"
	"github.com/Fabian12Florin/KeepUp/internal/stream"
	"github.com/Fabian12Florin/KeepUp/internal/telemetry"
	"github.com/Fabian12Florin/KeepUp/internal/tracking"
	"github.com/Fabian12Florin/KeepUp/internal/workout"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	workoutCollection  = "workouts"
	healthCheckTimeout = 2 * time.Second
)

var ErrStoreUnavailable = errors.New("workout store unavailable")

// HealthCheck probes one backing service for /health.
type HealthCheck func(ctx context.Context) error

// Deps are the connections and collaborators the process managed to open.
// Any of them may be nil.
type Deps struct {
	DB        *pgxpool.Pool
	Mongo     *mongo.Database
	Redis     *redis.Client
	Notifiers []tracking.Notifier
	Reporter  *telemetry.SentryReporter
	Logger    *slog.Logger
	Checks    map[string]HealthCheck
}

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	Stream   *stream.Hub
	Tracking *tracking.Service
	Workouts workout.Repository
	Daily    *tracking.DailyRollover

	logger *slog.Logger
	checks map[string]HealthCheck
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	repo, err := selectRepository(cfg, deps, log)
	if err != nil {
		return nil, err
	}

	app := fiber.New()
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(_ *fiber.Ctx, e interface{}) {
			log.Error("handler panic", "panic", fmt.Sprint(e))
			deps.Reporter.Recover(e)
		},
	}))
	app.Use(logger.New())

	hub := stream.NewHub(deps.Redis, log)
	svc := tracking.NewService(repo, hub,
		tracking.WithNotifiers(deps.Notifiers...),
		tracking.WithErrorReporter(deps.Reporter.Report),
		tracking.WithServiceLogger(log),
	)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		Stream:   hub,
		Tracking: svc,
		Workouts: repo,
		logger:   log,
		checks:   deps.Checks,
	}
	if cfg.RolloverEnabled {
		s.Daily = tracking.NewDailyRollover(svc, nil, log)
	}

	registerRoutes(s)
	return s, nil
}

// RunBackground drives background jobs until ctx is done.
func (s *Server) RunBackground(ctx context.Context) error {
	if s.Daily == nil {
		<-ctx.Done()
		return nil
	}
	return s.Daily.Run(ctx)
}

// Close stops session timers, waits for in-flight saves and detaches the hub from Redis.
func (s *Server) Close() {
	s.Tracking.Close()
	s.Stream.Close()
}

func selectRepository(cfg config.Config, deps Deps, log *slog.Logger) (workout.Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cfg.WorkoutStore {
	case config.StoreMongo:
		if deps.Mongo == nil {
			return nil, fmt.Errorf("%w: mongo store selected without a connection", ErrStoreUnavailable)
		}
		repo := workout.NewMongoRepository(deps.Mongo.Collection(workoutCollection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn("workout indexes not created", "error", err)
		}
		return repo, nil
	case config.StorePostgres, "":
		if deps.DB == nil {
			log.Warn("postgres unavailable, finished workouts will not be persisted")
			return nil, nil
		}
		repo := workout.NewPostgresRepository(deps.DB)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown WORKOUT_STORE %q", cfg.WorkoutStore)
	}
}

func registerRoutes(s *Server) {
	s.App.Get("/health", s.health)

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, s.Daily, jwtMiddleware)
	if s.Workouts != nil {
		workout.RegisterRoutes(s.App.Group("/workouts"), s.Workouts)
	} else {
		s.App.All("/workouts/*", func(*fiber.Ctx) error {
			return fiber.NewError(fiber.StatusServiceUnavailable, ErrStoreUnavailable.Error())
		})
	}
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.currentSnapshot)
}

func (s *Server) currentSnapshot(sessionID string) ([]byte, bool) {
	snap, err := s.Tracking.Snapshot(sessionID)
	if err != nil {
		return nil, false
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthCheckTimeout)
	defer cancel()

	status := fiber.StatusOK
	checks := fiber.Map{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := fiber.Map{
		"status":        "ok",
		"store":         s.Cfg.WorkoutStore,
		"live_sessions": len(s.Tracking.Sessions()),
		"checks":        checks,
	}
	if status != fiber.StatusOK {
		body["status"] = "degraded"
	}
	return c.Status(status).JSON(body)
}
