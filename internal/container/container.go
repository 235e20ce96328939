// Package container wires the service together with samber/do.
package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/share-links/internal/handlers"
	"github.com/serroba/share-links/internal/health"
	"github.com/serroba/share-links/internal/metrics"
	"github.com/serroba/share-links/internal/middleware"
	"github.com/serroba/share-links/internal/ratelimit"
	"github.com/serroba/share-links/internal/share"
	"github.com/serroba/share-links/internal/store"
	"github.com/serroba/share-links/internal/token"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	connectTimeout  = 5 * time.Second
	janitorInterval = 10 * time.Minute
	badgerGCEvery   = 5 * time.Minute
	corsMaxAge      = 300

	// A configured token space smaller than this multiple of the attempt bound gets a startup warning.
	smallSpaceFactor = 1e6
)

// Redis owns the shared client and closes it on injector shutdown.
type Redis struct {
	*redis.Client
}

func (r *Redis) Shutdown() error {
	return r.Close()
}

// Postgres owns the connection pool and closes it on injector shutdown.
type Postgres struct {
	*pgxpool.Pool
}

func (p *Postgres) Shutdown() error {
	p.Close()

	return nil
}

// LoggerPackage provides the application logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		cfg := zap.NewDevelopmentConfig()
		if opts.LogFormat == "json" {
			cfg = zap.NewProductionConfig()
		}

		level, err := zapcore.ParseLevel(opts.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}

		cfg.Level = zap.NewAtomicLevelAt(level)

		return cfg.Build()
	})
}

// RedisPackage provides the Redis client. Nothing connects until a backend invokes it.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)

		return &Redis{Client: redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		})}, nil
	})
}

// PostgresPackage provides a migrated PostgreSQL pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if err := store.Migrate(opts.DatabaseURL); err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: connect: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("postgres: ping: %w", err)
		}

		logger.Info("postgres connected")

		return &Postgres{Pool: pool}, nil
	})
}

// StorePackage provides the link store selected by Options.Store, wrapped with retries
// when StoreRetries is positive. Backends with background work are provided on their own
// so the injector shuts them down.
func StorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*store.PostgresStore, error) {
		pg, err := do.Invoke[*Postgres](i)
		if err != nil {
			return nil, err
		}

		s := store.NewPostgresStore(pg.Pool)
		s.StartJanitor(janitorInterval, do.MustInvoke[*zap.Logger](i))

		return s, nil
	})

	do.Provide(injector, func(i *do.Injector) (*store.BadgerStore, error) {
		opts := do.MustInvoke[*Options](i)

		return store.OpenBadgerStore(opts.BadgerDir, badgerGCEvery, do.MustInvoke[*zap.Logger](i))
	})

	do.Provide(injector, func(i *do.Injector) (share.Store, error) {
		opts := do.MustInvoke[*Options](i)

		var backend share.Store

		switch opts.Store {
		case StoreRedis:
			backend = store.NewRedisStore(do.MustInvoke[*Redis](i).Client)
		case StorePostgres:
			s, err := do.Invoke[*store.PostgresStore](i)
			if err != nil {
				return nil, err
			}

			backend = s
		case StoreBadger:
			s, err := do.Invoke[*store.BadgerStore](i)
			if err != nil {
				return nil, err
			}

			backend = s
		case StoreMemory:
			backend = store.NewMemoryStore()
		default:
			return nil, fmt.Errorf("unknown store %q", opts.Store)
		}

		if opts.StoreRetries == 0 {
			return backend, nil
		}

		policy := store.DefaultRetryPolicy()
		policy.MaxRetries = opts.StoreRetries

		return store.NewRetrying(backend, policy), nil
	})
}

// MetricsPackage provides the Prometheus recorder.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Recorder, error) {
		return metrics.NewRecorder(), nil
	})
}

// CoordinatorPackage provides the token generator and the share coordinator.
func CoordinatorPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*token.Generator, error) {
		opts := do.MustInvoke[*Options](i)

		return token.NewGenerator(opts.TokenLength)
	})

	do.Provide(injector, func(i *do.Injector) (*share.Coordinator, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		gen, err := do.Invoke[*token.Generator](i)
		if err != nil {
			return nil, err
		}

		linkStore, err := do.Invoke[share.Store](i)
		if err != nil {
			return nil, err
		}

		if space := token.Space(gen.Length()); space < float64(opts.MaxGenerationAttempts)*smallSpaceFactor {
			logger.Warn("token space is small, creates may exhaust their attempts",
				zap.Int("token_length", gen.Length()),
				zap.Float64("token_space", space),
				zap.Int("max_generation_attempts", opts.MaxGenerationAttempts),
			)
		}

		return share.NewCoordinator(linkStore, gen.Generate, share.Config{
			TTL:         opts.TTL(),
			MaxAttempts: opts.MaxGenerationAttempts,
			BaseURL:     opts.BaseURL,
		}, share.WithObserver(do.MustInvoke[*metrics.Recorder](i)))
	})
}

// RateLimitPackage provides the limiter. Counters live in Redis when Redis is the link store.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ratelimit.Limiter, error) {
		opts := do.MustInvoke[*Options](i)

		var counters ratelimit.Store = store.NewRateLimitMemoryStore()
		if opts.Store == StoreRedis {
			counters = store.NewRateLimitRedisStore(do.MustInvoke[*Redis](i).Client)
		}

		return ratelimit.NewLimiter(counters, ratelimit.DefaultPolicy()), nil
	})
}

// HealthPackage provides the health handler, checking the link store when it can be pinged
// and the rate limit counters when they live in Redis.
func HealthPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*health.Handler, error) {
		opts := do.MustInvoke[*Options](i)

		linkStore, err := do.Invoke[share.Store](i)
		if err != nil {
			return nil, err
		}

		checkers := map[string]health.Checker{}
		if c, ok := linkStore.(health.Checker); ok {
			checkers["store"] = c
		}

		if opts.RateLimit && opts.Store == StoreRedis {
			checkers["ratelimit"] = health.NewRedisChecker(do.MustInvoke[*Redis](i).Client)
		}

		return health.NewHandler(opts.Store, checkers), nil
	})
}

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		opts := do.MustInvoke[*Options](i)

		router := chi.NewMux()
		router.Use(chimiddleware.Recoverer)

		if origins := opts.CorsOrigins(); len(origins) > 0 {
			router.Use(cors.Handler(cors.Options{
				AllowedOrigins: origins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				ExposedHeaders: []string{"Location", "Retry-After"},
				MaxAge:         corsMaxAge,
			}))
		}

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		coordinator, err := do.Invoke[*share.Coordinator](i)
		if err != nil {
			return nil, err
		}

		healthHandler, err := do.Invoke[*health.Handler](i)
		if err != nil {
			return nil, err
		}

		recorder := do.MustInvoke[*metrics.Recorder](i)
		router.Method(http.MethodGet, "/metrics", recorder.Handler())

		api := humachi.New(router, huma.DefaultConfig("Share Links", "1.0.0"))
		api.UseMiddleware(middleware.RequestLogger(logger))

		if opts.RateLimit {
			api.UseMiddleware(middleware.RateLimit(api, do.MustInvoke[*ratelimit.Limiter](i), logger))
		}

		handlers.RegisterRoutes(api, handlers.NewShareHandler(coordinator, logger))
		health.RegisterRoutes(api, healthHandler)

		return api, nil
	})
}

// Register provides every package. Providers are lazy, so unused backends never connect.
func Register(injector *do.Injector, options *Options) {
	do.ProvideValue(injector, options)
	LoggerPackage(injector)
	RedisPackage(injector)
	PostgresPackage(injector)
	StorePackage(injector)
	MetricsPackage(injector)
	CoordinatorPackage(injector)
	RateLimitPackage(injector)
	HealthPackage(injector)
	HTTPPackage(injector)
}
