package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/tvguide/internal/tvguide/http"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store/drivers/postgres"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store/drivers/sqlite"
	"github.com/aussiebroadwan/tvguide/pkg/cryptox"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
	"github.com/aussiebroadwan/tvguide/pkg/promx"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

const (
	serviceName    = "tvguide"
	startupTimeout = 30 * time.Second
)

// Application holds the tvguide service and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	redis    *redis.Client
	tokens   *jwtx.HMAC
	hasher   *cryptox.Hasher
	registry *prometheus.Registry
	metrics  *promx.Metrics

	// Services
	authService      *service.AuthService
	identityService  *service.IdentityService
	bootstrapService *service.BootstrapService
	catalogService   *service.CatalogService
	statsService     *service.StatsService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New validates cfg and builds the application. Any error here means the
// service must not start.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.WeakSecret() {
		app.logger.Warn("JWT secret is shorter than recommended", "min_bytes", minSecretLength)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initCrypto(); err != nil {
		app.closeResources()
		return nil, err
	}
	app.initRedis(ctx)
	app.initMetrics()
	if err := app.initServices(); err != nil {
		app.closeResources()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.statsService.Start()

	app.logger.Info("tvguide starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.statsService.Stop()
		app.closeResources()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests within the grace period, then stops
// the workers and releases the store and redis.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tvguide...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.statsService.Stop()

	if err := app.closeResources(); err != nil {
		return err
	}

	app.logger.Info("tvguide stopped")
	return nil
}

// Handler exposes the fully wired router.
func (app *Application) Handler() http.Handler { return app.router }

func (app *Application) closeResources() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens the configured store and applies migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	driver, dsn := databaseTarget(app.cfg.DatabaseURL)

	var (
		db  store.Store
		err error
	)
	switch driver {
	case "postgres":
		db, err = postgres.NewStore(ctx, dsn)
	default:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			dsn = sqlite.FileDSN(dsn)
		}
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s database: %w", driver, err)
	}
	app.db = db

	if err := db.ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", driver)
	return nil
}

// initCrypto loads the pepper and builds the hasher and token issuer.
func (app *Application) initCrypto() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper, cryptox.DefaultArgon2Params)

	app.tokens, err = jwtx.NewHMAC(jwtx.HMACConfig{
		Secret:    []byte(app.cfg.JWTSecret),
		Algorithm: app.cfg.JWTAlgorithm,
		TTL:       app.cfg.AccessTokenTTL,
		Issuer:    app.cfg.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	return nil
}

// initRedis connects the shared rate limiter backend when REDIS_URL is set.
// An unreachable redis is logged; the limiters fail open.
func (app *Application) initRedis(ctx context.Context) {
	if app.cfg.RedisURL == "" {
		return
	}
	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		app.logger.Error("invalid REDIS_URL, using in-memory rate limits", "error", err)
		return
	}
	app.redis = redis.NewClient(opts)
	if err := app.redis.Ping(ctx).Err(); err != nil {
		app.logger.Warn("redis unreachable at startup", "error", err)
	}
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = promx.NewMetrics(app.registry)
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	app.authService = &service.AuthService{
		Store:                app.db,
		Hasher:               app.hasher,
		Tokens:               app.tokens,
		DefaultRole:          app.cfg.DefaultRole,
		OpenRoleRegistration: app.cfg.OpenRoleRegistration,
		Metrics:              app.metrics,
	}
	if err := app.authService.Prepare(); err != nil {
		return err
	}
	app.identityService = &service.IdentityService{
		Store:  app.db,
		Tokens: app.tokens,
	}
	app.bootstrapService = &service.BootstrapService{
		Store:  app.db,
		Hasher: app.hasher,
		Token:  app.cfg.BootstrapToken,
	}
	app.catalogService = &service.CatalogService{Store: app.db}

	if app.bootstrapService.Enabled() {
		app.logger.Info("bootstrap endpoint enabled", "token_fingerprint", cryptox.Fingerprint(app.cfg.BootstrapToken))
	}

	app.statsService = service.NewStatsService(
		app.db,
		app.logger,
		app.metrics,
		app.cfg.StatsInterval,
	)
	return nil
}

func (app *Application) limiters() httpapi.Limiters {
	if app.redis == nil {
		return httpapi.Limiters{
			Strict:   httpx.NewMemoryLimiter(app.cfg.RateLimitStrict),
			Moderate: httpx.NewMemoryLimiter(app.cfg.RateLimitModerate),
			Lenient:  httpx.NewMemoryLimiter(app.cfg.RateLimitLenient),
			Proxies:  app.cfg.TrustedProxies,
		}
	}
	return httpapi.Limiters{
		Strict:   httpx.NewRedisLimiter(app.redis, app.cfg.RateLimitStrict, serviceName+":rl:strict"),
		Moderate: httpx.NewRedisLimiter(app.redis, app.cfg.RateLimitModerate, serviceName+":rl:moderate"),
		Lenient:  httpx.NewRedisLimiter(app.redis, app.cfg.RateLimitLenient, serviceName+":rl:lenient"),
		Proxies:  app.cfg.TrustedProxies,
		Ping: func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		},
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger, app.metrics)

	router.Gatherer = app.registry
	router.Limiters = app.limiters()
	router.AuthService = app.authService
	router.IdentityService = app.identityService
	router.BootstrapService = app.bootstrapService
	router.CatalogService = app.catalogService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
