// Package server wires the blog core to its storage, cache and credential
// store, and runs the HTTP and gRPC adapters side by side until the process
// is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophblog/internal/cryptox"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/cache"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/httpserver"
	"github.com/dmitrijs2005/gophblog/internal/server/metrics"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophblog/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	metrics *metrics.Metrics
	blog    *services.BlogService

	// argon2 is overridable so tests do not pay for production hashing cost.
	argon2 cryptox.Argon2Params
}

type AppOption func(*App)

// WithLogOutput redirects the application log.
func WithLogOutput(w io.Writer) AppOption {
	return func(a *App) {
		a.logger = logging.New(w, a.config.Logging.Level, a.config.Logging.Format)
	}
}

// WithArgon2Params overrides the password hashing cost.
func WithArgon2Params(p cryptox.Argon2Params) AppOption {
	return func(a *App) { a.argon2 = p }
}

// NewApp connects to the database, applies migrations and builds the core.
// Close releases what NewApp acquired.
func NewApp(ctx context.Context, c *config.Config, opts ...AppOption) (*App, error) {
	app := &App{
		config: c,
		logger: logging.New(os.Stdout, c.Logging.Level, c.Logging.Format),
		argon2: cryptox.DefaultArgon2Params,
	}
	for _, opt := range opts {
		opt(app)
	}

	dialect, err := dbx.ParseDialect(c.Database.Driver)
	if err != nil {
		return nil, err
	}

	db, err := dbx.Open(ctx, dialect, c.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if dialect == dbx.DialectPostgres && c.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.Database.MaxOpenConns)
	}
	app.db = db

	rm, err := repomanager.NewRepositoryManager(dialect)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := auth.NewStore([]byte(c.Auth.JWTSecret), c.Auth.TokenTTL, app.argon2)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("credential store: %w", err)
	}

	app.metrics = metrics.New()
	app.blog = services.NewBlogService(db, rm, store, app.logger, services.WithCache(app.postCache(ctx)))

	return app, nil
}

// postCache returns the Redis cache when configured and reachable, Nop otherwise.
func (app *App) postCache(ctx context.Context) cache.PostCache {
	if app.config.Redis.Addr == "" {
		return cache.Nop{}
	}

	rdb := cache.NewRedisClient(app.config.Redis.Addr, app.config.Redis.Password, app.config.Redis.DB)
	if err := rdb.Ping(ctx).Err(); err != nil {
		app.logger.Warn(ctx, "redis unavailable, post cache disabled", "addr", app.config.Redis.Addr, "error", err)
		_ = rdb.Close()
		return cache.Nop{}
	}

	app.redis = rdb
	ttl := app.config.Redis.PostTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return cache.NewRedisPostCache(rdb, ttl)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves both adapters until ctx is cancelled, a signal arrives or one
// of the servers fails. A failing server brings the other one down.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.GRPC.Addr, app.logger, app.blog, app.metrics)
		if err := s.Run(ctx); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s := httpserver.NewHTTPServer(app.config.HTTP.Addr, app.logger, app.blog, app.metrics, app.config.HTTP.CORSAllowedOrigins)
		if err := s.Run(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped", "error", err)
	} else {
		app.logger.Info(ctx, "app stopped")
	}
	return err
}

func (app *App) Close() error {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		return app.db.Close()
	}
	return nil
}
