package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/lobbynet/internal/dependencies/clock"
	"github.com/mcoot/lobbynet/internal/dependencies/random"
	"github.com/mcoot/lobbynet/internal/services/auth"
	"github.com/mcoot/lobbynet/internal/services/directory"
	"github.com/mcoot/lobbynet/internal/storage"
	"github.com/mcoot/lobbynet/internal/storage/memory"
	redisstorage "github.com/mcoot/lobbynet/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// DefaultJanitorInterval is how often expired auth sessions are swept
const DefaultJanitorInterval = time.Minute

// App contains all wired directory server components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService      *auth.Service
	DirectoryService *directory.Service

	logger *slog.Logger
	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// DirectoryConfig holds session expiry and capacity limits (optional)
	DirectoryConfig directory.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()

	var store storage.Storage
	var closer io.Closer
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New(clk)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closer = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	app := newWithDependencies(store, clk, rnd, authCfg, cfg.DirectoryConfig, logger)
	app.closer = closer

	logger.Info("directory app created",
		slog.String("storage", storageType),
		slog.Duration("session_ttl", app.DirectoryService.SessionTTL()))
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, authCfg auth.Config, dirCfg directory.Config, logger *slog.Logger) *App {
	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		AuthService:      auth.New(store, clk, rnd, authCfg, logger),
		DirectoryService: directory.New(store, clk, rnd, dirCfg, logger),
		logger:           logger.With(slog.String("component", "janitor")),
	}
}

// RunJanitor sweeps expired auth sessions every interval until ctx is done
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticks, stop := a.Clock.NewTicker(interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if removed := a.AuthService.CleanExpiredSessions(); removed > 0 {
				a.logger.Info("expired auth sessions removed", slog.Int("count", removed))
			}
		}
	}
}

// Close releases storage connections
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
