package cli

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/backend"
	"github.com/Kerhoff/toyrent/internal/config"
	"github.com/Kerhoff/toyrent/internal/metrics"
	"github.com/Kerhoff/toyrent/internal/persist"
	"github.com/Kerhoff/toyrent/internal/retry"
	"github.com/Kerhoff/toyrent/internal/service"
	"github.com/Kerhoff/toyrent/internal/storage"
	"github.com/Kerhoff/toyrent/internal/store"
)

// App is the wired client: storage, backend client, state container and
// the flows on top of it
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Storage   storage.Storage
	Tokens    *storage.TokenStore
	Client    *backend.Client
	Store     *store.Store
	Persister *persist.Persister
	Service   *service.Service

	db       *config.Database
	navigate store.Navigator
}

// NewApp opens storage, restores the persisted state and starts mirroring
// changes back into storage
func NewApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	st, db, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger, st, db)
}

// NewAppWithStorage wires an App over an already open storage
func NewAppWithStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger, st storage.Storage) (*App, error) {
	return newApp(ctx, cfg, logger, st, nil)
}

func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger, st storage.Storage, db *config.Database) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry(), Storage: st, db: db}
	a.Metrics = metrics.New(a.Registry)
	a.Tokens = storage.NewTokenStore(st)

	a.Client = backend.New(cfg.APIBaseURL, a.Tokens, logger, backend.WithTimeout(cfg.HTTPTimeout))
	a.Store = store.New(logger,
		store.WithLoader(a.Client),
		store.WithStorage(st),
		store.WithMetrics(a.Metrics),
		store.WithNavigator(a.navigateTo),
		store.WithRetry(retry.WithMaxAttempts(cfg.RetryMaxAttempts), retry.WithBaseDelay(cfg.RetryBaseDelay)),
	)
	a.Persister = persist.New(a.Store, st, logger, cfg.StorageKey)
	if err := a.Persister.Hydrate(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.Persister.Start()
	a.Service = service.New(a.Client, a.Store, a.Tokens, logger)
	return a, nil
}

// SetNavigator routes logout navigation, e.g. to connected WebSocket pages
func (a *App) SetNavigator(n store.Navigator) {
	a.navigate = n
}

func (a *App) navigateTo(path string) {
	if a.navigate != nil {
		a.navigate(path)
		return
	}
	a.Logger.WithField("path", path).Debug("Navigation requested")
}

// Close stops persistence and releases storage
func (a *App) Close() error {
	var result *multierror.Error
	if a.Persister != nil {
		a.Persister.Stop()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close storage: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// openStorage builds the configured storage backend. SQL backends are
// migrated before use.
func openStorage(cfg *config.Config, logger *logrus.Logger) (storage.Storage, *config.Database, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite, config.StoragePostgres:
		db, err := config.NewDatabase(cfg.StorageDriver, cfg.StorageDSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return storage.NewSQLStore(db.DB, ""), db, nil

	case config.StorageRedis:
		st, err := storage.NewRedisStore(storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return st, nil, nil

	case config.StorageMemory:
		return storage.NewMemoryStore(), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}
