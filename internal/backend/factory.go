package backend

import (
	"context"
	"fmt"

	"cashflow/internal/log"
	"cashflow/internal/prefs"
	"cashflow/internal/remote"
	"cashflow/internal/remote/api"
	"cashflow/internal/remote/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rb, err := f.createRemote(config)
	if err != nil {
		return nil, err
	}

	store, err := f.createPrefs(config)
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized backends",
		"remote", config.Remote.String(),
		"prefs", config.Prefs.String())

	return &Result{
		Remote: rb,
		Prefs:  store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createRemote(config Config) (remote.Backend, error) {
	switch config.Remote {
	case APIRemote:
		client, err := api.New(config.APIBaseURL, config.APITimeout, nil, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API client: %w", err)
		}
		f.logger.Info("Initialized API remote", "base_url", config.APIBaseURL)
		return client, nil
	case MemoryRemote:
		store, err := memory.NewFromFile(config.FixturePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		f.logger.Info("Initialized memory remote", "fixture", config.FixturePath)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", config.Remote)
	}
}

func (f *DefaultFactory) createPrefs(config Config) (prefs.Store, error) {
	switch config.Prefs {
	case SQLitePrefs:
		store, err := prefs.NewSQLiteStore(config.PrefsDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite preferences: %w", err)
		}
		f.logger.Info("Initialized SQLite preferences", "db_path", config.PrefsDBPath)
		return store, nil
	case MemoryPrefs:
		return prefs.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported prefs backend: %s", config.Prefs)
	}
}
