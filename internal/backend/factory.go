package backend

import (
	"context"
	"fmt"
	"time"

	"activitylog/internal/auth"
	"activitylog/internal/core"
	"activitylog/internal/log"
	"activitylog/internal/records/memory"
	"activitylog/internal/records/remote"
	"activitylog/internal/storage"
)

// generatorSeed keeps generated demo data stable across restarts.
const generatorSeed = 42

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	now    func() time.Time
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		now:    time.Now,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case RemoteBackend:
		return f.createRemoteBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// Seed data only goes into an empty database.
	n, err := repo.Count(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	if n == 0 {
		seed, err := f.seedRecords(config)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		if len(seed) > 0 {
			if err := repo.Import(ctx, seed); err != nil {
				_ = repo.Close()
				return nil, fmt.Errorf("failed to seed SQLite repository: %w", err)
			}
			n = int64(len(seed))
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, log.FieldCount, n)

	return &BackendResult{
		Store:   repo,
		Users:   repo,
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

// seedRecords returns the seed file contents, else SeedGenerate generated
// records, else nothing.
func (f *DefaultFactory) seedRecords(config Config) ([]core.ActivityRecord, error) {
	switch {
	case config.SeedFile != "":
		rs, err := memory.LoadSeed(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
		return rs, nil
	case config.SeedGenerate > 0:
		return memory.Generate(config.SeedGenerate, generatorSeed, f.now()), nil
	}
	return nil, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	seed, err := f.seedRecords(config)
	if err != nil {
		return nil, err
	}
	store := memory.New(seed...)

	f.logger.Info("Initialized memory backend",
		"seed_file", config.SeedFile,
		log.FieldCount, store.Len())

	return &BackendResult{
		Store: store,
		Users: auth.NewMemoryUsers(),
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	client, err := remote.New(remote.Config{
		BaseURL: config.RemoteAPIURL,
		Timeout: config.RemoteTimeout,
		Retries: config.RemoteRetries,
		Token:   config.RemoteToken,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote client: %w", err)
	}

	f.logger.Info("Initialized remote backend",
		"base_url", config.RemoteAPIURL,
		"retries", config.RemoteRetries)

	// Users stay local: the upstream API has no login endpoint to delegate to.
	return &BackendResult{
		Store: client,
		Users: auth.NewMemoryUsers(),
		Ready: func(ctx context.Context) error {
			_, err := client.ListPersonnel(ctx)
			return err
		},
	}, nil
}
