package backend

import (
	"context"
	"fmt"
	"log/slog"

	"expensedash/internal/core"
	"expensedash/internal/store"
	"expensedash/internal/store/memory"
	"expensedash/internal/store/postgres"
	"expensedash/internal/store/redis"
	"expensedash/internal/store/sheets"
	"expensedash/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		gw  store.Gateway
		err error
	)
	switch config.Type {
	case MemoryBackend:
		gw, err = memory.NewFromFile(config.SeedFile, config.Collection)
		if err != nil {
			err = core.E(core.KindConfiguration, "backend.memory", err)
		}
	case SQLiteBackend:
		gw, err = sqlite.New(config.SQLiteDBPath)
	case PostgresBackend:
		gw, err = postgres.New(ctx, config.DatabaseURL)
	case RedisBackend:
		gw, err = redis.New(ctx, redis.Options{
			Address:  config.RedisAddress,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
	case SheetsBackend:
		gw, err = sheets.New(ctx, sheets.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		})
	default:
		return nil, core.Errorf(core.KindConfiguration, "backend.create", "unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.Type, err)
	}

	f.logger.Info("Initialized backend", "component", "backend", "backend", config.Type.String())

	return &BackendResult{
		Gateway: gw,
		Type:    config.Type,
		Cleanup: gw.Close,
	}, nil
}

// Connect builds the configured gateway and checks that it answers a ping.
func Connect(ctx context.Context, factory Factory, config Config) (*BackendResult, error) {
	res, err := factory.CreateBackend(ctx, config)
	if err != nil {
		if core.KindOf(err) == core.KindInternal {
			err = core.E(core.KindConnection, "backend.connect", err)
		}
		return nil, err
	}
	if err := res.Gateway.Ping(ctx); err != nil {
		_ = res.Gateway.Close()
		if !core.IsKind(err, core.KindConnection) {
			err = core.E(core.KindConnection, "backend.connect", err)
		}
		return nil, err
	}
	return res, nil
}
