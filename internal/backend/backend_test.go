package backend

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"expensedash/internal/config"
	"expensedash/internal/core"
	"expensedash/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFactory struct {
	calls atomic.Int64
	err   error
}

func (f *countingFactory) CreateBackend(context.Context, Config) (*BackendResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	gw := memory.New()
	return &BackendResult{Gateway: gw, Type: MemoryBackend, Cleanup: gw.Close}, nil
}

type unreachable struct{ *memory.Store }

func (unreachable) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

type unreachableFactory struct{}

func (unreachableFactory) CreateBackend(context.Context, Config) (*BackendResult, error) {
	return &BackendResult{Gateway: unreachable{memory.New()}, Type: RedisBackend}, nil
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/x.db", Collection: "expenses"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "/tmp/x.db", cfg.SQLiteDBPath)

	_, err = FromAppConfig(&config.Config{DataBackend: "mongo"})
	assert.True(t, core.IsKind(err, core.KindConfiguration))

	_, err = FromAppConfig(nil)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"redis without address", Config{Type: RedisBackend}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, true},
		{"sheets complete", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleServiceAccountJSON: "{}"}, false},
		{"unknown", Config{Type: "firestore"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsKind(err, core.KindConfiguration))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConnectMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	res, err := Connect(ctx, factory, Config{Type: MemoryBackend, Collection: "expenses"})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, res.Type)
	require.NoError(t, res.Cleanup())

	res, err = Connect(ctx, factory, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "db.sqlite")})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, res.Type)
	require.NoError(t, res.Cleanup())
}

func TestConnectMissingSettingsIsConfigurationError(t *testing.T) {
	_, err := Connect(context.Background(), NewFactory(nil), Config{Type: PostgresBackend})
	assert.True(t, core.IsKind(err, core.KindConfiguration), "kind = %v", core.KindOf(err))
}

func TestConnectFailedPingIsConnectionError(t *testing.T) {
	_, err := Connect(context.Background(), unreachableFactory{}, Config{Type: RedisBackend})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConnection), "kind = %v", core.KindOf(err))
}

func TestConnectorIsIdempotent(t *testing.T) {
	f := &countingFactory{}
	c := NewConnector(f, Config{Type: MemoryBackend})
	ctx := context.Background()

	first, err := c.Connect(ctx)
	require.NoError(t, err)
	second, err := c.Connect(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, f.calls.Load())

	require.NoError(t, c.Close())
	third, err := c.Connect(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestConnectorRetriesAfterFailure(t *testing.T) {
	f := &countingFactory{err: errors.New("boom")}
	c := NewConnector(f, Config{Type: MemoryBackend})

	_, err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConnection))

	f.err = nil
	_, err = c.Connect(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}
