package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"expensedash/internal/core"
	"expensedash/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	repo, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestSQLiteConformance(t *testing.T) {
	repo, _ := newTestRepo(t)
	storetest.Run(t, repo, "expenses")
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	_, path := newTestRepo(t)
	require.NoError(t, RunMigrations(path))
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	repo, path := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, "expenses", core.Document{
		core.FieldMerchant: "Shoppers",
		core.FieldAmount:   "12.99",
		core.FieldItems:    []string{},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.FetchAll(ctx, "expenses")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
	assert.Equal(t, "Shoppers", recs[0].Fields[core.FieldMerchant])
	assert.Equal(t, []any{}, recs[0].Fields[core.FieldItems])
}

func TestSQLiteInsertAfterCloseIsWriteError(t *testing.T) {
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.Insert(context.Background(), "expenses", core.Document{})
	assert.True(t, core.IsKind(err, core.KindWrite), "kind = %v", core.KindOf(err))
}
