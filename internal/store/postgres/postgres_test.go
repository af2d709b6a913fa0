package postgres

import (
	"context"
	"os"
	"testing"

	"expensedash/internal/store/storetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs only when TEST_DATABASE_URL points at a disposable database.
func TestPostgresConformance(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	repo, err := New(context.Background(), url)
	require.NoError(t, err)
	defer repo.Close()

	storetest.Run(t, repo, "test_"+uuid.NewString()[:8])
}
