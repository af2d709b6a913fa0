package redis

import (
	"context"
	"os"
	"testing"

	"expensedash/internal/store/storetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs only when TEST_REDIS_ADDRESS points at a disposable server.
func TestRedisConformance(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDRESS not set")
	}
	c, err := New(context.Background(), Options{Address: addr})
	require.NoError(t, err)
	defer c.Close()

	storetest.Run(t, c, "test_"+uuid.NewString()[:8])
}

func TestKeys(t *testing.T) {
	require.Equal(t, "expensedash:expenses:docs", docsKey("expenses"))
	require.Equal(t, "expensedash:expenses:order", orderKey("expenses"))
}
