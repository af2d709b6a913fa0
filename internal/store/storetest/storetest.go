// Package storetest holds the behaviour every store.Gateway must share.
package storetest

import (
	"context"
	"testing"

	"expensedash/internal/core"
	"expensedash/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises g against a fresh collection.
func Run(t *testing.T, g store.Gateway, collection string) {
	t.Helper()
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, g.Ping(ctx))
	})

	t.Run("empty collection", func(t *testing.T) {
		recs, err := g.FetchAll(ctx, collection+"_empty")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("insert fetch delete", func(t *testing.T) {
		doc := core.Document{
			core.FieldUserID:        core.DefaultUserID,
			core.FieldDate:          "2024-06-01T00:00:00Z",
			core.FieldMerchant:      "Tim Hortons",
			core.FieldCategory:      string(core.FoodBeverage),
			core.FieldAmount:        "4.50",
			core.FieldCurrency:      core.DefaultCurrency,
			core.FieldPaymentMethod: string(core.Debit),
			core.FieldItems:         []string{},
			core.FieldReceiptImage:  "",
			core.FieldNotes:         "",
		}
		id, err := g.Insert(ctx, collection, doc)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		second, err := g.Insert(ctx, collection, core.Document{
			core.FieldDate:     "2024-06-02",
			core.FieldMerchant: "Costco",
			core.FieldAmount:   "20.00",
		})
		require.NoError(t, err)
		assert.NotEqual(t, id, second)

		recs, err := g.FetchAll(ctx, collection)
		require.NoError(t, err)
		got := find(recs, id)
		require.NotNil(t, got, "inserted record missing from FetchAll")
		assert.Equal(t, "Tim Hortons", got.Fields[core.FieldMerchant])
		assert.Equal(t, "4.50", got.Fields[core.FieldAmount])
		assert.Equal(t, string(core.FoodBeverage), got.Fields[core.FieldCategory])

		removed, err := g.Delete(ctx, collection, id)
		require.NoError(t, err)
		assert.True(t, removed)

		recs, err = g.FetchAll(ctx, collection)
		require.NoError(t, err)
		assert.Nil(t, find(recs, id))
		assert.NotNil(t, find(recs, second))
	})

	t.Run("delete unknown id", func(t *testing.T) {
		removed, err := g.Delete(ctx, collection, "does-not-exist")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("collections are isolated", func(t *testing.T) {
		_, err := g.Insert(ctx, collection+"_a", core.Document{core.FieldMerchant: "a"})
		require.NoError(t, err)
		recs, err := g.FetchAll(ctx, collection+"_b")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func find(recs []core.RawRecord, id string) *core.RawRecord {
	for i := range recs {
		if recs[i].ID == id {
			return &recs[i]
		}
	}
	return nil
}
