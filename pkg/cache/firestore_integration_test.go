//go:build integration

package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmulatorFirestore connects to the emulator named by FIRESTORE_EMULATOR_HOST.
func newEmulatorFirestore(t *testing.T, ctx context.Context) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(ctx, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestFirestoreCache_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	client := newEmulatorFirestore(t, ctx)
	c, err := cache.NewFirestoreCache(client, &cache.FirestoreConfig{CollectionName: "cache-" + t.Name()}, zerolog.Nop())
	require.NoError(t, err)

	t.Run("Set, TryGet and Remove cycle", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "product_1", []byte("alpha"), cache.Sliding(time.Minute)))

		res, err := c.TryGet(ctx, "product_1")
		require.NoError(t, err)
		assert.Equal(t, []byte("alpha"), res.MustValue())

		require.NoError(t, c.Remove(ctx, "product_1"))
		require.NoError(t, c.Remove(ctx, "product_1"))

		res, err = c.TryGet(ctx, "product_1")
		require.NoError(t, err)
		assert.False(t, res.HasValue())
	})

	t.Run("Expired documents read as absent", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "short", []byte("v"), cache.Absolute(100*time.Millisecond)))

		time.Sleep(200 * time.Millisecond)

		res, err := c.TryGet(ctx, "short")
		require.NoError(t, err)
		assert.False(t, res.HasValue())
	})

	t.Run("Nil client is rejected", func(t *testing.T) {
		_, err := cache.NewFirestoreCache(nil, &cache.FirestoreConfig{CollectionName: "x"}, zerolog.Nop())
		assert.Error(t, err)
	})
}
