package usagestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, closeFn, err := Open(ctx, BackendMemory, "", nil, time.Second)
		require.NoError(t, err)
		defer closeFn()

		rec := domain.NewUsageRecord(uuid.New(), contractNow)
		_, err = store.Insert(ctx, rec)
		require.NoError(t, err)
		_, err = store.Get(ctx, rec.UserID)
		assert.NoError(t, err)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, closeFn, err := Open(ctx, BackendRedis, "redis://"+mr.Addr(), nil, time.Second)
		require.NoError(t, err)

		rec := domain.NewUsageRecord(uuid.New(), contractNow)
		_, err = store.Insert(ctx, rec)
		require.NoError(t, err)
		assert.True(t, mr.Exists("usage:"+rec.UserID.String()))
		assert.NoError(t, closeFn())
	})

	t.Run("postgres without database", func(t *testing.T) {
		_, closeFn, err := Open(ctx, BackendPostgres, "", nil, time.Second)
		assert.Error(t, err)
		assert.NotNil(t, closeFn)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := Open(ctx, "sqlite", "", nil, time.Second)
		assert.ErrorContains(t, err, "sqlite")
	})
}
