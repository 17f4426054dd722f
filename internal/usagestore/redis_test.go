package usagestore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		store, _ := setupTestRedisStore(t)
		return store
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store, mr := setupTestRedisStore(t)
	ctx := context.Background()
	rec := domain.NewUsageRecord(uuid.New(), contractNow)

	_, err := store.Insert(ctx, rec)
	require.NoError(t, err)

	assert.True(t, mr.Exists("usage:"+rec.UserID.String()))

	raw, err := mr.Get("usage:" + rec.UserID.String())
	require.NoError(t, err)
	assert.Contains(t, raw, `"word_limit":5000`)
	assert.Contains(t, raw, `"plan":"free"`)
}

func TestRedisStore_UnlimitedEncodedAsString(t *testing.T) {
	store, mr := setupTestRedisStore(t)
	ctx := context.Background()
	rec := domain.NewUsageRecord(uuid.New(), contractNow)
	_, err := store.Insert(ctx, rec)
	require.NoError(t, err)

	_, err = store.Update(ctx, rec.UserID, 1, domain.ChangePlan(domain.PlanBusiness))
	require.NoError(t, err)

	raw, err := mr.Get("usage:" + rec.UserID.String())
	require.NoError(t, err)
	assert.Contains(t, raw, `"word_limit":"unlimited"`)
}

func TestRedisStore_CorruptDocument(t *testing.T) {
	store, mr := setupTestRedisStore(t)
	id := uuid.New()
	require.NoError(t, mr.Set("usage:"+id.String(), "not json"))

	_, err := store.Get(context.Background(), id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}

func TestNewRedisStoreFromClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
}
