package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()

	client, err := InitializeRedis(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	cache := NewSettingsCache(client, "merchant_settings:")
	assert.Equal(t, "merchant_settings:42", cache.Key(42))

	require.NoError(t, mr.Set("merchant_settings:42", `{"RUB":{}}`))
	require.NoError(t, mr.Set("merchant_settings:43", `{"RUB":{}}`))

	require.NoError(t, cache.Invalidate(ctx, 42))
	assert.False(t, mr.Exists("merchant_settings:42"))
	assert.True(t, mr.Exists("merchant_settings:43"))

	// invalidating a cold key is fine
	assert.NoError(t, cache.Invalidate(ctx, 42))
}

func TestSettingsCacheWithoutRedis(t *testing.T) {
	var cache *SettingsCache
	assert.NoError(t, cache.Invalidate(context.Background(), 1))
	assert.NoError(t, NewSettingsCache(nil, "x:").Invalidate(context.Background(), 1))
}

func TestInitializeRedisErrors(t *testing.T) {
	_, err := InitializeRedis(context.Background(), "not-a-url")
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = InitializeRedis(context.Background(), "redis://"+addr+"/0")
	assert.Error(t, err)
}
