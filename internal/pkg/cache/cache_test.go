package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	require.NoError(t, Set("greeting", "hello", time.Minute))
	val, err := Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", val)

	require.NoError(t, Set("answer", 42, time.Minute))
	n, err := GetInt("answer")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	mr.FastForward(2 * time.Minute)
	_, err = Get("greeting")
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, Set("gone", "x", 0))
	require.NoError(t, Delete("gone"))
	_, err = Get("gone")
	assert.ErrorIs(t, err, redis.Nil)
}
