package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestRedisStore(t *testing.T) {
	mr, s := newTestRedis(t)
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "writedesk.provider", "gemini"))
	got, err := mr.Get("writedesk:writedesk.provider")
	require.NoError(t, err)
	assert.Equal(t, "gemini", got)
	assert.Zero(t, mr.TTL("writedesk:writedesk.provider"), "base store keys must not expire")
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(addr, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}

func TestRedisNamespace(t *testing.T) {
	mr, base := newTestRedis(t)
	ctx := context.Background()
	ns := base.Namespace("session:abc:", time.Hour)

	exerciseStore(t, ns)

	require.NoError(t, ns.Set(ctx, "writedesk.key.openai", "sk"))
	require.NoError(t, base.Set(ctx, "writedesk.key.openai", "durable"))
	assert.True(t, mr.Exists("writedesk:session:abc:writedesk.key.openai"))
	assert.Equal(t, time.Hour, mr.TTL("writedesk:session:abc:writedesk.key.openai"))

	// Deleting through the namespace leaves same-named base keys alone.
	require.NoError(t, ns.Delete(ctx, "writedesk.key.openai", "writedesk.key.gemini"))
	assert.False(t, mr.Exists("writedesk:session:abc:writedesk.key.openai"))
	v, ok, err := base.Get(ctx, "writedesk.key.openai")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "durable", v)
}

func TestRedisNamespaceCloseKeepsSharedClient(t *testing.T) {
	_, base := newTestRedis(t)
	ctx := context.Background()

	ns := base.Namespace("session:abc:", time.Hour)
	require.NoError(t, ns.Close())

	require.NoError(t, base.Set(ctx, "k", "v"))
	_, ok, err := base.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSessionsIsolation(t *testing.T) {
	_, base := newTestRedis(t)
	ctx := context.Background()
	sessions := NewRedisSessions(base, time.Hour)

	require.NoError(t, sessions.Session("a").Set(ctx, "key", "from-a"))

	_, ok, err := sessions.Session("b").Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := sessions.Session("a").Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-a", v)
}

func TestRedisSessionsSlidingExpiry(t *testing.T) {
	mr, base := newTestRedis(t)
	ctx := context.Background()
	sess := NewRedisSessions(base, time.Minute).Session("a")
	const full = "writedesk:session:a:key"

	require.NoError(t, sess.Set(ctx, "key", "v"))
	assert.Equal(t, time.Minute, mr.TTL(full))

	// A read inside the window pushes the expiry out again.
	mr.FastForward(40 * time.Second)
	_, ok, err := sess.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(full))

	mr.FastForward(40 * time.Second)
	_, ok, err = sess.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = sess.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}
