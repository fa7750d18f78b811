package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTryGetHitAndMiss(t *testing.T) {
	m := NewMemory(time.Hour)
	var calls int32
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "body", nil
	}

	v, err := m.TryGet(context.Background(), "https://a/1", compute)
	require.NoError(t, err)
	assert.Equal(t, "body", v)

	v, err = m.TryGet(context.Background(), "https://a/1", func(context.Context) (string, error) {
		t.Fatal("compute must not run on hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "body", v)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryErrorNotStored(t *testing.T) {
	m := NewMemory(0)
	_, err := m.TryGet(context.Background(), "k", func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())

	v, err := m.TryGet(context.Background(), "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.TryGet(context.Background(), "k", func(context.Context) (string, error) { return "v1", nil })
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, m.Len())
	v, err := m.TryGet(context.Background(), "k", func(context.Context) (string, error) { return "v2", nil })
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestMemoryConcurrentMissComputesOnce(t *testing.T) {
	m := NewMemory(time.Hour)
	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.TryGet(context.Background(), "same", compute)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "v", v)
	}
	// singleflight 之外晚到的调用会直接命中缓存，所以 compute 最多执行一次
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMemoryCancelledCallerDoesNotFailOthers(t *testing.T) {
	m := NewMemory(time.Hour)
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "正文", nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := m.TryGet(ctxA, "k", compute)
		errA <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := m.TryGet(context.Background(), "k", func(context.Context) (string, error) {
			return "", errors.New("second compute must not run")
		})
		resB <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "正文", r.v)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, 1, m.Len())
}

func TestRedisTryGet(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skip redis cache test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	key := "https://www.ankang.gov.cn/test/" + time.Now().Format("150405.000000")
	defer rdb.Del(ctx, redisKeyPrefix+key)

	c := NewRedis(rdb, time.Minute)
	var calls int32
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "<p>正文</p>", nil
	}

	v, err := c.TryGet(ctx, key, compute)
	require.NoError(t, err)
	assert.Equal(t, "<p>正文</p>", v)

	v, err = c.TryGet(ctx, key, compute)
	require.NoError(t, err)
	assert.Equal(t, "<p>正文</p>", v)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	ttl, err := rdb.TTL(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
