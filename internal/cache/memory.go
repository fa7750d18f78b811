package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value   string
	expires time.Time
}

// Memory 进程内正文缓存，未配置 Redis 时使用。同一个 key 的并发未命中只计算一次
type Memory struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]entry
	group singleflight.Group
}

// NewMemory ttl<=0 表示永不过期
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry),
	}
}

func (m *Memory) TryGet(ctx context.Context, key string, compute func(context.Context) (string, error)) (string, error) {
	if v, ok := m.get(key); ok {
		return v, nil
	}
	ch := m.group.DoChan(key, func() (any, error) {
		if v, ok := m.get(key); ok {
			return v, nil
		}
		// 共享的计算不跟随单个调用方取消，否则一个请求失败会连带同 key 的其它请求
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		m.set(key, v)
		return v, nil
	})
	return wait(ctx, ch)
}

// wait 等待共享计算的结果，调用方自己的 ctx 结束时提前返回
func wait(ctx context.Context, ch <-chan singleflight.Result) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Len 返回未过期的条目数
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	n := 0
	for _, e := range m.items {
		if e.expires.IsZero() || now.Before(e.expires) {
			n++
		}
	}
	return n
}

func (m *Memory) get(key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return "", false
	}
	return e.value, true
}

func (m *Memory) set(key, value string) {
	e := entry{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
}
