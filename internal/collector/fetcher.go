package collector

import (
	"context"
	"time"
)

// FeedItem 抽取后的统一条目，构造后不再修改，交给调用方后不保留引用
type FeedItem struct {
	Title string    `json:"title"`
	Link  string    `json:"link"`
	// 固定东八区偏移
	PubDate time.Time `json:"pubDate"`
	// 仅全文补全模式下有值
	Description string `json:"description,omitempty"`
}

// Feed 对外返回的栏目结果
type Feed struct {
	Title string     `json:"title"`
	Link  string     `json:"link"`
	Items []FeedItem `json:"item"`
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]FeedItem, error)
}

// Cache 正文缓存：未命中时对同一个 key 只调用一次 compute 并保存结果，命中时直接返回已存值
type Cache interface {
	TryGet(ctx context.Context, key string, compute func(context.Context) (string, error)) (string, error)
}

type noCache struct{}

func (noCache) TryGet(ctx context.Context, _ string, compute func(context.Context) (string, error)) (string, error) {
	return compute(ctx)
}
