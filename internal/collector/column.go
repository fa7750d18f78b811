package collector

import (
	"context"
	"log"

	"github.com/LJTian/govnews/internal/source"
)

// ColumnFetcher 把一个门户栏目包装成 Fetcher，供定时归档使用
type ColumnFetcher struct {
	Extractor  *Extractor
	Descriptor source.Descriptor
}

func (f *ColumnFetcher) Name() string {
	return "ankang_" + f.Descriptor.ID
}

func (f *ColumnFetcher) Fetch(ctx context.Context) ([]FeedItem, error) {
	log.Printf("[INFO] fetch %s (%s)...", f.Descriptor.Title, f.Descriptor.Strategy.Kind)
	return f.Extractor.Extract(ctx, f.Descriptor)
}

// ColumnFetchers 为每个栏目构造一个 Fetcher
func ColumnFetchers(e *Extractor) []*ColumnFetcher {
	descs := source.Descriptors()
	out := make([]*ColumnFetcher, 0, len(descs))
	for _, d := range descs {
		out = append(out, &ColumnFetcher{Extractor: e, Descriptor: d})
	}
	return out
}
