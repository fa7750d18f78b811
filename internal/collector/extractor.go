package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/govnews/internal/source"
)

const (
	defaultUserAgent    = "GovNewsBot/1.0"
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 2 << 20 // 2MB，防止超大页面拖垮进程
)

// Options 配置 Extractor，零值字段使用默认值
type Options struct {
	Client    *http.Client
	UserAgent string
	// Cache 为空时每次都抓取正文
	Cache      Cache
	DatePolicy DatePolicy
	// EnrichLimit 为全文补全的并发上限，<=0 表示每条一个 goroutine、不设上限
	EnrichLimit  int
	MaxBodyBytes int64
}

// Extractor 把栏目解析结果变成 FeedItem 列表
type Extractor struct {
	client       *http.Client
	userAgent    string
	cache        Cache
	datePolicy   DatePolicy
	enrichLimit  int
	maxBodyBytes int64
}

func NewExtractor(opts Options) *Extractor {
	e := &Extractor{
		client:       opts.Client,
		userAgent:    opts.UserAgent,
		cache:        opts.Cache,
		datePolicy:   opts.DatePolicy,
		enrichLimit:  opts.EnrichLimit,
		maxBodyBytes: opts.MaxBodyBytes,
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: defaultTimeout}
	}
	if e.userAgent == "" {
		e.userAgent = defaultUserAgent
	}
	if e.cache == nil {
		e.cache = noCache{}
	}
	if e.maxBodyBytes <= 0 {
		e.maxBodyBytes = defaultMaxBodyBytes
	}
	return e
}

// Extract 按栏目的策略抽取条目。两种策略是静态分支，接口模式失败不会回退到列表页抓取
func (e *Extractor) Extract(ctx context.Context, d source.Descriptor) ([]FeedItem, error) {
	switch d.Strategy.Kind {
	case source.KindListScrape:
		return e.scrapeList(ctx, d)
	case source.KindAPIEnrich:
		return e.enrichFromAPI(ctx, d)
	default:
		return nil, fmt.Errorf("collector: unknown strategy %v for %s", d.Strategy.Kind, d.ID)
	}
}

// Build 解析栏目标识并抽取，返回完整的栏目结果
func (e *Extractor) Build(ctx context.Context, id string) (Feed, error) {
	d, err := source.Resolve(id)
	if err != nil {
		return Feed{}, err
	}
	items, err := e.Extract(ctx, d)
	if err != nil {
		return Feed{}, err
	}
	return Feed{Title: d.Title, Link: d.Link, Items: items}, nil
}

// httpGet 读取 rawURL 的响应体，非 2xx 视为失败
func (e *Extractor) httpGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	body, err := readLimit(resp.Body, e.maxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// readLimit 读取至多 n 字节，超出时报错而不是截断，避免把不完整的正文写进缓存
func readLimit(r io.Reader, n int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, n+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > n {
		return nil, fmt.Errorf("body exceeds %d bytes", n)
	}
	return body, nil
}

// resolveLink 将 href 按 base 解析为绝对地址
func resolveLink(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
