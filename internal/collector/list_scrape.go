package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/LJTian/govnews/internal/source"
)

// 门户列表页结构：ul.newlist > li > a[title] + .date
const listItemSelector = "ul.newlist li"

func (e *Extractor) scrapeList(ctx context.Context, d source.Descriptor) ([]FeedItem, error) {
	target, err := url.Parse(d.Strategy.URL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url %s: %w", d.Strategy.URL, err)
	}
	linkBase, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", d.BaseURL, err)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(target.Hostname()),
		colly.UserAgent(e.userAgent),
		colly.MaxBodySize(int(e.maxBodyBytes)),
	)
	if e.client.Timeout > 0 {
		c.SetRequestTimeout(e.client.Timeout)
	}
	base := e.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.WithTransport(ctxTransport{ctx: ctx, base: base})

	var (
		results  = make([]FeedItem, 0, 20)
		parseErr error
	)
	c.OnHTML(listItemSelector, func(el *colly.HTMLElement) {
		if parseErr != nil {
			return
		}
		item, ok, err := parseListNode(el.DOM, linkBase, e.datePolicy)
		if err != nil {
			parseErr = err
			return
		}
		if ok {
			results = append(results, item)
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", target, err)
	}
	if err := c.Visit(target.String()); err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", target, err)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("parse listing %s: %w", target, parseErr)
	}
	return results, nil
}

// ctxTransport 让 colly 的请求跟随调用方的 ctx 取消和超时
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// parseListNode 解析单个列表节点。缺少链接、title 为空或 href 无法解析时返回 ok=false，
// 这类节点直接跳过，不算错误；只有 DateFail 策略下的日期错误会返回 err
func parseListNode(sel *goquery.Selection, base *url.URL, policy DatePolicy) (FeedItem, bool, error) {
	a := sel.Find("a").First()
	if a.Length() == 0 {
		return FeedItem{}, false, nil
	}
	title := strings.TrimSpace(a.AttrOr("title", ""))
	if title == "" {
		return FeedItem{}, false, nil
	}
	link, err := resolveLink(base, a.AttrOr("href", ""))
	if err != nil {
		return FeedItem{}, false, nil
	}
	pubDate, ok, err := policy.parse(sel.Find(".date").Text(), listDateLayout)
	if err != nil || !ok {
		return FeedItem{}, false, err
	}
	return FeedItem{Title: title, Link: link, PubDate: pubDate}, true, nil
}
