package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/govnews/internal/source"
)

// 全文页中正文所在的容器标签
const fullTextSelector = "ucapcontent"

type apiListing struct {
	InfoList []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		PubTime string `json:"pubtime"`
	} `json:"infolist"`
}

func (e *Extractor) enrichFromAPI(ctx context.Context, d source.Descriptor) ([]FeedItem, error) {
	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", d.BaseURL, err)
	}

	body, err := e.httpGet(ctx, d.Strategy.URL)
	if err != nil {
		return nil, err
	}
	var listing apiListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", d.Strategy.URL, err)
	}

	items := make([]FeedItem, 0, len(listing.InfoList))
	for _, raw := range listing.InfoList {
		title := strings.TrimSpace(raw.Title)
		if title == "" {
			continue
		}
		link := raw.Link
		if !strings.HasPrefix(link, "http") {
			if link, err = resolveLink(base, raw.Link); err != nil {
				return nil, fmt.Errorf("resolve link %q: %w", raw.Link, err)
			}
		}
		pubDate, ok, err := e.datePolicy.parse(raw.PubTime, apiDateLayout)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", d.Strategy.URL, err)
		}
		if !ok {
			continue
		}
		items = append(items, FeedItem{Title: title, Link: link, PubDate: pubDate})
	}

	// 每条一个任务，全部成功才返回；任一失败则取消其余任务并整体失败
	g, gctx := errgroup.WithContext(ctx)
	if e.enrichLimit > 0 {
		g.SetLimit(e.enrichLimit)
	}
	for i := range items {
		i := i
		g.Go(func() error {
			desc, err := e.cache.TryGet(gctx, items[i].Link, func(ctx context.Context) (string, error) {
				return e.fetchFullText(ctx, items[i].Link)
			})
			if err != nil {
				return err
			}
			items[i].Description = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// fetchFullText 抓取文章页并取正文容器的 inner HTML，容器不存在时返回空串
func (e *Extractor) fetchFullText(ctx context.Context, link string) (string, error) {
	body, err := e.httpGet(ctx, link)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse article %s: %w", link, err)
	}
	html, err := doc.Find(fullTextSelector).First().Html()
	if err != nil {
		return "", fmt.Errorf("render article %s: %w", link, err)
	}
	return strings.TrimSpace(html), nil
}
