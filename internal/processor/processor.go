package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/LJTian/govnews/internal/collector"
)

// 归档时描述最多保留的字符数（按 rune 计）
const descriptionLimit = 200

// ProcessedNews 是写入存储层前的统一结构
type ProcessedNews struct {
	ID          string
	Title       string
	URL         string
	Source      string
	Description string
	PublishedAt time.Time
	RawData     map[string]any
}

// SimpleProcessor 做最基础的数据清洗与 ID 生成
type SimpleProcessor struct {
	strip *bluemonday.Policy
}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{strip: bluemonday.StrictPolicy()}
}

// Process 按 URL 去重，source 为栏目对应的渠道 code
func (p *SimpleProcessor) Process(source string, items []collector.FeedItem) []ProcessedNews {
	out := make([]ProcessedNews, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		id := hashURL(it.Link)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		title := strings.TrimSpace(it.Title)
		// 正文是 HTML，归档只保留纯文本；列表页模式没有正文，用标题兜底
		desc := p.plainText(it.Description)
		if desc == "" {
			desc = title
		}

		raw := map[string]any{}
		if it.PubDate.IsZero() {
			raw["invalid_date"] = true
		}

		out = append(out, ProcessedNews{
			ID:          id,
			Title:       title,
			URL:         it.Link,
			Source:      source,
			Description: truncateRunes(desc, descriptionLimit),
			PublishedAt: it.PubDate,
			RawData:     raw,
		})
	}

	return out
}

func (p *SimpleProcessor) plainText(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(p.strip.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// truncateRunes 按 rune 截断并追加省略号，避免中文被截成半个字符
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
