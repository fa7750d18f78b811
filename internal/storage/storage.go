package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/govnews/internal/processor"
)

// Channel 描述一个数据源，对应门户的一个栏目，例如 ankang_1466
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type News struct {
	ID     string `gorm:"primaryKey;size:40" json:"id"`
	Title  string `gorm:"size:512" json:"title"`
	URL    string `gorm:"size:1024;uniqueIndex" json:"url"`
	Source string `gorm:"size:64;index" json:"source"`
	// 正文的纯文本摘录，长度控制在约 200 个字符（在 processor 中按 rune 截断）
	Description   string            `gorm:"size:600" json:"description"`
	PublishedAt   time.Time         `gorm:"index" json:"publishedAt"`
	PublishedDate string            `gorm:"size:10;index" json:"publishedDate"` // 日期 YYYY-MM-DD，用于按日期展示
	ExtraData     datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore redisAddr 为空时不启用 Redis，列表查询直接走数据库
func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Channel{}, &News{}); err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	if redisAddr == "" {
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] redis ping failed: %v", err)
	}
	s.Redis = rdb

	return s, nil
}

// Close 关闭 Redis 与数据库连接
func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureChannel 确保某个渠道存在
func (s *Store) EnsureChannel(code, name, baseURL string) (*Channel, error) {
	ch := &Channel{}
	if err := s.DB.Where("code = ?", code).First(ch).Error; err == nil {
		return ch, nil
	}

	ch = &Channel{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// 东八区，用于日期展示与筛选
var locEast8 = time.FixedZone("CST", 8*3600)

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（门户页面可能含 GBK/混编）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(600)）
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// publishedDate 无效日期（零值）不参与按日期筛选
func publishedDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(locEast8).Format("2006-01-02")
}

// SaveBatch 保存一批新闻，以 URL 为幂等键，已存在时更新标题与描述
func (s *Store) SaveBatch(items []processor.ProcessedNews) error {
	for _, it := range items {
		pubDate := publishedDate(it.PublishedAt)
		title := truncateRunesDB(toValidUTF8(it.Title), 512)
		description := truncateRunesDB(toValidUTF8(it.Description), 600)
		n := &News{
			ID:            it.ID,
			Title:         title,
			URL:           it.URL,
			Source:        it.Source,
			Description:   description,
			PublishedAt:   it.PublishedAt,
			PublishedDate: pubDate,
			ExtraData:     datatypes.JSONMap(it.RawData),
		}

		if err := s.DB.Where("url = ?", it.URL).FirstOrCreate(n).Error; err != nil {
			return fmt.Errorf("save news %s: %w", it.URL, err)
		}
		if err := s.DB.Model(n).Updates(map[string]any{
			"title":          title,
			"description":    description,
			"published_at":   it.PublishedAt,
			"published_date": pubDate,
		}).Error; err != nil {
			log.Printf("[WARN] update news %s: %v", it.URL, err)
		}
	}

	// 不做按 key 通配删除，依赖短 TTL 的缓存自然过期
	return nil
}

const listCacheTTL = 5 * time.Minute

// ListNews 按渠道、排序与可选日期返回归档列表，并使用 Redis 做简单缓存
// channel: 渠道 code，可为空
// sort: latest(默认) / oldest
// date: 可选，格式 2006-01-02
func (s *Store) ListNews(ctx context.Context, channel, sort string, limit int, date string) ([]News, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	if sort != "oldest" {
		sort = "latest"
	}

	cacheKey := fmt.Sprintf("news:list:%s:%s:%d:%s", channel, sort, limit, date)
	var cached []News
	if s.getCached(ctx, cacheKey, &cached) {
		return cached, nil
	}

	var list []News
	db := s.DB.WithContext(ctx).Model(&News{})
	if date != "" {
		db = db.Where("published_date = ?", date)
	}
	if channel != "" {
		db = db.Where("source = ?", channel)
	}
	switch sort {
	case "oldest":
		db = db.Order("published_at ASC")
	default:
		db = db.Order("published_at DESC")
	}
	if err := db.Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if len(list) > 0 {
		s.setCached(ctx, cacheKey, list)
	}
	return list, nil
}

// ListPublishedDates 返回有数据的日期列表（倒序），结果缓存 5 分钟
func (s *Store) ListPublishedDates(ctx context.Context, channel string, limit int) ([]string, error) {
	if limit <= 0 || limit > 365 {
		limit = 31
	}
	cacheKey := fmt.Sprintf("news:dates:%s:%d", channel, limit)
	var cached []string
	if s.getCached(ctx, cacheKey, &cached) {
		return cached, nil
	}

	db := s.DB.WithContext(ctx).Model(&News{}).Distinct().Where("published_date <> ''")
	if channel != "" {
		db = db.Where("source = ?", channel)
	}
	var dates []string
	if err := db.Order("published_date DESC").Limit(limit).Pluck("published_date", &dates).Error; err != nil {
		return nil, err
	}
	if len(dates) > 0 {
		s.setCached(ctx, cacheKey, dates)
	}
	return dates, nil
}

func (s *Store) getCached(ctx context.Context, key string, v any) bool {
	if s.Redis == nil {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, v) == nil
}

func (s *Store) setCached(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	if bs, err := json.Marshal(v); err == nil {
		_ = s.Redis.Set(ctx, key, bs, listCacheTTL).Err()
	}
}
