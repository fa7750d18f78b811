package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/govnews/internal/collector"
	"github.com/LJTian/govnews/internal/source"
	"github.com/LJTian/govnews/internal/storage"
)

// FeedBuilder 实时抓取一个栏目，由 collector.Extractor 实现
type FeedBuilder interface {
	Build(ctx context.Context, id string) (collector.Feed, error)
}

// NewsLister 查询归档，由 storage.Store 实现；为空时归档接口返回 503
type NewsLister interface {
	ListNews(ctx context.Context, channel, sort string, limit int, date string) ([]storage.News, error)
	ListPublishedDates(ctx context.Context, channel string, limit int) ([]string, error)
}

type Server struct {
	feeds FeedBuilder
	store NewsLister
}

func NewServer(feeds FeedBuilder, store NewsLister) *Server {
	return &Server{feeds: feeds, store: store}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	gov := r.Group("/gov/ankang")
	{
		gov.GET("/news", s.listColumns)
		gov.GET("/news/:uid", s.columnFeed)
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		v1.GET("/dates", s.listDates)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type columnView struct {
	source.Column
	Example string `json:"example"`
}

func (s *Server) listColumns(c *gin.Context) {
	cols := source.Columns()
	out := make([]columnView, 0, len(cols))
	for _, col := range cols {
		out = append(out, columnView{Column: col, Example: "/gov/ankang/news/" + col.UID})
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    out,
	})
}

func (s *Server) columnFeed(c *gin.Context) {
	uid := c.Param("uid")
	feed, err := s.feeds.Build(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, source.ErrInvalidParameter) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "invalid_parameter",
				"message": err.Error(),
			})
			return
		}
		log.Printf("[WARN] build feed %s: %v", uid, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "upstream_error",
			"message": "fetch source failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    feed,
	})
}

func (s *Server) listNews(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "unavailable", "message": "archive disabled"})
		return
	}
	channel := c.Query("channel")
	sort := c.DefaultQuery("sort", "latest")
	if sort != "latest" && sort != "oldest" {
		sort = "latest"
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.ListNews(c.Request.Context(), channel, sort, limit, c.Query("date"))
	if err != nil {
		log.Printf("[ERROR] list news: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) listDates(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "unavailable", "message": "archive disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "31"))
	if err != nil || limit <= 0 {
		limit = 31
	}
	dates, err := s.store.ListPublishedDates(c.Request.Context(), c.Query("channel"), limit)
	if err != nil {
		log.Printf("[ERROR] list dates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    dates,
	})
}
