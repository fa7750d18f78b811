package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/govnews/internal/collector"
	"github.com/LJTian/govnews/internal/source"
	"github.com/LJTian/govnews/internal/storage"
)

type stubFeeds struct {
	err error
}

func (s *stubFeeds) Build(_ context.Context, id string) (collector.Feed, error) {
	if s.err != nil {
		return collector.Feed{}, s.err
	}
	d, err := source.Resolve(id)
	if err != nil {
		return collector.Feed{}, err
	}
	return collector.Feed{
		Title: d.Title,
		Link:  d.Link,
		Items: []collector.FeedItem{{
			Title:   "市政府常务会议",
			Link:    "https://www.ankang.gov.cn/a/1.html",
			PubDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("CST", 8*3600)),
		}},
	}, nil
}

type stubStore struct {
	gotChannel, gotSort, gotDate string
	gotLimit                     int
	err                          error
}

func (s *stubStore) ListNews(_ context.Context, channel, sort string, limit int, date string) ([]storage.News, error) {
	s.gotChannel, s.gotSort, s.gotLimit, s.gotDate = channel, sort, limit, date
	if s.err != nil {
		return nil, s.err
	}
	return []storage.News{{ID: "1", Title: "t", URL: "https://www.ankang.gov.cn/a/1.html", Source: channel}}, nil
}

func (s *stubStore) ListPublishedDates(_ context.Context, channel string, limit int) ([]string, error) {
	s.gotChannel, s.gotLimit = channel, limit
	return []string{"2024-05-01"}, s.err
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, srv *Server, path string) (int, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv.RegisterRoutes(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)

	var env envelope
	if path != "/health" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestColumnFeed(t *testing.T) {
	code, env := serve(t, NewServer(&stubFeeds{}, nil), "/gov/ankang/news/akyw")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Code)

	var feed struct {
		Title string `json:"title"`
		Link  string `json:"link"`
		Item  []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			PubDate string `json:"pubDate"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	assert.Equal(t, "安康市政府 - 安康要闻", feed.Title)
	assert.Equal(t, "https://www.ankang.gov.cn/Node-1466.html", feed.Link)
	require.Len(t, feed.Item, 1)
	assert.Equal(t, "2024-05-01T00:00:00+08:00", feed.Item[0].PubDate)
}

func TestColumnFeedInvalidParameter(t *testing.T) {
	code, env := serve(t, NewServer(&stubFeeds{}, nil), "/gov/ankang/news/bogus")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_parameter", env.Code)
	assert.Contains(t, env.Message, "pattern not matched")
}

func TestColumnFeedUpstreamError(t *testing.T) {
	code, env := serve(t, NewServer(&stubFeeds{err: errors.New("dial tcp: timeout")}, nil), "/gov/ankang/news/866")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "upstream_error", env.Code)
}

func TestListColumns(t *testing.T) {
	code, env := serve(t, NewServer(&stubFeeds{}, nil), "/gov/ankang/news")
	require.Equal(t, http.StatusOK, code)

	var cols []columnView
	require.NoError(t, json.Unmarshal(env.Data, &cols))
	require.Len(t, cols, 3)
	assert.Equal(t, "/gov/ankang/news/1466", cols[0].Example)
	assert.Contains(t, cols[2].Aliases, "shiquan")
}

func TestListNews(t *testing.T) {
	st := &stubStore{}
	code, env := serve(t, NewServer(&stubFeeds{}, st), "/api/v1/news?channel=ankang_1466&sort=hot&limit=abc&date=2024-05-01")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Code)
	assert.Equal(t, "ankang_1466", st.gotChannel)
	assert.Equal(t, "latest", st.gotSort)
	assert.Equal(t, 20, st.gotLimit)
	assert.Equal(t, "2024-05-01", st.gotDate)

	st.err = errors.New("db down")
	code, env = serve(t, NewServer(&stubFeeds{}, st), "/api/v1/news")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal_error", env.Code)
}

func TestListDates(t *testing.T) {
	st := &stubStore{}
	code, env := serve(t, NewServer(&stubFeeds{}, st), "/api/v1/dates?channel=ankang_866")
	require.Equal(t, http.StatusOK, code)
	var dates []string
	require.NoError(t, json.Unmarshal(env.Data, &dates))
	assert.Equal(t, []string{"2024-05-01"}, dates)
	assert.Equal(t, 31, st.gotLimit)

	for _, q := range []string{"abc", "-3", "0"} {
		code, _ = serve(t, NewServer(&stubFeeds{}, st), "/api/v1/dates?limit="+q)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 31, st.gotLimit, "limit=%s", q)
	}
	code, _ = serve(t, NewServer(&stubFeeds{}, st), "/api/v1/dates?limit=7")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 7, st.gotLimit)
}

func TestArchiveDisabled(t *testing.T) {
	code, _ := serve(t, NewServer(&stubFeeds{}, nil), "/api/v1/news")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = serve(t, NewServer(&stubFeeds{}, nil), "/api/v1/dates")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealth(t *testing.T) {
	code, _ := serve(t, NewServer(&stubFeeds{}, nil), "/health")
	assert.Equal(t, http.StatusOK, code)
}
