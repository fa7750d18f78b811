package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/go-pkgz/lgr"

	"github.com/LJTian/govnews/internal/api"
	"github.com/LJTian/govnews/internal/cache"
	"github.com/LJTian/govnews/internal/collector"
	"github.com/LJTian/govnews/internal/config"
	"github.com/LJTian/govnews/internal/processor"
	"github.com/LJTian/govnews/internal/scheduler"
	"github.com/LJTian/govnews/internal/storage"
)

func main() {
	cfg := config.Load()
	setupLog(cfg.Debug, cfg.BasicAuthPass)

	datePolicy, err := collector.ParseDatePolicy(cfg.DatePolicy)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	var (
		store   *storage.Store
		archive api.NewsLister
	)
	if cfg.PostgresDSN != "" {
		store, err = storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("[ERROR] init store failed: %v", err)
		}
		defer store.Close()
		archive = store
	} else {
		log.Printf("[WARN] POSTGRES_DSN empty, archive disabled")
	}

	// 正文缓存：有 Redis 用 Redis，多实例共享；否则退化为进程内缓存
	var contentCache collector.Cache = cache.NewMemory(cfg.CacheTTL)
	if store != nil && store.Redis != nil {
		contentCache = cache.NewRedis(store.Redis, cfg.CacheTTL)
	}

	extractor := collector.NewExtractor(collector.Options{
		Client:      &http.Client{Timeout: cfg.HTTPTimeout},
		UserAgent:   cfg.UserAgent,
		Cache:       contentCache,
		DatePolicy:  datePolicy,
		EnrichLimit: cfg.EnrichLimit,
	})

	var sched *scheduler.Scheduler
	if store != nil {
		// 每个栏目一个渠道、一个定时归档任务
		var jobs []scheduler.FetcherJob
		for _, f := range collector.ColumnFetchers(extractor) {
			if _, err := store.EnsureChannel(f.Name(), f.Descriptor.Title, f.Descriptor.Link); err != nil {
				log.Fatalf("[ERROR] ensure channel %s failed: %v", f.Name(), err)
			}
			jobs = append(jobs, scheduler.FetcherJob{Fetcher: f, CronSpec: cfg.CronSpec})
		}
		sched, err = scheduler.New(jobs, processor.NewSimpleProcessor(), store, 2*time.Minute)
		if err != nil {
			log.Fatalf("[ERROR] init scheduler failed: %v", err)
		}
		sched.Start()
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Debug {
		r.Use(gin.Logger())
	}
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}
	api.NewServer(extractor, archive).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("[WARN] shutdown: %v", err)
		}
	}()

	log.Printf("[INFO] starting api server at %s ...", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[ERROR] server exit: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
	log.Print("[INFO] shutdown complete")
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces}
	}
	if _, ok := os.LookupEnv("NO_COLOR"); !ok {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	var filtered []string
	for _, s := range secs {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) > 0 {
		logOpts = append(logOpts, lgr.Secret(filtered...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
	gin.DefaultWriter = io.Discard
	if dbg {
		gin.DefaultWriter = os.Stdout
	}
}
