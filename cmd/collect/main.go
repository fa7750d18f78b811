package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/LJTian/govnews/internal/cache"
	"github.com/LJTian/govnews/internal/collector"
	"github.com/LJTian/govnews/internal/processor"
	"github.com/LJTian/govnews/internal/source"
	"github.com/LJTian/govnews/internal/storage"
)

// Opts 一次性采集命令的参数
type Opts struct {
	UIDs        []string      `short:"u" long:"uid" description:"column id or alias, repeatable (default: all columns)"`
	Save        bool          `long:"save" description:"archive results into postgres"`
	PostgresDSN string        `long:"dsn" env:"POSTGRES_DSN" description:"postgres dsn, required with --save"`
	RedisAddr   string        `long:"redis" env:"REDIS_ADDR" description:"redis address for the content cache"`
	DatePolicy  string        `long:"date-policy" env:"DATE_POLICY" default:"keep" choice:"keep" choice:"epoch" choice:"drop" choice:"fail" description:"how to treat unparsable dates"`
	Timeout     time.Duration `long:"timeout" env:"HTTP_TIMEOUT" default:"15s" description:"http timeout"`
	Debug       bool          `long:"dbg" env:"DEBUG" description:"debug mode"`
}

// 一个仅执行一次采集任务的命令行入口：适合手动触发采集或排查页面结构变化
func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	setupLog(opts.Debug)

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Opts, out io.Writer) error {
	policy, err := collector.ParseDatePolicy(opts.DatePolicy)
	if err != nil {
		return err
	}

	var store *storage.Store
	if opts.Save {
		if opts.PostgresDSN == "" {
			return errors.New("--save requires --dsn or POSTGRES_DSN")
		}
		if store, err = storage.NewStore(opts.PostgresDSN, opts.RedisAddr); err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer store.Close()
	}

	var contentCache collector.Cache = cache.NewMemory(time.Hour)
	if store != nil && store.Redis != nil {
		contentCache = cache.NewRedis(store.Redis, time.Hour)
	}
	extractor := collector.NewExtractor(collector.Options{
		Client:     &http.Client{Timeout: opts.Timeout},
		Cache:      contentCache,
		DatePolicy: policy,
	})

	uids := opts.UIDs
	if len(uids) == 0 {
		for _, c := range source.Columns() {
			uids = append(uids, c.UID)
		}
	}

	p := processor.NewSimpleProcessor()
	feeds := make([]collector.Feed, 0, len(uids))
	for _, uid := range uids {
		d, err := source.Resolve(uid)
		if err != nil {
			return err
		}
		f := &collector.ColumnFetcher{Extractor: extractor, Descriptor: d}
		items, err := f.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("collect %s: %w", uid, err)
		}
		feeds = append(feeds, collector.Feed{Title: d.Title, Link: d.Link, Items: items})

		if store != nil {
			if _, err := store.EnsureChannel(f.Name(), d.Title, d.Link); err != nil {
				return fmt.Errorf("ensure channel %s: %w", f.Name(), err)
			}
			if err := store.SaveBatch(p.Process(f.Name(), items)); err != nil {
				return fmt.Errorf("save %s: %w", f.Name(), err)
			}
		}
		log.Printf("[INFO] %s: %d items", d.Title, len(items))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(feeds)
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.Msec, lgr.LevelBraces)
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
