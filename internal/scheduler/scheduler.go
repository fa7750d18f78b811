package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/govnews/internal/collector"
	"github.com/LJTian/govnews/internal/processor"
)

// Saver 归档一批已处理的条目，由 storage.Store 实现
type Saver interface {
	SaveBatch(items []processor.ProcessedNews) error
}

// FetcherJob 为单个数据源配置独立的采集周期
type FetcherJob struct {
	Fetcher  collector.Fetcher
	CronSpec string
}

type Scheduler struct {
	cron      *cron.Cron
	jobs      []FetcherJob
	processor *processor.SimpleProcessor
	store     Saver
	timeout   time.Duration
}

// New 为每个 job 注册一个 cron 任务，timeout 为单次采集的超时（<=0 时不设超时）
func New(jobs []FetcherJob, p *processor.SimpleProcessor, store Saver, timeout time.Duration) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:      c,
		jobs:      jobs,
		processor: p,
		store:     store,
		timeout:   timeout,
	}

	for _, j := range jobs {
		fetcher := j.Fetcher
		if _, err := c.AddFunc(j.CronSpec, func() { s.runFetcher(fetcher) }); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Cron 暴露底层 cron，便于追加其它定时任务
func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与服务启动争抢资源
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("[INFO] start collect job...")

	var wg sync.WaitGroup
	for _, j := range s.jobs {
		fetcher := j.Fetcher
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runFetcher(fetcher)
		}()
	}

	wg.Wait()
	log.Println("[INFO] collect job done (all sources)")
}

func (s *Scheduler) runFetcher(fetcher collector.Fetcher) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := fetcher.Name()
	items, err := fetcher.Fetch(ctx)
	if err != nil {
		log.Printf("[WARN] fetch %s error: %v", name, err)
		return
	}
	if len(items) == 0 {
		log.Printf("[INFO] fetch %s got 0 items", name)
		return
	}
	processed := s.processor.Process(name, items)
	if len(processed) == 0 {
		return
	}
	if err := s.store.SaveBatch(processed); err != nil {
		log.Printf("[ERROR] save %s batch error: %v", name, err)
		return
	}
	// 条数 = 本轮解析到的数量（非“新增数”，已存在会更新）
	log.Printf("[INFO] %s done, fetched=%d saved=%d items", name, len(items), len(processed))
}
