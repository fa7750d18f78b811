package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	// 为空时正文缓存使用进程内内存
	RedisAddr string

	CronSpec string

	BasicAuthUser string
	BasicAuthPass string

	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	// <=0 表示全文补全不限并发
	EnrichLimit int
	// keep / epoch / drop / fail
	DatePolicy string
	UserAgent  string

	Debug bool
}

func Load() *Config {
	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "host=localhost user=govnews password=govnews dbname=govnews port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		CronSpec:      getEnv("CRON_SPEC", "*/30 * * * *"),
		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),
		CacheTTL:      getDuration("CACHE_TTL", time.Hour),
		HTTPTimeout:   getDuration("HTTP_TIMEOUT", 15*time.Second),
		EnrichLimit:   getInt("ENRICH_LIMIT", 0),
		DatePolicy:    getEnv("DATE_POLICY", "keep"),
		UserAgent:     getEnv("USER_AGENT", "GovNewsBot/1.0"),
		Debug:         getBool("DEBUG", false),
	}

	log.Printf("[INFO] config loaded: port=%s cron=%s redis=%t date_policy=%s", cfg.AppPort, cfg.CronSpec, cfg.RedisAddr != "", cfg.DatePolicy)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[WARN] invalid %s=%q, use default %s", key, v, def)
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] invalid %s=%q, use default %d", key, v, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
