package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBDriver   string
	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Cache configuration
	RedisAddr     string
	RedisPassword string
	RSSCacheTTL   time.Duration

	// Application configuration
	FeedsFile         string
	Port              string
	WorkerCount       int
	SchedulerInterval time.Duration
	FetchTimeout      time.Duration
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
