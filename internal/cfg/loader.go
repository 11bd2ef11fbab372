package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBDriver   string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	SQLitePath string `long:"sqlite-path" env:"SQLITE_PATH" default:"./data/rss-inbox.db" description:"SQLite database file"`
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"rss_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" description:"Database password (required for postgres)"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"rss_inbox" description:"Database name"`

	// Cache configuration
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the RSS export cache (optional)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RSSCacheTTL   int    `long:"rss-cache-ttl" env:"RSS_CACHE_TTL" default:"300" description:"RSS export cache TTL in seconds"`

	// Application configuration
	FeedsFile         string `long:"feeds-file" env:"FEEDS_FILE" default:"./feeds.yml" description:"YAML file with feeds to register at startup"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed sync"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Scheduler interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Inbox/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	return &Cfg{
		DBDriver:          raw.DBDriver,
		SQLitePath:        raw.SQLitePath,
		DBHost:            raw.DBHost,
		DBPort:            raw.DBPort,
		DBUser:            raw.DBUser,
		DBPassword:        raw.DBPassword,
		DBName:            raw.DBName,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RSSCacheTTL:       time.Duration(raw.RSSCacheTTL) * time.Second,
		FeedsFile:         raw.FeedsFile,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: time.Duration(raw.SchedulerInterval) * time.Second,
		FetchTimeout:      time.Duration(raw.FetchTimeout) * time.Second,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}, nil
}

func validate(raw *rawCfg) error {
	if raw.DBDriver == "postgres" && raw.DBPassword == "" {
		return fmt.Errorf("db-password is required for the postgres driver")
	}
	if raw.WorkerCount < 1 {
		return fmt.Errorf("worker-count must be positive, got %d", raw.WorkerCount)
	}
	if raw.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler-interval must be positive, got %d", raw.SchedulerInterval)
	}
	if raw.RedisAddr != "" && raw.RSSCacheTTL < 1 {
		return fmt.Errorf("rss-cache-ttl must be positive when redis-addr is set, got %d", raw.RSSCacheTTL)
	}
	if raw.FetchTimeout < 1 {
		return fmt.Errorf("fetch-timeout must be positive, got %d", raw.FetchTimeout)
	}
	return nil
}
