package cfg

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	if Version != "" {
		return Version
	}
	return "unknown"
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./postwire.db" description:"Path to the SQLite database file"`

	// Application configuration
	PlatformsFile string `long:"platforms-file" env:"PLATFORMS_FILE" default:"./platforms.yml" description:"Platform connector configuration file"`
	RulesFile     string `long:"rules-file" env:"RULES_FILE" default:"./rules.yml" description:"Cross-posting rules file"`
	PostsDir      string `long:"posts-dir" env:"POSTS_DIR" default:"./posts" description:"Directory containing canonical post files"`
	Port          string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl       string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://syndicate.example.com)"`
	WorkerCount   int    `long:"worker-count" env:"WORKER_COUNT" default:"10" description:"Number of publishing queue workers"`
	QueueInterval int    `long:"queue-interval" env:"QUEUE_INTERVAL" default:"15" description:"Queue claim interval in seconds"`
	PollSchedule  string `long:"poll-schedule" env:"POLL_SCHEDULE" default:"@every 5m" description:"Cron schedule for feed polling"`
	APIAccessKey  string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Publishing configuration
	MaxAttempts     int `long:"max-attempts" env:"MAX_ATTEMPTS" default:"3" description:"Maximum publish attempts per queue job"`
	StaleAfter      int `long:"stale-after" env:"STALE_AFTER" default:"10" description:"Minutes after which a processing job is considered stale and requeued"`
	JobRetention    int `long:"job-retention" env:"JOB_RETENTION" default:"7" description:"Days to keep terminal queue jobs before cleanup"`
	MaxItemsPerPoll int `long:"max-items-per-poll" env:"MAX_ITEMS_PER_POLL" default:"50" description:"Maximum feed items processed per poll"`
	FeedTimeout     int `long:"feed-timeout" env:"FEED_TIMEOUT" default:"30" description:"Per-feed fetch timeout in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Postwire/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		PlatformsFile:   raw.PlatformsFile,
		RulesFile:       raw.RulesFile,
		PostsDir:        raw.PostsDir,
		Port:            raw.Port,
		BaseUrl:         raw.BaseUrl,
		WorkerCount:     raw.WorkerCount,
		QueueInterval:   raw.QueueInterval,
		PollSchedule:    raw.PollSchedule,
		APIAccessKey:    raw.APIAccessKey,
		MaxAttempts:     raw.MaxAttempts,
		StaleAfter:      raw.StaleAfter,
		JobRetention:    raw.JobRetention,
		MaxItemsPerPoll: raw.MaxItemsPerPoll,
		FeedTimeout:     raw.FeedTimeout,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
