package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
)

// Config holds runtime settings for the moodlog client.
//
// FeedAddr empty means the remote store is not configured and the client
// runs local-only. LLMAPIKey empty disables text generation (fallback
// content is used); ImageEndpoint empty disables images.
type Config struct {
	StationID  string `env:"MOODLOG_STATION"`
	DeviceType string `env:"MOODLOG_DEVICE"`
	Timezone   string `env:"MOODLOG_TZ"`

	FeedAddr            string        `env:"MOODLOG_FEED_ADDR"`
	RemoteTimeout       time.Duration `env:"MOODLOG_REMOTE_TIMEOUT"`
	ResubscribeDelay    time.Duration `env:"MOODLOG_RESUBSCRIBE_DELAY"`
	OnlineCheckInterval time.Duration `env:"MOODLOG_ONLINE_CHECK_INTERVAL"`

	DatabasePath  string `env:"MOODLOG_DB"`
	CacheKey      string `env:"MOODLOG_CACHE_KEY"`
	CacheCapacity int    `env:"MOODLOG_CACHE_CAPACITY"`

	EnrichTimeout time.Duration `env:"MOODLOG_ENRICH_TIMEOUT"`
	LLMAPIKey     string        `env:"ANTHROPIC_API_KEY"`
	LLMModel      string        `env:"MOODLOG_LLM_MODEL"`
	ImageEndpoint string        `env:"MOODLOG_IMAGE_ENDPOINT"`

	S3Region    string `env:"MOODLOG_S3_REGION"`
	S3AccessKey string `env:"MOODLOG_S3_ACCESS_KEY"`
	S3SecretKey string `env:"MOODLOG_S3_SECRET_KEY"`
	S3Endpoint  string `env:"MOODLOG_S3_ENDPOINT"`
	S3Bucket    string `env:"MOODLOG_S3_BUCKET"`

	LogLevel  string `env:"MOODLOG_LOG_LEVEL"`
	LogFormat string `env:"MOODLOG_LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StationID = "lobby"
	c.DeviceType = "terminal"
	c.Timezone = "Local"
	c.FeedAddr = ""
	c.RemoteTimeout = 5 * time.Second
	c.ResubscribeDelay = 3 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "moodlog.db"
	c.CacheKey = "moodlog.community.entries"
	c.CacheCapacity = 50
	c.EnrichTimeout = 20 * time.Second
	c.LLMModel = "claude-3-5-haiku-latest"
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig builds a Config from defaults, then an optional JSON file,
// then environment variables, then command-line flags. Later sources take
// precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if c.StationID == "" || len(c.StationID) > common.StationIDMaxLen {
		errs = append(errs, fmt.Errorf("station id must be 1..%d characters", common.StationIDMaxLen))
	}
	if c.CacheCapacity <= 0 {
		errs = append(errs, errors.New("cache capacity must be positive"))
	}
	if c.RemoteTimeout <= 0 || c.EnrichTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.ResubscribeDelay <= 0 || c.OnlineCheckInterval <= 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves Timezone. "Local" and "" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) FeedConfigured() bool {
	return c.FeedAddr != ""
}
