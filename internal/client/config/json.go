package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/flagx"
	"github.com/dmitrijs2005/moodlog/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration so they can be written as "3s" or integer nanoseconds.
type JsonConfig struct {
	StationID  string `json:"station_id"`
	DeviceType string `json:"device_type"`
	Timezone   string `json:"timezone"`

	FeedAddr            string         `json:"feed_addr"`
	RemoteTimeout       timex.Duration `json:"remote_timeout"`
	ResubscribeDelay    timex.Duration `json:"resubscribe_delay"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`

	DatabasePath  string `json:"database_path"`
	CacheKey      string `json:"cache_key"`
	CacheCapacity int    `json:"cache_capacity"`

	EnrichTimeout timex.Duration `json:"enrich_timeout"`
	LLMAPIKey     string         `json:"llm_api_key"`
	LLMModel      string         `json:"llm_model"`
	ImageEndpoint string         `json:"image_endpoint"`

	S3Region    string `json:"s3_region"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3Bucket    string `json:"s3_bucket"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// parseJson overlays cfg with the JSON file named by -c or -config. Keys
// missing from the file keep their current value. Read or decode errors
// panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.StationID, jc.StationID)
	setString(&cfg.DeviceType, jc.DeviceType)
	setString(&cfg.Timezone, jc.Timezone)
	setString(&cfg.FeedAddr, jc.FeedAddr)
	setDuration(&cfg.RemoteTimeout, jc.RemoteTimeout)
	setDuration(&cfg.ResubscribeDelay, jc.ResubscribeDelay)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.CacheKey, jc.CacheKey)
	if jc.CacheCapacity != 0 {
		cfg.CacheCapacity = jc.CacheCapacity
	}
	setDuration(&cfg.EnrichTimeout, jc.EnrichTimeout)
	setString(&cfg.LLMAPIKey, jc.LLMAPIKey)
	setString(&cfg.LLMModel, jc.LLMModel)
	setString(&cfg.ImageEndpoint, jc.ImageEndpoint)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
