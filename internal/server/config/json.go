package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/moodlog/internal/flagx"
	"github.com/dmitrijs2005/moodlog/internal/timex"
)

// JsonConfig is the JSON shape of Config. RefreshInterval accepts "30s"
// or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	DatabaseDSN      string         `json:"database_dsn"`
	SnapshotLimit    int            `json:"snapshot_limit"`
	RefreshInterval  timex.Duration `json:"refresh_interval"`
	LogLevel         string         `json:"log_level"`
	LogFormat        string         `json:"log_format"`
}

// parseJson overlays config with the file named by -c or -config. Keys
// missing from the file keep their value; read or decode errors panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrGRPC != "" {
		config.EndpointAddrGRPC = c.EndpointAddrGRPC
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SnapshotLimit != 0 {
		config.SnapshotLimit = c.SnapshotLimit
	}
	if c.RefreshInterval.Duration != 0 {
		config.RefreshInterval = c.RefreshInterval.Duration
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		config.LogFormat = c.LogFormat
	}
}
