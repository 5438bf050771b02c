package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-s string   station id
//	-a string   address:port of the remote feed (empty for local-only)
//	-d string   path of the local SQLite database
//	-n int      cache capacity (entries)
//	-tz string  timezone for day grouping
//	-i int      online check interval (seconds)
//	-l string   log level
//
// Flags not listed here are ignored.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.StationID, "s", cfg.StationID, "station id")
	fs.StringVar(&cfg.FeedAddr, "a", cfg.FeedAddr, "address and port of the remote feed")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.IntVar(&cfg.CacheCapacity, "n", cfg.CacheCapacity, "cache capacity")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "timezone for day grouping")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := flagx.Parse(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
