package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-n int      documents kept per station
//	-r int      snapshot refresh interval, seconds
//	-l string   log level
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.SnapshotLimit, "n", config.SnapshotLimit, "documents kept per station")
	refreshInterval := fs.Int("r", int(config.RefreshInterval.Seconds()), "snapshot refresh interval (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := flagx.Parse(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	config.RefreshInterval = time.Duration(*refreshInterval) * time.Second
}
