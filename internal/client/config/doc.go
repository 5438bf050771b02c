// Package config loads runtime configuration for the moodlog client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment variables (MOODLOG_*, ANTHROPIC_API_KEY).
//  4. Command-line flags.
//
// # JSON schema
//
// Intervals accept strings like "3s" or integer nanoseconds:
//
//	{
//	  "station_id": "lobby",
//	  "feed_addr": "127.0.0.1:50051",
//	  "database_path": "moodlog.db",
//	  "cache_capacity": 50,
//	  "enrich_timeout": "20s",
//	  "online_check_interval": "3s"
//	}
package config
