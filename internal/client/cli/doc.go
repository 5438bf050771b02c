// Package cli provides the interactive moodlog command-line client.
//
// It wires configuration, the local cache, the remote feed, the generation
// backends and the station journal, then runs a REPL. A background watcher
// pings the remote store and flips the prompt between online and offline;
// without a configured feed the client runs in disabled (local-only) mode.
//
// Commands:
//   - add: guided reflection (mood, text, zone)
//   - list [day] / mood [day] / days
//   - delete <id|prefix>
//   - clear <RFC3339|YYYY-MM-DD>
//   - status / keys / reset
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
