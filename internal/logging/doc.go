// Package logging provides slog loggers with per-module levels.
//
// Initialize once at startup, then fetch a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"streams": "debug", "player": "warn"},
//	})
//	logger := logging.GetLogger("streams").With("device_id", id)
//
// Output goes to stdout when it is a terminal, pipe, socket or file, and to
// the systemd journal when journald is reachable. Journal entries carry the
// identifier "camview" and every attribute as an upper-case field:
//
//	journalctl -t camview MODULE=player DEVICE_ID=cam-1
//
// Levels are debug, info, warn and error. A module level overrides the global
// level for that module only and can be changed at runtime with SetLevel.
package logging
