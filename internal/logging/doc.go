// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout when a terminal, pipe or file is attached and to the
// systemd journal when journald is running; both when both are present.
//
// Initialize once at startup, then fetch a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"kbdled": "debug",
//			"api":    "warn",
//		},
//	})
//
//	logger := logging.GetLogger("fancpu")
//	logger.Info("fan level changed", "level", "boost")
//
// Levels are held in slog.LevelVar values, so SetLevels (or a second
// Initialize) changes what already-created loggers emit.
//
// Journal entries carry SYSLOG_IDENTIFIER=rogd and upper-cased attribute keys:
//
//	journalctl -t rogd MODULE=fancpu
//
// Settings file form:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	kbdled = "debug"
package logging
