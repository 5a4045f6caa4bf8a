// Package logging hands out per-module slog loggers for the pool server and
// its workers.
//
// The serve command calls Initialize once with the [logging] section of the
// config file. Every package then asks for its own logger:
//
//	logger := logging.GetLogger("pool")
//	logger.Info("Prepared workers", "count", 4, "pool", 4)
//
// Loggers carry a module attribute and a level of their own. The global level
// applies unless the config names the module:
//
//	[logging]
//	level = "info"
//	pool = "debug"
//	http = "warn"
//
// SetLevels changes levels in place, so a config reload reaches loggers that
// were handed out before it. Packages that only log accept the Logger
// interface, which tests satisfy with a discard handler.
//
// Forked workers log through the same package. The worker entry point reads
// RWORKER_LOGGING_LEVEL and tags every line with the record id:
//
//	logger := logging.GetLogger("worker").With("process_id", inv.ID)
//
// Output goes to stdout as text or JSON, and to journald when a journal
// socket is present. Journal fields are the upper-cased attribute keys, so a
// single worker can be followed with:
//
//	journalctl -t rworker PROCESS_ID=rworker:process:3:1761000000000
package logging
