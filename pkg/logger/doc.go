// Package logger provides structured logging for twmediadl.
//
// It wraps zerolog behind a small interface so packages can take a Logger
// in their constructors and tests can pass a TestLogger or NewNopLogger.
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("category", "likes")
//	log.InfoWithFields("Ledger loaded", map[string]interface{}{
//	    "urls": 1042,
//	})
//
// Console output is colored and written to stderr. When LoggingConfig.File is
// set, JSON lines are appended to that file as well.
package logger
