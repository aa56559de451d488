// Package logging provides structured logging for the entrance controller.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("door opened", "user", name)
//	logger.Error("bus reset failed", "error", err)
//
// # Security
//
// Never log door codes or raw button sequences outside of debug level.
package logging
