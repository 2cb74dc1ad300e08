// Package logging provides structured logging for the RNet bridge.
//
// This package wraps Go's standard log/slog package and, for file output,
// rotates through lumberjack.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file, both
//	  file:
//	    path: "/var/log/rnetbridge/rnetbridge.log"
//	    max_size: 100    # MB
//	    max_backups: 5
//	    max_age: 30      # days
//	    compress: true
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("starting service", "port", 8090)
package logging
