// Package logging provides structured logging for the Gray Signage player.
//
// It wraps the standard log/slog package so every component logs with the
// same format and the same default fields (service, version, device).
//
// # Configuration
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	schedLog := logger.Component("scheduler")
//	schedLog.Info("playlist replaced", "items", 4)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
