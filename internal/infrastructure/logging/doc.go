// Package logging provides structured logging for the nooLite bridge.
//
// Every component logs through one log/slog handler carrying the service
// name, build version and bridge ID. Byte slices such as MTRF frames are
// printed as hex, and password or token attributes are redacted.
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
//	logger := logging.New(cfg.Logging, logging.Identity{Version: "1.0.0", BridgeID: cfg.Bridge.ID})
//	logger.Component("classifier").Error("sensor not found", "channel", 7)
//
// Never log the MQTT password or the InfluxDB token.
package logging
