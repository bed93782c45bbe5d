// Package config handles loading and validating nooLite bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file
//   - Overriding with NOOLITE_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - The MQTT password and InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// The device list lives in a separate file (bridge.devices_file) and is
// loaded by the device package, not here.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Adapter.Port)
package config
