// Package device holds the nooLite device registry.
//
// Devices are loaded once from a YAML list at startup and never change. The
// Registry exposes three independent channel indices:
//
//   - TX channel: the channel a switch is commanded on
//   - status channel: the RX channels a switch reports its state on
//   - sensor channel: the channel a sensor transmits on
//
// The same channel number may appear in different indices for different
// devices. Within one index the first registration wins.
//
// Example devices file:
//
//	devices:
//	  - kind: switch
//	    channel: 1
//	    topic: hall/light
//	    status_report_topic: hall/light/status
//	    status_report_channels: [10, 11]
//	  - kind: temperature_humidity_sensor
//	    channel: 5
//	    topic: bathroom/temperature
//	    humidity_topic: bathroom/humidity
package device
