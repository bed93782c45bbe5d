// Package noolite implements the event bridge between MQTT and a nooLite
// MTRF-64 radio adapter.
//
// # Architecture
//
//	MQTT command topic ──► Router ──► Queue ──► MTRF-64 ──► radio
//	                          │                    │
//	                          ▼                    ▼ receptions
//	MQTT status topics ◄── Publisher ◄──────── Classifier
//
// The Router turns "0"/"1" payloads into radio actions and echoes them to
// the switch's status topic. The Queue is the only path to the transmitter:
// it runs actions one at a time, in order, with a fixed pause after every
// transmission. The Classifier maps each reception, by its (mode, command,
// result) triple, to retained publications; a triple it does not know is
// reported on Bridge.Fatal instead of being dropped.
//
// # Topics
//
// Device topics come from the device list. The bridge also owns:
//
//   - noolite/bridge/health: retained JSON health report
//   - balcony/heating, bathroom/ventilation: legacy automation outputs,
//     enabled by bridge.legacy_automation
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package noolite
