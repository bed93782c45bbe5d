// Package mqtt provides MQTT client connectivity for the nooLite bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and a reconnect count
//   - Message publishing with QoS guarantees
//   - The command topic set, registered once and replayed on reconnect
//   - Last Will and Testament (LWT) on noolite/system/status
//
// Publish blocks until the broker acknowledges (up to 5s). The bridge
// never calls it from the adapter's reception path directly; it goes
// through the bridge's buffered publisher instead.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.SubscribeCommands([]string{"home/hall/light"}, 1,
//	    func(topic string, payload []byte) {
//	        // enqueue, never block
//	    })
//
//	client.Publish("home/hall/light/status", []byte("1"), 1, true)
package mqtt
