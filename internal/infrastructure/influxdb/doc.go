// Package influxdb is the optional telemetry sink of the nooLite bridge.
//
// Temperature, humidity and switch observations go to the "noolite"
// measurement through the influxdb-client-go v2 batching write API, tagged
// with the device channel, kind, topic and the bridge ID.
//
//	sink, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Bridge.ID)
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//	sink.SetOnError(func(err error) { log.Error("telemetry", "error", err) })
//
// Writes never block. Rejected batches reach the SetOnError callback
// wrapped in ErrBatchRejected and are counted in Stats.
package influxdb
