package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementNoolite is the measurement every bridge observation is written to.
const MeasurementNoolite = "noolite"

// Field names used on the noolite measurement.
const (
	FieldTemperature = "temperature_c"
	FieldHumidity    = "humidity_pct"
	FieldOn          = "on"
)

// Tag names used on the noolite measurement.
const (
	TagChannel = "channel"
	TagKind    = "kind"
	TagTopic   = "topic"
)

// Observation is one sensor or switch reading. Only the non-nil value
// fields are written.
type Observation struct {
	Channel     uint8
	Kind        string
	Topic       string
	Temperature *float64
	Humidity    *int
	On          *bool
	Time        time.Time
}

// NewObservationPoint builds the point for an observation, or nil when the
// observation carries no values. A zero Time means now.
func NewObservationPoint(obs Observation) *write.Point {
	fields := make(map[string]any, 3)
	if obs.Temperature != nil {
		fields[FieldTemperature] = *obs.Temperature
	}
	if obs.Humidity != nil {
		fields[FieldHumidity] = *obs.Humidity
	}
	if obs.On != nil {
		fields[FieldOn] = *obs.On
	}
	if len(fields) == 0 {
		return nil
	}

	ts := obs.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		TagChannel: strconv.Itoa(int(obs.Channel)),
		TagKind:    obs.Kind,
	}
	if obs.Topic != "" {
		tags[TagTopic] = obs.Topic
	}
	return write.NewPoint(MeasurementNoolite, tags, fields, ts)
}
