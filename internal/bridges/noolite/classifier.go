package noolite

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/noolite-bridge/internal/device"
	"github.com/nerrad567/noolite-bridge/internal/journal"
	"github.com/nerrad567/noolite-bridge/internal/mtrf"
)

// Classification is what the classifier decided for one reception.
type Classification struct {
	// Rule names the matching row, e.g. "rx_on".
	Rule         string
	Outcome      journal.Outcome
	Publications []Publication
	Observations []Observation
	// Notes records resolution failures, for the journal.
	Notes []string
}

// Detail summarises the classification for the journal.
func (c *Classification) Detail() string {
	parts := make([]string, 0, len(c.Publications)+len(c.Notes))
	for _, p := range c.Publications {
		parts = append(parts, p.String())
	}
	parts = append(parts, c.Notes...)
	return strings.Join(parts, "; ")
}

func (c *Classification) publish(topic, payload string) {
	c.Publications = append(c.Publications, Publication{Topic: topic, Payload: payload})
}

func (c *Classification) note(format string, args ...any) {
	c.Notes = append(c.Notes, fmt.Sprintf(format, args...))
}

// classificationRule is one row of the reception table. Rows are checked in
// order and the first match wins.
type classificationRule struct {
	name   string
	match  func(rec mtrf.Reception) bool
	handle func(c *Classifier, rec mtrf.Reception, out *Classification)
}

var classificationRules = []classificationRule{
	{
		// Startup transient while the adapter leaves service mode.
		name:   "service",
		match:  func(rec mtrf.Reception) bool { return rec.Mode == mtrf.ModeService },
		handle: ignore,
	},
	{
		// Continuous brightness ramps are not supported.
		name:   "brightness_stop",
		match:  received(mtrf.CommandBrightnessStop),
		handle: ignore,
	},
	{
		name:  "rx_on",
		match: received(mtrf.CommandOn, mtrf.CommandTemporarySwitchOn, mtrf.CommandBrightnessUp),
		handle: func(c *Classifier, rec mtrf.Reception, out *Classification) {
			c.receivedState(rec, true, out)
		},
	},
	{
		name:  "rx_off",
		match: received(mtrf.CommandOff, mtrf.CommandBrightnessDown),
		handle: func(c *Classifier, rec mtrf.Reception, out *Classification) {
			c.receivedState(rec, false, out)
		},
	},
	{
		name: "txf_no_response",
		match: func(rec mtrf.Reception) bool {
			return rec.Mode == mtrf.ModeTXF &&
				(rec.Command == mtrf.CommandOn || rec.Command == mtrf.CommandOff) &&
				rec.Result == mtrf.ResultNoResponse
		},
		handle: (*Classifier).noResponse,
	},
	{
		name: "tx_on",
		match: func(rec mtrf.Reception) bool {
			return sentState(rec, 1) || transmitted(rec, mtrf.CommandOn)
		},
		handle: func(c *Classifier, rec mtrf.Reception, out *Classification) {
			c.transmittedState(rec, true, out)
		},
	},
	{
		name: "tx_off",
		match: func(rec mtrf.Reception) bool {
			return sentState(rec, 0) || transmitted(rec, mtrf.CommandOff)
		},
		handle: func(c *Classifier, rec mtrf.Reception, out *Classification) {
			c.transmittedState(rec, false, out)
		},
	},
	{
		name: "microclimate",
		match: func(rec mtrf.Reception) bool {
			return rec.Mode == mtrf.ModeRX &&
				rec.Command == mtrf.CommandMicroclimateData &&
				rec.Result == mtrf.ResultSuccess &&
				rec.Microclimate != nil
		},
		handle: (*Classifier).microclimate,
	},
}

// received matches a successful RX or RXF reception of one of cmds.
func received(cmds ...mtrf.Command) func(mtrf.Reception) bool {
	return func(rec mtrf.Reception) bool {
		return (rec.Mode == mtrf.ModeRX || rec.Mode == mtrf.ModeRXF) &&
			rec.Result == mtrf.ResultSuccess &&
			slices.Contains(cmds, rec.Command)
	}
}

// sentState matches a nooLite-F SendState answer with the given state byte.
func sentState(rec mtrf.Reception, state uint8) bool {
	return rec.Mode == mtrf.ModeTXF &&
		rec.Command == mtrf.CommandSendState &&
		rec.Result == mtrf.ResultSuccess &&
		rec.Data3() == state
}

// transmitted matches a successful legacy TX confirmation of cmd.
func transmitted(rec mtrf.Reception, cmd mtrf.Command) bool {
	return rec.Mode == mtrf.ModeTX && rec.Command == cmd && rec.Result == mtrf.ResultSuccess
}

func ignore(_ *Classifier, _ mtrf.Reception, out *Classification) {
	out.Outcome = journal.OutcomeIgnored
}

// Classifier maps radio receptions to bus publications.
//
// It holds no state between receptions beyond the read-only registry, so
// Classify may be called from any goroutine.
type Classifier struct {
	registry   *device.Registry
	automation bool
	now        func() time.Time

	optionalLogger
}

// NewClassifier creates a classifier. automation enables the legacy
// heating and ventilation rules.
func NewClassifier(registry *device.Registry, automation bool, logger Logger) *Classifier {
	c := &Classifier{
		registry:   registry,
		automation: automation,
		now:        time.Now,
	}
	c.set(logger)
	return c
}

// Classify applies the first matching rule to rec. A reception matching no
// rule returns ErrUnclassifiedEvent; the classifier never guesses a mapping.
func (c *Classifier) Classify(rec mtrf.Reception) (Classification, error) {
	for _, rule := range classificationRules {
		if !rule.match(rec) {
			continue
		}
		out := Classification{Rule: rule.name}
		rule.handle(c, rec, &out)
		if out.Outcome == "" {
			out.Outcome = journal.OutcomeUnresolved
			if len(out.Publications) > 0 {
				out.Outcome = journal.OutcomePublished
			}
		}
		return out, nil
	}

	return Classification{Outcome: journal.OutcomeUnclassified},
		fmt.Errorf("%w: mode=%s command=%s result=%s channel=%d data=% x",
			ErrUnclassifiedEvent, rec.Mode, rec.Command, rec.Result, rec.Channel, rec.Data)
}

// receivedState handles on/off receptions from status-reporting switches and
// on/off sensors. Both are resolved independently.
func (c *Classifier) receivedState(rec mtrf.Reception, on bool, out *Classification) {
	payload := statePayload(on)

	sw, switchFound := c.registry.SwitchForStatusChannel(rec.Channel)
	if switchFound && sw.StatusReportTopic != "" {
		out.publish(sw.StatusReportTopic, payload)
		c.observeState(out, sw, sw.StatusReportTopic, on)
		c.logInfo("switch state reported", "topic", sw.StatusReportTopic, "on", on, "channel", rec.Channel)
	}

	sensor := c.sensorFor(rec.Channel, device.KindOnOffSensor, out)
	switch {
	case sensor != nil && sensor.Bridged():
		out.publish(sensor.Topic, payload)
		c.observeState(out, sensor, sensor.Topic, on)
		c.logInfo("sensor state reported", "topic", sensor.Topic, "on", on, "channel", rec.Channel)
	case !switchFound:
		out.note("no switch or on/off sensor on channel %d", rec.Channel)
		c.logError("no switch with this status channel and no bridged on/off sensor",
			"channel", rec.Channel,
			"mode", rec.Mode.String(),
			"command", rec.Command.String())
	}
}

func (c *Classifier) noResponse(rec mtrf.Reception, out *Classification) {
	out.Outcome = journal.OutcomeNoResponse
	c.logWarn("no response from device", "channel", rec.Channel, "command", rec.Command.String())
}

// transmittedState handles the adapter's report of a switch state after a
// transmission or a state poll.
func (c *Classifier) transmittedState(rec mtrf.Reception, on bool, out *Classification) {
	sw, ok := c.registry.SwitchForTxChannel(rec.Channel)
	if !ok {
		out.note("no switch on tx channel %d", rec.Channel)
		c.logError("no switch with this tx channel", "channel", rec.Channel, "mode", rec.Mode.String())
		return
	}
	if sw.StatusReportTopic == "" {
		out.note("switch on tx channel %d has no status report topic", rec.Channel)
		c.logError("switch has no status report topic", "switch", sw.Name(), "channel", rec.Channel)
		return
	}

	out.publish(sw.StatusReportTopic, statePayload(on))
	c.observeState(out, sw, sw.StatusReportTopic, on)
	c.logInfo("switch state reported", "topic", sw.StatusReportTopic, "on", on, "channel", rec.Channel)
}

// microclimate publishes temperature and humidity readings. Temperature and
// humidity are resolved independently and each failure is logged.
func (c *Classifier) microclimate(rec mtrf.Reception, out *Classification) {
	m := rec.Microclimate
	if m.BatteryLow {
		c.logWarn("sensor battery low", "channel", rec.Channel, "sensor_type", m.SensorType.String())
	}

	sensor := c.sensorFor(rec.Channel, device.KindTemperatureSensor, out)
	if sensor != nil && sensor.Bridged() {
		out.publish(sensor.Topic, formatTemperature(m.Temperature))
		temp := m.Temperature
		out.Observations = append(out.Observations, Observation{
			Channel: rec.Channel, Kind: sensor.Kind, Topic: sensor.Topic, Temperature: &temp, Time: c.now(),
		})
		c.logInfo("temperature reported", "topic", sensor.Topic, "temperature", m.Temperature)

		if c.automation && !sensor.Kind.MeasuresHumidity() {
			out.Publications = append(out.Publications, heatingRule(m.Temperature))
		}
	} else {
		out.note("no bridged temperature sensor on channel %d", rec.Channel)
		c.logError("no temperature sensor with this channel or topic is empty", "channel", rec.Channel)
	}

	if m.Humidity == nil {
		return
	}
	if sensor == nil || !sensor.Kind.MeasuresHumidity() || sensor.HumidityTopic == "" {
		out.note("no humidity topic for channel %d", rec.Channel)
		c.logError("no humidity sensor with this channel or humidity topic is empty", "channel", rec.Channel)
		return
	}

	humidity := *m.Humidity
	out.publish(sensor.HumidityTopic, formatHumidity(humidity))
	out.Observations = append(out.Observations, Observation{
		Channel: rec.Channel, Kind: sensor.Kind, Topic: sensor.HumidityTopic, Humidity: &humidity, Time: c.now(),
	})
	c.logInfo("humidity reported", "topic", sensor.HumidityTopic, "humidity", humidity)

	if c.automation {
		out.Publications = append(out.Publications, ventilationRule(humidity))
	}
}

// sensorFor resolves the sensor on ch and checks it is the expected variant.
// A temperature_humidity_sensor satisfies a temperature_sensor lookup.
func (c *Classifier) sensorFor(ch uint8, want device.Kind, out *Classification) *device.Device {
	sensor, ok := c.registry.SensorForChannel(ch)
	if !ok {
		return nil
	}

	matches := sensor.Kind == want
	if want == device.KindTemperatureSensor {
		matches = sensor.Kind.MeasuresTemperature()
	}
	if !matches {
		out.note("sensor on channel %d is %s, expected %s", ch, sensor.Kind, want)
		c.logError("sensor has unexpected kind",
			"channel", ch,
			"kind", string(sensor.Kind),
			"expected", string(want))
		return nil
	}
	return sensor
}

func (c *Classifier) observeState(out *Classification, d *device.Device, topic string, on bool) {
	state := on
	out.Observations = append(out.Observations, Observation{
		Channel: d.Channel, Kind: d.Kind, Topic: topic, On: &state, Time: c.now(),
	})
}
