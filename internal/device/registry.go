package device

import (
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the Registry.
// This allows the registry to work with any logger implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Index names used in conflict log lines.
const (
	IndexTxChannel     = "tx_channel"
	IndexStatusChannel = "status_channel"
	IndexSensorChannel = "sensor_channel"
)

type channelIndex = map[uint8]*Device

// Registry is the immutable, channel-indexed view of the configured devices.
//
// Each lookup index is built on first use under its own sync.OnceValue and
// never changes afterwards, so all methods are safe for concurrent use.
// Within one index the first registration of a channel wins; later ones are
// logged as configuration conflicts and discarded.
type Registry struct {
	switches []*Device
	sensors  []*Device
	logger   Logger

	byTxChannel     func() channelIndex
	byStatusChannel func() channelIndex
	bySensorChannel func() channelIndex
	byTopic         func() map[string][]*Device

	conflicts atomic.Int64
}

// Stats summarises the registry for health reports.
type Stats struct {
	Switches  int   `json:"switches"`
	Sensors   int   `json:"sensors"`
	Conflicts int64 `json:"conflicts"`
}

// NewRegistry builds a registry from a device list in configuration order.
// It always succeeds; a nil logger discards conflict reports.
func NewRegistry(devices []Device, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}

	r := &Registry{logger: logger}

	// Copy so callers cannot mutate registry state through their slice.
	all := make([]Device, len(devices))
	copy(all, devices)
	for i := range all {
		d := &all[i]
		d.StatusReportChannels = append([]uint8(nil), d.StatusReportChannels...)
		switch {
		case d.IsSwitch():
			r.switches = append(r.switches, d)
		case d.IsSensor():
			r.sensors = append(r.sensors, d)
		default:
			logger.Error("ignoring device of unknown kind", "kind", string(d.Kind), "channel", d.Channel)
		}
	}

	r.byTxChannel = sync.OnceValue(func() channelIndex {
		idx := make(channelIndex, len(r.switches))
		for _, sw := range r.switches {
			r.register(idx, IndexTxChannel, sw.Channel, sw)
		}
		return idx
	})
	r.byStatusChannel = sync.OnceValue(func() channelIndex {
		idx := make(channelIndex)
		for _, sw := range r.switches {
			for _, ch := range sw.StatusReportChannels {
				r.register(idx, IndexStatusChannel, ch, sw)
			}
		}
		return idx
	})
	r.bySensorChannel = sync.OnceValue(func() channelIndex {
		idx := make(channelIndex, len(r.sensors))
		for _, s := range r.sensors {
			r.register(idx, IndexSensorChannel, s.Channel, s)
		}
		return idx
	})
	r.byTopic = sync.OnceValue(func() map[string][]*Device {
		idx := make(map[string][]*Device)
		for _, sw := range r.switches {
			if sw.Bridged() {
				idx[sw.Topic] = append(idx[sw.Topic], sw)
			}
		}
		return idx
	})

	return r
}

// register adds d under ch unless the channel is taken.
func (r *Registry) register(idx channelIndex, index string, ch uint8, d *Device) {
	if existing, ok := idx[ch]; ok {
		r.conflicts.Add(1)
		r.logger.Error("channel conflict, keeping first registration",
			"index", index,
			"channel", ch,
			"kept", existing.Name(),
			"discarded", d.Name(),
		)
		return
	}
	idx[ch] = d
}

// AllSwitches returns every switch in configuration order.
func (r *Registry) AllSwitches() []*Device {
	return append([]*Device(nil), r.switches...)
}

// AllSensors returns every sensor in configuration order.
func (r *Registry) AllSensors() []*Device {
	return append([]*Device(nil), r.sensors...)
}

// SwitchForTxChannel returns the switch commanded on ch.
func (r *Registry) SwitchForTxChannel(ch uint8) (*Device, bool) {
	d, ok := r.byTxChannel()[ch]
	return d, ok
}

// SwitchForStatusChannel returns the switch that reports its state on ch.
func (r *Registry) SwitchForStatusChannel(ch uint8) (*Device, bool) {
	d, ok := r.byStatusChannel()[ch]
	return d, ok
}

// SensorForChannel returns the sensor transmitting on ch, of any variant.
// Callers check Kind for the variant they expect.
func (r *Registry) SensorForChannel(ch uint8) (*Device, bool) {
	d, ok := r.bySensorChannel()[ch]
	return d, ok
}

// SwitchesForTopic returns every switch whose command topic is topic.
// Several switches may share one topic.
func (r *Registry) SwitchesForTopic(topic string) []*Device {
	return append([]*Device(nil), r.byTopic()[topic]...)
}

// CommandTopics returns the distinct switch topics in first-seen order.
func (r *Registry) CommandTopics() []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, sw := range r.switches {
		if !sw.Bridged() {
			continue
		}
		if _, ok := seen[sw.Topic]; ok {
			continue
		}
		seen[sw.Topic] = struct{}{}
		topics = append(topics, sw.Topic)
	}
	return topics
}

// Stats forces every index and reports sizes and conflicts found.
func (r *Registry) Stats() Stats {
	r.byTxChannel()
	r.byStatusChannel()
	r.bySensorChannel()
	return Stats{
		Switches:  len(r.switches),
		Sensors:   len(r.sensors),
		Conflicts: r.conflicts.Load(),
	}
}
