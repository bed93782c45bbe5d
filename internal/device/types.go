package device

// Kind identifies the concrete device variant.
type Kind string

// Device kinds.
const (
	// KindSwitch is a radio-controlled relay or dimmer.
	KindSwitch Kind = "switch"

	// KindOnOffSensor is a binary presence or contact sensor.
	KindOnOffSensor Kind = "on_off_sensor"

	// KindTemperatureSensor reports temperature readings in °C.
	KindTemperatureSensor Kind = "temperature_sensor"

	// KindTemperatureHumiditySensor reports temperature and relative humidity.
	KindTemperatureHumiditySensor Kind = "temperature_humidity_sensor"
)

// AllKinds returns every supported kind in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindSwitch,
		KindOnOffSensor,
		KindTemperatureSensor,
		KindTemperatureHumiditySensor,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSwitch, KindOnOffSensor, KindTemperatureSensor, KindTemperatureHumiditySensor:
		return true
	}
	return false
}

// IsSensor reports whether k is one of the sensor variants.
func (k Kind) IsSensor() bool {
	return k.Valid() && k != KindSwitch
}

// MeasuresTemperature is true for both temperature sensor variants.
func (k Kind) MeasuresTemperature() bool {
	return k == KindTemperatureSensor || k == KindTemperatureHumiditySensor
}

// MeasuresHumidity is true only for the humidity-capable variant.
func (k Kind) MeasuresHumidity() bool {
	return k == KindTemperatureHumiditySensor
}

// Device is one configured radio device. Fields below the shared block are
// only meaningful for the variant named in their comment; the loader rejects
// them on other kinds.
//
// Devices handed out by the Registry are shared and must be treated as
// read-only.
type Device struct {
	Kind    Kind  `yaml:"kind"`
	Channel uint8 `yaml:"channel"`

	// Topic is the bus topic of the device. Empty means not bridged.
	Topic       string `yaml:"topic,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Switch only.
	StatusReportChannels []uint8 `yaml:"status_report_channels,omitempty"`
	FullPowerValue       uint8   `yaml:"full_power_value,omitempty"`
	ZeroPowerValue       uint8   `yaml:"zero_power_value,omitempty"`
	StatusReportTopic    string  `yaml:"status_report_topic,omitempty"`

	// Temperature and humidity sensor only.
	HumidityTopic string `yaml:"humidity_topic,omitempty"`
}

// IsSwitch reports whether d is a switch.
func (d *Device) IsSwitch() bool {
	return d.Kind == KindSwitch
}

// IsSensor reports whether d is any sensor variant.
func (d *Device) IsSensor() bool {
	return d.Kind.IsSensor()
}

// Bridged reports whether d has a bus topic.
func (d *Device) Bridged() bool {
	return d.Topic != ""
}

// Dimmable reports whether commands to this switch are preceded by a
// brightness step. Relays with both power values zero get plain on/off.
func (d *Device) Dimmable() bool {
	return d.IsSwitch() && (d.FullPowerValue != 0 || d.ZeroPowerValue != 0)
}

// Name returns a label for log lines.
func (d *Device) Name() string {
	if d.Description != "" {
		return d.Description
	}
	if d.Topic != "" {
		return d.Topic
	}
	return string(d.Kind)
}
