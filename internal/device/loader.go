package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// maxChannel is the highest radio channel the adapter addresses.
const maxChannel = 255

// deviceFile is the on-disk layout of the device list.
type deviceFile struct {
	Devices []record `yaml:"devices"`
}

// record mirrors Device with wide integer types so that out-of-range values
// are reported rather than silently truncated by the decoder.
type record struct {
	Kind                 string `yaml:"kind"`
	Channel              *int   `yaml:"channel"`
	Topic                string `yaml:"topic"`
	Description          string `yaml:"description"`
	StatusReportChannels []int  `yaml:"status_report_channels"`
	FullPowerValue       *int   `yaml:"full_power_value"`
	ZeroPowerValue       *int   `yaml:"zero_power_value"`
	StatusReportTopic    string `yaml:"status_report_topic"`
	HumidityTopic        string `yaml:"humidity_topic"`
}

// LoadDevices reads the device list at path.
//
// The loader validates shape only. Duplicate channels are accepted here and
// resolved by the Registry.
func LoadDevices(path string) ([]Device, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFile, err)
	}
	devices, err := ParseDevices(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return devices, nil
}

// ParseDevices decodes and validates a YAML device list.
func ParseDevices(r io.Reader) ([]Device, error) {
	var f deviceFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFile, err)
	}

	devices := make([]Device, 0, len(f.Devices))
	var errs []error
	for i, rec := range f.Devices {
		d, recErrs := rec.toDevice()
		for _, e := range recErrs {
			errs = append(errs, fmt.Errorf("devices[%d]: %w", i, e))
		}
		if len(recErrs) == 0 {
			devices = append(devices, d)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return devices, nil
}

func (r record) toDevice() (Device, []error) {
	var errs []error

	kind := Kind(r.Kind)
	if !kind.Valid() {
		return Device{}, []error{fmt.Errorf("%w %q (want one of %v)", ErrUnknownKind, r.Kind, AllKinds())}
	}

	d := Device{
		Kind:        kind,
		Topic:       r.Topic,
		Description: r.Description,
	}

	switch {
	case r.Channel == nil:
		errs = append(errs, fmt.Errorf("%w: channel is required", ErrInvalidDevice))
	case !inRange(*r.Channel):
		errs = append(errs, fmt.Errorf("%w: channel %d", ErrChannelOutOfRange, *r.Channel))
	default:
		d.Channel = uint8(*r.Channel) //nolint:gosec // range checked above
	}

	if kind == KindSwitch {
		for _, ch := range r.StatusReportChannels {
			if !inRange(ch) {
				errs = append(errs, fmt.Errorf("%w: status report channel %d", ErrChannelOutOfRange, ch))
				continue
			}
			d.StatusReportChannels = append(d.StatusReportChannels, uint8(ch)) //nolint:gosec // range checked above
		}
		d.FullPowerValue, errs = byteField("full_power_value", r.FullPowerValue, errs)
		d.ZeroPowerValue, errs = byteField("zero_power_value", r.ZeroPowerValue, errs)
		d.StatusReportTopic = r.StatusReportTopic
	} else {
		switchOnly := []struct {
			field string
			set   bool
		}{
			{"status_report_channels", len(r.StatusReportChannels) > 0},
			{"full_power_value", r.FullPowerValue != nil},
			{"zero_power_value", r.ZeroPowerValue != nil},
			{"status_report_topic", r.StatusReportTopic != ""},
		}
		for _, f := range switchOnly {
			if f.set {
				errs = append(errs, fmt.Errorf("%w: %s is only valid for %s", ErrInvalidDevice, f.field, KindSwitch))
			}
		}
	}

	if r.HumidityTopic != "" {
		if kind.MeasuresHumidity() {
			d.HumidityTopic = r.HumidityTopic
		} else {
			errs = append(errs, fmt.Errorf("%w: humidity_topic is only valid for %s", ErrInvalidDevice, KindTemperatureHumiditySensor))
		}
	}

	return d, errs
}

func byteField(name string, v *int, errs []error) (uint8, []error) {
	if v == nil {
		return 0, errs
	}
	if !inRange(*v) {
		return 0, append(errs, fmt.Errorf("%w: %s %d must be 0-255", ErrInvalidDevice, name, *v))
	}
	return uint8(*v), errs //nolint:gosec // range checked above
}

func inRange(v int) bool {
	return v >= 0 && v <= maxChannel
}
