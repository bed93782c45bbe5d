package mtrf

import "fmt"

// SensorType identifies the microclimate sensor model.
type SensorType uint8

// Known sensor types.
const (
	SensorPT112 SensorType = 1 // temperature only
	SensorPT111 SensorType = 2 // temperature + humidity
)

func (s SensorType) String() string {
	switch s {
	case SensorPT112:
		return "PT112"
	case SensorPT111:
		return "PT111"
	default:
		return fmt.Sprintf("SensorType(%d)", uint8(s))
	}
}

// Microclimate is the payload of a MicroclimateData reception.
type Microclimate struct {
	// Temperature in °C with 0.1 resolution.
	Temperature float64
	// Humidity in percent, nil unless the sensor measures it.
	Humidity   *int
	SensorType SensorType
	BatteryLow bool
}

// Reception is one record from the adapter's reception stream.
type Reception struct {
	Mode     Mode
	Command  Command
	Result   Result
	Channel  uint8
	Format   uint8
	Data     [4]byte
	DeviceID uint32
	// Microclimate is set for MicroclimateData receptions.
	Microclimate *Microclimate
}

// Data3 returns the state discriminator of a SendState answer (third data byte).
func (r Reception) Data3() uint8 {
	return r.Data[2]
}

func (r Reception) String() string {
	return fmt.Sprintf("%s/%s/%s ch=%d", r.Mode, r.Command, r.Result, r.Channel)
}

// NewReception converts a decoded response into a reception record,
// attaching the microclimate payload when the command carries one.
func NewReception(resp Response) Reception {
	rec := Reception{
		Mode:     resp.Mode,
		Command:  resp.Command,
		Result:   resp.Result,
		Channel:  resp.Channel,
		Format:   resp.Format,
		Data:     resp.Data,
		DeviceID: resp.DeviceID,
	}
	if resp.Command == CommandMicroclimateData {
		mc := ParseMicroclimate(resp.Data)
		rec.Microclimate = &mc
	}
	return rec
}

// ParseMicroclimate decodes the microclimate data bytes.
//
// D0 and the low nibble of D1 form a 12-bit two's-complement temperature
// in tenths of a degree. Bits 4-6 of D1 are the sensor type and bit 7 is the
// battery-low flag. D2 is relative humidity for PT111 sensors.
func ParseMicroclimate(data [4]byte) Microclimate {
	raw := int(data[1]&0x0F)<<8 | int(data[0])
	if raw >= 0x800 {
		raw -= 0x1000
	}

	mc := Microclimate{
		Temperature: float64(raw) / 10,
		SensorType:  SensorType((data[1] >> 4) & 0x07),
		BatteryLow:  data[1]>>7 == 1,
	}
	if mc.SensorType == SensorPT111 {
		h := int(data[2])
		mc.Humidity = &h
	}
	return mc
}
