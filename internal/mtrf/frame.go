package mtrf

import (
	"encoding/binary"
	"fmt"
)

// Frame layout constants.
const (
	FrameSize = 17

	requestStart  = 0xAB
	requestStop   = 0xAC
	responseStart = 0xAD
	responseStop  = 0xAE

	crcIndex = 15
)

// Request is a frame sent to the adapter.
type Request struct {
	Mode     Mode
	Action   Action
	Channel  uint8
	Command  Command
	Format   uint8
	Data     [4]byte
	DeviceID uint32
}

// Response is a frame received from the adapter.
type Response struct {
	Mode    Mode
	Result  Result
	Toggle  uint8
	Channel uint8
	Command Command
	Format  uint8
	Data    [4]byte
	// DeviceID is the nooLite-F address, zero for nooLite devices.
	DeviceID uint32
}

// Encode serialises a request into its 17-byte wire form.
func Encode(req Request) [FrameSize]byte {
	var f [FrameSize]byte
	f[0] = requestStart
	f[1] = byte(req.Mode)
	f[2] = byte(req.Action)
	f[3] = 0 // RES
	f[4] = req.Channel
	f[5] = byte(req.Command)
	f[6] = req.Format
	copy(f[7:11], req.Data[:])
	binary.BigEndian.PutUint32(f[11:15], req.DeviceID)
	f[crcIndex] = checksum(f[:crcIndex])
	f[16] = requestStop
	return f
}

// Decode parses a 17-byte response frame.
func Decode(frame []byte) (Response, error) {
	if len(frame) != FrameSize {
		return Response{}, fmt.Errorf("%w: got %d", ErrShortFrame, len(frame))
	}
	if frame[0] != responseStart || frame[FrameSize-1] != responseStop {
		return Response{}, fmt.Errorf("%w: %#02x..%#02x", ErrBadFraming, frame[0], frame[FrameSize-1])
	}
	if want := checksum(frame[:crcIndex]); frame[crcIndex] != want {
		return Response{}, fmt.Errorf("%w: got %#02x, want %#02x", ErrBadChecksum, frame[crcIndex], want)
	}

	resp := Response{
		Mode:     Mode(frame[1]),
		Result:   Result(frame[2]),
		Toggle:   frame[3],
		Channel:  frame[4],
		Command:  Command(frame[5]),
		Format:   frame[6],
		DeviceID: binary.BigEndian.Uint32(frame[11:15]),
	}
	copy(resp.Data[:], frame[7:11])
	return resp, nil
}

// checksum is the low byte of the sum of b.
func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
