package aqualogic

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// Framing constants. Every frame is DLE STX, a command/data field, a 2-byte
// checksum and DLE ETX. A DLE inside the data or checksum is followed by a
// NUL on the wire.
const (
	frameDLE = 0x10
	frameSTX = 0x02
	frameETX = 0x03

	maxFrameLen = 128
)

// FrameType is the two leading bytes of the command/data field.
type FrameType uint16

const (
	FrameKeepAlive         FrameType = 0x0101
	FrameLEDs              FrameType = 0x0102
	FrameDisplayUpdate     FrameType = 0x0103
	FrameLongDisplayUpdate FrameType = 0x040a
	FramePumpSpeedRequest  FrameType = 0x0c01
	FramePumpStatus        FrameType = 0x000c
	FrameLocalWiredKey     FrameType = 0x0002
	FrameRemoteWiredKey    FrameType = 0x0003
	FrameWirelessKey       FrameType = 0x0083
	FrameOnOffEvent        FrameType = 0x0005
)

func (t FrameType) String() string {
	return fmt.Sprintf("%04x", uint16(t))
}

// ErrChecksum is returned for frames whose checksum does not match.
var ErrChecksum = errors.New("frame checksum mismatch")

// Frame is a decoded frame with framing, stuffing and checksum removed.
type Frame struct {
	Type FrameType
	Data []byte
}

// FrameReader splits a byte stream into frames.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader creates a FrameReader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next blocks until a complete frame has been read. Checksum failures are
// returned as ErrChecksum so the caller can skip the frame and continue.
func (fr *FrameReader) Next() (Frame, error) {
	if err := fr.syncStart(); err != nil {
		return Frame{}, err
	}

	raw := make([]byte, 0, 32)
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}

		if b == frameDLE {
			next, err := fr.r.ReadByte()
			if err != nil {
				return Frame{}, err
			}
			switch next {
			case 0x00:
				raw = append(raw, frameDLE)
				continue
			case frameETX:
				return parseFrame(raw)
			case frameSTX:
				// Restart: the previous frame was truncated.
				log.Debug().Int("len", len(raw)).Msg("Truncated frame discarded")
				raw = raw[:0]
				continue
			default:
				raw = append(raw, b, next)
				continue
			}
		}

		raw = append(raw, b)
		if len(raw) > maxFrameLen {
			log.Debug().Msg("Frame too long, resynchronising")
			if err := fr.syncStart(); err != nil {
				return Frame{}, err
			}
			raw = raw[:0]
		}
	}
}

// syncStart consumes bytes until DLE STX.
func (fr *FrameReader) syncStart() error {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return err
		}
		for b == frameDLE {
			next, err := fr.r.ReadByte()
			if err != nil {
				return err
			}
			if next == frameSTX {
				return nil
			}
			b = next
		}
	}
}

func parseFrame(raw []byte) (Frame, error) {
	if len(raw) < 4 {
		return Frame{}, fmt.Errorf("frame too short: %d bytes", len(raw))
	}

	body := raw[:len(raw)-2]
	received := binary.BigEndian.Uint16(raw[len(raw)-2:])
	computed := checksum(body)
	if received != computed {
		return Frame{}, fmt.Errorf("%w: received %#04x computed %#04x", ErrChecksum, received, computed)
	}

	data := make([]byte, len(body)-2)
	copy(data, body[2:])
	return Frame{
		Type: FrameType(binary.BigEndian.Uint16(body[:2])),
		Data: data,
	}, nil
}

// checksum sums DLE, STX and every unstuffed data byte.
func checksum(body []byte) uint16 {
	sum := uint16(frameDLE + frameSTX)
	for _, b := range body {
		sum += uint16(b)
	}
	return sum
}

// EncodeFrame builds a complete, stuffed frame ready to write.
func EncodeFrame(t FrameType, data []byte) []byte {
	body := make([]byte, 0, len(data)+2)
	body = binary.BigEndian.AppendUint16(body, uint16(t))
	body = append(body, data...)

	sum := checksum(body)

	out := make([]byte, 0, len(body)*2+6)
	out = append(out, frameDLE, frameSTX)
	out = stuff(out, body)
	out = stuff(out, []byte{byte(sum >> 8), byte(sum)})
	out = append(out, frameDLE, frameETX)
	return out
}

// EncodeKey builds the key event frame for k. Keys above 0xffff only exist
// on the wireless remote protocol.
func EncodeKey(k uint32) []byte {
	if k > 0xffff {
		data := make([]byte, 0, 10)
		data = append(data, 0x01)
		data = binary.LittleEndian.AppendUint32(data, k)
		data = binary.LittleEndian.AppendUint32(data, k)
		data = append(data, 0x00)
		return EncodeFrame(FrameWirelessKey, data)
	}

	data := make([]byte, 0, 4)
	data = binary.LittleEndian.AppendUint16(data, uint16(k))
	data = binary.LittleEndian.AppendUint16(data, uint16(k))
	return EncodeFrame(FrameLocalWiredKey, data)
}

// stuff appends data to out, inserting a NUL after every DLE.
func stuff(out, data []byte) []byte {
	for _, b := range data {
		out = append(out, b)
		if b == frameDLE {
			out = append(out, 0x00)
		}
	}
	return out
}
