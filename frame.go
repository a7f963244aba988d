package xcubus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Frame represents one simulated CAN message.
//
// Timestamp is in seconds relative to the playback epoch of the bus
// that transmits the frame; the codec resolves it to absolute wall
// clock milliseconds on the wire.
type Frame struct {
	ID        uint32  // arbitration identifier
	DLC       uint8   // length code, 0..15, indexes the FD length table
	FD        bool    // flexible data-rate frame
	Channel   uint8   // sub-channel carried inside the wire frame
	Timestamp float64 // seconds relative to the playback epoch
	Data      []byte  // payload, len(Data) == dlcToLen[DLC]
}

// Wire layout: 15-byte header followed by the raw payload.
//
//	0      marker, always 0x00
//	1..2   frame count, little-endian, always 1
//	3..10  absolute timestamp, milliseconds, little-endian uint64
//	11..12 arbitration identifier, little-endian uint16
//	12     bit 0x10 set for FD frames (shared with ID bit 12, see below)
//	13     channel
//	14     payload length in bytes (not the length code)
//	15..   payload
//
// The identifier field is a known defect inherited from the protocol:
// only the low 16 bits of the ID travel, and bit 0x10 of byte 12 is
// shared between ID bit 12 and the FD flag. Identifiers with bit 12
// set alias to FD on the wire; the decoder always masks the flag out
// of the ID. Kept as-is for compatibility with existing listeners.
const (
	wireHeaderLen = 15

	fdFlag = 0x10
)

var (
	ErrPayloadLength    = errors.New("xcubus: payload length does not match length code")
	ErrTruncatedFrame   = errors.New("xcubus: wire frame length does not match declared length")
	ErrTimestampRange   = errors.New("xcubus: timestamp not representable in milliseconds")
	errFrameCountMarker = errors.New("xcubus: unexpected frame count marker")
)

// Validate returns an error if the frame violates the encoding
// contract: DLC out of range or payload size disagreeing with it.
func (f Frame) Validate() error {
	n, err := LengthToBytes(f.DLC)
	if err != nil {
		return err
	}
	if len(f.Data) != n {
		return ErrPayloadLength
	}
	return nil
}

// MustFrame constructs a Frame and panics if the payload length has no
// length code. Convenience for tests and examples.
func MustFrame(id uint32, data []byte) Frame {
	dlc, err := DLCForLength(len(data))
	if err != nil {
		panic(err)
	}
	f := Frame{ID: id, DLC: dlc, Data: append([]byte(nil), data...)}
	if err := f.Validate(); err != nil {
		panic(err)
	}
	return f
}

// String renders the frame as "ID [len] XX XX .." with an FD suffix.
func (f Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%X [%d]", f.ID, len(f.Data))
	for _, d := range f.Data {
		fmt.Fprintf(&b, " %02X", d)
	}
	if f.FD {
		b.WriteString(" FD")
	}
	return b.String()
}

// EncodeFrame encodes f into the wire layout, resolving its relative
// timestamp against epoch. Encoding is atomic: any constraint
// violation fails wholesale and no partial frame is produced.
func EncodeFrame(f Frame, epoch time.Time) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	millis := math.Round(float64(epoch.UnixMilli()) + f.Timestamp*1000)
	if millis < 0 || millis >= math.MaxUint64 {
		return nil, ErrTimestampRange
	}

	b := make([]byte, wireHeaderLen+len(f.Data))
	b[0] = 0x00
	binary.LittleEndian.PutUint16(b[1:3], 1)
	binary.LittleEndian.PutUint64(b[3:11], uint64(millis))
	binary.LittleEndian.PutUint16(b[11:13], uint16(f.ID))
	if f.FD {
		b[12] |= fdFlag
	}
	b[13] = f.Channel
	b[14] = uint8(len(f.Data))
	copy(b[wireHeaderLen:], f.Data)
	return b, nil
}

// DecodeFrame decodes a wire frame, resolving the absolute wire
// timestamp back to seconds relative to epoch. The payload length is
// taken from the explicit length byte; the total datagram length must
// equal declared length + 15 or decoding fails with ErrTruncatedFrame.
func DecodeFrame(b []byte, epoch time.Time) (Frame, error) {
	if len(b) < wireHeaderLen {
		return Frame{}, ErrTruncatedFrame
	}
	declared := int(b[14])
	if len(b) != wireHeaderLen+declared {
		return Frame{}, ErrTruncatedFrame
	}
	if binary.LittleEndian.Uint16(b[1:3]) != 1 {
		return Frame{}, errFrameCountMarker
	}
	dlc, err := DLCForLength(declared)
	if err != nil {
		return Frame{}, err
	}

	millis := binary.LittleEndian.Uint64(b[3:11])
	f := Frame{
		ID:        uint32(b[11]) | uint32(b[12]&^fdFlag)<<8,
		DLC:       dlc,
		FD:        b[12]&fdFlag != 0,
		Channel:   b[13],
		Timestamp: float64(millis)/1000 - float64(epoch.UnixMilli())/1000,
		Data:      append([]byte(nil), b[wireHeaderLen:]...),
	}
	return f, nil
}
