package xcubus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Frame capture for record/replay of simulated traffic. A capture is
// a stream of self-delimiting CBOR records, one per frame, so a log
// can be appended to and read back without an index.

type captureRecord struct {
	ID        uint32  `cbor:"id"`
	DLC       uint8   `cbor:"dlc"`
	FD        bool    `cbor:"fd,omitempty"`
	Channel   uint8   `cbor:"channel,omitempty"`
	Timestamp float64 `cbor:"ts"`
	Data      []byte  `cbor:"data"`
}

// CaptureWriter appends frames to a CBOR capture stream.
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a writer appending to w.
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// Write records one frame. The frame is validated first so a capture
// never contains frames the codec would reject on replay.
func (c *CaptureWriter) Write(f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return c.enc.Encode(captureRecord{
		ID:        f.ID,
		DLC:       f.DLC,
		FD:        f.FD,
		Channel:   f.Channel,
		Timestamp: f.Timestamp,
		Data:      f.Data,
	})
}

// ReadCapture decodes all frames from a capture stream.
func ReadCapture(r io.Reader) ([]Frame, error) {
	dec := cbor.NewDecoder(r)
	var frames []Frame
	for {
		var rec captureRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, fmt.Errorf("xcubus: capture record %d: %w", len(frames), err)
		}
		f := Frame{
			ID:        rec.ID,
			DLC:       rec.DLC,
			FD:        rec.FD,
			Channel:   rec.Channel,
			Timestamp: rec.Timestamp,
			Data:      rec.Data,
		}
		if f.Data == nil {
			f.Data = []byte{}
		}
		if err := f.Validate(); err != nil {
			return frames, fmt.Errorf("xcubus: capture record %d: %w", len(frames), err)
		}
		frames = append(frames, f)
	}
}

// Replay sends captured frames through bus in order. The recorded
// relative timestamps are preserved, so receivers see the original
// timing resolved against the bus playback epoch. Replay stops at the
// first send failure.
func Replay(bus Bus, frames []Frame, timeout time.Duration) error {
	for i, f := range frames {
		if err := bus.Send(f, timeout); err != nil {
			return fmt.Errorf("xcubus: replay frame %d: %w", i, err)
		}
	}
	return nil
}
