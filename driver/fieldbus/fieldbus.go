// Package fieldbus implements the cabinet-facing bus.Adapter: discrete
// detector inputs are read by polling periph.io GPIO pins exactly as
// input.Open does for the Waveshare HAT's joystick, and the load-switch
// output vector is framed and written to a serial I/O board the way
// driver/mjolnir opens and talks to its engraver over
// github.com/tarm/serial.
package fieldbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"signalhead.dev/bus"
	"signalhead.dev/loadswitch"
)

// Config describes the cabinet hardware an Adapter should bind to.
type Config struct {
	// Device is the serial port the load-switch output board is
	// attached to, e.g. "/dev/ttyUSB0".
	Device string
	// Baud is the serial link's bit rate. Zero selects DefaultBaud.
	Baud int
	// InputPins names, in pin-index order, the periph.io GPIO pin each
	// discrete input (detector or other field input) is wired to.
	InputPins []string
}

// DefaultBaud matches the rate driver/mjolnir uses for its own
// serial-attached board.
const DefaultBaud = 115200

// Adapter is a bus.Adapter backed by real cabinet hardware: a serial
// link for load-switch output and GPIO pins for discrete input.
type Adapter struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
	pins []gpio.PinIO
	prev []bool
}

// Open resolves cfg's GPIO pins, initializes the periph.io host drivers,
// and opens the serial link to the output board.
func Open(cfg Config) (*Adapter, error) {
	if cfg.Device == "" {
		return nil, errors.New("fieldbus: no serial device configured")
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("fieldbus: host init: %w", err)
	}

	pins := make([]gpio.PinIO, 0, len(cfg.InputPins))
	for _, name := range cfg.InputPins {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("fieldbus: unknown gpio pin %q", name)
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("fieldbus: configure pin %q: %w", name, err)
		}
		pins = append(pins, p)
	}

	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	conn, err := serial.OpenPort(&serial.Config{Name: cfg.Device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("fieldbus: open %s: %w", cfg.Device, err)
	}

	return newAdapter(conn, pins), nil
}

func newAdapter(conn io.ReadWriteCloser, pins []gpio.PinIO) *Adapter {
	return &Adapter{
		conn: conn,
		pins: pins,
		prev: make([]bool, len(pins)),
	}
}

// Close releases the serial link. GPIO pins are left configured as-is;
// periph.io has no per-pin release.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// Poll reads the current level of every configured input pin (active
// low, per cabinet convention: PullUp with a grounding detector contact)
// and reports the edges since the previous Poll.
func (a *Adapter) Poll(ctx context.Context) (bus.InboundFrame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	levels := make([]bool, len(a.pins))
	var edges []bus.Edge
	for i, p := range a.pins {
		asserted := p.Read() == gpio.Low
		levels[i] = asserted
		if asserted != a.prev[i] {
			edges = append(edges, bus.Edge{Pin: i, Asserted: asserted})
		}
	}
	a.prev = levels
	return bus.InboundFrame{Levels: levels, Edges: edges}, nil
}

// Send frames frame's load-switch vector and writes it to the serial
// link. The frame is a 2-byte big-endian payload length, the payload
// itself (one byte per switch, bit 0/1/2 = A/B/C), then a 4-byte
// big-endian CRC-32 (IEEE) of the payload — the same checksum
// construction bc/fountain uses for its own UR payloads, reused here
// rather than pulling in a dedicated framing library.
func (a *Adapter) Send(ctx context.Context, frame bus.OutboundFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	wire := encodeFrame(frame.Switches)
	_, err := a.conn.Write(wire)
	if err != nil {
		return fmt.Errorf("fieldbus: send: %w", err)
	}
	return nil
}

func encodeFrame(switches []loadswitch.Output) []byte {
	payload := make([]byte, len(switches))
	for i, o := range switches {
		var b byte
		if o.A {
			b |= 1 << 0
		}
		if o.B {
			b |= 1 << 1
		}
		if o.C {
			b |= 1 << 2
		}
		payload[i] = b
	}

	checksum := crc32.ChecksumIEEE(payload)
	wire := make([]byte, 2+len(payload)+4)
	binary.BigEndian.PutUint16(wire, uint16(len(payload)))
	copy(wire[2:], payload)
	binary.BigEndian.PutUint32(wire[2+len(payload):], checksum)
	return wire
}

// decodeFrame is the inverse of encodeFrame, used by tests and by any
// loopback wiring that reads frames back off the serial link (e.g. a
// cabinet simulator acting as the far end).
func decodeFrame(wire []byte) ([]loadswitch.Output, error) {
	if len(wire) < 6 {
		return nil, errors.New("fieldbus: frame too short")
	}
	n := int(binary.BigEndian.Uint16(wire))
	if len(wire) != 2+n+4 {
		return nil, fmt.Errorf("fieldbus: frame length mismatch: header says %d, have %d bytes", n, len(wire)-6)
	}
	payload := wire[2 : 2+n]
	want := binary.BigEndian.Uint32(wire[2+n:])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, fmt.Errorf("fieldbus: checksum mismatch: got %x, want %x", got, want)
	}

	out := make([]loadswitch.Output, n)
	for i, b := range payload {
		out[i] = loadswitch.Output{
			A: b&(1<<0) != 0,
			B: b&(1<<1) != 0,
			C: b&(1<<2) != 0,
		}
	}
	return out, nil
}
