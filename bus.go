package xcubus

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"
)

// Bus is a simulated CAN bus endpoint. Implementations are safe for
// concurrent use by multiple goroutines.
type Bus interface {
	// Send encodes and transmits a frame. A positive timeout bounds
	// the underlying transmission; zero or negative means no bound.
	Send(f Frame, timeout time.Duration) error

	// Receive dequeues the next delivered frame. The boolean is false
	// when the timeout elapses with no frame available. A negative
	// timeout blocks indefinitely; zero polls.
	Receive(timeout time.Duration) (Frame, bool, error)

	// Close detaches the endpoint. Further operations fail with
	// ErrClosed, as does a second Close.
	Close() error
}

var (
	// ErrClosed indicates an operation on a closed bus endpoint.
	ErrClosed = errors.New("xcubus: operation on closed bus")

	// ErrDelivery indicates the frame could not be transmitted to the
	// listener endpoint. Not retried.
	ErrDelivery = errors.New("xcubus: could not deliver frame")
)

// DefaultAddr is the fixed listener endpoint frames are sent to.
const DefaultAddr = "127.0.0.1:4531"

// InterfaceName tags configuration descriptors produced by this
// transport.
const InterfaceName = "xcubus"

// Config holds the construction parameters of a UDP bus endpoint.
// The zero value opens an endpoint on the default bus with an
// unbounded delivery queue, sending to DefaultAddr.
type Config struct {
	// Channel names the simulated bus this endpoint attaches to.
	// nil selects the default bus.
	Channel ChannelKey

	// ReceiveOwnMessages asks the delivery mechanism to loop sent
	// frames back to this endpoint. The endpoint itself never loops
	// back; the relay feeding the registry decides.
	ReceiveOwnMessages bool

	// RxQueueSize bounds the delivery queue. 0 means unbounded.
	RxQueueSize int

	// Addr overrides the listener endpoint. Empty means DefaultAddr.
	Addr string

	// Registry overrides the channel registry. nil means
	// DefaultRegistry().
	Registry *Registry
}

// UDPBus is a bus endpoint that transmits frames as single UDP
// datagrams to a fixed listener and receives frames through a
// registry-attached delivery queue.
type UDPBus struct {
	cfg   Config
	reg   *Registry
	queue *Queue
	conn  *net.UDPConn

	mu       sync.Mutex
	closed   bool
	epoch    time.Time
	epochSet bool
}

// Open creates a bus endpoint, attaches its delivery queue to the
// registry, and connects the outbound UDP socket. The endpoint is
// usable until Close.
func Open(cfg Config) (*UDPBus, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("xcubus: resolve %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("xcubus: dial %q: %w", addr, err)
	}

	reg := cfg.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	b := &UDPBus{
		cfg:   cfg,
		reg:   reg,
		queue: NewQueue(cfg.RxQueueSize),
		conn:  conn,
	}
	reg.Register(cfg.Channel, b.queue)
	return b, nil
}

// Queue returns the endpoint's delivery queue. The relay or any other
// delivery mechanism writes into it; only this endpoint reads it.
func (b *UDPBus) Queue() *Queue {
	return b.queue
}

// Channel returns the channel key this endpoint is attached under.
func (b *UDPBus) Channel() ChannelKey {
	return b.cfg.Channel
}

// Send encodes f against the playback epoch and transmits it as one
// datagram. The epoch is set to the wall clock on the first Send. A
// positive timeout is applied as the socket write deadline.
// Transmission failure surfaces as ErrDelivery; nothing is retried.
func (b *UDPBus) Send(f Frame, timeout time.Duration) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if !b.epochSet {
		b.epoch = time.Now()
		b.epochSet = true
	}
	epoch := b.epoch
	b.mu.Unlock()

	wire, err := EncodeFrame(f, epoch)
	if err != nil {
		return err
	}
	if timeout > 0 {
		if err := b.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("%w: %v", ErrDelivery, err)
		}
	} else {
		_ = b.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := b.conn.Write(wire); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// Receive blocks until a frame is delivered to this endpoint's queue
// or the timeout elapses. A close does not interrupt a wait already
// in progress; the wait runs to its timeout.
func (b *UDPBus) Receive(timeout time.Duration) (Frame, bool, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Frame{}, false, ErrClosed
	}
	b.mu.Unlock()

	f, ok, err := b.queue.Get(timeout)
	if errors.Is(err, ErrQueueClosed) {
		return Frame{}, false, ErrClosed
	}
	return f, ok, err
}

// Close deregisters the delivery queue, removing the channel entry if
// this was its last endpoint, and closes the socket. Closing twice
// fails with ErrClosed.
func (b *UDPBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	b.mu.Unlock()

	err := b.reg.Deregister(b.cfg.Channel, b.queue)
	if cerr := b.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// BusConfig describes one usable bus configuration, as consumed by
// autodetection callers.
type BusConfig struct {
	Interface string
	Channel   ChannelKey
}

// DetectAvailableConfigs enumerates the active channels of reg (nil
// means DefaultRegistry) plus one freshly generated unused channel
// key. The unused key is best-effort: nothing reserves it.
func DetectAvailableConfigs(reg *Registry) []BusConfig {
	if reg == nil {
		reg = DefaultRegistry()
	}
	keys := reg.Keys()
	keys = append(keys, reg.PickUnusedKey(func() ChannelKey {
		return fmt.Sprintf("channel-%d", rand.Intn(10000))
	}))

	configs := make([]BusConfig, len(keys))
	for i, k := range keys {
		configs[i] = BusConfig{Interface: InterfaceName, Channel: k}
	}
	return configs
}
