package xcubus

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// RelayConfig holds the construction parameters of a Relay.
type RelayConfig struct {
	// ListenAddr is the UDP address to bind. Empty means DefaultAddr.
	ListenAddr string

	// Channel is the registry channel decoded frames are dispatched
	// to. nil selects the default bus.
	Channel ChannelKey

	// Registry overrides the channel registry. nil means
	// DefaultRegistry().
	Registry *Registry

	// Logger receives structured relay events. nil means
	// slog.Default().
	Logger *slog.Logger
}

// Relay is the delivery mechanism closing the simulation loop: it
// listens for wire frames on a UDP socket, decodes them, and
// dispatches them to every delivery queue attached to its channel.
//
// Frame timestamps delivered by the relay are relative to the relay's
// start time.
type Relay struct {
	conn   *net.UDPConn
	reg    *Registry
	key    ChannelKey
	epoch  time.Time
	logger *slog.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewRelay binds the listen address and starts the background reader.
func NewRelay(cfg RelayConfig) (*Relay, error) {
	addr := cfg.ListenAddr
	if addr == "" {
		addr = DefaultAddr
	}
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("xcubus: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("xcubus: listen %q: %w", addr, err)
	}

	reg := cfg.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		conn:   conn,
		reg:    reg,
		key:    cfg.Channel,
		epoch:  time.Now(),
		logger: logger,
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// Addr returns the bound listen address, useful when the config asked
// for an ephemeral port.
func (r *Relay) Addr() string {
	return r.conn.LocalAddr().String()
}

func (r *Relay) run() {
	defer r.wg.Done()
	buf := make([]byte, wireHeaderLen+MaxDataLen)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
			default:
				r.logger.Error("xcubus relay read", "error", err)
			}
			return
		}
		f, err := DecodeFrame(buf[:n], r.epoch)
		if err != nil {
			r.logger.Warn("xcubus relay dropping datagram",
				"size", n,
				"error", err,
			)
			continue
		}
		delivered := r.reg.Dispatch(r.key, f)
		r.logger.Debug("xcubus relay dispatch",
			"id", f.ID,
			"len", len(f.Data),
			"channel", f.Channel,
			"delivered", delivered,
		)
	}
}

// Close stops the reader and releases the socket. Safe to call more
// than once.
func (r *Relay) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	err := r.conn.Close()
	r.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
