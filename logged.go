package xcubus

import (
	"context"
	"log/slog"
	"time"
)

// LoggedBus is a Bus decorator that logs Send/Receive operations using a
// slog.Logger.

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone LogOption = 0
	LogRead LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedBus wraps the given Bus and logs selected operations at the given
// level.
func NewLoggedBus(inner Bus, logger *slog.Logger, level slog.Level, opts LogOption) Bus {
	return &loggedBus{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
	}
}

// NewLoggedBusWithFilter wraps the given Bus and logs selected operations but
// only for frames that satisfy the provided filter. If filter is nil, all
// frames are considered for logging (same as NewLoggedBus behavior).
func NewLoggedBusWithFilter(inner Bus, logger *slog.Logger, level slog.Level, opts LogOption, filter FrameFilter) Bus {
	return &loggedBus{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

type loggedBus struct {
	inner  Bus
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
	filter FrameFilter
}

// Send logs the frame and the result when write logging is enabled.
func (l *loggedBus) Send(frame Frame, timeout time.Duration) error {
	if l.opts&LogWrite != 0 && (l.filter == nil || l.filter(frame)) {
		l.logger.Log(context.Background(), l.level, "xcubus send",
			"id", frame.ID,
			"fd", frame.FD,
			"channel", frame.Channel,
			"len", len(frame.Data),
			"data", frame.Data,
			"string", frame.String(),
		)
	}
	err := l.inner.Send(frame, timeout)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Log(context.Background(), slog.LevelError, "xcubus send error",
			"id", frame.ID,
			"error", err,
		)
	}
	return err
}

// Receive logs the received frame or error when read logging is enabled.
func (l *loggedBus) Receive(timeout time.Duration) (Frame, bool, error) {
	f, ok, err := l.inner.Receive(timeout)
	if l.opts&LogRead != 0 {
		switch {
		case err != nil:
			l.logger.Log(context.Background(), slog.LevelError, "xcubus receive error",
				"error", err,
			)
		case ok && (l.filter == nil || l.filter(f)):
			l.logger.Log(context.Background(), l.level, "xcubus receive",
				"id", f.ID,
				"fd", f.FD,
				"channel", f.Channel,
				"len", len(f.Data),
				"data", f.Data,
				"string", f.String(),
			)
		}
	}
	return f, ok, err
}

// Close forwards to the inner Bus without logging.
func (l *loggedBus) Close() error {
	return l.inner.Close()
}
