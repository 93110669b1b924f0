package signals

import (
	"context"
	"os"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/yanet-platform/kniagent/common/go/xcmd"
)

// DefaultBufferSize is the number of events that may be pending before new
// ones are dropped.
const DefaultBufferSize = 16

// Events returns the mapping of OS signals to control events.
func Events() map[os.Signal]Event {
	events := map[os.Signal]Event{
		syscall.SIGUSR1: EventStats,
		syscall.SIGUSR2: EventReset,
		syscall.SIGINT:  EventStop,
		syscall.SIGTERM: EventStop,
	}
	for _, sig := range platformStopSignals() {
		events[sig] = EventStop
	}

	return events
}

type options struct {
	Log        *zap.SugaredLogger
	BufferSize int
}

func newOptions() *options {
	return &options{
		Log:        zap.NewNop().Sugar(),
		BufferSize: DefaultBufferSize,
	}
}

// ChannelOption is a function that configures the Channel.
type ChannelOption func(*options)

// WithLog sets the logger for the Channel.
func WithLog(log *zap.SugaredLogger) ChannelOption {
	return func(o *options) {
		o.Log = log
	}
}

// WithBufferSize sets the capacity of the event queue.
func WithBufferSize(size int) ChannelOption {
	return func(o *options) {
		if size > 0 {
			o.BufferSize = size
		}
	}
}

// Channel translates OS signals into control events.
//
// Producers never block: when the queue is full the event is dropped and
// accounted in Dropped.
type Channel struct {
	events  chan Event
	dropped atomic.Uint64
	log     *zap.SugaredLogger
}

// NewChannel creates a new Channel.
func NewChannel(options ...ChannelOption) *Channel {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	return &Channel{
		events: make(chan Event, opts.BufferSize),
		log:    opts.Log,
	}
}

// Install starts relaying signals to the event queue until the context is
// canceled. Handlers are installed by the time Install returns.
func (m *Channel) Install(ctx context.Context) {
	mapping := Events()

	signals := make([]os.Signal, 0, len(mapping))
	for sig := range mapping {
		signals = append(signals, sig)
	}

	ch := xcmd.Notify(ctx, len(signals), signals...)
	m.log.Debugw("installed signal handlers", zap.Any("signals", signals))

	go func() {
		for sig := range ch {
			ev := mapping[sig]
			m.log.Debugw("caught signal", zap.Stringer("signal", sig), zap.Stringer("event", ev))
			m.Inject(ev)
		}
	}()
}

// Inject enqueues an event without blocking. Returns false if the event
// was dropped.
func (m *Channel) Inject(ev Event) bool {
	select {
	case m.events <- ev:
		return true
	default:
		m.dropped.Add(1)
		m.log.Warnw("event queue is full, dropping event", zap.Stringer("event", ev))
		return false
	}
}

// Events returns the receiving side of the event queue.
func (m *Channel) Events() <-chan Event {
	return m.events
}

// Dropped returns the number of events lost due to a full queue.
func (m *Channel) Dropped() uint64 {
	return m.dropped.Load()
}

// ShutdownFlag is a monotonic stop request counter.
//
// Once requested it never goes back to zero.
type ShutdownFlag struct {
	value atomic.Int32
}

// Request increments the flag.
func (m *ShutdownFlag) Request() {
	m.value.Add(1)
}

// Requested reports whether a stop was requested at least once.
func (m *ShutdownFlag) Requested() bool {
	return m.value.Load() != 0
}

// Value returns the number of stop requests seen so far.
func (m *ShutdownFlag) Value() int32 {
	return m.value.Load()
}
