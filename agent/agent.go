package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanet-platform/kniagent/agent/internal/eal"
	"github.com/yanet-platform/kniagent/agent/internal/launcher"
	"github.com/yanet-platform/kniagent/agent/internal/mempool"
	"github.com/yanet-platform/kniagent/agent/internal/signals"
	"github.com/yanet-platform/kniagent/agent/internal/stats"
	"github.com/yanet-platform/kniagent/agent/internal/topology"
)

type options struct {
	Log            *zap.SugaredLogger
	Output         io.Writer
	SignalHandlers bool
}

func newOptions() *options {
	return &options{
		Log:            zap.NewNop().Sugar(),
		Output:         os.Stdout,
		SignalHandlers: true,
	}
}

// AgentOption is a function that configures the Agent.
type AgentOption func(*options)

// WithLog sets the logger for the Agent.
func WithLog(log *zap.SugaredLogger) AgentOption {
	return func(o *options) {
		o.Log = log
	}
}

// WithOutput sets the writer the statistics table is printed to.
func WithOutput(w io.Writer) AgentOption {
	return func(o *options) {
		o.Output = w
	}
}

// WithSignalHandlers enables or disables OS signal handling. Without it
// events can only be injected.
func WithSignalHandlers(enable bool) AgentOption {
	return func(o *options) {
		o.SignalHandlers = enable
	}
}

// Agent is the KNI control plane process context.
type Agent struct {
	cfg      *Config
	table    *topology.Table
	stats    *stats.Registry
	shutdown signals.ShutdownFlag
	runtime  *eal.Runtime
	launcher *launcher.Launcher
	events   *signals.Channel
	pool     atomic.Pointer[mempool.Pool]

	output         io.Writer
	signalHandlers bool
	log            *zap.SugaredLogger
}

// NewAgent creates a new agent over the port topology and the runtime
// environment. The table is frozen from now on.
func NewAgent(cfg *Config, table *topology.Table, runtime *eal.Runtime, options ...AgentOption) (*Agent, error) {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	table.Freeze()

	return &Agent{
		cfg:      cfg,
		table:    table,
		stats:    stats.NewRegistry(table.Limits().MaxPorts),
		runtime:  runtime,
		launcher: launcher.NewLauncher(runtime, launcher.WithLog(opts.Log)),
		events: signals.NewChannel(
			signals.WithLog(opts.Log),
			signals.WithBufferSize(cfg.EventBuffer),
		),
		output:         opts.Output,
		signalHandlers: opts.SignalHandlers,
		log:            opts.Log,
	}, nil
}

// Table returns the frozen port topology.
func (m *Agent) Table() *topology.Table {
	return m.table
}

// Stats returns per-port traffic counters.
func (m *Agent) Stats() *stats.Registry {
	return m.stats
}

// Shutdown returns the stop request flag.
func (m *Agent) Shutdown() *signals.ShutdownFlag {
	return &m.shutdown
}

// Pool returns the packet buffer pool, nil until Run allocates it.
func (m *Agent) Pool() *mempool.Pool {
	return m.pool.Load()
}

// Inject delivers a control event as if it was raised by a signal.
func (m *Agent) Inject(ev signals.Event) bool {
	return m.events.Inject(ev)
}

// Run launches workers, allocates the packet buffer pool and serves
// control events until a stop is requested or the context is canceled.
func (m *Agent) Run(ctx context.Context) error {
	m.log.Info("running KNI agent")
	defer m.log.Info("stopped KNI agent")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if m.signalHandlers {
		m.events.Install(ctx)
	}

	unpin := m.runtime.PinMainThread()
	defer unpin()

	if err := m.launcher.Launch(m.hello, launcher.CallMain); err != nil {
		return fmt.Errorf("failed to launch workers: %w", err)
	}
	m.launcher.Wait()

	pool, err := mempool.New(m.cfg.Mempool)
	if err != nil {
		return fmt.Errorf("failed to create packet buffer pool: %w", err)
	}
	m.pool.Store(pool)

	m.log.Infow("created packet buffer pool",
		zap.String("name", pool.Name()),
		zap.Uint32("count", pool.Count()),
		zap.Uint32("cache_size", pool.CacheSize()),
		zap.Stringer("element_size", pool.ElementSize()),
		zap.Stringer("total_size", pool.TotalSize()),
	)

	wg, ctx := errgroup.WithContext(ctx)

	if m.cfg.MetricsAddr != "" {
		listener, err := net.Listen("tcp", m.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics listener: %w", err)
		}

		wg.Go(func() error {
			return m.serveMetrics(ctx, listener)
		})
	}
	wg.Go(func() error {
		defer cancel()
		return m.loop(ctx)
	})

	return wg.Wait()
}

// hello announces the duties of the core it runs on.
func (m *Agent) hello(core uint32) int {
	roles := m.table.Roles(core)
	if len(roles) == 0 {
		m.log.Infow("hello from core, no ports assigned", zap.Uint32("core", core))
		return 0
	}

	m.log.Infow("hello from core", zap.Uint32("core", core), zap.Stringers("roles", roles))
	return 0
}

func (m *Agent) loop(ctx context.Context) error {
	poll := &backoff.ExponentialBackOff{
		InitialInterval:     m.cfg.PollInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         m.cfg.PollMaxInterval,
	}
	poll.Reset()

	for !m.shutdown.Requested() {
		timer := time.NewTimer(min(poll.NextBackOff(), m.cfg.PollMaxInterval))

		select {
		case <-ctx.Done():
			timer.Stop()
			m.log.Infow("KNI agent canceled", zap.Error(ctx.Err()))
			return nil
		case ev := <-m.events.Events():
			timer.Stop()
			m.handle(ev)
			poll.Reset()
		case <-timer.C:
		}
	}

	m.log.Infow("stop requested, leaving main loop",
		zap.Int32("requests", m.shutdown.Value()),
		zap.Uint64("dropped_events", m.events.Dropped()),
	)
	return nil
}

func (m *Agent) handle(ev signals.Event) {
	m.log.Debugw("handling control event", zap.Stringer("event", ev))

	switch ev {
	case signals.EventStats:
		if err := m.stats.Print(m.output, m.table); err != nil {
			m.log.Warnw("failed to print statistics", zap.Error(err))
		}
	case signals.EventReset:
		m.stats.Reset()
		m.log.Info("statistics reset")
	case signals.EventStop:
		m.shutdown.Request()
	default:
		m.log.Warnw("unknown control event", zap.Stringer("event", ev))
	}
}

func (m *Agent) metricsHandler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(stats.NewCollector(m.stats, m.table))

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

func (m *Agent) serveMetrics(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           m.metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.log.Infow("exposing metrics", zap.Stringer("addr", listener.Addr()))
	defer m.log.Infow("stopped metrics", zap.Stringer("addr", listener.Addr()))

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve metrics: %w", err)
		}
		return nil
	})
	wg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return wg.Wait()
}
