package launcher

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanet-platform/kniagent/agent/internal/eal"
)

var ErrLaunchFailure = errors.New("worker launch failed")

// Runtime is the part of the runtime environment the launcher depends on.
type Runtime interface {
	MainCore() uint32
	Workers() iter.Seq[uint32]
	State(core uint32) eal.State
	RemoteLaunch(fn eal.LcoreFunc, core uint32) error
	WaitCore(core uint32) (int, error)
}

// Mode tells whether the main core runs the worker function too.
type Mode int

const (
	SkipMain Mode = iota
	CallMain
)

type options struct {
	Log *zap.SugaredLogger
}

func newOptions() *options {
	return &options{
		Log: zap.NewNop().Sugar(),
	}
}

// LauncherOption is a function that configures the Launcher.
type LauncherOption func(*options)

// WithLog sets the logger for the Launcher.
func WithLog(log *zap.SugaredLogger) LauncherOption {
	return func(o *options) {
		o.Log = log
	}
}

// Launcher dispatches a worker function to every worker core and joins
// them.
type Launcher struct {
	runtime Runtime

	mu         sync.Mutex
	dispatched []uint32

	log *zap.SugaredLogger
}

// NewLauncher creates a new Launcher over the given runtime.
func NewLauncher(runtime Runtime, options ...LauncherOption) *Launcher {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	return &Launcher{
		runtime: runtime,
		log:     opts.Log,
	}
}

// Launch starts fn on every worker core, and with CallMain also runs it
// synchronously on the main core.
//
// Either every worker core gets the function or none does: busy cores are
// detected before anything is dispatched, and a dispatch failure joins the
// already started workers before returning.
func (m *Launcher) Launch(fn eal.LcoreFunc, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.dispatched) > 0 {
		return fmt.Errorf("%w: %d workers from the previous launch are not joined", ErrLaunchFailure, len(m.dispatched))
	}

	cores := []uint32{}
	for core := range m.runtime.Workers() {
		if state := m.runtime.State(core); state != eal.StateWait {
			return fmt.Errorf("%w: core %d is %s", ErrLaunchFailure, core, state)
		}
		cores = append(cores, core)
	}

	for _, core := range cores {
		m.log.Infow("starting remote launch", zap.Uint32("core", core))

		if err := m.runtime.RemoteLaunch(fn, core); err != nil {
			m.log.Errorw("failed to launch worker, joining already started ones",
				zap.Uint32("core", core),
				zap.Int("started", len(m.dispatched)),
				zap.Error(err),
			)
			m.join()
			return fmt.Errorf("%w: core %d: %w", ErrLaunchFailure, core, err)
		}
		m.dispatched = append(m.dispatched, core)
	}

	if mode == CallMain {
		mainCore := m.runtime.MainCore()
		if ret := fn(mainCore); ret != 0 {
			m.log.Warnw("worker returned non-zero status", zap.Uint32("core", mainCore), zap.Int("status", ret))
		}
	}

	return nil
}

// Wait blocks until every dispatched worker has finished.
//
// Worker statuses are logged but otherwise ignored. After Wait returns no
// worker launched by this launcher is executing.
func (m *Launcher) Wait() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.join()
}

// Dispatched returns cores with workers that are not joined yet.
func (m *Launcher) Dispatched() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]uint32(nil), m.dispatched...)
}

func (m *Launcher) join() {
	wg := errgroup.Group{}
	for _, core := range m.dispatched {
		wg.Go(func() error {
			ret, err := m.runtime.WaitCore(core)
			switch {
			case err != nil:
				m.log.Errorw("worker failed", zap.Uint32("core", core), zap.Error(err))
			case ret != 0:
				m.log.Warnw("worker returned non-zero status", zap.Uint32("core", core), zap.Int("status", ret))
			default:
				m.log.Debugw("worker finished", zap.Uint32("core", core))
			}
			return nil
		})
	}
	wg.Wait()

	m.dispatched = m.dispatched[:0]
}
