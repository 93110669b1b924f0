package eal

import (
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/yanet-platform/kniagent/common/go/bitset"
)

var (
	ErrResourceInit    = errors.New("runtime environment initialization failed")
	ErrCoreUnavailable = errors.New("core is not available for launch")
	ErrCoreBusy        = errors.New("core is busy")
	ErrWorkerPanic     = errors.New("worker panicked")
)

// State is the launch state of a core.
type State int

const (
	// StateWait means the core is idle and ready to be launched.
	StateWait State = iota
	// StateRunning means a function is executing on the core.
	StateRunning
	// StateFinished means the function returned but nobody waited for it.
	StateFinished
)

func (m State) String() string {
	switch m {
	case StateWait:
		return "WAIT"
	case StateRunning:
		return "RUNNING"
	case StateFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(m))
	}
}

// LcoreFunc is a function launched on a core. It returns a status code,
// zero on success.
type LcoreFunc func(core uint32) int

type options struct {
	Log       *zap.SugaredLogger
	Pin       bool
	Available *bitset.TinyBitset
}

func newOptions() *options {
	return &options{
		Log: zap.NewNop().Sugar(),
	}
}

// InitOption is a function that configures the runtime environment.
type InitOption func(*options)

// WithLog sets the logger for the runtime environment.
func WithLog(log *zap.SugaredLogger) InitOption {
	return func(o *options) {
		o.Log = log
	}
}

// WithPinning makes every worker thread bound to its core.
//
// Requested cores must then exist in the process CPU affinity set.
func WithPinning(pin bool) InitOption {
	return func(o *options) {
		o.Pin = pin
	}
}

// WithAvailableCores overrides discovery of available cores.
func WithAvailableCores(cores bitset.TinyBitset) InitOption {
	return func(o *options) {
		o.Available = &cores
	}
}

type lcore struct {
	id    uint32
	mu    sync.Mutex
	state State
	done  chan struct{}
	ret   int
	err   error
}

// Runtime is the multi-core runtime environment.
//
// Each worker core runs at most one launched function at a time, on a
// goroutine locked to its own OS thread.
type Runtime struct {
	args     *Args
	mainCore uint32
	enabled  bitset.TinyBitset
	lcores   map[uint32]*lcore
	pin      bool
	log      *zap.SugaredLogger
}

// Init brings up the runtime environment from the leading runtime arguments.
//
// Returns the runtime and the number of consumed arguments.
func Init(args []string, options ...InitOption) (*Runtime, int, error) {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	parsed, consumed, err := ParseArgs(args)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrResourceInit, err)
	}

	available := opts.Available
	if available == nil {
		cores, err := availableCores()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: failed to discover cores: %w", ErrResourceInit, err)
		}
		available = &cores
	}

	enabled := *available
	if parsed.Cores != nil {
		enabled = *parsed.Cores
		if opts.Pin {
			for core := range enabled.Iter() {
				if !available.Contains(core) {
					return nil, 0, fmt.Errorf("%w: core %d is not in the CPU affinity set %s", ErrResourceInit, core, available)
				}
			}
		}
	}
	if enabled.IsEmpty() {
		return nil, 0, fmt.Errorf("%w: no cores enabled", ErrResourceInit)
	}

	mainCore := enabled.AsSlice()[0]
	if parsed.MainCore != nil {
		mainCore = *parsed.MainCore
		if !enabled.Contains(mainCore) {
			return nil, 0, fmt.Errorf("%w: main core %d is not enabled in %s", ErrResourceInit, mainCore, &enabled)
		}
	}

	lcores := map[uint32]*lcore{}
	for core := range enabled.Iter() {
		lcores[core] = &lcore{id: core}
	}

	m := &Runtime{
		args:     parsed,
		mainCore: mainCore,
		enabled:  enabled,
		lcores:   lcores,
		pin:      opts.Pin,
		log:      opts.Log,
	}

	m.log.Infow("initialized runtime environment",
		zap.Stringer("cores", &m.enabled),
		zap.Uint32("main_core", m.mainCore),
		zap.Bool("pin", m.pin),
		zap.Int("consumed_args", consumed),
		zap.Strings("ignored_options", parsed.Ignored),
	)

	return m, consumed, nil
}

// Args returns parsed runtime arguments.
func (m *Runtime) Args() *Args {
	return m.args
}

// MainCore returns the coordinating core.
func (m *Runtime) MainCore() uint32 {
	return m.mainCore
}

// Enabled returns a copy of the enabled core set.
func (m *Runtime) Enabled() *bitset.TinyBitset {
	enabled := m.enabled
	return &enabled
}

// Workers iterates over enabled cores except the main one, in ascending
// order.
func (m *Runtime) Workers() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for core := range m.enabled.Iter() {
			if core == m.mainCore {
				continue
			}
			if !yield(core) {
				return
			}
		}
	}
}

// State returns the launch state of the core. Unknown cores are reported
// as finished so that they are never considered launchable.
func (m *Runtime) State(core uint32) State {
	lc, ok := m.lcores[core]
	if !ok {
		return StateFinished
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.state
}

// RemoteLaunch starts fn on the given worker core and returns immediately.
//
// The core must be an enabled worker core in the WAIT state.
func (m *Runtime) RemoteLaunch(fn LcoreFunc, core uint32) error {
	lc, ok := m.lcores[core]
	if !ok || core == m.mainCore {
		return fmt.Errorf("core %d: %w", core, ErrCoreUnavailable)
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.state != StateWait {
		return fmt.Errorf("core %d is %s: %w", core, lc.state, ErrCoreBusy)
	}

	lc.state = StateRunning
	lc.done = make(chan struct{})
	lc.ret = 0
	lc.err = nil

	go m.run(lc, fn)

	return nil
}

func (m *Runtime) run(lc *lcore, fn LcoreFunc) {
	runtime.LockOSThread()

	pinned := false
	defer func() {
		// A pinned thread exits with the goroutine instead of going back to
		// the scheduler with a narrowed affinity.
		if !pinned {
			runtime.UnlockOSThread()
		}
	}()

	ret, err := 0, error(nil)
	defer func() {
		lc.mu.Lock()
		lc.state = StateFinished
		lc.ret = ret
		lc.err = err
		close(lc.done)
		lc.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			ret, err = -1, fmt.Errorf("core %d: %w: %v", lc.id, ErrWorkerPanic, r)
		}
	}()

	if m.pin {
		if _, pinErr := pinCurrentThread(lc.id); pinErr != nil {
			m.log.Warnw("failed to pin worker thread", zap.Uint32("core", lc.id), zap.Error(pinErr))
		} else {
			pinned = true
		}
	}

	ret = fn(lc.id)
}

// WaitCore blocks until the function launched on the core finishes, moves
// the core back to WAIT and returns the function status.
//
// Waiting for an idle core returns immediately.
func (m *Runtime) WaitCore(core uint32) (int, error) {
	lc, ok := m.lcores[core]
	if !ok {
		return 0, fmt.Errorf("core %d: %w", core, ErrCoreUnavailable)
	}

	lc.mu.Lock()
	if lc.state == StateWait {
		lc.mu.Unlock()
		return 0, nil
	}
	done := lc.done
	lc.mu.Unlock()

	<-done

	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.state = StateWait
	return lc.ret, lc.err
}

// PinMainThread locks the calling goroutine to its thread and binds it to
// the main core when pinning is enabled. The returned function restores the
// previous affinity and undoes the lock.
func (m *Runtime) PinMainThread() func() {
	runtime.LockOSThread()

	if !m.pin {
		return runtime.UnlockOSThread
	}

	restore, err := pinCurrentThread(m.mainCore)
	if err != nil {
		m.log.Warnw("failed to pin main thread", zap.Uint32("core", m.mainCore), zap.Error(err))
		return runtime.UnlockOSThread
	}

	return func() {
		if err := restore(); err != nil {
			m.log.Warnw("failed to restore main thread affinity, keeping the thread locked",
				zap.Uint32("core", m.mainCore),
				zap.Error(err),
			)
			return
		}
		runtime.UnlockOSThread()
	}
}
