package launcher

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yanet-platform/kniagent/agent/internal/eal"
	"github.com/yanet-platform/kniagent/common/go/bitset"
)

func newRuntime(t *testing.T, list string) *eal.Runtime {
	t.Helper()

	available, err := bitset.ParseList("0-15")
	require.NoError(t, err)

	rt, _, err := eal.Init([]string{"-l", list}, eal.WithAvailableCores(available))
	require.NoError(t, err)
	return rt
}

func Test_LaunchCallMain(t *testing.T) {
	rt := newRuntime(t, "0-3")
	l := NewLauncher(rt, WithLog(zaptest.NewLogger(t).Sugar()))

	mu := sync.Mutex{}
	seen := []uint32{}
	fn := func(core uint32) int {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, core)
		return 0
	}

	require.NoError(t, l.Launch(fn, CallMain))
	assert.Equal(t, []uint32{1, 2, 3}, l.Dispatched())

	l.Wait()
	assert.Empty(t, l.Dispatched())

	slices.Sort(seen)
	assert.Equal(t, []uint32{0, 1, 2, 3}, seen)
}

func Test_LaunchSkipMain(t *testing.T) {
	rt := newRuntime(t, "0-2")
	l := NewLauncher(rt)

	var mainCalled atomic.Bool
	require.NoError(t, l.Launch(func(core uint32) int {
		if core == 0 {
			mainCalled.Store(true)
		}
		return 0
	}, SkipMain))
	l.Wait()

	assert.False(t, mainCalled.Load())
}

func Test_LaunchSingleCore(t *testing.T) {
	rt := newRuntime(t, "5")
	l := NewLauncher(rt)

	var calls atomic.Int32
	require.NoError(t, l.Launch(func(core uint32) int {
		calls.Add(1)
		assert.Equal(t, uint32(5), core)
		return 0
	}, CallMain))
	l.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func Test_WaitJoinsAllWorkers(t *testing.T) {
	rt := newRuntime(t, "0-4")
	l := NewLauncher(rt)

	var running atomic.Int32
	release := make(chan struct{})
	require.NoError(t, l.Launch(func(core uint32) int {
		running.Add(1)
		defer running.Add(-1)
		<-release
		// Statuses are logged only.
		return int(core)
	}, SkipMain))

	require.Eventually(t, func() bool { return running.Load() == 4 }, 5*time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while workers are running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
	assert.Equal(t, int32(0), running.Load())
	for core := range rt.Workers() {
		assert.Equal(t, eal.StateWait, rt.State(core))
	}
}

func Test_LaunchFailsOnBusyCoreBeforeDispatch(t *testing.T) {
	rt := newRuntime(t, "0-3")

	release := make(chan struct{})
	require.NoError(t, rt.RemoteLaunch(func(uint32) int { <-release; return 0 }, 2))

	l := NewLauncher(rt)
	var calls atomic.Int32
	err := l.Launch(func(uint32) int { calls.Add(1); return 0 }, CallMain)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunchFailure))
	assert.Equal(t, int32(0), calls.Load())
	assert.Empty(t, l.Dispatched())

	close(release)
	_, err = rt.WaitCore(2)
	require.NoError(t, err)
}

func Test_LaunchRejectsUnjoinedWorkers(t *testing.T) {
	rt := newRuntime(t, "0-1")
	l := NewLauncher(rt)

	require.NoError(t, l.Launch(func(uint32) int { return 0 }, SkipMain))
	err := l.Launch(func(uint32) int { return 0 }, SkipMain)
	assert.True(t, errors.Is(err, ErrLaunchFailure))

	l.Wait()
	require.NoError(t, l.Launch(func(uint32) int { return 0 }, SkipMain))
	l.Wait()
}

// flakyRuntime fails to dispatch to a single core.
type flakyRuntime struct {
	*eal.Runtime
	failCore uint32
}

func (m *flakyRuntime) RemoteLaunch(fn eal.LcoreFunc, core uint32) error {
	if core == m.failCore {
		return eal.ErrCoreUnavailable
	}
	return m.Runtime.RemoteLaunch(fn, core)
}

func Test_LaunchDispatchFailureJoinsStarted(t *testing.T) {
	rt := &flakyRuntime{Runtime: newRuntime(t, "0-4"), failCore: 3}
	l := NewLauncher(rt, WithLog(zaptest.NewLogger(t).Sugar()))

	var finished atomic.Int32
	var mainCalled atomic.Bool
	err := l.Launch(func(core uint32) int {
		if core == 0 {
			mainCalled.Store(true)
		}
		time.Sleep(10 * time.Millisecond)
		finished.Add(1)
		return 0
	}, CallMain)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunchFailure))
	assert.True(t, errors.Is(err, eal.ErrCoreUnavailable))

	// Cores 1 and 2 were started and must be joined by now.
	assert.Equal(t, int32(2), finished.Load())
	assert.False(t, mainCalled.Load())
	assert.Empty(t, l.Dispatched())
	for core := range rt.Workers() {
		assert.Equal(t, eal.StateWait, rt.State(core))
	}
}

func Test_WorkerPanicDoesNotBreakJoin(t *testing.T) {
	rt := newRuntime(t, "0-2")
	l := NewLauncher(rt, WithLog(zaptest.NewLogger(t).Sugar()))

	require.NoError(t, l.Launch(func(core uint32) int {
		if core == 1 {
			panic("worker crashed")
		}
		return 0
	}, SkipMain))

	l.Wait()
	assert.Empty(t, l.Dispatched())
}
