package signals

import (
	"context"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return 0
	}
}

func Test_EventsMapping(t *testing.T) {
	events := Events()

	assert.Equal(t, EventStats, events[syscall.SIGUSR1])
	assert.Equal(t, EventReset, events[syscall.SIGUSR2])
	assert.Equal(t, EventStop, events[syscall.SIGINT])
	assert.Equal(t, EventStop, events[syscall.SIGTERM])
}

func Test_InstallTranslatesSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := NewChannel(WithLog(zaptest.NewLogger(t).Sugar()))
	ch.Install(ctx)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	assert.Equal(t, EventStats, receive(t, ch.Events()))

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR2))
	assert.Equal(t, EventReset, receive(t, ch.Events()))
}

func Test_InjectDropsWhenFull(t *testing.T) {
	ch := NewChannel(WithBufferSize(2))

	assert.True(t, ch.Inject(EventStats))
	assert.True(t, ch.Inject(EventReset))
	assert.False(t, ch.Inject(EventStop))
	assert.Equal(t, uint64(1), ch.Dropped())

	assert.Equal(t, EventStats, receive(t, ch.Events()))
	assert.Equal(t, EventReset, receive(t, ch.Events()))
	assert.True(t, ch.Inject(EventStop))
	assert.Equal(t, EventStop, receive(t, ch.Events()))
}

func Test_ShutdownFlagIsMonotonic(t *testing.T) {
	flag := ShutdownFlag{}
	assert.False(t, flag.Requested())

	flag.Request()
	assert.True(t, flag.Requested())

	wg := sync.WaitGroup{}
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				flag.Request()
				assert.True(t, flag.Requested())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(801), flag.Value())
}

func Test_EventString(t *testing.T) {
	assert.Equal(t, "STATS", EventStats.String())
	assert.Equal(t, "RESET", EventReset.String())
	assert.Equal(t, "STOP", EventStop.String())
	assert.Equal(t, "UNKNOWN(7)", Event(7).String())
}
