package signals

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_RealTimeMinIsStop(t *testing.T) {
	assert.Equal(t, syscall.Signal(34), sigRTMin)
	assert.Equal(t, EventStop, Events()[sigRTMin])
}
