package signals

import "fmt"

// Event is an asynchronous control request delivered to the main loop.
type Event int

const (
	// EventStats requests the statistics table to be printed.
	EventStats Event = iota
	// EventReset requests every traffic counter to be zeroed.
	EventReset
	// EventStop requests a cooperative shutdown.
	EventStop
)

func (m Event) String() string {
	switch m {
	case EventStats:
		return "STATS"
	case EventReset:
		return "RESET"
	case EventStop:
		return "STOP"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(m))
	}
}
