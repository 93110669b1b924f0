//go:build !linux

package signals

import "os"

func platformStopSignals() []os.Signal {
	return nil
}
