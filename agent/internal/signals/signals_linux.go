package signals

import (
	"os"
	"syscall"
)

const (
	// kernelSigRTMin is the first real-time signal number of the kernel.
	kernelSigRTMin = 32
	// glibcReservedRTSignals are taken by the glibc threading
	// implementation, so SIGRTMIN seen by C programs is shifted by them.
	glibcReservedRTSignals = 2

	sigRTMin = syscall.Signal(kernelSigRTMin + glibcReservedRTSignals)
)

func platformStopSignals() []os.Signal {
	return []os.Signal{sigRTMin}
}
