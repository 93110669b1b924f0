//go:build !linux

package eal

import (
	"fmt"
	"runtime"

	"github.com/yanet-platform/kniagent/common/go/bitset"
)

func availableCores() (bitset.TinyBitset, error) {
	out := bitset.TinyBitset{}
	for core := 0; core < runtime.NumCPU() && core < bitset.MaxBits; core++ {
		out.Insert(uint32(core))
	}

	return out, nil
}

func pinCurrentThread(core uint32) (func() error, error) {
	return nil, fmt.Errorf("thread pinning is not supported on %s", runtime.GOOS)
}
