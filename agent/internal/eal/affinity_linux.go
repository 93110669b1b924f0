//go:build linux

package eal

import (
	"golang.org/x/sys/unix"

	"github.com/yanet-platform/kniagent/common/go/bitset"
)

// availableCores returns the CPU affinity set of the process.
func availableCores() (bitset.TinyBitset, error) {
	set := unix.CPUSet{}
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return bitset.TinyBitset{}, err
	}

	out := bitset.TinyBitset{}
	for core := 0; core < bitset.MaxBits; core++ {
		if set.IsSet(core) {
			out.Insert(uint32(core))
		}
	}

	return out, nil
}

// pinCurrentThread binds the calling OS thread to the given core and
// returns a function restoring the previous affinity.
//
// The caller must have locked the goroutine to its thread.
func pinCurrentThread(core uint32) (func() error, error) {
	prev := unix.CPUSet{}
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, err
	}

	set := unix.CPUSet{}
	set.Set(int(core))
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, err
	}

	return func() error {
		return unix.SchedSetaffinity(0, &prev)
	}, nil
}
