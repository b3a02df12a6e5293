//go:build linux

package batchcall

import (
	"golang.org/x/sys/unix"
)

// PinToCPU restricts the calling OS thread to cpu.
// The caller must hold runtime.LockOSThread.
func PinToCPU(cpu int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
