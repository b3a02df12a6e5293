//go:build !linux

package batchcall

// PinToCPU is a no-op outside Linux.
func PinToCPU(int) error { return nil }
