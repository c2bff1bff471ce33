//go:build !linux

package memory

import "runtime"

// GetRAMAppBytes returns the memory obtained from the OS by the Go runtime
func GetRAMAppBytes() uint64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return memStats.Sys
}

// GetRAMSystemBytes is unknown off linux
func GetRAMSystemBytes() uint64 {
	return 0
}
