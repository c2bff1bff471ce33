package memory

import (
	"fmt"
	"runtime"
)

// Memory contains process and system memory information
type Memory struct {
	HeapAllocatedBytes uint64
	HeapTotalBytes     uint64
	RAMAppBytes        uint64
	RAMSystemBytes     uint64
	Goroutines         int
}

// NewMemory creates a new Memory snapshot
func NewMemory() *Memory {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m := &Memory{
		HeapAllocatedBytes: memStats.Alloc,
		HeapTotalBytes:     memStats.Sys,
		RAMAppBytes:        GetRAMAppBytes(),
		RAMSystemBytes:     GetRAMSystemBytes(),
		Goroutines:         runtime.NumGoroutine(),
	}
	return m
}

func (m *Memory) String() string {
	return fmt.Sprintf("heap %.1f/%.1f MB, ram %.1f/%.1f MB, goroutines %d",
		BytesToMegaBytes(m.HeapAllocatedBytes), BytesToMegaBytes(m.HeapTotalBytes),
		BytesToMegaBytes(m.RAMAppBytes), BytesToMegaBytes(m.RAMSystemBytes), m.Goroutines)
}

// BytesToMegaBytes converts Bytes to MegaBytes
func BytesToMegaBytes(in uint64) float64 {
	return float64(in) / 1000 / 1000
}
