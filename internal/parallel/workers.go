package parallel

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Auto asks for a worker count sized to the host.
const Auto = -1

// DefaultWorkers returns the number of physical cores, falling back to the
// logical CPU count when the CPU does not report its topology.
func DefaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Resolve maps Auto to DefaultWorkers and returns any other value unchanged.
func Resolve(workers int) int {
	if workers == Auto {
		return DefaultWorkers()
	}
	return workers
}
