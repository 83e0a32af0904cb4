package kernel

import "github.com/evanphx/procsys/memory"

type Config struct {
	// MaxProcs bounds the number of live processes, zombies included.
	MaxProcs int

	// MemoryLimit is the first address a process break may never reach.
	MemoryLimit uint32

	// InitialMemory is the break of the init process.
	InitialMemory uint32

	DefaultPriority int
	MinPriority     int
	MaxPriority     int

	// PidQuarantine is how many recently reaped pids are held back from
	// reassignment. Zero disables it.
	PidQuarantine int
}

func DefaultConfig() Config {
	return Config{
		MaxProcs:        64,
		MemoryLimit:     0x80000000,
		InitialMemory:   4 * memory.PageSize,
		DefaultPriority: 10,
		MinPriority:     0,
		MaxPriority:     31,
		PidQuarantine:   16,
	}
}
