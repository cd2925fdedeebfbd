package accel

import "fmt"

// Partition is the work-group layout of one kernel dispatch.
// Global is always a multiple of Local.
type Partition struct {
	// Local is the number of invocations in one work group.
	Local uint32

	// Global is the total number of invocations.
	Global uint32
}

// NewPartition derives the dispatch layout from the hardware work-group
// maximum: the local size is maxWorkgroup/factor (at least 1) and the
// global size is local*factor.
func NewPartition(maxWorkgroup, factor uint32) Partition {
	if factor == 0 {
		factor = DefaultFactor
	}
	local := maxWorkgroup / factor
	if local == 0 {
		local = 1
	}
	return Partition{Local: local, Global: local * factor}
}

// Groups returns the number of work groups.
func (p Partition) Groups() uint32 {
	if p.Local == 0 {
		return 0
	}
	return p.Global / p.Local
}

// Validate checks p against the device limits.
func (p Partition) Validate(lim Limits) error {
	switch {
	case p.Local == 0 || p.Global == 0:
		return fmt.Errorf("%w: %v has a zero size", ErrInvalidPartition, p)
	case p.Global%p.Local != 0:
		return fmt.Errorf("%w: global size %d is not a multiple of local size %d", ErrInvalidPartition, p.Global, p.Local)
	case lim.MaxWorkgroupSize != 0 && p.Local > lim.MaxWorkgroupSize:
		return fmt.Errorf("%w: local size %d exceeds device maximum %d", ErrInvalidPartition, p.Local, lim.MaxWorkgroupSize)
	case lim.MaxWorkgroups != 0 && p.Groups() > lim.MaxWorkgroups:
		return fmt.Errorf("%w: %d work groups exceed device maximum %d", ErrInvalidPartition, p.Groups(), lim.MaxWorkgroups)
	}
	return nil
}

// String returns the partition as "global/local".
func (p Partition) String() string {
	return fmt.Sprintf("%d/%d", p.Global, p.Local)
}
