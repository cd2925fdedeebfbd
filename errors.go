package primesieve

import (
	"errors"
	"fmt"
	"math"
)

// MaxBound is the largest supported bound. Kernel indices are 32-bit.
const MaxBound = math.MaxUint32

// ErrInvalidBound is returned for a bound outside [0, MaxBound].
var ErrInvalidBound = errors.New("primesieve: bound out of range")

// Stage names the step of a run that failed.
type Stage string

// Stages of a run, in execution order.
const (
	StageKernel   Stage = "kernel"   // reading the kernel source
	StageOpen     Stage = "open"     // selecting a device and compiling the program
	StageAllocate Stage = "allocate" // creating the device buffers
	StageUpload   Stage = "upload"
	StageDispatch Stage = "dispatch"
	StageDownload Stage = "download"
)

// StageError reports a failed stage. No stage is retried; the caller
// receives the first failure.
type StageError struct {
	Stage  Stage
	Device string // empty when no device was open yet
	Err    error
}

func (e *StageError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("primesieve: %s on %s: %v", e.Stage, e.Device, e.Err)
	}
	return fmt.Sprintf("primesieve: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// checkBound validates n against MaxBound.
func checkBound(n int) error {
	if n < 0 || uint64(n) > MaxBound {
		return &StageError{Stage: StageAllocate, Err: fmt.Errorf("%w: %d", ErrInvalidBound, n)}
	}
	return nil
}
