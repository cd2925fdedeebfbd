package primesieve

import (
	"time"

	"github.com/gogpu/primesieve/accel"
	"github.com/gogpu/primesieve/seed"
)

// Result is the outcome of one Count.
type Result struct {
	// Primes is the number of primes strictly below N.
	Primes int

	// Elapsed covers the device phase only: upload, marking and download.
	Elapsed time.Duration

	// Device is the name of the device that ran the kernel.
	Device string

	// Info describes the hardware behind Device.
	Info accel.Info

	// Partition is the work-group layout used for the dispatch.
	Partition Partition

	// Seeds is the number of seed primes.
	Seeds int

	// Sieve is the marked working array; Sieve[i] != 0 iff i is prime
	// (indices 0 and 1 are left as candidates).
	Sieve []byte
}

// Count returns the number of primes strictly below n.
//
// The seed primes up to ⌈√n⌉+1 are computed on the host, the composites of
// a working array of n flags are cleared on the device, and the survivors
// are counted with Aggregate. Errors are *StageError values.
func Count(n int, opts ...Option) (Result, error) {
	if err := checkBound(n); err != nil {
		return Result{}, err
	}

	seeds := seed.Primes(seed.Bound(n))
	s, err := NewSession(n, len(seeds), opts...)
	if err != nil {
		return Result{}, err
	}
	defer s.Close()

	// Allocated only once a device has accepted n.
	sieve := NewWorkingArray(n)

	start := time.Now()
	if err := s.Run(sieve, seeds); err != nil {
		return Result{}, err
	}
	elapsed := time.Since(start)

	res := Result{
		Primes:    Aggregate(sieve, seeds),
		Elapsed:   elapsed,
		Device:    s.Device(),
		Info:      s.DeviceInfo(),
		Partition: s.Partition(),
		Seeds:     len(seeds),
		Sieve:     sieve,
	}
	s.logger.Debug("primesieve: counted", "n", n, "primes", res.Primes, "elapsed", elapsed)
	return res, nil
}
