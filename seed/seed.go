// Package seed computes the seed primes used to mark composites on the
// accelerator.
//
// Every composite below N has a prime factor no larger than √N, so the primes
// up to Bound(N) are sufficient to eliminate all composites in [0, N).
package seed

import "math"

// Bound returns M = ⌈√n⌉ + 1, the largest value the seed sieve covers for a
// working array of n flags. Negative n is treated as 0.
func Bound(n int) uint32 {
	if n <= 0 {
		return 1
	}
	r := isqrt(uint64(n))
	if r*r < uint64(n) {
		r++
	}
	return uint32(r + 1) //nolint:gosec // r <= 2^32 for any int n on 64-bit
}

// isqrt returns ⌊√x⌋ without floating-point rounding error.
func isqrt(x uint64) uint64 {
	r := uint64(math.Sqrt(float64(x)))
	for r*r > x {
		r--
	}
	for (r+1)*(r+1) <= x {
		r++
	}
	return r
}

// Primes returns all primes p <= m in ascending order.
//
// The scratch sieve is local to the call and becomes unreachable when
// Primes returns.
func Primes(m uint32) []uint32 {
	if m < 2 {
		return []uint32{}
	}

	scratch := make([]bool, int(m)+1)
	for i := 2; i < len(scratch); i++ {
		scratch[i] = true
	}

	// Multiples below i*i were already cleared by smaller primes.
	for i := 2; i*i <= int(m); i++ {
		if !scratch[i] {
			continue
		}
		for j := i * i; j <= int(m); j += i {
			scratch[j] = false
		}
	}

	primes := make([]uint32, 0, estimate(m))
	for i, isPrime := range scratch {
		if isPrime {
			primes = append(primes, uint32(i)) //nolint:gosec // i <= m
		}
	}
	return primes
}

// estimate returns an upper bound on π(m) used to size the output slice.
func estimate(m uint32) int {
	if m < 17 {
		return 6
	}
	x := float64(m)
	return int(1.26*x/math.Log(x)) + 1
}
