package primesieve

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// aggregateChunk is the number of flags counted by one goroutine.
const aggregateChunk = 1 << 20

// Aggregate returns the number of primes below len(sieve) in a marked
// working array.
//
// It counts the candidate flags in [2, N) and then adds back every seed
// prime p < N whose flag was cleared, so a seed the device marked composite
// is still counted once. Seeds still marked candidate were counted in the
// first pass. Indices 0 and 1 are never counted.
func Aggregate(sieve []byte, seeds []uint32) int {
	n := len(sieve)
	if n <= 2 {
		return 0
	}

	body := sieve[2:]
	chunks := (len(body) + aggregateChunk - 1) / aggregateChunk
	counts := make([]int, chunks)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c := range chunks {
		g.Go(func() error {
			lo := c * aggregateChunk
			hi := min(lo+aggregateChunk, len(body))
			counts[c] = countCandidates(body[lo:hi])
			return nil
		})
	}
	_ = g.Wait() // chunks never fail

	total := 0
	for _, c := range counts {
		total += c
	}
	for _, p := range seeds {
		if uint64(p) >= uint64(n) {
			break
		}
		if sieve[p] == 0 {
			total++
		}
	}
	return total
}

func countCandidates(flags []byte) int {
	count := 0
	for _, f := range flags {
		if f != 0 {
			count++
		}
	}
	return count
}
