package primesieve

import (
	"testing"

	"github.com/gogpu/primesieve/kernel"
	"github.com/gogpu/primesieve/seed"
)

// markedSieve returns a working array of n flags marked by the Go
// rendition of the kernel with a single invocation.
func markedSieve(n int) ([]byte, []uint32) {
	seeds := seed.Primes(seed.Bound(n))
	sieve := NewWorkingArray(n)
	if n > 0 {
		kernel.Invoke(seeds, sieve, uint32(n), 0, 1) //nolint:gosec // test sizes are small
	}
	return sieve, seeds
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0}, {1, 0}, {2, 0}, {3, 1}, {4, 2}, {10, 4}, {100, 25}, {1000, 168},
	}
	for _, tt := range tests {
		sieve, seeds := markedSieve(tt.n)
		if got := Aggregate(sieve, seeds); got != tt.want {
			t.Errorf("Aggregate(n=%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestAggregateIgnoresLowIndices(t *testing.T) {
	sieve := []byte{1, 1, 1, 1, 0}
	if got := Aggregate(sieve, []uint32{2, 3}); got != 2 {
		t.Errorf("Aggregate() = %d, want 2", got)
	}
	sieve = []byte{0, 0, 1, 1, 0}
	if got := Aggregate(sieve, []uint32{2, 3}); got != 2 {
		t.Errorf("Aggregate() with cleared 0 and 1 = %d, want 2", got)
	}
}

func TestAggregateRestoresClearedSeeds(t *testing.T) {
	sieve, seeds := markedSieve(100)
	// A device that also cleared the seed primes themselves.
	for _, p := range seeds {
		if int(p) < len(sieve) {
			sieve[p] = 0
		}
	}
	if got := Aggregate(sieve, seeds); got != 25 {
		t.Errorf("Aggregate() with cleared seeds = %d, want 25", got)
	}
}

func TestAggregateSeedsBeyondBound(t *testing.T) {
	// Seeds run up to ⌈√N⌉+1, which exceeds N for tiny bounds.
	sieve, seeds := markedSieve(3)
	if got := Aggregate(sieve, seeds); got != 1 {
		t.Errorf("Aggregate(n=3) = %d, want 1", got)
	}
}

func TestAggregateAcrossChunks(t *testing.T) {
	n := 3*aggregateChunk + 12345
	sieve := make([]byte, n)
	want := 0
	for i := 2; i < n; i += 3 {
		sieve[i] = 1
		want++
	}
	if got := Aggregate(sieve, nil); got != want {
		t.Errorf("Aggregate() = %d, want %d", got, want)
	}
}

func BenchmarkAggregate(b *testing.B) {
	sieve, seeds := markedSieve(1 << 22)
	for b.Loop() {
		Aggregate(sieve, seeds)
	}
}
