package kernel

// Invoke runs one invocation of the marking kernel on the host.
//
// It mirrors sieveOfEratosthenes in sieve.wgsl: global invocation id g
// visits g, g+stride, ... below n and clears every index i >= 4 that has
// a seed factor p with p*p <= i. seeds must be ascending. sieve must hold
// at least n flags.
func Invoke(seeds []uint32, sieve []byte, n, g, stride uint32) {
	if stride == 0 {
		return
	}
	for i := g; i < n; i += stride {
		if i >= 4 {
			for _, p := range seeds {
				if p > i/p {
					break
				}
				if i%p == 0 {
					sieve[i] = 0
					break
				}
			}
		}
		if n-i <= stride {
			break
		}
	}
}
