// Package primesieve counts the primes below a bound N with a sieve split
// between the host and an accelerator.
//
// The host computes the seed primes up to √N, the accelerator clears every
// composite in a working array of N flags in parallel, and the host counts
// what survives:
//
//	seed.Primes -> Session.Upload -> Session.Dispatch -> Session.Download -> Aggregate
//
// # Quick Start
//
//	res, err := primesieve.Count(100000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d -> %f\n", res.Primes, res.Elapsed.Seconds())
//
// # Devices
//
// The "host" device runs the marking kernel on a worker pool and is always
// available. Import the gpu package to register the "gpu" device, which runs
// the same kernel as a WebGPU compute shader:
//
//	import _ "github.com/gogpu/primesieve/gpu"
//
// Without [WithDevice], the GPU is preferred and the host device is used
// when no GPU can be opened.
//
// # Logging
//
// The package is silent by default. See [SetLogger].
package primesieve
