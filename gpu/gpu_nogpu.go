//go:build nogpu

package gpu

// Name is the registry name of the GPU device. With the nogpu tag the
// device is not registered.
const Name = "gpu"
