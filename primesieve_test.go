package primesieve

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/gogpu/primesieve/accel"
	"github.com/gogpu/primesieve/kernel"
	"github.com/gogpu/primesieve/seed"
)

func TestCountOracle(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 1},
		{10, 4},
		{100, 25},
		{1000, 168},
		{100000, 9592},
	}
	for _, tt := range tests {
		res, err := Count(tt.n, WithDevice("host"))
		if err != nil {
			t.Fatalf("Count(%d) error = %v", tt.n, err)
		}
		if res.Primes != tt.want {
			t.Errorf("Count(%d) = %d, want %d", tt.n, res.Primes, tt.want)
		}
		if len(res.Sieve) != tt.n {
			t.Errorf("Count(%d) sieve length = %d", tt.n, len(res.Sieve))
		}
	}
}

func TestCountResult(t *testing.T) {
	res, err := Count(1000, WithDevice("host"), WithFactor(16))
	if err != nil {
		t.Fatal(err)
	}
	if res.Device != "host" {
		t.Errorf("Device = %q, want host", res.Device)
	}
	if res.Seeds != len(seed.Primes(seed.Bound(1000))) {
		t.Errorf("Seeds = %d", res.Seeds)
	}
	if res.Partition.Global != res.Partition.Local*16 {
		t.Errorf("Partition = %v, want global = 16 * local", res.Partition)
	}
	// Marked flags at i >= 2 must be exactly the primes.
	for i := 2; i < len(res.Sieve); i++ {
		if (res.Sieve[i] != 0) != isPrime(i) {
			t.Fatalf("Sieve[%d] = %d, isPrime = %v", i, res.Sieve[i], isPrime(i))
		}
	}
}

func TestCountAutomaticSelectionFallsBack(t *testing.T) {
	accel.Register("gpu", func(accel.Config) (accel.Device, error) {
		return nil, accel.ErrNoDevice
	})
	t.Cleanup(func() { accel.Unregister("gpu") })

	res, err := Count(100)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if res.Device != "host" || res.Primes != 25 {
		t.Errorf("Count() = %d on %q, want 25 on host", res.Primes, res.Device)
	}
}

func TestCountStageErrors(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		opts   []Option
		stage  Stage
		target error
	}{
		{"negative bound", -1, nil, StageAllocate, ErrInvalidBound},
		{"missing kernel file", 10, []Option{WithKernelFile("no-such-kernel")}, StageKernel, os.ErrNotExist},
		{"kernel without entry point", 10, []Option{WithKernelSource("fn main() {}")}, StageKernel, kernel.ErrEntryPoint},
		{"unknown device", 10, []Option{WithDevice("fpga")}, StageOpen, accel.ErrUnknownDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Count(tt.n, tt.opts...)
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("Count() error = %v, want *StageError", err)
			}
			if se.Stage != tt.stage {
				t.Errorf("Stage = %q, want %q", se.Stage, tt.stage)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("Count() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: StageDispatch, Device: "gpu", Err: errors.New("fence timeout")}
	if got, want := err.Error(), "primesieve: dispatch on gpu: fence timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	err = &StageError{Stage: StageKernel, Err: errors.New("unreadable")}
	if got, want := err.Error(), "primesieve: kernel: unreadable"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func newHostSession(t *testing.T, n int) (*Session, []uint32) {
	t.Helper()
	seeds := seed.Primes(seed.Bound(n))
	s, err := NewSession(n, len(seeds), WithDevice("host"))
	if err != nil {
		t.Fatalf("NewSession(%d) error = %v", n, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, seeds
}

func TestSessionRoundTrip(t *testing.T) {
	const n = 4099
	s, seeds := newHostSession(t, n)

	rng := rand.New(rand.NewPCG(1, 2))
	in := make([]byte, n)
	for i := range in {
		in[i] = byte(rng.Uint32())
	}
	if err := s.Upload(in, seeds); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, n)
	if err := s.Download(out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Error("Download() after Upload() without Dispatch() changed the array")
	}
}

func TestSessionIdempotent(t *testing.T) {
	const n = 10007
	s, seeds := newHostSession(t, n)

	first := NewWorkingArray(n)
	if err := s.Run(first, seeds); err != nil {
		t.Fatal(err)
	}
	second := bytes.Clone(first)
	if err := s.Run(second, seeds); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("marking an already marked array changed it")
	}
}

func TestSessionPartitionIndependence(t *testing.T) {
	const n = 5000
	s, seeds := newHostSession(t, n)

	want := NewWorkingArray(n)
	if err := s.Run(want, seeds); err != nil {
		t.Fatal(err)
	}

	for _, p := range []Partition{{Local: 1, Global: 1}, {Local: 1, Global: 7}, {Local: 64, Global: 64}, {Local: 32, Global: 8192}} {
		got := NewWorkingArray(n)
		if err := s.Upload(got, seeds); err != nil {
			t.Fatal(err)
		}
		if err := s.DispatchWith(p); err != nil {
			t.Fatalf("DispatchWith(%v) error = %v", p, err)
		}
		if err := s.Download(got); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("partition %v changed the marking result", p)
		}
	}
}

func TestSessionStageErrors(t *testing.T) {
	s, seeds := newHostSession(t, 100)

	var se *StageError
	err := s.Upload(make([]byte, 99), seeds)
	if !errors.As(err, &se) || se.Stage != StageUpload || !errors.Is(err, accel.ErrSizeMismatch) {
		t.Errorf("Upload() short array = %v, want upload ErrSizeMismatch", err)
	}
	err = s.DispatchWith(Partition{Local: 3, Global: 4})
	if !errors.As(err, &se) || se.Stage != StageDispatch || !errors.Is(err, accel.ErrInvalidPartition) {
		t.Errorf("DispatchWith() bad partition = %v, want dispatch ErrInvalidPartition", err)
	}
	err = s.Download(make([]byte, 101))
	if !errors.As(err, &se) || se.Stage != StageDownload || !errors.Is(err, accel.ErrSizeMismatch) {
		t.Errorf("Download() long array = %v, want download ErrSizeMismatch", err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := s.Dispatch(); !errors.Is(err, accel.ErrClosed) {
		t.Errorf("Dispatch() after Close = %v, want ErrClosed", err)
	}
}

// stubDevice records calls and fails at a configured stage.
type stubDevice struct {
	failAt Stage
	limits accel.Limits
	closed int
	sieve  []byte
}

var errStub = errors.New("stub failure")

func (d *stubDevice) Name() string         { return "stub" }
func (d *stubDevice) Info() accel.Info     { return accel.Info{Name: "stub", Backend: "stub"} }
func (d *stubDevice) Limits() accel.Limits { return d.limits }

func (d *stubDevice) Allocate(_, n int) error {
	if d.failAt == StageAllocate {
		return errStub
	}
	d.sieve = make([]byte, n)
	return nil
}

func (d *stubDevice) Upload(_ []uint32, sieve []byte) error {
	if d.failAt == StageUpload {
		return errStub
	}
	copy(d.sieve, sieve)
	return nil
}

func (d *stubDevice) Dispatch(accel.Partition, uint32) error {
	if d.failAt == StageDispatch {
		return errStub
	}
	return nil
}

func (d *stubDevice) Download(dst []byte) error {
	if d.failAt == StageDownload {
		return errStub
	}
	copy(dst, d.sieve)
	return nil
}

func (d *stubDevice) Close() error {
	d.closed++
	return nil
}

func registerStub(t *testing.T, dev *stubDevice) {
	t.Helper()
	if dev.limits == (accel.Limits{}) {
		dev.limits = accel.Limits{MaxWorkgroupSize: 256, MaxWorkgroups: 65535, MaxElements: 1 << 20}
	}
	accel.Register("stub", func(accel.Config) (accel.Device, error) { return dev, nil })
	t.Cleanup(func() { accel.Unregister("stub") })
}

func TestCountReleasesDeviceOnFailure(t *testing.T) {
	for _, stage := range []Stage{StageAllocate, StageUpload, StageDispatch, StageDownload} {
		t.Run(string(stage), func(t *testing.T) {
			dev := &stubDevice{failAt: stage}
			registerStub(t, dev)

			_, err := Count(50, WithDevice("stub"))
			var se *StageError
			if !errors.As(err, &se) || se.Stage != stage || se.Device != "stub" {
				t.Fatalf("Count() error = %v, want %s stage error on stub", err, stage)
			}
			if !errors.Is(err, errStub) {
				t.Errorf("Count() error does not wrap the device error: %v", err)
			}
			if dev.closed != 1 {
				t.Errorf("device closed %d times, want 1", dev.closed)
			}
		})
	}
}

func TestNewSessionRejectsBoundAboveDeviceLimit(t *testing.T) {
	dev := &stubDevice{limits: accel.Limits{MaxWorkgroupSize: 256, MaxWorkgroups: 65535, MaxElements: 64}}
	registerStub(t, dev)

	_, err := NewSession(65, 0, WithDevice("stub"))
	if !errors.Is(err, accel.ErrBoundTooLarge) {
		t.Errorf("NewSession() error = %v, want ErrBoundTooLarge", err)
	}
	if dev.closed != 1 {
		t.Errorf("device closed %d times, want 1", dev.closed)
	}
}

func TestCountAutomaticSelectionSkipsSmallDevice(t *testing.T) {
	small := &stubDevice{limits: accel.Limits{MaxWorkgroupSize: 256, MaxWorkgroups: 65535, MaxElements: 64}}
	accel.Register("gpu", func(accel.Config) (accel.Device, error) { return small, nil })
	t.Cleanup(func() { accel.Unregister("gpu") })

	res, err := Count(100)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if res.Device != "host" || res.Primes != 25 {
		t.Errorf("Count() = %d on %q, want 25 on host", res.Primes, res.Device)
	}
	if small.closed != 1 {
		t.Errorf("small device closed %d times, want 1", small.closed)
	}

	// A named device is never replaced.
	_, err = Count(100, WithDevice("gpu"))
	if !errors.Is(err, accel.ErrBoundTooLarge) {
		t.Errorf("Count(WithDevice(gpu)) error = %v, want ErrBoundTooLarge", err)
	}
}

func TestNewSessionRejectsInvalidPartition(t *testing.T) {
	// 64 groups of 1 invocation exceed a 16-group device.
	dev := &stubDevice{limits: accel.Limits{MaxWorkgroupSize: 1, MaxWorkgroups: 16, MaxElements: 64}}
	registerStub(t, dev)

	_, err := NewSession(10, 0, WithDevice("stub"), WithFactor(64))
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageOpen || !errors.Is(err, accel.ErrInvalidPartition) {
		t.Errorf("NewSession() error = %v, want open ErrInvalidPartition", err)
	}
}

func TestNewWorkingArray(t *testing.T) {
	a := NewWorkingArray(17)
	if len(a) != 17 {
		t.Fatalf("len = %d, want 17", len(a))
	}
	for i, f := range a {
		if f != 1 {
			t.Fatalf("flag %d = %d, want 1", i, f)
		}
	}
	if len(NewWorkingArray(0)) != 0 {
		t.Error("NewWorkingArray(0) not empty")
	}
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func BenchmarkCountHost(b *testing.B) {
	for b.Loop() {
		if _, err := Count(1_000_000, WithDevice("host")); err != nil {
			b.Fatal(err)
		}
	}
}
