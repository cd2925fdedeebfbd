// Package kernel holds the composite-marking program run on the accelerator.
//
// The program is WGSL text with a fixed entry point and a fixed binding
// layout, so any device that honors the layout can run any kernel source:
//
//	@group(0) @binding(0) seeds  array<u32>, read-only storage
//	@group(0) @binding(1) sieve  array<u32>, read-write storage, one word per flag
//	@group(0) @binding(2) params uniform { n: u32, seed_count: u32, stride: u32, _pad: u32 }
//
// The work-group size is not part of the source. The entry point declares
// @workgroup_size(WORKGROUP_SIZE) and Specialize rewrites it to a literal;
// a WORKGROUP_SIZE constant is also prepended for any other use.
package kernel

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"regexp"
)

// EntryPoint is the name of the compute entry point every kernel source
// must define.
const EntryPoint = "sieveOfEratosthenes"

// Binding indices of the kernel parameters, in their fixed order.
const (
	BindingSeeds  = 0
	BindingSieve  = 1
	BindingParams = 2
)

// ParamsSize is the byte size of the uniform parameter block.
const ParamsSize = 16

// Default is the built-in marking program.
//
//go:embed sieve.wgsl
var Default string

// Kernel errors.
var (
	// ErrEntryPoint is returned when a source does not define EntryPoint.
	ErrEntryPoint = errors.New("kernel: entry point " + EntryPoint + " not found")

	// ErrWorkgroupSizeDeclared is returned when a source declares its own
	// WORKGROUP_SIZE constant.
	ErrWorkgroupSizeDeclared = errors.New("kernel: source must not declare WORKGROUP_SIZE")

	// ErrCompile is returned when WGSL compilation fails.
	ErrCompile = errors.New("kernel: compilation failed")

	// ErrInvalidWorkgroupSize is returned for a zero work-group size.
	ErrInvalidWorkgroupSize = errors.New("kernel: work-group size must be positive")
)

var (
	entryPointRE = regexp.MustCompile(`(?m)^\s*fn\s+` + EntryPoint + `\s*\(`)
	wgConstRE    = regexp.MustCompile(`(?m)^\s*(const|override)\s+WORKGROUP_SIZE\b`)

	workgroupAttrRE = regexp.MustCompile(`@workgroup_size\(\s*WORKGROUP_SIZE\s*\)`)
)

// Load reads a kernel source file fully into memory. Relative paths are
// resolved against the process working directory.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("kernel: read %s: %w", path, err)
	}
	src := string(data)
	if err := CheckEntryPoint(src); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// CheckEntryPoint verifies that src defines the marking entry point and
// leaves WORKGROUP_SIZE to the dispatcher.
func CheckEntryPoint(src string) error {
	if !entryPointRE.MatchString(src) {
		return ErrEntryPoint
	}
	if wgConstRE.MatchString(src) {
		return ErrWorkgroupSizeDeclared
	}
	return nil
}

// Specialize returns src with the work-group size fixed to local: the
// @workgroup_size(WORKGROUP_SIZE) attribute becomes a literal and a
// WORKGROUP_SIZE constant is prepended.
func Specialize(src string, local uint32) (string, error) {
	if local == 0 {
		return "", ErrInvalidWorkgroupSize
	}
	src = workgroupAttrRE.ReplaceAllLiteralString(src, fmt.Sprintf("@workgroup_size(%d)", local))
	return fmt.Sprintf("const WORKGROUP_SIZE: u32 = %du;\n\n%s", local, src), nil
}

// PackParams serializes the uniform parameter block in little-endian order.
// stride is the total number of invocations of the dispatch.
func PackParams(n, seedCount, stride uint32) []byte {
	buf := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(buf[0:4], n)
	binary.LittleEndian.PutUint32(buf[4:8], seedCount)
	binary.LittleEndian.PutUint32(buf[8:12], stride)
	return buf
}
