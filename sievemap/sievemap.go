// Package sievemap renders a marked working array as a grayscale image.
//
// Flag i is drawn at column i%cols, row i/cols of a square grid: white for
// a surviving candidate (a prime when i >= 2), black for a cleared flag.
// Indices 0 and 1 are always drawn black. The grid is then scaled to the
// requested width.
package sievemap

import (
	"errors"
	"image"
	"image/png"
	"io"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/primesieve/seed"
)

// ErrInvalidWidth is returned for a non-positive output width.
var ErrInvalidWidth = errors.New("sievemap: width must be positive")

// Grid returns one pixel per flag on a square grid of side ⌈√n⌉.
func Grid(sieve []byte) *image.Gray {
	n := len(sieve)
	cols := max(int(seed.Bound(n))-1, 1)
	rows := max((n+cols-1)/cols, 1)

	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for i, f := range sieve {
		if i < 2 || f == 0 {
			continue
		}
		img.Pix[(i/cols)*img.Stride+i%cols] = 0xFF
	}
	return img
}

// Render returns the grid scaled to width pixels, keeping the aspect ratio.
// Nearest-neighbor sampling keeps every pixel pure black or white.
func Render(sieve []byte, width int) (*image.Gray, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	grid := Grid(sieve)
	b := grid.Bounds()
	if b.Dx() == width {
		return grid, nil
	}
	height := max(b.Dy()*width/b.Dx(), 1)
	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), grid, b, xdraw.Src, nil)
	return dst, nil
}

// Encode writes the rendered map to w as PNG.
func Encode(w io.Writer, sieve []byte, width int) error {
	img, err := Render(sieve, width)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePNG writes the rendered map to a PNG file.
func SavePNG(path string, sieve []byte, width int) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := Encode(f, sieve, width); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
