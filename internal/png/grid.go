package png

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// RGB is a single truecolor pixel.
type RGB [3]uint8

// Grid is a rectangular image, indexed as Grid[y][x]. All rows must have
// the same, non-zero length.
type Grid [][]RGB

var (
	// ErrMalformedInput is matched by errors describing a grid that is
	// empty or not rectangular.
	ErrMalformedInput = errors.New("malformed pixel grid")
	// ErrComponentOutOfRange is matched by errors describing a color
	// component outside of [0, 255].
	ErrComponentOutOfRange = errors.New("color component out of range")
)

// MalformedInputError describes why a grid was rejected. Row is -1 if the
// problem concerns the grid as a whole.
type MalformedInputError struct {
	Row    int
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("png: malformed pixel grid: %s", e.Reason)
	}
	return fmt.Sprintf("png: malformed pixel grid: row %d: %s", e.Row, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// ComponentRangeError reports a color component that does not fit into
// eight bits.
type ComponentRangeError struct {
	Row, Col, Channel int
	Value             int
}

func (e *ComponentRangeError) Error() string {
	return fmt.Sprintf("png: pixel (%d, %d) channel %d: value %d out of range [0, 255]", e.Col, e.Row, e.Channel, e.Value)
}

func (e *ComponentRangeError) Unwrap() error { return ErrComponentOutOfRange }

// Bounds returns the width and height of g, or an error if g can not be
// encoded.
func (g Grid) Bounds() (w, h int, err error) {
	if len(g) == 0 {
		return 0, 0, &MalformedInputError{Row: -1, Reason: "no rows"}
	}
	w = len(g[0])
	if w == 0 {
		return 0, 0, &MalformedInputError{Row: 0, Reason: "zero width"}
	}
	for y, row := range g {
		if len(row) != w {
			return 0, 0, &MalformedInputError{Row: y, Reason: fmt.Sprintf("has %d pixels, want %d", len(row), w)}
		}
	}
	if uint64(w) > math.MaxUint32 || uint64(len(g)) > math.MaxUint32 {
		return 0, 0, &MalformedInputError{Row: -1, Reason: "dimensions exceed 32 bits"}
	}
	return w, len(g), nil
}

// NewGrid returns a black grid of the given size.
func NewGrid(w, h int) Grid {
	pix := make([]RGB, w*h)
	g := make(Grid, h)
	for y := range g {
		g[y] = pix[y*w : (y+1)*w : (y+1)*w]
	}
	return g
}

// GridFromInts converts rows of integer triples into a Grid. Components
// must be in [0, 255]; the first violation is returned as a
// *ComponentRangeError.
func GridFromInts(rows [][][3]int) (Grid, error) {
	g := make(Grid, len(rows))
	for y, row := range rows {
		g[y] = make([]RGB, len(row))
		for x, px := range row {
			for c, v := range px {
				if v < 0 || v > 255 {
					return nil, &ComponentRangeError{Row: y, Col: x, Channel: c, Value: v}
				}
				g[y][x][c] = uint8(v)
			}
		}
	}
	if _, _, err := g.Bounds(); err != nil {
		return nil, err
	}
	return g, nil
}

// GridFromImage converts m into a Grid. Alpha is discarded after
// conversion to non-premultiplied color.
func GridFromImage(m image.Image) Grid {
	b := m.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g[y-b.Min.Y]
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			row[x-b.Min.X] = RGB{c.R, c.G, c.B}
		}
	}
	return g
}
