// Package png encodes 8-bit truecolor pixel grids as PNG files.
//
// Only the simplest legal parameters are produced: bit depth 8, color type
// 2 (truecolor), no interlacing and filter type 0 for every scanline. The
// image is emitted as a single IHDR, a single IDAT and an IEND chunk.
package png

import (
	"encoding/binary"
	"io"
)

const signature = "\x89PNG\r\n\x1a\n"

// Fixed IHDR fields.
const (
	bitDepth          = 8
	colorTypeTrue     = 2
	compressionMethod = 0
	filterMethod      = 0
	interlaceNone     = 0

	filterNone = 0
)

const ihdrLen = 13

// An Encoder encodes pixel grids. The zero value is ready to use.
type Encoder struct {
	// Compressor produces the zlib stream stored in the IDAT chunk. If nil,
	// Zlib{Level: DefaultCompression} is used.
	Compressor Compressor
}

// Encode encodes g with the default compressor.
func Encode(g Grid) ([]byte, error) {
	return new(Encoder).Encode(g)
}

// WritePNG writes the encoding of g to out. Nothing is written if encoding
// fails.
func WritePNG(out io.Writer, g Grid) error {
	b, err := Encode(g)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

// Encode returns the complete PNG encoding of g. g is not modified or
// retained.
func (e *Encoder) Encode(g Grid) ([]byte, error) {
	w, h, err := g.Bounds()
	if err != nil {
		return nil, err
	}
	c := e.Compressor
	if c == nil {
		c = Zlib{Level: DefaultCompression}
	}
	idat, err := c.Compress(packScanlines(g, w, h))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(signature)+3*12+ihdrLen+len(idat))
	out = append(out, signature...)
	out = appendChunk(out, "IHDR", ihdr(uint32(w), uint32(h)))
	out = appendChunk(out, "IDAT", idat)
	out = appendChunk(out, "IEND", nil)
	return out, nil
}

func ihdr(width, height uint32) []byte {
	b := make([]byte, ihdrLen)
	binary.BigEndian.PutUint32(b[0:4], width)
	binary.BigEndian.PutUint32(b[4:8], height)
	b[8] = bitDepth
	b[9] = colorTypeTrue
	b[10] = compressionMethod
	b[11] = filterMethod
	b[12] = interlaceNone
	return b
}

// packScanlines serializes g row by row, each row prefixed by its filter
// type byte.
func packScanlines(g Grid, w, h int) []byte {
	stride := 3*w + 1
	buf := make([]byte, h*stride)
	for y, row := range g {
		line := buf[y*stride : (y+1)*stride]
		line[0] = filterNone
		for x, px := range row {
			copy(line[1+3*x:], px[:])
		}
	}
	return buf
}

// appendChunk appends a chunk of type typ with the given payload to dst.
func appendChunk(dst []byte, typ string, payload []byte) []byte {
	if len(typ) != 4 {
		panic("len(typ) != 4")
	}
	l := word(uint32(len(payload)))
	dst = append(dst, l[:]...)
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, payload...)
	sum := Checksum(dst[start:])
	return append(dst, sum[:]...)
}

// word returns v in big-endian byte order.
func word(v uint32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b
}
