package png

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/adler32"

	"github.com/klauspost/compress/zlib"
)

// A Compressor turns the packed scanlines into the zlib stream stored in
// the IDAT chunk. Errors are returned to the caller of Encode unchanged.
type Compressor interface {
	Compress(p []byte) ([]byte, error)
}

// CompressorFunc adapts a function to the Compressor interface.
type CompressorFunc func(p []byte) ([]byte, error)

func (f CompressorFunc) Compress(p []byte) ([]byte, error) { return f(p) }

// CompressionLevel selects the zlib effort. The zero value is the default
// level.
type CompressionLevel int

const (
	DefaultCompression CompressionLevel = 0
	NoCompression      CompressionLevel = -1
	BestSpeed          CompressionLevel = -2
	BestCompression    CompressionLevel = -3
)

func (l CompressionLevel) zlibLevel() (int, error) {
	switch l {
	case DefaultCompression:
		return zlib.DefaultCompression, nil
	case NoCompression:
		return zlib.NoCompression, nil
	case BestSpeed:
		return zlib.BestSpeed, nil
	case BestCompression:
		return zlib.BestCompression, nil
	}
	if l >= zlib.BestSpeed && l <= zlib.BestCompression {
		return int(l), nil
	}
	return 0, fmt.Errorf("png: invalid compression level %d", int(l))
}

// Zlib compresses with DEFLATE at the given level.
type Zlib struct {
	Level CompressionLevel
}

func (z Zlib) Compress(p []byte) ([]byte, error) {
	level, err := z.Level.zlibLevel()
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	zw, err := zlib.NewWriterLevel(buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(p); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stored wraps its input in a zlib stream made of uncompressed DEFLATE
// blocks. It is the cheapest valid IDAT payload.
type Stored struct{}

const maxStoredBlock = 0xffff

func (Stored) Compress(p []byte) ([]byte, error) {
	sum := word(adler32.Checksum(p))
	out := make([]byte, 0, storedLen(len(p)))
	// zlib header: deflate with a 32K window, fastest level. 0x7801 is a
	// multiple of 31.
	out = append(out, 0x78, 0x01)
	for first := true; first || len(p) > 0; first = false {
		n := len(p)
		if n > maxStoredBlock {
			n = maxStoredBlock
		}
		var hdr [5]byte
		if n == len(p) {
			hdr[0] = 1 // BFINAL, BTYPE=00
		}
		binary.LittleEndian.PutUint16(hdr[1:], uint16(n))
		binary.LittleEndian.PutUint16(hdr[3:], ^uint16(n))
		out = append(out, hdr[:]...)
		out = append(out, p[:n]...)
		p = p[n:]
	}
	return append(out, sum[:]...), nil
}

func storedLen(n int) int {
	nblocks := 1
	if n > 0 {
		nblocks = 1 + (n-1)/maxStoredBlock
	}
	return 2 + n + nblocks*5 + 4
}

// Identity returns its input unchanged. The result is not a valid zlib
// stream; it only exists to inspect chunk framing.
var Identity Compressor = CompressorFunc(func(p []byte) ([]byte, error) {
	return p, nil
})
