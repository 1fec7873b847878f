// Package fb captures the visible contents of a Linux framebuffer device.
package fb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/Merovius/truepng/internal/png"

	"golang.org/x/sys/unix"
)

type Device struct {
	fd    uintptr
	mmap  []byte
	finfo FixScreeninfo
}

func Open(dev string) (*Device, error) {
	fd, err := unix.Open(dev, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", dev, err)
	}
	if int(uintptr(fd)) != fd {
		unix.Close(fd)
		return nil, errors.New("fd overflows")
	}
	d := &Device{fd: uintptr(fd)}

	_, _, eno := unix.Syscall(unix.SYS_IOCTL, d.fd, FBIOGET_FSCREENINFO, uintptr(unsafe.Pointer(&d.finfo)))
	if eno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("FBIOGET_FSCREENINFO: %v", eno)
	}

	d.mmap, err = unix.Mmap(fd, 0, int(d.finfo.Smem_len), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap: %v", err)
	}
	return d, nil
}

func (d *Device) VarScreeninfo() (VarScreeninfo, error) {
	var vinfo VarScreeninfo
	_, _, eno := unix.Syscall(unix.SYS_IOCTL, d.fd, FBIOGET_VSCREENINFO, uintptr(unsafe.Pointer(&vinfo)))
	if eno != 0 {
		return vinfo, fmt.Errorf("FBIOGET_VSCREENINFO: %v", eno)
	}
	return vinfo, nil
}

// Grid copies the visible region of the framebuffer into a new grid.
func (d *Device) Grid() (png.Grid, error) {
	vinfo, err := d.VarScreeninfo()
	if err != nil {
		return nil, err
	}
	visual := image.Rect(int(vinfo.Xoffset), int(vinfo.Yoffset), int(vinfo.Xoffset+vinfo.Xres), int(vinfo.Yoffset+vinfo.Yres))
	return convert(d.mmap, int(d.finfo.Line_length), visual, &vinfo)
}

func (d *Device) Close() error {
	e1 := unix.Munmap(d.mmap)
	if e2 := unix.Close(int(d.fd)); e2 != nil {
		return e2
	}
	return e1
}

// convert decodes the pixels of r in pix, which has the layout described
// by vinfo and the given line length.
func convert(pix []byte, stride int, r image.Rectangle, vinfo *VarScreeninfo) (png.Grid, error) {
	bpp := int(vinfo.Bits_per_pixel) / 8
	switch vinfo.Bits_per_pixel {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%d bits per pixel unsupported", vinfo.Bits_per_pixel)
	}
	if r.Empty() {
		return nil, errors.New("empty visual resolution")
	}
	if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X*bpp > stride || r.Max.Y*stride > len(pix) {
		return nil, errors.New("visual resolution not contained in framebuffer")
	}
	for _, f := range []Bitfield{vinfo.Red, vinfo.Green, vinfo.Blue} {
		if f.Length == 0 || f.Length > 8 || f.Offset+f.Length > uint32(8*bpp) {
			return nil, fmt.Errorf("unsupported channel layout %+v", f)
		}
	}

	g := png.NewGrid(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g[y-r.Min.Y]
		for x := r.Min.X; x < r.Max.X; x++ {
			v := pixel(pix[y*stride+x*bpp:], bpp)
			row[x-r.Min.X] = png.RGB{
				channel(v, vinfo.Red),
				channel(v, vinfo.Green),
				channel(v, vinfo.Blue),
			}
		}
	}
	return g, nil
}

// pixel reads a little-endian pixel value of bpp bytes.
func pixel(b []byte, bpp int) uint32 {
	switch bpp {
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	case 3:
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	}
	return binary.LittleEndian.Uint32(b)
}

// channel extracts f from v and scales it to eight bits.
func channel(v uint32, f Bitfield) uint8 {
	c := (v >> f.Offset) & (1<<f.Length - 1)
	if f.Length == 8 {
		return uint8(c)
	}
	m := uint32(1)<<f.Length - 1
	return uint8((c*255 + m/2) / m)
}
