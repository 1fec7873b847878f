package png

// crcPoly is the reflected CRC-32 polynomial used by PNG.
const crcPoly = 0xedb88320

var crcTable = makeCRCTable()

func makeCRCTable() *[256]uint32 {
	t := new([256]uint32)
	for n := range t {
		c := uint32(n)
		for k := 0; k < 8; k++ {
			if c&1 == 1 {
				c = crcPoly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[n] = c
	}
	return t
}

// crcUpdate feeds p into a running, non-inverted CRC accumulator.
func crcUpdate(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = crcTable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// crc returns the CRC-32 of the concatenation of ps.
func crc(ps ...[]byte) uint32 {
	c := uint32(0xffffffff)
	for _, p := range ps {
		c = crcUpdate(c, p)
	}
	return c ^ 0xffffffff
}

// Checksum returns the big-endian CRC-32 of p, as stored at the end of a
// chunk.
func Checksum(p []byte) [4]byte {
	return word(crc(p))
}
