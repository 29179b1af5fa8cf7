package trackcomm

import "encoding/binary"

// A sensor frame is
//
//	<magic> <trackid> <b0> <b1> <b2> <b3> <checksum>
//
// b0..b3 is the lap time in milliseconds, big endian. The checksum is
// the xor of trackid to b3.
const (
	Magic     byte = 0xbe
	FrameSize      = 7
)

type Frame struct {
	TrackID int
	LapTime int64
}

func checksum(b []byte) byte {
	var c byte
	for _, v := range b {
		c ^= v
	}
	return c
}

// Encode returns the wire form of f
func (f Frame) Encode() []byte {
	buf := make([]byte, FrameSize)
	buf[0] = Magic
	buf[1] = byte(f.TrackID)
	binary.BigEndian.PutUint32(buf[2:6], uint32(f.LapTime))
	buf[6] = checksum(buf[1:6])
	return buf
}

// Parser extracts frames from a byte stream. Garbage and frames with a
// bad checksum are skipped up to the next magic byte.
type Parser struct {
	buf     []byte
	skipped int
}

// Feed appends data and returns all complete frames.
func (p *Parser) Feed(data []byte) []Frame {
	p.buf = append(p.buf, data...)
	var ret []Frame
	for {
		start := indexOf(p.buf, Magic)
		if start < 0 {
			p.skipped += len(p.buf)
			p.buf = p.buf[:0]
			return ret
		}
		p.skipped += start
		p.buf = p.buf[start:]
		if len(p.buf) < FrameSize {
			return ret
		}
		if checksum(p.buf[1:6]) != p.buf[6] {
			// resync behind this magic byte
			p.skipped++
			p.buf = p.buf[1:]
			continue
		}
		ret = append(ret, Frame{
			TrackID: int(p.buf[1]),
			LapTime: int64(binary.BigEndian.Uint32(p.buf[2:6])),
		})
		p.buf = p.buf[FrameSize:]
	}
}

// Skipped returns the number of bytes dropped so far
func (p *Parser) Skipped() int {
	return p.skipped
}

func indexOf(b []byte, v byte) int {
	for i, c := range b {
		if c == v {
			return i
		}
	}
	return -1
}
