package uart

import (
	"bytes"
	"encoding/binary"

	"github.com/Simsys/espcand/internal/canframe"
)

// Frame layout on the wire: [0x2D, 0xD4, len, INS, FLAGS, ID(4, BE),
// PAYLOAD(0..8), checksum], generalized from the teacher's Ampio UART
// envelope to carry a full canframe.Frame (extended/remote bits and a
// 4-byte big-endian id instead of an always-extended id).
const (
	preamble0 = 0x2D
	preamble1 = 0xD4
	insSend   = 2 // INS: CAN frame send/receive

	// ln = dataBytes + 1(checksum); dataBytes = INS(1)+FLAGS(1)+ID(4)+PAYLOAD(0..8)
	minLen = 6 + 0 + 1
	maxLen = 6 + 8 + 1
)

func flagsByte(f canframe.Frame) byte {
	b := f.DLC & 0x0f
	if f.Remote {
		b |= 1 << 6
	}
	if f.Extended {
		b |= 1 << 7
	}
	return b
}

func frameFromFlags(flags byte, id uint32, data []byte) canframe.Frame {
	f := canframe.Frame{
		ID:       id,
		DLC:      flags & 0x0f,
		Remote:   flags&(1<<6) != 0,
		Extended: flags&(1<<7) != 0,
	}
	copy(f.Data[:], data)
	return f
}

func checksumFrame(body []byte) []byte {
	n := len(body)
	frame := make([]byte, n+4)
	frame[0] = preamble0
	frame[1] = preamble1
	frame[2] = byte(n + 1)
	sum := frame[2] + preamble0
	for i, b := range body {
		frame[3+i] = b
		sum += b
	}
	frame[3+n] = sum
	return frame
}

// Encode renders f as a complete UART-framed byte sequence.
func Encode(f canframe.Frame) []byte {
	body := make([]byte, 6+f.DLC)
	body[0] = insSend
	body[1] = flagsByte(f)
	binary.BigEndian.PutUint32(body[2:6], f.ID)
	copy(body[6:], f.Data[:f.DLC])
	return checksumFrame(body)
}

// CompactBuffer reclaims consumed prefix capacity once the accumulator has
// grown large relative to its unread bytes.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < 1024 {
		return false
	}
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// DecodeStream scans in for complete frames, invoking out for each and
// reporting how many malformed resyncs it had to perform.
func DecodeStream(in *bytes.Buffer, out func(canframe.Frame)) (malformed int) {
	header := []byte{preamble0, preamble1}
	for {
		data := in.Bytes()
		CompactBuffer(in)
		if len(data) < 3 {
			return malformed
		}
		i := bytes.Index(data, header)
		if i < 0 {
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return malformed
		}
		if i > 0 {
			in.Next(i)
			continue
		}
		if len(data) < 4 {
			return malformed
		}
		ln := int(data[2])
		if ln < minLen || ln > maxLen {
			malformed++
			in.Next(1)
			continue
		}
		req := 3 + ln
		if len(data) < req {
			return malformed
		}
		sum := uint(preamble0) + uint(data[2])
		for _, b := range data[3 : req-1] {
			sum += uint(b)
		}
		if byte(sum) != data[req-1] {
			malformed++
			in.Next(1)
			continue
		}
		flags := data[4]
		id := binary.BigEndian.Uint32(data[5:9])
		payload := data[9 : req-1]
		out(frameFromFlags(flags, id, payload))
		in.Next(req)
	}
}
