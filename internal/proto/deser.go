package proto

// Deser is a fixed-capacity streaming deserializer. It consumes one
// comma- or newline-terminated field at a time from a byte image built up
// by Push, exactly mirroring the framing the rx buffer hands it.
type Deser struct {
	buf   []byte
	head  int
	isEnd bool
}

// NewDeser returns an empty Deser backed by a zero-length, cap-capacity
// buffer, ready to be filled via Push.
func NewDeser(cap int) *Deser {
	return &Deser{buf: make([]byte, 0, cap)}
}

// FromBytes returns a Deser pre-loaded with slice (copied), head at 0.
func FromBytes(cap int, slice []byte) (*Deser, error) {
	d := NewDeser(cap)
	if len(slice) > cap {
		return nil, NotSupported
	}
	d.buf = append(d.buf, slice...)
	return d, nil
}

// Push appends one byte to the backing image, as the rx buffer does while
// scanning a datagram into shape. It returns BufIsFull at capacity.
func (d *Deser) Push(b byte) error {
	if len(d.buf) >= cap(d.buf) {
		return BufIsFull
	}
	d.buf = append(d.buf, b)
	return nil
}

// Bytes returns the raw image accumulated so far.
func (d *Deser) Bytes() []byte { return d.buf }

// IsEnd reports whether the last field consumed ended with '\n'.
func (d *Deser) IsEnd() bool { return d.isEnd }

// GetSlice returns the raw bytes of the next field, including the leading
// separator byte for every field but the first.
func (d *Deser) GetSlice() ([]byte, error) {
	start := d.head
	for {
		d.head++
		if d.head >= len(d.buf) {
			return nil, ParseError
		}
		b := d.buf[d.head]
		if b == ',' || b == '\n' {
			if b == '\n' {
				d.isEnd = true
			}
			return d.buf[start:d.head], nil
		}
	}
}

// GetBool decodes a single-byte boolean field: '0' is false, any other
// single byte is true.
func (d *Deser) GetBool() (bool, error) {
	slice, err := d.GetSlice()
	if err != nil {
		return false, err
	}
	slice = slice[1:]
	if len(slice) != 1 {
		return false, ParseError
	}
	return slice[0] != '0', nil
}

// GetU32 decodes a base-10 unsigned field. It rejects non-digit bytes and
// performs no overflow check, matching the upstream codec (spec.md §9).
func (d *Deser) GetU32() (uint32, error) {
	slice, err := d.GetSlice()
	if err != nil {
		return 0, err
	}
	slice = slice[1:]
	var r uint32
	for _, b := range slice {
		r *= 10
		if b < '0' || b > '9' {
			return 0, ParseError
		}
		r += uint32(b - '0')
	}
	return r, nil
}

// GetU32Hex decodes a lowercase-hex unsigned field. Uppercase and non-hex
// bytes are rejected.
func (d *Deser) GetU32Hex() (uint32, error) {
	slice, err := d.GetSlice()
	if err != nil {
		return 0, err
	}
	slice = slice[1:]
	var r uint32
	for _, b := range slice {
		r *= 16
		switch {
		case b >= '0' && b <= '9':
			r += uint32(b - '0')
		case b >= 'a' && b <= 'f':
			r += uint32(b-'a') + 10
		default:
			return 0, ParseError
		}
	}
	return r, nil
}

// GetSliceHex decodes an even-length lowercase-hex field into a byte slice
// of capacity 8, matching the CAN data payload's maximum size.
func (d *Deser) GetSliceHex() ([]byte, error) {
	slice, err := d.GetSlice()
	if err != nil {
		return nil, err
	}
	slice = slice[1:]
	if len(slice)&1 == 1 {
		return nil, ParseError
	}
	nibble := func(b byte) (byte, error) {
		switch {
		case b >= '0' && b <= '9':
			return b - '0', nil
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10, nil
		default:
			return 0, ParseError
		}
	}
	out := make([]byte, 0, 8)
	for i := 0; i < len(slice); i += 2 {
		hi, err := nibble(slice[i])
		if err != nil {
			return nil, err
		}
		lo, err := nibble(slice[i+1])
		if err != nil {
			return nil, err
		}
		if len(out) >= 8 {
			return nil, ParseError
		}
		out = append(out, hi*16+lo)
	}
	return out, nil
}
