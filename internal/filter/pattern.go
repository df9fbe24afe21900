package filter

import "github.com/Simsys/espcand/internal/proto"

// ParsePattern accepts an ASCII string of exactly 11 or 29 non-underscore
// characters from {'0','1','*'} interleaved with arbitrary '_' separators.
// It returns the ID width (extended) and the ones/zeros bitmasks.
func ParsePattern(bytes []byte) (extended bool, ones, zeros uint32, err error) {
	bitCount := 0
	for _, b := range bytes {
		switch b {
		case '0', '1', '*':
			bitCount++
		case '_':
		default:
			return false, 0, 0, proto.ParseError
		}
	}
	switch bitCount {
	case 11:
		extended = false
	case 29:
		extended = true
	default:
		return false, 0, 0, proto.ParseError
	}
	for _, b := range bytes {
		if b != '_' {
			ones <<= 1
			zeros <<= 1
		}
		switch b {
		case '0':
			zeros |= 1
		case '1':
			ones |= 1
		}
	}
	return extended, ones, zeros, nil
}

// EmitPattern writes the MSB-first ternary pattern, inserting '_' every 4
// bits counted from the LSB (the low nibble is emitted last with no
// trailing separator).
func EmitPattern(ser *proto.Ser, extended bool, ones, zeros uint32) error {
	length := 11
	if extended {
		length = 29
	}
	// Build LSB-first, then emit in reverse (MSB-first) inserting '_'
	// every 4 bits counted from the LSB.
	out := make([]byte, 0, length+length/4+1)
	for idx := 1; idx <= length; idx++ {
		one := ones & 1
		zero := zeros & 1
		var b byte
		switch {
		case one == 1:
			b = '1'
		case zero == 1:
			b = '0'
		default:
			b = '*'
		}
		ones >>= 1
		zeros >>= 1
		out = append(out, b)
		if idx&3 == 0 {
			out = append(out, '_')
		}
	}
	// out is LSB-first with separators placed after every 4th bit; reverse
	// it to get the MSB-first wire form.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return ser.AddSlice(out)
}
