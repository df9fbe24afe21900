// Package canframe implements the in-memory CAN frame value type and its
// ASCII wire codec.
package canframe

import "github.com/Simsys/espcand/internal/proto"

// Frame is a classic (non-FD) CAN frame: a 32-bit-stored identifier (11 or
// 29 significant bits), an extended/remote flag pair, a DLC, and exactly
// 8 bytes of backing storage (only the first DLC bytes are meaningful).
// It is a plain value type with bitwise equality, never holding a pointer.
type Frame struct {
	ID       uint32
	Extended bool
	Remote   bool
	DLC      uint8
	Data     [8]byte
}

// infoByte packs (dlc: 4 bits, reserved: 2, remote: 1, extended: 1), low
// bit first, matching the wire's single hex-encoded info byte.
func (f Frame) infoByte() byte {
	b := f.DLC & 0x0f
	if f.Remote {
		b |= 1 << 6
	}
	if f.Extended {
		b |= 1 << 7
	}
	return b
}

func frameFromInfo(id uint32, info byte, data []byte) (Frame, error) {
	f := Frame{
		ID:       id,
		DLC:      info & 0x0f,
		Remote:   info&(1<<6) != 0,
		Extended: info&(1<<7) != 0,
	}
	if !f.Remote {
		if len(data) != int(f.DLC) {
			return Frame{}, proto.ParseError
		}
	}
	if len(data) > 8 {
		return Frame{}, proto.ParseError
	}
	copy(f.Data[:], data)
	return f, nil
}

// Serialize writes the wire form ",<id_hex>,<info_hex>,<data_hex>"; data_hex
// is omitted when the frame is a remote request.
func (f Frame) Serialize(ser *proto.Ser) error {
	if err := ser.AddByte(','); err != nil {
		return err
	}
	if err := ser.AddUintHex(f.ID, 0); err != nil {
		return err
	}
	if err := ser.AddByte(','); err != nil {
		return err
	}
	if err := ser.AddUintHex(uint32(f.infoByte()), 0); err != nil {
		return err
	}
	if err := ser.AddByte(','); err != nil {
		return err
	}
	if !f.Remote {
		return ser.AddSliceHex(f.Data[:f.DLC])
	}
	return nil
}

// Deserialize reads the three comma fields written by Serialize. For
// non-remote frames the decoded data length must equal the info byte's dlc
// field, or ParseError is returned (spec.md §4.3).
func Deserialize(deser *proto.Deser) (Frame, error) {
	id, err := deser.GetU32Hex()
	if err != nil {
		return Frame{}, err
	}
	info, err := deser.GetU32Hex()
	if err != nil {
		return Frame{}, err
	}
	if info > 0xff {
		return Frame{}, proto.ParseError
	}
	data, err := deser.GetSliceHex()
	if err != nil {
		return Frame{}, err
	}
	return frameFromInfo(id, byte(info), data)
}
