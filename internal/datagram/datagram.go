// Package datagram implements the line-oriented protocol items exchanged
// between host, bridge, and flash storage: a closed set of tagged
// messages multiplexed over the same comma-separated wire form as their
// payload types.
package datagram

import (
	"bytes"

	"github.com/Simsys/espcand/internal/canframe"
	"github.com/Simsys/espcand/internal/filter"
	"github.com/Simsys/espcand/internal/proto"
)

// Kind identifies which variant of Item is populated.
type Kind uint8

const (
	ClearFilters Kind = iota
	Echo
	End
	ErrorItem
	FrameToSend
	MagicItem
	NFilterItem
	PFilterItem
	ReceivedFrame
	Save
	ShowFilters
)

// Item is the tagged union of every datagram the wire protocol carries.
// Only the field matching Kind is meaningful.
type Item struct {
	Kind    Kind
	Err     proto.Error
	Frame   canframe.Frame
	NFilter filter.NFilter
	PFilter filter.PrePFilter
	Magic   bool
}

var tags = map[Kind][]byte{
	ClearFilters:  []byte("$clearfilt"),
	Echo:          []byte("$echo"),
	End:           []byte("$end"),
	ErrorItem:     []byte("$err"),
	FrameToSend:   []byte("$fts"),
	MagicItem:     []byte("$magic"),
	NFilterItem:   []byte("$nfilt"),
	PFilterItem:   []byte("$pfilt"),
	ReceivedFrame: []byte("$rf"),
	Save:          []byte("$save"),
	ShowFilters:   []byte("$filt?"),
}

// magic is the fixed 8-byte literal stamped at the head of the persisted
// configuration image.
var magic = []byte{0x67, 0xa3, 0x52, 0x84, 0xe6, 0x2a, 0x4b, 0x25}

// MagicDatagram is the exact wire encoding of Item{Kind: MagicItem}.
var MagicDatagram = []byte("$magic,67a35284e62a4b25\n")

// Deserialize reads one complete datagram, dispatching on its leading tag.
// It reports ParseError for an unrecognized tag or for any trailing bytes
// left after the variant's own fields are consumed.
func Deserialize(deser *proto.Deser) (Item, error) {
	slice, err := deser.GetSlice()
	if err != nil {
		return Item{}, err
	}
	item := Item{}
	matched := false
	for kind, tag := range tags {
		if bytes.Equal(slice, tag) {
			item.Kind = kind
			matched = true
			break
		}
	}
	if !matched {
		return Item{}, proto.ParseError
	}
	switch item.Kind {
	case ErrorItem:
		name, err := deser.GetSlice()
		if err != nil {
			return Item{}, err
		}
		item.Err = proto.ErrorFromBytes(name[1:])
	case FrameToSend, ReceivedFrame:
		f, err := canframe.Deserialize(deser)
		if err != nil {
			return Item{}, err
		}
		item.Frame = f
	case MagicItem:
		ok, err := deserializeMagic(deser)
		if err != nil {
			return Item{}, err
		}
		item.Magic = ok
	case NFilterItem:
		f, err := filter.ParseNFilter(deser)
		if err != nil {
			return Item{}, err
		}
		item.NFilter = f
	case PFilterItem:
		f, err := filter.ParsePrePFilter(deser)
		if err != nil {
			return Item{}, err
		}
		item.PFilter = f
	}
	if !deser.IsEnd() {
		return Item{}, proto.ParseError
	}
	return item, nil
}

func deserializeMagic(deser *proto.Deser) (bool, error) {
	got, err := deser.GetSliceHex()
	if err != nil {
		return false, err
	}
	if !bytes.Equal(got, magic) {
		return false, proto.MagicNotFound
	}
	return true, nil
}

// Serialize writes item's full line, including the trailing newline.
func Serialize(item Item, ser *proto.Ser) error {
	if err := ser.AddSlice(tags[item.Kind]); err != nil {
		return err
	}
	var err error
	switch item.Kind {
	case ErrorItem:
		if err = ser.AddByte(','); err == nil {
			err = ser.AddSlice(item.Err.AsBytes())
		}
	case FrameToSend, ReceivedFrame:
		err = item.Frame.Serialize(ser)
	case MagicItem:
		if err = ser.AddByte(','); err == nil {
			err = ser.AddSliceHex(magic)
		}
	case NFilterItem:
		if err = ser.AddByte(','); err == nil {
			err = item.NFilter.Serialize(ser)
		}
	case PFilterItem:
		if err = ser.AddByte(','); err == nil {
			err = item.PFilter.Serialize(ser)
		}
	}
	if err != nil {
		return err
	}
	return ser.AddByte('\n')
}
