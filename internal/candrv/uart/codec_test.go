package uart

import (
	"bytes"
	"testing"

	"github.com/Simsys/espcand/internal/canframe"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := canframe.Frame{ID: 0x1a2b3c, Extended: true, DLC: 3, Data: [8]byte{0xaa, 0xbb, 0xcc}}
	enc := Encode(f)
	buf := bytes.NewBuffer(enc)
	var got []canframe.Frame
	malformed := DecodeStream(buf, func(d canframe.Frame) { got = append(got, d) })
	if malformed != 0 {
		t.Fatalf("malformed = %d", malformed)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames", len(got))
	}
	if got[0].ID != f.ID || got[0].DLC != f.DLC || !got[0].Extended {
		t.Fatalf("got %+v", got[0])
	}
	if !bytes.Equal(got[0].Data[:3], f.Data[:3]) {
		t.Fatalf("data mismatch: %v", got[0].Data)
	}
}

func TestDecodeStreamResyncsOnGarbage(t *testing.T) {
	f := canframe.Frame{ID: 5, DLC: 1, Data: [8]byte{0x42}}
	enc := Encode(f)
	buf := bytes.NewBuffer(append([]byte{0x00, 0xff, 0x2d}, enc...))
	var got []canframe.Frame
	malformed := DecodeStream(buf, func(d canframe.Frame) { got = append(got, d) })
	if len(got) != 1 || got[0].ID != 5 {
		t.Fatalf("got %+v, malformed=%d", got, malformed)
	}
}

func TestDecodeStreamIncompleteFrameWaits(t *testing.T) {
	f := canframe.Frame{ID: 5, DLC: 8, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	enc := Encode(f)
	buf := bytes.NewBuffer(enc[:len(enc)-2])
	var got []canframe.Frame
	DecodeStream(buf, func(d canframe.Frame) { got = append(got, d) })
	if len(got) != 0 {
		t.Fatalf("expected no frames from an incomplete buffer, got %d", len(got))
	}
	if buf.Len() != len(enc)-2 {
		t.Fatalf("expected buffer to be untouched, len=%d", buf.Len())
	}
}
