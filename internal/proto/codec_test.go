package proto

import "testing"

func TestDeserSimple(t *testing.T) {
	d, err := FromBytes(40, []byte("$123,456,789\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s, err := d.GetSlice(); err != nil || string(s) != "$123" {
		t.Fatalf("got %q, %v", s, err)
	}
	if d.IsEnd() {
		t.Fatal("expected not end")
	}
	if s, err := d.GetSlice(); err != nil || string(s) != ",456" {
		t.Fatalf("got %q, %v", s, err)
	}
	if s, err := d.GetSlice(); err != nil || string(s) != ",789" {
		t.Fatalf("got %q, %v", s, err)
	}
	if !d.IsEnd() {
		t.Fatal("expected end")
	}

	d, err = FromBytes(40, []byte(",1a2b,456,1a2b3c4d5e6f7081\n"))
	if err != nil {
		t.Fatal(err)
	}
	if v, err := d.GetU32Hex(); err != nil || v != 0x1a2b {
		t.Fatalf("got %v, %v", v, err)
	}
	if v, err := d.GetU32(); err != nil || v != 456 {
		t.Fatalf("got %v, %v", v, err)
	}
	if v, err := d.GetSliceHex(); err != nil || string(v) != "\x1a\x2b\x3c\x4d\x5e\x6f\x70\x81" {
		t.Fatalf("got %v, %v", v, err)
	}
	if !d.IsEnd() {
		t.Fatal("expected end")
	}
}

func TestDeserMalformed(t *testing.T) {
	d, err := FromBytes(40, []byte(",1a2x,45a,001a2b3c4d5e6f7081,1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.GetU32Hex(); err != ParseError {
		t.Fatalf("want ParseError, got %v", err)
	}
	if _, err := d.GetU32(); err != ParseError {
		t.Fatalf("want ParseError, got %v", err)
	}
	if _, err := d.GetSliceHex(); err != ParseError {
		t.Fatalf("want ParseError, got %v", err)
	}
}

func TestDeserHexEmptyTail(t *testing.T) {
	d, err := FromBytes(40, []byte(",a2,\n"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := d.GetSliceHex()
	if err != nil || string(v) != "\xa2" {
		t.Fatalf("got %v, %v", v, err)
	}
	v, err = d.GetSliceHex()
	if err != nil || len(v) != 0 {
		t.Fatalf("got %v, %v", v, err)
	}
}

func TestSerBasics(t *testing.T) {
	s := NewSer(40)
	if err := s.AddByte('c'); err != nil || string(s.Bytes()) != "c" {
		t.Fatalf("got %q, %v", s.Bytes(), err)
	}

	s = NewSer(40)
	_ = s.AddSlice([]byte("Hello world"))
	if string(s.Bytes()) != "Hello world" {
		t.Fatalf("got %q", s.Bytes())
	}

	s = NewSer(40)
	_ = s.AddUint(4711)
	if string(s.Bytes()) != "4711" {
		t.Fatalf("got %q", s.Bytes())
	}

	s = NewSer(40)
	_ = s.AddUint(0)
	if string(s.Bytes()) != "0" {
		t.Fatalf("got %q", s.Bytes())
	}

	s = NewSer(40)
	_ = s.AddUint(4294967295)
	if string(s.Bytes()) != "4294967295" {
		t.Fatalf("got %q", s.Bytes())
	}

	s = NewSer(40)
	_ = s.AddUintHex(0x3a4b, 6)
	if string(s.Bytes()) != "003a4b" {
		t.Fatalf("got %q", s.Bytes())
	}

	s = NewSer(40)
	_ = s.AddUintHex(0, 0)
	if string(s.Bytes()) != "0" {
		t.Fatalf("got %q", s.Bytes())
	}

	s = NewSer(40)
	_ = s.AddUintHex(0xffffffff, 0)
	if string(s.Bytes()) != "ffffffff" {
		t.Fatalf("got %q", s.Bytes())
	}

	s = NewSer(40)
	_ = s.AddSliceHex([]byte("\x1a\x2b\x3c"))
	if string(s.Bytes()) != "1a2b3c" {
		t.Fatalf("got %q", s.Bytes())
	}
}

func TestErrorRoundTrip(t *testing.T) {
	for _, e := range []Error{SerializeError, ParseError, EndNotFound, BufIsFull,
		BufIsEmpty, MagicNotFound, NoBeginFound, NotSupported, UnknownCommand} {
		if got := ErrorFromBytes(e.AsBytes()); got != e {
			t.Fatalf("round trip %v -> %v", e, got)
		}
	}
	if got := ErrorFromBytes([]byte("TotallyBogus")); got != UnknownError {
		t.Fatalf("want UnknownError, got %v", got)
	}
}
