package datagram

import (
	"testing"

	"github.com/Simsys/espcand/internal/proto"
)

func roundTrip(t *testing.T, line string) {
	t.Helper()
	deser, err := proto.FromBytes(60, []byte(line))
	if err != nil {
		t.Fatal(err)
	}
	item, err := Deserialize(deser)
	if err != nil {
		t.Fatalf("deserialize %q: %v", line, err)
	}
	ser := proto.NewSer(60)
	if err := Serialize(item, ser); err != nil {
		t.Fatalf("serialize %q: %v", line, err)
	}
	if got := string(ser.Bytes()); got != line {
		t.Fatalf("got %q want %q", got, line)
	}
}

func TestComItemRoundTrips(t *testing.T) {
	for _, line := range []string{
		"$rf,12a,3,1a2b3c\n",
		"$fts,12a,c3,\n",
		"$err,EndNotFound\n",
		"$echo\n",
		"$end\n",
		"$clearfilt\n",
		"$save\n",
		"$filt?\n",
		"$magic,67a35284e62a4b25\n",
		"$nfilt,111_1111_0000\n",
		"$pfilt,17,1_1111_0000_1111_0000_11*1_000*_1111\n",
	} {
		roundTrip(t, line)
	}
}

func TestComItemUnknownTag(t *testing.T) {
	deser, err := proto.FromBytes(40, []byte("$bogus\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Deserialize(deser); err != proto.ParseError {
		t.Fatalf("want ParseError, got %v", err)
	}
}

func TestComItemBadMagic(t *testing.T) {
	deser, err := proto.FromBytes(60, []byte("$magic,0000000000000000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Deserialize(deser); err != proto.MagicNotFound {
		t.Fatalf("want MagicNotFound, got %v", err)
	}
}

func TestComItemTrailingGarbageRejected(t *testing.T) {
	deser, err := proto.FromBytes(40, []byte("$echo,extra\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Deserialize(deser); err != proto.ParseError {
		t.Fatalf("want ParseError, got %v", err)
	}
}
