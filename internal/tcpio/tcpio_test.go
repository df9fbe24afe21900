package tcpio

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Simsys/espcand/internal/connwatch"
	"github.com/Simsys/espcand/internal/datagram"
)

func TestServerAcceptsDatagramAndReplies(t *testing.T) {
	rx := make(chan datagram.Item, 4)
	tx := make(chan datagram.Item, 4)
	watch := connwatch.New()

	s := NewServer(
		WithListenAddr("127.0.0.1:0"),
		WithTCPRx(rx),
		WithTCPTx(tx),
		WithConnWatch(watch),
		WithReadDeadline(2*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()
	<-s.Ready()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write(datagram.MagicDatagram); err != nil {
		t.Fatal(err)
	}

	select {
	case item := <-rx:
		if item.Kind != datagram.MagicItem || !item.Magic {
			t.Fatalf("got %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for datagram")
	}

	if !watch.Connected() {
		t.Fatal("expected watch to report connected")
	}

	tx <- datagram.Item{Kind: datagram.MagicItem, Magic: true}
	buf := make([]byte, len(datagram.MagicDatagram))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != string(datagram.MagicDatagram) {
		t.Fatalf("got %q", buf)
	}
}

func TestServerRejectsSecondClient(t *testing.T) {
	rx := make(chan datagram.Item, 4)
	tx := make(chan datagram.Item, 4)
	s := NewServer(WithListenAddr("127.0.0.1:0"), WithTCPRx(rx), WithTCPTx(tx))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()
	<-s.Ready()

	first, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	time.Sleep(50 * time.Millisecond)

	second, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	_ = second.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := second.Read(buf); err == nil {
		t.Fatal("expected second connection to be closed")
	}
}
