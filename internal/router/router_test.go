package router

import (
	"context"
	"testing"
	"time"

	"github.com/Simsys/espcand/internal/canframe"
	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/filter"
	"github.com/Simsys/espcand/internal/proto"
)

func newTestRouter(canRx chan canframe.Frame, canTx chan canframe.Frame, tcpRx chan datagram.Item, tcpTx chan datagram.Item) *Router {
	return New(filter.NewPFilters(), filter.NewNFilters(),
		WithCanRx(canRx), WithCanTx(canTx), WithTCPRx(tcpRx), WithTCPTx(tcpTx),
		WithClock(func() filter.Instant { return filter.Instant(0) }),
	)
}

func run(t *testing.T, r *Router) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	return cancel
}

func TestRouterForwardsUnfilteredFrame(t *testing.T) {
	canRx := make(chan canframe.Frame, 4)
	canTx := make(chan canframe.Frame, 4)
	tcpRx := make(chan datagram.Item, 4)
	tcpTx := make(chan datagram.Item, 4)
	r := newTestRouter(canRx, canTx, tcpRx, tcpTx)
	cancel := run(t, r)
	defer cancel()

	canRx <- canframe.Frame{ID: 0x123, DLC: 1, Data: [8]byte{9}}
	select {
	case item := <-tcpTx:
		if item.Kind != datagram.ReceivedFrame || item.Frame.ID != 0x123 {
			t.Fatalf("got %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestRouterDropsNFilterMatch(t *testing.T) {
	canRx := make(chan canframe.Frame, 4)
	canTx := make(chan canframe.Frame, 4)
	tcpRx := make(chan datagram.Item, 4)
	tcpTx := make(chan datagram.Item, 4)
	r := newTestRouter(canRx, canTx, tcpRx, tcpTx)
	cancel := run(t, r)
	defer cancel()

	tcpRx <- datagram.Item{Kind: datagram.NFilterItem, NFilter: filter.NFilter{Ones: 0x123, Zeros: ^uint32(0x123) & 0x7FF}}
	time.Sleep(20 * time.Millisecond)

	canRx <- canframe.Frame{ID: 0x123, DLC: 0}
	select {
	case item := <-tcpTx:
		t.Fatalf("expected drop, got %+v", item)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRouterFrameToSendForwardsToCanTx(t *testing.T) {
	canRx := make(chan canframe.Frame, 4)
	canTx := make(chan canframe.Frame, 4)
	tcpRx := make(chan datagram.Item, 4)
	tcpTx := make(chan datagram.Item, 4)
	r := newTestRouter(canRx, canTx, tcpRx, tcpTx)
	cancel := run(t, r)
	defer cancel()

	tcpRx <- datagram.Item{Kind: datagram.FrameToSend, Frame: canframe.Frame{ID: 0x42, DLC: 0}}
	select {
	case f := <-canTx:
		if f.ID != 0x42 {
			t.Fatalf("got %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestRouterEchoesEcho(t *testing.T) {
	canRx := make(chan canframe.Frame, 4)
	canTx := make(chan canframe.Frame, 4)
	tcpRx := make(chan datagram.Item, 4)
	tcpTx := make(chan datagram.Item, 4)
	r := newTestRouter(canRx, canTx, tcpRx, tcpTx)
	cancel := run(t, r)
	defer cancel()

	tcpRx <- datagram.Item{Kind: datagram.Echo}
	select {
	case item := <-tcpTx:
		if item.Kind != datagram.Echo {
			t.Fatalf("got %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestRouterPFilterCapacityEmitsError(t *testing.T) {
	canRx := make(chan canframe.Frame, 4)
	canTx := make(chan canframe.Frame, 4)
	tcpRx := make(chan datagram.Item, 32)
	tcpTx := make(chan datagram.Item, 32)
	r := newTestRouter(canRx, canTx, tcpRx, tcpTx)
	cancel := run(t, r)
	defer cancel()

	for i := 0; i < 10; i++ {
		tcpRx <- datagram.Item{Kind: datagram.PFilterItem, PFilter: filter.PrePFilter{Ones: uint32(i)}}
	}
	time.Sleep(50 * time.Millisecond)
	tcpRx <- datagram.Item{Kind: datagram.PFilterItem, PFilter: filter.PrePFilter{Ones: 99}}

	select {
	case item := <-tcpTx:
		if item.Kind != datagram.ErrorItem || item.Err != proto.BufIsFull {
			t.Fatalf("got %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for capacity error")
	}
}

func TestRouterShowFiltersEmitsEachEntry(t *testing.T) {
	canRx := make(chan canframe.Frame, 4)
	canTx := make(chan canframe.Frame, 4)
	tcpRx := make(chan datagram.Item, 4)
	tcpTx := make(chan datagram.Item, 4)
	r := newTestRouter(canRx, canTx, tcpRx, tcpTx)
	cancel := run(t, r)
	defer cancel()

	tcpRx <- datagram.Item{Kind: datagram.PFilterItem, PFilter: filter.PrePFilter{Ones: 7}}
	time.Sleep(20 * time.Millisecond)
	tcpRx <- datagram.Item{Kind: datagram.ShowFilters}

	select {
	case item := <-tcpTx:
		if item.Kind != datagram.PFilterItem || item.PFilter.Ones != 7 {
			t.Fatalf("got %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}
