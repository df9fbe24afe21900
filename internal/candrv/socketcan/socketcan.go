//go:build linux

// Package socketcan binds a classic (non-FD) SocketCAN interface through
// github.com/brutella/can, translating its can.Frame (EFF/RTR flag bits
// packed into the 32-bit can_id, 8-byte data) to and from canframe.Frame.
package socketcan

import (
	"context"
	"errors"
	"sync"

	sockcan "github.com/brutella/can"

	"github.com/Simsys/espcand/internal/canframe"
)

// SocketCAN can_id flag bits, matching <linux/can.h> and the teacher's
// internal/can.CAN_EFF_FLAG family.
const (
	effFlag uint32 = 0x80000000
	rtrFlag uint32 = 0x40000000
	effMask uint32 = 0x1FFFFFFF
	sffMask uint32 = 0x7FF
)

// ErrClosed is returned by Send/Recv once Close has been called.
var ErrClosed = errors.New("socketcan driver closed")

// Driver is a candrv.Driver bound to one SocketCAN network interface.
type Driver struct {
	bus       *sockcan.Bus
	rx        chan canframe.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

// Open binds iface (e.g. "can0") and starts receiving in the background.
// rxBuf sizes the internal receive channel; when it is full the newly
// received frame is silently dropped (matching SocketCAN's own
// kernel-side drop-on-overrun behavior).
func Open(iface string, rxBuf int) (*Driver, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		bus:    bus,
		rx:     make(chan canframe.Frame, rxBuf),
		closed: make(chan struct{}),
	}
	bus.Subscribe(handlerFunc(func(f sockcan.Frame) {
		select {
		case d.rx <- fromBrutella(f):
		default:
		}
	}))
	go bus.ConnectAndPublish()
	return d, nil
}

// handlerFunc adapts a plain func to brutella/can's Handler interface.
type handlerFunc func(sockcan.Frame)

func (h handlerFunc) Handle(f sockcan.Frame) { h(f) }

// Recv returns the next frame received on the bus.
func (d *Driver) Recv(ctx context.Context) (canframe.Frame, error) {
	select {
	case f := <-d.rx:
		return f, nil
	case <-d.closed:
		return canframe.Frame{}, ErrClosed
	case <-ctx.Done():
		return canframe.Frame{}, ctx.Err()
	}
}

// Send transmits f on the bus.
func (d *Driver) Send(f canframe.Frame) error {
	return d.bus.Publish(toBrutella(f))
}

// Close disconnects the bus and unblocks any pending Recv.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.bus.Disconnect()
	})
	return err
}

func toBrutella(f canframe.Frame) sockcan.Frame {
	id := f.ID & sffMask
	if f.Extended {
		id = (f.ID & effMask) | effFlag
	}
	if f.Remote {
		id |= rtrFlag
	}
	return sockcan.Frame{ID: id, Length: f.DLC, Data: f.Data}
}

func fromBrutella(bf sockcan.Frame) canframe.Frame {
	extended := bf.ID&effFlag != 0
	remote := bf.ID&rtrFlag != 0
	var id uint32
	if extended {
		id = bf.ID & effMask
	} else {
		id = bf.ID & sffMask
	}
	return canframe.Frame{ID: id, Extended: extended, Remote: remote, DLC: bf.Length, Data: bf.Data}
}
