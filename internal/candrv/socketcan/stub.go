//go:build !linux

package socketcan

import (
	"context"
	"errors"

	"github.com/Simsys/espcand/internal/canframe"
)

// ErrUnsupported is returned by Open on platforms without SocketCAN.
var ErrUnsupported = errors.New("socketcan backend is linux-only")

// Driver is an unusable stub so non-linux builds still compile against
// the same package API.
type Driver struct{}

// Open always fails on non-linux platforms.
func Open(iface string, rxBuf int) (*Driver, error) {
	return nil, ErrUnsupported
}

func (d *Driver) Recv(ctx context.Context) (canframe.Frame, error) {
	return canframe.Frame{}, ErrUnsupported
}

func (d *Driver) Send(f canframe.Frame) error { return ErrUnsupported }

func (d *Driver) Close() error { return nil }
