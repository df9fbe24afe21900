// Package candrv defines the CAN driver contract the router talks to and
// collects its concrete backends as subpackages (loop, socketcan, uart),
// mirroring how the teacher's cmd/can-server selects among serial and
// socketcan backends behind a single interface.
package candrv

import (
	"context"

	"github.com/Simsys/espcand/internal/canframe"
)

// Driver is a bidirectional CAN transport: a blocking-awaitable
// recv/send pair on already-configured hardware, matching spec.md §1's
// "the CAN driver provides blocking-awaitable send_frame / recv_frame
// operations" external contract.
type Driver interface {
	// Recv blocks until a frame arrives, ctx is canceled, or the driver
	// is closed.
	Recv(ctx context.Context) (canframe.Frame, error)
	// Send transmits a single frame.
	Send(canframe.Frame) error
	// Close releases the underlying transport. Recv unblocks with an
	// error after Close returns.
	Close() error
}
