// Package mdnsadv advertises the bridge's TCP port over mDNS, the
// Go-world analogue of how the original device made itself discoverable
// on the LAN. Grounded on the teacher's cmd/can-server/mdns.go, which
// wraps the same github.com/grandcat/zeroconf call for its own service.
package mdnsadv

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

const ServiceType = "_espcand._tcp"

// Register advertises instance (or "espcand-<hostname>" if empty) on
// port, tagged with meta as TXT records. It returns a cleanup function
// that unregisters the service; cleanup is safe to call more than once.
func Register(ctx context.Context, instance string, port int, meta []string) (func(), error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("espcand-%s", host)
	}
	svc, err := zeroconf.Register(instance, ServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	var closed bool
	return func() {
		if closed {
			return
		}
		closed = true
		close(done)
		svc.Shutdown()
		time.Sleep(50 * time.Millisecond)
	}, nil
}
