package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Simsys/espcand/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"can_rx", snap.CanRx,
					"can_tx", snap.CanTx,
					"tcp_rx", snap.TCPRx,
					"tcp_tx", snap.TCPTx,
					"forwarded", snap.Forwarded,
					"dropped_nfilter", snap.DroppedN,
					"dropped_pfilter", snap.DroppedP,
					"persist_saves", snap.PersistSaves,
					"persist_loads", snap.PersistLoads,
					"parse_errors", snap.ParseErrors,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
