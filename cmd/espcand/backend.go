package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Simsys/espcand/internal/candrv"
	"github.com/Simsys/espcand/internal/candrv/loop"
	"github.com/Simsys/espcand/internal/candrv/socketcan"
	"github.com/Simsys/espcand/internal/candrv/uart"
	"github.com/Simsys/espcand/internal/canframe"
	"github.com/Simsys/espcand/internal/connwatch"
	"github.com/Simsys/espcand/internal/metrics"
)

// openDriver selects and opens the CAN backend named by cfg.backend.
func openDriver(ctx context.Context, cfg *appConfig, l *slog.Logger) (candrv.Driver, error) {
	switch cfg.backend {
	case "loop":
		return loop.New(cfg.chanBuffer), nil
	case "socketcan":
		return socketcan.Open(cfg.canIf, cfg.chanBuffer)
	case "uart":
		return uart.Open(ctx, cfg.serialDev, cfg.baud, cfg.serialReadTO, cfg.chanBuffer, func() {
			metrics.IncParseError()
		})
	default:
		return nil, fmt.Errorf("unknown backend %q (use loop|socketcan|uart)", cfg.backend)
	}
}

// runCanAdapter pumps driver.Recv into canRx (dropping frames while no
// host is connected, so the bounded tcp_tx channel never backs up behind
// an absent consumer — spec.md §4.8) and drains canTx into driver.Send.
func runCanAdapter(ctx context.Context, driver candrv.Driver, canRx chan<- canframe.Frame, canTx <-chan canframe.Frame, watch *connwatch.Watch, l *slog.Logger) {
	go func() {
		for {
			frame, err := driver.Recv(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.Error("can_recv_error", "error", err)
				continue
			}
			metrics.IncCanRx()
			if !watch.Connected() {
				continue
			}
			select {
			case canRx <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case frame := <-canTx:
				if err := driver.Send(frame); err != nil {
					metrics.IncError(metrics.ErrCanWrite)
					l.Error("can_send_error", "error", err, "can_id", fmt.Sprintf("0x%X", frame.ID))
					continue
				}
				metrics.IncCanTx()
			case <-ctx.Done():
				return
			}
		}
	}()
}
