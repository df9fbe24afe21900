package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/Simsys/espcand/internal/canframe"
	"github.com/Simsys/espcand/internal/connwatch"
	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/filter"
	"github.com/Simsys/espcand/internal/metrics"
	"github.com/Simsys/espcand/internal/mdnsadv"
	"github.com/Simsys/espcand/internal/router"
	"github.com/Simsys/espcand/internal/tcpio"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("espcand %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	store, err := initStore(cfg.nvsPath)
	if err != nil {
		l.Error("nvs_open_error", "error", err)
		return
	}
	pfilters := filter.NewPFilters()
	nfilters := filter.NewNFilters()
	loadStartupConfig(ctx, store, pfilters, nfilters, l)

	driver, err := openDriver(ctx, cfg, l)
	if err != nil {
		l.Error("backend_init_error", "error", err)
		return
	}
	defer func() { _ = driver.Close() }()

	canRx := make(chan canframe.Frame, cfg.chanBuffer)
	canTx := make(chan canframe.Frame, cfg.chanBuffer)
	tcpRx := make(chan datagram.Item, cfg.chanBuffer)
	tcpTx := make(chan datagram.Item, cfg.chanBuffer)
	watch := connwatch.New()

	runCanAdapter(ctx, driver, canRx, canTx, watch, l)

	rt := router.New(pfilters, nfilters,
		router.WithCanRx(canRx),
		router.WithCanTx(canTx),
		router.WithTCPRx(tcpRx),
		router.WithTCPTx(tcpTx),
		router.WithStore(store),
		router.WithLogger(l),
	)
	go func() { _ = rt.Run(ctx) }()

	srv := tcpio.NewServer(
		tcpio.WithListenAddr(cfg.listenAddr),
		tcpio.WithLogger(l),
		tcpio.WithReadDeadline(cfg.readDeadline),
		tcpio.WithTCPRx(tcpRx),
		tcpio.WithTCPTx(tcpTx),
		tcpio.WithConnWatch(watch),
	)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		addr := srv.Addr()
		var portNum int
		if _, p, perr := net.SplitHostPort(addr); perr == nil {
			if pn, err := strconv.Atoi(p); err == nil {
				portNum = pn
			}
		}
		if portNum == 0 {
			if i := strings.LastIndex(addr, ":"); i >= 0 {
				if pn, err := strconv.Atoi(addr[i+1:]); err == nil {
					portNum = pn
				}
			}
		}
		meta := []string{"backend=" + cfg.backend, "version=" + version, "commit=" + commit}
		cleanupMDNS, err := mdnsadv.Register(ctx, cfg.mdnsName, portNum, meta)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsadv.ServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	_ = srv.Shutdown(context.Background())
	wg.Wait()
}
