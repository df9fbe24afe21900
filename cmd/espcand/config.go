package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	listenAddr   string
	logFormat    string
	logLevel     string
	metricsAddr  string
	logMetricsEvery time.Duration

	backend    string
	canIf      string
	serialDev  string
	baud       int
	serialReadTO time.Duration

	nvsPath    string
	chanBuffer int
	readDeadline time.Duration

	mdnsEnable bool
	mdnsName   string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	listen := flag.String("listen", ":1234", "TCP listen address for the host protocol")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	backend := flag.String("backend", "loop", "CAN backend: loop|socketcan|uart")
	canIf := flag.String("can-if", "can0", "SocketCAN interface (when --backend=socketcan)")
	serialDev := flag.String("serial", "/dev/ttyUSB0", "Serial device path (when --backend=uart)")
	baud := flag.Int("baud", 1000000, "Serial baud rate (when --backend=uart)")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	nvsPath := flag.String("nvs-file", "", "Path to the file standing in for the NVS config partition; empty disables persistence")
	chanBuffer := flag.Int("chan-buffer", 128, "Bounded channel capacity between adapters and the router")
	readDeadline := flag.Duration("read-timeout", 10*time.Second, "TCP idle read deadline")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default espcand-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.listenAddr = *listen
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.backend = *backend
	cfg.canIf = *canIf
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.nvsPath = *nvsPath
	cfg.chanBuffer = *chanBuffer
	cfg.readDeadline = *readDeadline
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case "loop", "socketcan", "uart":
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	if c.chanBuffer <= 0 {
		return fmt.Errorf("chan-buffer must be > 0 (got %d)", c.chanBuffer)
	}
	if c.readDeadline <= 0 {
		return fmt.Errorf("read-timeout must be > 0")
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	return nil
}

// applyEnvOverrides maps ESPCAND_* environment variables to config fields
// unless the matching flag was explicitly set (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["listen"]; !ok {
		if v, ok := get("ESPCAND_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("ESPCAND_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("ESPCAND_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("ESPCAND_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["backend"]; !ok {
		if v, ok := get("ESPCAND_BACKEND"); ok && v != "" {
			c.backend = v
		}
	}
	if _, ok := set["can-if"]; !ok {
		if v, ok := get("ESPCAND_CAN_IF"); ok && v != "" {
			c.canIf = v
		}
	}
	if _, ok := set["serial"]; !ok {
		if v, ok := get("ESPCAND_SERIAL"); ok && v != "" {
			c.serialDev = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("ESPCAND_BAUD"); ok && v != "" {
			n, err := strconv.Atoi(v)
			switch {
			case err == nil && n > 0:
				c.baud = n
			case err != nil && firstErr == nil:
				firstErr = fmt.Errorf("invalid ESPCAND_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["nvs-file"]; !ok {
		if v, ok := get("ESPCAND_NVS_FILE"); ok {
			c.nvsPath = v
		}
	}
	if _, ok := set["chan-buffer"]; !ok {
		if v, ok := get("ESPCAND_CHAN_BUFFER"); ok && v != "" {
			n, err := strconv.Atoi(v)
			switch {
			case err == nil && n > 0:
				c.chanBuffer = n
			case err != nil && firstErr == nil:
				firstErr = fmt.Errorf("invalid ESPCAND_CHAN_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["read-timeout"]; !ok {
		if v, ok := get("ESPCAND_READ_TIMEOUT"); ok && v != "" {
			d, err := time.ParseDuration(v)
			switch {
			case err == nil && d > 0:
				c.readDeadline = d
			case err != nil && firstErr == nil:
				firstErr = fmt.Errorf("invalid ESPCAND_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("ESPCAND_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("ESPCAND_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("ESPCAND_LOG_METRICS_INTERVAL"); ok && v != "" {
			d, err := time.ParseDuration(v)
			switch {
			case err == nil && d >= 0:
				c.logMetricsEvery = d
			case err != nil && firstErr == nil:
				firstErr = fmt.Errorf("invalid ESPCAND_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}
