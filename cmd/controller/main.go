// Command controller runs the actuated-signal control loop against real
// cabinet hardware: it loads a configuration document, opens the
// field-bus adapter, and drives control.Controller.Run until asked to
// shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signalhead.dev/bus"
	"signalhead.dev/config"
	"signalhead.dev/control"
	"signalhead.dev/driver/fieldbus"
	"signalhead.dev/telemetry"
	"signalhead.dev/timing"
)

var (
	configPath    = flag.String("config", "", "path to the intersection configuration document (required)")
	dev           = flag.String("dev", "", "serial device the field-bus I/O board is attached to; empty uses an in-memory loopback adapter")
	inputPins     = flag.String("input-pins", "", "comma-separated periph.io GPIO pin names, in bus input-index order (required with -dev)")
	metricsAddr   = flag.String("metrics-addr", ":9090", "address to listen on for prometheus metrics")
	telemetryAddr = flag.String("telemetry-addr", ":9091", "address to listen on for telemetry subscribers")
	verbose       = flag.Bool("verbose", false, "enable debug logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if *configPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag -config")
	}
	doc, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	adapter, closeAdapter, err := openAdapter(*dev, *inputPins)
	if err != nil {
		return fmt.Errorf("open field bus: %w", err)
	}
	defer closeAdapter()

	telemetryListener, err := net.Listen("tcp", *telemetryAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", *telemetryAddr, err)
	}
	publisher := telemetry.NewTCPPublisher(telemetryListener, log)
	defer publisher.Close()

	go serveMetrics(*metricsAddr, log)

	c, err := control.New(doc, adapter, publisher, log)
	if err != nil {
		return fmt.Errorf("new controller: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pacer := timing.NewFixedPacer(doc.TickSize)
	return c.Run(ctx, pacer)
}

// openAdapter opens the real field-bus Adapter when dev is set, falling
// back to an in-memory Loopback (which never receives input and simply
// discards output) for bench testing without cabinet hardware attached.
func openAdapter(dev, pins string) (bus.Adapter, func() error, error) {
	if dev == "" {
		lb := bus.NewLoopback()
		return lb, func() error { return nil }, nil
	}
	var pinNames []string
	if pins != "" {
		pinNames = strings.Split(pins, ",")
	}
	a, err := fieldbus.Open(fieldbus.Config{
		Device:    dev,
		InputPins: pinNames,
	})
	if err != nil {
		return nil, nil, err
	}
	return a, a.Close, nil
}

func serveMetrics(addr string, log *slog.Logger) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("metrics listener failed", "error", err)
		return
	}
	log.Info("metrics listening", "address", listener.Addr().String())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.Serve(listener, mux); err != nil {
		log.Error("metrics server stopped", "error", err)
	}
}
