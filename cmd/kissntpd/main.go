package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/kissntpd/kissntpd/pkg/ntpd"
)

var (
	bind = kingpin.Flag("bind", "address to bind to, default '0.0.0.0:123'; repeat for multiple listeners").
		Short('b').Envar("KISS_NTPD_BIND").Strings()
	debug = kingpin.Flag("debug", "print packets sent and received, very verbose").
		Short('d').Envar("KISS_NTPD_DEBUG").Bool()
	configPath = kingpin.Flag("config", "optional yaml config file").
			Short('c').Envar("KISS_NTPD_CONFIG").String()
	metricsAddr = kingpin.Flag("metrics-addr", "serve prometheus metrics on this address").
			Envar("KISS_NTPD_METRICS_ADDR").String()
	rate = kingpin.Flag("rate", "per-IP rate limit in requests/sec, 0 disables").
		Envar("KISS_NTPD_RATE").Float64()
	burst = kingpin.Flag("burst", "rate limit burst").
		Envar("KISS_NTPD_BURST").Int()
)

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	kingpin.Version(ntpd.VersionInfo())
	kingpin.CommandLine.HelpFlag.Short('h')
	kingpin.CommandLine.VersionFlag.Short('V')
	kingpin.Parse()

	cfg, err := ntpd.LoadConfig(*configPath, ntpd.Flags{
		Bind:        *bind,
		Debug:       *debug,
		MetricsAddr: *metricsAddr,
		Rate:        *rate,
		Burst:       *burst,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	cfg.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := ntpd.New(cfg)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer func() { _ = srv.Stop() }()

	logger.Info(ntpd.VersionInfo(), zap.Strings("listening", srv.Addrs()))

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigCh:
			logger.Info("stopping", zap.String("signal", sig.String()))
			return
		case <-ticker.C:
			m := srv.Metrics()
			logger.Info("status",
				zap.Uint64("datagrams", m.TotalDatagrams),
				zap.Uint64("responses", m.TotalResponses),
				zap.Uint64("dropped", m.TotalDropped),
				zap.Int("unique_clients", m.UniqueClients),
				zap.String("last_ip", m.LastClientIP))
		}
	}
}
