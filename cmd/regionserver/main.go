// Command regionserver runs a region server that hosts
// coprocessors on a static set of regions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrife/regionhost/catalog"
	"github.com/jrife/regionhost/connection"
	"github.com/jrife/regionhost/metrics"
	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/regionserver"
	"github.com/jrife/regionhost/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/jrife/regionhost/examples/audit"
)

type staticRegion struct {
	info region.RegionInfo
}

func (r staticRegion) Info() region.RegionInfo {
	return r.info
}

func (r staticRegion) IsAvailable() bool {
	return true
}

func main() {
	configPath := flag.String("config", "regionserver.yaml", "Path to config file")
	flag.Parse()

	config, err := loadConfig(*configPath)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(config.LogLevel)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	defer logger.Sync()

	zap.ReplaceGlobals(logger)

	if err := run(config, logger); err != nil {
		logger.Fatal("region server failed", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)

	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = atomicLevel
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return loggerConfig.Build()
}

func run(config Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serverName, err := config.serverName()

	if err != nil {
		return err
	}

	localRegions, locations, err := config.regions(serverName)

	if err != nil {
		return err
	}

	specs, err := catalog.Open(catalog.Config{Path: config.Catalog, Logger: logger})

	if err != nil {
		return err
	}

	defer specs.Close()

	for _, table := range config.Attach {
		for _, spec := range table.Coprocessors {
			if err := specs.Attach(table.Table, spec); err != nil {
				return err
			}
		}
	}

	hub := metrics.NewHub(metrics.HubConfig{Logger: logger})
	host, err := regionserver.NewHost(regionserver.HostConfig{
		Server:  serverName,
		Metrics: hub,
		Connection: connection.Config{
			Locator: connection.NewStaticLocator(locations...),
			Logger:  logger,
		},
		Specs:  specs,
		Logger: logger,
	})

	if err != nil {
		return err
	}

	defer host.Close(context.Background())

	for _, info := range localRegions {
		if err := host.OpenRegion(ctx, staticRegion{info: info}); err != nil {
			return fmt.Errorf("could not open region %s: %w", info.Name(), err)
		}
	}

	server := transport.NewServer(transport.ServerConfig{Handler: host, Logger: logger})
	listener, err := net.Listen("tcp", config.listenAddress(serverName))

	if err != nil {
		return fmt.Errorf("could not listen: %w", err)
	}

	errs := make(chan error, 2)

	go func() {
		errs <- server.Listen(listener)
	}()

	defer server.Stop()

	if config.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(hub, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: config.MetricsListen, Handler: mux}

		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()

		defer metricsServer.Close()
	}

	logger.Info("region server started", zap.String("server", serverName.String()), zap.Int("regions", len(localRegions)))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")

		return nil
	case err := <-errs:
		return err
	}
}
