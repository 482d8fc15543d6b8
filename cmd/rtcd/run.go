package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/rtkit/admin"
	"github.com/c360/rtkit/componentregistry"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/health"
	"github.com/c360/rtkit/manager"
	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/naming"
	"github.com/c360/rtkit/natsclient"
	"github.com/c360/rtkit/port"
)

func newRunCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the runtime and serve until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging, os.Stdout)
			slog.SetDefault(logger)
			logger.Info("starting rtcd",
				"version", Version,
				"build_time", BuildTime,
				"config", opts.configPaths)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg, logger, opts.shutdownTimeout)
		},
	}
}

// daemon holds what runDaemon starts, so teardown can run in reverse.
type daemon struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor
	runtime  *manager.Runtime
	binder   *naming.Binder
	metrics  *metric.Server
	admin    *admin.Server
	closers  []func(context.Context) error
}

// runDaemon builds the runtime from cfg and blocks until ctx is done.
func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	d, err := startDaemon(ctx, cfg, logger)
	if err != nil {
		if d != nil {
			d.shutdown(shutdownTimeout)
		}
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	return d.shutdown(shutdownTimeout)
}

func startDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		monitor:  health.NewMonitor(nil),
	}

	rtOpts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithMetrics(d.registry),
		manager.WithNode(cfg.Node),
	}

	var (
		client    *natsclient.Client
		transport *port.NATSTransport
	)
	if cfg.NATS.Enabled() {
		var err error
		client, err = connectNATS(ctx, cfg.NATS, d.registry, d.monitor, logger)
		if err != nil {
			return d, err
		}
		d.closers = append(d.closers, client.Close)
		transport = port.NewNATSTransport(client, cfg.NATS.SubjectPrefix)
		if cfg.NATS.LogSubject != "" {
			rtOpts = append(rtOpts, manager.WithLogPublisher(client, cfg.NATS.LogSubject))
		}
	}

	svc, err := namingService(ctx, cfg.Naming, client, logger)
	if err != nil {
		return d, err
	}
	if err := d.attachBinder(ctx, svc, cfg.Naming); err != nil {
		return d, err
	}
	if d.binder != nil {
		rtOpts = append(rtOpts, manager.WithBinder(d.binder))
	}

	d.runtime = manager.New(rtOpts...)
	d.monitor.SetSource(d.runtime)
	if transport != nil {
		if err := d.runtime.Network().Transports().Register(transport); err != nil {
			return d, err
		}
	}
	if err := componentregistry.Register(d.runtime.ComponentRegistry()); err != nil {
		return d, fmt.Errorf("register components: %w", err)
	}
	logger.Info("component factories registered", "types", d.runtime.ComponentRegistry().ListComponentTypes())

	if err := d.runtime.Apply(ctx, cfg); err != nil {
		return d, fmt.Errorf("apply configuration: %w", err)
	}

	if cfg.Metrics.Enabled {
		d.metrics = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, d.registry)
		go func() {
			if err := d.metrics.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics endpoint enabled", "address", d.metrics.Address())
	}

	if cfg.Admin.Enabled {
		d.admin = admin.NewServer(cfg.Admin.Addr, d.runtime, d.monitor, logger)
		if err := d.admin.Start(); err != nil {
			return d, err
		}
	}

	logger.Info("rtcd running",
		"components", len(d.runtime.Components()),
		"contexts", len(d.runtime.Contexts()))
	return d, nil
}

func (d *daemon) attachBinder(ctx context.Context, svc naming.Service, cfg config.NamingConfig) error {
	if svc == nil {
		d.logger.Info("naming disabled")
		return nil
	}
	binder, err := startBinder(ctx, svc, cfg, d.registry, d.logger)
	if err != nil {
		return fmt.Errorf("start naming binder: %w", err)
	}
	d.binder = binder
	return nil
}

// shutdown stops the servers, the runtime, the binder and the NATS client in
// that order, each bounded by timeout.
func (d *daemon) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if d.admin != nil {
		errs = append(errs, d.admin.Stop(ctx))
	}
	if d.metrics != nil {
		errs = append(errs, d.metrics.Stop())
	}
	if d.runtime != nil {
		errs = append(errs, d.runtime.Shutdown(ctx, timeout))
	}
	if d.binder != nil {
		errs = append(errs, d.binder.Stop(timeout))
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i](ctx))
	}

	err := errors.Join(errs...)
	if err != nil {
		d.logger.Error("shutdown finished with errors", "error", err)
	} else {
		d.logger.Info("shutdown complete")
	}
	return err
}
