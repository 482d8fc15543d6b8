package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/health"
	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/naming"
	"github.com/c360/rtkit/natsclient"
	"github.com/c360/rtkit/pkg/retry"
)

const natsHealthName = "nats"

// connectNATS creates and connects the NATS client. Connection changes are
// pushed to monitor.
func connectNATS(
	ctx context.Context,
	cfg config.NATSConfig,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	logger *slog.Logger,
) (*natsclient.Client, error) {
	onDisconnect, onReconnect := natsHealthCallbacks(monitor)
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithReconnectWait(cfg.ReconnectWait.Std()),
		natsclient.WithDisconnectCallback(onDisconnect),
		natsclient.WithReconnectCallback(onReconnect),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.Timeout.Std()))
	}
	if cfg.PingInterval > 0 {
		opts = append(opts, natsclient.WithPingInterval(cfg.PingInterval.Std()))
	}
	if cfg.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(cfg.DrainTimeout.Std()))
	}
	if cfg.CircuitThreshold > 0 {
		opts = append(opts, natsclient.WithCircuitBreakerThreshold(int32(cfg.CircuitThreshold)))
	}
	if cfg.MaxBackoff > 0 {
		opts = append(opts, natsclient.WithMaxBackoff(cfg.MaxBackoff.Std()))
	}
	if cfg.Name != "" {
		opts = append(opts, natsclient.WithName(cfg.Name))
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, natsclient.WithToken(cfg.Token))
	case cfg.Username != "":
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("connecting to NATS", "servers", len(cfg.URLs))
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	monitor.UpdateHealthy(natsHealthName, "connected")
	return client, nil
}

// natsHealthCallbacks returns the disconnect and reconnect hooks that keep
// the "nats" entry of monitor current.
func natsHealthCallbacks(monitor *health.Monitor) (func(error), func()) {
	onDisconnect := func(err error) {
		msg := "disconnected"
		if err != nil {
			msg += ": " + err.Error()
		}
		monitor.UpdateUnhealthy(natsHealthName, msg)
	}
	onReconnect := func() {
		monitor.UpdateHealthy(natsHealthName, "reconnected")
	}
	return onDisconnect, onReconnect
}

// namingService returns the directory selected by cfg, or nil when naming is
// disabled.
func namingService(
	ctx context.Context,
	cfg config.NamingConfig,
	client *natsclient.Client,
	logger *slog.Logger,
) (naming.Service, error) {
	switch cfg.Backend {
	case "", config.NamingNone:
		return nil, nil
	case config.NamingMemory:
		return naming.NewMemory(), nil
	case config.NamingNATS:
		if client == nil {
			return nil, fmt.Errorf("naming backend %q needs nats.urls", cfg.Backend)
		}
		bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: "rtkit naming service",
			History:     1,
		})
		if err != nil {
			return nil, fmt.Errorf("naming bucket: %w", err)
		}
		return naming.NewKV(client.NewKVStore(bucket), logger), nil
	default:
		return nil, fmt.Errorf("unknown naming backend %q", cfg.Backend)
	}
}

// startBinder wraps svc in a started Binder tuned by cfg.
func startBinder(
	ctx context.Context,
	svc naming.Service,
	cfg config.NamingConfig,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*naming.Binder, error) {
	bindCfg := retry.BindPolicy()
	bindCfg.MaxAttempts = cfg.RetryAttempts
	if d := cfg.RetryDelay.Std(); d > 0 {
		bindCfg.InitialDelay = d
		if bindCfg.MaxDelay < d {
			bindCfg.MaxDelay = d
		}
	}

	binder := naming.NewBinder(svc,
		naming.WithRetry(bindCfg),
		naming.WithUnbindRetry(retry.UnbindPolicy()),
		naming.WithWorkers(cfg.Workers, cfg.Queue),
		naming.WithBinderLogger(logger),
		naming.WithBinderMetrics(registry),
	)
	if err := binder.Start(ctx); err != nil {
		return nil, err
	}
	return binder, nil
}
