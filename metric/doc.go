// Package metric provides Prometheus-based metrics collection and an HTTP server
// for rtkit runtime observability.
//
// The package offers a centralized registry holding the core runtime metrics
// (component states, lifecycle transitions, hook failures, execution rounds,
// connector pushes, naming and NATS health) plus per-owner metrics registered
// by buffers, publishers and execution contexts.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server failed", "error", err)
//	    }
//	}()
//
//	registry.CoreMetrics().RecordRound("ec0", "periodic", elapsed)
//
// # Owner Metrics
//
// Owner metrics are keyed "owner.metric". Registering the same key twice is an
// ErrorInvalid error wrapping ErrAlreadyExists. UnregisterOwner removes every
// metric of an owner, which connectors use on disconnect so the same connector
// id can be reused.
package metric
