// Package natsclient wraps a NATS connection with a circuit breaker on connect
// failures, slog logging and the small slice of JetStream the runtime needs.
//
// Two parts of rtkit sit on top of it: the "nats" data port transport, which
// publishes records on a per-connector subject and answers pull requests, and
// the NATS KV naming service, which stores name bindings in a KV bucket.
//
// # Connection lifecycle
//
// A Client moves through Disconnected → Connecting → Connected, and through
// Reconnecting while the underlying nats.Conn recovers. After five failed
// Connect calls in a row (WithCircuitBreakerThreshold) the circuit opens and
// Connect returns ErrCircuitOpen until the backoff elapses. The backoff doubles
// on each opening up to WithMaxBackoff. WithDisconnectCallback and
// WithReconnectCallback observe the Connected/Reconnecting transitions; rtcd
// uses them to keep its health monitor current.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	sub, err := client.Subscribe(ctx, "rtkit.dataport.>", func(ctx context.Context, msg *nats.Msg) {
//	    ...
//	})
//	defer sub.Unsubscribe()
//
// # KV
//
// CreateKeyValueBucket returns an existing bucket or creates it, tolerating a
// creation race with another process. KVStore adds per-call timeouts, a value
// size limit and typed errors (ErrKVKeyNotFound, ErrKVKeyExists,
// ErrKVRevisionMismatch).
//
// # Testing
//
// NewTestClient starts a NATS server in a container through testcontainers-go.
// Tests that use it carry the integration build tag.
package natsclient
