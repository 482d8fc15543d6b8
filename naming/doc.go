// Package naming publishes components and execution contexts under
// well-known names.
//
// Service is the directory contract. Memory keeps bindings in process; KV
// stores them as JSON in a NATS JetStream key-value bucket so that other
// processes can resolve them. Binder wraps a Service with a worker pool and
// retry so that registration never blocks component lifecycle calls.
package naming
