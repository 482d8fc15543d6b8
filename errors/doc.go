// Package errors provides standardized error handling patterns for rtkit.
//
// # Overview
//
// Errors carry one of three classes: Transient (temporary, retryable), Invalid
// (bad input, non-retryable) and Fatal (unrecoverable). On top of the classes
// the package defines the two result taxonomies used on the runtime's outward
// surfaces:
//
//   - ReturnCode for lifecycle operations: OK, Error, BadParameter, Unsupported,
//     OutOfResources, PreconditionNotMet.
//   - PortStatus for data transport: PortOK, PortError, BufferFull, BufferEmpty,
//     BufferTimeout, SendFull, SendTimeout, RecvEmpty, RecvTimeout,
//     ConnectionLost, TransportError, UnknownError.
//
// Code and Status map any error chain onto these values with errors.Is, so
// callers return plain wrapped errors and convert only at the boundary.
//
// # Wrapping
//
// Use the standard pattern "component.method: action failed: %w":
//
//	if err := buf.Write(rec); err != nil {
//	    return errors.WrapTransient(err, "OutPort", "Write", "buffer write")
//	}
//
// Wrapped errors still satisfy errors.Is against the sentinels, so
//
//	errors.Status(err) == errors.BufferFull
//
// holds for the example above when the buffer was full.
package errors
