// Package retry runs an operation with exponential backoff.
//
// Whether a failure is retried is decided by its classification in the
// errors package: transient errors (and unclassified ones) are retried,
// invalid and fatal errors end the loop at once and are returned as they are.
// The naming binder uses BindPolicy and UnbindPolicy:
//
//	err := retry.Do(ctx, retry.BindPolicy(), func() error {
//	    return svc.Bind(ctx, name, entry)
//	})
//	if stderrors.Is(err, errors.ErrMaxRetriesExceeded) {
//	    // the directory stayed unreachable
//	}
//
// Do returns early when ctx ends, both while fn runs and during a backoff
// wait.
package retry
