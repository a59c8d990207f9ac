// Package resilience groups the fault tolerance helpers used by the inference
// client.
//
//   - circuitbreaker: one gobreaker per endpoint; rejected calls count as a
//     failed try and failover moves on.
//   - retry: exponential backoff with jitter, Retry-After parsing and
//     context-aware sleeping.
//
// Typical use around a single HTTP attempt:
//
//	body, err := circuitbreaker.Do(cb, func() ([]byte, error) {
//	    return send(ctx)
//	})
//	if circuitbreaker.IsRejected(err) {
//	    // try the next endpoint
//	}
package resilience
