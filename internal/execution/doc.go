// Package execution contains the reliability core of the batch runner:
// the Transport interface batches are executed through, the error taxonomy
// shared with downstream schedulers, the retry layer (per-attempt timeout,
// exponential backoff with jitter), the circuit breaker that guards a
// failing upstream, and the dry-run transport that estimates usage and
// cost without touching the network.
package execution
