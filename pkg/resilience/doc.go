// Package resilience provides failure isolation primitives for provider
// calls: a per-provider circuit breaker and exponential backoff computation
// for scheduler-level retries.
//
// Circuit breaker state machine:
//
//	Closed ──(threshold consecutive failures)──▶ Open
//	Open ──(cooldown elapsed, next AllowRequest)──▶ HalfOpen
//	HalfOpen ──(trial success)──▶ Closed
//	HalfOpen ──(trial failure)──▶ Open (cooldown restarts)
//
// The breaker only gates calls; it never invokes providers itself. Callers
// pair every AllowRequest()==true with exactly one RecordSuccess or
// RecordFailure. Timeouts are recorded as failures.
//
// Retry layers are independent: the scheduler retries whole requests
// (bounded by MaxRetries, delayed by Backoff), while the failover
// coordinator iterates providers within a single attempt.
package resilience
