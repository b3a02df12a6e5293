// Package batchcall executes batches of independent remote calls with
// controlled parallelism, retry on transient failure, and lossless result
// collection.
//
// Design goals
//
//   - Bound the load placed on the remote side
//   - Absorb transient failures without synchronized retry storms
//   - Never lose or duplicate a result, whatever the completion order
//   - Keep every strategy behind one call so they can be compared
//
// Architecture overview
//
// A batch is a slice of WorkItem values and a Strategy. The Executor drives
// each item through the retry loop against a Caller, under one of four
// admission disciplines:
//
//  1. Sequential
//     One item at a time, in input order. Wall-clock is the sum of the
//     per-item latencies. This is the correctness baseline.
//
//  2. Concurrent
//     Every item starts at once. There is no ceiling on outstanding calls,
//     which is fine for small batches and unsafe for large ones.
//
//  3. Bounded
//     A counting gate of capacity N admits items; the (N+1)-th waits for a
//     permit. Exactly N items are in flight until the queue drains.
//
//  4. Pooled
//     P workers pull items from a shared queue and run each to completion.
//     Concurrency is bounded by P, but a slow item keeps its worker busy
//     while the others may go idle at the tail of the batch.
//
// Item lifecycle
//
//	Pending -> InFlight -> {Succeeded | Retrying -> InFlight | Failed}
//
// Retrying is entered only for a transient failure with attempts left. The
// wait between attempts grows exponentially with jitter and is clamped to
// the RetryPolicy window. An error implementing RetryHinter (an HTTP
// Retry-After, say) can lengthen that wait up to RetryPolicy.Max.
//
// Error handling
//
// Adapter errors are classified as transient or fatal. Transient errors are
// retried silently up to RetryPolicy.Attempts; after that the item fails
// with KindRetryExhausted. Fatal errors fail the item immediately. Failures
// are recorded in the ResultSet, never returned from RunBatch, unless
// Options.AbortOnFatal is set, in which case the first fatal failure cancels
// the rest of the batch.
//
// Ordering
//
// The sequential strategy keeps input order in both invocation and results.
// The other strategies record results in completion order, which is not
// deterministic; look results up by ID.
//
// Timeouts
//
// Timeouts are per attempt, not per batch. With Options.AttemptTimeout set
// an attempt is abandoned when it expires even if the Caller ignores its
// context, so a hung call cannot hold a gate permit or worker forever.
package batchcall
