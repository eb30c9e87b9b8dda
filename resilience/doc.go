// Package resilience runs guarded operations under a hard deadline on a
// bounded worker pool.
//
// # Patterns
//
//   - Pool: a bounded set of worker slots. One slot (the default) gives strict
//     global ordering; more slots trade ordering for throughput.
//
//   - TimedExecutor: races an operation against its deadline and reports a
//     structured outcome.Outcome. Cancellation is cooperative: when the
//     deadline wins, the operation's context is cancelled, but an operation
//     that ignores its context keeps running and keeps its worker slot. Its
//     side effects may land after the caller has been told Timeout.
//
//   - Retry: a caller-side policy for re-running a guarded call. The guard
//     core never retries on its own.
//
// # Usage
//
//	exec := resilience.NewTimedExecutor(resilience.TimedExecutorConfig{
//	    Pool: resilience.NewPool(resilience.PoolConfig{Workers: 4}),
//	})
//
//	out := resilience.Run(ctx, exec, 2*time.Second, func(ctx context.Context) (bool, error) {
//	    return repo.DeleteRecord(ctx, id)
//	})
//	if out.Kind() == outcome.KindTimeout {
//	    // final state unknown
//	}
package resilience
