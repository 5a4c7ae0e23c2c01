// Package resource implements the Controller for memory and throughput limits.
//
// The Controller provides centralized management of three resource types:
//
//   - Memory: a byte budget for classifier structures (non-blocking, fail-fast)
//   - Workers: a cap on concurrent search workers of the benchmark harness
//   - Updates: a token bucket pacing rule inserts and deletes
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Controller                          │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Memory Budget  │  Workers (sem)  │  Update Rate Limiter    │
//	│  (fail-fast)    │                 │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  AcquireMemory  │  AcquireWorker  │  WaitUpdate             │
//	│  ReleaseMemory  │  TryAcquire-    │  TryUpdate              │
//	│  MemoryUsage    │  Worker         │                         │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for the hard limit and an atomic
// counter for usage. AcquireMemory returns ErrMemoryLimitExceeded at once if
// the reservation does not fit:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20,
//	})
//
//	if err := rc.AcquireMemory(cost); err != nil {
//	    // nothing was reserved
//	}
//
// # Update Pacing
//
//	rc := resource.NewController(resource.Config{UpdatesPerSec: 10000})
//	if err := rc.WaitUpdate(ctx); err != nil {
//	    return err
//	}
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
