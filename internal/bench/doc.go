// Package bench drives a classifier through the construction, search and
// update phases of a rule-set benchmark and reports timings and per-search
// work counters.
//
// The harness owns a sync.RWMutex around the classifier: searches run under
// the read lock, possibly on several workers, and updates under the write
// lock.
package bench
