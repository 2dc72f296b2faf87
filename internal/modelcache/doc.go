// Package modelcache holds the per-worker cache of live scoring backends.
//
// # Overview
//
// Scoring a model requires a constructed in-process backend, which is
// expensive to build (artifact parse plus engine instantiation) and cheap to
// keep. The cache guarantees at most one live backend per (worker scope,
// model uid) key: concurrent first accesses collapse into a single
// construction via singleflight, and all callers observe the same instance.
//
// # Lifecycle
//
// The cache owns every backend it hands out. A background cleanup task,
// started at most once per process, closes backends idle beyond a threshold.
// Scorers therefore never hold a backend across operations. Each prediction
// re-fetches from the cache, refreshing the idle clock, so an in-use backend
// is never evicted out from under a scorer.
//
// Failed constructions are never cached: the next Get for the same key
// retries from scratch.
package modelcache
