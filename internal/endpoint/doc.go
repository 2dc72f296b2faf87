// Package endpoint implements the worker side of the compute-cloud bootstrap
// protocol: one Server per host-engine worker process, answering the
// coordinator's messages and owning the lifecycle of the locally-spawned
// compute node.
//
// # Overview
//
// The endpoint is deliberately thin. Every protocol message maps onto one
// ComputeNode call:
//
//	POST /worker/start     → ComputeNode.Start       (once per session)
//	POST /worker/flatfile  → ComputeNode.Distribute  (idempotent)
//	GET  /worker/size      → ComputeNode.Size        (live pass-through)
//	POST /worker/lock      → ComputeNode.Lock        (one-shot)
//	GET  /worker/leader    → ComputeNode.Leader
//	POST /worker/stop      → Server.Stop             (endpoint only)
//
// # Compute node implementations
//
// ProcessNode spawns the external compute runtime with os/exec, learns its
// bind address from stdout and drives it through its admin HTTP API.
// EmbeddedNode keeps the node in-process; it backs the host engine's
// single-process execution mode and the test suite.
//
// # Lifecycle
//
// Stopping the endpoint never stops the compute node. The bootstrap RPC
// machinery is scaffolding; once the cloud is formed and locked, it can be
// torn down while the cloud keeps serving.
package endpoint
