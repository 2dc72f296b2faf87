// Package cluster defines the shared vocabulary of the compute-cloud
// bootstrap protocol: node descriptors, wire messages, cluster-formation
// configuration, and the JSON-over-HTTP helpers both sides of the protocol
// use to talk to each other.
//
// # Overview
//
// Hydroml stands up a co-located machine-learning compute cloud inside the
// worker processes of a host data engine. The coordinator (driver side) and
// the worker endpoints exchange a small set of request/response messages to
// register endpoints, start compute nodes, distribute the flat membership
// file, poll the formation barrier, lock the cloud and discover its leader.
// All of those messages, and the NodeDescriptor values they carry, live here
// so that internal/coordinator and internal/endpoint agree on the wire format
// without importing each other.
//
// # Protocol messages
//
//	StartWorkerRequest  → StartWorkerResponse   start the local compute node
//	DistributeRequest   → (no reply)            broadcast the flat file
//	(GET size)          → ClusterSizeResponse   live peer-count query
//	(POST lock)         → (no reply)            one-shot membership lock
//	(GET leader)        → LeaderResponse        locally-known leader
//
// # Configuration
//
// ClusterConfig is assembled once at startup from HYDROML_* environment
// variables, an optional YAML file and explicit overrides (override > file >
// env), then treated as read-only for the whole coordinating session.
package cluster
