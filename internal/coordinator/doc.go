// Package coordinator implements the driver-side bootstrap of the co-located
// compute cloud: it drives every worker endpoint through the formation
// protocol exactly once per session and hands back an agreed membership and
// leader.
//
// # Overview
//
// The coordinator is a state machine advancing strictly forward:
//
//	Idle → EndpointsRegistered → WorkersStarted → MembershipDistributed
//	     → BarrierSatisfied → Locked → LeaderKnown → TornDown
//
// Each transition corresponds to one protocol step:
//
//	┌──────────────────────────────────────────────┐
//	│               COORDINATOR                    │
//	├──────────────────────────────────────────────┤
//	│ register   select first-N endpoints          │
//	│ start      parallel fan-out, fail-fast       │
//	│ distribute flat file broadcast, no ack       │
//	│ barrier    poll sizes every ~100ms           │
//	│ lock       one message, first endpoint only  │
//	│ leader     first non-empty reply, divergence │
//	│            flagged                           │
//	│ teardown   stop endpoints, cloud survives    │
//	└──────────────────────────────────────────────┘
//
// # Failure semantics
//
// A timeout in Start or Barrier surfaces as ErrBootstrapTimeout and kills the
// attempt; a broken protocol assumption surfaces as ErrProtocolInvariant.
// Both are fatal and distinguishable from configuration errors. The
// coordinator never retries and never leaves a partially-joined cloud
// running silently: a failed bootstrap is unrecoverable for the session.
//
// # Single-process mode
//
// When the host engine reports a non-distributed execution context,
// BootstrapLocal starts exactly one embedded compute node in-process and
// skips registration, barrier and lock distribution entirely. This is a
// separate code path, not a degenerate N=1 run of the protocol.
package coordinator
