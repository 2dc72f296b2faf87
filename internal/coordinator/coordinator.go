package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/openfathom/hydroml/internal/cluster"
	"github.com/openfathom/hydroml/internal/endpoint"
)

// ErrBootstrapTimeout marks a Start or Barrier step that did not finish
// within its deadline. Fatal to the whole bootstrap attempt; the coordinator
// never retries.
var ErrBootstrapTimeout = errors.New("cluster failed to form within timeout")

// ErrProtocolInvariant marks a broken assumption inherited from the
// underlying cluster protocol, e.g. no endpoint ever reporting a leader.
var ErrProtocolInvariant = errors.New("cluster protocol invariant violated")

// State is the driver-side bootstrap state machine position.
type State int

const (
	StateIdle State = iota
	StateEndpointsRegistered
	StateWorkersStarted
	StateMembershipDistributed
	StateBarrierSatisfied
	StateLocked
	StateLeaderKnown
	StateTornDown
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateEndpointsRegistered:
		return "EndpointsRegistered"
	case StateWorkersStarted:
		return "WorkersStarted"
	case StateMembershipDistributed:
		return "MembershipDistributed"
	case StateBarrierSatisfied:
		return "BarrierSatisfied"
	case StateLocked:
		return "Locked"
	case StateLeaderKnown:
		return "LeaderKnown"
	case StateTornDown:
		return "TornDown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Coordinator drives the compute-cloud bootstrap from the host engine's
// driver process: endpoint registration, worker start, flat-file
// distribution, barrier wait, membership lock, leader discovery, teardown.
//
// A Coordinator is single-session: a failed bootstrap leaves no usable cloud
// and is unrecoverable for that session. Retry policy, if any, belongs to the
// caller with a fresh Coordinator.
type Coordinator struct {
	cfg cluster.ClusterConfig

	mu        sync.Mutex
	state     State
	endpoints []EndpointHandle
	members   []cluster.NodeDescriptor
	leader    cluster.NodeDescriptor
}

// New returns an idle coordinator. Defaults are applied to the config here;
// it is read-only afterwards.
func New(cfg cluster.ClusterConfig) *Coordinator {
	cfg.ApplyDefaults()
	return &Coordinator{cfg: cfg, state: StateIdle}
}

// Config returns the session's effective cluster configuration.
func (c *Coordinator) Config() cluster.ClusterConfig { return c.cfg }

// State returns the current bootstrap state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Members returns the agreed membership once the barrier is satisfied.
func (c *Coordinator) Members() []cluster.NodeDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cluster.NodeDescriptor(nil), c.members...)
}

// Leader returns the elected leader node once known.
func (c *Coordinator) Leader() cluster.NodeDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leader
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	log.Printf("coordinator: state -> %s", s)
}

// Bootstrap runs the whole protocol against the discovered endpoints. On any
// error the bootstrap is dead: partial membership is never left behind
// silently, and no retry happens here.
func (c *Coordinator) Bootstrap(ctx context.Context, discovered []EndpointHandle) error {
	if s := c.State(); s != StateIdle {
		return fmt.Errorf("%w: bootstrap attempted in state %s", ErrProtocolInvariant, s)
	}

	c.registerEndpoints(discovered)

	if err := c.startWorkers(ctx); err != nil {
		return err
	}
	c.distributeMembership(ctx)

	if err := c.awaitBarrier(ctx); err != nil {
		return err
	}
	if err := c.lockCluster(ctx); err != nil {
		return err
	}
	return c.discoverLeader(ctx)
}

// registerEndpoints records the discovered endpoints, truncating to the
// expected worker count (first N in discovery order) unless extra nodes are
// explicitly allowed.
func (c *Coordinator) registerEndpoints(discovered []EndpointHandle) {
	selected := append([]EndpointHandle(nil), discovered...)
	if n := c.cfg.ExpectedWorkerCount; n > 0 && n < len(selected) && !c.cfg.AllowExtraNodes {
		log.Printf("coordinator: truncating %d discovered endpoints to expected %d", len(selected), n)
		selected = selected[:n]
	}
	c.mu.Lock()
	c.endpoints = selected
	c.mu.Unlock()
	c.setState(StateEndpointsRegistered)
}

// startWorkers fans the start command out to every endpoint in parallel and
// blocks until all descriptors arrive. One timeout fails the whole bootstrap:
// a partial cloud is worse than none.
func (c *Coordinator) startWorkers(ctx context.Context) error {
	endpoints := c.handles()
	members := make([]cluster.NodeDescriptor, len(endpoints))
	errs := make([]error, len(endpoints))

	var wg sync.WaitGroup
	for i, h := range endpoints {
		wg.Add(1)
		go func(i int, h EndpointHandle) {
			defer wg.Done()
			rpcCtx, cancel := cluster.WithTimeout(ctx, c.cfg.RPCTimeout())
			defer cancel()
			members[i], errs[i] = h.StartWorker(rpcCtx, c.cfg)
		}(i, h)
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: endpoint %s did not start within %s",
				ErrBootstrapTimeout, endpoints[i].ProcessID, c.cfg.RPCTimeout())
		}
		return fmt.Errorf("starting worker on %s: %w", endpoints[i].ProcessID, err)
	}

	c.mu.Lock()
	c.members = members
	c.mu.Unlock()
	c.setState(StateWorkersStarted)
	return nil
}

// distributeMembership broadcasts the flat file to every endpoint,
// fire-and-forget. Correctness is enforced at the barrier, not here, so
// transport errors are only logged.
func (c *Coordinator) distributeMembership(ctx context.Context) {
	members := c.Members()
	for _, h := range c.handles() {
		rpcCtx, cancel := cluster.WithTimeout(ctx, c.cfg.RPCTimeout())
		if err := h.Distribute(rpcCtx, members, c.cfg.InternalPortOffset); err != nil {
			log.Printf("coordinator: flat file to %s: %v", h.ProcessID, err)
		}
		cancel()
	}
	c.setState(StateMembershipDistributed)
}

// awaitBarrier polls every endpoint's reported cloud size until all of them
// see the full membership, or the cloud timeout elapses.
func (c *Coordinator) awaitBarrier(ctx context.Context) error {
	endpoints := c.handles()
	want := len(endpoints)
	deadline := time.Now().Add(c.cfg.CloudTimeout())

	ticker := time.NewTicker(c.cfg.BarrierPoll())
	defer ticker.Stop()

	for {
		if c.barrierSatisfied(ctx, endpoints, want) {
			c.setState(StateBarrierSatisfied)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: not all of %d nodes joined within %s",
				ErrBootstrapTimeout, want, c.cfg.CloudTimeout())
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrBootstrapTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// barrierSatisfied asks each endpoint for its live size. A failed poll counts
// as "not yet": the cloud may still be forming.
func (c *Coordinator) barrierSatisfied(ctx context.Context, endpoints []EndpointHandle, want int) bool {
	for _, h := range endpoints {
		rpcCtx, cancel := cluster.WithTimeout(ctx, c.cfg.RPCTimeout())
		size, err := h.ClusterSize(rpcCtx)
		cancel()
		if err != nil {
			log.Printf("coordinator: size poll %s: %v", h.ProcessID, err)
			return false
		}
		if size != want {
			return false
		}
	}
	return true
}

// lockCluster sends the membership lock to exactly one endpoint, the first.
// The underlying cluster protocol propagates the lock; sending it twice
// risks duplicate-lock races, so no other endpoint ever sees it.
func (c *Coordinator) lockCluster(ctx context.Context) error {
	endpoints := c.handles()
	if len(endpoints) == 0 {
		return fmt.Errorf("%w: no endpoints to lock", ErrProtocolInvariant)
	}
	rpcCtx, cancel := cluster.WithTimeout(ctx, c.cfg.RPCTimeout())
	defer cancel()
	if err := endpoints[0].Lock(rpcCtx); err != nil {
		return fmt.Errorf("locking cloud via %s: %w", endpoints[0].ProcessID, err)
	}
	c.setState(StateLocked)
	return nil
}

// discoverLeader asks every endpoint for its locally-known leader and takes
// the first non-empty answer. The remaining replies are still scanned:
// divergence would break an assumption the underlying protocol is supposed
// to guarantee, so it is loudly flagged rather than silently trusted.
func (c *Coordinator) discoverLeader(ctx context.Context) error {
	var leader cluster.NodeDescriptor
	found := false
	for _, h := range c.handles() {
		rpcCtx, cancel := cluster.WithTimeout(ctx, c.cfg.RPCTimeout())
		candidate, ok, err := h.Leader(rpcCtx)
		cancel()
		if err != nil {
			log.Printf("coordinator: leader query %s: %v", h.ProcessID, err)
			continue
		}
		if !ok {
			continue
		}
		if !found {
			leader = candidate
			found = true
			continue
		}
		if candidate != leader {
			log.Printf("coordinator: leader disagreement: %s reports %s, expected %s",
				h.ProcessID, candidate.Addr(), leader.Addr())
		}
	}
	if !found {
		return fmt.Errorf("%w: no endpoint reported a leader", ErrProtocolInvariant)
	}

	c.mu.Lock()
	c.leader = leader
	c.mu.Unlock()
	c.setState(StateLeaderKnown)
	log.Printf("coordinator: cloud %s up, leader %s", c.cfg.CloudName, leader.Addr())
	return nil
}

// Teardown stops every endpoint's RPC machinery. The compute cloud itself
// keeps running; only the bootstrap scaffolding is released.
func (c *Coordinator) Teardown(ctx context.Context) error {
	var firstErr error
	for _, h := range c.handles() {
		rpcCtx, cancel := cluster.WithTimeout(ctx, c.cfg.RPCTimeout())
		if err := h.Stop(rpcCtx); err != nil {
			log.Printf("coordinator: stopping endpoint %s: %v", h.ProcessID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		cancel()
	}
	c.mu.Lock()
	c.endpoints = nil
	c.mu.Unlock()
	c.setState(StateTornDown)
	return firstErr
}

// BootstrapLocal is the single-process path: the host engine runs
// non-distributed, so the whole endpoint/barrier protocol is bypassed and one
// compute node is started and registered directly in-process. No barrier is
// meaningful for a node that never had peers to disagree with.
func (c *Coordinator) BootstrapLocal(ctx context.Context) (*endpoint.EmbeddedNode, error) {
	if s := c.State(); s != StateIdle {
		return nil, fmt.Errorf("%w: bootstrap attempted in state %s", ErrProtocolInvariant, s)
	}

	node := endpoint.NewEmbeddedNode("local")
	desc, err := node.Start(ctx, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("starting local compute node: %w", err)
	}
	members := []cluster.NodeDescriptor{desc}
	if err := node.Distribute(ctx, members, c.cfg.InternalPortOffset); err != nil {
		return nil, err
	}
	if err := node.Lock(ctx); err != nil {
		return nil, err
	}
	leader, ok, err := node.Leader(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: local node reported no leader", ErrProtocolInvariant)
	}

	c.mu.Lock()
	c.members = members
	c.leader = leader
	c.mu.Unlock()
	c.setState(StateLeaderKnown)
	log.Printf("coordinator: local cloud %s up at %s", c.cfg.CloudName, desc.Addr())
	return node, nil
}

func (c *Coordinator) handles() []EndpointHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EndpointHandle(nil), c.endpoints...)
}
