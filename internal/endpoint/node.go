package endpoint

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/openfathom/hydroml/internal/cluster"
)

// ErrAlreadyLocked is returned when a compute node receives a second
// membership lock. The coordinator sends the lock exactly once; a duplicate
// indicates a protocol violation upstream.
var ErrAlreadyLocked = errors.New("cluster membership already locked")

// ErrNotStarted is returned by node operations invoked before Start.
var ErrNotStarted = errors.New("compute node not started")

// ComputeNode is the endpoint's view of its local compute-cloud member. The
// process-backed implementation drives an external runtime; the embedded
// implementation keeps the whole node in-process for single-process mode and
// tests.
type ComputeNode interface {
	// Start spawns or reports the local compute node and returns its
	// descriptor. Not idempotent; the protocol guarantees one call per
	// session.
	Start(ctx context.Context, cfg cluster.ClusterConfig) (cluster.NodeDescriptor, error)

	// Distribute hands the node the flat membership file and the internal
	// port offset. Idempotent, last write wins.
	Distribute(ctx context.Context, nodes []cluster.NodeDescriptor, portOffset int) error

	// Size returns the node's current observed peer count. This is a live
	// query, never a cached value.
	Size(ctx context.Context) (int, error)

	// Lock closes the cloud to new members. One-shot.
	Lock(ctx context.Context) error

	// Leader returns the locally-known leader, or ok=false while the
	// underlying cluster protocol has not elected one.
	Leader(ctx context.Context) (cluster.NodeDescriptor, bool, error)
}

// EmbeddedNode is an in-process ComputeNode. It backs single-process mode,
// where the host engine runs non-distributed and no peer protocol is needed,
// and stands in for the external runtime in tests.
//
// Leader election is emulated deterministically: once locked, the member with
// the smallest address wins. Every embedded node holding the same flat file
// therefore reports the same leader.
type EmbeddedNode struct {
	mu        sync.Mutex
	self      cluster.NodeDescriptor
	members   []cluster.NodeDescriptor
	listener  net.Listener
	processID string
	started   bool
	locked    bool
}

// NewEmbeddedNode returns an unstarted embedded node. An empty processID is
// replaced with a generated one.
func NewEmbeddedNode(processID string) *EmbeddedNode {
	if processID == "" {
		processID = "embedded-" + uuid.NewString()[:8]
	}
	return &EmbeddedNode{processID: processID}
}

// Start binds a loopback port so the node has a real, reservable address and
// returns the resulting descriptor. The listener stays open for the life of
// the process; endpoint teardown does not release it.
func (n *EmbeddedNode) Start(_ context.Context, _ cluster.ClusterConfig) (cluster.NodeDescriptor, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return n.self, errors.New("compute node already started")
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return cluster.NodeDescriptor{}, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	n.listener = l
	n.self = cluster.NodeDescriptor{
		ProcessID: n.processID,
		Host:      "127.0.0.1",
		Port:      port,
	}
	n.started = true
	return n.self, nil
}

// Distribute stores the membership list. Repeated calls overwrite the
// previous list.
func (n *EmbeddedNode) Distribute(_ context.Context, nodes []cluster.NodeDescriptor, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return ErrNotStarted
	}
	n.members = append([]cluster.NodeDescriptor(nil), nodes...)
	return nil
}

// Size reports the observed peer count: the distributed membership once the
// flat file arrived, otherwise just the node itself.
func (n *EmbeddedNode) Size(_ context.Context) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return 0, ErrNotStarted
	}
	if len(n.members) == 0 {
		return 1, nil
	}
	return len(n.members), nil
}

// Lock closes membership. A second lock is a protocol violation.
func (n *EmbeddedNode) Lock(_ context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return ErrNotStarted
	}
	if n.locked {
		return ErrAlreadyLocked
	}
	n.locked = true
	return nil
}

// Leader returns the smallest-addressed member once the cloud is locked.
func (n *EmbeddedNode) Leader(_ context.Context) (cluster.NodeDescriptor, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return cluster.NodeDescriptor{}, false, ErrNotStarted
	}
	if !n.locked {
		return cluster.NodeDescriptor{}, false, nil
	}
	members := n.members
	if len(members) == 0 {
		members = []cluster.NodeDescriptor{n.self}
	}
	leader := members[0]
	for _, m := range members[1:] {
		if lessAddr(m, leader) {
			leader = m
		}
	}
	return leader, true, nil
}

// lessAddr orders descriptors by host, then port, matching the tie-break the
// emulated election uses.
func lessAddr(a, b cluster.NodeDescriptor) bool {
	if a.Host != b.Host {
		return a.Host < b.Host
	}
	return a.Port < b.Port
}

// SortMembers orders a membership list by address in place, giving the flat
// file a stable on-disk and on-wire form.
func SortMembers(nodes []cluster.NodeDescriptor) {
	sort.Slice(nodes, func(i, j int) bool { return lessAddr(nodes[i], nodes[j]) })
}
