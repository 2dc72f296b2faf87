package coordinator

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/openfathom/hydroml/internal/cluster"
)

// EndpointHandle is the opaque reference through which the coordinator talks
// to one registered worker endpoint. Created during registration, invalidated
// at teardown.
type EndpointHandle struct {
	ProcessID string `json:"process_id"`
	BaseURL   string `json:"base_url"`
}

// StartWorker asks the endpoint to spawn its local compute node and blocks
// for the descriptor reply.
func (h EndpointHandle) StartWorker(ctx context.Context, cfg cluster.ClusterConfig) (cluster.NodeDescriptor, error) {
	var out cluster.StartWorkerResponse
	err := cluster.PostJSON(ctx, h.BaseURL+"/worker/start", cluster.StartWorkerRequest{Config: cfg}, &out)
	return out.Node, err
}

// Distribute sends the flat membership file. Fire-and-forget at the protocol
// level; transport errors are still reported so callers can log them.
func (h EndpointHandle) Distribute(ctx context.Context, nodes []cluster.NodeDescriptor, portOffset int) error {
	req := cluster.DistributeRequest{Nodes: nodes, PortOffset: portOffset}
	return cluster.PostJSON(ctx, h.BaseURL+"/worker/flatfile", req, nil)
}

// ClusterSize polls the endpoint's live view of the cloud size.
func (h EndpointHandle) ClusterSize(ctx context.Context) (int, error) {
	var out cluster.ClusterSizeResponse
	err := cluster.GetJSON(ctx, h.BaseURL+"/worker/size", &out)
	return out.Size, err
}

// Lock sends the one-shot membership lock.
func (h EndpointHandle) Lock(ctx context.Context) error {
	return cluster.PostJSON(ctx, h.BaseURL+"/worker/lock", struct{}{}, nil)
}

// Leader queries the endpoint's locally-known leader.
func (h EndpointHandle) Leader(ctx context.Context) (cluster.NodeDescriptor, bool, error) {
	var out cluster.LeaderResponse
	if err := cluster.GetJSON(ctx, h.BaseURL+"/worker/leader", &out); err != nil {
		return cluster.NodeDescriptor{}, false, err
	}
	if out.Leader == nil || out.Leader.Zero() {
		return cluster.NodeDescriptor{}, false, nil
	}
	return *out.Leader, true, nil
}

// Stop releases the endpoint's RPC machinery. The compute node keeps running.
func (h EndpointHandle) Stop(ctx context.Context) error {
	return cluster.PostJSON(ctx, h.BaseURL+"/worker/stop", struct{}{}, nil)
}

// Registry tracks worker endpoints in discovery order. Registration order
// matters: when the caller caps the worker count, the sub-selection is the
// first N registered endpoints, a fixed deterministic cut rather than a
// sample.
type Registry struct {
	mu      sync.RWMutex
	handles []EndpointHandle
}

// NewRegistry returns an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds or updates an endpoint. Re-registration of a known process ID
// replaces the handle in place, preserving discovery order.
func (r *Registry) Register(h EndpointHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := slices.IndexFunc(r.handles, func(e EndpointHandle) bool { return e.ProcessID == h.ProcessID })
	if idx >= 0 {
		r.handles[idx] = h
		return
	}
	r.handles = append(r.handles, h)
}

// Endpoints returns a copy of the registered handles in discovery order.
func (r *Registry) Endpoints() []EndpointHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EndpointHandle(nil), r.handles...)
}

// Len reports the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
