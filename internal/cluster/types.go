package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// NodeDescriptor identifies one worker-hosted compute node by the address its
// runtime bound to. Descriptors are immutable: one is created when a worker's
// compute process reports its bind address and it is discarded at teardown.
type NodeDescriptor struct {
	ProcessID string `json:"process_id"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
}

// Addr returns the node's host:port form, as written into the flat file.
func (n NodeDescriptor) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// Zero reports whether the descriptor is the empty value, used by leader
// queries to signal "not yet known".
func (n NodeDescriptor) Zero() bool {
	return n.ProcessID == "" && n.Host == "" && n.Port == 0
}

// StartWorkerRequest asks an endpoint to spawn (or report) its local compute
// node. Sent exactly once per bootstrap session.
type StartWorkerRequest struct {
	Config ClusterConfig `json:"config"`
}

// StartWorkerResponse carries the descriptor of the started compute node.
type StartWorkerResponse struct {
	Node NodeDescriptor `json:"node"`
}

// DistributeRequest broadcasts the complete membership list (the flat file)
// plus the configured port offset. Idempotent: last write wins.
type DistributeRequest struct {
	Nodes      []NodeDescriptor `json:"nodes"`
	PortOffset int              `json:"port_offset"`
}

// ClusterSizeResponse reports the compute node's live observed peer count.
type ClusterSizeResponse struct {
	Size int `json:"size"`
}

// LeaderResponse reports the locally-known leader node. Leader is nil until
// the underlying cluster protocol has elected one.
type LeaderResponse struct {
	Leader *NodeDescriptor `json:"leader,omitempty"`
}

// httpClient has no global timeout; every call goes through a caller-supplied
// context carrying the per-RPC deadline.
var httpClient = &http.Client{}

// PostJSON sends body as JSON to url and decodes the response into out when
// out is non-nil. Status codes >= 300 are returned as errors.
func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON fetches url and decodes the JSON response into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WithTimeout derives a context for one RPC exchange. A zero timeout falls
// back to a conservative default so a misconfigured client never blocks
// forever.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
