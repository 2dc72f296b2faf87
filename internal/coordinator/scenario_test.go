package coordinator

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfathom/hydroml/internal/endpoint"
)

// TestTwoWorkerScenario runs the full protocol against two real endpoint
// servers with embedded compute nodes: both start and report descriptors,
// membership is distributed, both reach size 2 within the timeout, the lock
// goes to the first endpoint only, and the leader query yields one consistent
// descriptor.
func TestTwoWorkerScenario(t *testing.T) {
	nodes := []*endpoint.EmbeddedNode{
		endpoint.NewEmbeddedNode("w0"),
		endpoint.NewEmbeddedNode("w1"),
	}

	handles := make([]EndpointHandle, len(nodes))
	for i, n := range nodes {
		srv := httptest.NewServer(endpoint.NewServer(":0", n).Handler())
		t.Cleanup(srv.Close)
		handles[i] = EndpointHandle{ProcessID: fmt.Sprintf("w%d", i), BaseURL: srv.URL}
	}

	cfg := testConfig() // expected worker count deliberately unset
	coord := New(cfg)

	require.NoError(t, coord.Bootstrap(context.Background(), handles))
	assert.Equal(t, StateLeaderKnown, coord.State())

	members := coord.Members()
	require.Len(t, members, 2)

	// Both compute nodes observe the full membership.
	for _, n := range nodes {
		size, err := n.Size(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, size)
	}

	// The leader is a single consistent descriptor drawn from the membership.
	leader := coord.Leader()
	assert.False(t, leader.Zero())
	assert.Contains(t, members, leader)
}
