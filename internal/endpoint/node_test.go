package endpoint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfathom/hydroml/internal/cluster"
)

func TestEmbeddedNodeLifecycle(t *testing.T) {
	ctx := context.Background()
	node := NewEmbeddedNode("w0")

	// Operations before Start fail.
	_, err := node.Size(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, node.Lock(ctx), ErrNotStarted)

	desc, err := node.Start(ctx, cluster.ClusterConfig{})
	require.NoError(t, err)
	assert.Equal(t, "w0", desc.ProcessID)
	assert.NotZero(t, desc.Port)

	// Before the flat file arrives the node only knows itself.
	size, err := node.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	// Double start is a protocol violation.
	_, err = node.Start(ctx, cluster.ClusterConfig{})
	assert.Error(t, err)
}

func TestEmbeddedNodeDistributeIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	node := NewEmbeddedNode("w0")
	desc, err := node.Start(ctx, cluster.ClusterConfig{})
	require.NoError(t, err)

	peers := []cluster.NodeDescriptor{
		desc,
		{ProcessID: "w1", Host: "127.0.0.1", Port: desc.Port + 1},
		{ProcessID: "w2", Host: "127.0.0.1", Port: desc.Port + 2},
	}
	require.NoError(t, node.Distribute(ctx, peers, 1))
	size, _ := node.Size(ctx)
	assert.Equal(t, 3, size)

	// A repeated broadcast overwrites the previous list.
	require.NoError(t, node.Distribute(ctx, peers[:2], 1))
	size, _ = node.Size(ctx)
	assert.Equal(t, 2, size)
}

func TestEmbeddedNodeLeaderElection(t *testing.T) {
	ctx := context.Background()
	node := NewEmbeddedNode("w0")
	desc, err := node.Start(ctx, cluster.ClusterConfig{})
	require.NoError(t, err)

	low := cluster.NodeDescriptor{ProcessID: "w1", Host: "127.0.0.1", Port: 1}
	require.NoError(t, node.Distribute(ctx, []cluster.NodeDescriptor{desc, low}, 1))

	// No leader before lock.
	_, ok, err := node.Leader(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, node.Lock(ctx))

	leader, ok, err := node.Leader(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, low, leader, "smallest address wins")

	// Lock is one-shot.
	assert.ErrorIs(t, node.Lock(ctx), ErrAlreadyLocked)
}

func TestSortMembers(t *testing.T) {
	nodes := []cluster.NodeDescriptor{
		{Host: "10.0.0.5", Port: 2},
		{Host: "10.0.0.4", Port: 9},
		{Host: "10.0.0.4", Port: 3},
	}
	SortMembers(nodes)
	assert.Equal(t, "10.0.0.4:3", nodes[0].Addr())
	assert.Equal(t, "10.0.0.4:9", nodes[1].Addr())
	assert.Equal(t, "10.0.0.5:2", nodes[2].Addr())
}

func TestWriteFlatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flatfile")
	nodes := []cluster.NodeDescriptor{
		{Host: "10.0.0.5", Port: 54321},
		{Host: "10.0.0.4", Port: 54321},
	}
	require.NoError(t, writeFlatFile(path, nodes))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, []string{"10.0.0.4:54321", "10.0.0.5:54321"}, lines)

	// Rewriting replaces the file, never appends.
	require.NoError(t, writeFlatFile(path, nodes[:1]))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:54321\n", string(raw))
}

func TestProcessNodeRequiresStart(t *testing.T) {
	p := &ProcessNode{Binary: "/does/not/matter"}
	_, err := p.Size(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	_, _, err = p.Leader(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}
