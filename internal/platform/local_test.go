package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runctl/internal/environment"
	"runctl/internal/schema"
	"runctl/internal/space"
)

func overrideCapability(cores, memoryMB int) *schema.NodeSpace {
	return &schema.NodeSpace{
		Name:      "test-host",
		NodeCount: space.ExactCount(1),
		CoreCount: space.ExactCount(cores),
		MemoryMB:  space.ExactCount(memoryMB),
		NicCount:  space.ExactCount(1),
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(schema.PlatformConfig{Kind: "teleporter"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestLocalPlatformDiscovery(t *testing.T) {
	p, err := New(schema.PlatformConfig{Kind: "local"})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Kind())

	caps := p.Capabilities()
	require.Len(t, caps, 1)
	cores, exact := caps[0].CoreCount.Exact()
	require.True(t, exact)
	assert.GreaterOrEqual(t, cores, 1)
	nodes, _ := caps[0].NodeCount.Exact()
	assert.Equal(t, 1, nodes, "capability pins node_count to one")
}

func TestLocalPlatformRequestAndDelete(t *testing.T) {
	p, err := New(schema.PlatformConfig{
		Kind:       "local",
		Capability: overrideCapability(8, 16384),
	})
	require.NoError(t, err)

	req := schema.DefaultNodeSpace()
	req.CoreCount = space.MinCount(2)
	env := environment.New("", []*schema.NodeSpace{req})

	require.NoError(t, p.RequestEnvironment(context.Background(), env))
	assert.Equal(t, environment.StatusDeployed, env.Status)
	require.Len(t, env.Nodes, 1)

	// The node carries the negotiated minimum, not the raw offer.
	cores, exact := env.Nodes[0].Capability.CoreCount.Exact()
	require.True(t, exact)
	assert.Equal(t, 8, cores, "fixed capability offers exactly its size")

	require.NoError(t, p.DeleteEnvironment(context.Background(), env))
	assert.Equal(t, environment.StatusDeleted, env.Status)
	assert.Empty(t, env.Nodes)
}

func TestLocalPlatformRefusesMultiNode(t *testing.T) {
	p, err := New(schema.PlatformConfig{
		Kind:       "local",
		Capability: overrideCapability(4, 8192),
	})
	require.NoError(t, err)

	reqs := []*schema.NodeSpace{schema.DefaultNodeSpace(), schema.DefaultNodeSpace()}
	env := environment.New("multi", reqs)
	err = p.RequestEnvironment(context.Background(), env)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefused)
}

func TestLocalPlatformRefusesUnsatisfiable(t *testing.T) {
	p, err := New(schema.PlatformConfig{
		Kind:       "local",
		Capability: overrideCapability(4, 8192),
	})
	require.NoError(t, err)

	req := schema.DefaultNodeSpace()
	req.CoreCount = space.MinCount(64)
	env := environment.New("huge", []*schema.NodeSpace{req})
	err = p.RequestEnvironment(context.Background(), env)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefused)
}
