package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkEvent(t *testing.T) {
	ev, err := parseLinkEvent("a-b@30s")
	require.NoError(t, err)
	assert.Equal(t, linkEvent{a: "a", b: "b", at: 30 * time.Second}, ev)

	for _, bad := range []string{"a-b", "ab@1s", "-b@1s", "a-b@soon", "a-b@-1s"} {
		_, err := parseLinkEvent(bad)
		assert.Error(t, err, bad)
	}
}

func TestSampleMesh(t *testing.T) {
	cfg, err := sampleMesh(4, "star")
	require.NoError(t, err)
	peers, err := cfg.GetPeers("n0")
	require.NoError(t, err)
	assert.ElementsMatch(t, []state.NodeId{"n1", "n2", "n3"}, peers)

	cfg, err = sampleMesh(3, "line")
	require.NoError(t, err)
	assert.Equal(t, []string{"n0, n1", "n1, n2"}, cfg.Graph)

	_, err = sampleMesh(1, "line")
	assert.Error(t, err)
	_, err = sampleMesh(3, "ring")
	assert.Error(t, err)
}

func TestSampleMesh_RoundTrip(t *testing.T) {
	cfg, err := sampleMesh(3, "line")
	require.NoError(t, err)
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "mesh.yaml")
	require.NoError(t, os.WriteFile(p, out, 0600))
	read, err := core.ReadMeshConfig(p)
	require.NoError(t, err)
	require.NoError(t, state.MeshConfigValidator(read))
	assert.Equal(t, cfg.Nodes[2].Prefix, read.Nodes[2].Prefix)
	assert.True(t, read.Nodes[0].Root)
}
