package server

import (
	"testing"

	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node"
	"github.com/ethpandaops/godwoken-proxy/pkg/indexer"
	"github.com/ethpandaops/godwoken-proxy/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		RPC: rpc.Config{Addr: ":8024", ChainID: 71402},
		Godwoken: godwoken.Config{
			Nodes: []*node.Config{{Name: "primary", Address: "http://localhost:8119"}},
		},
		Indexer: indexer.Config{},
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfigValidateMissingChainID(t *testing.T) {
	config := validConfig()
	config.RPC.ChainID = 0

	assert.Error(t, config.Validate())
}

func TestConfigValidateMissingNodes(t *testing.T) {
	config := validConfig()
	config.Godwoken.Nodes = nil

	assert.Error(t, config.Validate())
}

func TestConfigValidateIndexerRequiresRedis(t *testing.T) {
	config := validConfig()
	config.Indexer.Enabled = true
	config.Indexer.Storage.DSN = "postgres://localhost/godwoken"
	config.Indexer.Concurrency = 4
	config.Redis = nil

	assert.Error(t, config.Validate())
}

func TestApplyEnvOverridesReplacesAddresses(t *testing.T) {
	t.Setenv(EnvUpstreamURL, "http://override:8119")

	config := validConfig()
	config.ApplyEnvOverrides()

	require.Len(t, config.Godwoken.Nodes, 1)
	assert.Equal(t, "http://override:8119", config.Godwoken.Nodes[0].Address)
	assert.Equal(t, "primary", config.Godwoken.Nodes[0].Name)
}

func TestApplyEnvOverridesCreatesDefaultNode(t *testing.T) {
	t.Setenv(EnvUpstreamURL, "http://override:8119")

	config := validConfig()
	config.Godwoken.Nodes = nil
	config.ApplyEnvOverrides()

	require.Len(t, config.Godwoken.Nodes, 1)
	assert.Equal(t, "default", config.Godwoken.Nodes[0].Name)
	assert.Equal(t, "http://override:8119", config.Godwoken.Nodes[0].Address)
}

func TestApplyEnvOverridesNoEnv(t *testing.T) {
	t.Setenv(EnvUpstreamURL, "")

	config := validConfig()
	config.ApplyEnvOverrides()

	assert.Equal(t, "http://localhost:8119", config.Godwoken.Nodes[0].Address)
}
