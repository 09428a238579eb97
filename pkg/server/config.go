package server

import (
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node"
	"github.com/ethpandaops/godwoken-proxy/pkg/indexer"
	"github.com/ethpandaops/godwoken-proxy/pkg/redis"
	"github.com/ethpandaops/godwoken-proxy/pkg/rpc"
)

// EnvUpstreamURL overrides the configured upstream endpoint when set.
const EnvUpstreamURL = "GODWOKEN_RPC_URL"

type Config struct {
	// MetricsAddr is the address to listen on for metrics.
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`
	// HealthCheckAddr is the address to listen on for healthcheck.
	HealthCheckAddr *string `yaml:"healthCheckAddr"`
	// PProfAddr is the address to listen on for pprof.
	PProfAddr *string `yaml:"pprofAddr"`
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// RPC is the inbound JSON-RPC server configuration.
	RPC rpc.Config `yaml:"rpc"`
	// Godwoken is the upstream node configuration.
	Godwoken godwoken.Config `yaml:"godwoken"`
	// Redis is the redis configuration, required when the indexer is enabled.
	Redis *redis.Config `yaml:"redis"`
	// Indexer is the web3 indexer configuration.
	Indexer indexer.Config `yaml:"indexer"`
	// ShutdownTimeout is the timeout for shutting down the server.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
}

// ApplyEnvOverrides folds environment overrides into the loaded config.
// GODWOKEN_RPC_URL points every configured node at the given endpoint, or
// defines a default node when none are configured.
func (c *Config) ApplyEnvOverrides() {
	url := os.Getenv(EnvUpstreamURL)
	if url == "" {
		return
	}

	if len(c.Godwoken.Nodes) == 0 {
		c.Godwoken.Nodes = []*node.Config{{
			Name:    "default",
			Address: url,
		}}

		return
	}

	for _, n := range c.Godwoken.Nodes {
		n.Address = url
	}
}

func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("invalid rpc configuration: %w", err)
	}

	if err := c.Godwoken.Validate(); err != nil {
		return fmt.Errorf("invalid godwoken configuration: %w", err)
	}

	if err := c.Indexer.Validate(); err != nil {
		return fmt.Errorf("invalid indexer configuration: %w", err)
	}

	if c.Indexer.Enabled {
		if c.Redis == nil {
			return fmt.Errorf("redis configuration is required when the indexer is enabled")
		}

		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid redis configuration: %w", err)
		}
	}

	return nil
}
