package godwoken

import (
	"fmt"

	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node"
)

type Config struct {
	// Nodes are the upstream Godwoken endpoints to proxy to.
	Nodes []*node.Config `yaml:"nodes"`
}

func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one godwoken node is required")
	}

	for i, n := range c.Nodes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("invalid godwoken node configuration at index %d: %w", i, err)
		}
	}

	return nil
}
