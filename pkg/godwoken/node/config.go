package node

import "fmt"

type Config struct {
	// Name is a human readable identifier for this node, used in logs and
	// metric labels.
	Name string `yaml:"name"`
	// Address is the upstream node's JSON-RPC endpoint URL.
	Address string `yaml:"address"`
	// Headers are extra HTTP headers attached to every upstream request.
	Headers map[string]string `yaml:"headers"`
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("node name is required")
	}

	if c.Address == "" {
		return fmt.Errorf("node address is required")
	}

	return nil
}
