package rpc

import "fmt"

type Config struct {
	// Addr is the address the JSON-RPC server listens on.
	Addr string `yaml:"addr" default:":8024"`
	// ChainID is the chain identifier reported by net_version.
	ChainID uint64 `yaml:"chainId"`
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("rpc addr is required")
	}

	if c.ChainID == 0 {
		return fmt.Errorf("rpc chainId is required")
	}

	return nil
}
