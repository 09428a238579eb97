package indexer

import (
	"fmt"
	"time"

	"github.com/ethpandaops/godwoken-proxy/pkg/leaderelection"
)

type StorageConfig struct {
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn"`
	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int `yaml:"maxOpenConns" default:"10"`
}

func (c *StorageConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("storage dsn is required")
	}

	return nil
}

type LeaderElectionConfig struct {
	Enabled               bool `yaml:"enabled" default:"true"`
	leaderelection.Config `yaml:",inline"`
}

type Config struct {
	// Enabled controls whether the indexer runs at all. The proxy serves
	// forwarded calls either way.
	Enabled bool `yaml:"enabled" default:"false"`
	// Storage is the Postgres backing store.
	Storage StorageConfig `yaml:"storage"`
	// Queue is the asynq queue name for index tasks.
	Queue string `yaml:"queue" default:"index"`
	// Concurrency is the number of concurrent task workers.
	Concurrency int `yaml:"concurrency" default:"4"`
	// PollInterval is how often the tracker checks the upstream tip.
	PollInterval time.Duration `yaml:"pollInterval" default:"3s"`
	// MaxBlocksPerPoll caps how many blocks are enqueued per tip check.
	MaxBlocksPerPoll uint64 `yaml:"maxBlocksPerPoll" default:"64"`
	// LeaderElection ensures only one replica enqueues blocks.
	LeaderElection LeaderElectionConfig `yaml:"leaderElection"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage configuration: %w", err)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	return nil
}
