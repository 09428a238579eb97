package godwoken

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pool holds the upstream Godwoken nodes and tracks which of them are
// healthy enough to serve forwarded calls.
type Pool struct {
	log     logrus.FieldLogger
	nodes   []*node.Node
	metrics *Metrics
	config  *Config

	mu sync.RWMutex

	healthyNodes map[*node.Node]bool
}

func NewPool(log logrus.FieldLogger, namespace string, config *Config) *Pool {
	namespace = fmt.Sprintf("%s_godwoken", namespace)

	p := &Pool{
		log:          log,
		nodes:        make([]*node.Node, 0, len(config.Nodes)),
		healthyNodes: make(map[*node.Node]bool, len(config.Nodes)),
		metrics:      GetMetricsInstance(namespace),
		config:       config,
	}

	for _, nodeCfg := range config.Nodes {
		p.nodes = append(p.nodes, node.NewNode(log, nodeCfg))
	}

	return p
}

func (p *Pool) HasNodes() bool {
	return len(p.nodes) > 0
}

func (p *Pool) HasHealthyNodes() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, isHealthy := range p.healthyNodes {
		if isHealthy {
			return true
		}
	}

	return false
}

// GetHealthyNode returns a random healthy node, or nil if none is available.
func (p *Pool) GetHealthyNode() *node.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := make([]*node.Node, 0, len(p.healthyNodes))

	for n, isHealthy := range p.healthyNodes {
		if isHealthy {
			healthy = append(healthy, n)
		}
	}

	if len(healthy) == 0 {
		return nil
	}

	//nolint:gosec // doesn't matter
	return healthy[rand.IntN(len(healthy))]
}

// WaitForHealthyNode blocks until a node becomes healthy or the context is
// cancelled.
func (p *Pool) WaitForHealthyNode(ctx context.Context) (*node.Node, error) {
	if len(p.nodes) == 0 {
		return nil, fmt.Errorf("no godwoken nodes configured")
	}

	attemptCount := 0
	startTime := time.Now()

	p.log.WithField("total_nodes", len(p.nodes)).Info("Waiting for healthy godwoken node")

	statusLogTicker := time.NewTicker(10 * time.Second)
	defer statusLogTicker.Stop()

	for {
		attemptCount++

		if n := p.GetHealthyNode(); n != nil {
			p.log.WithFields(logrus.Fields{
				"attempts": attemptCount,
				"duration": time.Since(startTime).Round(time.Millisecond),
			}).Info("Found healthy godwoken node")

			return n, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-statusLogTicker.C:
			p.mu.RLock()

			healthyCount := 0

			for _, isHealthy := range p.healthyNodes {
				if isHealthy {
					healthyCount++
				}
			}

			p.mu.RUnlock()

			p.log.WithFields(logrus.Fields{
				"healthy_nodes": healthyCount,
				"total_nodes":   len(p.nodes),
				"attempts":      attemptCount,
				"waiting_for":   time.Since(startTime).Round(time.Second),
			}).Info("Waiting for healthy godwoken node...")
		case <-time.After(time.Second):
		}
	}
}

func (p *Pool) Start(ctx context.Context) {
	// Error group that doesn't propagate cancellation to children.
	g := new(errgroup.Group)

	p.UpdateNodeMetrics()

	for _, n := range p.nodes {
		g.Go(func() error {
			n.OnReady(ctx, func(innerCtx context.Context) error {
				p.mu.Lock()
				p.healthyNodes[n] = true
				p.mu.Unlock()

				p.UpdateNodeMetrics()

				return nil
			})

			return n.Start(ctx)
		})
	}

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.mu.RLock()
				healthy := 0

				for _, isHealthy := range p.healthyNodes {
					if isHealthy {
						healthy++
					}
				}
				p.mu.RUnlock()

				p.log.WithFields(logrus.Fields{
					"healthy_nodes": fmt.Sprintf("%d/%d", healthy, len(p.nodes)),
				}).Info("Pool status")
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.refreshHealth()
			}
		}
	}()
}

// refreshHealth re-evaluates node health from each node's metadata service.
func (p *Pool) refreshHealth() {
	p.mu.Lock()

	for _, n := range p.nodes {
		metadata := n.Metadata()
		if metadata == nil {
			continue
		}

		// A node that was never ready stays out of the healthy map until
		// its OnReady callback fires.
		if _, seen := p.healthyNodes[n]; !seen {
			continue
		}

		p.healthyNodes[n] = metadata.IsAlive()
	}

	p.mu.Unlock()

	p.UpdateNodeMetrics()
}

func (p *Pool) Stop(ctx context.Context) error {
	for _, n := range p.nodes {
		if err := n.Stop(ctx); err != nil {
			p.log.WithError(err).WithField("node", n.Name()).Error("Failed to stop godwoken node")
		}
	}

	return nil
}

func (p *Pool) UpdateNodeMetrics() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := 0

	for _, isHealthy := range p.healthyNodes {
		if isHealthy {
			healthy++
		}
	}

	p.metrics.SetNodesTotal(float64(len(p.nodes)), []string{"godwoken", "total"})
	p.metrics.SetNodesTotal(float64(healthy), []string{"godwoken", "healthy"})
}
