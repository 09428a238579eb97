package leaderelection

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/godwoken-proxy/pkg/common/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Lua scripts for atomic check-ownership-then-act operations.
const (
	renewScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	releaseScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
)

// RedisElector implements leader election on a single Redis key with a TTL
// lock, renewed on an interval while held.
type RedisElector struct {
	client  *redis.Client
	log     logrus.FieldLogger
	config  *Config
	nodeID  string
	keyName string

	mu       sync.RWMutex
	isLeader bool
	stopped  bool

	callbacksMu sync.RWMutex
	callbacks   []LeadershipCallback

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewRedisElector creates a new Redis-based leader elector.
func NewRedisElector(client *redis.Client, log logrus.FieldLogger, keyName string, config *Config) (*RedisElector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	nodeID := config.NodeID
	if nodeID == "" {
		bytes := make([]byte, 16)

		if _, err := rand.Read(bytes); err != nil {
			return nil, fmt.Errorf("failed to generate node ID: %w", err)
		}

		nodeID = hex.EncodeToString(bytes)
	}

	return &RedisElector{
		client:   client,
		log:      log.WithField("component", "leader-election").WithField("node_id", nodeID),
		config:   config,
		nodeID:   nodeID,
		keyName:  keyName,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the leader election process.
func (e *RedisElector) Start(ctx context.Context) error {
	e.log.Info("Starting leader election")

	metrics.LeaderElectionStatus.WithLabelValues(e.nodeID).Set(0)

	e.wg.Add(1)

	go e.run(ctx)

	return nil
}

// Stop gracefully stops the leader election.
func (e *RedisElector) Stop(ctx context.Context) error {
	e.mu.Lock()

	if e.stopped {
		e.mu.Unlock()

		return nil
	}

	e.stopped = true
	e.mu.Unlock()

	e.log.Info("Stopping leader election")

	close(e.stopChan)
	e.wg.Wait()

	if e.IsLeader() {
		metrics.LeaderElectionStatus.WithLabelValues(e.nodeID).Set(0)

		if err := e.releaseLeadership(ctx); err != nil {
			e.log.WithError(err).Error("Failed to release leadership on stop")
			metrics.LeaderElectionErrors.WithLabelValues(e.nodeID, "release").Inc()
		}
	}

	return nil
}

// IsLeader returns true if this node is currently the leader.
func (e *RedisElector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.isLeader
}

// GetLeaderID returns the current leader's ID.
func (e *RedisElector) GetLeaderID() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	val, err := e.client.Get(ctx, e.keyName).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("no leader elected")
	}

	if err != nil {
		return "", fmt.Errorf("failed to get leader ID: %w", err)
	}

	return val, nil
}

// OnLeadershipChange registers a callback invoked on leadership changes.
func (e *RedisElector) OnLeadershipChange(callback LeadershipCallback) {
	e.callbacksMu.Lock()
	defer e.callbacksMu.Unlock()

	e.callbacks = append(e.callbacks, callback)
}

func (e *RedisElector) notifyLeadershipChange(ctx context.Context, isLeader bool) {
	e.callbacksMu.RLock()
	callbacks := make([]LeadershipCallback, len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.callbacksMu.RUnlock()

	for _, callback := range callbacks {
		callback(ctx, isLeader)
	}
}

// run is the main election loop.
func (e *RedisElector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.RenewalInterval)
	defer ticker.Stop()

	if e.tryAcquireLeadership(ctx) {
		e.handleLeadershipGain(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case <-ticker.C:
			if e.IsLeader() {
				if !e.renewLeadership(ctx) {
					e.handleLeadershipLoss(ctx)
				}
			} else {
				if e.tryAcquireLeadership(ctx) {
					e.handleLeadershipGain(ctx)
				}
			}
		}
	}
}

// tryAcquireLeadership attempts to become the leader.
func (e *RedisElector) tryAcquireLeadership(ctx context.Context) bool {
	ok, err := e.client.SetNX(ctx, e.keyName, e.nodeID, e.config.TTL).Result()
	if err != nil {
		e.log.WithError(err).Error("Failed to acquire leadership")

		metrics.LeaderElectionErrors.WithLabelValues(e.nodeID, "acquire").Inc()

		return false
	}

	if !ok {
		return false
	}

	e.mu.Lock()
	e.isLeader = true
	e.mu.Unlock()

	metrics.LeaderElectionStatus.WithLabelValues(e.nodeID).Set(1)
	metrics.LeaderElectionTransitions.WithLabelValues(e.nodeID, "gained").Inc()

	e.log.Info("Acquired leadership")

	return true
}

// renewLeadership attempts to extend the leadership lock.
func (e *RedisElector) renewLeadership(ctx context.Context) bool {
	result, err := e.client.Eval(ctx, renewScript, []string{e.keyName}, e.nodeID, e.config.TTL.Milliseconds()).Result()
	if err != nil {
		e.log.WithError(err).Error("Failed to renew leadership")

		metrics.LeaderElectionErrors.WithLabelValues(e.nodeID, "renew").Inc()

		return false
	}

	val, ok := result.(int64)
	if !ok || val != 1 {
		e.log.Warn("Failed to renew leadership - lock not owned by this node")

		metrics.LeaderElectionErrors.WithLabelValues(e.nodeID, "renew").Inc()

		return false
	}

	return true
}

// releaseLeadership voluntarily gives up leadership.
func (e *RedisElector) releaseLeadership(ctx context.Context) error {
	result, err := e.client.Eval(ctx, releaseScript, []string{e.keyName}, e.nodeID).Result()
	if err != nil {
		return fmt.Errorf("failed to release leadership: %w", err)
	}

	if val, ok := result.(int64); !ok || val == 0 {
		e.log.Warn("Could not release leadership - lock not owned by this node")
	} else {
		e.log.Info("Released leadership")
	}

	e.mu.Lock()
	e.isLeader = false
	e.mu.Unlock()

	return nil
}

func (e *RedisElector) handleLeadershipGain(ctx context.Context) {
	e.log.Info("Gained leadership")

	e.notifyLeadershipChange(ctx, true)
}

func (e *RedisElector) handleLeadershipLoss(ctx context.Context) {
	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if wasLeader {
		metrics.LeaderElectionStatus.WithLabelValues(e.nodeID).Set(0)
		metrics.LeaderElectionTransitions.WithLabelValues(e.nodeID, "lost").Inc()
	}

	e.log.Info("Lost leadership")

	e.notifyLeadershipChange(ctx, false)
}
