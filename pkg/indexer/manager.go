package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	r "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/godwoken-proxy/pkg/common/metrics"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node"
	"github.com/ethpandaops/godwoken-proxy/pkg/leaderelection"
)

// Manager owns the indexing pipeline: leader election, the tip tracker, and
// the asynq workers that fetch blocks and write them to Postgres.
type Manager struct {
	log         logrus.FieldLogger
	config      *Config
	pool        *godwoken.Pool
	store       *Store
	redisClient *r.Client
	redisPrefix string

	asynqClient   *asynq.Client
	asynqServer   *asynq.Server
	leaderElector leaderelection.Elector
	tracker       *Tracker

	stopChan  chan struct{}
	stopMutex sync.Mutex
	stopped   bool

	wg sync.WaitGroup
}

func NewManager(log logrus.FieldLogger, config *Config, pool *godwoken.Pool, redisClient *r.Client, redisPrefix string) (*Manager, error) {
	store, err := NewStore(log, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	// Separate Redis connections for asynq to avoid shutdown issues.
	redisOpt := redisClient.Options()

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     redisOpt.Addr,
		Password: redisOpt.Password,
		DB:       redisOpt.DB,
	}

	asynqClient := asynq.NewClient(asynqRedisOpt)

	asynqServer := asynq.NewServer(asynqRedisOpt, asynq.Config{
		Concurrency: config.Concurrency,
		Queues:      map[string]int{config.Queue: 1},
		LogLevel:    asynq.InfoLevel,
		Logger:      log,
	})

	return &Manager{
		log:         log.WithField("component", "indexer"),
		config:      config,
		pool:        pool,
		store:       store,
		redisClient: redisClient,
		redisPrefix: redisPrefix,
		asynqClient: asynqClient,
		asynqServer: asynqServer,
		stopChan:    make(chan struct{}),
	}, nil
}

func (m *Manager) Start(ctx context.Context) error {
	m.log.Info("Starting indexer")

	if _, err := m.pool.WaitForHealthyNode(ctx); err != nil {
		return fmt.Errorf("failed to wait for healthy godwoken node: %w", err)
	}

	if err := m.startStoreWithRetry(ctx); err != nil {
		return fmt.Errorf("failed to start store: %w", err)
	}

	isLeader := func() bool { return true }

	if m.config.LeaderElection.Enabled {
		leaderKey := "leader:indexer"
		if m.redisPrefix != "" {
			leaderKey = fmt.Sprintf("%s:%s", m.redisPrefix, leaderKey)
		}

		elector, err := leaderelection.NewRedisElector(m.redisClient, m.log, leaderKey, &m.config.LeaderElection.Config)
		if err != nil {
			return fmt.Errorf("failed to create leader elector: %w", err)
		}

		if err := elector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start leader election: %w", err)
		}

		m.leaderElector = elector
		isLeader = elector.IsLeader
	} else {
		m.log.Info("Leader election disabled - running as standalone indexer")
	}

	m.tracker = NewTracker(m.log, m.config, m.pool, m.store, m.asynqClient, isLeader)

	if err := m.tracker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(IndexBlockTaskType, m.handleIndexBlock)

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		if err := m.asynqServer.Start(mux); err != nil {
			m.log.WithError(err).Error("Asynq server failed")
		}
	}()

	m.log.Info("Indexer workers started")

	<-m.stopChan

	m.log.Info("Stop signal received")

	return nil
}

func (m *Manager) Stop(ctx context.Context) error {
	m.stopMutex.Lock()
	if m.stopped {
		m.stopMutex.Unlock()

		return nil
	}

	m.stopped = true
	m.stopMutex.Unlock()

	m.log.Info("Stopping indexer")
	close(m.stopChan)

	if m.tracker != nil {
		if err := m.tracker.Stop(ctx); err != nil {
			m.log.WithError(err).Error("Failed to stop tracker")
		}
	}

	if m.asynqServer != nil {
		m.asynqServer.Stop()
		m.asynqServer.Shutdown()
		m.log.Info("Asynq server stopped")
	}

	if m.leaderElector != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := m.leaderElector.Stop(stopCtx); err != nil {
			m.log.WithError(err).Error("Failed to stop leader election")
		}
	}

	if m.asynqClient != nil {
		if err := m.asynqClient.Close(); err != nil {
			m.log.WithError(err).Error("Failed to close asynq client")
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.log.WithError(err).Error("Failed to close store")
		}
	}

	m.wg.Wait()

	return nil
}

// startStoreWithRetry pings Postgres with capped exponential backoff so the
// indexer can wait for the database to become available at startup.
func (m *Manager) startStoreWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute

	return backoff.Retry(func() error {
		if err := m.store.Start(ctx); err != nil {
			m.log.WithError(err).Warn("Postgres not ready, will retry")

			return err
		}

		return nil
	}, backoff.WithContext(b, ctx))
}

// handleIndexBlock fetches one block with its receipts and stores it.
func (m *Manager) handleIndexBlock(ctx context.Context, task *asynq.Task) error {
	payload := &IndexBlockPayload{}
	if err := payload.UnmarshalBinary(task.Payload()); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	start := time.Now()

	err := m.indexBlock(ctx, payload.BlockNumber)

	status := "success"
	if err != nil {
		status = "error"
	}

	metrics.TasksProcessed.WithLabelValues(m.config.Queue, IndexBlockTaskType, status).Inc()
	metrics.BlockIndexDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	return err
}

func (m *Manager) indexBlock(ctx context.Context, number uint64) error {
	n := m.pool.GetHealthyNode()
	if n == nil {
		return fmt.Errorf("no healthy godwoken node available")
	}

	block, err := n.BlockByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to fetch block %d: %w", number, err)
	}

	if block == nil {
		return fmt.Errorf("block %d not available upstream yet", number)
	}

	receipts, err := m.fetchReceipts(ctx, n, block)
	if err != nil {
		return err
	}

	if err := m.store.InsertBlock(ctx, block, receipts); err != nil {
		if IsDuplicateKey(err) {
			m.log.WithField("block", number).Debug("Block already stored, skipping")

			return nil
		}

		metrics.BlocksIndexed.WithLabelValues("error").Inc()

		return fmt.Errorf("failed to store block %d: %w", number, err)
	}

	metrics.BlocksIndexed.WithLabelValues("success").Inc()
	metrics.BlockHeight.WithLabelValues("stored").Set(float64(number))

	m.log.WithFields(logrus.Fields{
		"block":        number,
		"transactions": len(block.Transactions),
	}).Debug("Block indexed")

	return nil
}

func (m *Manager) fetchReceipts(ctx context.Context, n *node.Node, block *node.Block) ([]*node.Receipt, error) {
	receipts := make([]*node.Receipt, 0, len(block.Transactions))

	for _, tx := range block.Transactions {
		receipt, err := n.TransactionReceipt(ctx, tx.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", tx.Hash, err)
		}

		if receipt == nil {
			return nil, fmt.Errorf("missing receipt for %s", tx.Hash)
		}

		receipts = append(receipts, receipt)
	}

	return receipts, nil
}
