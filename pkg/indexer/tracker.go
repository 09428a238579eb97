package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/godwoken-proxy/pkg/common/metrics"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
)

// Tracker follows the upstream tip and enqueues one index task per missing
// block. Only the leader replica enqueues; workers on every replica consume.
type Tracker struct {
	log         logrus.FieldLogger
	config      *Config
	pool        *godwoken.Pool
	store       *Store
	asynqClient *asynq.Client
	isLeader    func() bool

	scheduler *gocron.Scheduler
}

func NewTracker(log logrus.FieldLogger, config *Config, pool *godwoken.Pool, store *Store, asynqClient *asynq.Client, isLeader func() bool) *Tracker {
	return &Tracker{
		log:         log.WithField("component", "indexer/tracker"),
		config:      config,
		pool:        pool,
		store:       store,
		asynqClient: asynqClient,
		isLeader:    isLeader,
	}
}

func (t *Tracker) Start(ctx context.Context) error {
	t.log.WithField("poll_interval", t.config.PollInterval).Info("Starting block tracker")

	s := gocron.NewScheduler(time.Local)

	if _, err := s.Every(t.config.PollInterval).Do(func() {
		pollCtx, cancel := context.WithTimeout(context.Background(), t.config.PollInterval*4)
		defer cancel()

		if err := t.checkTip(pollCtx); err != nil {
			t.log.WithError(err).Warn("Tip check failed")
		}
	}); err != nil {
		return err
	}

	s.StartAsync()

	t.scheduler = s

	return nil
}

func (t *Tracker) Stop(ctx context.Context) error {
	if t.scheduler != nil {
		t.scheduler.Stop()
	}

	return nil
}

// checkTip enqueues index tasks for every block between the last stored
// block and the upstream tip, capped per poll.
func (t *Tracker) checkTip(ctx context.Context) error {
	if !t.isLeader() {
		return nil
	}

	n := t.pool.GetHealthyNode()
	if n == nil {
		t.log.Debug("No healthy godwoken node, skipping tip check")

		return nil
	}

	tipHash, err := n.TipBlockHash(ctx)
	if err != nil {
		return err
	}

	tip, err := n.BlockByHash(ctx, tipHash)
	if err != nil {
		return err
	}

	if tip == nil {
		t.log.WithField("tip_hash", tipHash).Warn("Tip block not found upstream")

		return nil
	}

	tipNumber := uint64(tip.Number)
	metrics.BlockHeight.WithLabelValues("tip").Set(float64(tipNumber))

	last, found, err := t.store.LastBlockNumber(ctx)
	if err != nil {
		return err
	}

	next := uint64(0)
	if found {
		next = last + 1

		metrics.BlockHeight.WithLabelValues("stored").Set(float64(last))
	}

	if next > tipNumber {
		return nil
	}

	end := tipNumber
	if end-next+1 > t.config.MaxBlocksPerPoll {
		end = next + t.config.MaxBlocksPerPoll - 1
	}

	for number := next; number <= end; number++ {
		task, err := NewIndexBlockTask(&IndexBlockPayload{BlockNumber: number})
		if err != nil {
			return err
		}

		// Task ID keyed by block number so a block can only sit in the
		// queue once, even across tracker restarts.
		if _, err := t.asynqClient.EnqueueContext(ctx, task,
			asynq.Queue(t.config.Queue),
			asynq.TaskID(fmt.Sprintf("%s:%d", IndexBlockTaskType, number)),
		); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			return err
		}

		metrics.TasksEnqueued.WithLabelValues(t.config.Queue, IndexBlockTaskType).Inc()
	}

	t.log.WithFields(logrus.Fields{
		"from": next,
		"to":   end,
		"tip":  tipNumber,
	}).Debug("Enqueued index tasks")

	return nil
}
