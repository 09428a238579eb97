package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// MetadataService keeps track of the upstream node's identity and liveness.
type MetadataService struct {
	client *rpc.Client
	log    logrus.FieldLogger

	nodeName string

	onReadyCallbacks []func(context.Context) error

	nodeVersion string
	nodeMode    string

	alive bool

	mu sync.Mutex
}

func NewMetadataService(log logrus.FieldLogger, client *rpc.Client, nodeName string) MetadataService {
	return MetadataService{
		client:           client,
		log:              log.WithField("module", "godwoken/node/metadata"),
		nodeName:         nodeName,
		onReadyCallbacks: []func(context.Context) error{},
		mu:               sync.Mutex{},
	}
}

func (m *MetadataService) Start(ctx context.Context) error {
	m.log.Info("Starting metadata service")

	go func() {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 5 * time.Second
		b.MaxElapsedTime = 2 * time.Minute

		operation := func() error {
			if err := m.RefreshAll(ctx); err != nil {
				m.log.WithError(err).Warn("Failed to refresh metadata, will retry")

				return err
			}

			if err := m.Ready(ctx); err != nil {
				m.log.WithError(err).Warn("Metadata not ready yet, will retry")

				return err
			}

			m.log.WithFields(logrus.Fields{
				"node_ver": m.nodeVersion,
				"mode":     m.nodeMode,
			}).Info("Metadata initialized successfully")

			return nil
		}

		if err := backoff.Retry(operation, b); err != nil {
			m.log.WithError(err).Error("Failed to refresh metadata after retries")

			return
		}

		for _, cb := range m.onReadyCallbacks {
			if err := cb(ctx); err != nil {
				m.log.WithError(err).Warn("Failed to execute onReady callback")
			}
		}

		m.log.WithFields(logrus.Fields{
			"node_version": m.nodeVersion,
		}).Info("Metadata service initialization completed")
	}()

	s := gocron.NewScheduler(time.Local)

	if _, err := s.Every("5m").Do(func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_ = m.RefreshAll(refreshCtx)
	}); err != nil {
		return err
	}

	if _, err := s.Every("15s").Do(func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := m.updateLiveness(pingCtx); err != nil {
			m.log.WithError(err).Warn("Failed to ping upstream node")
		}
	}); err != nil {
		return err
	}

	s.StartAsync()

	return nil
}

func (m *MetadataService) Name() Name {
	return "metadata"
}

func (m *MetadataService) Stop(ctx context.Context) error {
	return nil
}

func (m *MetadataService) OnReady(ctx context.Context, cb func(context.Context) error) {
	m.onReadyCallbacks = append(m.onReadyCallbacks, cb)
}

func (m *MetadataService) Ready(ctx context.Context) error {
	if m.nodeVersion == "" {
		return errors.New("node version is not available")
	}

	if !m.IsAlive() {
		return errors.New("upstream node is not responding to pings")
	}

	return nil
}

// NodeVersion returns the upstream node's reported version string.
func (m *MetadataService) NodeVersion() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nodeVersion
}

// IsAlive reports whether the last liveness probe succeeded.
func (m *MetadataService) IsAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.alive
}

func (m *MetadataService) RefreshAll(ctx context.Context) error {
	var info struct {
		Version string `json:"version"`
		Mode    string `json:"mode"`
	}

	if err := m.client.CallContext(ctx, &info, "gw_get_node_info"); err != nil {
		return fmt.Errorf("failed to get node info: %w", err)
	}

	m.mu.Lock()
	m.nodeVersion = info.Version
	m.nodeMode = info.Mode
	m.mu.Unlock()

	return m.updateLiveness(ctx)
}

func (m *MetadataService) updateLiveness(ctx context.Context) error {
	var pong string

	err := m.client.CallContext(ctx, &pong, "gw_ping")

	m.mu.Lock()
	m.alive = err == nil
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}
