package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	//nolint:gosec // only exposed if pprofAddr config is set
	_ "net/http/pprof"

	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
	"github.com/ethpandaops/godwoken-proxy/pkg/indexer"
	"github.com/ethpandaops/godwoken-proxy/pkg/observability"
	"github.com/ethpandaops/godwoken-proxy/pkg/redis"
	"github.com/ethpandaops/godwoken-proxy/pkg/rpc"
	r "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	log       logrus.FieldLogger
	config    *Config
	namespace string

	redis     *r.Client
	pool      *godwoken.Pool
	rpcServer *rpc.Server
	indexer   *indexer.Manager

	pprofServer  *http.Server
	healthServer *http.Server
}

func NewServer(ctx context.Context, log logrus.FieldLogger, namespace string, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pool := godwoken.NewPool(log.WithField("component", "godwoken"), namespace, &config.Godwoken)

	rpcServer := rpc.NewServer(log, &config.RPC, pool)

	s := &Server{
		config:    config,
		log:       log,
		namespace: namespace,
		pool:      pool,
		rpcServer: rpcServer,
	}

	if config.Indexer.Enabled {
		redisClient, err := redis.New(config.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		idx, err := indexer.NewManager(log.WithField("component", "indexer"), &config.Indexer, pool, redisClient, config.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create indexer: %w", err)
		}

		s.redis = redisClient
		s.indexer = idx
	}

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Start metrics server
	g.Go(func() error {
		observability.StartMetricsServer(ctx, s.config.MetricsAddr)

		return nil
	})

	// Start pprof server if configured
	if s.config.PProfAddr != nil {
		g.Go(func() error {
			if err := s.startPProf(); err != nil && err != http.ErrServerClosed {
				return err
			}

			return nil
		})
	}

	// Start health check server if configured
	if s.config.HealthCheckAddr != nil {
		g.Go(func() error {
			if err := s.startHealthCheck(); err != nil && err != http.ErrServerClosed {
				return err
			}

			return nil
		})
	}

	// Start godwoken pool
	g.Go(func() error {
		s.pool.Start(ctx)

		return nil
	})

	// Start JSON-RPC server
	g.Go(func() error {
		return s.rpcServer.Start(ctx)
	})

	// Start indexer
	if s.indexer != nil {
		g.Go(func() error {
			return s.indexer.Start(ctx)
		})
	}

	// Wait for shutdown signal
	g.Go(func() error {
		<-ctx.Done()

		return s.stop(ctx)
	})

	return g.Wait()
}

func (s *Server) stop(ctx context.Context) error {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("Starting graceful shutdown...")

	if s.rpcServer != nil {
		if err := s.rpcServer.Stop(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to stop JSON-RPC server")
		}
	}

	if s.indexer != nil {
		s.log.Info("Stopping indexer...")

		if err := s.indexer.Stop(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to stop indexer")
		}
	}

	if s.pool != nil {
		if err := s.pool.Stop(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to stop godwoken pool")
		}
	}

	if s.redis != nil {
		s.log.Info("Closing Redis connection...")

		if err := s.redis.Close(); err != nil {
			s.log.WithError(err).Error("failed to close redis")
		}
	}

	if s.pprofServer != nil {
		if err := s.pprofServer.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to shutdown pprof server")
		}
	}

	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to shutdown health server")
		}
	}

	if err := observability.StopMetricsServer(cleanupCtx); err != nil {
		s.log.WithError(err).Error("failed to stop metrics server")
	}

	s.log.Info("Proxy stopped gracefully")

	return nil
}

func (s *Server) startPProf() error {
	s.log.WithField("addr", *s.config.PProfAddr).Info("Starting pprof server")

	s.pprofServer = &http.Server{
		Addr:              *s.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	return s.pprofServer.ListenAndServe()
}

func (s *Server) startHealthCheck() error {
	s.log.WithField("addr", *s.config.HealthCheckAddr).Info("Starting healthcheck server")

	s.healthServer = &http.Server{
		Addr:              *s.config.HealthCheckAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	s.healthServer.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s.healthServer.ListenAndServe()
}
