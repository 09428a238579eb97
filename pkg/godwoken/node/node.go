package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node/services"
	"github.com/sirupsen/logrus"
)

// headerTransport adds custom headers to requests and respects context cancellation
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	if req.Context().Err() != nil {
		return nil, req.Context().Err()
	}

	return t.base.RoundTrip(req)
}

// Node wraps a single upstream Godwoken node's JSON-RPC endpoint.
type Node struct {
	config *Config
	log    logrus.FieldLogger
	client *rpc.Client

	services []services.Service

	onReadyCallbacks []func(ctx context.Context) error

	mu     sync.RWMutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewNode(log logrus.FieldLogger, conf *Config) *Node {
	return &Node{
		config:   conf,
		log:      log.WithFields(logrus.Fields{"type": "godwoken", "source": conf.Name}),
		services: []services.Service{},
	}
}

func (n *Node) OnReady(_ context.Context, callback func(ctx context.Context) error) {
	n.onReadyCallbacks = append(n.onReadyCallbacks, callback)
}

func (n *Node) Start(ctx context.Context) error {
	n.log.Info("Starting godwoken node")

	nodeCtx, cancel := context.WithCancel(ctx)

	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	// No fixed client timeout - request lifetime is bounded by the caller's
	// context.
	httpClient := http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 0,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	httpClient.Transport = &headerTransport{
		headers: n.config.Headers,
		base:    httpClient.Transport,
	}

	client, err := rpc.DialOptions(nodeCtx, n.config.Address, rpc.WithHTTPClient(&httpClient))
	if err != nil {
		n.log.WithError(err).Error("Failed to create RPC client")

		return fmt.Errorf("failed to create RPC client for %s: %w", n.config.Address, err)
	}

	metadata := services.NewMetadataService(n.log, client, n.config.Name)

	n.client = client
	n.services = []services.Service{&metadata}

	errs := make(chan error, 1)

	go func() {
		wg := sync.WaitGroup{}

		for _, service := range n.services {
			serviceName := service.Name()

			wg.Add(1)

			readyCtx, readyCancel := context.WithTimeout(context.Background(), 30*time.Second)

			service.OnReady(readyCtx, func(_ context.Context) error {
				n.log.WithField("service", serviceName).Info("Service is ready")

				wg.Done()

				return nil
			})

			n.log.WithField("service", serviceName).Info("Starting service")

			n.wg.Add(1)

			go func() {
				defer n.wg.Done()

				if err := service.Start(nodeCtx); err != nil {
					if nodeCtx.Err() == nil {
						n.log.WithError(err).WithField("service", serviceName).
							Error("Failed to start service")

						errs <- fmt.Errorf("failed to start service %s: %w", serviceName, err)
					}
				}
			}()

			wg.Wait()

			readyCancel()
		}

		n.log.Info("All services are ready")

		for _, callback := range n.onReadyCallbacks {
			callbackCtx, callbackCancel := context.WithTimeout(context.Background(), 10*time.Second)

			if err := callback(callbackCtx); err != nil {
				n.log.WithError(err).Error("Failed to run on ready callback")

				errs <- fmt.Errorf("failed to run on ready callback: %w", err)
			}

			callbackCancel()
		}

		n.log.Info("Node initialization completed")
	}()

	return nil
}

func (n *Node) Stop(ctx context.Context) error {
	n.log.Info("Stopping godwoken node")

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.log.Info("All node goroutines stopped gracefully")
	case <-ctx.Done():
		n.log.Warn("Timeout waiting for node goroutines to stop")
	}

	for _, service := range n.services {
		if err := service.Stop(ctx); err != nil {
			n.log.WithError(err).WithField("service", service.Name()).Error("Failed to stop service")
		}
	}

	if n.client != nil {
		n.client.Close()
	}

	return nil
}

func (n *Node) getServiceByName(name services.Name) (services.Service, error) {
	for _, service := range n.services {
		if service.Name() == name {
			return service, nil
		}
	}

	return nil, errors.New("service not found")
}

func (n *Node) Metadata() *services.MetadataService {
	service, err := n.getServiceByName("metadata")
	if err != nil {
		// This should never happen. If it does, good luck.
		return nil
	}

	svc, ok := service.(*services.MetadataService)
	if !ok {
		return nil
	}

	return svc
}

func (n *Node) Name() string {
	return n.config.Name
}
