package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/godwoken-proxy/pkg/common/metrics"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
	"github.com/sirupsen/logrus"
)

// Handler serves a single JSON-RPC method. Params are the request's
// positional arguments, passed through without local validation.
type Handler func(ctx context.Context, params []interface{}) (interface{}, error)

// Server is the inbound JSON-RPC 2.0 surface of the proxy. The method
// registry is built once at construction and never mutated afterwards.
type Server struct {
	log    logrus.FieldLogger
	config *Config
	pool   *godwoken.Pool

	handlers map[string]Handler

	httpServer *http.Server
	listening  atomic.Bool
}

func NewServer(log logrus.FieldLogger, config *Config, pool *godwoken.Pool) *Server {
	s := &Server{
		log:    log.WithField("component", "rpc"),
		config: config,
		pool:   pool,
	}

	handlers := map[string]Handler{
		"net_version":   s.netVersion,
		"net_peerCount": s.netPeerCount,
		"net_listening": s.netListening,
	}

	for _, method := range ForwardedMethods {
		handlers[method] = s.forwardHandler(method)
	}

	s.handlers = handlers

	return s
}

// Listening reports whether the server is currently accepting connections.
func (s *Server) Listening() bool {
	return s.listening.Load()
}

func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("POST /", s)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s.listening.Store(true)

	s.log.WithField("addr", s.config.Addr).Info("Starting JSON-RPC server")

	serveErr := s.httpServer.Serve(listener)

	s.listening.Store(false)

	if serveErr != nil && serveErr != http.ErrServerClosed {
		return serveErr
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)

	s.listening.Store(false)

	return err
}

// ServeHTTP handles a single JSON-RPC request. Batch requests are not
// supported; an outer dispatcher echoes the request id.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, ErrCodeParseError, "failed to parse request")

		return
	}

	if req.Method == "" {
		s.writeError(w, req.ID, ErrCodeInvalidRequest, "method is required")

		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		s.writeError(w, req.ID, ErrCodeMethodNotFound, "method not found")

		return
	}

	start := time.Now()
	result, err := handler(r.Context(), req.Params)
	metrics.InboundRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.InboundRequests.WithLabelValues(req.Method, "error").Inc()

		var rpcErr *godwoken.RPCError
		if errors.As(err, &rpcErr) {
			s.writeError(w, req.ID, rpcErr.Code, rpcErr.Message)

			return
		}

		s.writeError(w, req.ID, ErrCodeInternalError, err.Error())

		return
	}

	metrics.InboundRequests.WithLabelValues(req.Method, "success").Inc()

	s.writeJSON(w, Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	})
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	s.writeJSON(w, Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Error("Failed to write response")
	}
}
