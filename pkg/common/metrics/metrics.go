package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "godwoken_proxy_rpc_call_duration_seconds",
		Help:    "Duration of RPC calls to upstream godwoken nodes",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"node", "method", "status"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_rpc_calls_total",
		Help: "Total RPC calls made to upstream godwoken nodes",
	}, []string{"node", "method", "status"})

	InboundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_inbound_requests_total",
		Help: "Total inbound JSON-RPC requests served",
	}, []string{"method", "status"})

	InboundRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "godwoken_proxy_inbound_request_duration_seconds",
		Help:    "Time taken to serve an inbound JSON-RPC request",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"method"})

	TranslatedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_translated_errors_total",
		Help: "Upstream errors translated into the proxy's error envelope",
	}, []string{"kind"})

	BlockHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "godwoken_proxy_block_height",
		Help: "Current block height being indexed",
	}, []string{"stage"})

	BlocksIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_blocks_indexed_total",
		Help: "Total number of blocks written to storage",
	}, []string{"status"})

	BlockIndexDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "godwoken_proxy_block_index_duration_seconds",
		Help:    "Time taken to fetch and store a block",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"status"})

	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_tasks_enqueued_total",
		Help: "Total number of index tasks enqueued",
	}, []string{"queue", "task_type"})

	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_tasks_processed_total",
		Help: "Total number of index tasks processed",
	}, []string{"queue", "task_type", "status"})

	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "godwoken_proxy_leader_election_status",
		Help: "Current leader election status (1 = leader, 0 = follower)",
	}, []string{"node_id"})

	LeaderElectionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_leader_election_transitions_total",
		Help: "Total number of leader election transitions",
	}, []string{"node_id", "transition"})

	LeaderElectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_leader_election_errors_total",
		Help: "Total number of errors during leader election",
	}, []string{"node_id", "operation"})

	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "godwoken_proxy_store_operation_duration_seconds",
		Help:    "Duration of Postgres operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation", "status"})

	StoreRowsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godwoken_proxy_store_inserted_rows_total",
		Help: "Total number of rows inserted into Postgres",
	}, []string{"table"})
)
