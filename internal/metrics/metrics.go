// Package metrics holds the node's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)

	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRPCCallsTotal,
			Help: HelpTextRPCCallsTotal,
		},
		[]string{LabelMethod, LabelOutcome},
	)
)

// Chain Metrics
var (
	BlocksProduced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameBlocksProduced,
			Help: HelpTextBlocksProduced,
		},
	)

	BlockHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameBlockHeight,
			Help: HelpTextBlockHeight,
		},
	)

	TxsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameTxsExecuted,
			Help: HelpTextTxsExecuted,
		},
		[]string{LabelType, LabelStatus},
	)

	TxsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameTxsRejected,
			Help: HelpTextTxsRejected,
		},
	)

	MempoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameMempoolSize,
			Help: HelpTextMempoolSize,
		},
	)
)

// Game Metrics
var (
	GameEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameGameEvents,
			Help: HelpTextGameEvents,
		},
		[]string{LabelKind},
	)

	GameLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameGameLevel,
			Help: HelpTextGameLevel,
		},
	)

	RngRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameRngRequests,
			Help: HelpTextRngRequests,
		},
	)

	AssetsMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameAssetsMinted,
			Help: HelpTextAssetsMinted,
		},
		[]string{LabelTemplate},
	)

	MarketSales = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameMarketSales,
			Help: HelpTextMarketSales,
		},
	)

	MarketVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameMarketVolume,
			Help: HelpTextMarketVolume,
		},
	)
)

// Service Metrics
var (
	OracleAnswers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameOracleAnswers,
			Help: HelpTextOracleAnswers,
		},
	)

	KeeperAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameKeeperAdvances,
			Help: HelpTextKeeperAdvances,
		},
		[]string{LabelOutcome},
	)
)
