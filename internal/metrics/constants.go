package metrics

// Metric names
const (
	MetricNameHTTPRequestsTotal    = "purge_http_requests_total"
	MetricNameHTTPRequestDuration  = "purge_http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "purge_http_requests_in_flight"
	MetricNameRPCCallsTotal        = "purge_rpc_calls_total"

	MetricNameBlocksProduced = "purge_blocks_produced_total"
	MetricNameBlockHeight    = "purge_block_height"
	MetricNameTxsExecuted    = "purge_txs_executed_total"
	MetricNameTxsRejected    = "purge_txs_rejected_total"
	MetricNameMempoolSize    = "purge_mempool_size"

	MetricNameGameEvents   = "purge_game_events_total"
	MetricNameGameLevel    = "purge_game_level"
	MetricNameRngRequests  = "purge_rng_requests_total"
	MetricNameAssetsMinted = "purge_assets_minted_total"
	MetricNameMarketSales  = "purge_market_sales_total"
	MetricNameMarketVolume = "purge_market_volume_total"

	MetricNameOracleAnswers  = "purge_oracle_answers_total"
	MetricNameKeeperAdvances = "purge_keeper_advances_total"
)

// Help text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Number of HTTP requests currently being served"
	HelpTextRPCCallsTotal        = "JSON-RPC calls by method and outcome"

	HelpTextBlocksProduced = "Blocks produced by this node"
	HelpTextBlockHeight    = "Height of the chain tip"
	HelpTextTxsExecuted    = "Included transactions by type and receipt status"
	HelpTextTxsRejected    = "Transactions dropped from blocks before inclusion"
	HelpTextMempoolSize    = "Pending transactions in the mempool"

	HelpTextGameEvents   = "Game notifications by kind"
	HelpTextGameLevel    = "Current game level"
	HelpTextRngRequests  = "Randomness requests issued by the game"
	HelpTextAssetsMinted = "Assets minted by template"
	HelpTextMarketSales  = "Completed market sales"
	HelpTextMarketVolume = "Native units paid through the market"

	HelpTextOracleAnswers  = "Randomness answers submitted by the oracle service"
	HelpTextKeeperAdvances = "Advance transactions submitted by the keeper by outcome"
)

// Labels
const (
	LabelMethod   = "method"
	LabelPath     = "path"
	LabelStatus   = "status"
	LabelType     = "type"
	LabelKind     = "kind"
	LabelTemplate = "template"
	LabelOutcome  = "outcome"
)

// HTTPLatencyBuckets are the histogram buckets for request latency.
var HTTPLatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
