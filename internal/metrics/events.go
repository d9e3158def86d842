package metrics

import (
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
)

// EventMetricsCollector subscribes to chain events and records metrics.
type EventMetricsCollector struct{}

// NewEventMetricsCollector creates a new event metrics collector
func NewEventMetricsCollector() *EventMetricsCollector {
	return &EventMetricsCollector{}
}

// Register subscribes to every event type the collector counts.
func (c *EventMetricsCollector) Register(em *events.Emitter) {
	for _, typ := range []events.EventType{
		events.EventTxExecuted,
		events.EventGame,
		events.EventRngRequest,
		events.EventAssetMinted,
		events.EventMarketBuy,
	} {
		em.Subscribe(typ, c.HandleEvent)
	}
}

// HandleEvent updates metrics for one event.
func (c *EventMetricsCollector) HandleEvent(ev events.Event) {
	switch ev.Type {
	case events.EventTxExecuted:
		typ, _ := ev.Data["type"].(string)
		status, _ := ev.Data["status"].(string)
		TxsExecuted.WithLabelValues(typ, status).Inc()
	case events.EventGame:
		kind := ev.Kind()
		GameEvents.WithLabelValues(kind).Inc()
		if kind == game.EventLevelAdvanced {
			if level, ok := ev.Data["level"].(uint32); ok {
				GameLevel.Set(float64(level))
			}
		}
	case events.EventRngRequest:
		RngRequests.Inc()
	case events.EventAssetMinted:
		tmpl, _ := ev.Data["template_id"].(string)
		AssetsMinted.WithLabelValues(tmpl).Inc()
	case events.EventMarketBuy:
		MarketSales.Inc()
		if price, ok := ev.Data["price"].(uint64); ok {
			MarketVolume.Add(float64(price))
		}
	}
}
