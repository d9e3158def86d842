package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
)

func TestEventCollector(t *testing.T) {
	em := events.NewEmitter()
	NewEventMetricsCollector().Register(em)

	executed := testutil.ToFloat64(TxsExecuted.WithLabelValues("purchase", "ok"))
	volume := testutil.ToFloat64(MarketVolume)

	em.Emit(events.Event{Type: events.EventTxExecuted, Data: map[string]any{"type": "purchase", "status": "ok"}})
	em.Emit(events.Event{Type: events.EventGame, Data: map[string]any{"kind": game.EventLevelAdvanced, "level": uint32(7)}})
	em.Emit(events.Event{Type: events.EventMarketBuy, Data: map[string]any{"price": uint64(250)}})

	assert.Equal(t, executed+1, testutil.ToFloat64(TxsExecuted.WithLabelValues("purchase", "ok")))
	assert.Equal(t, float64(7), testutil.ToFloat64(GameLevel))
	assert.Equal(t, volume+250, testutil.ToFloat64(MarketVolume))
}

func TestMiddlewareCountsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/brew", "418"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/brew", "418")))
	assert.Zero(t, testutil.ToFloat64(HTTPRequestsInFlight))
}
