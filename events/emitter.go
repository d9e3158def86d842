// Package events fans committed chain notifications out to in-process
// consumers: the indexer, metrics, the rpc cache and the randomness oracle.
package events

import (
	"log/slog"
	"sync"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit   EventType = "block_commit"
	EventTxExecuted    EventType = "tx_executed"
	EventTokenTransfer EventType = "token_transfer"
	EventCoinTransfer  EventType = "coin_transfer"
	EventAssetMinted   EventType = "asset_minted"
	EventAssetBurned   EventType = "asset_burned"
	EventAssetTransfer EventType = "asset_transfer"
	EventAffiliateReg  EventType = "affiliate_registered"
	EventMarketList    EventType = "market_list"
	EventMarketBuy     EventType = "market_buy"

	// EventGame carries a game notification named by Data[KeyKind].
	EventGame EventType = "game"
	// EventRngRequest asks the randomness oracle to answer Data["request_id"].
	EventRngRequest EventType = "rng_request"
)

// KeyKind is the Data key naming a game notification.
const KeyKind = "kind"

// Event is one committed notification.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Kind returns the game notification name, or "" for other events.
func (ev Event) Kind() string {
	if ev.Type != EventGame {
		return ""
	}
	k, _ := ev.Data[KeyKind].(string)
	return k
}

// GameData copies data and stamps it with kind.
func GameData(kind string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[KeyKind] = kind
	return out
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a synchronous broker. Handlers run on the emitting goroutine,
// so block production sees every subscriber finish before it moves on.
type Emitter struct {
	mu   sync.RWMutex
	subs map[EventType][]Handler
	log  *slog.Logger
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{
		subs: make(map[EventType][]Handler),
		log:  slog.Default().With("component", "events"),
	}
}

// Subscribe registers h for typ.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	e.subs[typ] = append(e.subs[typ], h)
	e.mu.Unlock()
}

// SubscribeKind registers h for game notifications named kind.
func (e *Emitter) SubscribeKind(kind string, h Handler) {
	e.Subscribe(EventGame, func(ev Event) {
		if ev.Kind() == kind {
			h(ev)
		}
	})
}

// Emit delivers one event.
func (e *Emitter) Emit(ev Event) { e.Publish([]Event{ev}) }

// Publish delivers evs in order. A panicking handler is logged and skipped;
// the remaining handlers still run.
func (e *Emitter) Publish(evs []Event) {
	for _, ev := range evs {
		e.mu.RLock()
		hs := e.subs[ev.Type]
		e.mu.RUnlock()
		for _, h := range hs {
			e.call(h, ev)
		}
	}
}

func (e *Emitter) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("subscriber panicked", "type", ev.Type, "tx", ev.TxID, "panic", r)
		}
	}()
	h(ev)
}
