// Package indexer maintains secondary indexes over executed transactions so
// clients can look up pieces, trophies and history by account without
// scanning full state. Index data lives beside the chain but is not part
// of the state root.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/storage"
)

const (
	prefixOwnerAssets = "idx:owner:asset:"
	prefixAssetTmpl   = "idx:asset:tmpl:"
	prefixSenderTxs   = "idx:sender:tx:"
	keyGameEvents     = "idx:game:recent"
)

// History caps.
const (
	MaxTxHistory  = 256
	MaxGameEvents = 512
)

// GameEvent is a game notification as kept by the indexer.
type GameEvent struct {
	Kind        string         `json:"kind"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	mu  sync.Mutex
	db  storage.DB
	log *slog.Logger
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, log: slog.Default().With("component", "indexer")}
	emitter.Subscribe(events.EventAssetMinted, idx.onAssetMinted)
	emitter.Subscribe(events.EventAssetTransfer, idx.onAssetTransferred)
	emitter.Subscribe(events.EventAssetBurned, idx.onAssetBurned)
	emitter.Subscribe(events.EventTxExecuted, idx.onTxExecuted)
	emitter.Subscribe(events.EventGame, idx.onGame)
	return idx
}

// GetAssetsByOwner returns all asset IDs owned by the given pubkey.
func (idx *Indexer) GetAssetsByOwner(owner string) ([]string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.getList(prefixOwnerAssets + owner)
}

// GetTrophiesByOwner returns the trophy asset IDs held by owner.
func (idx *Indexer) GetTrophiesByOwner(owner string) ([]string, error) {
	return idx.byTemplate(owner, game.TemplateTrophy)
}

// GetPiecesByOwner returns the gamepiece asset IDs held by owner.
func (idx *Indexer) GetPiecesByOwner(owner string) ([]string, error) {
	return idx.byTemplate(owner, game.TemplateGamepiece)
}

// GetTxsBySender returns the most recent transaction IDs sent by addr,
// oldest first.
func (idx *Indexer) GetTxsBySender(addr string) ([]string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.getList(prefixSenderTxs + addr)
}

// RecentGameEvents returns up to n of the latest game events, newest last.
func (idx *Indexer) RecentGameEvents(n int) ([]GameEvent, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	evs, err := idx.gameEvents()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(evs) > n {
		evs = evs[len(evs)-n:]
	}
	return evs, nil
}

func (idx *Indexer) byTemplate(owner, template string) ([]string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ids, err := idx.getList(prefixOwnerAssets + owner)
	if err != nil {
		return nil, err
	}
	out := ids[:0]
	for _, id := range ids {
		t, err := idx.db.Get([]byte(prefixAssetTmpl + id))
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		if string(t) == template {
			out = append(out, id)
		}
	}
	return out, nil
}

// ---- event handlers ----

func (idx *Indexer) onAssetMinted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	tmpl, _ := ev.Data["template_id"].(string)
	if owner == "" || assetID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if tmpl != "" {
		idx.check("mint", idx.db.Set([]byte(prefixAssetTmpl+assetID), []byte(tmpl)))
	}
	idx.check("mint", idx.addToList(prefixOwnerAssets+owner, assetID, 0))
}

func (idx *Indexer) onAssetTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if assetID == "" || from == "" || to == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.removeFromList(prefixOwnerAssets+from, assetID); err != nil {
		idx.check("transfer", err)
		return
	}
	idx.check("transfer", idx.addToList(prefixOwnerAssets+to, assetID, 0))
}

func (idx *Indexer) onAssetBurned(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if owner == "" || assetID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.check("burn", idx.removeFromList(prefixOwnerAssets+owner, assetID))
	idx.check("burn", idx.db.Delete([]byte(prefixAssetTmpl+assetID)))
}

func (idx *Indexer) onTxExecuted(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	if from == "" || ev.TxID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.check("tx", idx.addToList(prefixSenderTxs+from, ev.TxID, MaxTxHistory))
}

func (idx *Indexer) onGame(ev events.Event) {
	kind := ev.Kind()
	if kind == "" {
		return
	}
	data := make(map[string]any, len(ev.Data)-1)
	for k, v := range ev.Data {
		if k != events.KeyKind {
			data[k] = v
		}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	evs, err := idx.gameEvents()
	if err != nil {
		idx.check("game", err)
		return
	}
	evs = append(evs, GameEvent{Kind: kind, TxID: ev.TxID, BlockHeight: ev.BlockHeight, Data: data})
	if len(evs) > MaxGameEvents {
		evs = evs[len(evs)-MaxGameEvents:]
	}
	raw, err := json.Marshal(evs)
	if err != nil {
		idx.check("game", err)
		return
	}
	idx.check("game", idx.db.Set([]byte(keyGameEvents), raw))
}

func (idx *Indexer) check(op string, err error) {
	if err != nil {
		idx.log.Error("index update failed", "op", op, "error", err)
	}
}

// ---- list helpers ----

func (idx *Indexer) gameEvents() ([]GameEvent, error) {
	data, err := idx.db.Get([]byte(keyGameEvents))
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var evs []GameEvent
	if err := json.Unmarshal(data, &evs); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return evs, nil
}

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

// addToList appends value unless present. A positive limit keeps only the
// newest limit entries.
func (idx *Indexer) addToList(key, value string, limit int) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	ids = append(ids, value)
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
