package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount   = registerPrefix("acct:")
	prefixAsset     = registerPrefix("asset:")
	prefixTemplate  = registerPrefix("tmpl:")
	prefixAffiliate = registerPrefix("aff:")
	prefixListing   = registerPrefix("list:")
	prefixReceipt   = registerPrefix("rcpt:")
	prefixGame      = registerPrefix("game:")
)

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
// Block production and RPC reads run on different goroutines, so every
// buffer access goes through mu.
type StateDB struct {
	mu        sync.RWMutex
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, key)
	s.deleted[key] = true
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

// ---- Asset ----

func (s *StateDB) GetAsset(id string) (*core.Asset, error) {
	var asset core.Asset
	if err := s.getJSON(prefixAsset+id, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *StateDB) SetAsset(asset *core.Asset) error {
	return s.setJSON(prefixAsset+asset.ID, asset)
}

func (s *StateDB) DeleteAsset(id string) error {
	s.del(prefixAsset + id)
	return nil
}

// ---- Template ----

func (s *StateDB) GetTemplate(id string) (*core.AssetTemplate, error) {
	var t core.AssetTemplate
	if err := s.getJSON(prefixTemplate+id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *StateDB) SetTemplate(t *core.AssetTemplate) error {
	return s.setJSON(prefixTemplate+t.ID, t)
}

// ---- Affiliate ----

func (s *StateDB) GetAffiliate(code string) (*core.Affiliate, error) {
	var a core.Affiliate
	if err := s.getJSON(prefixAffiliate+code, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *StateDB) SetAffiliate(a *core.Affiliate) error {
	return s.setJSON(prefixAffiliate+a.Code, a)
}

// ---- Market ----

func (s *StateDB) GetListing(id string) (*core.MarketListing, error) {
	var l core.MarketListing
	if err := s.getJSON(prefixListing+id, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *StateDB) SetListing(l *core.MarketListing) error {
	return s.setJSON(prefixListing+l.ID, l)
}

// ---- Receipt ----

func (s *StateDB) GetReceipt(txID string) (*core.Receipt, error) {
	var r core.Receipt
	if err := s.getJSON(prefixReceipt+txID, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *StateDB) SetReceipt(r *core.Receipt) error {
	return s.setJSON(prefixReceipt+r.TxID, r)
}

// ---- Game records ----

func (s *StateDB) GetGameData(key string) ([]byte, error) {
	return s.get(prefixGame + key)
}

func (s *StateDB) SetGameData(key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.set(prefixGame+key, cp)
	return nil
}

func (s *StateDB) DeleteGameData(key string) error {
	s.del(prefixGame + key)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding.  It does NOT flush or modify state,
// so it is safe to call before signing a block.
func (s *StateDB) ComputeRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}
	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// Batch and then clears it. Call ComputeRoot() before signing the block,
// then call Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
