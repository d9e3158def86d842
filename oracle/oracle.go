// Package oracle answers the game's randomness requests. Each answer is
// keccak256(secret || requestID), signed by the oracle account and sent
// through the mempool like any other transaction.
package oracle

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/internal/metrics"
	"github.com/tolelom/purgechain/wallet"
)

// Service submits fulfil transactions for randomness requests.
type Service struct {
	mu      sync.Mutex
	wallet  *wallet.Wallet
	chainID string
	secret  []byte
	state   core.State
	mempool *core.Mempool
	log     *slog.Logger
}

// New creates an oracle that signs with w. secret must stay private: anyone
// holding it can predict every word.
func New(w *wallet.Wallet, chainID, secret string, state core.State, mempool *core.Mempool) *Service {
	return &Service{
		wallet:  w,
		chainID: chainID,
		secret:  []byte(secret),
		state:   state,
		mempool: mempool,
		log:     slog.Default().With("component", "oracle", "address", w.PubKey()),
	}
}

// Register answers every request the emitter reports.
func (s *Service) Register(em *events.Emitter) {
	em.Subscribe(events.EventRngRequest, func(ev events.Event) {
		id, ok := ev.Data["request_id"].(uint64)
		if !ok {
			s.log.Warn("randomness request without id", "tx", ev.TxID)
			return
		}
		if _, err := s.Answer(id); err != nil {
			s.log.Error("answer randomness request", "request_id", id, "error", err)
		}
	})
}

// Word is the answer for requestID.
func (s *Service) Word(requestID uint64) game.Word {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], requestID)
	return game.Keccak(s.secret, id[:])
}

// Answer signs the fulfil transaction for requestID and adds it to the
// mempool.
func (s *Service) Answer(requestID uint64) (*core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := nextNonce(s.state, s.mempool, s.wallet.PubKey())
	if err != nil {
		return nil, err
	}
	tx, err := s.wallet.FulfillRng(s.chainID, requestID, s.Word(requestID).Hex(), nonce, 0)
	if err != nil {
		return nil, fmt.Errorf("sign fulfil: %w", err)
	}
	if err := s.mempool.Add(tx); err != nil {
		return nil, fmt.Errorf("submit fulfil: %w", err)
	}
	metrics.OracleAnswers.Inc()
	s.log.Info("randomness request answered", "request_id", requestID, "tx", tx.ID, "nonce", nonce)
	return tx, nil
}

func nextNonce(state core.State, mempool *core.Mempool, addr string) (uint64, error) {
	acc, err := state.GetAccount(addr)
	if err != nil {
		return 0, fmt.Errorf("load account: %w", err)
	}
	return mempool.NextNonce(addr, acc.Nonce), nil
}
