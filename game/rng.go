package game

import "fmt"

// Gate serializes access to randomness: at most one request is
// outstanding and each delivered word is consumed exactly once.
type Gate struct {
	store  *Store
	oracle RandomnessOracle
	params *Params
}

// NewGate builds a gate over store.
func NewGate(store *Store, oracle RandomnessOracle, params *Params) *Gate {
	return &Gate{store: store, oracle: oracle, params: params}
}

// RequestIfNeeded issues a request unless one is already outstanding and
// younger than RngRetryAfter. It reports whether a request was issued.
func (g *Gate) RequestIfNeeded(now int64) (bool, error) {
	r, err := g.store.Rng()
	if err != nil {
		return false, err
	}
	if r.Locked && (r.Fulfilled || now-r.RequestedAt < g.params.RngRetryAfter) {
		return false, nil
	}
	r.Locked = true
	r.Fulfilled = false
	r.Word = Word{}
	r.RequestID++
	r.RequestedAt = now
	if err := g.store.SetRng(r); err != nil {
		return false, err
	}
	if err := g.oracle.RequestRandomness(r.RequestID); err != nil {
		return false, fmt.Errorf("request randomness: %w", err)
	}
	return true, nil
}

// IsReady reports whether a delivered word is waiting to be consumed.
func (g *Gate) IsReady() (bool, error) {
	r, err := g.store.Rng()
	if err != nil {
		return false, err
	}
	return r.Locked && r.Fulfilled, nil
}

// Locked reports whether a request is outstanding or a word is unconsumed.
func (g *Gate) Locked() (bool, error) {
	r, err := g.store.Rng()
	if err != nil {
		return false, err
	}
	return r.Locked, nil
}

// Consume returns the delivered word and releases the lock.
func (g *Gate) Consume() (Word, error) {
	r, err := g.store.Rng()
	if err != nil {
		return Word{}, err
	}
	if !r.Locked || !r.Fulfilled {
		return Word{}, ErrRngNotReady
	}
	w := r.Word
	r.Locked = false
	r.Fulfilled = false
	r.LastWord = w
	if err := g.store.SetRng(r); err != nil {
		return Word{}, err
	}
	return w, nil
}

// Fulfill records the oracle's answer for requestID.
func (g *Gate) Fulfill(requestID uint64, w Word) error {
	r, err := g.store.Rng()
	if err != nil {
		return err
	}
	if !r.Locked {
		return ErrRngNotLocked
	}
	if r.Fulfilled || r.RequestID != requestID {
		return fmt.Errorf("%w: outstanding %d, got %d", ErrRngRequestMismatch, r.RequestID, requestID)
	}
	r.Word = w
	r.Fulfilled = true
	return g.store.SetRng(r)
}
