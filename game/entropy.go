package game

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Salts keep the draws of different consumers independent.
const (
	saltBucket     uint64 = 200 // + bucket index
	saltStake      uint64 = 300
	saltFlip       uint64 = 301
	saltQuest      uint64 = 302
	saltExterm     uint64 = 303
	saltPieceTrait uint64 = 304
)

// Keccak hashes parts with Keccak-256.
func Keccak(parts ...[]byte) Word {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var w Word
	copy(w[:], h.Sum(nil))
	return w
}

// Derive mixes a word with integer salts.
func Derive(w Word, salts ...uint64) Word {
	buf := make([]byte, len(w)+8*len(salts))
	copy(buf, w[:])
	for i, s := range salts {
		binary.BigEndian.PutUint64(buf[len(w)+8*i:], s)
	}
	return Keccak(buf)
}

// DeriveString mixes a word with a string, then integer salts.
func DeriveString(w Word, s string, salts ...uint64) Word {
	return Derive(Keccak(w[:], []byte(s)), salts...)
}

// entropyStep advances a 64-bit xorshift state.
func entropyStep(s uint64) uint64 {
	s ^= s << 7
	s ^= s >> 9
	s ^= s << 8
	return s
}

// drawer yields a reproducible sequence of indices from one seed.
type drawer struct {
	state uint64
}

func newDrawer(seed Word) *drawer {
	s := seed.Uint64()
	if s == 0 {
		s = 0x9E3779B97F4A7C15
	}
	return &drawer{state: s}
}

// next returns a value in [0, n). n must be positive.
func (d *drawer) next(n uint64) uint64 {
	d.state = entropyStep(d.state)
	return d.state % n
}
