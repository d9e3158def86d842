// Package crypto holds the chain's primitives: SHA-256 identifiers and
// ed25519 account keys. An account is addressed by its hex public key.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrBadSignature is returned by Verify when the signature does not match.
var ErrBadSignature = errors.New("signature verification failed")

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashID derives a record id from its parts, joined with ":".
func HashID(parts ...string) string {
	return Hash([]byte(strings.Join(parts, ":")))
}

// PrivateKey wraps ed25519 private key bytes.
type PrivateKey []byte

// PublicKey wraps ed25519 public key bytes.
type PublicKey []byte

// GenerateKeyPair generates a new ed25519 key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PrivateKey(priv), PublicKey(pub), nil
}

// Hex returns the 64-char hex public key, which is also the account address.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub)
}

func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Public derives the ed25519 public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
}

// PubKeyFromHex decodes a hex-encoded public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := decodeSized(s, ed25519.PublicKeySize)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey: %w", err)
	}
	return PublicKey(b), nil
}

// PrivKeyFromHex decodes a hex-encoded private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := decodeSized(s, ed25519.PrivateKeySize)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey: %w", err)
	}
	return PrivateKey(b), nil
}

func decodeSized(s string, size int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("want %d bytes, got %d", size, len(b))
	}
	return b, nil
}

// Sign signs data with the private key and returns a hex-encoded signature.
func Sign(priv PrivateKey, data []byte) string {
	return hex.EncodeToString(ed25519.Sign(ed25519.PrivateKey(priv), data))
}

// Verify checks a hex-encoded signature against data using the public key.
func Verify(pub PublicKey, data []byte, sigHex string) error {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize || !ed25519.Verify(ed25519.PublicKey(pub), data, sig) {
		return ErrBadSignature
	}
	return nil
}
