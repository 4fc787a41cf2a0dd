package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// PublicKeySize is the raw length of an ed25519 redemption key.
const PublicKeySize = ed25519.PublicKeySize

// ErrInvalidPublicKey is returned when key material cannot be decoded into a
// well-formed ed25519 public key.
var ErrInvalidPublicKey = errors.New("crypto: invalid public key")

// PublicKey identifies a single drop and authorises its redemption. The
// canonical text form is the base58 encoding of the raw 32 bytes. The zero
// value is not a usable key.
type PublicKey struct {
	raw [PublicKeySize]byte
}

// NewPublicKey wraps raw ed25519 key bytes.
func NewPublicKey(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(b))
	}
	var pk PublicKey
	copy(pk.raw[:], b)
	return pk, nil
}

// ParsePublicKey decodes the base58 text form of a redemption key.
func ParsePublicKey(s string) (PublicKey, error) {
	decoded := base58.Decode(s)
	if len(decoded) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: malformed base58 encoding", ErrInvalidPublicKey)
	}
	return NewPublicKey(decoded)
}

// MustParsePublicKey is ParsePublicKey that panics on error. Intended for
// tests and static fixtures.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (p PublicKey) String() string {
	return base58.Encode(p.raw[:])
}

// Bytes returns a copy of the raw key material.
func (p PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, p.raw[:])
	return out
}

// IsZero reports whether the key is the unusable zero value.
func (p PublicKey) IsZero() bool {
	return bytes.Equal(p.raw[:], make([]byte, PublicKeySize))
}

// GenerateKey produces a fresh ed25519 keypair. The private half is only
// needed by clients and tests; the module itself stores public keys.
func GenerateKey() (PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, nil, err
	}
	pk, err := NewPublicKey(pub)
	if err != nil {
		return PublicKey{}, nil, err
	}
	return pk, priv, nil
}
