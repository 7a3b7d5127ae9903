package cryptoutils

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/ruteri/timelock-vault/interfaces"
)

// ErrInvalidKeypair is returned when a serialized keypair cannot be decoded.
var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is an ed25519 signing key whose public half is an owner Address.
type Keypair struct {
	priv ed25519.PrivateKey
}

// GenerateKeypair creates a new random keypair.
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSeed creates a deterministic keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes", ErrInvalidKeypair, ed25519.SeedSize)
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromBase58 decodes the base58 form of a 64-byte ed25519 private key.
func KeypairFromBase58(encoded string) (*Keypair, error) {
	raw, err := base58.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(raw))
	}
	return &Keypair{priv: ed25519.PrivateKey(raw)}, nil
}

// LoadKeypair reads a keypair file written by SaveKeypair.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	return KeypairFromBase58(string(data))
}

// SaveKeypair writes the keypair to path with owner-only permissions.
func SaveKeypair(path string, kp *Keypair) error {
	return os.WriteFile(path, []byte(kp.Base58()+"\n"), 0600)
}

// Address returns the public key as an owner address.
func (k *Keypair) Address() interfaces.Address {
	var addr interfaces.Address
	copy(addr[:], k.priv.Public().(ed25519.PublicKey))
	return addr
}

// Base58 returns the base58 form of the private key.
func (k *Keypair) Base58() string {
	return base58.Encode(k.priv)
}

// Sign signs msg.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// VerifySignature reports whether sig is a valid signature of msg by signer.
func VerifySignature(signer interfaces.Address, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(signer[:]), msg, sig)
}
