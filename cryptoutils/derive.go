package cryptoutils

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/ruteri/timelock-vault/interfaces"
)

const (
	// MaxSeedLength is the maximum size of a single derivation seed.
	MaxSeedLength = 32

	// MaxSeeds is the maximum number of seeds, including the nonce seed.
	MaxSeeds = 16

	derivationMarker = "ProgramDerivedAddress"
)

var (
	// ErrSeedTooLong is returned when a seed exceeds MaxSeedLength.
	ErrSeedTooLong = errors.New("derivation seed too long")

	// ErrTooManySeeds is returned when more than MaxSeeds seeds are supplied.
	ErrTooManySeeds = errors.New("too many derivation seeds")

	// ErrOnCurve is returned when the derived digest is a valid ed25519 point,
	// i.e. a private key could exist for it.
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")

	// ErrNoViableNonce is returned when every nonce yields an on-curve address.
	ErrNoViableNonce = errors.New("no viable derivation nonce")
)

// CreateDerivedAddress computes sha256(seeds || programID || marker) and rejects
// results that are valid curve points.
func CreateDerivedAddress(programID interfaces.Address, seeds ...[]byte) (interfaces.Address, error) {
	if len(seeds) > MaxSeeds {
		return interfaces.Address{}, ErrTooManySeeds
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return interfaces.Address{}, fmt.Errorf("%w: seed %d has %d bytes", ErrSeedTooLong, i, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivationMarker))

	var addr interfaces.Address
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr[:]) {
		return interfaces.Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindDerivedAddress searches nonces from 255 down to 0, appending each as the
// final seed, and returns the first off-curve address with its nonce.
// The result is a pure function of its inputs.
func FindDerivedAddress(programID interfaces.Address, seeds ...[]byte) (interfaces.Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return interfaces.Address{}, 0, ErrTooManySeeds
	}

	for nonce := 255; nonce >= 0; nonce-- {
		withNonce := append(seeds[:len(seeds):len(seeds)], []byte{byte(nonce)})
		addr, err := CreateDerivedAddress(programID, withNonce...)
		if err == nil {
			return addr, uint8(nonce), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return interfaces.Address{}, 0, err
		}
	}

	return interfaces.Address{}, 0, ErrNoViableNonce
}

// VerifyDerivedSigner reports whether signer re-derives to expected.
func VerifyDerivedSigner(signer *interfaces.DerivedSigner, expected interfaces.Address) bool {
	if signer == nil {
		return false
	}

	seeds := append(signer.Seeds[:len(signer.Seeds):len(signer.Seeds)], []byte{signer.Nonce})
	addr, err := CreateDerivedAddress(signer.ProgramID, seeds...)
	if err != nil {
		return false
	}
	return addr == expected
}

// IsOnCurve reports whether b is the encoding of a point on edwards25519.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
