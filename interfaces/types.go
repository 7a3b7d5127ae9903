package interfaces

import (
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// AddressLength is the size in bytes of every account, program and vault address.
const AddressLength = 32

// Address identifies an account, a program or a vault record.
// Owner addresses are ed25519 public keys; derived addresses are off-curve.
type Address [AddressLength]byte

// NewAddressFromBytes creates an address from a 32-byte slice.
func NewAddressFromBytes(addr []byte) (Address, error) {
	if len(addr) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length: must be %d bytes, got %d", AddressLength, len(addr))
	}

	var res Address
	copy(res[:], addr)
	return res, nil
}

// NewAddressFromBase58 parses the base58 text form of an address.
func NewAddressFromBase58(addr string) (Address, error) {
	if addr == "" {
		return Address{}, errors.New("empty address")
	}

	decoded, err := base58.Decode(addr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid base58 format: %w", err)
	}

	return NewAddressFromBytes(decoded)
}

// MustAddress parses a base58 address and panics on failure.
// Intended for compile-time constants only.
func MustAddress(addr string) Address {
	res, err := NewAddressFromBase58(addr)
	if err != nil {
		panic(fmt.Sprintf("invalid address constant %q: %v", addr, err))
	}
	return res
}

// String returns the base58 representation of the address.
func (addr Address) String() string {
	return base58.Encode(addr[:])
}

// Bytes returns the raw 32-byte address.
func (addr Address) Bytes() []byte {
	return addr[:]
}

// Equal compares two addresses for equality.
func (addr Address) Equal(other Address) bool {
	return addr == other
}

// IsZero reports whether the address is all zeroes.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (addr Address) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (addr *Address) UnmarshalText(text []byte) error {
	parsed, err := NewAddressFromBase58(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

// VaultRecordSize is the fixed serialized size of a Vault record.
const VaultRecordSize = AddressLength + 8 + 8 + 8 + 1 + 1

// Vault is the per-owner escrow record stored at the owner's derived address.
type Vault struct {
	// Owner is the depositor; immutable after creation.
	Owner Address `json:"owner"`

	// LockDuration is the number of seconds a deposit stays locked. Zero in the
	// unlocked baseline state.
	LockDuration int64 `json:"lock_duration"`

	// AmountLocked is the quantity of the asset held by the vault.
	AmountLocked uint64 `json:"amount_locked"`

	// DepositTimestamp is the unix time of the most recent lock-establishing deposit.
	DepositTimestamp int64 `json:"deposit_timestamp"`

	// IsLocked is set iff AmountLocked > 0 and the maturity clock is running.
	IsLocked bool `json:"is_locked"`

	// Nonce is the value that made the vault address derivation succeed.
	Nonce uint8 `json:"nonce"`
}

// MaturesAt returns the time at which the current lock stops accruing an exit fee.
func (v *Vault) MaturesAt() time.Time {
	return time.Unix(v.DepositTimestamp+v.LockDuration, 0).UTC()
}

// Consistent checks the lock-state invariant of the record.
func (v *Vault) Consistent() bool {
	return v.IsLocked == (v.AmountLocked > 0 && v.DepositTimestamp > 0)
}

// Clock provides the wall-clock time used for deposit timestamps and fee quotes.
type Clock interface {
	Now() time.Time
}

// SystemClock is the Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
