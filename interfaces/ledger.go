package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrAccountNotFound is returned by a ledger for an unknown account.
	ErrAccountNotFound = errors.New("ledger account not found")

	// ErrInsufficientFunds is returned when the source balance is below the transfer amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorizedTransfer is returned when the transfer authority does not
	// control the source account or its derivation proof does not verify.
	ErrUnauthorizedTransfer = errors.New("unauthorized transfer")
)

// DerivedSigner proves authority over a derived address without a private key.
// The ledger recomputes the address from Seeds, Nonce and ProgramID.
type DerivedSigner struct {
	ProgramID Address
	Seeds     [][]byte
	Nonce     uint8
}

// Transfer moves Amount units from one account to another.
type Transfer struct {
	From   Address
	To     Address
	Amount uint64

	// Authority must control From. For accounts owned by a derived address,
	// Derived carries the proof; otherwise the caller's verified signature is implied.
	Authority Address
	Derived   *DerivedSigner
}

// Ledger moves balances of a single asset between accounts.
type Ledger interface {
	// ProgramID identifies the ledger program administering its accounts.
	ProgramID() Address

	// OwnerOf returns the program administering account, or ErrAccountNotFound.
	OwnerOf(ctx context.Context, account Address) (Address, error)

	// Transfer applies t or fails without effect.
	Transfer(ctx context.Context, t Transfer) error

	// Name returns identifier for logging.
	Name() string
}

// TokenLedger is a Ledger whose accounts must be opened before use.
type TokenLedger interface {
	Ledger

	// OpenAccount creates account controlled by authority. Opening an existing
	// account with the same authority is a no-op.
	OpenAccount(ctx context.Context, account, authority Address) error
}

// Faucet credits accounts out of thin air. Only development ledgers implement it.
type Faucet interface {
	Mint(ctx context.Context, account, authority Address, amount uint64) error
}

// Transactor runs fn so that every effect it applies through the implementation
// either commits together or is rolled back when fn returns an error.
type Transactor interface {
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}
