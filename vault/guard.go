package vault

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ruteri/timelock-vault/interfaces"
)

// Guard performs the authorization checks that precede every state change.
type Guard struct {
	env *Environment
}

// NewGuard creates a guard bound to env.
func NewGuard(env *Environment) *Guard {
	return &Guard{env: env}
}

// RequireSigner fails unless identity is among the verified signers.
func (g *Guard) RequireSigner(signers []interfaces.Address, identity interfaces.Address) error {
	if !slices.Contains(signers, identity) {
		return fmt.Errorf("%w: %s", interfaces.ErrMissingSignature, identity)
	}
	return nil
}

// RequireDerivedAddress recomputes owner's vault address and compares it with
// supplied. It returns the derivation nonce on success.
func (g *Guard) RequireDerivedAddress(owner, supplied interfaces.Address) (uint8, error) {
	expected, nonce, err := DeriveVaultAddress(g.env, owner)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrAddressMismatch, err)
	}
	if expected != supplied {
		return 0, fmt.Errorf("%w: expected vault %s, got %s", interfaces.ErrAddressMismatch, expected, supplied)
	}
	return nonce, nil
}

// RequireHoldingAccount checks that supplied is the vault's holding account for asset.
func (g *Guard) RequireHoldingAccount(vaultAddr, asset, supplied interfaces.Address) error {
	expected, err := DeriveHoldingAccount(g.env, vaultAddr, asset)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrAddressMismatch, err)
	}
	if expected != supplied {
		return fmt.Errorf("%w: expected holding account %s, got %s", interfaces.ErrAddressMismatch, expected, supplied)
	}
	return nil
}

// RequireAllowListed fails unless candidate is exactly one of allowList.
func (g *Guard) RequireAllowListed(candidate interfaces.Address, allowList []interfaces.Address, kind string) error {
	if !slices.Contains(allowList, candidate) {
		return fmt.Errorf("%w: %s %s in %s", interfaces.ErrNotAllowListed, kind, candidate, g.env.Name)
	}
	return nil
}

// RequireLedgerOwned checks that account exists and is administered by expected.
func (g *Guard) RequireLedgerOwned(ctx context.Context, ledger interfaces.Ledger, account, expected interfaces.Address) error {
	owner, err := ledger.OwnerOf(ctx, account)
	if errors.Is(err, interfaces.ErrAccountNotFound) {
		return fmt.Errorf("%w: account %s does not exist", interfaces.ErrInvalidAccountOwnership, account)
	}
	if err != nil {
		return err
	}
	if owner != expected {
		return fmt.Errorf("%w: account %s owned by %s, expected %s", interfaces.ErrInvalidAccountOwnership, account, owner, expected)
	}
	return nil
}
