package vault

import (
	"github.com/ruteri/timelock-vault/cryptoutils"
	"github.com/ruteri/timelock-vault/interfaces"
)

// vaultSeeds returns the derivation seeds of owner's vault, without the nonce.
func vaultSeeds(owner interfaces.Address) [][]byte {
	return [][]byte{[]byte(SeedLabel), owner.Bytes()}
}

// DeriveVaultAddress returns the address of owner's vault record and the nonce
// that proves authority over it.
func DeriveVaultAddress(env *Environment, owner interfaces.Address) (interfaces.Address, uint8, error) {
	return cryptoutils.FindDerivedAddress(env.ProgramID, vaultSeeds(owner)...)
}

// DeriveHoldingAccount returns the associated token account that holds asset
// on behalf of authority, which is either a vault address or an owner.
func DeriveHoldingAccount(env *Environment, authority, asset interfaces.Address) (interfaces.Address, error) {
	addr, _, err := cryptoutils.FindDerivedAddress(env.AssociatedProgramID,
		authority.Bytes(), env.TokenProgramID.Bytes(), asset.Bytes())
	return addr, err
}

// VaultSigner builds the derived-authority proof used to move funds out of
// the vault's holding account.
func VaultSigner(env *Environment, owner interfaces.Address, nonce uint8) *interfaces.DerivedSigner {
	return &interfaces.DerivedSigner{
		ProgramID: env.ProgramID,
		Seeds:     vaultSeeds(owner),
		Nonce:     nonce,
	}
}
