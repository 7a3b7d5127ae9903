package vault

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ruteri/timelock-vault/interfaces"
)

const requestDomain = "timelock-vault/request/v1"

// Accounts names every account an operation may touch. Operations ignore the
// accounts they do not need.
type Accounts struct {
	// Owner is the vault owner. Its native account pays fees.
	Owner interfaces.Address `json:"owner"`

	// Vault is the caller-supplied vault record address.
	Vault interfaces.Address `json:"vault"`

	// VaultHolding is the vault's token account for Asset.
	VaultHolding interfaces.Address `json:"vault_holding"`

	// OwnerHolding is the owner's token account for Asset.
	OwnerHolding interfaces.Address `json:"owner_holding"`

	FeeRecipient interfaces.Address `json:"fee_recipient"`
	Asset        interfaces.Address `json:"asset"`
}

func (a *Accounts) ordered() []interfaces.Address {
	return []interfaces.Address{a.Owner, a.Vault, a.VaultHolding, a.OwnerHolding, a.FeeRecipient, a.Asset}
}

// Request is an operation payload with its accounts and the identities that
// verifiably signed it.
type Request struct {
	Data     []byte
	Accounts Accounts
	Signers  []interfaces.Address
}

// RequestDigest returns the message an owner signs to authorize data against
// accts. issuedAt is the unix time the client created the request.
func RequestDigest(data []byte, accts Accounts, issuedAt int64) []byte {
	h := sha256.New()
	h.Write([]byte(requestDomain))

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(issuedAt))
	h.Write(n[:])

	binary.LittleEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)

	for _, addr := range accts.ordered() {
		h.Write(addr[:])
	}
	return h.Sum(nil)
}

// AccountsFor fills in the accounts of owner for the environment's first
// allow-listed asset and fee recipient. The owner's token account is its
// associated holding account.
func AccountsFor(env *Environment, owner interfaces.Address) (Accounts, error) {
	vaultAddr, _, err := DeriveVaultAddress(env, owner)
	if err != nil {
		return Accounts{}, err
	}

	asset := env.Assets[0]
	holding, err := DeriveHoldingAccount(env, vaultAddr, asset)
	if err != nil {
		return Accounts{}, err
	}
	ownerHolding, err := DeriveHoldingAccount(env, owner, asset)
	if err != nil {
		return Accounts{}, err
	}

	return Accounts{
		Owner:        owner,
		Vault:        vaultAddr,
		VaultHolding: holding,
		OwnerHolding: ownerHolding,
		FeeRecipient: env.FeeRecipients[0],
		Asset:        asset,
	}, nil
}
