package api

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/timelock-vault/cryptoutils"
	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/ruteri/timelock-vault/vault"
	"github.com/shopspring/decimal"
)

// VaultProvider defines the client side of the vault API.
type VaultProvider interface {
	// Process submits a signed operation.
	Process(req *ProcessRequest) (*vault.Result, error)

	// GetVault returns the vault record of owner.
	GetVault(owner interfaces.Address) (*VaultResponse, error)

	// GetQuote returns the early-exit fee owner would pay now.
	GetQuote(owner interfaces.Address) (*QuoteResponse, error)

	// GetEnvironment returns the server's active environment.
	GetEnvironment() (*EnvironmentResponse, error)
}

// ProcessRequest is the body of POST /api/vault/process.
//
// Signature is the ed25519 signature by Signer over
// vault.RequestDigest(Data, Accounts, IssuedAt).
type ProcessRequest struct {
	// Data is the encoded operation payload.
	Data hexutil.Bytes `json:"data"`

	Accounts vault.Accounts `json:"accounts"`

	// IssuedAt is the unix time the request was signed at.
	IssuedAt int64 `json:"issued_at"`

	Signer    interfaces.Address `json:"signer"`
	Signature hexutil.Bytes      `json:"signature"`
}

// NewProcessRequest encodes op and signs it with kp.
func NewProcessRequest(kp *cryptoutils.Keypair, op vault.Operation, accts vault.Accounts, issuedAt time.Time) *ProcessRequest {
	data := vault.EncodeOperation(op)
	ts := issuedAt.Unix()
	return &ProcessRequest{
		Data:      data,
		Accounts:  accts,
		IssuedAt:  ts,
		Signer:    kp.Address(),
		Signature: kp.Sign(vault.RequestDigest(data, accts, ts)),
	}
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`

	// Code is the stable failure tag of a rejected operation, empty for
	// transport-level failures.
	Code string `json:"code,omitempty"`
}

// VaultResponse describes a stored vault record.
type VaultResponse struct {
	Address   interfaces.Address `json:"address"`
	Vault     *interfaces.Vault  `json:"vault"`
	MaturesAt *time.Time         `json:"matures_at,omitempty"`
}

// QuoteResponse is the early-exit fee quote of a locked vault.
type QuoteResponse struct {
	Owner interfaces.Address `json:"owner"`
	Vault interfaces.Address `json:"vault"`
	vault.FeeQuote
}

// EnvironmentResponse exposes the active environment to clients so that they
// can derive accounts locally.
type EnvironmentResponse struct {
	Name                string               `json:"name"`
	ProgramID           interfaces.Address   `json:"program_id"`
	TokenProgramID      interfaces.Address   `json:"token_program_id"`
	NativeProgramID     interfaces.Address   `json:"native_program_id"`
	AssociatedProgramID interfaces.Address   `json:"associated_program_id"`
	Assets              []interfaces.Address `json:"assets"`
	FeeRecipients       []interfaces.Address `json:"fee_recipients"`
	LockSeconds         int64                `json:"lock_seconds"`
	EntryFee            uint64               `json:"entry_fee"`
	BaseFeeRate         decimal.Decimal      `json:"base_fee_rate"`
	Faucet              bool                 `json:"faucet"`
}

// NewEnvironmentResponse converts env for the wire.
func NewEnvironmentResponse(env vault.Environment) *EnvironmentResponse {
	return &EnvironmentResponse{
		Name:                env.Name,
		ProgramID:           env.ProgramID,
		TokenProgramID:      env.TokenProgramID,
		NativeProgramID:     env.NativeProgramID,
		AssociatedProgramID: env.AssociatedProgramID,
		Assets:              env.Assets,
		FeeRecipients:       env.FeeRecipients,
		LockSeconds:         env.LockSeconds(),
		EntryFee:            env.EntryFee,
		BaseFeeRate:         env.BaseFeeRate,
		Faucet:              env.Faucet,
	}
}

// Environment converts the response back into a vault environment.
func (r *EnvironmentResponse) Environment() vault.Environment {
	return vault.Environment{
		Name:                r.Name,
		ProgramID:           r.ProgramID,
		TokenProgramID:      r.TokenProgramID,
		NativeProgramID:     r.NativeProgramID,
		AssociatedProgramID: r.AssociatedProgramID,
		Assets:              r.Assets,
		FeeRecipients:       r.FeeRecipients,
		LockDuration:        time.Duration(r.LockSeconds) * time.Second,
		EntryFee:            r.EntryFee,
		BaseFeeRate:         r.BaseFeeRate,
		Faucet:              r.Faucet,
	}
}

// AirdropRequest is the body of POST /api/devnet/airdrop. Native credits
// Owner directly; token credits the owner's associated holding account for Asset.
type AirdropRequest struct {
	Owner  interfaces.Address  `json:"owner"`
	Asset  *interfaces.Address `json:"asset,omitempty"`
	Amount uint64              `json:"amount"`
}

// AirdropResponse reports the credited account and its new balance when the
// ledger can report one.
type AirdropResponse struct {
	Account interfaces.Address `json:"account"`
	Amount  uint64             `json:"amount"`
}
