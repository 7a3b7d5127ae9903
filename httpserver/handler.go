package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/timelock-vault/api"
	"github.com/ruteri/timelock-vault/cryptoutils"
	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/ruteri/timelock-vault/vault"
)

// maxBodySize is the maximum allowed request body size (64KB).
const maxBodySize = 64 * 1024

var (
	errStaleRequest     = errors.New("request issued_at outside the accepted window")
	errInvalidSignature = errors.New("signature does not verify")
	errFaucetDisabled   = errors.New("airdrops are not enabled in this environment")
)

// Faucets are the development ledgers airdrops credit.
type Faucets struct {
	Native interfaces.Faucet
	Token  interfaces.Faucet
}

// Handler serves the vault API on top of a vault.Processor.
type Handler struct {
	processor *vault.Processor
	faucets   *Faucets
	clock     interfaces.Clock
	window    time.Duration
	log       *slog.Logger
}

// NewHandler creates a handler. faucets may be nil; airdrops are refused unless
// the environment enables them and faucets are supplied.
func NewHandler(processor *vault.Processor, faucets *Faucets, clock interfaces.Clock, window time.Duration, log *slog.Logger) *Handler {
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	if window <= 0 {
		window = api.DefaultSignatureWindow
	}
	return &Handler{
		processor: processor,
		faucets:   faucets,
		clock:     clock,
		window:    window,
		log:       log,
	}
}

// HandleProcess verifies and applies a signed operation.
//
// URL format: POST /api/vault/process
//
// Request body: api.ProcessRequest. The signature must be by Signer over
// vault.RequestDigest and IssuedAt must be within the signature window.
//
// Response: vault.Result on success, api.ErrorResponse with the failure code otherwise.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req api.ProcessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", interfaces.ErrMalformedRequest, err))
		return
	}

	signers, err := h.verify(&req)
	if err != nil {
		h.log.Warn("Rejected unsigned request", "err", err, slog.String("signer", req.Signer.String()))
		h.writeError(w, http.StatusUnauthorized, err)
		return
	}

	res, err := h.processor.Process(r.Context(), vault.Request{
		Data:     req.Data,
		Accounts: req.Accounts,
		Signers:  signers,
	})
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// verify returns the verified signers of req.
func (h *Handler) verify(req *api.ProcessRequest) ([]interfaces.Address, error) {
	issuedAt := time.Unix(req.IssuedAt, 0)
	now := h.clock.Now()
	if issuedAt.Before(now.Add(-h.window)) || issuedAt.After(now.Add(h.window)) {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrMissingSignature, errStaleRequest)
	}

	digest := vault.RequestDigest(req.Data, req.Accounts, req.IssuedAt)
	if !cryptoutils.VerifySignature(req.Signer, digest, req.Signature) {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrMissingSignature, errInvalidSignature)
	}
	return []interfaces.Address{req.Signer}, nil
}

// HandleGetVault returns the vault record of an owner.
//
// URL format: GET /api/vault/{owner}
func (h *Handler) HandleGetVault(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerParam(w, r)
	if !ok {
		return
	}

	addr, rec, err := h.processor.Vault(r.Context(), owner)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	resp := &api.VaultResponse{Address: addr, Vault: rec}
	if rec.IsLocked {
		maturesAt := rec.MaturesAt()
		resp.MaturesAt = &maturesAt
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleQuote returns the fee an owner would pay to withdraw now.
//
// URL format: GET /api/vault/{owner}/quote
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.ownerParam(w, r)
	if !ok {
		return
	}

	quote, err := h.processor.Quote(r.Context(), owner)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	env := h.processor.Environment()
	addr, _, err := vault.DeriveVaultAddress(&env, owner)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, &api.QuoteResponse{Owner: owner, Vault: addr, FeeQuote: quote})
}

// HandleEnvironment returns the active environment.
//
// URL format: GET /api/environment
func (h *Handler) HandleEnvironment(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.NewEnvironmentResponse(h.processor.Environment()))
}

// HandleAirdrop credits native or token funds on development environments.
//
// URL format: POST /api/devnet/airdrop
//
// Request body: api.AirdropRequest. Token airdrops open the owner's associated
// holding account as needed.
func (h *Handler) HandleAirdrop(w http.ResponseWriter, r *http.Request) {
	env := h.processor.Environment()
	if !env.Faucet || h.faucets == nil {
		h.writeError(w, http.StatusForbidden, errFaucetDisabled)
		return
	}

	var req api.AirdropRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", interfaces.ErrMalformedRequest, err))
		return
	}
	if req.Amount == 0 || req.Owner.IsZero() {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: owner and a positive amount are required", interfaces.ErrMalformedRequest))
		return
	}

	account, err := h.airdrop(r.Context(), &env, &req)
	if err != nil {
		h.log.Error("Airdrop failed", "err", err, slog.String("owner", req.Owner.String()))
		h.writeError(w, statusFor(err), err)
		return
	}

	h.log.Info("Airdrop applied",
		slog.String("account", account.String()),
		slog.Uint64("amount", req.Amount))
	h.writeJSON(w, http.StatusOK, &api.AirdropResponse{Account: account, Amount: req.Amount})
}

func (h *Handler) airdrop(ctx context.Context, env *vault.Environment, req *api.AirdropRequest) (interfaces.Address, error) {
	if req.Asset == nil {
		if h.faucets.Native == nil {
			return interfaces.Address{}, errFaucetDisabled
		}
		return req.Owner, h.faucets.Native.Mint(ctx, req.Owner, req.Owner, req.Amount)
	}

	guard := vault.NewGuard(env)
	if err := guard.RequireAllowListed(*req.Asset, env.Assets, "asset"); err != nil {
		return interfaces.Address{}, err
	}
	if h.faucets.Token == nil {
		return interfaces.Address{}, errFaucetDisabled
	}

	holding, err := vault.DeriveHoldingAccount(env, req.Owner, *req.Asset)
	if err != nil {
		return interfaces.Address{}, err
	}
	return holding, h.faucets.Token.Mint(ctx, holding, req.Owner, req.Amount)
}

func (h *Handler) ownerParam(w http.ResponseWriter, r *http.Request) (interfaces.Address, bool) {
	owner, err := interfaces.NewAddressFromBase58(chi.URLParam(r, "owner"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner address: %w", err))
		return interfaces.Address{}, false
	}
	return owner, true
}

// statusFor maps vault failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrMissingSignature):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrVaultNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrAlreadyInitialized),
		errors.Is(err, interfaces.ErrNotLocked),
		errors.Is(err, interfaces.ErrLockNotMatured):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrTransferFailure),
		errors.Is(err, interfaces.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, interfaces.ErrAddressMismatch),
		errors.Is(err, interfaces.ErrNotAllowListed),
		errors.Is(err, interfaces.ErrInvalidAccountOwnership),
		errors.Is(err, interfaces.ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	resp := api.ErrorResponse{Error: err.Error()}
	if code := interfaces.ErrorCode(err); code != "Internal" {
		resp.Code = code
	}
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
	}
	h.writeJSON(w, status, &resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
