package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/google/uuid"
	"github.com/ruteri/timelock-vault/interfaces"
)

// Observer receives the outcome of every processed operation.
type Observer interface {
	ObserveOperation(op string, code string, duration time.Duration)
	ObserveFee(fee uint64)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}
func (nopObserver) ObserveFee(uint64)                               {}

// ProcessorConfig wires a Processor to its collaborators.
type ProcessorConfig struct {
	Env    Environment
	Store  interfaces.RecordStore
	Token  interfaces.TokenLedger
	Native interfaces.Ledger
	Clock  interfaces.Clock
	Log    *slog.Logger

	// Transactors wrap every operation; a failed operation rolls back each of them.
	Transactors []interfaces.Transactor

	Observer Observer
}

// Result describes the effect of a successful operation.
type Result struct {
	Operation    string             `json:"operation"`
	VaultAddress interfaces.Address `json:"vault_address"`
	Vault        *interfaces.Vault  `json:"vault,omitempty"`
	Fee          uint64             `json:"fee"`
	Released     uint64             `json:"released"`
}

// Processor is the vault state machine. Operations are serialized; each one
// either applies all of its ledger transfers and its record write or none.
type Processor struct {
	env      *Environment
	guard    *Guard
	store    interfaces.RecordStore
	token    interfaces.TokenLedger
	native   interfaces.Ledger
	clock    interfaces.Clock
	log      *slog.Logger
	txs      []interfaces.Transactor
	observer Observer

	mu sync.Mutex
}

// NewProcessor validates cfg and creates a Processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	env := cfg.Env
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store == nil || cfg.Token == nil || cfg.Native == nil {
		return nil, errors.New("processor requires a record store, a token ledger and a native ledger")
	}

	p := &Processor{
		env:      &env,
		store:    cfg.Store,
		token:    cfg.Token,
		native:   cfg.Native,
		clock:    cfg.Clock,
		log:      cfg.Log,
		txs:      cfg.Transactors,
		observer: cfg.Observer,
	}
	p.guard = NewGuard(p.env)

	if p.clock == nil {
		p.clock = interfaces.SystemClock{}
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	return p, nil
}

// Environment returns a copy of the active environment.
func (p *Processor) Environment() Environment {
	return *p.env
}

// Process decodes req.Data and runs the operation it names.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	op, err := DecodeOperation(req.Data)
	if err != nil {
		p.observer.ObserveOperation("decode", interfaces.ErrorCode(err), 0)
		return nil, err
	}

	switch op.Kind {
	case OpInitialize:
		return p.Initialize(ctx, req.Accounts, req.Signers, op.Amount)
	case OpDeposit:
		return p.Deposit(ctx, req.Accounts, req.Signers, op.Amount)
	case OpWithdraw:
		return p.Withdraw(ctx, req.Accounts, req.Signers)
	case OpRelease:
		return p.Release(ctx, req.Accounts, req.Signers)
	default:
		return p.Extend(ctx, req.Accounts)
	}
}

// Initialize creates the owner's vault, charging the entry fee. A positive
// amount is locked immediately; zero leaves the vault in the unlocked baseline.
func (p *Processor) Initialize(ctx context.Context, accts Accounts, signers []interfaces.Address, amount uint64) (*Result, error) {
	return p.run(ctx, OpInitialize, func(ctx context.Context) (*Result, error) {
		if err := p.guard.RequireSigner(signers, accts.Owner); err != nil {
			return nil, err
		}
		if err := p.guard.RequireAllowListed(accts.Asset, p.env.Assets, "asset"); err != nil {
			return nil, err
		}
		if err := p.guard.RequireAllowListed(accts.FeeRecipient, p.env.FeeRecipients, "fee recipient"); err != nil {
			return nil, err
		}
		nonce, err := p.guard.RequireDerivedAddress(accts.Owner, accts.Vault)
		if err != nil {
			return nil, err
		}
		if err := p.guard.RequireHoldingAccount(accts.Vault, accts.Asset, accts.VaultHolding); err != nil {
			return nil, err
		}

		_, err = p.store.Load(ctx, accts.Vault)
		if err == nil {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrAlreadyInitialized, accts.Vault)
		}
		if !errors.Is(err, interfaces.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load vault record: %w", err)
		}

		if err := p.token.OpenAccount(ctx, accts.VaultHolding, accts.Vault); err != nil {
			return nil, fmt.Errorf("%w: open holding account: %w", interfaces.ErrTransferFailure, err)
		}

		if p.env.EntryFee > 0 {
			err := p.transfer(ctx, p.native, interfaces.Transfer{
				From:      accts.Owner,
				To:        accts.FeeRecipient,
				Amount:    p.env.EntryFee,
				Authority: accts.Owner,
			})
			if err != nil {
				return nil, err
			}
		}

		rec := &interfaces.Vault{Owner: accts.Owner, Nonce: nonce}
		if amount > 0 {
			if err := p.deposit(ctx, accts, amount); err != nil {
				return nil, err
			}
			p.lock(rec, amount)
		}

		if err := p.save(ctx, accts.Vault, rec); err != nil {
			return nil, err
		}
		return &Result{VaultAddress: accts.Vault, Vault: rec, Fee: p.env.EntryFee}, nil
	})
}

// Deposit adds amount to the vault and restarts the lock for the whole balance.
func (p *Processor) Deposit(ctx context.Context, accts Accounts, signers []interfaces.Address, amount uint64) (*Result, error) {
	return p.run(ctx, OpDeposit, func(ctx context.Context) (*Result, error) {
		if err := p.guard.RequireSigner(signers, accts.Owner); err != nil {
			return nil, err
		}
		if amount == 0 {
			return nil, fmt.Errorf("%w: deposit amount must be positive", interfaces.ErrMalformedRequest)
		}
		if _, err := p.guard.RequireDerivedAddress(accts.Owner, accts.Vault); err != nil {
			return nil, err
		}
		rec, err := p.load(ctx, accts.Vault)
		if err != nil {
			return nil, err
		}
		if err := p.guard.RequireAllowListed(accts.Asset, p.env.Assets, "asset"); err != nil {
			return nil, err
		}
		if err := p.requireHolding(ctx, accts); err != nil {
			return nil, err
		}

		total, overflow := math.SafeAdd(rec.AmountLocked, amount)
		if overflow {
			return nil, fmt.Errorf("%w: %d + %d", interfaces.ErrArithmeticOverflow, rec.AmountLocked, amount)
		}

		if err := p.deposit(ctx, accts, amount); err != nil {
			return nil, err
		}
		p.lock(rec, total)

		if err := p.save(ctx, accts.Vault, rec); err != nil {
			return nil, err
		}
		return &Result{VaultAddress: accts.Vault, Vault: rec}, nil
	})
}

// Withdraw returns the full balance before maturity, charging the early-exit
// fee in the native asset.
func (p *Processor) Withdraw(ctx context.Context, accts Accounts, signers []interfaces.Address) (*Result, error) {
	return p.run(ctx, OpWithdraw, func(ctx context.Context) (*Result, error) {
		if err := p.guard.RequireSigner(signers, accts.Owner); err != nil {
			return nil, err
		}
		if err := p.guard.RequireAllowListed(accts.FeeRecipient, p.env.FeeRecipients, "fee recipient"); err != nil {
			return nil, err
		}
		if _, err := p.guard.RequireDerivedAddress(accts.Owner, accts.Vault); err != nil {
			return nil, err
		}
		rec, err := p.load(ctx, accts.Vault)
		if err != nil {
			return nil, err
		}
		if err := p.requireHolding(ctx, accts); err != nil {
			return nil, err
		}
		if !rec.IsLocked {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrNotLocked, accts.Vault)
		}

		fee, err := EarlyExitFee(p.clock.Now().Unix(), rec.DepositTimestamp, rec.LockDuration, p.env.BaseFeeRate, p.env.EntryFee)
		if err != nil {
			return nil, err
		}
		if fee > 0 {
			err := p.transfer(ctx, p.native, interfaces.Transfer{
				From:      accts.Owner,
				To:        accts.FeeRecipient,
				Amount:    fee,
				Authority: accts.Owner,
			})
			if err != nil {
				return nil, err
			}
		}

		released, err := p.release(ctx, accts, rec)
		if err != nil {
			return nil, err
		}
		p.observer.ObserveFee(fee)
		return &Result{VaultAddress: accts.Vault, Vault: rec, Fee: fee, Released: released}, nil
	})
}

// Release returns the full balance of a matured lock.
func (p *Processor) Release(ctx context.Context, accts Accounts, signers []interfaces.Address) (*Result, error) {
	return p.run(ctx, OpRelease, func(ctx context.Context) (*Result, error) {
		if err := p.guard.RequireSigner(signers, accts.Owner); err != nil {
			return nil, err
		}
		if _, err := p.guard.RequireDerivedAddress(accts.Owner, accts.Vault); err != nil {
			return nil, err
		}
		rec, err := p.load(ctx, accts.Vault)
		if err != nil {
			return nil, err
		}
		if !rec.IsLocked {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrNotLocked, accts.Vault)
		}
		if now := p.clock.Now(); now.Before(rec.MaturesAt()) {
			return nil, fmt.Errorf("%w: matures at %s", interfaces.ErrLockNotMatured, rec.MaturesAt().Format(time.RFC3339))
		}
		if err := p.requireHolding(ctx, accts); err != nil {
			return nil, err
		}

		released, err := p.release(ctx, accts, rec)
		if err != nil {
			return nil, err
		}
		return &Result{VaultAddress: accts.Vault, Vault: rec, Released: released}, nil
	})
}

// Extend is accepted for compatibility with existing clients and changes nothing.
func (p *Processor) Extend(ctx context.Context, accts Accounts) (*Result, error) {
	return p.run(ctx, OpExtend, func(ctx context.Context) (*Result, error) {
		return &Result{VaultAddress: accts.Vault}, nil
	})
}

// Vault returns the record of owner's vault.
func (p *Processor) Vault(ctx context.Context, owner interfaces.Address) (interfaces.Address, *interfaces.Vault, error) {
	addr, _, err := DeriveVaultAddress(p.env, owner)
	if err != nil {
		return interfaces.Address{}, nil, err
	}
	rec, err := p.load(ctx, addr)
	if err != nil {
		return addr, nil, err
	}
	return addr, rec, nil
}

// Quote returns the fee owner would pay to withdraw now.
func (p *Processor) Quote(ctx context.Context, owner interfaces.Address) (FeeQuote, error) {
	_, rec, err := p.Vault(ctx, owner)
	if err != nil {
		return FeeQuote{}, err
	}
	if !rec.IsLocked {
		return FeeQuote{}, fmt.Errorf("%w: owner %s", interfaces.ErrNotLocked, owner)
	}
	return QuoteEarlyExit(p.clock.Now().Unix(), rec.DepositTimestamp, rec.LockDuration, p.env.BaseFeeRate, p.env.EntryFee)
}

func (p *Processor) run(ctx context.Context, op OperationKind, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	log := p.log.With(slog.String("operation", op.String()), slog.String("opID", uuid.NewString()))

	var res *Result
	err := p.atomically(ctx, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)
		return err
	})

	p.observer.ObserveOperation(op.String(), interfaces.ErrorCode(err), time.Since(start))
	if err != nil {
		log.Warn("Operation rejected", "err", err, slog.String("code", interfaces.ErrorCode(err)))
		return nil, err
	}

	res.Operation = op.String()
	log.Info("Operation applied",
		slog.String("vault", res.VaultAddress.String()),
		slog.Uint64("fee", res.Fee),
		slog.Uint64("released", res.Released),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

// atomically nests fn inside every configured transactor.
func (p *Processor) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	wrapped := fn
	for _, tx := range p.txs {
		inner := wrapped
		wrapped = func(ctx context.Context) error {
			return tx.Atomically(ctx, inner)
		}
	}
	return wrapped(ctx)
}

func (p *Processor) load(ctx context.Context, addr interfaces.Address) (*interfaces.Vault, error) {
	data, err := p.store.Load(ctx, addr)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrVaultNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vault record: %w", err)
	}
	return DecodeVault(data)
}

func (p *Processor) save(ctx context.Context, addr interfaces.Address, rec *interfaces.Vault) error {
	if err := p.store.Save(ctx, addr, EncodeVault(rec)); err != nil {
		return fmt.Errorf("failed to save vault record: %w", err)
	}
	return nil
}

func (p *Processor) requireHolding(ctx context.Context, accts Accounts) error {
	if err := p.guard.RequireHoldingAccount(accts.Vault, accts.Asset, accts.VaultHolding); err != nil {
		return err
	}
	return p.guard.RequireLedgerOwned(ctx, p.token, accts.VaultHolding, p.env.TokenProgramID)
}

func (p *Processor) transfer(ctx context.Context, ledger interfaces.Ledger, t interfaces.Transfer) error {
	if err := ledger.Transfer(ctx, t); err != nil {
		return fmt.Errorf("%w: %s %d from %s to %s: %w", interfaces.ErrTransferFailure, ledger.Name(), t.Amount, t.From, t.To, err)
	}
	return nil
}

func (p *Processor) deposit(ctx context.Context, accts Accounts, amount uint64) error {
	return p.transfer(ctx, p.token, interfaces.Transfer{
		From:      accts.OwnerHolding,
		To:        accts.VaultHolding,
		Amount:    amount,
		Authority: accts.Owner,
	})
}

func (p *Processor) lock(rec *interfaces.Vault, amount uint64) {
	rec.AmountLocked = amount
	rec.DepositTimestamp = p.clock.Now().Unix()
	rec.LockDuration = p.env.LockSeconds()
	rec.IsLocked = true
}

// release moves the whole balance back to the owner under the vault's derived
// authority and resets the record to the unlocked baseline.
func (p *Processor) release(ctx context.Context, accts Accounts, rec *interfaces.Vault) (uint64, error) {
	amount := rec.AmountLocked
	err := p.transfer(ctx, p.token, interfaces.Transfer{
		From:      accts.VaultHolding,
		To:        accts.OwnerHolding,
		Amount:    amount,
		Authority: accts.Vault,
		Derived:   VaultSigner(p.env, rec.Owner, rec.Nonce),
	})
	if err != nil {
		return 0, err
	}

	rec.AmountLocked = 0
	rec.DepositTimestamp = 0
	rec.LockDuration = 0
	rec.IsLocked = false

	if err := p.save(ctx, accts.Vault, rec); err != nil {
		return 0, err
	}
	return amount, nil
}
