package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ruteri/timelock-vault/cryptoutils"
	"github.com/ruteri/timelock-vault/interfaces"
)

type account struct {
	authority interfaces.Address
	balance   uint64
}

// journal records how to undo the changes made inside one Atomically call.
type journal struct {
	undo []func()
}

type journalKey struct{ ledger *MemoryLedger }

// MemoryLedger is an in-process ledger for one asset.
//
// A native ledger creates destination accounts on first credit, each
// controlled by its own address. A token ledger requires OpenAccount first.
type MemoryLedger struct {
	programID  interfaces.Address
	name       string
	autoCreate bool
	log        *slog.Logger

	mu       sync.Mutex
	accounts map[interfaces.Address]*account
}

// NewNativeLedger creates a ledger for the native settlement asset.
func NewNativeLedger(programID interfaces.Address, log *slog.Logger) *MemoryLedger {
	return newMemoryLedger(programID, "native", true, log)
}

// NewTokenLedger creates a ledger for a fungible token.
func NewTokenLedger(programID interfaces.Address, log *slog.Logger) *MemoryLedger {
	return newMemoryLedger(programID, "token", false, log)
}

func newMemoryLedger(programID interfaces.Address, name string, autoCreate bool, log *slog.Logger) *MemoryLedger {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryLedger{
		programID:  programID,
		name:       name,
		autoCreate: autoCreate,
		log:        log,
		accounts:   make(map[interfaces.Address]*account),
	}
}

func (l *MemoryLedger) ProgramID() interfaces.Address { return l.programID }

func (l *MemoryLedger) Name() string { return "memory-" + l.name }

func (l *MemoryLedger) OwnerOf(ctx context.Context, addr interfaces.Address) (interfaces.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[addr]; !ok {
		return interfaces.Address{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, addr)
	}
	return l.programID, nil
}

func (l *MemoryLedger) OpenAccount(ctx context.Context, addr, authority interfaces.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	created, err := l.open(addr, authority)
	if err == nil && created {
		l.record(ctx, func() { l.dropIfEmpty(addr) })
	}
	return err
}

func (l *MemoryLedger) open(addr, authority interfaces.Address) (bool, error) {
	if acc, ok := l.accounts[addr]; ok {
		if acc.authority != authority {
			return false, fmt.Errorf("%w: account %s already controlled by %s", interfaces.ErrUnauthorizedTransfer, addr, acc.authority)
		}
		return false, nil
	}
	l.accounts[addr] = &account{authority: authority}
	return true, nil
}

// record appends an undo step to the journal of the enclosing Atomically call.
// Callers hold l.mu.
func (l *MemoryLedger) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{l}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// dropIfEmpty removes an account opened by a rolled back operation, unless
// something outside that operation has credited it since.
func (l *MemoryLedger) dropIfEmpty(addr interfaces.Address) {
	if acc, ok := l.accounts[addr]; ok && acc.balance == 0 {
		delete(l.accounts, addr)
	}
}

func (l *MemoryLedger) Transfer(ctx context.Context, t interfaces.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	from, ok := l.accounts[t.From]
	if !ok {
		return fmt.Errorf("%w: source %s", interfaces.ErrAccountNotFound, t.From)
	}
	if err := authorize(from.authority, t); err != nil {
		return err
	}
	if from.balance < t.Amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", interfaces.ErrInsufficientFunds, t.From, from.balance, t.Amount)
	}
	if t.From == t.To {
		return nil
	}

	to, existed := l.accounts[t.To]
	if !existed {
		if !l.autoCreate {
			return fmt.Errorf("%w: destination %s", interfaces.ErrAccountNotFound, t.To)
		}
		to = &account{authority: t.To}
	}

	credited, overflow := math.SafeAdd(to.balance, t.Amount)
	if overflow {
		return fmt.Errorf("%w: balance of %s", interfaces.ErrArithmeticOverflow, t.To)
	}
	if !existed {
		l.accounts[t.To] = to
	}
	from.balance -= t.Amount
	to.balance = credited

	l.record(ctx, func() {
		l.reverse(t)
		if !existed {
			l.dropIfEmpty(t.To)
		}
	})

	l.log.Debug("Transfer applied",
		slog.String("ledger", l.Name()),
		slog.String("from", t.From.String()),
		slog.String("to", t.To.String()),
		slog.Uint64("amount", t.Amount))
	return nil
}

// authorize checks that t.Authority controls an account held by authority.
// Derived authorities must carry a proof that re-derives to them.
func authorize(authority interfaces.Address, t interfaces.Transfer) error {
	if t.Authority != authority {
		return fmt.Errorf("%w: %s does not control the source account", interfaces.ErrUnauthorizedTransfer, t.Authority)
	}
	if t.Derived != nil && !cryptoutils.VerifyDerivedSigner(t.Derived, t.Authority) {
		return fmt.Errorf("%w: derivation proof does not match %s", interfaces.ErrUnauthorizedTransfer, t.Authority)
	}
	if t.Derived == nil && !cryptoutils.IsOnCurve(t.Authority[:]) {
		return fmt.Errorf("%w: derived authority %s requires a derivation proof", interfaces.ErrUnauthorizedTransfer, t.Authority)
	}
	return nil
}

// reverse moves a transfer's amount back to its source. Only mints run
// outside the processor's lock, so the destination still holds the amount.
func (l *MemoryLedger) reverse(t interfaces.Transfer) {
	from, to := l.accounts[t.From], l.accounts[t.To]
	if from == nil || to == nil || to.balance < t.Amount {
		l.log.Error("Cannot undo transfer",
			slog.String("ledger", l.Name()),
			slog.String("from", t.From.String()),
			slog.String("to", t.To.String()),
			slog.Uint64("amount", t.Amount))
		return
	}
	to.balance -= t.Amount
	from.balance += t.Amount
}

// Mint credits amount to addr, opening it for authority if needed.
func (l *MemoryLedger) Mint(ctx context.Context, addr, authority interfaces.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, exists := l.accounts[addr]
	if exists && acc.authority != authority {
		return fmt.Errorf("%w: account %s already controlled by %s", interfaces.ErrUnauthorizedTransfer, addr, acc.authority)
	}
	if !exists {
		acc = &account{authority: authority}
	}
	credited, overflow := math.SafeAdd(acc.balance, amount)
	if overflow {
		return fmt.Errorf("%w: balance of %s", interfaces.ErrArithmeticOverflow, addr)
	}
	acc.balance = credited
	l.accounts[addr] = acc

	l.record(ctx, func() {
		acc.balance -= amount
		if !exists {
			l.dropIfEmpty(addr)
		}
	})
	return nil
}

// Balance returns the balance of addr, zero for unknown accounts.
func (l *MemoryLedger) Balance(ctx context.Context, addr interfaces.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[addr]; ok {
		return acc.balance, nil
	}
	return 0, nil
}

// Atomically undoes every change fn made through its context if fn fails.
// Changes made under other contexts, such as concurrent faucet mints, are
// kept. Nested calls on the same ledger share the outermost journal.
func (l *MemoryLedger) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{l}).(*journal); ok {
		return fn(ctx)
	}

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{l}, j)); err != nil {
		l.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		l.mu.Unlock()
		return err
	}
	return nil
}

// Accounts returns a copy of every balance, for diagnostics.
func (l *MemoryLedger) Accounts() map[interfaces.Address]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make(map[interfaces.Address]uint64, len(l.accounts))
	for addr, acc := range l.accounts {
		res[addr] = acc.balance
	}
	return res
}
