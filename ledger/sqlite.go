package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	gomath "math"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ruteri/timelock-vault/db"
	"github.com/ruteri/timelock-vault/interfaces"
)

// SQLiteLedger keeps the balances of one asset in the shared SQLite database.
// Wrap operations in db.DB.Atomically so that transfers and record writes
// commit together.
type SQLiteLedger struct {
	db         *db.DB
	programID  interfaces.Address
	name       string
	autoCreate bool
	log        *slog.Logger
}

// NewSQLiteNativeLedger creates a SQLite-backed native ledger.
func NewSQLiteNativeLedger(d *db.DB, programID interfaces.Address, log *slog.Logger) *SQLiteLedger {
	return newSQLiteLedger(d, programID, "native", true, log)
}

// NewSQLiteTokenLedger creates a SQLite-backed token ledger.
func NewSQLiteTokenLedger(d *db.DB, programID interfaces.Address, log *slog.Logger) *SQLiteLedger {
	return newSQLiteLedger(d, programID, "token", false, log)
}

func newSQLiteLedger(d *db.DB, programID interfaces.Address, name string, autoCreate bool, log *slog.Logger) *SQLiteLedger {
	if log == nil {
		log = slog.Default()
	}
	return &SQLiteLedger{db: d, programID: programID, name: name, autoCreate: autoCreate, log: log}
}

func (l *SQLiteLedger) ProgramID() interfaces.Address { return l.programID }

func (l *SQLiteLedger) Name() string { return "sqlite-" + l.name }

func (l *SQLiteLedger) lookup(ctx context.Context, addr interfaces.Address) (interfaces.Address, uint64, error) {
	var authority []byte
	var balance int64
	err := l.db.Conn(ctx).QueryRowContext(ctx,
		"SELECT authority, balance FROM ledger_accounts WHERE program = ? AND address = ?",
		l.programID.Bytes(), addr.Bytes()).Scan(&authority, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.Address{}, 0, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, addr)
	}
	if err != nil {
		return interfaces.Address{}, 0, fmt.Errorf("failed to query account: %w", err)
	}

	auth, err := interfaces.NewAddressFromBytes(authority)
	if err != nil {
		return interfaces.Address{}, 0, err
	}
	return auth, uint64(balance), nil
}

func (l *SQLiteLedger) setBalance(ctx context.Context, addr interfaces.Address, balance uint64) error {
	if balance > gomath.MaxInt64 {
		return fmt.Errorf("%w: balance of %s exceeds storage range", interfaces.ErrArithmeticOverflow, addr)
	}
	_, err := l.db.Conn(ctx).ExecContext(ctx,
		"UPDATE ledger_accounts SET balance = ? WHERE program = ? AND address = ?",
		int64(balance), l.programID.Bytes(), addr.Bytes())
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) OwnerOf(ctx context.Context, addr interfaces.Address) (interfaces.Address, error) {
	if _, _, err := l.lookup(ctx, addr); err != nil {
		return interfaces.Address{}, err
	}
	return l.programID, nil
}

func (l *SQLiteLedger) OpenAccount(ctx context.Context, addr, authority interfaces.Address) error {
	existing, _, err := l.lookup(ctx, addr)
	if err == nil {
		if existing != authority {
			return fmt.Errorf("%w: account %s already controlled by %s", interfaces.ErrUnauthorizedTransfer, addr, existing)
		}
		return nil
	}
	if !errors.Is(err, interfaces.ErrAccountNotFound) {
		return err
	}

	_, err = l.db.Conn(ctx).ExecContext(ctx,
		"INSERT INTO ledger_accounts (program, address, authority, balance) VALUES (?, ?, ?, 0)",
		l.programID.Bytes(), addr.Bytes(), authority.Bytes())
	if err != nil {
		return fmt.Errorf("failed to open account: %w", err)
	}
	return nil
}

// Transfer runs inside its own transaction unless ctx already carries one.
func (l *SQLiteLedger) Transfer(ctx context.Context, t interfaces.Transfer) error {
	return l.db.Atomically(ctx, func(ctx context.Context) error {
		authority, fromBalance, err := l.lookup(ctx, t.From)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		if err := authorize(authority, t); err != nil {
			return err
		}
		if fromBalance < t.Amount {
			return fmt.Errorf("%w: %s holds %d, needs %d", interfaces.ErrInsufficientFunds, t.From, fromBalance, t.Amount)
		}
		if t.From == t.To {
			return nil
		}

		_, toBalance, err := l.lookup(ctx, t.To)
		if errors.Is(err, interfaces.ErrAccountNotFound) && l.autoCreate {
			if err := l.OpenAccount(ctx, t.To, t.To); err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("destination: %w", err)
		}

		credited, overflow := math.SafeAdd(toBalance, t.Amount)
		if overflow {
			return fmt.Errorf("%w: balance of %s", interfaces.ErrArithmeticOverflow, t.To)
		}
		if err := l.setBalance(ctx, t.From, fromBalance-t.Amount); err != nil {
			return err
		}
		if err := l.setBalance(ctx, t.To, credited); err != nil {
			return err
		}

		l.log.Debug("Transfer applied",
			slog.String("ledger", l.Name()),
			slog.String("from", t.From.String()),
			slog.String("to", t.To.String()),
			slog.Uint64("amount", t.Amount))
		return nil
	})
}

func (l *SQLiteLedger) Mint(ctx context.Context, addr, authority interfaces.Address, amount uint64) error {
	return l.db.Atomically(ctx, func(ctx context.Context) error {
		if err := l.OpenAccount(ctx, addr, authority); err != nil {
			return err
		}
		_, balance, err := l.lookup(ctx, addr)
		if err != nil {
			return err
		}
		credited, overflow := math.SafeAdd(balance, amount)
		if overflow {
			return fmt.Errorf("%w: balance of %s", interfaces.ErrArithmeticOverflow, addr)
		}
		return l.setBalance(ctx, addr, credited)
	})
}

// Balance returns the balance of addr, zero for unknown accounts.
func (l *SQLiteLedger) Balance(ctx context.Context, addr interfaces.Address) (uint64, error) {
	_, balance, err := l.lookup(ctx, addr)
	if errors.Is(err, interfaces.ErrAccountNotFound) {
		return 0, nil
	}
	return balance, err
}
