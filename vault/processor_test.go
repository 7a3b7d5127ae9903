package vault

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ruteri/timelock-vault/cryptoutils"
	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/ruteri/timelock-vault/ledger"
	"github.com/ruteri/timelock-vault/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var genesis = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testOwner(t *testing.T, seed byte) interfaces.Address {
	t.Helper()
	s := make([]byte, 32)
	s[31] = seed
	kp, err := cryptoutils.KeypairFromSeed(s)
	require.NoError(t, err)
	return kp.Address()
}

type harness struct {
	env       Environment
	clock     *fakeClock
	store     *storage.MemoryStore
	token     *ledger.MemoryLedger
	native    *ledger.MemoryLedger
	processor *Processor
	owner     interfaces.Address
	accts     Accounts
	signers   []interfaces.Address
}

const (
	ownerTokens = uint64(1_000_000)
	ownerNative = 10 * DefaultEntryFee
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		env:   Devnet(),
		clock: &fakeClock{now: genesis},
		store: storage.NewMemoryStore(),
		owner: testOwner(t, 1),
	}
	h.token = ledger.NewTokenLedger(h.env.TokenProgramID, log)
	h.native = ledger.NewNativeLedger(h.env.NativeProgramID, log)

	var err error
	h.processor, err = NewProcessor(ProcessorConfig{
		Env:         h.env,
		Store:       h.store,
		Token:       h.token,
		Native:      h.native,
		Clock:       h.clock,
		Log:         log,
		Transactors: []interfaces.Transactor{h.token, h.native},
	})
	require.NoError(t, err)

	h.accts, err = AccountsFor(&h.env, h.owner)
	require.NoError(t, err)
	h.signers = []interfaces.Address{h.owner}

	require.NoError(t, h.native.Mint(ctx, h.owner, h.owner, ownerNative))
	require.NoError(t, h.token.Mint(ctx, h.accts.OwnerHolding, h.owner, ownerTokens))
	return h
}

func (h *harness) balance(t *testing.T, l *ledger.MemoryLedger, addr interfaces.Address) uint64 {
	t.Helper()
	b, err := l.Balance(context.Background(), addr)
	require.NoError(t, err)
	return b
}

func (h *harness) record(t *testing.T) *interfaces.Vault {
	t.Helper()
	_, rec, err := h.processor.Vault(context.Background(), h.owner)
	require.NoError(t, err)
	return rec
}

func TestInitializeWithDepositThenEarlyWithdraw(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.processor.Initialize(ctx, h.accts, h.signers, 50_043)
	require.NoError(t, err)
	require.Equal(t, "initialize", res.Operation)
	require.Equal(t, h.accts.Vault, res.VaultAddress)

	rec := h.record(t)
	require.Equal(t, h.owner, rec.Owner)
	require.Equal(t, uint64(50_043), rec.AmountLocked)
	require.Equal(t, genesis.Unix(), rec.DepositTimestamp)
	require.Equal(t, int64(30*86400), rec.LockDuration)
	require.True(t, rec.IsLocked)
	require.Equal(t, uint64(50_043), h.balance(t, h.token, h.accts.VaultHolding))
	require.Equal(t, DefaultEntryFee, h.balance(t, h.native, h.accts.FeeRecipient))

	h.clock.Advance(15 * 24 * time.Hour)

	quote, err := h.processor.Quote(ctx, h.owner)
	require.NoError(t, err)
	require.Equal(t, uint64(37_500_000), quote.Fee)

	res, err = h.processor.Withdraw(ctx, h.accts, h.signers)
	require.NoError(t, err)
	require.Equal(t, uint64(37_500_000), res.Fee)
	require.Equal(t, uint64(50_043), res.Released)

	rec = h.record(t)
	require.Zero(t, rec.AmountLocked)
	require.Zero(t, rec.DepositTimestamp)
	require.Zero(t, rec.LockDuration)
	require.False(t, rec.IsLocked)
	require.True(t, rec.Consistent())

	require.Equal(t, ownerTokens, h.balance(t, h.token, h.accts.OwnerHolding))
	require.Zero(t, h.balance(t, h.token, h.accts.VaultHolding))
	require.Equal(t, DefaultEntryFee+37_500_000, h.balance(t, h.native, h.accts.FeeRecipient))
	require.Equal(t, ownerNative-DefaultEntryFee-37_500_000, h.balance(t, h.native, h.owner))
}

func TestInitializeIsNotReentrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Initialize(ctx, h.accts, h.signers, 100)
	require.NoError(t, err)
	before := h.record(t)

	h.clock.Advance(time.Hour)
	_, err = h.processor.Initialize(ctx, h.accts, h.signers, 500)
	require.ErrorIs(t, err, interfaces.ErrAlreadyInitialized)
	require.Equal(t, "AlreadyInitialized", interfaces.ErrorCode(err))

	require.Equal(t, before, h.record(t))
	require.Equal(t, DefaultEntryFee, h.balance(t, h.native, h.accts.FeeRecipient))
	require.Equal(t, uint64(100), h.balance(t, h.token, h.accts.VaultHolding))
}

func TestInitializeEmptyThenDeposit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Initialize(ctx, h.accts, h.signers, 0)
	require.NoError(t, err)

	rec := h.record(t)
	require.False(t, rec.IsLocked)
	require.Zero(t, rec.AmountLocked)
	require.Zero(t, rec.LockDuration)
	require.True(t, rec.Consistent())

	_, err = h.processor.Release(ctx, h.accts, h.signers)
	require.ErrorIs(t, err, interfaces.ErrNotLocked)

	_, err = h.processor.Deposit(ctx, h.accts, h.signers, 1000)
	require.NoError(t, err)
	rec = h.record(t)
	require.True(t, rec.IsLocked)
	require.Equal(t, uint64(1000), rec.AmountLocked)
	require.Equal(t, genesis.Unix(), rec.DepositTimestamp)

	// A second deposit adds to the balance and restarts the clock
	h.clock.Advance(10 * 24 * time.Hour)
	_, err = h.processor.Deposit(ctx, h.accts, h.signers, 234)
	require.NoError(t, err)
	rec = h.record(t)
	require.Equal(t, uint64(1234), rec.AmountLocked)
	require.Equal(t, h.clock.now.Unix(), rec.DepositTimestamp)
	require.Equal(t, uint64(1234), h.balance(t, h.token, h.accts.VaultHolding))
}

func TestDepositRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Deposit(ctx, h.accts, h.signers, 10)
	require.ErrorIs(t, err, interfaces.ErrVaultNotFound)

	_, err = h.processor.Initialize(ctx, h.accts, h.signers, 0)
	require.NoError(t, err)

	_, err = h.processor.Deposit(ctx, h.accts, h.signers, 0)
	require.ErrorIs(t, err, interfaces.ErrMalformedRequest)

	_, err = h.processor.Deposit(ctx, h.accts, nil, 10)
	require.ErrorIs(t, err, interfaces.ErrMissingSignature)

	wrongAsset := h.accts
	wrongAsset.Asset = Mainnet().Assets[0]
	_, err = h.processor.Deposit(ctx, wrongAsset, h.signers, 10)
	require.ErrorIs(t, err, interfaces.ErrNotAllowListed)

	wrongHolding := h.accts
	wrongHolding.VaultHolding = h.accts.OwnerHolding
	_, err = h.processor.Deposit(ctx, wrongHolding, h.signers, 10)
	require.ErrorIs(t, err, interfaces.ErrAddressMismatch)

	// More than the owner holds
	_, err = h.processor.Deposit(ctx, h.accts, h.signers, ownerTokens+1)
	require.ErrorIs(t, err, interfaces.ErrTransferFailure)
	require.ErrorIs(t, err, interfaces.ErrInsufficientFunds)
	require.Equal(t, "TransferFailure", interfaces.ErrorCode(err))

	rec := h.record(t)
	require.False(t, rec.IsLocked)
	require.Zero(t, rec.AmountLocked)
}

func TestDepositOverflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Initialize(ctx, h.accts, h.signers, 0)
	require.NoError(t, err)

	rec := h.record(t)
	rec.AmountLocked = math.MaxUint64 - 1
	rec.DepositTimestamp = genesis.Unix()
	rec.IsLocked = true
	require.NoError(t, h.store.Save(ctx, h.accts.Vault, EncodeVault(rec)))

	_, err = h.processor.Deposit(ctx, h.accts, h.signers, 2)
	require.ErrorIs(t, err, interfaces.ErrArithmeticOverflow)
	require.Equal(t, ownerTokens, h.balance(t, h.token, h.accts.OwnerHolding))
}

func TestInitializeGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mainnet := Mainnet()

	tests := []struct {
		name    string
		mutate  func(a *Accounts) []interfaces.Address
		wantErr error
	}{
		{
			name: "missing signature",
			mutate: func(a *Accounts) []interfaces.Address {
				return []interfaces.Address{testOwner(t, 9)}
			},
			wantErr: interfaces.ErrMissingSignature,
		},
		{
			name: "mainnet asset",
			mutate: func(a *Accounts) []interfaces.Address {
				a.Asset = mainnet.Assets[0]
				return h.signers
			},
			wantErr: interfaces.ErrNotAllowListed,
		},
		{
			name: "mainnet fee recipient",
			mutate: func(a *Accounts) []interfaces.Address {
				a.FeeRecipient = mainnet.FeeRecipients[0]
				return h.signers
			},
			wantErr: interfaces.ErrNotAllowListed,
		},
		{
			name: "substituted vault address",
			mutate: func(a *Accounts) []interfaces.Address {
				other, _, err := DeriveVaultAddress(&h.env, testOwner(t, 9))
				require.NoError(t, err)
				a.Vault = other
				return h.signers
			},
			wantErr: interfaces.ErrAddressMismatch,
		},
		{
			name: "substituted holding account",
			mutate: func(a *Accounts) []interfaces.Address {
				a.VaultHolding = testOwner(t, 9)
				return h.signers
			},
			wantErr: interfaces.ErrAddressMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accts := h.accts
			signers := tt.mutate(&accts)

			_, err := h.processor.Initialize(ctx, accts, signers, 100)
			require.ErrorIs(t, err, tt.wantErr)

			_, err = h.store.Load(ctx, h.accts.Vault)
			require.ErrorIs(t, err, interfaces.ErrRecordNotFound)
			require.Zero(t, h.balance(t, h.native, h.accts.FeeRecipient))
		})
	}
}

func TestInitializeTransferFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Initialize(ctx, h.accts, h.signers, ownerTokens+1)
	require.ErrorIs(t, err, interfaces.ErrTransferFailure)

	// The entry fee transfer and the holding account are rolled back
	_, err = h.store.Load(ctx, h.accts.Vault)
	require.ErrorIs(t, err, interfaces.ErrRecordNotFound)
	require.Equal(t, ownerNative, h.balance(t, h.native, h.owner))
	require.Zero(t, h.balance(t, h.native, h.accts.FeeRecipient))
	_, err = h.token.OwnerOf(ctx, h.accts.VaultHolding)
	require.ErrorIs(t, err, interfaces.ErrAccountNotFound)

	// Not enough native funds for the entry fee
	poor := newHarness(t)
	require.NoError(t, poor.native.Transfer(ctx, interfaces.Transfer{
		From: poor.owner, To: testOwner(t, 8), Amount: ownerNative, Authority: poor.owner,
	}))
	_, err = poor.processor.Initialize(ctx, poor.accts, poor.signers, 10)
	require.ErrorIs(t, err, interfaces.ErrTransferFailure)
	require.ErrorIs(t, err, interfaces.ErrInsufficientFunds)
}

func TestReleaseLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Initialize(ctx, h.accts, h.signers, 700)
	require.NoError(t, err)

	h.clock.Advance(29 * 24 * time.Hour)
	_, err = h.processor.Release(ctx, h.accts, h.signers)
	require.ErrorIs(t, err, interfaces.ErrLockNotMatured)

	_, err = h.processor.Release(ctx, h.accts, nil)
	require.ErrorIs(t, err, interfaces.ErrMissingSignature)

	h.clock.Advance(24 * time.Hour)
	res, err := h.processor.Release(ctx, h.accts, h.signers)
	require.NoError(t, err)
	require.Equal(t, uint64(700), res.Released)
	require.Zero(t, res.Fee)
	require.Equal(t, ownerTokens, h.balance(t, h.token, h.accts.OwnerHolding))

	_, err = h.processor.Release(ctx, h.accts, h.signers)
	require.ErrorIs(t, err, interfaces.ErrNotLocked)
	_, err = h.processor.Withdraw(ctx, h.accts, h.signers)
	require.ErrorIs(t, err, interfaces.ErrNotLocked)

	_, err = h.processor.Quote(ctx, h.owner)
	require.ErrorIs(t, err, interfaces.ErrNotLocked)
}

func TestWithdrawAfterMaturityMatchesRelease(t *testing.T) {
	withdrawn := newHarness(t)
	released := newHarness(t)
	ctx := context.Background()

	for _, h := range []*harness{withdrawn, released} {
		_, err := h.processor.Initialize(ctx, h.accts, h.signers, 5000)
		require.NoError(t, err)
		h.clock.Advance(31 * 24 * time.Hour)
	}

	res, err := withdrawn.processor.Withdraw(ctx, withdrawn.accts, withdrawn.signers)
	require.NoError(t, err)
	require.Zero(t, res.Fee)

	_, err = released.processor.Release(ctx, released.accts, released.signers)
	require.NoError(t, err)

	require.Equal(t, released.record(t), withdrawn.record(t))
	require.Equal(t, released.native.Accounts(), withdrawn.native.Accounts())
	require.Equal(t, released.token.Accounts(), withdrawn.token.Accounts())

	_, err = withdrawn.processor.Release(ctx, withdrawn.accts, withdrawn.signers)
	require.ErrorIs(t, err, interfaces.ErrNotLocked)
}

func TestWithdrawGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Withdraw(ctx, h.accts, h.signers)
	require.ErrorIs(t, err, interfaces.ErrVaultNotFound)

	_, err = h.processor.Initialize(ctx, h.accts, h.signers, 100)
	require.NoError(t, err)

	badRecipient := h.accts
	badRecipient.FeeRecipient = testOwner(t, 9)
	_, err = h.processor.Withdraw(ctx, badRecipient, h.signers)
	require.ErrorIs(t, err, interfaces.ErrNotAllowListed)

	_, err = h.processor.Withdraw(ctx, h.accts, []interfaces.Address{testOwner(t, 9)})
	require.ErrorIs(t, err, interfaces.ErrMissingSignature)

	require.True(t, h.record(t).IsLocked)
}

func TestWithdrawFeeFailureKeepsLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.processor.Initialize(ctx, h.accts, h.signers, 100)
	require.NoError(t, err)

	// Drain the native account so the exit fee cannot be paid
	remaining := h.balance(t, h.native, h.owner)
	require.NoError(t, h.native.Transfer(ctx, interfaces.Transfer{
		From: h.owner, To: testOwner(t, 8), Amount: remaining, Authority: h.owner,
	}))

	_, err = h.processor.Withdraw(ctx, h.accts, h.signers)
	require.ErrorIs(t, err, interfaces.ErrTransferFailure)

	rec := h.record(t)
	require.True(t, rec.IsLocked)
	require.Equal(t, uint64(100), rec.AmountLocked)
	require.Equal(t, uint64(100), h.balance(t, h.token, h.accts.VaultHolding))
}

func TestProcessDispatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.processor.Process(ctx, Request{
		Data:     EncodeOperation(Operation{Kind: OpInitialize, Amount: 10}),
		Accounts: h.accts,
		Signers:  h.signers,
	})
	require.NoError(t, err)
	require.Equal(t, "initialize", res.Operation)

	res, err = h.processor.Process(ctx, Request{Data: []byte{byte(OpExtend)}, Accounts: h.accts})
	require.NoError(t, err)
	require.Equal(t, "extend", res.Operation)
	require.Equal(t, uint64(10), h.record(t).AmountLocked)

	_, err = h.processor.Process(ctx, Request{Data: []byte{9}, Accounts: h.accts, Signers: h.signers})
	require.ErrorIs(t, err, interfaces.ErrMalformedRequest)
	require.Equal(t, "MalformedRequest", interfaces.ErrorCode(err))

	_, err = h.processor.Process(ctx, Request{
		Data:     EncodeOperation(Operation{Kind: OpDeposit, Amount: 5}),
		Accounts: h.accts,
		Signers:  h.signers,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(15), h.record(t).AmountLocked)
}

func TestHoldingAccountOwnership(t *testing.T) {
	env := Devnet()
	ctx := context.Background()
	owner := testOwner(t, 1)
	accts, err := AccountsFor(&env, owner)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	_, nonce, err := DeriveVaultAddress(&env, owner)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, accts.Vault, EncodeVault(&interfaces.Vault{
		Owner:            owner,
		LockDuration:     env.LockSeconds(),
		AmountLocked:     10,
		DepositTimestamp: genesis.Unix(),
		IsLocked:         true,
		Nonce:            nonce,
	})))

	token := &ledger.MockLedger{}
	token.On("OwnerOf", mock.Anything, accts.VaultHolding).Return(SystemProgramID, nil)

	p, err := NewProcessor(ProcessorConfig{
		Env:    env,
		Store:  store,
		Token:  token,
		Native: ledger.NewNativeLedger(env.NativeProgramID, nil),
		Clock:  &fakeClock{now: genesis.Add(40 * 24 * time.Hour)},
	})
	require.NoError(t, err)

	_, err = p.Deposit(ctx, accts, []interfaces.Address{owner}, 5)
	require.ErrorIs(t, err, interfaces.ErrInvalidAccountOwnership)
	_, err = p.Withdraw(ctx, accts, []interfaces.Address{owner})
	require.ErrorIs(t, err, interfaces.ErrInvalidAccountOwnership)
	_, err = p.Release(ctx, accts, []interfaces.Address{owner})
	require.ErrorIs(t, err, interfaces.ErrInvalidAccountOwnership)

	token.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
}

func TestReleaseUsesDerivedAuthority(t *testing.T) {
	env := Devnet()
	ctx := context.Background()
	owner := testOwner(t, 1)
	accts, err := AccountsFor(&env, owner)
	require.NoError(t, err)

	vaultAddr, nonce, err := DeriveVaultAddress(&env, owner)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(ctx, vaultAddr, EncodeVault(&interfaces.Vault{
		Owner:            owner,
		LockDuration:     env.LockSeconds(),
		AmountLocked:     77,
		DepositTimestamp: genesis.Unix(),
		IsLocked:         true,
		Nonce:            nonce,
	})))

	token := &ledger.MockLedger{}
	token.On("OwnerOf", mock.Anything, accts.VaultHolding).Return(env.TokenProgramID, nil)
	token.On("Transfer", mock.Anything, mock.MatchedBy(func(tr interfaces.Transfer) bool {
		return tr.From == accts.VaultHolding &&
			tr.To == accts.OwnerHolding &&
			tr.Amount == 77 &&
			tr.Authority == vaultAddr &&
			cryptoutils.VerifyDerivedSigner(tr.Derived, vaultAddr)
	})).Return(nil).Once()

	p, err := NewProcessor(ProcessorConfig{
		Env:    env,
		Store:  store,
		Token:  token,
		Native: ledger.NewNativeLedger(env.NativeProgramID, nil),
		Clock:  &fakeClock{now: genesis.Add(30 * 24 * time.Hour)},
	})
	require.NoError(t, err)

	res, err := p.Release(ctx, accts, []interfaces.Address{owner})
	require.NoError(t, err)
	require.Equal(t, uint64(77), res.Released)
	token.AssertExpectations(t)
}

func TestNewProcessorValidates(t *testing.T) {
	env := Devnet()
	env.Assets = nil

	_, err := NewProcessor(ProcessorConfig{
		Env:    env,
		Store:  storage.NewMemoryStore(),
		Token:  ledger.NewTokenLedger(env.TokenProgramID, nil),
		Native: ledger.NewNativeLedger(env.NativeProgramID, nil),
	})
	require.ErrorIs(t, err, ErrInvalidEnvironment)

	_, err = NewProcessor(ProcessorConfig{Env: Devnet()})
	require.Error(t, err)
}

// brokenReplica is a record store replica that can refuse writes.
type brokenReplica struct {
	*storage.MemoryStore
	refuse bool
}

func (r *brokenReplica) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	if r.refuse {
		return interfaces.ErrBackendUnavailable
	}
	return r.MemoryStore.Save(ctx, addr, data)
}

func TestDepositReplicaFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	replica := &brokenReplica{MemoryStore: storage.NewMemoryStore()}
	var err error
	h.processor, err = NewProcessor(ProcessorConfig{
		Env:         h.env,
		Store:       storage.NewMultiStore([]interfaces.RecordStore{h.store, replica}, nil),
		Token:       h.token,
		Native:      h.native,
		Clock:       h.clock,
		Transactors: []interfaces.Transactor{h.token, h.native},
	})
	require.NoError(t, err)

	_, err = h.processor.Initialize(ctx, h.accts, h.signers, 1000)
	require.NoError(t, err)

	replica.refuse = true
	_, err = h.processor.Deposit(ctx, h.accts, h.signers, 234)
	require.ErrorIs(t, err, interfaces.ErrBackendUnavailable)

	// Neither the record nor the tokens moved
	require.Equal(t, uint64(1000), h.record(t).AmountLocked)
	require.Equal(t, uint64(1000), h.balance(t, h.token, h.accts.VaultHolding))
	require.Equal(t, ownerTokens-1000, h.balance(t, h.token, h.accts.OwnerHolding))

	replica.refuse = false
	h.clock.Advance(h.env.LockDuration)
	res, err := h.processor.Release(ctx, h.accts, h.signers)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), res.Released)
	require.Zero(t, h.balance(t, h.token, h.accts.VaultHolding))
	require.Equal(t, ownerTokens, h.balance(t, h.token, h.accts.OwnerHolding))
}
