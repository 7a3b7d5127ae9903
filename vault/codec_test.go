package vault

import (
	"encoding/hex"
	"testing"

	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func sequentialOwner() interfaces.Address {
	var owner interfaces.Address
	for i := range owner {
		owner[i] = byte(i + 1)
	}
	return owner
}

func TestVaultRecordLayout(t *testing.T) {
	g := goldie.New(t)

	tests := []struct {
		name  string
		vault interfaces.Vault
	}{
		{
			name: "vault_record_locked",
			vault: interfaces.Vault{
				Owner:            sequentialOwner(),
				LockDuration:     30 * 86400,
				AmountLocked:     50_043,
				DepositTimestamp: 1_700_000_000,
				IsLocked:         true,
				Nonce:            254,
			},
		},
		{
			name: "vault_record_unlocked",
			vault: interfaces.Vault{
				Owner: sequentialOwner(),
				Nonce: 7,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeVault(&tt.vault)
			require.Len(t, encoded, interfaces.VaultRecordSize)
			g.Assert(t, tt.name, []byte(hex.EncodeToString(encoded)))

			decoded, err := DecodeVault(encoded)
			require.NoError(t, err)
			require.Equal(t, tt.vault, *decoded)
			require.True(t, decoded.Consistent())
		})
	}
}

func TestDecodeVaultRejectsMalformed(t *testing.T) {
	valid := EncodeVault(&interfaces.Vault{Owner: sequentialOwner()})

	_, err := DecodeVault(valid[:57])
	require.ErrorIs(t, err, interfaces.ErrMalformedRequest)

	_, err = DecodeVault(append(valid, 0))
	require.ErrorIs(t, err, interfaces.ErrMalformedRequest)

	badFlag := append([]byte(nil), valid...)
	badFlag[56] = 2
	_, err = DecodeVault(badFlag)
	require.ErrorIs(t, err, interfaces.ErrMalformedRequest)
}

func TestOperationLayout(t *testing.T) {
	g := goldie.New(t)

	tests := []struct {
		name string
		op   Operation
	}{
		{name: "op_initialize", op: Operation{Kind: OpInitialize, Amount: 50_043}},
		{name: "op_deposit", op: Operation{Kind: OpDeposit, Amount: 1000}},
		{name: "op_withdraw", op: Operation{Kind: OpWithdraw}},
		{name: "op_release", op: Operation{Kind: OpRelease}},
		{name: "op_extend", op: Operation{Kind: OpExtend}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeOperation(tt.op)
			g.Assert(t, tt.name, []byte(hex.EncodeToString(encoded)))

			decoded, err := DecodeOperation(encoded)
			require.NoError(t, err)
			require.Equal(t, tt.op, decoded)
		})
	}
}

func TestDecodeOperation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    Operation
		wantErr bool
	}{
		{name: "initialize without amount", data: []byte{0}, want: Operation{Kind: OpInitialize}},
		{name: "empty", data: nil, wantErr: true},
		{name: "unknown tag", data: []byte{5}, wantErr: true},
		{name: "deposit without amount", data: []byte{1}, wantErr: true},
		{name: "deposit short amount", data: []byte{1, 1, 2, 3}, wantErr: true},
		{name: "initialize short amount", data: []byte{0, 1}, wantErr: true},
		{name: "withdraw trailing bytes", data: []byte{2, 0}, wantErr: true},
		{name: "deposit trailing bytes", data: []byte{1, 1, 0, 0, 0, 0, 0, 0, 0, 9}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := DecodeOperation(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, interfaces.ErrMalformedRequest)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, op)
		})
	}
}
