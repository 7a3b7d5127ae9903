package cryptoutils

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/stretchr/testify/require"
)

func testProgramID() interfaces.Address {
	return interfaces.Address(sha256.Sum256([]byte("timelock-vault/program")))
}

func TestFindDerivedAddress(t *testing.T) {
	programID := testProgramID()
	owner := interfaces.Address(sha256.Sum256([]byte("owner")))

	addr, nonce, err := FindDerivedAddress(programID, []byte("vault"), owner[:])
	require.NoError(t, err)
	require.False(t, IsOnCurve(addr[:]))

	// Deterministic
	again, againNonce, err := FindDerivedAddress(programID, []byte("vault"), owner[:])
	require.NoError(t, err)
	require.Equal(t, addr, again)
	require.Equal(t, nonce, againNonce)

	// The returned nonce re-derives the same address
	created, err := CreateDerivedAddress(programID, []byte("vault"), owner[:], []byte{nonce})
	require.NoError(t, err)
	require.Equal(t, addr, created)

	// Every higher nonce must have landed on the curve
	for n := 255; n > int(nonce); n-- {
		_, err := CreateDerivedAddress(programID, []byte("vault"), owner[:], []byte{byte(n)})
		require.ErrorIs(t, err, ErrOnCurve)
	}
}

func TestFindDerivedAddressDistinctInputs(t *testing.T) {
	programID := testProgramID()
	otherProgram := interfaces.Address(sha256.Sum256([]byte("other")))
	alice := interfaces.Address(sha256.Sum256([]byte("alice")))
	bob := interfaces.Address(sha256.Sum256([]byte("bob")))

	a, _, err := FindDerivedAddress(programID, []byte("vault"), alice[:])
	require.NoError(t, err)
	b, _, err := FindDerivedAddress(programID, []byte("vault"), bob[:])
	require.NoError(t, err)
	c, _, err := FindDerivedAddress(otherProgram, []byte("vault"), alice[:])
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
}

func TestFindDerivedAddressDoesNotMutateSeeds(t *testing.T) {
	backing := make([][]byte, 1, 4)
	backing[0] = []byte("vault")
	extra := backing[:2]
	extra[1] = []byte("sentinel")

	_, _, err := FindDerivedAddress(testProgramID(), backing...)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("sentinel"), extra[1]))
}

func TestCreateDerivedAddressLimits(t *testing.T) {
	programID := testProgramID()

	tests := []struct {
		name    string
		seeds   [][]byte
		wantErr error
	}{
		{
			name:    "seed too long",
			seeds:   [][]byte{make([]byte, MaxSeedLength+1)},
			wantErr: ErrSeedTooLong,
		},
		{
			name:    "too many seeds",
			seeds:   make([][]byte, MaxSeeds+1),
			wantErr: ErrTooManySeeds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateDerivedAddress(programID, tt.seeds...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyDerivedSigner(t *testing.T) {
	programID := testProgramID()
	owner := interfaces.Address(sha256.Sum256([]byte("owner")))

	addr, nonce, err := FindDerivedAddress(programID, []byte("vault"), owner[:])
	require.NoError(t, err)

	signer := &interfaces.DerivedSigner{
		ProgramID: programID,
		Seeds:     [][]byte{[]byte("vault"), owner[:]},
		Nonce:     nonce,
	}
	require.True(t, VerifyDerivedSigner(signer, addr))

	wrongNonce := *signer
	wrongNonce.Nonce = nonce + 1
	require.False(t, VerifyDerivedSigner(&wrongNonce, addr))

	require.False(t, VerifyDerivedSigner(nil, addr))
}

func TestPublicKeysAreOnCurve(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	addr := kp.Address()
	require.True(t, IsOnCurve(addr[:]))
}
