package cryptoutils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeypairSignVerify(t *testing.T) {
	kp, err := KeypairFromSeed(make([]byte, 32))
	require.NoError(t, err)

	msg := []byte("deposit 1000")
	sig := kp.Sign(msg)

	require.True(t, VerifySignature(kp.Address(), msg, sig))
	require.False(t, VerifySignature(kp.Address(), []byte("deposit 1001"), sig))
	require.False(t, VerifySignature(kp.Address(), msg, sig[:10]))

	other, err := GenerateKeypair()
	require.NoError(t, err)
	require.False(t, VerifySignature(other.Address(), msg, sig))
}

func TestKeypairRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "owner.key")
	require.NoError(t, SaveKeypair(path, kp))

	loaded, err := LoadKeypair(path)
	require.NoError(t, err)
	require.Equal(t, kp.Address(), loaded.Address())
}

func TestKeypairFromBase58Invalid(t *testing.T) {
	_, err := KeypairFromBase58("0OIl")
	require.ErrorIs(t, err, ErrInvalidKeypair)

	_, err = KeypairFromBase58("3mJr7AoUXx2Wqd")
	require.ErrorIs(t, err, ErrInvalidKeypair)

	_, err = KeypairFromSeed([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidKeypair)
}
