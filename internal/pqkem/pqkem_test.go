package pqkem

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncapsulateDecapsulateRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	secret, ciphertext, err := kp.Encapsulate()
	require.NoError(t, err)
	require.Len(t, secret, SharedSecretSize)
	require.Len(t, ciphertext, CiphertextSize)

	recovered, err := kp.Decapsulate(ciphertext)
	require.NoError(t, err)
	require.True(t, bytes.Equal(secret, recovered))
}

func TestFromBytesRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	restored, err := FromBytes(kp.PrivateKeyBytes(), kp.PublicKeyBytes())
	require.NoError(t, err)

	secret, ciphertext, err := kp.Encapsulate()
	require.NoError(t, err)

	recovered, err := restored.Decapsulate(ciphertext)
	require.NoError(t, err)
	require.True(t, bytes.Equal(secret, recovered))
}

func TestEncapsulateToBarePublicKey(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	secret, ciphertext, err := EncapsulateTo(kp.PublicKeyBytes())
	require.NoError(t, err)

	recovered, err := kp.Decapsulate(ciphertext)
	require.NoError(t, err)
	require.True(t, bytes.Equal(secret, recovered))
}

func TestDecapsulateRejectsWrongSizeCiphertext(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	_, err = kp.Decapsulate([]byte("too short"))
	require.Error(t, err)
}
