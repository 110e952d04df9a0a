package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "Pjk+k4hske5KkKtbaKSVDOgpllRl+0EI6oCAdx88XqI="

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Setenv("BROKER_CREDENTIALS_KEY", testKey)
	sealed, err := EncryptString("PKTEST123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, EncryptedPrefix))
	assert.NotContains(t, sealed, "PKTEST123")

	other, err := EncryptString("PKTEST123")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other)

	plain, err := DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "PKTEST123", plain)
}

func TestDecryptStringPassesPlaintextThrough(t *testing.T) {
	plain, err := DecryptString("PKPLAIN")
	require.NoError(t, err)
	assert.Equal(t, "PKPLAIN", plain)
}

func TestDecryptStringErrors(t *testing.T) {
	t.Setenv("BROKER_CREDENTIALS_KEY", testKey)
	_, err := DecryptString(EncryptedPrefix + "not base64!")
	require.Error(t, err)

	_, err = DecryptString(EncryptedPrefix + "AAAA")
	require.ErrorIs(t, err, ErrCiphertextTooShort)

	sealed, err := EncryptString("secret")
	require.NoError(t, err)

	t.Setenv("BROKER_CREDENTIALS_KEY", "q83vEjRWeJq83vEjRWeJq83vEjRWeJq83vEjRWeJq80=")
	_, err = DecryptString(sealed)
	require.Error(t, err)
}

func TestBadKeyLength(t *testing.T) {
	t.Setenv("BROKER_CREDENTIALS_KEY", "c2hvcnQ=")
	_, err := EncryptString("x")
	require.Error(t, err)
}

func TestMissingKey(t *testing.T) {
	t.Setenv("BROKER_CREDENTIALS_KEY", "")
	_, err := EncryptString("x")
	require.ErrorIs(t, err, ErrMissingKey)

	_, err = DecryptString(EncryptedPrefix + "AAAA")
	require.ErrorIs(t, err, ErrMissingKey)

	// plaintext values never need the key
	plain, err := DecryptString("PKPLAIN")
	require.NoError(t, err)
	assert.Equal(t, "PKPLAIN", plain)
}
