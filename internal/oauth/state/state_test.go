package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	token, err := Encode("secret", Payload{Provider: "github", Nonce: "n-1"}, time.Minute)
	require.NoError(t, err)

	payload, err := Decode("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "github", payload.Provider)
	assert.Equal(t, "n-1", payload.Nonce)
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	token, err := Encode("secret", Payload{Provider: "github", Nonce: "n-1"}, time.Minute)
	require.NoError(t, err)

	_, err = Decode("other", token)
	assert.Error(t, err)
}

func TestDecodeRejectsExpiredState(t *testing.T) {
	token, err := Encode("secret", Payload{Provider: "github"}, -time.Minute)
	require.NoError(t, err)

	_, err = Decode("secret", token)
	assert.Error(t, err)
}

func TestSecretRequired(t *testing.T) {
	_, err := Encode("", Payload{}, time.Minute)
	assert.Error(t, err)
	_, err = Decode("", "token")
	assert.Error(t, err)
}

func TestNewNonceIsRandom(t *testing.T) {
	assert.NotEqual(t, NewNonce(), NewNonce())
	assert.NotEmpty(t, NewNonce())
}
